package repo

import (
	"context"
	"database/sql"
	"strings"

	"procline/internal/domain"
)

const stepColumns = `id,project_id,step_number,step_name,step_description,is_critical,allow_weekends,notes,planned_start_date,planned_end_date,sla_days,actual_start_date,actual_end_date,delay_days,status,created_at,updated_at`

func scanStep(scan func(dest ...any) error) (domain.ProjectStep, error) {
	var s domain.ProjectStep
	var critical, weekends int
	var desc, notes, actualStart, actualEnd sql.NullString
	var delay sql.NullInt64
	var status string
	err := scan(&s.ID, &s.ProjectID, &s.StepNumber, &s.StepName, &desc,
		&critical, &weekends, &notes, &s.PlannedStartDate, &s.PlannedEndDate, &s.SLADays,
		&actualStart, &actualEnd, &delay, &status, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.StepDescription = desc.String
	s.IsCritical = critical != 0
	s.AllowWeekends = weekends != 0
	if notes.Valid {
		s.Notes = &notes.String
	}
	if actualStart.Valid {
		s.ActualStartDate = &actualStart.String
	}
	if actualEnd.Valid {
		s.ActualEndDate = &actualEnd.String
	}
	if delay.Valid {
		d := int(delay.Int64)
		s.DelayDays = &d
	}
	s.Status = domain.StepStatus(status)
	return s, nil
}

func (r Repo) InsertStepTx(ctx context.Context, tx *sql.Tx, s domain.ProjectStep) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO project_steps(project_id,step_number,step_name,step_description,is_critical,allow_weekends,notes,planned_start_date,planned_end_date,sla_days,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ProjectID, s.StepNumber, s.StepName, s.StepDescription, boolInt(s.IsCritical), boolInt(s.AllowWeekends),
		nullableStringPtr(s.Notes), s.PlannedStartDate, s.PlannedEndDate, s.SLADays, string(s.Status), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetStep resolves a step through its project, so steps of soft-deleted
// projects read as not found everywhere.
func (r Repo) GetStep(ctx context.Context, id int64) (domain.ProjectStep, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+prefixed("s", stepColumns)+` FROM project_steps s
JOIN projects p ON p.id = s.project_id
WHERE s.id=? AND p.deleted_at IS NULL`, id)
	return scanStep(row.Scan)
}

func (r Repo) GetStepTx(ctx context.Context, tx *sql.Tx, id int64) (domain.ProjectStep, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+prefixed("s", stepColumns)+` FROM project_steps s
JOIN projects p ON p.id = s.project_id
WHERE s.id=? AND p.deleted_at IS NULL`, id)
	return scanStep(row.Scan)
}

// StepDepartment resolves the owning department of a step through its
// project. Steps of soft-deleted projects resolve as not found.
func (r Repo) StepDepartment(ctx context.Context, stepID int64) (int64, error) {
	var dept int64
	err := r.DB.QueryRowContext(ctx, `SELECT p.department_id FROM project_steps s
JOIN projects p ON p.id = s.project_id
WHERE s.id=? AND p.deleted_at IS NULL`, stepID).Scan(&dept)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return dept, err
}

func (r Repo) ListStepsByProject(ctx context.Context, projectID int64) ([]domain.ProjectStep, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+stepColumns+` FROM project_steps WHERE project_id=? ORDER BY step_number`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ProjectStep
	for rows.Next() {
		s, err := scanStep(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) GetStepByNumberTx(ctx context.Context, tx *sql.Tx, projectID int64, stepNumber int) (domain.ProjectStep, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+stepColumns+` FROM project_steps WHERE project_id=? AND step_number=?`, projectID, stepNumber)
	return scanStep(row.Scan)
}

// UpdateStepTx persists the mutable columns of a step.
func (r Repo) UpdateStepTx(ctx context.Context, tx *sql.Tx, s domain.ProjectStep) error {
	res, err := tx.ExecContext(ctx, `UPDATE project_steps SET
step_name=?, step_description=?, is_critical=?, allow_weekends=?, notes=?,
planned_start_date=?, planned_end_date=?, sla_days=?,
actual_start_date=?, actual_end_date=?, delay_days=?, status=?, updated_at=?
WHERE id=?`,
		s.StepName, s.StepDescription, boolInt(s.IsCritical), boolInt(s.AllowWeekends), nullableStringPtr(s.Notes),
		s.PlannedStartDate, s.PlannedEndDate, s.SLADays,
		nullableStringPtr(s.ActualStartDate), nullableStringPtr(s.ActualEndDate), nullableDelay(s.DelayDays), string(s.Status), s.UpdatedAt,
		s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOverdueSteps returns non-completed steps of live projects whose
// planned end date has passed, oldest deadline first. A department
// filter narrows the result to that department's projects.
func (r Repo) ListOverdueSteps(ctx context.Context, today string, departmentID *int64) ([]domain.ProjectStep, error) {
	query := `SELECT ` + prefixed("s", stepColumns) + ` FROM project_steps s
JOIN projects p ON p.id = s.project_id
WHERE p.deleted_at IS NULL AND s.status != 'completed' AND s.planned_end_date < ?`
	args := []any{today}
	if departmentID != nil {
		query += ` AND p.department_id = ?`
		args = append(args, *departmentID)
	}
	query += ` ORDER BY s.planned_end_date ASC, s.project_id, s.step_number`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ProjectStep
	for rows.Next() {
		s, err := scanStep(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func prefixed(alias, cols string) string {
	return alias + "." + strings.ReplaceAll(cols, ",", ","+alias+".")
}

func (r Repo) ListAudit(ctx context.Context, entityKind string, entityID int64, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,entity_kind,entity_id,field,old_value,new_value,actor_id,ts,metadata_json
FROM audit_log WHERE entity_kind=? AND entity_id=? ORDER BY ts DESC, id LIMIT ?`, entityKind, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditEntry
	for rows.Next() {
		e, err := scanAudit(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func scanAudit(scan func(dest ...any) error) (domain.AuditEntry, error) {
	var e domain.AuditEntry
	var old, newV, meta sql.NullString
	err := scan(&e.ID, &e.EntityKind, &e.EntityID, &e.Field, &old, &newV, &e.ActorID, &e.TS, &meta)
	if err != nil {
		return e, err
	}
	e.OldValue = old.String
	e.NewValue = newV.String
	e.Metadata = meta.String
	return e, nil
}
