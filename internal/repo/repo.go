package repo

import (
	"context"
	"database/sql"
	"errors"

	"procline/internal/domain"
)

// Repo is the persistence boundary over the relational store.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertDepartment(ctx context.Context, d domain.Department) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO departments(code,name,active) VALUES (?,?,?)`,
		d.Code, d.Name, boolInt(d.Active))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) EnsureDepartment(ctx context.Context, tx *sql.Tx, code, name string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO departments(code,name,active) VALUES (?,?,1)`, code, name)
	return err
}

func (r Repo) GetDepartment(ctx context.Context, id int64) (domain.Department, error) {
	var d domain.Department
	var active int
	err := r.DB.QueryRowContext(ctx, `SELECT id,code,name,active FROM departments WHERE id=?`, id).
		Scan(&d.ID, &d.Code, &d.Name, &active)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	d.Active = active != 0
	return d, err
}

func (r Repo) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,code,name,active FROM departments ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Department
	for rows.Next() {
		var d domain.Department
		var active int
		if err := rows.Scan(&d.ID, &d.Code, &d.Name, &active); err != nil {
			return nil, err
		}
		d.Active = active != 0
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) InsertUser(ctx context.Context, u domain.User) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO users(name,role,department_id,active,created_at) VALUES (?,?,?,?,?)`,
		u.Name, string(u.Role), nullableID(u.DepartmentID), boolInt(u.Active), u.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	var role string
	var dept sql.NullInt64
	var active int
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,role,department_id,active,created_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Name, &role, &dept, &active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.Role = domain.Role(role)
	u.Active = active != 0
	if dept.Valid {
		u.DepartmentID = &dept.Int64
	}
	return u, nil
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,role,department_id,active,created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		var u domain.User
		var role string
		var dept sql.NullInt64
		var active int
		if err := rows.Scan(&u.ID, &u.Name, &role, &dept, &active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = domain.Role(role)
		u.Active = active != 0
		if dept.Valid {
			u.DepartmentID = &dept.Int64
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) InsertProjectTx(ctx context.Context, tx *sql.Tx, p domain.Project) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO projects(code,name,department_id,procurement_method,budget,status,created_by,planned_start_date,created_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		p.Code, p.Name, p.DepartmentID, p.ProcurementMethod, p.Budget, p.Status, p.CreatedBy, p.PlannedStartDate, p.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const projectColumns = `id,code,name,department_id,procurement_method,budget,status,created_by,planned_start_date,actual_start_date,actual_end_date,deleted_at,created_at`

func scanProject(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	var actualStart, actualEnd, deletedAt sql.NullString
	err := scan(&p.ID, &p.Code, &p.Name, &p.DepartmentID, &p.ProcurementMethod, &p.Budget,
		&p.Status, &p.CreatedBy, &p.PlannedStartDate, &actualStart, &actualEnd, &deletedAt, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if actualStart.Valid {
		p.ActualStartDate = &actualStart.String
	}
	if actualEnd.Valid {
		p.ActualEndDate = &actualEnd.String
	}
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.String
	}
	return p, nil
}

// GetProject returns a non-deleted project by id.
func (r Repo) GetProject(ctx context.Context, id int64) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=? AND deleted_at IS NULL`, id)
	return scanProject(row.Scan)
}

type ProjectFilters struct {
	DepartmentID *int64
	Status       string
}

func (r Repo) ListProjects(ctx context.Context, f ProjectFilters) ([]domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE deleted_at IS NULL`
	var args []any
	if f.DepartmentID != nil {
		query += ` AND department_id=?`
		args = append(args, *f.DepartmentID)
	}
	if f.Status != "" {
		query += ` AND status=?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// SoftDeleteProject tombstones a project; step and audit rows stay in place.
func (r Repo) SoftDeleteProject(ctx context.Context, tx *sql.Tx, id int64, deletedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET deleted_at=? WHERE id=? AND deleted_at IS NULL`, deletedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableID(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableDelay(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
