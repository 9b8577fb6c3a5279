package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"procline/internal/audit"
	"procline/internal/config"
	"procline/internal/dates"
	"procline/internal/domain"
	"procline/internal/repo"
)

// Engine owns the step lifecycle: status transitions, actual-date stamping,
// delay freezing and auto-advancement. All writes go through one transaction
// per operation with an audit row for every field that changed.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Audit  audit.Writer
	Config *config.Config
	Now    func() time.Time
	Log    *slog.Logger
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Audit:  audit.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
		Log:    slog.Default(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) today() string {
	return dates.Format(e.now().UTC())
}

// ValidationError marks caller input that the engine refuses to act on.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

func validationf(format string, args ...any) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ProjectCreateOptions are parameters for creating a project with its
// generated step plan.
type ProjectCreateOptions struct {
	Code              string
	Name              string
	DepartmentID      int64
	ProcurementMethod string
	Budget            float64
	PlannedStartDate  string
	ActorID           int64
}

// CreateProject inserts a project and generates its steps from the
// procurement method template. Each step's planned window starts where the
// previous one ends, with the end pushed out by the step's SLA in working
// days (calendar days when the template allows weekends).
func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, []domain.ProjectStep, error) {
	if opts.Code == "" {
		return domain.Project{}, nil, validationf("code is required")
	}
	if opts.Name == "" {
		return domain.Project{}, nil, validationf("name is required")
	}
	if !dates.Valid(opts.PlannedStartDate) {
		return domain.Project{}, nil, validationf("planned_start_date must be YYYY-MM-DD")
	}
	tmpl, ok := e.Config.Method(opts.ProcurementMethod)
	if !ok {
		return domain.Project{}, nil, validationf("unknown procurement method %q", opts.ProcurementMethod)
	}
	if _, err := e.Repo.GetDepartment(ctx, opts.DepartmentID); err != nil {
		return domain.Project{}, nil, err
	}

	nowTS := e.now().UTC().Format(time.RFC3339)
	p := domain.Project{
		Code:              opts.Code,
		Name:              opts.Name,
		DepartmentID:      opts.DepartmentID,
		ProcurementMethod: opts.ProcurementMethod,
		Budget:            opts.Budget,
		Status:            "active",
		CreatedBy:         opts.ActorID,
		PlannedStartDate:  opts.PlannedStartDate,
		CreatedAt:         nowTS,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, nil, err
	}
	defer tx.Rollback()

	p.ID, err = e.Repo.InsertProjectTx(ctx, tx, p)
	if err != nil {
		return domain.Project{}, nil, fmt.Errorf("insert project: %w", err)
	}

	steps := make([]domain.ProjectStep, 0, len(tmpl.Steps))
	start, _ := dates.Parse(opts.PlannedStartDate)
	for i, st := range tmpl.Steps {
		end := dates.AddWorkingDays(start, st.SLADays, st.AllowWeekends)
		s := domain.ProjectStep{
			ProjectID:        p.ID,
			StepNumber:       i + 1,
			StepName:         st.Name,
			StepDescription:  st.Description,
			IsCritical:       st.Critical,
			AllowWeekends:    st.AllowWeekends,
			PlannedStartDate: dates.Format(start),
			PlannedEndDate:   dates.Format(end),
			SLADays:          st.SLADays,
			Status:           domain.StepPending,
			CreatedAt:        nowTS,
			UpdatedAt:        nowTS,
		}
		s.ID, err = e.Repo.InsertStepTx(ctx, tx, s)
		if err != nil {
			return domain.Project{}, nil, fmt.Errorf("insert step %d: %w", s.StepNumber, err)
		}
		steps = append(steps, s)
		start = end
	}

	if err := e.Audit.Append(ctx, tx, opts.ActorID, audit.Change{
		EntityKind: "project",
		EntityID:   p.ID,
		Field:      "status",
		New:        p.Status,
		Metadata:   map[string]any{"code": p.Code, "method": p.ProcurementMethod, "steps": len(steps)},
	}); err != nil {
		return domain.Project{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, nil, err
	}
	return p, steps, nil
}

// UpdateStepStatus moves a step to a new lifecycle status. Actual dates are
// stamped exactly once: the first move into in_progress sets the actual
// start, and the first move into completed sets the actual end and freezes
// the delay against the planned end. Completing a step then tries to start
// the next pending step in its own follow-up transaction.
func (e Engine) UpdateStepStatus(ctx context.Context, stepID int64, newStatus string, actorID int64, notes *string) (domain.ProjectStep, error) {
	if !domain.ValidStepStatus(newStatus) {
		return domain.ProjectStep{}, validationf("invalid status %q", newStatus)
	}
	target := domain.StepStatus(newStatus)
	today := e.today()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ProjectStep{}, err
	}
	defer tx.Rollback()

	s, err := e.Repo.GetStepTx(ctx, tx, stepID)
	if err != nil {
		return domain.ProjectStep{}, err
	}

	changes := []audit.Change{{
		EntityKind: "step",
		EntityID:   s.ID,
		Field:      "status",
		Old:        string(s.Status),
		New:        string(target),
	}}

	switch target {
	case domain.StepInProgress:
		if s.ActualStartDate == nil {
			s.ActualStartDate = &today
			changes = append(changes, audit.Change{EntityKind: "step", EntityID: s.ID, Field: "actual_start_date", New: today})
		}
	case domain.StepCompleted:
		if s.ActualEndDate == nil {
			s.ActualEndDate = &today
			changes = append(changes, audit.Change{EntityKind: "step", EntityID: s.ID, Field: "actual_end_date", New: today})
		}
		if s.DelayDays == nil {
			planned, _ := dates.Parse(s.PlannedEndDate)
			actual, _ := dates.Parse(*s.ActualEndDate)
			d := dates.DaysBetween(planned, actual)
			if d < 0 {
				d = 0
			}
			s.DelayDays = &d
			changes = append(changes, audit.Change{EntityKind: "step", EntityID: s.ID, Field: "delay_days", New: strconv.Itoa(d)})
		}
	}
	if notes != nil {
		old := ""
		if s.Notes != nil {
			old = *s.Notes
		}
		s.Notes = notes
		changes = append(changes, audit.Change{EntityKind: "step", EntityID: s.ID, Field: "notes", Old: old, New: *notes})
	}
	s.Status = target
	s.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	if err := e.Repo.UpdateStepTx(ctx, tx, s); err != nil {
		return domain.ProjectStep{}, err
	}
	if err := e.Audit.AppendAll(ctx, tx, actorID, changes); err != nil {
		return domain.ProjectStep{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ProjectStep{}, err
	}

	if target == domain.StepCompleted {
		e.autoStartNext(ctx, s, actorID)
	}
	return s, nil
}

// autoStartNext starts the immediate successor of a just-completed step if
// that successor is still pending. It runs after the completing transaction
// committed, so a failure here never undoes the completion; it is logged and
// dropped.
func (e Engine) autoStartNext(ctx context.Context, completed domain.ProjectStep, actorID int64) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		e.Log.Warn("auto-advance skipped", "step", completed.ID, "error", err)
		return
	}
	defer tx.Rollback()

	next, err := e.Repo.GetStepByNumberTx(ctx, tx, completed.ProjectID, completed.StepNumber+1)
	if err != nil {
		if err != repo.ErrNotFound {
			e.Log.Warn("auto-advance skipped", "step", completed.ID, "error", err)
		}
		return
	}
	if next.Status != domain.StepPending {
		return
	}

	today := e.today()
	next.Status = domain.StepInProgress
	next.ActualStartDate = &today
	next.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateStepTx(ctx, tx, next); err != nil {
		e.Log.Warn("auto-advance failed", "step", next.ID, "error", err)
		return
	}
	err = e.Audit.AppendAll(ctx, tx, actorID, []audit.Change{
		{EntityKind: "step", EntityID: next.ID, Field: "status", Old: string(domain.StepPending), New: string(domain.StepInProgress), Metadata: map[string]any{"auto": true, "after_step": completed.ID}},
		{EntityKind: "step", EntityID: next.ID, Field: "actual_start_date", New: today, Metadata: map[string]any{"auto": true}},
	})
	if err != nil {
		e.Log.Warn("auto-advance failed", "step", next.ID, "error", err)
		return
	}
	if err := tx.Commit(); err != nil {
		e.Log.Warn("auto-advance failed", "step", next.ID, "error", err)
	}
}

// StepDetailsPatch carries the editable step fields. Nil means "leave as
// is". Actual dates, delay and status are not patchable here.
type StepDetailsPatch struct {
	StepName         *string
	StepDescription  *string
	Notes            *string
	PlannedStartDate *string
	PlannedEndDate   *string
	SLADays          *int
	IsCritical       *bool
	AllowWeekends    *bool
}

func (p StepDetailsPatch) empty() bool {
	return p.StepName == nil && p.StepDescription == nil && p.Notes == nil &&
		p.PlannedStartDate == nil && p.PlannedEndDate == nil && p.SLADays == nil &&
		p.IsCritical == nil && p.AllowWeekends == nil
}

// UpdateStepDetails applies a partial edit to a step's descriptive and
// planning fields, writing one audit row per field that actually changed.
func (e Engine) UpdateStepDetails(ctx context.Context, stepID int64, patch StepDetailsPatch, actorID int64) (domain.ProjectStep, error) {
	if patch.empty() {
		return domain.ProjectStep{}, validationf("no fields to update")
	}
	if patch.PlannedStartDate != nil && !dates.Valid(*patch.PlannedStartDate) {
		return domain.ProjectStep{}, validationf("planned_start_date must be YYYY-MM-DD")
	}
	if patch.PlannedEndDate != nil && !dates.Valid(*patch.PlannedEndDate) {
		return domain.ProjectStep{}, validationf("planned_end_date must be YYYY-MM-DD")
	}
	if patch.SLADays != nil && *patch.SLADays <= 0 {
		return domain.ProjectStep{}, validationf("sla_days must be positive")
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ProjectStep{}, err
	}
	defer tx.Rollback()

	s, err := e.Repo.GetStepTx(ctx, tx, stepID)
	if err != nil {
		return domain.ProjectStep{}, err
	}

	var changes []audit.Change
	record := func(field, old, new string) {
		if old == new {
			return
		}
		changes = append(changes, audit.Change{EntityKind: "step", EntityID: s.ID, Field: field, Old: old, New: new})
	}
	if patch.StepName != nil {
		record("step_name", s.StepName, *patch.StepName)
		s.StepName = *patch.StepName
	}
	if patch.StepDescription != nil {
		record("step_description", s.StepDescription, *patch.StepDescription)
		s.StepDescription = *patch.StepDescription
	}
	if patch.Notes != nil {
		old := ""
		if s.Notes != nil {
			old = *s.Notes
		}
		record("notes", old, *patch.Notes)
		s.Notes = patch.Notes
	}
	if patch.PlannedStartDate != nil {
		record("planned_start_date", s.PlannedStartDate, *patch.PlannedStartDate)
		s.PlannedStartDate = *patch.PlannedStartDate
	}
	if patch.PlannedEndDate != nil {
		record("planned_end_date", s.PlannedEndDate, *patch.PlannedEndDate)
		s.PlannedEndDate = *patch.PlannedEndDate
	}
	if patch.SLADays != nil {
		record("sla_days", strconv.Itoa(s.SLADays), strconv.Itoa(*patch.SLADays))
		s.SLADays = *patch.SLADays
	}
	if patch.IsCritical != nil {
		record("is_critical", strconv.FormatBool(s.IsCritical), strconv.FormatBool(*patch.IsCritical))
		s.IsCritical = *patch.IsCritical
	}
	if patch.AllowWeekends != nil {
		record("allow_weekends", strconv.FormatBool(s.AllowWeekends), strconv.FormatBool(*patch.AllowWeekends))
		s.AllowWeekends = *patch.AllowWeekends
	}

	if len(changes) == 0 {
		// Identical values are a no-op, not an error.
		return s, nil
	}

	s.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateStepTx(ctx, tx, s); err != nil {
		return domain.ProjectStep{}, err
	}
	if err := e.Audit.AppendAll(ctx, tx, actorID, changes); err != nil {
		return domain.ProjectStep{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ProjectStep{}, err
	}
	return s, nil
}

// DeleteProject tombstones a project. Its steps and audit trail stay
// readable through the audit API but drop out of every listing.
func (e Engine) DeleteProject(ctx context.Context, projectID int64, actorID int64) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.SoftDeleteProject(ctx, tx, projectID, ts); err != nil {
		return err
	}
	if err := e.Audit.Append(ctx, tx, actorID, audit.Change{
		EntityKind: "project",
		EntityID:   projectID,
		Field:      "deleted_at",
		New:        ts,
	}); err != nil {
		return err
	}
	return tx.Commit()
}
