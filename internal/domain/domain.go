package domain

// Role of an authenticated actor.
type Role string

const (
	RoleStaff     Role = "staff"
	RoleAdmin     Role = "admin"
	RoleExecutive Role = "executive"
)

// ValidRole reports whether s is one of the known roles.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleStaff, RoleAdmin, RoleExecutive:
		return true
	}
	return false
}

// StepStatus is the stored lifecycle state of a project step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepOnHold     StepStatus = "on_hold"
	StepOverdue    StepStatus = "overdue"
)

// ValidStepStatus reports whether s is one of the five step statuses.
func ValidStepStatus(s string) bool {
	switch StepStatus(s) {
	case StepPending, StepInProgress, StepCompleted, StepOnHold, StepOverdue:
		return true
	}
	return false
}

// WarningLevel classifies how urgent a step's schedule position is.
type WarningLevel string

const (
	WarningNormal   WarningLevel = "normal"
	WarningWarning  WarningLevel = "warning"
	WarningCritical WarningLevel = "critical"
)

// Actor is the already-authenticated caller context. DepartmentID is nil for
// admin and executive users that are not attached to a single department.
type Actor struct {
	ID           int64  `json:"id"`
	Role         Role   `json:"role"`
	DepartmentID *int64 `json:"department_id,omitempty"`
}

type Department struct {
	ID     int64  `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	DepartmentID *int64 `json:"department_id,omitempty"`
	Active       bool   `json:"active"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID                int64   `json:"id"`
	Code              string  `json:"code"`
	Name              string  `json:"name"`
	DepartmentID      int64   `json:"department_id"`
	ProcurementMethod string  `json:"procurement_method"`
	Budget            float64 `json:"budget"`
	Status            string  `json:"status"`
	CreatedBy         int64   `json:"created_by"`
	PlannedStartDate  string  `json:"planned_start_date" format:"date"`
	ActualStartDate   *string `json:"actual_start_date,omitempty" format:"date"`
	ActualEndDate     *string `json:"actual_end_date,omitempty" format:"date"`
	DeletedAt         *string `json:"deleted_at,omitempty" format:"date-time"`
	CreatedAt         string  `json:"created_at" format:"date-time"`
}

// ProjectStep is the central entity: one ordered step of a project's
// procurement workflow. Actual dates are owned by the lifecycle engine and
// never set by detail updates. DelayDays is frozen at completion time.
type ProjectStep struct {
	ID               int64      `json:"id"`
	ProjectID        int64      `json:"project_id"`
	StepNumber       int        `json:"step_number"`
	StepName         string     `json:"step_name"`
	StepDescription  string     `json:"step_description,omitempty"`
	IsCritical       bool       `json:"is_critical"`
	AllowWeekends    bool       `json:"allow_weekends"`
	Notes            *string    `json:"notes,omitempty"`
	PlannedStartDate string     `json:"planned_start_date" format:"date"`
	PlannedEndDate   string     `json:"planned_end_date" format:"date"`
	SLADays          int        `json:"sla_days"`
	ActualStartDate  *string    `json:"actual_start_date,omitempty" format:"date"`
	ActualEndDate    *string    `json:"actual_end_date,omitempty" format:"date"`
	DelayDays        *int       `json:"delay_days,omitempty"`
	Status           StepStatus `json:"status" enum:"pending,in_progress,completed,on_hold,overdue"`
	CreatedAt        string     `json:"created_at" format:"date-time"`
	UpdatedAt        string     `json:"updated_at" format:"date-time"`
}

// StepView is a ProjectStep plus schedule fields derived at read time.
type StepView struct {
	ProjectStep
	ComputedStatus    StepStatus   `json:"computed_status"`
	DelayedDays       int          `json:"delayed_days"`
	DaysUntilDeadline int          `json:"days_until_deadline"`
	IsOverdue         bool         `json:"is_overdue"`
	WarningLevel      WarningLevel `json:"warning_level" enum:"normal,warning,critical"`
}

// StepDelay is the derived delay report for a single step.
type StepDelay struct {
	StepID            int64        `json:"step_id"`
	Status            StepStatus   `json:"status"`
	PlannedEndDate    string       `json:"planned_end_date" format:"date"`
	ActualEndDate     *string      `json:"actual_end_date,omitempty" format:"date"`
	DelayDays         int          `json:"delay_days"`
	DaysUntilDeadline int          `json:"days_until_deadline"`
	IsOverdue         bool         `json:"is_overdue"`
	WarningLevel      WarningLevel `json:"warning_level" enum:"normal,warning,critical"`
}

// Progress is the aggregate view of a project's steps.
type Progress struct {
	ProjectID          int64     `json:"project_id"`
	TotalSteps         int       `json:"total_steps"`
	CompletedSteps     int       `json:"completed_steps"`
	InProgressSteps    int       `json:"in_progress_steps"`
	PendingSteps       int       `json:"pending_steps"`
	OnHoldSteps        int       `json:"on_hold_steps"`
	OverdueSteps       int       `json:"overdue_steps"`
	ProgressPercentage int       `json:"progress_percentage"`
	TotalDelayDays     int       `json:"total_delay_days"`
	AverageDelayDays   int       `json:"average_delay_days"`
	CurrentStep        *StepView `json:"current_step,omitempty"`
}

// AuditEntry records one field-level change made by an actor.
type AuditEntry struct {
	ID         string `json:"id"`
	EntityKind string `json:"entity_kind"`
	EntityID   int64  `json:"entity_id"`
	Field      string `json:"field"`
	OldValue   string `json:"old_value,omitempty"`
	NewValue   string `json:"new_value,omitempty"`
	ActorID    int64  `json:"actor_id"`
	TS         string `json:"ts" format:"date-time"`
	Metadata   string `json:"metadata_json,omitempty"`
}
