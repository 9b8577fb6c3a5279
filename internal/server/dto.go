package server

import (
	"procline/internal/domain"
	"procline/internal/engine"
)

// Request payloads

type CreateProjectRequest struct {
	Code              string  `json:"code"`
	Name              string  `json:"name"`
	DepartmentID      int64   `json:"department_id"`
	ProcurementMethod string  `json:"procurement_method"`
	Budget            float64 `json:"budget,omitempty"`
	PlannedStartDate  string  `json:"planned_start_date" format:"date"`
}

type UpdateStepStatusRequest struct {
	Status string  `json:"status" enum:"pending,in_progress,completed,on_hold,overdue"`
	Notes  *string `json:"notes,omitempty"`
}

type UpdateStepDetailsRequest struct {
	StepName         *string `json:"step_name,omitempty"`
	StepDescription  *string `json:"step_description,omitempty"`
	Notes            *string `json:"notes,omitempty"`
	PlannedStartDate *string `json:"planned_start_date,omitempty" format:"date"`
	PlannedEndDate   *string `json:"planned_end_date,omitempty" format:"date"`
	SLADays          *int    `json:"sla_days,omitempty"`
	IsCritical       *bool   `json:"is_critical,omitempty"`
	AllowWeekends    *bool   `json:"allow_weekends,omitempty"`
}

func (r UpdateStepDetailsRequest) patch() engine.StepDetailsPatch {
	return engine.StepDetailsPatch{
		StepName:         r.StepName,
		StepDescription:  r.StepDescription,
		Notes:            r.Notes,
		PlannedStartDate: r.PlannedStartDate,
		PlannedEndDate:   r.PlannedEndDate,
		SLADays:          r.SLADays,
		IsCritical:       r.IsCritical,
		AllowWeekends:    r.AllowWeekends,
	}
}

type DevLoginRequest struct {
	UserID       int64  `json:"user_id"`
	Role         string `json:"role" enum:"staff,admin,executive"`
	DepartmentID *int64 `json:"department_id,omitempty"`
}

// Response payloads

type ProjectResponse struct {
	domain.Project
}

type CreateProjectResponse struct {
	domain.Project
	Steps []domain.ProjectStep `json:"steps"`
}

type StepResponse struct {
	domain.StepView
}

type DelayResponse struct {
	domain.StepDelay
}

type ProgressResponse struct {
	domain.Progress
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

func mapProjects(items []domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, len(items))
	for i, p := range items {
		out[i] = ProjectResponse{Project: p}
	}
	return out
}

func mapSteps(items []domain.StepView) []StepResponse {
	out := make([]StepResponse, len(items))
	for i, s := range items {
		out[i] = StepResponse{StepView: s}
	}
	return out
}
