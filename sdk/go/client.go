package proclinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal Procline HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Project represents the API project model.
type Project struct {
	ID                int64   `json:"id"`
	Code              string  `json:"code"`
	Name              string  `json:"name"`
	DepartmentID      int64   `json:"department_id"`
	ProcurementMethod string  `json:"procurement_method"`
	Budget            float64 `json:"budget"`
	Status            string  `json:"status"`
	PlannedStartDate  string  `json:"planned_start_date"`
}

// Step represents a project step with derived schedule fields.
type Step struct {
	ID                int64   `json:"id"`
	ProjectID         int64   `json:"project_id"`
	StepNumber        int     `json:"step_number"`
	StepName          string  `json:"step_name"`
	Status            string  `json:"status"`
	ComputedStatus    string  `json:"computed_status,omitempty"`
	PlannedStartDate  string  `json:"planned_start_date"`
	PlannedEndDate    string  `json:"planned_end_date"`
	ActualStartDate   *string `json:"actual_start_date,omitempty"`
	ActualEndDate     *string `json:"actual_end_date,omitempty"`
	DelayedDays       int     `json:"delayed_days"`
	DaysUntilDeadline int     `json:"days_until_deadline"`
	IsOverdue         bool    `json:"is_overdue"`
	WarningLevel      string  `json:"warning_level,omitempty"`
}

// Progress is the aggregate view of a project's steps.
type Progress struct {
	ProjectID          int64 `json:"project_id"`
	TotalSteps         int   `json:"total_steps"`
	CompletedSteps     int   `json:"completed_steps"`
	InProgressSteps    int   `json:"in_progress_steps"`
	PendingSteps       int   `json:"pending_steps"`
	OnHoldSteps        int   `json:"on_hold_steps"`
	OverdueSteps       int   `json:"overdue_steps"`
	ProgressPercentage int   `json:"progress_percentage"`
	TotalDelayDays     int   `json:"total_delay_days"`
	AverageDelayDays   int   `json:"average_delay_days"`
	CurrentStep        *Step `json:"current_step,omitempty"`
}

// CreatedProject is a project plus its generated step plan.
type CreatedProject struct {
	Project
	Steps []Step `json:"steps"`
}

// Department represents an organizational unit.
type Department struct {
	ID     int64  `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateProject creates a project and its generated step plan.
func (c *Client) CreateProject(ctx context.Context, code, name string, departmentID int64, method string, budget float64, plannedStart string) (CreatedProject, error) {
	body := map[string]any{
		"code":               code,
		"name":               name,
		"department_id":      departmentID,
		"procurement_method": method,
		"budget":             budget,
		"planned_start_date": plannedStart,
	}
	var resp CreatedProject
	err := c.do(ctx, http.MethodPost, "v1/projects", body, &resp)
	return resp, err
}

// GetProject fetches a project by id.
func (c *Client) GetProject(ctx context.Context, id int64) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v1/projects/%d", id), nil, &resp)
	return resp, err
}

// ListProjects lists projects visible to the authenticated actor.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp []Project
	err := c.do(ctx, http.MethodGet, "v1/projects", nil, &resp)
	return resp, err
}

// DeleteProject removes a project.
func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("v1/projects/%d", id), nil, nil)
}

// ListSteps lists the steps of a project in order.
func (c *Client) ListSteps(ctx context.Context, projectID int64) ([]Step, error) {
	var resp []Step
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v1/projects/%d/steps", projectID), nil, &resp)
	return resp, err
}

// GetStep fetches a step with its derived schedule fields.
func (c *Client) GetStep(ctx context.Context, id int64) (Step, error) {
	var resp Step
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v1/steps/%d", id), nil, &resp)
	return resp, err
}

// UpdateStepStatus moves a step through its lifecycle.
func (c *Client) UpdateStepStatus(ctx context.Context, id int64, status string, notes *string) (Step, error) {
	body := map[string]any{"status": status}
	if notes != nil {
		body["notes"] = *notes
	}
	var resp Step
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("v1/steps/%d/status", id), body, &resp)
	return resp, err
}

// UpdateStepDetails applies a partial edit to a step.
func (c *Client) UpdateStepDetails(ctx context.Context, id int64, patch map[string]any) (Step, error) {
	var resp Step
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("v1/steps/%d", id), patch, &resp)
	return resp, err
}

// GetProgress fetches the aggregate progress of a project.
func (c *Client) GetProgress(ctx context.Context, projectID int64) (Progress, error) {
	var resp Progress
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v1/projects/%d/progress", projectID), nil, &resp)
	return resp, err
}

// ListOverdueSteps lists every overdue step visible to the actor.
func (c *Client) ListOverdueSteps(ctx context.Context) ([]Step, error) {
	var resp []Step
	err := c.do(ctx, http.MethodGet, "v1/steps/overdue", nil, &resp)
	return resp, err
}

// ListDepartments lists departments.
func (c *Client) ListDepartments(ctx context.Context) ([]Department, error) {
	var resp []Department
	err := c.do(ctx, http.MethodGet, "v1/departments", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
