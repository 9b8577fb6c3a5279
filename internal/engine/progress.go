package engine

import (
	"context"
	"math"

	"procline/internal/domain"
	"procline/internal/repo"
)

// Progress aggregates a project's steps into counters, a completion
// percentage and a delay summary. It is a pure read: nothing here ever
// writes a status back, so a stale stored status cannot leak in through a
// progress call.
func (e Engine) Progress(ctx context.Context, projectID int64) (domain.Progress, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return domain.Progress{}, err
	}
	steps, err := e.Repo.ListStepsByProject(ctx, projectID)
	if err != nil {
		return domain.Progress{}, err
	}
	if len(steps) == 0 {
		return domain.Progress{}, repo.ErrNotFound
	}

	p := domain.Progress{ProjectID: projectID, TotalSteps: len(steps)}
	totalDelay := 0
	var current *domain.ProjectStep

	for i := range steps {
		s := steps[i]
		d := e.CalculateDelay(s)
		switch s.Status {
		case domain.StepCompleted:
			p.CompletedSteps++
		case domain.StepInProgress:
			p.InProgressSteps++
		case domain.StepPending:
			p.PendingSteps++
		case domain.StepOnHold:
			p.OnHoldSteps++
		}
		// Computed at read time: any non-completed step past its planned
		// end counts, so the counter matches the overdue listing. A step
		// that finished late does not.
		if s.Status != domain.StepCompleted && d.IsOverdue {
			p.OverdueSteps++
		}
		totalDelay += d.DelayDays
		// The current step is the lowest-numbered one still open, whatever
		// its neighbors are doing.
		if current == nil && (s.Status == domain.StepInProgress || s.Status == domain.StepPending) {
			current = &steps[i]
		}
	}

	p.ProgressPercentage = 100 * p.CompletedSteps / p.TotalSteps
	p.TotalDelayDays = totalDelay
	p.AverageDelayDays = int(math.Round(float64(totalDelay) / float64(p.TotalSteps)))

	if current != nil {
		v := e.View(*current)
		p.CurrentStep = &v
	}
	return p, nil
}
