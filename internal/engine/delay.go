package engine

import (
	"time"

	"procline/internal/dates"
	"procline/internal/domain"
)

// rawDelay is the step's schedule position in days relative to its planned
// end: positive means late, negative means days of slack remaining. For a
// completed step the actual end date is authoritative; for anything else the
// clock is still running against now.
func rawDelay(s domain.ProjectStep, now time.Time) int {
	planned, err := dates.Parse(s.PlannedEndDate)
	if err != nil {
		return 0
	}
	if s.Status == domain.StepCompleted && s.ActualEndDate != nil {
		actual, err := dates.Parse(*s.ActualEndDate)
		if err != nil {
			return 0
		}
		return dates.DaysBetween(planned, actual)
	}
	return dates.DaysBetween(planned, now)
}

// warningFor grades a schedule position. A step more than a week late is
// critical, more than three days late is a warning, and a step within three
// days of its deadline gets an early warning before it slips.
func warningFor(delay int) domain.WarningLevel {
	switch {
	case delay > 7:
		return domain.WarningCritical
	case delay > 3:
		return domain.WarningWarning
	case delay >= -3 && delay < 0:
		return domain.WarningWarning
	default:
		return domain.WarningNormal
	}
}

// CalculateDelay builds the delay report for one step. Late days are
// reported as a non-negative count and slack as days-until-deadline, so at
// most one of the two is ever non-zero.
func (e Engine) CalculateDelay(s domain.ProjectStep) domain.StepDelay {
	raw := rawDelay(s, e.now().UTC())
	// Frozen at completion time; the stored value wins over recomputation.
	if s.Status == domain.StepCompleted && s.DelayDays != nil {
		frozen := *s.DelayDays
		return domain.StepDelay{
			StepID:            s.ID,
			Status:            s.Status,
			PlannedEndDate:    s.PlannedEndDate,
			ActualEndDate:     s.ActualEndDate,
			DelayDays:         frozen,
			DaysUntilDeadline: 0,
			IsOverdue:         frozen > 0,
			WarningLevel:      warningFor(raw),
		}
	}
	d := domain.StepDelay{
		StepID:         s.ID,
		Status:         s.Status,
		PlannedEndDate: s.PlannedEndDate,
		ActualEndDate:  s.ActualEndDate,
		WarningLevel:   warningFor(raw),
	}
	if raw > 0 {
		d.DelayDays = raw
		d.IsOverdue = true
	} else {
		d.DaysUntilDeadline = -raw
	}
	return d
}

// View decorates a stored step with its derived schedule fields. A step
// that is past its planned end and not completed reads as overdue no matter
// what status is stored.
func (e Engine) View(s domain.ProjectStep) domain.StepView {
	d := e.CalculateDelay(s)
	computed := s.Status
	if d.IsOverdue && s.Status != domain.StepCompleted {
		computed = domain.StepOverdue
	}
	return domain.StepView{
		ProjectStep:       s,
		ComputedStatus:    computed,
		DelayedDays:       d.DelayDays,
		DaysUntilDeadline: d.DaysUntilDeadline,
		IsOverdue:         d.IsOverdue,
		WarningLevel:      d.WarningLevel,
	}
}

// Views maps View over a slice, preserving order.
func (e Engine) Views(steps []domain.ProjectStep) []domain.StepView {
	out := make([]domain.StepView, len(steps))
	for i, s := range steps {
		out[i] = e.View(s)
	}
	return out
}
