package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"procline/internal/config"
	"procline/internal/db"
	"procline/internal/domain"
	"procline/internal/engine"
	"procline/internal/migrate"
	"procline/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	DeptID int64
	now    *time.Time
}

func (env *testEnv) setNow(t time.Time) { *env.now = t }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// 2026-03-02 is a Monday, which keeps working-day math predictable.
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return now }
	ctx := context.Background()
	deptID, err := eng.Repo.InsertDepartment(ctx, domain.Department{Code: "PROC", Name: "Procurement", Active: true})
	if err != nil {
		t.Fatalf("seed department: %v", err)
	}
	return &testEnv{Engine: eng, Ctx: ctx, DeptID: deptID, now: &now}
}

func (env *testEnv) createProject(t *testing.T, method string) (domain.Project, []domain.ProjectStep) {
	t.Helper()
	p, steps, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{
		Code:              "PRJ-1",
		Name:              "Office equipment",
		DepartmentID:      env.DeptID,
		ProcurementMethod: method,
		Budget:            25000,
		PlannedStartDate:  "2026-03-02",
		ActorID:           1,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p, steps
}

func TestProjectCreateGeneratesStepPlan(t *testing.T) {
	env := newTestEnv(t)
	_, steps := env.createProject(t, "direct_purchase")

	tmpl, _ := config.Default().Method("direct_purchase")
	if len(steps) != len(tmpl.Steps) {
		t.Fatalf("expected %d steps, got %d", len(tmpl.Steps), len(steps))
	}
	if steps[0].PlannedStartDate != "2026-03-02" {
		t.Fatalf("first step start = %s", steps[0].PlannedStartDate)
	}
	for i, s := range steps {
		if s.StepNumber != i+1 {
			t.Fatalf("step %d has number %d", i, s.StepNumber)
		}
		if s.Status != domain.StepPending {
			t.Fatalf("step %d status = %s", s.StepNumber, s.Status)
		}
		if i > 0 && s.PlannedStartDate != steps[i-1].PlannedEndDate {
			t.Fatalf("step %d starts %s but step %d ends %s", s.StepNumber, s.PlannedStartDate, steps[i-1].StepNumber, steps[i-1].PlannedEndDate)
		}
	}
}

func TestUnknownMethodRejected(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{
		Code: "PRJ-X", Name: "x", DepartmentID: env.DeptID,
		ProcurementMethod: "sole_source", PlannedStartDate: "2026-03-02", ActorID: 1,
	})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestActualStartStampedOnce(t *testing.T) {
	env := newTestEnv(t)
	_, steps := env.createProject(t, "direct_purchase")

	s, err := env.Engine.UpdateStepStatus(env.Ctx, steps[0].ID, "in_progress", 1, nil)
	if err != nil {
		t.Fatalf("start step: %v", err)
	}
	if s.ActualStartDate == nil || *s.ActualStartDate != "2026-03-02" {
		t.Fatalf("actual start = %v", s.ActualStartDate)
	}

	env.setNow(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	if _, err := env.Engine.UpdateStepStatus(env.Ctx, s.ID, "on_hold", 1, nil); err != nil {
		t.Fatalf("hold: %v", err)
	}
	s, err = env.Engine.UpdateStepStatus(env.Ctx, s.ID, "in_progress", 1, nil)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if *s.ActualStartDate != "2026-03-02" {
		t.Fatalf("actual start moved to %s on resume", *s.ActualStartDate)
	}
}

func TestCompletionFreezesDelay(t *testing.T) {
	env := newTestEnv(t)
	_, steps := env.createProject(t, "direct_purchase")
	first := steps[0]

	// Complete well past the planned end.
	planned, _ := time.Parse("2006-01-02", first.PlannedEndDate)
	late := planned.AddDate(0, 0, 5)
	env.setNow(late)
	s, err := env.Engine.UpdateStepStatus(env.Ctx, first.ID, "completed", 1, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if s.DelayDays == nil || *s.DelayDays != 5 {
		t.Fatalf("delay = %v, want 5", s.DelayDays)
	}

	// The clock keeps moving; the frozen value does not.
	env.setNow(late.AddDate(0, 0, 30))
	got, err := env.Engine.Repo.GetStep(env.Ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	d := env.Engine.CalculateDelay(got)
	if d.DelayDays != 5 {
		t.Fatalf("reported delay drifted to %d", d.DelayDays)
	}
	// Finished late stays overdue in the delay report, but never reads as
	// status overdue.
	if !d.IsOverdue {
		t.Fatalf("late-completed step lost its overdue flag")
	}
	if v := env.Engine.View(got); v.ComputedStatus != domain.StepCompleted {
		t.Fatalf("computed status = %s, want completed", v.ComputedStatus)
	}
}

func TestEarlyCompletionHasZeroDelay(t *testing.T) {
	env := newTestEnv(t)
	_, steps := env.createProject(t, "direct_purchase")

	s, err := env.Engine.UpdateStepStatus(env.Ctx, steps[0].ID, "completed", 1, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if s.DelayDays == nil || *s.DelayDays != 0 {
		t.Fatalf("delay = %v, want 0", s.DelayDays)
	}
	if env.Engine.CalculateDelay(s).IsOverdue {
		t.Fatalf("on-time completion reported as overdue")
	}
}

func TestAutoAdvanceStartsNextPendingStep(t *testing.T) {
	env := newTestEnv(t)
	_, steps := env.createProject(t, "direct_purchase")

	if _, err := env.Engine.UpdateStepStatus(env.Ctx, steps[0].ID, "completed", 1, nil); err != nil {
		t.Fatalf("complete step 1: %v", err)
	}
	next, err := env.Engine.Repo.GetStep(env.Ctx, steps[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	if next.Status != domain.StepInProgress {
		t.Fatalf("step 2 status = %s, want in_progress", next.Status)
	}
	if next.ActualStartDate == nil || *next.ActualStartDate != "2026-03-02" {
		t.Fatalf("step 2 actual start = %v", next.ActualStartDate)
	}
	// Only the immediate successor moves.
	third, err := env.Engine.Repo.GetStep(env.Ctx, steps[2].ID)
	if err != nil {
		t.Fatal(err)
	}
	if third.Status != domain.StepPending {
		t.Fatalf("step 3 status = %s, want pending", third.Status)
	}
}

func TestAutoAdvanceSkipsNonPendingSuccessor(t *testing.T) {
	env := newTestEnv(t)
	_, steps := env.createProject(t, "direct_purchase")

	if _, err := env.Engine.UpdateStepStatus(env.Ctx, steps[1].ID, "on_hold", 1, nil); err != nil {
		t.Fatalf("hold step 2: %v", err)
	}
	if _, err := env.Engine.UpdateStepStatus(env.Ctx, steps[0].ID, "completed", 1, nil); err != nil {
		t.Fatalf("complete step 1: %v", err)
	}
	next, err := env.Engine.Repo.GetStep(env.Ctx, steps[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	if next.Status != domain.StepOnHold {
		t.Fatalf("held step was auto-started: %s", next.Status)
	}
	if next.ActualStartDate != nil {
		t.Fatalf("held step got actual start %s", *next.ActualStartDate)
	}
}

func TestCompletingLastStepDoesNotError(t *testing.T) {
	env := newTestEnv(t)
	_, steps := env.createProject(t, "direct_purchase")
	last := steps[len(steps)-1]
	if _, err := env.Engine.UpdateStepStatus(env.Ctx, last.ID, "completed", 1, nil); err != nil {
		t.Fatalf("complete last step: %v", err)
	}
}

func TestInvalidStatusRejected(t *testing.T) {
	env := newTestEnv(t)
	_, steps := env.createProject(t, "direct_purchase")

	_, err := env.Engine.UpdateStepStatus(env.Ctx, steps[0].ID, "done", 1, nil)
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	// The step is untouched.
	s, err := env.Engine.Repo.GetStep(env.Ctx, steps[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != domain.StepPending {
		t.Fatalf("step status changed to %s", s.Status)
	}
}

func TestUnknownStepIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.UpdateStepStatus(env.Ctx, 9999, "in_progress", 1, nil)
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProgressAggregation(t *testing.T) {
	env := newTestEnv(t)
	p, steps := env.createProject(t, "direct_purchase")

	// Complete step 1 on time; auto-advance starts step 2.
	if _, err := env.Engine.UpdateStepStatus(env.Ctx, steps[0].ID, "completed", 1, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	prog, err := env.Engine.Progress(env.Ctx, p.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if prog.TotalSteps != 3 || prog.CompletedSteps != 1 || prog.InProgressSteps != 1 || prog.PendingSteps != 1 {
		t.Fatalf("counters = %+v", prog)
	}
	if prog.ProgressPercentage != 33 {
		t.Fatalf("percentage = %d, want 33", prog.ProgressPercentage)
	}
	if prog.CurrentStep == nil || prog.CurrentStep.StepNumber != 2 {
		t.Fatalf("current step = %+v", prog.CurrentStep)
	}
	if prog.TotalDelayDays != 0 {
		t.Fatalf("total delay = %d", prog.TotalDelayDays)
	}
}

func TestProgressCountsOverdueSteps(t *testing.T) {
	env := newTestEnv(t)
	p, steps := env.createProject(t, "direct_purchase")

	if _, err := env.Engine.UpdateStepStatus(env.Ctx, steps[0].ID, "in_progress", 1, nil); err != nil {
		t.Fatal(err)
	}
	// Jump past every planned end date.
	env.setNow(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	prog, err := env.Engine.Progress(env.Ctx, p.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if prog.OverdueSteps != 3 {
		t.Fatalf("overdue = %d, want 3", prog.OverdueSteps)
	}
	if prog.InProgressSteps != 1 || prog.PendingSteps != 2 {
		t.Fatalf("stored counters disturbed: %+v", prog)
	}
	if prog.TotalDelayDays == 0 {
		t.Fatalf("expected accumulated delay")
	}
}

func TestProgressFiveStepMix(t *testing.T) {
	env := newTestEnv(t)
	p, steps, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{
		Code: "PRJ-5", Name: "five steps", DepartmentID: env.DeptID,
		ProcurementMethod: "restricted_tender", PlannedStartDate: "2026-03-02", ActorID: 1,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if len(steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(steps))
	}
	// completed, completed, in_progress, pending, pending
	for _, id := range []int64{steps[0].ID, steps[1].ID} {
		if _, err := env.Engine.UpdateStepStatus(env.Ctx, id, "completed", 1, nil); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}
	// Auto-advance already moved step 3 to in_progress.
	prog, err := env.Engine.Progress(env.Ctx, p.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if prog.TotalSteps != 5 || prog.CompletedSteps != 2 {
		t.Fatalf("counters = %+v", prog)
	}
	if prog.ProgressPercentage != 40 {
		t.Fatalf("percentage = %d, want 40", prog.ProgressPercentage)
	}
	if prog.InProgressSteps != 1 || prog.PendingSteps != 2 {
		t.Fatalf("counters = %+v", prog)
	}
}

func TestCurrentStepIsLowestOpenStep(t *testing.T) {
	env := newTestEnv(t)
	p, steps := env.createProject(t, "direct_purchase")

	// Step 2 runs while step 1 is still pending; the current step is still
	// step 1.
	if _, err := env.Engine.UpdateStepStatus(env.Ctx, steps[1].ID, "in_progress", 1, nil); err != nil {
		t.Fatal(err)
	}
	prog, err := env.Engine.Progress(env.Ctx, p.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if prog.CurrentStep == nil || prog.CurrentStep.StepNumber != 1 {
		t.Fatalf("current step = %+v, want step 1", prog.CurrentStep)
	}
}

func TestProgressEmptyProjectNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Progress(env.Ctx, 424242)
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStepDetailsPatchAndAudit(t *testing.T) {
	env := newTestEnv(t)
	_, steps := env.createProject(t, "direct_purchase")

	name := "Vendor shortlist"
	sla := 10
	s, err := env.Engine.UpdateStepDetails(env.Ctx, steps[0].ID, engine.StepDetailsPatch{
		StepName: &name,
		SLADays:  &sla,
	}, 1)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if s.StepName != name || s.SLADays != 10 {
		t.Fatalf("patch not applied: %+v", s)
	}
	entries, err := env.Engine.Repo.ListAudit(env.Ctx, "step", s.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	fields := map[string]bool{}
	for _, e := range entries {
		fields[e.Field] = true
	}
	if !fields["step_name"] || !fields["sla_days"] {
		t.Fatalf("missing audit rows: %+v", entries)
	}

	_, err = env.Engine.UpdateStepDetails(env.Ctx, steps[0].ID, engine.StepDetailsPatch{}, 1)
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("empty patch accepted: %v", err)
	}
}

func TestDetailsNeverTouchActualDates(t *testing.T) {
	env := newTestEnv(t)
	_, steps := env.createProject(t, "direct_purchase")
	if _, err := env.Engine.UpdateStepStatus(env.Ctx, steps[0].ID, "in_progress", 1, nil); err != nil {
		t.Fatal(err)
	}
	end := "2026-04-30"
	s, err := env.Engine.UpdateStepDetails(env.Ctx, steps[0].ID, engine.StepDetailsPatch{PlannedEndDate: &end}, 1)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if s.ActualStartDate == nil || *s.ActualStartDate != "2026-03-02" {
		t.Fatalf("actual start changed: %v", s.ActualStartDate)
	}
	if s.PlannedEndDate != end {
		t.Fatalf("planned end = %s", s.PlannedEndDate)
	}
}

func TestOverdueViewComputedStatus(t *testing.T) {
	env := newTestEnv(t)
	_, steps := env.createProject(t, "direct_purchase")

	env.setNow(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	s, err := env.Engine.Repo.GetStep(env.Ctx, steps[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	v := env.Engine.View(s)
	if v.Status != domain.StepPending {
		t.Fatalf("stored status mutated: %s", v.Status)
	}
	if v.ComputedStatus != domain.StepOverdue || !v.IsOverdue {
		t.Fatalf("view = %+v", v)
	}
	if v.WarningLevel != domain.WarningCritical {
		t.Fatalf("warning = %s", v.WarningLevel)
	}
}

func TestWarningLevels(t *testing.T) {
	env := newTestEnv(t)
	_, steps := env.createProject(t, "direct_purchase")
	first := steps[0]
	planned, _ := time.Parse("2006-01-02", first.PlannedEndDate)

	cases := []struct {
		name string
		now  time.Time
		want domain.WarningLevel
	}{
		{"far before deadline", planned.AddDate(0, 0, -10), domain.WarningNormal},
		{"two days of slack", planned.AddDate(0, 0, -2), domain.WarningWarning},
		{"on the deadline", planned, domain.WarningNormal},
		{"five days late", planned.AddDate(0, 0, 5), domain.WarningWarning},
		{"nine days late", planned.AddDate(0, 0, 9), domain.WarningCritical},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env.setNow(tc.now)
			s, err := env.Engine.Repo.GetStep(env.Ctx, first.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got := env.Engine.CalculateDelay(s).WarningLevel; got != tc.want {
				t.Fatalf("warning = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDeleteProjectHidesIt(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.createProject(t, "direct_purchase")

	if err := env.Engine.DeleteProject(env.Ctx, p.ID, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.Repo.GetProject(env.Ctx, p.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("deleted project still readable: %v", err)
	}
	list, err := env.Engine.Repo.ListProjects(env.Ctx, repo.ProjectFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("deleted project still listed")
	}
}

func TestDeletedProjectStepsUnreachable(t *testing.T) {
	env := newTestEnv(t)
	p, steps := env.createProject(t, "direct_purchase")

	if err := env.Engine.DeleteProject(env.Ctx, p.ID, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.Repo.GetStep(env.Ctx, steps[0].ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("step of deleted project still readable: %v", err)
	}
	if _, err := env.Engine.UpdateStepStatus(env.Ctx, steps[0].ID, "in_progress", 1, nil); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("step of deleted project still mutable: %v", err)
	}
}
