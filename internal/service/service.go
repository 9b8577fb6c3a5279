package service

import (
	"context"
	"errors"

	"procline/internal/access"
	"procline/internal/domain"
	"procline/internal/engine"
	"procline/internal/repo"
)

// Service sits between the transports and the engine. Every call resolves
// the owning department of the target resource, runs the access check for
// the actor, and only then reaches the engine or the repo.
//
// Department-scoped roles get the same forbidden answer whether the target
// exists in another department or not at all, so probing ids leaks nothing.
// Roles that can see every department get real not-found answers.
type Service struct {
	Engine engine.Engine
}

func New(eng engine.Engine) Service {
	return Service{Engine: eng}
}

func (s Service) repo() repo.Repo { return s.Engine.Repo }

func forbidden(actor domain.Actor, action access.Action) error {
	return access.ForbiddenError{Action: action, Role: actor.Role}
}

// projectFor loads a project subject to the actor's reach for the action.
func (s Service) projectFor(ctx context.Context, actor domain.Actor, action access.Action, projectID int64) (domain.Project, error) {
	switch access.LevelFor(actor.Role, action) {
	case access.LevelAll:
		return s.repo().GetProject(ctx, projectID)
	case access.LevelOwnDept:
		p, err := s.repo().GetProject(ctx, projectID)
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Project{}, forbidden(actor, action)
		}
		if err != nil {
			return domain.Project{}, err
		}
		if actor.DepartmentID == nil || p.DepartmentID != *actor.DepartmentID {
			return domain.Project{}, forbidden(actor, action)
		}
		return p, nil
	default:
		return domain.Project{}, forbidden(actor, action)
	}
}

// stepFor resolves a step's owning department and applies the same masking
// rules as projectFor.
func (s Service) stepFor(ctx context.Context, actor domain.Actor, action access.Action, stepID int64) (domain.ProjectStep, error) {
	switch access.LevelFor(actor.Role, action) {
	case access.LevelAll:
		return s.repo().GetStep(ctx, stepID)
	case access.LevelOwnDept:
		dept, err := s.repo().StepDepartment(ctx, stepID)
		if errors.Is(err, repo.ErrNotFound) {
			return domain.ProjectStep{}, forbidden(actor, action)
		}
		if err != nil {
			return domain.ProjectStep{}, err
		}
		if actor.DepartmentID == nil || dept != *actor.DepartmentID {
			return domain.ProjectStep{}, forbidden(actor, action)
		}
		return s.repo().GetStep(ctx, stepID)
	default:
		return domain.ProjectStep{}, forbidden(actor, action)
	}
}

func (s Service) CreateProject(ctx context.Context, actor domain.Actor, opts engine.ProjectCreateOptions) (domain.Project, []domain.ProjectStep, error) {
	if err := access.Check(actor, access.ActionEdit, &opts.DepartmentID); err != nil {
		return domain.Project{}, nil, err
	}
	opts.ActorID = actor.ID
	return s.Engine.CreateProject(ctx, opts)
}

func (s Service) GetProject(ctx context.Context, actor domain.Actor, id int64) (domain.Project, error) {
	return s.projectFor(ctx, actor, access.ActionView, id)
}

func (s Service) ListProjects(ctx context.Context, actor domain.Actor, f repo.ProjectFilters) ([]domain.Project, error) {
	switch access.LevelFor(actor.Role, access.ActionView) {
	case access.LevelAll:
	case access.LevelOwnDept:
		if actor.DepartmentID == nil {
			return nil, forbidden(actor, access.ActionView)
		}
		// Department-scoped actors only ever list their own department,
		// whatever filter they asked for.
		f.DepartmentID = actor.DepartmentID
	default:
		return nil, forbidden(actor, access.ActionView)
	}
	return s.repo().ListProjects(ctx, f)
}

func (s Service) DeleteProject(ctx context.Context, actor domain.Actor, id int64) error {
	if _, err := s.projectFor(ctx, actor, access.ActionEdit, id); err != nil {
		return err
	}
	return s.Engine.DeleteProject(ctx, id, actor.ID)
}

func (s Service) ListSteps(ctx context.Context, actor domain.Actor, projectID int64) ([]domain.StepView, error) {
	if _, err := s.projectFor(ctx, actor, access.ActionView, projectID); err != nil {
		return nil, err
	}
	steps, err := s.repo().ListStepsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.Engine.Views(steps), nil
}

func (s Service) GetStep(ctx context.Context, actor domain.Actor, stepID int64) (domain.StepView, error) {
	step, err := s.stepFor(ctx, actor, access.ActionView, stepID)
	if err != nil {
		return domain.StepView{}, err
	}
	return s.Engine.View(step), nil
}

func (s Service) UpdateStepStatus(ctx context.Context, actor domain.Actor, stepID int64, status string, notes *string) (domain.StepView, error) {
	if _, err := s.stepFor(ctx, actor, access.ActionEdit, stepID); err != nil {
		return domain.StepView{}, err
	}
	step, err := s.Engine.UpdateStepStatus(ctx, stepID, status, actor.ID, notes)
	if err != nil {
		return domain.StepView{}, err
	}
	return s.Engine.View(step), nil
}

func (s Service) UpdateStepDetails(ctx context.Context, actor domain.Actor, stepID int64, patch engine.StepDetailsPatch) (domain.StepView, error) {
	if _, err := s.stepFor(ctx, actor, access.ActionEdit, stepID); err != nil {
		return domain.StepView{}, err
	}
	step, err := s.Engine.UpdateStepDetails(ctx, stepID, patch, actor.ID)
	if err != nil {
		return domain.StepView{}, err
	}
	return s.Engine.View(step), nil
}

func (s Service) StepDelay(ctx context.Context, actor domain.Actor, stepID int64) (domain.StepDelay, error) {
	step, err := s.stepFor(ctx, actor, access.ActionView, stepID)
	if err != nil {
		return domain.StepDelay{}, err
	}
	return s.Engine.CalculateDelay(step), nil
}

func (s Service) Progress(ctx context.Context, actor domain.Actor, projectID int64) (domain.Progress, error) {
	if _, err := s.projectFor(ctx, actor, access.ActionView, projectID); err != nil {
		return domain.Progress{}, err
	}
	return s.Engine.Progress(ctx, projectID)
}

// OverdueSteps lists every live step past its planned end, oldest deadline
// first. Department-scoped actors are pinned to their own department; a
// department filter is honored only for actors that can see everything.
func (s Service) OverdueSteps(ctx context.Context, actor domain.Actor, departmentID *int64) ([]domain.StepView, error) {
	switch access.LevelFor(actor.Role, access.ActionView) {
	case access.LevelAll:
	case access.LevelOwnDept:
		if actor.DepartmentID == nil {
			return nil, forbidden(actor, access.ActionView)
		}
		departmentID = actor.DepartmentID
	default:
		return nil, forbidden(actor, access.ActionView)
	}
	today := s.Engine.Now().UTC().Format("2006-01-02")
	steps, err := s.repo().ListOverdueSteps(ctx, today, departmentID)
	if err != nil {
		return nil, err
	}
	return s.Engine.Views(steps), nil
}

func (s Service) ListDepartments(ctx context.Context, actor domain.Actor) ([]domain.Department, error) {
	if access.LevelFor(actor.Role, access.ActionView) == access.LevelNone {
		return nil, forbidden(actor, access.ActionView)
	}
	return s.repo().ListDepartments(ctx)
}

// AuditTrail returns the change history of a project or step, newest first.
func (s Service) AuditTrail(ctx context.Context, actor domain.Actor, entityKind string, entityID int64, limit int) ([]domain.AuditEntry, error) {
	switch entityKind {
	case "project":
		if _, err := s.projectFor(ctx, actor, access.ActionView, entityID); err != nil {
			return nil, err
		}
	case "step":
		if _, err := s.stepFor(ctx, actor, access.ActionView, entityID); err != nil {
			return nil, err
		}
	default:
		return nil, engine.ValidationError{Msg: "entity kind must be project or step"}
	}
	return s.repo().ListAudit(ctx, entityKind, entityID, limit)
}
