// Package access decides whether an actor may perform an action on a
// department-scoped resource. The evaluation is pure: no store access, no
// side effects, deterministic for a given (role, action, department) triple.
package access

import (
	"fmt"

	"procline/internal/domain"
)

type Action string

const (
	ActionView Action = "view"
	ActionEdit Action = "edit"
)

// Level is the scope of departments a role may reach for an action.
type Level int

const (
	LevelNone Level = iota
	LevelOwnDept
	LevelAll
)

// ForbiddenError indicates the actor may not perform the action.
type ForbiddenError struct {
	Action Action
	Role   domain.Role
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("%s access denied for role %s", e.Action, e.Role)
}

// LevelFor maps a role and action to an access level.
func LevelFor(role domain.Role, action Action) Level {
	switch role {
	case domain.RoleAdmin:
		return LevelAll
	case domain.RoleExecutive:
		if action == ActionView {
			return LevelAll
		}
		return LevelNone
	case domain.RoleStaff:
		return LevelOwnDept
	default:
		return LevelNone
	}
}

// CanAccess reports whether actor may perform action on a resource owned by
// resourceDept. A nil resourceDept (department unknown) is reachable only by
// roles with LevelAll.
func CanAccess(actor domain.Actor, action Action, resourceDept *int64) bool {
	switch LevelFor(actor.Role, action) {
	case LevelAll:
		return true
	case LevelOwnDept:
		if actor.DepartmentID == nil || resourceDept == nil {
			return false
		}
		return *actor.DepartmentID == *resourceDept
	default:
		return false
	}
}

// Check is CanAccess returning a ForbiddenError on deny.
func Check(actor domain.Actor, action Action, resourceDept *int64) error {
	if CanAccess(actor, action, resourceDept) {
		return nil
	}
	return ForbiddenError{Action: action, Role: actor.Role}
}
