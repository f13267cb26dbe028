// Package policy is the single authorization decision point for the
// moderation core. Every mutating operation calls Authorize with the same
// entity snapshot it is about to mutate.
package policy

import (
	"errors"

	"github.com/google/uuid"
	"github.com/wanderhq/wanderlust/internal/identity"
	"github.com/wanderhq/wanderlust/internal/moderation"
)

// Action names an operation being authorized.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionBulk    Action = "bulk_transition"
	ActionLike    Action = "like"
)

// Policy errors
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("admin role required")
	ErrNotOwner        = errors.New("caller does not own this entity")
)

// Authorize decides whether ident may perform action on an entity owned by
// ownerID. Rules are evaluated in the fixed order of the ownership model:
// authentication, ownership, role.
func Authorize(ident identity.Identity, action Action, ownerID uuid.UUID) error {
	switch action {
	case ActionCreate, ActionLike:
		if ident.IsAnonymous() {
			return ErrUnauthenticated
		}
		return nil
	case ActionUpdate, ActionDelete:
		if ident.IsAnonymous() {
			return ErrUnauthenticated
		}
		if ident.ID == ownerID || ident.IsAdmin() {
			return nil
		}
		return ErrNotOwner
	case ActionApprove, ActionReject, ActionBulk:
		if ident.IsAdmin() {
			return nil
		}
		return ErrForbidden
	default:
		return ErrForbidden
	}
}

// CanSee reports whether ident may observe an entity owned by ownerID in
// the given moderation state. Unapproved content is visible only to its
// owner and to admins; to everyone else it does not exist.
func CanSee(ident identity.Identity, ownerID uuid.UUID, status moderation.Status) bool {
	if status.Visible() {
		return true
	}
	if ident.IsAnonymous() {
		return false
	}
	return ident.ID == ownerID || ident.IsAdmin()
}
