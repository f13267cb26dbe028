// Package identity carries the authenticated caller context that every
// core operation receives as an explicit argument. There is no ambient
// session lookup anywhere below the HTTP layer.
package identity

import (
	"github.com/google/uuid"
	"github.com/wanderhq/wanderlust/internal/models"
)

// Identity is the caller of an operation. The zero value is the anonymous
// caller.
type Identity struct {
	ID       uuid.UUID
	Username string
	Role     models.Role
}

// Anonymous is the identity of an unauthenticated caller.
var Anonymous = Identity{}

// IsAnonymous reports whether no authenticated user is present.
func (i Identity) IsAnonymous() bool {
	return i.ID == uuid.Nil
}

// IsAdmin reports whether the caller carries the admin role.
func (i Identity) IsAdmin() bool {
	return !i.IsAnonymous() && i.Role == models.RoleAdmin
}
