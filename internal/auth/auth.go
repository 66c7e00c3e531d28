// Package auth carries the caller identity resolved by the session layer.
// Issuing credentials is out of scope; every mutating call simply receives an
// Identity and the apps gate admin-only transitions on its role.
package auth

import (
	"github.com/google/uuid"

	"github.com/hammerdown-io/hammerdown/internal/apperrors"
)

// Role is the authorization level of a caller.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleBidder     Role = "BIDDER"
	RoleViewer     Role = "VIEWER"
)

// Identity is the authenticated caller of a mutating operation.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin reports whether the identity may run auction-control operations.
func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin || id.Role == RoleSuperAdmin
}

// System returns the identity used by internal callers such as timer
// callbacks and cascade operations.
func System() Identity {
	return Identity{Role: RoleSuperAdmin}
}

// RequireAdmin returns an AuthorizationError unless the identity holds an
// admin role.
func RequireAdmin(id Identity) error {
	if !id.IsAdmin() {
		return apperrors.Authorizationf("role %s may not perform admin operations", id.Role)
	}
	return nil
}
