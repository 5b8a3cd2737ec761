// Package identity builds the per-invocation capability value that authorizes
// record-service calls. An Identity carries a coarse permission grant and
// optional role grants; it is constructed fresh for every command and never
// persisted.
package identity

import (
	"context"
	"fmt"
	"slices"
)

// Permission is a coarse permission level attached to an Identity.
type Permission string

const (
	// AnyUser authorizes read-only operations.
	AnyUser Permission = "any_user"
	// SystemProcess authorizes mutating operations performed by trusted
	// service processes.
	SystemProcess Permission = "system_process"
)

// Identity is an ephemeral capability token for one invocation.
type Identity struct {
	permissions []Permission
	roles       []string
}

// Has reports whether the identity carries the given permission grant.
func (i Identity) Has(p Permission) bool {
	return slices.Contains(i.permissions, p)
}

// HasRole reports whether the identity carries the given role grant.
func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.roles, role)
}

// RoleNotFoundError is returned when a requested role grant does not exist
// in the role directory. It aborts the invoking command.
type RoleNotFoundError struct {
	Role string
}

func (e *RoleNotFoundError) Error() string {
	return fmt.Sprintf("role %s does not exist", e.Role)
}

// RoleDirectory is the read-only role lookup used during resolution.
type RoleDirectory interface {
	RoleExists(ctx context.Context, name string) (bool, error)
}

// Resolve builds an Identity with the given permission grant and, if role is
// non-empty, a role grant resolved against dir. An unknown role yields a
// *RoleNotFoundError.
func Resolve(ctx context.Context, dir RoleDirectory, permission Permission, role string) (Identity, error) {
	ident := Identity{}

	if role != "" {
		exists, err := dir.RoleExists(ctx, role)
		if err != nil {
			return Identity{}, fmt.Errorf("looking up role %q: %w", role, err)
		}
		if !exists {
			return Identity{}, &RoleNotFoundError{Role: role}
		}
		ident.roles = append(ident.roles, role)
	}

	if permission == "" {
		permission = AnyUser
	}
	ident.permissions = append(ident.permissions, permission)

	return ident, nil
}

// AnyCaller returns the unprivileged identity used by read-only commands.
func AnyCaller() Identity {
	return Identity{permissions: []Permission{AnyUser}}
}
