// Package auth identifies the staff member behind a request.
//
// Users are managed by a separate service; this package only verifies the
// tokens it issues and carries the resulting Principal through the context.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// Role is a staff role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCashier Role = "cashier"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCashier
}

// ErrNoPrincipal is returned when the context carries no authenticated user.
var ErrNoPrincipal = errors.New("no authenticated user")

// Principal is an authenticated staff member.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok {
		return Principal{}, ErrNoPrincipal
	}
	return p, nil
}
