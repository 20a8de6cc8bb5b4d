// Package identity normalizes the two login strategies (local JWT and
// delegated OAuth) into one caller identity, resolved once in middleware
// instead of being reconciled ad hoc per page.
package identity

import (
	"context"
	"errors"

	"github.com/votehall/apiserver/types"
)

// ErrUnauthenticated is returned when no valid session can be established.
// Handlers translate it to a 401.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the normalized view of the current caller.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == types.RoleAdmin
}

// UserSource looks up the account backing a session.
type UserSource interface {
	GetByID(ctx context.Context, id string) (types.User, error)
}

// Resolver turns a bearer token into an Identity. Both login strategies end
// in the same token format, so this is the only session check in the system.
type Resolver struct {
	tokens *TokenManager
	users  UserSource
}

func NewResolver(tokens *TokenManager, users UserSource) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// Resolve validates the token and loads the caller's account. Any failure
// collapses to ErrUnauthenticated; the caller is routed to login, not shown
// a recoverable in-page error.
func (r *Resolver) Resolve(ctx context.Context, token string) (Identity, error) {
	subject, err := r.tokens.Parse(token)
	if err != nil {
		return Identity{}, ErrUnauthenticated
	}

	user, err := r.users.GetByID(ctx, subject)
	if err != nil {
		return Identity{}, ErrUnauthenticated
	}

	return Identity{
		ID:    user.ID,
		Email: user.Email,
		Role:  user.Role,
	}, nil
}
