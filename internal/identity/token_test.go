package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/votehall/apiserver/internal/store"
	"github.com/votehall/apiserver/types"
)

func TestTokenRoundTrip(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Hour)

	token, err := manager.Issue("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	subject, err := manager.Parse(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if subject != "user-1" {
		t.Fatalf("unexpected subject: %q", subject)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", time.Hour)
	verifier := NewTokenManager("secret-b", time.Hour)

	token, err := issuer.Issue("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if _, err := verifier.Parse(token); err == nil {
		t.Fatalf("expected parse to fail with the wrong secret")
	}
}

func TestTokenExpiry(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Millisecond)

	token, err := manager.Issue("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := manager.Parse(token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestTokenGarbage(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Hour)
	if _, err := manager.Parse("not-a-token"); err == nil {
		t.Fatalf("expected garbage token to fail")
	}
}

type fakeUserSource struct {
	users map[string]types.User
}

func (f *fakeUserSource) GetByID(_ context.Context, id string) (types.User, error) {
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func TestResolverResolvesIdentity(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Hour)
	users := &fakeUserSource{users: map[string]types.User{
		"user-1": {ID: "user-1", Email: "a@example.com", Role: types.RoleAdmin},
	}}
	resolver := NewResolver(manager, users)

	token, err := manager.Issue("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	ident, err := resolver.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ident.ID != "user-1" || !ident.IsAdmin() {
		t.Fatalf("unexpected identity: %+v", ident)
	}
}

func TestResolverDeletedUser(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Hour)
	resolver := NewResolver(manager, &fakeUserSource{users: map[string]types.User{}})

	token, err := manager.Issue("ghost", "ghost@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	// A valid token for a user who no longer exists is unauthenticated, not
	// an internal error.
	if _, err := resolver.Resolve(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
