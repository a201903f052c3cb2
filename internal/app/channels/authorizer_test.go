package channels

import (
	"context"
	"errors"
	"testing"

	"github.com/taskboard/realtime/internal/app/identity"
)

type fakeResolver struct {
	users map[string]identity.User
}

func (r fakeResolver) ResolveToken(_ context.Context, token string) (identity.User, error) {
	u, ok := r.users[token]
	if !ok {
		return identity.User{}, identity.ErrNotFound
	}
	return u, nil
}

func newTestAuthorizer() *Authorizer {
	return NewAuthorizer(fakeResolver{users: map[string]identity.User{
		"token-7": {ID: "7", Name: "Alice", Email: "alice@example.com"},
	}}, nil)
}

func TestAuthorize_OwnChannel(t *testing.T) {
	a := newTestAuthorizer()
	if err := a.Authorize(context.Background(), "token-7", "users.7"); err != nil {
		t.Fatalf("expected grant, got %v", err)
	}
}

func TestAuthorize_OtherUsersChannel(t *testing.T) {
	a := newTestAuthorizer()
	err := a.Authorize(context.Background(), "token-7", "users.8")
	if !errors.Is(err, ErrForbiddenChannel) {
		t.Fatalf("expected ErrForbiddenChannel, got %v", err)
	}
}

func TestAuthorize_BadToken(t *testing.T) {
	a := newTestAuthorizer()
	err := a.Authorize(context.Background(), "no-such-token", "users.7")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthorize_BadChannelPattern(t *testing.T) {
	a := newTestAuthorizer()
	for _, channel := range []string{"", "users.", "tasks.7", "users.7.extra", "users"} {
		err := a.Authorize(context.Background(), "token-7", channel)
		if !errors.Is(err, ErrForbiddenChannel) {
			t.Fatalf("Authorize(%q): expected ErrForbiddenChannel, got %v", channel, err)
		}
	}
}

func TestParseUserChannel(t *testing.T) {
	id, ok := ParseUserChannel("users.42")
	if !ok || id != "42" {
		t.Fatalf("unexpected parse result: %q %v", id, ok)
	}
	if _, ok := ParseUserChannel("users.a.b"); ok {
		t.Fatal("expected extra segment to fail")
	}
	if ChannelForUser("42") != "users.42" {
		t.Fatalf("unexpected channel name: %q", ChannelForUser("42"))
	}
}
