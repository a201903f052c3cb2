package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taskboard/realtime/internal/platform/auth"
)

type fakeRepo struct {
	byID    map[string]User
	byEmail map[string]User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[string]User{}, byEmail: map[string]User{}}
}

func (r *fakeRepo) CreateUser(_ context.Context, user User) error {
	if _, exists := r.byEmail[user.Email]; exists {
		return ErrEmailTaken
	}
	r.byID[user.ID] = user
	r.byEmail[user.Email] = user
	return nil
}

func (r *fakeRepo) FindUserByEmail(_ context.Context, email string) (User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *fakeRepo) FindUserByID(_ context.Context, userID string) (User, error) {
	u, ok := r.byID[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func newTestService(repo Repository) *Service {
	svc := NewService(repo, auth.NewManager("test-secret"))
	n := 0
	svc.NewID = func() string {
		n++
		return "user-" + string(rune('0'+n))
	}
	return svc
}

func TestRegisterAndLogin(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	resp, err := svc.Register(context.Background(), "Alice", "Alice@Example.com", "password123")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if resp.Email != "alice@example.com" || resp.Token == "" {
		t.Fatalf("unexpected register response: %+v", resp)
	}

	login, err := svc.Login(context.Background(), "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if login.UserID != resp.UserID {
		t.Fatalf("login user mismatch: %q vs %q", login.UserID, resp.UserID)
	}

	_, err = svc.Login(context.Background(), "alice@example.com", "wrong-password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	if _, err := svc.Register(context.Background(), "Alice", "alice@example.com", "password123"); err != nil {
		t.Fatalf("first Register error: %v", err)
	}
	_, err := svc.Register(context.Background(), "Imposter", "alice@example.com", "password456")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := newTestService(newFakeRepo())

	if _, err := svc.Register(context.Background(), "", "a@b.c", "password123"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := svc.Register(context.Background(), "Alice", "  ", "password123"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := svc.Register(context.Background(), "Alice", "a@b.c", "short"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestResolveToken(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	resp, err := svc.Register(context.Background(), "Alice", "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	u, err := svc.ResolveToken(context.Background(), resp.Token)
	if err != nil {
		t.Fatalf("ResolveToken error: %v", err)
	}
	if u.ID != resp.UserID {
		t.Fatalf("resolved wrong user: %+v", u)
	}
}

func TestResolveToken_DeletedSubject(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	resp, err := svc.Register(context.Background(), "Alice", "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	// Account removed after the token was issued: the token is still valid
	// but the subject no longer resolves.
	delete(repo.byID, resp.UserID)
	_, err = svc.ResolveToken(context.Background(), resp.Token)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveToken_Expired(t *testing.T) {
	repo := newFakeRepo()
	tokens := auth.NewManager("test-secret")
	issued := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	tokens.Now = func() time.Time { return issued }

	svc := NewService(repo, tokens)
	resp, err := svc.Register(context.Background(), "Alice", "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	tokens.Now = func() time.Time { return issued.Add(auth.TokenTTL + time.Minute) }
	svc.Tokens = tokens
	_, err = svc.ResolveToken(context.Background(), resp.Token)
	if !errors.Is(err, auth.ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}
