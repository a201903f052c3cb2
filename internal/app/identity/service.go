package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/nats-io/nuid"
	"github.com/taskboard/realtime/internal/platform/auth"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidName        = errors.New("name is required")
	ErrInvalidEmail       = errors.New("email is required")
	ErrInvalidPassword    = errors.New("password must be at least 8 characters")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type AuthResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type Service struct {
	Repo   Repository
	Tokens auth.Manager
	NewID  func() string
}

func NewService(repo Repository, tokens auth.Manager) *Service {
	return &Service{
		Repo:   repo,
		Tokens: tokens,
		NewID:  nuid.Next,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(name, email, password string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	if normalizeEmail(email) == "" {
		return ErrInvalidEmail
	}
	if len(strings.TrimSpace(password)) < 8 {
		return ErrInvalidPassword
	}
	return nil
}

func (s *Service) Register(ctx context.Context, name, email, password string) (AuthResponse, error) {
	if err := validateRegistration(name, email, password); err != nil {
		return AuthResponse{}, err
	}
	email = normalizeEmail(email)

	if _, err := s.Repo.FindUserByEmail(ctx, email); err == nil {
		return AuthResponse{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return AuthResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResponse{}, err
	}

	u := User{
		ID:           s.NewID(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.Repo.CreateUser(ctx, u); err != nil {
		return AuthResponse{}, err
	}
	return s.issueToken(u)
}

func (s *Service) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return AuthResponse{}, ErrInvalidCredentials
	}

	u, err := s.Repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthResponse{}, ErrInvalidCredentials
		}
		return AuthResponse{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return AuthResponse{}, ErrInvalidCredentials
	}
	return s.issueToken(u)
}

// ResolveToken verifies the token and loads the subject. A structurally valid
// token whose subject no longer exists resolves to ErrNotFound.
func (s *Service) ResolveToken(ctx context.Context, token string) (User, error) {
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		return User{}, err
	}
	return s.Repo.FindUserByID(ctx, claims.Subject)
}

func (s *Service) issueToken(user User) (AuthResponse, error) {
	token, err := s.Tokens.Sign(user.ID, user.Email)
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{
		Token:  token,
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
	}, nil
}
