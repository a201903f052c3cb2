package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
}

type Repository interface {
	CreateUser(ctx context.Context, user User) error
	FindUserByEmail(ctx context.Context, email string) (User, error)
	FindUserByID(ctx context.Context, userID string) (User, error)
}

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			user_id       TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (r *PostgresRepository) CreateUser(ctx context.Context, user User) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO users (user_id, name, email, password_hash)
		 VALUES ($1, $2, $3, $4)`,
		user.ID, user.Name, user.Email, user.PasswordHash,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (User, error) {
	return r.findUser(ctx,
		`SELECT user_id, name, email, password_hash FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) FindUserByID(ctx context.Context, userID string) (User, error) {
	return r.findUser(ctx,
		`SELECT user_id, name, email, password_hash FROM users WHERE user_id = $1`, userID)
}

func (r *PostgresRepository) findUser(ctx context.Context, query string, arg any) (User, error) {
	var u User
	err := r.Pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}
