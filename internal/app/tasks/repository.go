package tasks

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taskboard/realtime/internal/contracts"
)

var ErrNotFound = errors.New("task not found")

type Repository interface {
	CreateTask(ctx context.Context, task contracts.Task) error
	GetTask(ctx context.Context, ownerID, taskID string) (contracts.Task, error)
	UpdateTask(ctx context.Context, task contracts.Task) error
	DeleteTask(ctx context.Context, ownerID, taskID string) error
	ListTasks(ctx context.Context, ownerID, statusFilter string, limit int) ([]contracts.Task, error)
}

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			task_id     TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL,
			owner_id    TEXT NOT NULL,
			assignee_id TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = r.Pool.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS tasks_owner_created_idx ON tasks (owner_id, created_at DESC)`)
	return err
}

func (r *PostgresRepository) CreateTask(ctx context.Context, task contracts.Task) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO tasks (task_id, title, description, status, owner_id, assignee_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		task.ID, task.Title, task.Description, task.Status, task.OwnerID, task.AssigneeID, task.CreatedAt,
	)
	return err
}

func (r *PostgresRepository) GetTask(ctx context.Context, ownerID, taskID string) (contracts.Task, error) {
	var t contracts.Task
	err := r.Pool.QueryRow(ctx,
		`SELECT task_id, title, description, status, owner_id, assignee_id, created_at
		 FROM tasks
		 WHERE task_id = $1 AND owner_id = $2`,
		taskID, ownerID,
	).Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.OwnerID, &t.AssigneeID, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return contracts.Task{}, ErrNotFound
		}
		return contracts.Task{}, err
	}
	return t, nil
}

func (r *PostgresRepository) UpdateTask(ctx context.Context, task contracts.Task) error {
	tag, err := r.Pool.Exec(ctx,
		`UPDATE tasks
		 SET title = $1, description = $2, status = $3, assignee_id = $4
		 WHERE task_id = $5 AND owner_id = $6`,
		task.Title, task.Description, task.Status, task.AssigneeID, task.ID, task.OwnerID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	tag, err := r.Pool.Exec(ctx,
		`DELETE FROM tasks WHERE task_id = $1 AND owner_id = $2`,
		taskID, ownerID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListTasks(ctx context.Context, ownerID, statusFilter string, limit int) ([]contracts.Task, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := `SELECT task_id, title, description, status, owner_id, assignee_id, created_at
	          FROM tasks
	          WHERE owner_id = $1`
	args := []any{ownerID}
	if statusFilter != "" {
		query += ` AND status = $2`
		args = append(args, statusFilter)
	}
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]contracts.Task, 0, limit)
	for rows.Next() {
		var t contracts.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.OwnerID, &t.AssigneeID, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
