package tasks

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nuid"
	"github.com/taskboard/realtime/internal/contracts"
)

var (
	ErrTitleRequired = errors.New("title is required")
	ErrInvalidStatus = errors.New("invalid status")
)

// Events is the emission side consumed after a mutation. Implementations are
// fire-and-forget; a mutation never fails because of event delivery.
type Events interface {
	TaskAssigned(task contracts.Task, assignedBy string)
	TaskStatusChanged(task contracts.Task, fromStatus, toStatus, changedBy string)
}

type Service struct {
	Repo   Repository
	Events Events
	NewID  func() string
	Now    func() time.Time
}

func NewService(repo Repository, events Events) *Service {
	return &Service{
		Repo:   repo,
		Events: events,
		NewID:  nuid.Next,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	AssigneeID  string `json:"assignee_id"`
}

// UpdateTaskRequest carries partial fields: nil means "leave unchanged".
// An explicitly empty assignee_id clears the assignment.
type UpdateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	AssigneeID  *string `json:"assignee_id"`
}

func (s *Service) Create(ctx context.Context, ownerID string, req CreateTaskRequest) (contracts.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return contracts.Task{}, ErrTitleRequired
	}
	status := req.Status
	if status == "" {
		status = contracts.StatusPending
	}
	if !contracts.IsValidStatus(status) {
		return contracts.Task{}, ErrInvalidStatus
	}
	assigneeID := strings.TrimSpace(req.AssigneeID)
	if assigneeID == "" {
		assigneeID = ownerID
	}

	task := contracts.Task{
		ID:          s.NewID(),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Status:      status,
		OwnerID:     ownerID,
		AssigneeID:  assigneeID,
		CreatedAt:   s.Now(),
	}
	if err := s.Repo.CreateTask(ctx, task); err != nil {
		return contracts.Task{}, err
	}

	if task.AssigneeID != "" {
		s.Events.TaskAssigned(task, ownerID)
	}
	return task, nil
}

func (s *Service) Get(ctx context.Context, ownerID, taskID string) (contracts.Task, error) {
	return s.Repo.GetTask(ctx, ownerID, taskID)
}

func (s *Service) List(ctx context.Context, ownerID, statusFilter string, limit int) ([]contracts.Task, error) {
	if statusFilter != "" && !contracts.IsValidStatus(statusFilter) {
		return nil, ErrInvalidStatus
	}
	return s.Repo.ListTasks(ctx, ownerID, statusFilter, limit)
}

// Update applies a partial mutation and emits events for what actually
// changed: task.assigned when the assignee moved to a non-empty user, and
// task.status_changed when the status moved. Both can fire for one call.
// Nothing is emitted when persistence fails.
func (s *Service) Update(ctx context.Context, actorID, taskID string, req UpdateTaskRequest) (contracts.Task, error) {
	task, err := s.Repo.GetTask(ctx, actorID, taskID)
	if err != nil {
		return contracts.Task{}, err
	}
	fromStatus := task.Status
	fromAssignee := task.AssigneeID

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return contracts.Task{}, ErrTitleRequired
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		if !contracts.IsValidStatus(*req.Status) {
			return contracts.Task{}, ErrInvalidStatus
		}
		task.Status = *req.Status
	}
	if req.AssigneeID != nil {
		task.AssigneeID = strings.TrimSpace(*req.AssigneeID)
	}

	if err := s.Repo.UpdateTask(ctx, task); err != nil {
		return contracts.Task{}, err
	}

	if req.AssigneeID != nil && task.AssigneeID != fromAssignee && task.AssigneeID != "" {
		s.Events.TaskAssigned(task, actorID)
	}
	if req.Status != nil && task.Status != fromStatus {
		s.Events.TaskStatusChanged(task, fromStatus, task.Status, actorID)
	}
	return task, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, taskID string) error {
	return s.Repo.DeleteTask(ctx, ownerID, taskID)
}
