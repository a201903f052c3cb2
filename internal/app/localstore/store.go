package localstore

import (
	"strings"
	"sync"
	"time"

	"github.com/taskboard/realtime/internal/contracts"
)

// NotificationCap bounds the feed; the oldest entries fall off silently.
const NotificationCap = 6

const (
	ToneInfo    = "info"
	ToneSuccess = "success"
)

type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Tone      string    `json:"tone"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the client's reconciled view of tasks plus the bounded
// notification feed. Writes come from two sources that can interleave, fetch
// results and pushed events; whichever arrives last wins for a given task id.
// Entries are replaced wholesale, never field-merged.
type Store struct {
	mu            sync.Mutex
	order         []string
	byID          map[string]contracts.Task
	notifications []Notification
}

func New() *Store {
	return &Store{byID: map[string]contracts.Task{}}
}

// Upsert replaces the entry with the same id or inserts a new one.
// Applying the same task value twice is the same as applying it once.
func (s *Store) Upsert(task contracts.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[task.ID]; !exists {
		s.order = append(s.order, task.ID)
	}
	s.byID[task.ID] = task
}

// Replace swaps the whole collection for a freshly fetched set. No merge with
// concurrently pushed events: arrival order decides.
func (s *Store) Replace(list []contracts.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = make([]string, 0, len(list))
	s.byID = make(map[string]contracts.Task, len(list))
	for _, task := range list {
		if _, exists := s.byID[task.ID]; !exists {
			s.order = append(s.order, task.ID)
		}
		s.byID[task.ID] = task
	}
}

func (s *Store) Remove(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[taskID]; !exists {
		return
	}
	delete(s.byID, taskID)
	for i, id := range s.order {
		if id == taskID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Store) Tasks() []contracts.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) snapshot() []contracts.Task {
	out := make([]contracts.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Filter returns the tasks whose title or description contains the query,
// case-insensitively. An empty query returns everything.
func (s *Store) Filter(query string) []contracts.Task {
	s.mu.Lock()
	all := s.snapshot()
	s.mu.Unlock()

	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return all
	}

	out := make([]contracts.Task, 0, len(all))
	for _, task := range all {
		title := strings.ToLower(task.Title)
		description := strings.ToLower(task.Description)
		if strings.Contains(title, normalized) || strings.Contains(description, normalized) {
			out = append(out, task)
		}
	}
	return out
}

// GroupByStatus buckets tasks into the three fixed statuses. Every bucket is
// present even when empty; a task lands in exactly one by its current status.
func GroupByStatus(list []contracts.Task) map[string][]contracts.Task {
	grouped := map[string][]contracts.Task{
		contracts.StatusPending:    {},
		contracts.StatusInProgress: {},
		contracts.StatusDone:       {},
	}
	for _, task := range list {
		if _, ok := grouped[task.Status]; ok {
			grouped[task.Status] = append(grouped[task.Status], task)
		}
	}
	return grouped
}

// PushNotification prepends and truncates the feed to NotificationCap.
func (s *Store) PushNotification(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications = append([]Notification{n}, s.notifications...)
	if len(s.notifications) > NotificationCap {
		s.notifications = s.notifications[:NotificationCap]
	}
}

// Dismiss removes a notification by id; a missing id is a no-op.
func (s *Store) Dismiss(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

func (s *Store) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// ClearNotifications discards the whole feed, used on session end.
func (s *Store) ClearNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = nil
}
