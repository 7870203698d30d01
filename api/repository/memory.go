package repository

import (
	"context"
	"sync"
	"time"

	"slideConverter/api/models"
)

type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*models.Task
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]*models.Task),
		now:   time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; ok {
		return ErrTaskAlreadyExists
	}

	now := s.now()
	stored := cloneTask(task)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.tasks[task.ID] = stored
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return cloneTask(task), nil
}

// Update merges patch into the stored record under the lock. Once a task is
// terminal only log appends are applied and ErrTaskTerminal is returned for
// any other field. Progress never moves backwards, except that a failure
// pins it to 100.
func (s *MemoryStore) Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}

	now := s.now()
	if patch.Log != "" {
		task.Logs = append(task.Logs, models.LogEntry{Timestamp: now, Message: patch.Log})
	}

	if task.Status.Terminal() {
		if patch.ClearBuffer {
			task.Buffer = nil
		}
		task.UpdatedAt = now
		if patch.ChangesFields() {
			return cloneTask(task), ErrTaskTerminal
		}
		return cloneTask(task), nil
	}

	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Progress != nil && *patch.Progress > task.Progress {
		task.Progress = *patch.Progress
	}
	if task.Status == models.StatusFailed {
		task.Progress = 100
	}
	if patch.Message != nil {
		task.Message = *patch.Message
	}
	if patch.Error != nil {
		e := *patch.Error
		task.Error = &e
	}
	if patch.VideoURL != nil {
		task.VideoURL = *patch.VideoURL
	}
	if patch.DownloadURL != nil {
		task.DownloadURL = *patch.DownloadURL
	}
	if patch.ReqID != nil {
		task.ReqID = *patch.ReqID
	}
	if patch.Vid != nil {
		task.Vid = *patch.Vid
	}
	if patch.ClearBuffer {
		task.Buffer = nil
	}
	task.UpdatedAt = now

	return cloneTask(task), nil
}

func cloneTask(t *models.Task) *models.Task {
	c := *t
	if t.Logs != nil {
		c.Logs = append([]models.LogEntry(nil), t.Logs...)
	}
	if t.Error != nil {
		e := *t.Error
		c.Error = &e
	}
	if t.PageCount != nil {
		n := *t.PageCount
		c.PageCount = &n
	}
	return &c
}
