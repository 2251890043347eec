package store

import (
	"context"
	"sync"
	"time"

	sw "github.com/filanov/stateswitch"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/net-toolbox/onboarder/internal/model"
)

// MemStore is an in-memory Storage, used by tests and the one-shot command.
type MemStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]model.Task
}

func NewMemStore() *MemStore {
	return &MemStore{tasks: map[uuid.UUID]model.Task{}}
}

func (s *MemStore) Add(_ context.Context, task model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return errors.Errorf("task already exists: %s", task.ID)
	}

	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	s.tasks[task.ID] = task

	return nil
}

func (s *MemStore) ByID(_ context.Context, id uuid.UUID) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[id]
	if !exists {
		return nil, errors.Wrap(ErrTaskNotFound, id.String())
	}

	return &task, nil
}

func (s *MemStore) Update(_ context.Context, task model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; !exists {
		return errors.Wrap(ErrTaskNotFound, task.ID.String())
	}

	task.UpdatedAt = time.Now()
	s.tasks[task.ID] = task

	return nil
}

func (s *MemStore) ByStatus(_ context.Context, status sw.State) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tasks []model.Task

	for _, task := range s.tasks {
		if task.Status == status {
			tasks = append(tasks, task)
		}
	}

	return tasks, nil
}

func (s *MemStore) Remove(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; !exists {
		return errors.Wrap(ErrTaskNotFound, id.String())
	}

	delete(s.tasks, id)

	return nil
}
