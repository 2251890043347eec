package store

import (
	"context"

	sw "github.com/filanov/stateswitch"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/net-toolbox/onboarder/internal/model"
)

var ErrTaskNotFound = errors.New("task not found")

// Storage persists onboarding tasks.
//
// Credentials never pass through here; they live on the queue message only.
type Storage interface {
	Add(ctx context.Context, task model.Task) error
	ByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	Update(ctx context.Context, task model.Task) error
	ByStatus(ctx context.Context, status sw.State) ([]model.Task, error)
	Remove(ctx context.Context, id uuid.UUID) error
}
