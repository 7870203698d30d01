package repository

import (
	"context"
	"errors"

	"slideConverter/api/models"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskAlreadyExists = errors.New("task already exists")
	ErrTaskTerminal      = errors.New("task is in a terminal state")
)

// Store is the live task table. Every stage writes through Update so that
// patches are merged into the latest record.
type Store interface {
	Create(ctx context.Context, task *models.Task) error
	Get(ctx context.Context, id string) (*models.Task, error)
	Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
}

// Archive keeps finished tasks beyond the process lifetime.
type Archive interface {
	SaveTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
}
