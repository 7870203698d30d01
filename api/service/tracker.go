package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"slideConverter/api/dto"
	"slideConverter/api/kafka"
	"slideConverter/api/models"
	"slideConverter/api/repository"
)

const sinkTimeout = 3 * time.Second

type StatusMirror interface {
	Set(ctx context.Context, task *models.Task) error
	Get(ctx context.Context, taskID string) (*models.Task, error)
}

// Tracker owns the live task table and fans every accepted change out to
// the optional status mirror, archive and event stream. Sink failures are
// logged and never reach the pipeline.
type Tracker struct {
	store    repository.Store
	mirror   StatusMirror
	archive  repository.Archive
	producer kafka.Producer
	topic    string
	logger   *zap.Logger
}

func NewTracker(store repository.Store, logger *zap.Logger) *Tracker {
	return &Tracker{store: store, logger: logger}
}

func (t *Tracker) WithMirror(m StatusMirror) *Tracker {
	t.mirror = m
	return t
}

func (t *Tracker) WithArchive(a repository.Archive) *Tracker {
	t.archive = a
	return t
}

func (t *Tracker) WithProducer(p kafka.Producer, topic string) *Tracker {
	t.producer = p
	t.topic = topic
	return t
}

func (t *Tracker) Create(ctx context.Context, task *models.Task) error {
	if err := t.store.Create(ctx, task); err != nil {
		return err
	}
	if stored, err := t.store.Get(ctx, task.ID); err == nil {
		t.mirrorTask(ctx, stored)
	}
	return nil
}

func (t *Tracker) Get(ctx context.Context, id string) (*models.Task, error) {
	return t.store.Get(ctx, id)
}

func (t *Tracker) Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	task, err := t.store.Update(ctx, id, patch)
	if err != nil && !errors.Is(err, repository.ErrTaskTerminal) {
		return nil, err
	}

	// Only status transitions reach the mirror. Progress ticks stay in
	// memory so a slow mirror cannot stretch the poll loop.
	if err == nil && patch.Status != nil {
		t.mirrorTask(ctx, task)
		if patch.Status.Terminal() {
			t.finalize(ctx, task)
		}
	}
	return task, err
}

// Lookup finds a task for status reads: live table first, then the mirror,
// then the archive.
func (t *Tracker) Lookup(ctx context.Context, id string) (*models.Task, error) {
	task, err := t.store.Get(ctx, id)
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, repository.ErrTaskNotFound) {
		return nil, err
	}

	if t.mirror != nil {
		if task, err := t.mirror.Get(ctx, id); err == nil {
			return orphaned(task), nil
		}
	}
	if t.archive != nil {
		task, err := t.archive.GetTask(ctx, id)
		if err == nil {
			return task, nil
		}
		if !errors.Is(err, repository.ErrTaskNotFound) {
			t.logger.Warn("Archive lookup failed", zap.String("task_id", id), zap.Error(err))
		}
	}
	return nil, dto.ErrTaskNotFound
}

// orphaned reports a mirrored task that is missing from the live table.
// Such a task belonged to a previous process and will never progress.
func orphaned(task *models.Task) *models.Task {
	if task.Status.Terminal() {
		return task
	}
	task.Status = models.StatusFailed
	task.Progress = 100
	task.Message = "Failed at restart: service restarted before the task finished"
	task.Error = &models.TaskError{
		Step:    "restart",
		Message: "service restarted before the task finished",
	}
	return task
}

func (t *Tracker) mirrorTask(ctx context.Context, task *models.Task) {
	if t.mirror == nil || task == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	if err := t.mirror.Set(ctx, task); err != nil {
		t.logger.Warn("Failed to mirror task status", zap.String("task_id", task.ID), zap.Error(err))
	}
}

func (t *Tracker) finalize(ctx context.Context, task *models.Task) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	if t.archive != nil {
		if err := t.archive.SaveTask(ctx, task); err != nil {
			t.logger.Warn("Failed to archive task", zap.String("task_id", task.ID), zap.Error(err))
		}
	}

	if t.producer != nil {
		event := &kafka.TaskEvent{
			TaskID:      task.ID,
			TraceID:     task.TraceID,
			Status:      string(task.Status),
			FileName:    task.FileName,
			PageCount:   task.PageCount,
			VideoURL:    task.VideoURL,
			DownloadURL: task.DownloadURL,
			FinishedAt:  task.UpdatedAt,
		}
		if task.Error != nil {
			event.ErrorStep = task.Error.Step
			event.Error = task.Error.Message
		}
		if err := t.producer.SendTaskEvent(ctx, t.topic, event); err != nil {
			t.logger.Warn("Failed to publish task event", zap.String("task_id", task.ID), zap.Error(err))
		}
	}
}
