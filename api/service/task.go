package service

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"slideConverter/api/dto"
	"slideConverter/api/models"
	"slideConverter/api/pipeline"
	"slideConverter/api/pool"
	"slideConverter/api/probe"
	"slideConverter/api/validation"
)

const tempDirPattern = "slide-task-*"

type Runner interface {
	Run(ctx context.Context, taskID string)
}

type Options struct {
	WorkDir      string
	ProbeTimeout time.Duration
	// CleanupDelay is how long a dropped task's temp dir is kept.
	CleanupDelay time.Duration
	// RunContext bounds pipelines that have started. It defaults to a
	// context that is never cancelled, so cancelling baseCtx only drops
	// queued work and lets running pipelines finish.
	RunContext context.Context
}

type TaskService struct {
	tracker *Tracker
	runner  Runner
	pool    *pool.WorkerPool
	counter probe.Counter
	opts    Options
	baseCtx context.Context
	logger  *zap.Logger
}

// NewTaskService wires the create/status use cases. Queued pipelines are
// dropped once baseCtx is done; started ones run under opts.RunContext,
// never under a request context.
func NewTaskService(baseCtx context.Context, tracker *Tracker, runner Runner, pool *pool.WorkerPool, counter probe.Counter, opts Options, logger *zap.Logger) *TaskService {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 30 * time.Second
	}
	if opts.RunContext == nil {
		opts.RunContext = context.WithoutCancel(baseCtx)
	}
	return &TaskService{
		tracker: tracker,
		runner:  runner,
		pool:    pool,
		counter: counter,
		opts:    opts,
		baseCtx: baseCtx,
		logger:  logger,
	}
}

func (s *TaskService) CreateTask(ctx context.Context, traceID string, req *dto.CreateTaskRequest) (*dto.CreateTaskResponse, error) {
	id := uuid.New().String()
	logger := s.logger.With(zap.String("task_id", id), zap.String("trace_id", traceID))

	if !validation.HasPDFSignature(req.Data) {
		logger.Warn("Upload has a .pdf name but no PDF header", zap.String("filename", req.FileName))
	}

	tempDir, err := os.MkdirTemp(s.opts.WorkDir, tempDirPattern)
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, pipeline.SourceFileName), req.Data, 0o600); err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("write source document: %w", err)
	}

	var (
		pageCount      *int
		pageCountError *string
	)
	probeCtx, cancel := context.WithTimeout(ctx, s.opts.ProbeTimeout)
	n, err := s.counter.PageCount(probeCtx, req.Data)
	cancel()
	if err != nil {
		msg := err.Error()
		pageCountError = &msg
		logger.Warn("Page count probe failed", zap.Error(err))
	} else {
		pageCount = &n
	}

	task := &models.Task{
		ID:               id,
		TraceID:          traceID,
		Status:           models.StatusQueued,
		Progress:         0,
		Message:          "Queued",
		Logs:             []models.LogEntry{{Timestamp: time.Now(), Message: "Task created"}},
		Resolution:       req.Resolution,
		Transition:       req.Transition,
		DurationPerSlide: req.DurationPerSlide,
		Buffer:           req.Data,
		TempDir:          tempDir,
		FileName:         req.FileName,
		PageCount:        pageCount,
	}
	if pageCountError != nil {
		task.PageCountError = *pageCountError
	}

	if err := s.tracker.Create(ctx, task); err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("register task: %w", err)
	}

	s.pool.Submit(s.baseCtx, func(context.Context) {
		s.runner.Run(s.opts.RunContext, id)
	}, func(err error) {
		s.dropped(id, tempDir, err)
	})

	logger.Info("Task accepted",
		zap.String("filename", req.FileName),
		zap.Int("bytes", len(req.Data)),
		zap.Any("page_count", pageCount),
	)

	return &dto.CreateTaskResponse{
		TaskID:         id,
		Status:         string(models.StatusQueued),
		FileName:       req.FileName,
		FileSizeMB:     math.Round(float64(len(req.Data))/(1024*1024)*100) / 100,
		PageCount:      pageCount,
		PageCountError: pageCountError,
	}, nil
}

func (s *TaskService) GetTaskStatus(ctx context.Context, taskID string) (*dto.StatusResponse, error) {
	task, err := s.tracker.Lookup(ctx, taskID)
	if err != nil {
		return nil, err
	}

	return &dto.StatusResponse{
		Status:      string(task.Status),
		Progress:    task.Progress,
		Message:     task.Message,
		VideoURL:    task.VideoURL,
		DownloadURL: task.DownloadURL,
		Error:       task.Error,
	}, nil
}

// dropped marks a task that never left the queue because the service is
// shutting down.
func (s *TaskService) dropped(id, tempDir string, cause error) {
	ctx := context.Background()
	_, err := s.tracker.Update(ctx, id, models.TaskPatch{
		Status:      models.StatusPtr(models.StatusFailed),
		Message:     models.StringPtr("Service shutting down"),
		Error:       &models.TaskError{Step: "queue", Message: "service shut down before processing started", Detail: cause.Error()},
		ClearBuffer: true,
		Log:         "Dropped from queue",
	})
	if err != nil {
		s.logger.Warn("Failed to mark dropped task", zap.String("task_id", id), zap.Error(err))
	}
	time.AfterFunc(s.opts.CleanupDelay, func() {
		os.RemoveAll(tempDir)
	})
}

// SweepStale removes task temp dirs under workDir last modified more than
// olderThan ago. Cleanup timers do not survive a restart, so the server
// runs this once at startup.
func SweepStale(workDir string, olderThan time.Duration, logger *zap.Logger) int {
	dirs, err := filepath.Glob(filepath.Join(workDir, tempDirPattern))
	if err != nil {
		return 0
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			logger.Debug("Failed to remove stale temp dir", zap.String("dir", dir), zap.Error(err))
			continue
		}
		removed++
	}
	return removed
}
