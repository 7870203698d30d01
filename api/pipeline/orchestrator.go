package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"slideConverter/api/composer"
	"slideConverter/api/models"
	"slideConverter/api/rasterize"
	"slideConverter/api/repository"
	"slideConverter/api/storage"
)

const (
	StepRasterize = "rasterize"
	StepUpload    = "upload"
	StepSubmit    = "submit"
	StepPoll      = "poll"
	StepPlayback  = "playback"
)

// Progress checkpoints. Each stage owns the band up to the next checkpoint.
const (
	progressRasterStart = 5
	progressUploadStart = 40
	progressSubmit      = 65
	progressRendering   = 70
	progressPollEnd     = 95
	progressDone        = 100
)

type Tracker interface {
	Get(ctx context.Context, id string) (*models.Task, error)
	Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
}

type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte, res models.Resolution, outDir string, progress rasterize.ProgressFunc) ([]string, error)
}

type Uploader interface {
	UploadAll(ctx context.Context, taskID string, files []string, progress storage.ProgressFunc) ([]string, error)
}

type Composer interface {
	Submit(ctx context.Context, job composer.Job) (string, error)
	Wait(ctx context.Context, reqID string, onAttempt func(attempt, max int)) (string, error)
	PlayInfo(ctx context.Context, vid string) (*composer.PlayInfo, error)
}

// StageError records which stage failed.
type StageError struct {
	Step    string
	Message string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Message, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// errStopped means the task became terminal underneath us.
var errStopped = errors.New("task already terminal")

type Orchestrator struct {
	tracker      Tracker
	rasterizer   Rasterizer
	uploader     Uploader
	composer     Composer
	cleanupDelay time.Duration
	logger       *zap.Logger
}

func NewOrchestrator(tracker Tracker, rasterizer Rasterizer, uploader Uploader, composer Composer, cleanupDelay time.Duration, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		tracker:      tracker,
		rasterizer:   rasterizer,
		uploader:     uploader,
		composer:     composer,
		cleanupDelay: cleanupDelay,
		logger:       logger,
	}
}

// Run drives one task to a terminal state. Stages run strictly in order and
// the first failure ends the task. The temp dir is removed after the cleanup
// delay whatever the outcome.
func (o *Orchestrator) Run(ctx context.Context, taskID string) {
	logger := o.logger.With(zap.String("task_id", taskID))

	task, err := o.tracker.Get(ctx, taskID)
	if err != nil {
		logger.Error("Task vanished before processing", zap.Error(err))
		return
	}
	defer o.scheduleCleanup(taskID, task.TempDir)

	step := StepRasterize
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in pipeline", zap.String("step", step), zap.Any("error", r))
			o.fail(context.Background(), taskID, &StageError{
				Step:    step,
				Message: "unexpected internal error",
				Err:     fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
			}, logger)
		}
	}()

	err = o.run(ctx, task, &step, logger)
	switch {
	case err == nil:
		logger.Info("Task completed")
	case errors.Is(err, errStopped):
		logger.Warn("Task stopped, already terminal")
	default:
		var stageErr *StageError
		if !errors.As(err, &stageErr) {
			stageErr = &StageError{Step: step, Message: "stage failed", Err: err}
		}
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			stageErr.Message = "interrupted by shutdown"
		}
		o.fail(context.Background(), taskID, stageErr, logger)
	}
}

func (o *Orchestrator) run(ctx context.Context, task *models.Task, step *string, logger *zap.Logger) error {
	id := task.ID

	*step = StepRasterize
	files, err := o.rasterizeStage(ctx, task)
	// The source bytes are not needed past this point either way. Drop both
	// the stored copy and this snapshot's reference so the PDF can be freed
	// while the later stages run.
	task.Buffer = nil
	if _, uerr := o.tracker.Update(ctx, id, models.TaskPatch{ClearBuffer: true}); uerr != nil && !errors.Is(uerr, repository.ErrTaskTerminal) {
		logger.Warn("Failed to release source buffer", zap.Error(uerr))
	}
	if err != nil {
		return err
	}
	logger.Info("Pages rasterized", zap.Int("pages", len(files)))

	*step = StepUpload
	urls, err := o.uploadStage(ctx, id, files)
	if err != nil {
		return err
	}

	*step = StepSubmit
	reqID, err := o.submitStage(ctx, task, urls)
	if err != nil {
		return err
	}

	*step = StepPoll
	vid, err := o.pollStage(ctx, id, reqID)
	if err != nil {
		return err
	}

	*step = StepPlayback
	info, err := o.composer.PlayInfo(ctx, vid)
	if err != nil {
		return &StageError{Step: StepPlayback, Message: "failed to resolve playback URL", Err: err}
	}

	return o.update(ctx, id, models.TaskPatch{
		Status:      models.StatusPtr(models.StatusSuccess),
		Progress:    models.IntPtr(progressDone),
		Message:     models.StringPtr("Video ready"),
		VideoURL:    models.StringPtr(info.PlayURL),
		DownloadURL: models.StringPtr(info.DownloadURL),
		Log:         "Video ready",
	})
}

func (o *Orchestrator) rasterizeStage(ctx context.Context, task *models.Task) ([]string, error) {
	id := task.ID
	if err := o.update(ctx, id, models.TaskPatch{
		Status:   models.StatusPtr(models.StatusProcessing),
		Progress: models.IntPtr(progressRasterStart),
		Message:  models.StringPtr("Rendering slides"),
		Log:      "Rasterization started",
	}); err != nil {
		return nil, err
	}

	pdf := task.Buffer
	if len(pdf) == 0 {
		data, err := os.ReadFile(filepath.Join(task.TempDir, SourceFileName))
		if err != nil {
			return nil, &StageError{Step: StepRasterize, Message: "source document unavailable", Err: err}
		}
		pdf = data
	}

	outDir := filepath.Join(task.TempDir, "pages")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, &StageError{Step: StepRasterize, Message: "failed to prepare output directory", Err: err}
	}

	files, err := o.rasterizer.Rasterize(ctx, pdf, task.Resolution, outDir, func(done, total int) {
		o.progress(ctx, id, band(progressRasterStart, progressUploadStart, done, total),
			fmt.Sprintf("Rendered slide %d of %d", done, total))
	})
	if err != nil {
		msg := "failed to render slides"
		if errors.Is(err, rasterize.ErrTimeout) {
			msg = "rendering timed out"
		} else if errors.Is(err, rasterize.ErrNoPages) {
			msg = "no pages produced"
		}
		return nil, &StageError{Step: StepRasterize, Message: msg, Err: err}
	}
	return files, nil
}

func (o *Orchestrator) uploadStage(ctx context.Context, id string, files []string) ([]string, error) {
	if err := o.update(ctx, id, models.TaskPatch{
		Status:   models.StatusPtr(models.StatusUploading),
		Progress: models.IntPtr(progressUploadStart),
		Message:  models.StringPtr("Uploading slides"),
		Log:      fmt.Sprintf("Uploading %d slides", len(files)),
	}); err != nil {
		return nil, err
	}

	urls, err := o.uploader.UploadAll(ctx, id, files, func(done, total int) {
		o.progress(ctx, id, band(progressUploadStart, progressSubmit, done, total),
			fmt.Sprintf("Uploaded slide %d of %d", done, total))
	})
	if err != nil {
		return nil, &StageError{Step: StepUpload, Message: "failed to upload slides", Err: err}
	}
	return urls, nil
}

func (o *Orchestrator) submitStage(ctx context.Context, task *models.Task, urls []string) (string, error) {
	id := task.ID
	if err := o.update(ctx, id, models.TaskPatch{
		Progress: models.IntPtr(progressSubmit),
		Message:  models.StringPtr("Submitting video composition"),
	}); err != nil {
		return "", err
	}

	reqID, err := o.composer.Submit(ctx, composer.Job{
		TaskID:           id,
		ImageURLs:        urls,
		DurationPerSlide: task.DurationPerSlide,
		Transition:       task.Transition,
		Resolution:       task.Resolution,
	})
	if err != nil {
		return "", &StageError{Step: StepSubmit, Message: "failed to submit composition", Err: err}
	}

	if err := o.update(ctx, id, models.TaskPatch{
		Status:   models.StatusPtr(models.StatusRendering),
		Progress: models.IntPtr(progressRendering),
		Message:  models.StringPtr("Composing video"),
		ReqID:    models.StringPtr(reqID),
		Log:      "Composition submitted: " + reqID,
	}); err != nil {
		return "", err
	}
	return reqID, nil
}

func (o *Orchestrator) pollStage(ctx context.Context, id, reqID string) (string, error) {
	vid, err := o.composer.Wait(ctx, reqID, func(attempt, max int) {
		o.progress(ctx, id, band(progressRendering, progressPollEnd, attempt, max),
			fmt.Sprintf("Composing video (check %d of %d)", attempt, max))
	})
	if err != nil {
		msg := "composition failed"
		if errors.Is(err, composer.ErrPollTimeout) {
			msg = "timed out waiting for composition"
		}
		return "", &StageError{Step: StepPoll, Message: msg, Err: err}
	}

	if err := o.update(ctx, id, models.TaskPatch{
		Progress: models.IntPtr(progressPollEnd),
		Message:  models.StringPtr("Resolving playback URL"),
		Vid:      models.StringPtr(vid),
		Log:      "Composition finished: " + vid,
	}); err != nil {
		return "", err
	}
	return vid, nil
}

func (o *Orchestrator) update(ctx context.Context, id string, patch models.TaskPatch) error {
	_, err := o.tracker.Update(ctx, id, patch)
	if errors.Is(err, repository.ErrTaskTerminal) {
		return errStopped
	}
	return err
}

// progress is advisory; a failed write must not abort the stage.
func (o *Orchestrator) progress(ctx context.Context, id string, pct int, msg string) {
	if _, err := o.tracker.Update(ctx, id, models.TaskPatch{
		Progress: models.IntPtr(pct),
		Message:  models.StringPtr(msg),
	}); err != nil && !errors.Is(err, repository.ErrTaskTerminal) {
		o.logger.Warn("Failed to record progress", zap.String("task_id", id), zap.Error(err))
	}
}

func (o *Orchestrator) fail(ctx context.Context, id string, stageErr *StageError, logger *zap.Logger) {
	logger.Error("Task failed",
		zap.String("step", stageErr.Step),
		zap.String("reason", stageErr.Message),
		zap.Error(stageErr.Err),
	)

	detail := ""
	if stageErr.Err != nil {
		detail = fmt.Sprintf("%+v", stageErr.Err)
	}

	_, err := o.tracker.Update(ctx, id, models.TaskPatch{
		Status:   models.StatusPtr(models.StatusFailed),
		Progress: models.IntPtr(progressDone),
		Message:  models.StringPtr(fmt.Sprintf("Failed at %s: %s", stageErr.Step, stageErr.Message)),
		Error: &models.TaskError{
			Step:    stageErr.Step,
			Message: stageErr.Message,
			Detail:  detail,
		},
		ClearBuffer: true,
		Log:         fmt.Sprintf("%s failed: %s", stageErr.Step, stageErr.Message),
	})
	if err != nil && !errors.Is(err, repository.ErrTaskTerminal) {
		logger.Error("Failed to record task failure", zap.Error(err))
	}
}

func (o *Orchestrator) scheduleCleanup(id, dir string) {
	if dir == "" {
		return
	}
	time.AfterFunc(o.cleanupDelay, func() {
		if err := os.RemoveAll(dir); err != nil {
			o.logger.Debug("Cleanup failed", zap.String("task_id", id), zap.Error(err))
			return
		}
		o.logger.Debug("Temp dir removed", zap.String("task_id", id))
	})
}

// band maps done/total linearly onto [lo, hi].
func band(lo, hi, done, total int) int {
	if total <= 0 {
		return lo
	}
	if done > total {
		done = total
	}
	return lo + (hi-lo)*done/total
}

// SourceFileName is the name of the uploaded PDF inside a task's temp dir.
const SourceFileName = "source.pdf"
