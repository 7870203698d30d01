package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"slideConverter/api/database"
	"slideConverter/api/models"
)

type PostgresRepo struct {
	db *database.DB
}

func NewPostgresRepo(db *database.DB) Archive {
	return &PostgresRepo{db: db}
}

// SaveTask upserts the task. The source PDF bytes and temp dir are never
// persisted.
func (r *PostgresRepo) SaveTask(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO conversion_tasks (
			id, trace_id, file_name, status, progress, message, width, height,
			transition, duration_per_slide, page_count, video_url, download_url,
			req_id, vid, error, logs, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			message = EXCLUDED.message,
			video_url = EXCLUDED.video_url,
			download_url = EXCLUDED.download_url,
			req_id = EXCLUDED.req_id,
			vid = EXCLUDED.vid,
			error = EXCLUDED.error,
			logs = EXCLUDED.logs,
			updated_at = EXCLUDED.updated_at
	`

	var errJSON []byte
	if task.Error != nil {
		data, err := json.Marshal(task.Error)
		if err != nil {
			return err
		}
		errJSON = data
	}

	logs := task.Logs
	if logs == nil {
		logs = []models.LogEntry{}
	}
	logsJSON, err := json.Marshal(logs)
	if err != nil {
		return err
	}

	_, err = r.db.Pool.Exec(ctx, query,
		task.ID,
		task.TraceID,
		task.FileName,
		task.Status,
		task.Progress,
		task.Message,
		task.Resolution.Width,
		task.Resolution.Height,
		task.Transition,
		task.DurationPerSlide,
		task.PageCount,
		task.VideoURL,
		task.DownloadURL,
		task.ReqID,
		task.Vid,
		errJSON,
		logsJSON,
		task.CreatedAt,
		task.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) GetTask(ctx context.Context, id string) (*models.Task, error) {
	query := `
		SELECT id, trace_id, file_name, status, progress, message, width, height,
			transition, duration_per_slide, page_count, video_url, download_url,
			req_id, vid, error, logs, created_at, updated_at
		FROM conversion_tasks
		WHERE id = $1
	`

	row := r.db.Pool.QueryRow(ctx, query, id)

	var (
		task     models.Task
		errJSON  []byte
		logsJSON []byte
	)
	err := row.Scan(
		&task.ID,
		&task.TraceID,
		&task.FileName,
		&task.Status,
		&task.Progress,
		&task.Message,
		&task.Resolution.Width,
		&task.Resolution.Height,
		&task.Transition,
		&task.DurationPerSlide,
		&task.PageCount,
		&task.VideoURL,
		&task.DownloadURL,
		&task.ReqID,
		&task.Vid,
		&errJSON,
		&logsJSON,
		&task.CreatedAt,
		&task.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	if len(errJSON) > 0 {
		var taskErr models.TaskError
		if err := json.Unmarshal(errJSON, &taskErr); err != nil {
			return nil, err
		}
		task.Error = &taskErr
	}
	if len(logsJSON) > 0 {
		if err := json.Unmarshal(logsJSON, &task.Logs); err != nil {
			return nil, err
		}
	}

	return &task, nil
}
