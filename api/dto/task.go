package dto

import (
	"errors"

	"slideConverter/api/models"
)

var ErrTaskNotFound = errors.New("task not found")

type CreateTaskRequest struct {
	FileName         string
	Data             []byte
	Resolution       models.Resolution
	Transition       models.Transition
	DurationPerSlide int
}

type CreateTaskResponse struct {
	TaskID         string  `json:"taskId"`
	Status         string  `json:"status"`
	FileName       string  `json:"fileName"`
	FileSizeMB     float64 `json:"fileSizeMB"`
	PageCount      *int    `json:"pageCount"`
	PageCountError *string `json:"pageCountError"`
}

type StatusResponse struct {
	Status      string            `json:"status"`
	Progress    int               `json:"progress"`
	Message     string            `json:"message"`
	VideoURL    string            `json:"videoUrl"`
	DownloadURL string            `json:"downloadUrl"`
	Error       *models.TaskError `json:"error"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Detail  string `json:"detail,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}
