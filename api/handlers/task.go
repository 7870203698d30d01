package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"slideConverter/api/dto"
	"slideConverter/api/middleware"
	"slideConverter/api/validation"
)

// multipart parts above this size spill to disk while parsing.
const formMemory = 32 << 20

type TaskService interface {
	CreateTask(ctx context.Context, traceID string, req *dto.CreateTaskRequest) (*dto.CreateTaskResponse, error)
	GetTaskStatus(ctx context.Context, taskID string) (*dto.StatusResponse, error)
}

type TaskHandler struct {
	service       TaskService
	maxUploadSize int64
	logger        *zap.Logger
}

func NewTaskHandler(service TaskService, maxUploadSize int64, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

func (h *TaskHandler) Routes(r chi.Router) {
	r.Post("/create", h.Create)
	r.Get("/status", h.Status)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	if h.maxUploadSize > 0 {
		// Leave room for the other form fields and multipart framing.
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+(1<<20))
	}

	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.handleError(w, validation.ErrFileTooLarge.Error(), nil, traceID, http.StatusBadRequest)
			return
		}
		h.handleError(w, validation.ErrMissingFile.Error(), nil, traceID, http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.handleError(w, validation.ErrMissingFile.Error(), nil, traceID, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := validation.ValidateUpload(header.Filename, header.Size, h.maxUploadSize); err != nil {
		h.handleError(w, err.Error(), nil, traceID, http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.handleError(w, "Failed to read file", err, traceID, http.StatusInternalServerError)
		return
	}

	req := &dto.CreateTaskRequest{
		FileName:         filepath.Base(header.Filename),
		Data:             data,
		Resolution:       validation.ParseResolution(r.FormValue("resolution")),
		Transition:       validation.ParseTransition(r.FormValue("transition")),
		DurationPerSlide: validation.ParseDuration(r.FormValue("durationPerSlide")),
	}

	resp, err := h.service.CreateTask(r.Context(), traceID, req)
	if err != nil {
		h.handleError(w, "Failed to create task", err, traceID, http.StatusInternalServerError)
		return
	}

	h.logger.Info("Deck uploaded",
		zap.String("trace_id", traceID),
		zap.String("task_id", resp.TaskID),
		zap.String("filename", req.FileName),
		zap.String("resolution", fmt.Sprintf("%dx%d", req.Resolution.Width, req.Resolution.Height)),
		zap.Int("duration_per_slide", req.DurationPerSlide),
		zap.String("transition", string(req.Transition)),
	)

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	taskID := r.URL.Query().Get("taskId")
	if taskID == "" {
		h.handleError(w, "taskId is required", nil, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.GetTaskStatus(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, dto.ErrTaskNotFound) {
			h.handleError(w, "Task not found", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to get task status", err, traceID, http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) handleError(w http.ResponseWriter, message string, err error, traceID string, status int) {
	fields := []zap.Field{zap.String("trace_id", traceID), zap.Int("status", status)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, fields...)
	} else {
		h.logger.Warn(message, fields...)
	}

	resp := dto.ErrorResponse{
		Error:   message,
		TraceID: traceID,
	}
	if err != nil {
		resp.Detail = err.Error()
	}
	h.respondJSON(w, status, resp)
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
