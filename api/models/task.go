package models

import (
	"time"
)

type TaskStatus string

const (
	StatusQueued     TaskStatus = "queued"
	StatusProcessing TaskStatus = "processing"
	StatusUploading  TaskStatus = "uploading"
	StatusRendering  TaskStatus = "rendering"
	StatusSuccess    TaskStatus = "success"
	StatusFailed     TaskStatus = "failed"
)

// Terminal reports whether no further stage may run for a task in this status.
func (s TaskStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

type Transition string

const (
	TransitionNone Transition = "none"
	TransitionFade Transition = "fade"
)

type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

type TaskError struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type Task struct {
	ID               string     `json:"id"`
	TraceID          string     `json:"trace_id,omitempty"`
	Status           TaskStatus `json:"status"`
	Progress         int        `json:"progress"`
	Message          string     `json:"message"`
	Logs             []LogEntry `json:"logs"`
	Error            *TaskError `json:"error,omitempty"`
	Resolution       Resolution `json:"resolution"`
	Transition       Transition `json:"transition"`
	DurationPerSlide int        `json:"duration_per_slide"`
	Buffer           []byte     `json:"-"`
	TempDir          string     `json:"-"`
	FileName         string     `json:"file_name"`
	PageCount        *int       `json:"page_count,omitempty"`
	PageCountError   string     `json:"page_count_error,omitempty"`
	VideoURL         string     `json:"video_url,omitempty"`
	DownloadURL      string     `json:"download_url,omitempty"`
	ReqID            string     `json:"req_id,omitempty"`
	Vid              string     `json:"vid,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TaskPatch is a partial update merged into the stored record. Nil fields are
// left untouched.
type TaskPatch struct {
	Status      *TaskStatus
	Progress    *int
	Message     *string
	Error       *TaskError
	VideoURL    *string
	DownloadURL *string
	ReqID       *string
	Vid         *string
	ClearBuffer bool
	Log         string
}

func StatusPtr(s TaskStatus) *TaskStatus { return &s }

func IntPtr(i int) *int { return &i }

func StringPtr(s string) *string { return &s }

// ChangesFields reports whether the patch touches visible task state.
// Log appends and buffer release do not count.
func (p TaskPatch) ChangesFields() bool {
	return p.Status != nil || p.Progress != nil || p.Message != nil || p.Error != nil ||
		p.VideoURL != nil || p.DownloadURL != nil || p.ReqID != nil || p.Vid != nil
}
