// Package protocol defines the single request/response exchange between the
// API process and a rasterization worker. The request is gob-encoded on the
// worker's stdin and exactly one response is gob-encoded on its stdout.
package protocol

// WorkerEnv is set in the environment of every spawned worker. A process that
// sees it must never spawn another worker.
const WorkerEnv = "SLIDE_WORKER"

type Mode string

const (
	ModeRender Mode = "render"
	ModeCount  Mode = "count"
)

type Request struct {
	Mode   Mode
	PDF    []byte
	Width  int
	Height int
}

// Page holds non-premultiplied RGBA pixels, row-major, 4 bytes per pixel.
type Page struct {
	Index  int
	Pixels []byte
	Width  int
	Height int
}

type ErrorKind string

const (
	ErrKindInvalidRequest ErrorKind = "invalid_request"
	ErrKindOpen           ErrorKind = "open"
	ErrKindRender         ErrorKind = "render"
	ErrKindPanic          ErrorKind = "panic"
)

type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

type Response struct {
	Pages     []Page
	PageCount int
	Error     *Error
}
