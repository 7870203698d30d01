package service

import (
	"encoding/gob"
	"fmt"
	"io"
	"runtime/debug"

	"go.uber.org/zap"

	"slideConverter/worker/protocol"
)

type Renderer interface {
	Render(pdf []byte, width, height int) ([]protocol.Page, error)
	CountPages(pdf []byte) (int, error)
}

type Processor struct {
	renderer Renderer
	logger   *zap.Logger
}

func NewProcessor(renderer Renderer, logger *zap.Logger) *Processor {
	return &Processor{
		renderer: renderer,
		logger:   logger,
	}
}

// Serve reads one request from in and writes exactly one response to out.
// Failures of the document itself are reported inside the response; the
// returned error only covers broken pipes.
func (p *Processor) Serve(in io.Reader, out io.Writer) error {
	var req protocol.Request
	var resp *protocol.Response

	if err := gob.NewDecoder(in).Decode(&req); err != nil {
		resp = errorResponse(protocol.ErrKindInvalidRequest, fmt.Sprintf("decode request: %v", err))
	} else {
		resp = p.Process(&req)
	}

	if err := gob.NewEncoder(out).Encode(resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}

func (p *Processor) Process(req *protocol.Request) (resp *protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Panic during rasterization",
				zap.Any("error", r),
				zap.ByteString("stack", debug.Stack()),
			)
			resp = errorResponse(protocol.ErrKindPanic, fmt.Sprint(r))
		}
	}()

	if len(req.PDF) == 0 {
		return errorResponse(protocol.ErrKindInvalidRequest, "empty document")
	}

	switch req.Mode {
	case protocol.ModeCount:
		n, err := p.renderer.CountPages(req.PDF)
		if err != nil {
			return errorResponse(protocol.ErrKindOpen, err.Error())
		}
		return &protocol.Response{PageCount: n}

	case protocol.ModeRender:
		pages, err := p.renderer.Render(req.PDF, req.Width, req.Height)
		if err != nil {
			return errorResponse(protocol.ErrKindRender, err.Error())
		}
		return &protocol.Response{Pages: pages, PageCount: len(pages)}

	default:
		return errorResponse(protocol.ErrKindInvalidRequest, fmt.Sprintf("unknown mode %q", req.Mode))
	}
}

func errorResponse(kind protocol.ErrorKind, msg string) *protocol.Response {
	return &protocol.Response{Error: &protocol.Error{Kind: kind, Message: msg}}
}
