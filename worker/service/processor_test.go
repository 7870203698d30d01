package service

import (
	"bytes"
	"encoding/gob"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"slideConverter/worker/protocol"
)

type mockRenderer struct {
	renderFunc func(pdf []byte, width, height int) ([]protocol.Page, error)
	countFunc  func(pdf []byte) (int, error)
}

func (m *mockRenderer) Render(pdf []byte, width, height int) ([]protocol.Page, error) {
	if m.renderFunc != nil {
		return m.renderFunc(pdf, width, height)
	}
	return []protocol.Page{{Index: 1, Pixels: make([]byte, 4*width*height), Width: width, Height: height}}, nil
}

func (m *mockRenderer) CountPages(pdf []byte) (int, error) {
	if m.countFunc != nil {
		return m.countFunc(pdf)
	}
	return 1, nil
}

func roundTrip(t *testing.T, p *Processor, req *protocol.Request) *protocol.Response {
	t.Helper()

	var in, out bytes.Buffer
	if err := gob.NewEncoder(&in).Encode(req); err != nil {
		t.Fatalf("Failed to encode request: %v", err)
	}
	if err := p.Serve(&in, &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	var resp protocol.Response
	if err := gob.NewDecoder(&out).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return &resp
}

func TestProcessor_Render(t *testing.T) {
	p := NewProcessor(&mockRenderer{}, zaptest.NewLogger(t))

	resp := roundTrip(t, p, &protocol.Request{Mode: protocol.ModeRender, PDF: []byte("%PDF"), Width: 4, Height: 2})
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if resp.PageCount != 1 || len(resp.Pages) != 1 || len(resp.Pages[0].Pixels) != 32 {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestProcessor_Count(t *testing.T) {
	p := NewProcessor(&mockRenderer{
		countFunc: func(pdf []byte) (int, error) { return 7, nil },
	}, zaptest.NewLogger(t))

	resp := roundTrip(t, p, &protocol.Request{Mode: protocol.ModeCount, PDF: []byte("%PDF")})
	if resp.Error != nil || resp.PageCount != 7 || len(resp.Pages) != 0 {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestProcessor_RenderError(t *testing.T) {
	p := NewProcessor(&mockRenderer{
		renderFunc: func(pdf []byte, width, height int) ([]protocol.Page, error) {
			return nil, errors.New("broken xref")
		},
	}, zaptest.NewLogger(t))

	resp := roundTrip(t, p, &protocol.Request{Mode: protocol.ModeRender, PDF: []byte("%PDF"), Width: 4, Height: 2})
	if resp.Error == nil || resp.Error.Kind != protocol.ErrKindRender {
		t.Fatalf("Expected render error, got %+v", resp.Error)
	}
	if !strings.Contains(resp.Error.Message, "broken xref") {
		t.Errorf("Expected cause in message, got %q", resp.Error.Message)
	}
}

func TestProcessor_PanicIsReported(t *testing.T) {
	p := NewProcessor(&mockRenderer{
		renderFunc: func(pdf []byte, width, height int) ([]protocol.Page, error) {
			panic("mupdf exploded")
		},
	}, zaptest.NewLogger(t))

	resp := roundTrip(t, p, &protocol.Request{Mode: protocol.ModeRender, PDF: []byte("%PDF"), Width: 4, Height: 2})
	if resp.Error == nil || resp.Error.Kind != protocol.ErrKindPanic {
		t.Fatalf("Expected panic error, got %+v", resp.Error)
	}
}

func TestProcessor_InvalidRequests(t *testing.T) {
	p := NewProcessor(&mockRenderer{}, zaptest.NewLogger(t))

	resp := roundTrip(t, p, &protocol.Request{Mode: protocol.ModeRender})
	if resp.Error == nil || resp.Error.Kind != protocol.ErrKindInvalidRequest {
		t.Errorf("Expected invalid request for empty document, got %+v", resp.Error)
	}

	resp = roundTrip(t, p, &protocol.Request{Mode: "explode", PDF: []byte("%PDF")})
	if resp.Error == nil || resp.Error.Kind != protocol.ErrKindInvalidRequest {
		t.Errorf("Expected invalid request for unknown mode, got %+v", resp.Error)
	}

	var out bytes.Buffer
	if err := p.Serve(strings.NewReader("garbage"), &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	var garbled protocol.Response
	if err := gob.NewDecoder(&out).Decode(&garbled); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if garbled.Error == nil || garbled.Error.Kind != protocol.ErrKindInvalidRequest {
		t.Errorf("Expected invalid request for garbage input, got %+v", garbled.Error)
	}
}
