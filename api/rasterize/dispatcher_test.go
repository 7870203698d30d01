package rasterize

import (
	"context"
	"encoding/gob"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"slideConverter/api/models"
	"slideConverter/worker/protocol"
	"slideConverter/worker/service"
)

type solidRenderer struct {
	pages int
}

func (r *solidRenderer) Render(pdf []byte, width, height int) ([]protocol.Page, error) {
	pages := make([]protocol.Page, r.pages)
	for i := range pages {
		pix := make([]byte, 4*width*height)
		for j := range pix {
			pix[j] = 0xff
		}
		pages[i] = protocol.Page{Index: i + 1, Pixels: pix, Width: width, Height: height}
	}
	return pages, nil
}

func (r *solidRenderer) CountPages(pdf []byte) (int, error) {
	return r.pages, nil
}

// TestHelperProcess is not a real test. The dispatcher tests re-execute the
// test binary with GO_WANT_HELPER_PROCESS set so that it acts as a worker.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	switch os.Getenv("HELPER_MODE") {
	case "ok":
		service.NewProcessor(&solidRenderer{pages: 3}, zap.NewNop()).Serve(os.Stdin, os.Stdout)
	case "empty":
		service.NewProcessor(&solidRenderer{pages: 0}, zap.NewNop()).Serve(os.Stdin, os.Stdout)
	case "error":
		gob.NewEncoder(os.Stdout).Encode(&protocol.Response{
			Error: &protocol.Error{Kind: protocol.ErrKindOpen, Message: "no objects found"},
		})
	case "badsize":
		gob.NewEncoder(os.Stdout).Encode(&protocol.Response{
			Pages: []protocol.Page{{Index: 1, Pixels: []byte{1, 2, 3}, Width: 4, Height: 4}},
		})
	case "sleep":
		time.Sleep(30 * time.Second)
	case "crash":
		os.Stderr.WriteString("fatal: out of memory\n")
		os.Exit(3)
	}
}

func newHelperDispatcher(t *testing.T, mode string, timeout time.Duration) *Dispatcher {
	return NewDispatcher(Options{
		WorkerPath: os.Args[0],
		Args:       []string{"-test.run=^TestHelperProcess$", "--"},
		Env:        []string{"GO_WANT_HELPER_PROCESS=1", "HELPER_MODE=" + mode},
		Timeout:    timeout,
		WaitDelay:  500 * time.Millisecond,
	}, zaptest.NewLogger(t))
}

func TestDispatcher_Rasterize(t *testing.T) {
	d := newHelperDispatcher(t, "ok", 30*time.Second)
	outDir := t.TempDir()
	res := models.Resolution{Width: 64, Height: 36}

	var calls [][2]int
	files, err := d.Rasterize(context.Background(), []byte("%PDF-1.4"), res, outDir, func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("Expected 3 files, got %d", len(files))
	}
	for i, name := range []string{"001.png", "002.png", "003.png"} {
		if files[i] != filepath.Join(outDir, name) {
			t.Errorf("Expected %s, got %s", name, files[i])
		}

		f, err := os.Open(files[i])
		if err != nil {
			t.Fatalf("Failed to open output file: %v", err)
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Fatalf("Failed to decode output image: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 36 {
			t.Errorf("Expected dimensions 64x36, got %dx%d", b.Dx(), b.Dy())
		}
	}

	if len(calls) != 3 || calls[0] != [2]int{1, 3} || calls[2] != [2]int{3, 3} {
		t.Errorf("Unexpected progress calls: %v", calls)
	}
}

func TestDispatcher_PageCount(t *testing.T) {
	d := newHelperDispatcher(t, "ok", 30*time.Second)

	n, err := d.PageCount(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("PageCount failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 pages, got %d", n)
	}
}

func TestDispatcher_NoPages(t *testing.T) {
	d := newHelperDispatcher(t, "empty", 30*time.Second)

	_, err := d.Rasterize(context.Background(), []byte("%PDF-1.4"), models.Resolution{Width: 8, Height: 8}, t.TempDir(), nil)
	if !errors.Is(err, ErrNoPages) {
		t.Fatalf("Expected ErrNoPages, got %v", err)
	}
}

func TestDispatcher_WorkerError(t *testing.T) {
	d := newHelperDispatcher(t, "error", 30*time.Second)

	_, err := d.Rasterize(context.Background(), []byte("junk"), models.Resolution{Width: 8, Height: 8}, t.TempDir(), nil)
	var werr *protocol.Error
	if !errors.As(err, &werr) {
		t.Fatalf("Expected protocol error, got %v", err)
	}
	if werr.Kind != protocol.ErrKindOpen {
		t.Errorf("Expected open error, got %s", werr.Kind)
	}
}

func TestDispatcher_BadPixelBuffer(t *testing.T) {
	d := newHelperDispatcher(t, "badsize", 30*time.Second)

	_, err := d.Rasterize(context.Background(), []byte("%PDF-1.4"), models.Resolution{Width: 4, Height: 4}, t.TempDir(), nil)
	if err == nil || !strings.Contains(err.Error(), "pixel buffer") {
		t.Fatalf("Expected pixel buffer error, got %v", err)
	}
}

func TestDispatcher_Timeout(t *testing.T) {
	d := newHelperDispatcher(t, "sleep", 300*time.Millisecond)

	start := time.Now()
	_, err := d.Rasterize(context.Background(), []byte("%PDF-1.4"), models.Resolution{Width: 8, Height: 8}, t.TempDir(), nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Worker was not torn down promptly, took %v", elapsed)
	}
}

func TestDispatcher_Crash(t *testing.T) {
	d := newHelperDispatcher(t, "crash", 30*time.Second)

	_, err := d.Rasterize(context.Background(), []byte("%PDF-1.4"), models.Resolution{Width: 8, Height: 8}, t.TempDir(), nil)
	if err == nil || !strings.Contains(err.Error(), "without a response") {
		t.Fatalf("Expected missing response error, got %v", err)
	}
}

func TestDispatcher_RefusesNestedWorker(t *testing.T) {
	t.Setenv(protocol.WorkerEnv, "1")
	d := newHelperDispatcher(t, "ok", 30*time.Second)

	if _, err := d.PageCount(context.Background(), []byte("%PDF-1.4")); !errors.Is(err, ErrNestedWorker) {
		t.Fatalf("Expected ErrNestedWorker, got %v", err)
	}
}

func TestResolveWorkerPath_Absolute(t *testing.T) {
	path, err := ResolveWorkerPath("/opt/bin/slide-worker")
	if err != nil || path != "/opt/bin/slide-worker" {
		t.Errorf("Expected absolute path to pass through, got %q, %v", path, err)
	}
}
