package rasterize

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"

	"slideConverter/api/models"
	"slideConverter/worker/protocol"
)

var (
	ErrTimeout      = errors.New("rasterization timed out")
	ErrNoPages      = errors.New("no pages produced")
	ErrNestedWorker = errors.New("refusing to spawn a worker from inside a worker")
)

// ProgressFunc is called after each page image is written.
type ProgressFunc func(done, total int)

type Options struct {
	WorkerPath string
	Args       []string
	Env        []string
	Timeout    time.Duration
	WaitDelay  time.Duration
}

// Dispatcher runs one worker process per call and tears it down before
// returning, whatever the outcome.
type Dispatcher struct {
	opts   Options
	logger *zap.Logger
}

func NewDispatcher(opts Options, logger *zap.Logger) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.WaitDelay <= 0 {
		opts.WaitDelay = 2 * time.Second
	}
	return &Dispatcher{opts: opts, logger: logger}
}

// Rasterize renders pdf at res and writes one PNG per page into outDir,
// named 001.png, 002.png and so on. The returned paths are in page order.
func (d *Dispatcher) Rasterize(ctx context.Context, pdf []byte, res models.Resolution, outDir string, progress ProgressFunc) ([]string, error) {
	resp, err := d.call(ctx, &protocol.Request{
		Mode:   protocol.ModeRender,
		PDF:    pdf,
		Width:  res.Width,
		Height: res.Height,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Pages) == 0 {
		return nil, ErrNoPages
	}

	total := len(resp.Pages)
	files := make([]string, 0, total)
	for i := range resp.Pages {
		page := &resp.Pages[i]
		img, err := toImage(page, res)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}

		path := filepath.Join(outDir, fmt.Sprintf("%03d.png", i+1))
		if err := imaging.Save(img, path); err != nil {
			return nil, fmt.Errorf("failed to save page %d: %w", i+1, err)
		}
		page.Pixels = nil
		files = append(files, path)

		if progress != nil {
			progress(i+1, total)
		}
	}

	return files, nil
}

// PageCount asks a worker for the number of pages without rendering them.
func (d *Dispatcher) PageCount(ctx context.Context, pdf []byte) (int, error) {
	resp, err := d.call(ctx, &protocol.Request{Mode: protocol.ModeCount, PDF: pdf})
	if err != nil {
		return 0, err
	}
	return resp.PageCount, nil
}

func (d *Dispatcher) call(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if os.Getenv(protocol.WorkerEnv) != "" {
		return nil, ErrNestedWorker
	}

	var input bytes.Buffer
	if err := gob.NewEncoder(&input).Encode(req); err != nil {
		return nil, fmt.Errorf("encode worker request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	stderr := &zapio.Writer{Log: d.logger.With(zap.String("component", "raster-worker")), Level: zapcore.DebugLevel}
	defer stderr.Close()

	cmd := exec.CommandContext(ctx, d.opts.WorkerPath, d.opts.Args...)
	cmd.Env = append(append(os.Environ(), d.opts.Env...), protocol.WorkerEnv+"=1")
	cmd.Stdin = &input
	cmd.Stderr = stderr
	cmd.WaitDelay = d.opts.WaitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open worker stdout: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker %s: %w", d.opts.WorkerPath, err)
	}

	var resp protocol.Response
	decodeErr := gob.NewDecoder(stdout).Decode(&resp)
	if decodeErr != nil {
		// Unblock a worker that is still writing so Wait can return.
		cmd.Process.Kill()
	}
	waitErr := cmd.Wait()

	d.logger.Debug("Worker finished",
		zap.String("mode", string(req.Mode)),
		zap.Duration("elapsed", time.Since(start)),
		zap.NamedError("wait_error", waitErr),
	)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrTimeout, d.opts.Timeout)
	}
	if decodeErr != nil {
		if waitErr != nil {
			return nil, fmt.Errorf("worker exited without a response: %w", waitErr)
		}
		return nil, fmt.Errorf("read worker response: %w", decodeErr)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("worker failed: %w", resp.Error)
	}

	return &resp, nil
}

func toImage(page *protocol.Page, res models.Resolution) (*image.NRGBA, error) {
	if page.Width != res.Width || page.Height != res.Height {
		return nil, fmt.Errorf("unexpected size %dx%d, want %dx%d", page.Width, page.Height, res.Width, res.Height)
	}
	if len(page.Pixels) != 4*page.Width*page.Height {
		return nil, fmt.Errorf("pixel buffer has %d bytes, want %d", len(page.Pixels), 4*page.Width*page.Height)
	}
	return &image.NRGBA{
		Pix:    page.Pixels,
		Stride: 4 * page.Width,
		Rect:   image.Rect(0, 0, page.Width, page.Height),
	}, nil
}

// ResolveWorkerPath prefers a worker binary installed next to the running
// executable, then falls back to PATH lookup.
func ResolveWorkerPath(name string) (string, error) {
	if filepath.IsAbs(name) || filepath.Base(name) != name {
		return name, nil
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("locate rasterization worker %q: %w", name, err)
	}
	return path, nil
}
