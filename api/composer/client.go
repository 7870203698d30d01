package composer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"slideConverter/api/config"
	"slideConverter/api/models"
)

var (
	ErrPollTimeout = errors.New("timed out waiting for composition")
	ErrNoJobID     = errors.New("composition service returned no job id")
	ErrNoOutput    = errors.New("composition finished without an output asset")
	ErrNotConfig   = errors.New("composition service is not configured (COMPOSER_BASE_URL)")
)

const maxFadeMillis = 800

type Client struct {
	baseURL      string
	apiKey       string
	space        string
	fps          int
	pollInterval time.Duration
	pollAttempts int
	http         *http.Client
	logger       *zap.Logger
}

func NewClient(cfg config.ComposerConfig, logger *zap.Logger) *Client {
	attempts := cfg.PollAttempts
	if attempts <= 0 {
		attempts = 60
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		space:        cfg.Space,
		fps:          cfg.Fps,
		pollInterval: cfg.PollInterval,
		pollAttempts: attempts,
		http:         &http.Client{Timeout: cfg.Timeout},
		logger:       logger,
	}
}

// Job describes one slideshow composition.
type Job struct {
	TaskID           string
	ImageURLs        []string
	DurationPerSlide int
	Transition       models.Transition
	Resolution       models.Resolution
}

// Submit sends the timeline and returns the remote job id.
func (c *Client) Submit(ctx context.Context, job Job) (string, error) {
	if len(job.ImageURLs) == 0 {
		return "", errors.New("no images to compose")
	}

	body := submitRequest{
		Space:     c.space,
		EditParam: BuildTimeline(job, c.fps),
	}

	var out submitResponse
	if err := c.do(ctx, http.MethodPost, "/SubmitDirectEditTaskAsync", nil, body, &out); err != nil {
		return "", fmt.Errorf("submit composition: %w", err)
	}
	if err := out.ResponseMetadata.err(); err != nil {
		return "", fmt.Errorf("submit composition: %w", err)
	}
	if out.Result.ReqID == "" {
		return "", ErrNoJobID
	}

	c.logger.Info("Composition submitted",
		zap.String("task_id", job.TaskID),
		zap.String("req_id", out.Result.ReqID),
		zap.Int("segments", len(body.EditParam.Segments)),
	)
	return out.Result.ReqID, nil
}

// Wait polls the job until the remote side reports a terminal status or the
// attempt budget runs out. onAttempt is called after every non-terminal poll.
func (c *Client) Wait(ctx context.Context, reqID string, onAttempt func(attempt, max int)) (string, error) {
	for attempt := 1; attempt <= c.pollAttempts; attempt++ {
		var out resultResponse
		query := url.Values{"ReqId": {reqID}}
		if err := c.do(ctx, http.MethodGet, "/GetDirectEditResult", query, nil, &out); err != nil {
			return "", fmt.Errorf("poll composition: %w", err)
		}
		if err := out.ResponseMetadata.err(); err != nil {
			return "", fmt.Errorf("poll composition: %w", err)
		}

		switch normalizeStatus(out.Result.Status) {
		case statusDone:
			vid := out.Result.outputVid()
			if vid == "" {
				return "", ErrNoOutput
			}
			return vid, nil
		case statusFailed:
			msg := out.Result.Message
			if msg == "" {
				msg = out.Result.Status
			}
			return "", fmt.Errorf("composition failed: %s", msg)
		}

		if onAttempt != nil {
			onAttempt(attempt, c.pollAttempts)
		}
		if attempt == c.pollAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return "", fmt.Errorf("%w after %d attempts", ErrPollTimeout, c.pollAttempts)
}

// BuildTimeline lays out one segment per image. Fade transitions last at most
// half a slide and never more than 800ms.
func BuildTimeline(job Job, fps int) EditParam {
	durMillis := job.DurationPerSlide * 1000

	var transition *Transition
	if job.Transition == models.TransitionFade {
		d := durMillis / 2
		if d > maxFadeMillis {
			d = maxFadeMillis
		}
		transition = &Transition{Type: "fade", Duration: d}
	}

	segments := make([]Segment, 0, len(job.ImageURLs))
	for _, u := range job.ImageURLs {
		segments = append(segments, Segment{
			Duration: durMillis,
			Elements: []Element{{
				Type:      "image",
				Source:    u,
				StartTime: 0,
				EndTime:   durMillis,
				Width:     job.Resolution.Width,
				Height:    job.Resolution.Height,
			}},
			Transition: transition,
		})
	}

	return EditParam{
		Canvas:   Canvas{Width: job.Resolution.Width, Height: job.Resolution.Height},
		Fps:      fps,
		Segments: segments,
	}
}

type remoteStatus int

const (
	statusPending remoteStatus = iota
	statusDone
	statusFailed
)

func normalizeStatus(s string) remoteStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success", "succeed":
		return statusDone
	case "failed", "fail":
		return statusFailed
	default:
		return statusPending
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	if c.baseURL == "" {
		return ErrNotConfig
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		if resp.StatusCode >= 300 {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(data), 200))
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if meta, ok := out.(metadataCarrier); ok {
			if err := meta.metadata().err(); err != nil {
				return err
			}
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
