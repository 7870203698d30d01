package composer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

var ErrNoPlayURL = errors.New("playback info contains no playable URL")

type PlayInfo struct {
	PlayURL     string
	DownloadURL string
}

// PlayInfo resolves the URLs of a composed asset. The play URL is the main
// URL, else the backup; the download URL falls back to the play URL.
func (c *Client) PlayInfo(ctx context.Context, vid string) (*PlayInfo, error) {
	var out playInfoResponse
	if err := c.do(ctx, http.MethodGet, "/GetPlayInfo", url.Values{"Vid": {vid}}, nil, &out); err != nil {
		return nil, fmt.Errorf("get play info: %w", err)
	}
	if err := out.ResponseMetadata.err(); err != nil {
		return nil, fmt.Errorf("get play info: %w", err)
	}

	info := &PlayInfo{PlayURL: out.Result.MainPlayURL}
	if info.PlayURL == "" {
		info.PlayURL = out.Result.BackupPlayURL
	}
	if info.PlayURL == "" {
		return nil, ErrNoPlayURL
	}

	info.DownloadURL = out.Result.DownloadURL
	if info.DownloadURL == "" {
		info.DownloadURL = info.PlayURL
	}

	c.logger.Debug("Playback resolved", zap.String("vid", vid))
	return info, nil
}
