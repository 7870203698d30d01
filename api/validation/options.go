package validation

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"slideConverter/api/models"
)

const (
	MinWidth  = 320
	MaxWidth  = 3840
	MinHeight = 240
	MaxHeight = 2160

	MinDuration     = 2
	MaxDuration     = 10
	DefaultDuration = 3
)

var (
	DefaultResolution = models.Resolution{Width: 1280, Height: 720}

	resolutionPattern = regexp.MustCompile(`(\d+)\s*[xX×*]\s*(\d+)`)
)

// ParseResolution reads a "WxH" string. Input without two numbers yields the
// default; otherwise each side is clamped independently.
func ParseResolution(raw string) models.Resolution {
	m := resolutionPattern.FindStringSubmatch(raw)
	if m == nil {
		return DefaultResolution
	}
	return models.Resolution{
		Width:  parseSide(m[1], MinWidth, MaxWidth),
		Height: parseSide(m[2], MinHeight, MaxHeight),
	}
}

// parseSide clamps a run of digits, including ones too long for an int.
func parseSide(digits string, lo, hi int) int {
	n, err := strconv.Atoi(digits)
	if err != nil {
		// The pattern only admits digits, so the one failure is overflow.
		return hi
	}
	return clamp(n, lo, hi)
}

// ParseDuration returns seconds per slide. Empty, non-numeric and zero input
// falls back to the default; any other number is clamped to [2,10].
func ParseDuration(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultDuration
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return DefaultDuration
	}
	f = math.Trunc(f)
	switch {
	case f == 0:
		return DefaultDuration
	case f < MinDuration:
		return MinDuration
	case f > MaxDuration:
		return MaxDuration
	}
	return int(f)
}

func ParseTransition(raw string) models.Transition {
	if strings.EqualFold(strings.TrimSpace(raw), string(models.TransitionNone)) {
		return models.TransitionNone
	}
	return models.TransitionFade
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
