package validation

import (
	"testing"

	"slideConverter/api/models"
)

func TestParseResolution(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want models.Resolution
	}{
		{"empty uses default", "", DefaultResolution},
		{"single number uses default", "1920", DefaultResolution},
		{"garbage uses default", "hd please", DefaultResolution},
		{"in range", "1920x1080", models.Resolution{Width: 1920, Height: 1080}},
		{"uppercase separator", "800X600", models.Resolution{Width: 800, Height: 600}},
		{"spaces", " 1024 x 768 ", models.Resolution{Width: 1024, Height: 768}},
		{"clamped low", "10x10", models.Resolution{Width: MinWidth, Height: MinHeight}},
		{"clamped high", "10000x9000", models.Resolution{Width: MaxWidth, Height: MaxHeight}},
		{"sides clamped independently", "100x1080", models.Resolution{Width: MinWidth, Height: 1080}},
		{"overlong side clamped", "99999999999999999999x1080", models.Resolution{Width: MaxWidth, Height: 1080}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseResolution(tt.raw); got != tt.want {
				t.Errorf("ParseResolution(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", DefaultDuration},
		{"abc", DefaultDuration},
		{"NaN", DefaultDuration},
		{"Inf", DefaultDuration},
		{"0", DefaultDuration},
		{"4", 4},
		{"4.7", 4},
		{"1", MinDuration},
		{"-3", MinDuration},
		{"25", MaxDuration},
		{"99999999999999999999", MaxDuration},
		{"-99999999999999999999", MinDuration},
		{"0.5", DefaultDuration},
	}

	for _, tt := range tests {
		if got := ParseDuration(tt.raw); got != tt.want {
			t.Errorf("ParseDuration(%q) = %d, want %d", tt.raw, got, tt.want)
		}
		if got := ParseDuration(tt.raw); got < MinDuration || got > MaxDuration {
			t.Errorf("ParseDuration(%q) = %d outside [%d,%d]", tt.raw, got, MinDuration, MaxDuration)
		}
	}
}

func TestParseTransition(t *testing.T) {
	if got := ParseTransition("none"); got != models.TransitionNone {
		t.Errorf("Expected none, got %s", got)
	}
	if got := ParseTransition("NONE"); got != models.TransitionNone {
		t.Errorf("Expected none, got %s", got)
	}
	for _, raw := range []string{"", "fade", "wipe"} {
		if got := ParseTransition(raw); got != models.TransitionFade {
			t.Errorf("ParseTransition(%q) = %s, want fade", raw, got)
		}
	}
}

func TestValidateUpload(t *testing.T) {
	const max = 50 << 20

	if err := ValidateUpload("deck.pdf", 1024, max); err != nil {
		t.Errorf("Expected valid upload, got %v", err)
	}
	if err := ValidateUpload("DECK.PDF", 1024, max); err != nil {
		t.Errorf("Expected uppercase extension to pass, got %v", err)
	}
	if err := ValidateUpload("slides.pptx", 1024, max); err != ErrInvalidFileType {
		t.Errorf("Expected ErrInvalidFileType, got %v", err)
	}
	if err := ValidateUpload("", 1024, max); err != ErrMissingFile {
		t.Errorf("Expected ErrMissingFile, got %v", err)
	}
	if err := ValidateUpload("deck.pdf", 0, max); err != ErrEmptyFile {
		t.Errorf("Expected ErrEmptyFile, got %v", err)
	}
	if err := ValidateUpload("deck.pdf", max+1, max); err != ErrFileTooLarge {
		t.Errorf("Expected ErrFileTooLarge, got %v", err)
	}
}

func TestHasPDFSignature(t *testing.T) {
	if !HasPDFSignature([]byte("%PDF-1.4\n...")) {
		t.Error("Expected PDF header to be detected")
	}
	if HasPDFSignature([]byte("PK\x03\x04 zip archive")) {
		t.Error("Expected zip header to be rejected")
	}
}
