package converter

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"slideConverter/worker/protocol"
)

// pointsPerInch is the PDF user-space unit; a page rendered at this DPI has
// its MediaBox size in pixels.
const pointsPerInch = 72.0

type Converter struct {
	logger *zap.Logger
}

func NewConverter(logger *zap.Logger) *Converter {
	return &Converter{logger: logger}
}

// Render rasterizes every page of the document to exactly width×height.
// Pages are processed one after another on the calling goroutine.
func (c *Converter) Render(pdf []byte, width, height int) ([]protocol.Page, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	c.logger.Info("Starting rasterization",
		zap.Int("pages", total),
		zap.Int("width", width),
		zap.Int("height", height),
	)

	pages := make([]protocol.Page, 0, total)
	for n := 0; n < total; n++ {
		bounds, err := doc.Bound(n)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d bounds: %w", n+1, err)
		}

		dpi := pointsPerInch * coverScale(bounds, width, height)
		src, err := doc.ImageDPI(n, dpi)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", n+1, err)
		}

		fitted := FitPage(src, width, height)
		pages = append(pages, protocol.Page{
			Index:  n + 1,
			Pixels: fitted.Pix,
			Width:  width,
			Height: height,
		})

		c.logger.Debug("Page rendered",
			zap.Int("page", n+1),
			zap.Float64("dpi", dpi),
		)
	}

	c.logger.Info("Rasterization completed", zap.Int("pages", len(pages)))
	return pages, nil
}

func (c *Converter) CountPages(pdf []byte) (int, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return 0, fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	return doc.NumPage(), nil
}

// FitPage scales src to cover width×height, centers it and flattens it onto
// a white canvas. The result always has exactly the requested size and a
// tightly packed Pix slice.
func FitPage(src image.Image, width, height int) *image.NRGBA {
	filled := imaging.Fill(src, width, height, imaging.Center, imaging.Lanczos)
	canvas := imaging.New(width, height, color.White)
	return imaging.OverlayCenter(canvas, filled, 1.0)
}

func coverScale(bounds image.Rectangle, width, height int) float64 {
	bw, bh := float64(bounds.Dx()), float64(bounds.Dy())
	if bw <= 0 || bh <= 0 {
		return 1
	}
	return math.Max(float64(width)/bw, float64(height)/bh)
}
