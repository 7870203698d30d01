// Package probe answers "how many pages does this PDF have" without
// rendering anything.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

type Counter interface {
	PageCount(ctx context.Context, pdf []byte) (int, error)
}

// PDFCPUCounter parses the document in process with relaxed validation.
type PDFCPUCounter struct {
	conf *model.Configuration
}

func NewPDFCPUCounter() *PDFCPUCounter {
	api.DisableConfigDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCPUCounter{conf: conf}
}

func (c *PDFCPUCounter) PageCount(ctx context.Context, pdf []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("pdfcpu panicked: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err = api.PageCount(bytes.NewReader(pdf), c.conf)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("document has no pages")
	}
	return n, nil
}

type named struct {
	name    string
	counter Counter
}

// Chain asks each counter in turn and returns the first answer.
type Chain struct {
	counters []named
	logger   *zap.Logger
}

func NewChain(logger *zap.Logger) *Chain {
	return &Chain{logger: logger}
}

func (c *Chain) Add(name string, counter Counter) *Chain {
	c.counters = append(c.counters, named{name: name, counter: counter})
	return c
}

func (c *Chain) PageCount(ctx context.Context, pdf []byte) (int, error) {
	var errs []error
	for _, nc := range c.counters {
		n, err := nc.counter.PageCount(ctx, pdf)
		if err == nil {
			return n, nil
		}
		c.logger.Debug("Page count probe failed", zap.String("probe", nc.name), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", nc.name, err))
	}
	if len(errs) == 0 {
		return 0, errors.New("no page counter configured")
	}
	return 0, errors.Join(errs...)
}
