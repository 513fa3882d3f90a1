package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"NFTSentinel/internal/model"
)

// Fallback asks each quoter in order and returns the first quote obtained.
type Fallback struct {
	Quoters []Quoter
	Log     *zap.Logger
}

func NewFallback(log *zap.Logger, quoters ...Quoter) *Fallback {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fallback{Quoters: quoters, Log: log}
}

func (f *Fallback) Name() string {
	names := make([]string, len(f.Quoters))
	for i, q := range f.Quoters {
		names[i] = q.Name()
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

func (f *Fallback) Quote(ctx context.Context, collectionName string) (model.Quote, error) {
	var errs []error
	for _, q := range f.Quoters {
		quote, err := q.Quote(ctx, collectionName)
		if err == nil {
			return quote, nil
		}
		errs = append(errs, err)
		f.Log.Debug("quoter failed, trying next",
			zap.String("quoter", q.Name()),
			zap.String("collection", collectionName),
			zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return model.Quote{}, fmt.Errorf("no quoters configured: %w", model.ErrQuoteUnavailable)
	}
	return model.Quote{}, fmt.Errorf("all quoters failed for %q: %w", collectionName, errors.Join(errs...))
}
