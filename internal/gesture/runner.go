package gesture

import (
	"commsense_backend/pkg/logger"
	"commsense_backend/pkg/monitoring"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Frame is one decoded video frame stored on disk.
type Frame struct {
	Index     int
	Timestamp time.Duration
	Path      string
}

// Extractor finds landmarks and an emotion reading in a frame. Finding
// nothing is not an error.
type Extractor interface {
	Extract(ctx context.Context, f Frame) (Observation, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, f Frame) (Observation, error)

func (fn ExtractorFunc) Extract(ctx context.Context, f Frame) (Observation, error) {
	return fn(ctx, f)
}

var ErrExtractorPanic = errors.New("extractor panicked")

// Runner scores a set of frames concurrently and folds them into a Session.
type Runner struct {
	analyzer *Analyzer
	workers  int
}

func NewRunner(analyzer *Analyzer, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{analyzer: analyzer, workers: workers}
}

// Run extracts and scores every frame. Extraction failures are absorbed as
// empty observations; only context cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, frames []Frame, ex Extractor) (Result, error) {
	session := NewSession()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, f := range frames {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			obs, err := r.extract(gctx, ex, f)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				monitoring.ExtractionFailures.Inc()
				logger.Log.Warn("frame extraction failed",
					zap.Int("frame", f.Index),
					zap.Duration("timestamp", f.Timestamp),
					zap.Error(err))
				obs = Observation{EmotionErr: err}
			}
			session.AddFrame(r.analyzer.AnalyzeFrame(obs))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return session.Finalize(), nil
}

func (r *Runner) extract(ctx context.Context, ex Extractor, f Frame) (obs Observation, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrExtractorPanic, rec)
		}
	}()
	return ex.Extract(ctx, f)
}
