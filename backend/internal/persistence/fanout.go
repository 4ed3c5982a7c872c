package persistence

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"thinkflow/backend/internal/metrics"
	apperrors "thinkflow/backend/pkg/errors"
	"thinkflow/backend/pkg/logger"
)

// Fanout writes to every backend concurrently and reads from the first one
// that answers. The first backend is the primary: List and Load consult it
// first and fall back to the others only when it fails.
type Fanout struct {
	backends []Backend
	logger   *zap.Logger
}

// NewFanout combines backends; at least one is required
func NewFanout(backends ...Backend) (*Fanout, error) {
	if len(backends) == 0 {
		return nil, apperrors.NewConfigMissingRequired("persistence backend")
	}
	return &Fanout{backends: backends, logger: logger.Named("persistence")}, nil
}

func (f *Fanout) Name() string {
	names := make([]string, len(f.backends))
	for i, b := range f.backends {
		names[i] = b.Name()
	}
	return strings.Join(names, "+")
}

// Backends returns the wrapped backends in priority order
func (f *Fanout) Backends() []Backend {
	return append([]Backend(nil), f.backends...)
}

// Save writes doc to every backend; any failure fails the whole save
func (f *Fanout) Save(ctx context.Context, doc *Document) error {
	return f.each(ctx, "save", func(ctx context.Context, b Backend) error {
		return b.Save(ctx, doc)
	})
}

// Delete removes id from every backend. A backend that never stored the map
// is not an error as long as one backend had it.
func (f *Fanout) Delete(ctx context.Context, id string) error {
	found := make([]bool, len(f.backends))
	err := f.eachIndexed(ctx, "delete", func(ctx context.Context, i int, b Backend) error {
		err := b.Delete(ctx, id)
		if apperrors.IsErrorType(err, apperrors.ErrorTypeReference) {
			return nil
		}
		found[i] = err == nil
		return err
	})
	if err != nil {
		return err
	}
	for _, ok := range found {
		if ok {
			return nil
		}
	}
	return apperrors.NewMindMapNotFound(id)
}

func (f *Fanout) Load(ctx context.Context, id string) (*Document, error) {
	var lastErr error
	for _, b := range f.backends {
		doc, err := b.Load(ctx, id)
		metrics.ObservePersistence(b.Name(), "load", err)
		if err == nil {
			return doc, nil
		}
		if !apperrors.IsErrorType(err, apperrors.ErrorTypeReference) {
			f.logger.Warn("Backend load failed, trying next",
				zap.String("backend", b.Name()),
				zap.String("map_id", id),
				zap.Error(err),
			)
		}
		lastErr = err
	}
	return nil, lastErr
}

func (f *Fanout) List(ctx context.Context) ([]MapRecord, error) {
	var lastErr error
	for _, b := range f.backends {
		records, err := b.List(ctx)
		metrics.ObservePersistence(b.Name(), "list", err)
		if err == nil {
			return records, nil
		}
		f.logger.Warn("Backend list failed, trying next", zap.String("backend", b.Name()), zap.Error(err))
		lastErr = err
	}
	return nil, lastErr
}

func (f *Fanout) Close() error {
	var errs []string
	for _, b := range f.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", b.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close backends: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (f *Fanout) each(ctx context.Context, op string, fn func(context.Context, Backend) error) error {
	return f.eachIndexed(ctx, op, func(ctx context.Context, _ int, b Backend) error {
		return fn(ctx, b)
	})
}

func (f *Fanout) eachIndexed(ctx context.Context, op string, fn func(context.Context, int, Backend) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range f.backends {
		i, b := i, b
		g.Go(func() error {
			err := fn(gctx, i, b)
			metrics.ObservePersistence(b.Name(), op, err)
			if err != nil {
				f.logger.Error("Backend operation failed",
					zap.String("backend", b.Name()),
					zap.String("operation", op),
					zap.Error(err),
				)
				if apperrors.IsErrorType(err, apperrors.ErrorTypePersistence) {
					return err
				}
				return apperrors.NewPersistenceFailed(b.Name(), op, err)
			}
			return nil
		})
	}
	return g.Wait()
}
