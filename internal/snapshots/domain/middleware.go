package domain

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pendergraft/buildcfg/internal/observability/metrics"
	"github.com/pendergraft/buildcfg/internal/project"
)

// LoggingMiddleware returns a service middleware that logs all operations.
// Documents are never logged; only their shape and fingerprint are.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) Validate(ctx context.Context, data []byte, format project.Format) (*ValidationResult, error) {
	start := time.Now()
	result, err := m.next.Validate(ctx, data, format)
	m.logger.Debug("Validate",
		"format", format,
		"size", len(data),
		"duration", time.Since(start),
		"error", err,
	)
	return result, err
}

func (m *loggingMiddleware) Publish(ctx context.Context, projectName, ownerID string, data []byte, format project.Format) (*Snapshot, error) {
	start := time.Now()
	snap, err := m.next.Publish(ctx, projectName, ownerID, data, format)
	attrs := []any{
		"project", projectName,
		"format", format,
		"size", len(data),
		"duration", time.Since(start),
		"error", err,
	}
	if snap != nil {
		attrs = append(attrs, "revision", snap.Revision, "fingerprint", snap.Fingerprint)
	}
	m.logger.Info("Publish", attrs...)
	return snap, err
}

func (m *loggingMiddleware) Get(ctx context.Context, projectName, id string) (*Snapshot, error) {
	start := time.Now()
	snap, err := m.next.Get(ctx, projectName, id)
	m.logger.Debug("Get",
		"project", projectName,
		"id", id,
		"duration", time.Since(start),
		"error", err,
	)
	return snap, err
}

func (m *loggingMiddleware) List(ctx context.Context, projectName string, pagination PaginationParams) (*ListResult, error) {
	start := time.Now()
	result, err := m.next.List(ctx, projectName, pagination)
	m.logger.Debug("List",
		"project", projectName,
		"limit", pagination.Limit,
		"cursor", pagination.Cursor,
		"duration", time.Since(start),
		"error", err,
	)
	return result, err
}

func (m *loggingMiddleware) Projects(ctx context.Context, pagination PaginationParams) (*ProjectList, error) {
	start := time.Now()
	result, err := m.next.Projects(ctx, pagination)
	m.logger.Debug("Projects",
		"limit", pagination.Limit,
		"duration", time.Since(start),
		"error", err,
	)
	return result, err
}

func (m *loggingMiddleware) Delete(ctx context.Context, projectName, id, ownerID string) error {
	start := time.Now()
	err := m.next.Delete(ctx, projectName, id, ownerID)
	m.logger.Info("Delete",
		"project", projectName,
		"id", id,
		"duration", time.Since(start),
		"error", err,
	)
	return err
}

// MetricsMiddleware records publish, retrieval and delete outcomes.
func MetricsMiddleware() func(Service) Service {
	return func(next Service) Service {
		return &metricsMiddleware{next: next}
	}
}

type metricsMiddleware struct {
	next Service
}

// outcome maps a service error to a metric label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrUnchanged):
		return "unchanged"
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrLiteralSecret), errors.Is(err, ErrInvalidName):
		return "rejected"
	default:
		return "error"
	}
}

func recordRejection(err error) {
	if kind, ok := project.KindOf(err); ok {
		metrics.ConfigRejected(string(kind))
	} else if errors.Is(err, ErrLiteralSecret) {
		metrics.ConfigRejected("LiteralSecret")
	}
}

func (m *metricsMiddleware) Validate(ctx context.Context, data []byte, format project.Format) (*ValidationResult, error) {
	result, err := m.next.Validate(ctx, data, format)
	recordRejection(err)
	return result, err
}

func (m *metricsMiddleware) Publish(ctx context.Context, projectName, ownerID string, data []byte, format project.Format) (*Snapshot, error) {
	snap, err := m.next.Publish(ctx, projectName, ownerID, data, format)
	if err != nil {
		recordRejection(err)
		metrics.SnapshotPublish(string(format), outcome(err), 0)
		return nil, err
	}
	metrics.SnapshotPublish(string(format), "stored", snap.SizeBytes)
	return snap, nil
}

func (m *metricsMiddleware) Get(ctx context.Context, projectName, id string) (*Snapshot, error) {
	snap, err := m.next.Get(ctx, projectName, id)
	metrics.SnapshotRetrieve(outcome(err))
	return snap, err
}

func (m *metricsMiddleware) List(ctx context.Context, projectName string, pagination PaginationParams) (*ListResult, error) {
	return m.next.List(ctx, projectName, pagination)
}

func (m *metricsMiddleware) Projects(ctx context.Context, pagination PaginationParams) (*ProjectList, error) {
	return m.next.Projects(ctx, pagination)
}

func (m *metricsMiddleware) Delete(ctx context.Context, projectName, id, ownerID string) error {
	err := m.next.Delete(ctx, projectName, id, ownerID)
	metrics.SnapshotDelete(outcome(err))
	return err
}
