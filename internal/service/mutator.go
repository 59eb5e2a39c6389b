package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/school-docs-api/internal/models"
	"github.com/noah-isme/school-docs-api/internal/repository"
	appErrors "github.com/noah-isme/school-docs-api/pkg/errors"
)

type requestStore interface {
	Create(ctx context.Context, req *models.Request) error
	GetByID(ctx context.Context, id string) (*models.Request, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error)
	UpdateConditional(ctx context.Context, req *models.Request, expectedVersion int) error
}

// requestMutator is the read-modify-write discipline for the request
// aggregate. Items are embedded, so any mutation rewrites the whole
// document list; the conditional write bounds the lost-update window and
// the transform is pure so a retry can safely rerun it on a fresh read.
type requestMutator struct {
	repo    requestStore
	retries int
	metrics *MetricsService
	logger  *zap.Logger
}

func newRequestMutator(repo requestStore, retries int, metrics *MetricsService, logger *zap.Logger) *requestMutator {
	if retries <= 0 {
		retries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &requestMutator{repo: repo, retries: retries, metrics: metrics, logger: logger}
}

// mutate loads the aggregate, applies transform, and writes back guarded by
// the version read. Conflicts restart the cycle up to the retry bound.
func (m *requestMutator) mutate(ctx context.Context, requestID string, transform func(*models.Request) error) (*models.Request, error) {
	var conflicts int
	for attempt := 0; attempt <= m.retries; attempt++ {
		req, err := m.repo.GetByID(ctx, requestID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
		}

		if err := transform(req); err != nil {
			return nil, err
		}

		err = m.repo.UpdateConditional(ctx, req, req.Version)
		if err == nil {
			return req, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write request")
		}
		conflicts++
		if m.metrics != nil {
			m.metrics.ObserveWriteConflict()
		}
		m.logger.Debug("request write conflict, retrying",
			zap.String("request_id", requestID),
			zap.Int("attempt", attempt+1),
		)
	}
	m.logger.Warn("request write conflict retries exhausted",
		zap.String("request_id", requestID),
		zap.Int("conflicts", conflicts),
	)
	return nil, appErrors.Clone(appErrors.ErrConcurrentModification, "")
}
