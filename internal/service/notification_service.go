package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/school-docs-api/internal/models"
	appErrors "github.com/noah-isme/school-docs-api/pkg/errors"
)

type notificationStore interface {
	Append(ctx context.Context, rec *models.NotificationRecord) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationRecord, int, error)
	MarkRead(ctx context.Context, id, recipientID string) error
}

// NotificationService projects lifecycle events into durable notification
// records and serves the requester's inbox.
type NotificationService struct {
	repo    notificationStore
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(repo notificationStore, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, metrics: metrics, logger: logger}
}

// HandleEvent writes one notification per event. Anonymous requests carry
// no recipient and are skipped. A failed write is reported to the queue for
// retry but never reaches the mutation's caller.
func (s *NotificationService) HandleEvent(ctx context.Context, event models.LifecycleEvent) error {
	if event.RequesterID == nil || *event.RequesterID == "" {
		return nil
	}

	rec := &models.NotificationRecord{
		RecipientID:  *event.RequesterID,
		Kind:         kindFor(event.Type),
		Message:      messageFor(event),
		RedirectHint: "/requests/" + event.RequestID,
	}
	if err := s.repo.Append(ctx, rec); err != nil {
		if s.metrics != nil {
			s.metrics.ObserveNotificationFailure()
		}
		s.logger.Error("notification write failed",
			zap.String("request_id", event.RequestID),
			zap.String("recipient_id", rec.RecipientID),
			zap.Error(err),
		)
		return appErrors.Wrap(err, appErrors.ErrNotificationDelivery.Code, appErrors.ErrNotificationDelivery.Status, "")
	}
	return nil
}

// List returns the caller's notifications.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationRecord, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return records, pagination, nil
}

// MarkRead flips the read flag on the caller's own record.
func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID string) error {
	if err := s.repo.MarkRead(ctx, id, recipientID); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

func kindFor(eventType models.LifecycleEventType) models.NotificationKind {
	switch eventType {
	case models.EventRequestCreated:
		return models.NotificationKindRequestCreated
	case models.EventScheduleChanged:
		return models.NotificationKindRescheduled
	default:
		return models.NotificationKindStatusChanged
	}
}

// messageFor maps events onto the closed per-status template table.
func messageFor(event models.LifecycleEvent) string {
	switch event.Type {
	case models.EventRequestCreated:
		return "We received your document request. You will be notified as it moves through processing."
	case models.EventScheduleChanged:
		when := ""
		if event.NewDate != nil {
			when = event.NewDate.Format("January 2, 2006")
		}
		if event.NewTime != nil && *event.NewTime != "" {
			when += " " + *event.NewTime
		}
		return fmt.Sprintf("Your pickup schedule was moved to %s.", when)
	case models.EventDocumentStatusChanged:
		switch event.NewStatus {
		case models.DocumentStatusApproved:
			return "A document in your request is approved and ready for pickup."
		case models.DocumentStatusCancelled:
			reason := ""
			if event.Reason != nil {
				reason = " Reason: " + *event.Reason
			}
			return "A document in your request was cancelled." + reason
		case models.DocumentStatusPending:
			return "A document in your request was returned to pending review."
		case models.DocumentStatusClaimed:
			return "A document in your request has been claimed. Thank you!"
		default:
			return "The status of a document in your request has changed."
		}
	default:
		return "There is an update on your document request."
	}
}
