package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-docs-api/internal/models"
	appErrors "github.com/noah-isme/school-docs-api/pkg/errors"
	"github.com/noah-isme/school-docs-api/pkg/jobs"
)

type stubNotificationStore struct {
	mu        sync.Mutex
	appended  []models.NotificationRecord
	appendErr error
	markErr   error
}

func (s *stubNotificationStore) Append(_ context.Context, rec *models.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, *rec)
	return nil
}

func (s *stubNotificationStore) List(_ context.Context, _ models.NotificationFilter) ([]models.NotificationRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.NotificationRecord(nil), s.appended...), len(s.appended), nil
}

func (s *stubNotificationStore) MarkRead(_ context.Context, _, _ string) error {
	return s.markErr
}

func TestHandleEventWritesRecord(t *testing.T) {
	store := &stubNotificationStore{}
	svc := NewNotificationService(store, nil, nil)

	recipient := "user-1"
	reason := "records hold"
	err := svc.HandleEvent(context.Background(), models.LifecycleEvent{
		Type:        models.EventDocumentStatusChanged,
		RequestID:   "req-1",
		RequesterID: &recipient,
		NewStatus:   models.DocumentStatusCancelled,
		Reason:      &reason,
	})
	require.NoError(t, err)

	require.Len(t, store.appended, 1)
	rec := store.appended[0]
	assert.Equal(t, "user-1", rec.RecipientID)
	assert.Equal(t, models.NotificationKindStatusChanged, rec.Kind)
	assert.Contains(t, rec.Message, "cancelled")
	assert.Contains(t, rec.Message, "records hold")
	assert.Equal(t, "/requests/req-1", rec.RedirectHint)
	assert.False(t, rec.Read)
}

func TestHandleEventSkipsAnonymousRequests(t *testing.T) {
	store := &stubNotificationStore{}
	svc := NewNotificationService(store, nil, nil)

	err := svc.HandleEvent(context.Background(), models.LifecycleEvent{
		Type:      models.EventRequestCreated,
		RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.Empty(t, store.appended)

	empty := ""
	err = svc.HandleEvent(context.Background(), models.LifecycleEvent{
		Type:        models.EventRequestCreated,
		RequestID:   "req-1",
		RequesterID: &empty,
	})
	require.NoError(t, err)
	assert.Empty(t, store.appended)
}

func TestHandleEventReportsWriteFailure(t *testing.T) {
	store := &stubNotificationStore{appendErr: errors.New("db down")}
	svc := NewNotificationService(store, nil, nil)

	recipient := "user-1"
	err := svc.HandleEvent(context.Background(), models.LifecycleEvent{
		Type:        models.EventRequestCreated,
		RequestID:   "req-1",
		RequesterID: &recipient,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotificationDelivery.Code, appErrors.FromError(err).Code)
}

func TestNotificationMessages(t *testing.T) {
	recipient := "user-1"
	date := time.Date(2026, time.September, 14, 0, 0, 0, 0, time.UTC)
	slot := "09:00-11:00"

	cases := []struct {
		name  string
		event models.LifecycleEvent
		want  string
		kind  models.NotificationKind
	}{
		{
			name:  "created",
			event: models.LifecycleEvent{Type: models.EventRequestCreated},
			want:  "We received your document request",
			kind:  models.NotificationKindRequestCreated,
		},
		{
			name: "approved",
			event: models.LifecycleEvent{
				Type:      models.EventDocumentStatusChanged,
				NewStatus: models.DocumentStatusApproved,
			},
			want: "ready for pickup",
			kind: models.NotificationKindStatusChanged,
		},
		{
			name: "claimed",
			event: models.LifecycleEvent{
				Type:      models.EventDocumentStatusChanged,
				NewStatus: models.DocumentStatusClaimed,
			},
			want: "has been claimed",
			kind: models.NotificationKindStatusChanged,
		},
		{
			name: "rescheduled",
			event: models.LifecycleEvent{
				Type:    models.EventScheduleChanged,
				NewDate: &date,
				NewTime: &slot,
			},
			want: "September 14, 2026 09:00-11:00",
			kind: models.NotificationKindRescheduled,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &stubNotificationStore{}
			svc := NewNotificationService(store, nil, nil)
			tc.event.RequestID = "req-1"
			tc.event.RequesterID = &recipient

			require.NoError(t, svc.HandleEvent(context.Background(), tc.event))
			require.Len(t, store.appended, 1)
			assert.Contains(t, store.appended[0].Message, tc.want)
			assert.Equal(t, tc.kind, store.appended[0].Kind)
		})
	}
}

func TestMarkReadNotFound(t *testing.T) {
	store := &stubNotificationStore{markErr: errors.New("no rows")}
	svc := NewNotificationService(store, nil, nil)

	err := svc.MarkRead(context.Background(), "n-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDispatcherFansOutToHandlers(t *testing.T) {
	store := &stubNotificationStore{}
	svc := NewNotificationService(store, nil, nil)

	dispatcher := NewEventDispatcher([]EventHandler{svc}, jobs.QueueConfig{Workers: 1, BufferSize: 4}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	recipient := "user-1"
	dispatcher.Publish(models.LifecycleEvent{
		Type:        models.EventRequestCreated,
		RequestID:   "req-1",
		RequesterID: &recipient,
	})

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.appended) == 1
	}, 2*time.Second, 10*time.Millisecond)

	records, total, err := store.List(context.Background(), models.NotificationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, "user-1", records[0].RecipientID)
}
