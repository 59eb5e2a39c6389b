package models

import "time"

// LifecycleEventType enumerates the events emitted by accepted mutations.
type LifecycleEventType string

const (
	EventRequestCreated        LifecycleEventType = "REQUEST_CREATED"
	EventDocumentStatusChanged LifecycleEventType = "DOCUMENT_STATUS_CHANGED"
	EventScheduleChanged       LifecycleEventType = "SCHEDULE_CHANGED"
)

// LifecycleEvent describes one accepted state change on a request. Events
// are projections: observers may read them but never mutate through them.
type LifecycleEvent struct {
	Type        LifecycleEventType
	RequestID   string
	RequesterID *string
	DocumentID  string
	OldStatus   DocumentStatus
	NewStatus   DocumentStatus
	Reason      *string
	NewDate     *time.Time
	NewTime     *string
	OccurredAt  time.Time
}
