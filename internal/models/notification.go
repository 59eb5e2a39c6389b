package models

import "time"

// NotificationKind classifies the lifecycle event behind a notification.
type NotificationKind string

const (
	NotificationKindRequestCreated NotificationKind = "REQUEST_CREATED"
	NotificationKindStatusChanged  NotificationKind = "STATUS_CHANGED"
	NotificationKindRescheduled    NotificationKind = "RESCHEDULED"
)

// NotificationRecord is a durable, independently readable message addressed
// to a requester. Records are append-only from this engine's side; readers
// flip the read flag.
type NotificationRecord struct {
	ID           string           `db:"id" json:"id"`
	RecipientID  string           `db:"recipient_id" json:"recipient_id"`
	Kind         NotificationKind `db:"kind" json:"kind"`
	Message      string           `db:"message" json:"message"`
	RedirectHint string           `db:"redirect_hint" json:"redirect_hint"`
	Read         bool             `db:"read" json:"read"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter constrains notification listing queries.
type NotificationFilter struct {
	RecipientID string
	UnreadOnly  bool
	Page        int
	PageSize    int
}
