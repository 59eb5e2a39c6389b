package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-docs-api/internal/models"
)

// NotificationRepository persists notification records. The engine only
// appends; the read flag is flipped by the portal's inbox.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a notification repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Append inserts a notification record.
func (r *NotificationRepository) Append(ctx context.Context, rec *models.NotificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO notifications (id, recipient_id, kind, message, redirect_hint, read, created_at)
VALUES (:id, :recipient_id, :kind, :message, :redirect_hint, :read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

// List returns a recipient's notifications, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationRecord, int, error) {
	where := []string{"recipient_id = $1"}
	args := []interface{}{filter.RecipientID}
	if filter.UnreadOnly {
		where = append(where, "read = FALSE")
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, recipient_id, kind, message, redirect_hint, read, created_at
FROM notifications WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, whereClause, size, offset)
	var records []models.NotificationRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM notifications WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return records, total, nil
}

// MarkRead flips the read flag for a recipient's own record.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2", id, recipientID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("notification %s not found for recipient", id)
	}
	return nil
}
