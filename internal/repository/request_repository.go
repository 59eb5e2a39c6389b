package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-docs-api/internal/models"
)

// ErrVersionConflict signals that a conditional write lost the race: the
// aggregate changed between read and write.
var ErrVersionConflict = errors.New("request version conflict")

// RequestRepository persists document request aggregates. Items live in a
// JSONB column so every write covers the whole aggregate, and the version
// column backs the compare-and-swap discipline.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs a request repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, requester_id, role, first_name, middle_name, last_name, email, phone,
grade_strand, graduation_year, documents, preferred_date, preferred_time,
access_restricted_until, attachment_refs, version, created_at, updated_at`

// Create inserts a complete aggregate in one write.
func (r *RequestRepository) Create(ctx context.Context, req *models.Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	req.Version = 1

	query := `INSERT INTO document_requests (id, requester_id, role, first_name, middle_name, last_name, email, phone,
grade_strand, graduation_year, documents, preferred_date, preferred_time,
access_restricted_until, attachment_refs, version, created_at, updated_at)
VALUES (:id, :requester_id, :role, :first_name, :middle_name, :last_name, :email, :phone,
:grade_strand, :graduation_year, :documents, :preferred_date, :preferred_time,
:access_restricted_until, :attachment_refs, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create document request: %w", err)
	}
	return nil
}

// GetByID fetches the full aggregate.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	query := fmt.Sprintf("SELECT %s FROM document_requests WHERE id = $1", requestColumns)
	var req models.Request
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests matching filters with a total count.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.RequesterID != "" {
		where = append(where, fmt.Sprintf("requester_id = $%d", len(args)+1))
		args = append(args, filter.RequesterID)
	}
	if filter.Role != "" {
		where = append(where, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, string(filter.Role))
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf(`documents @> $%d`, len(args)+1))
		args = append(args, fmt.Sprintf(`[{"status":%q}]`, string(filter.Status)))
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
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

	query := fmt.Sprintf(`SELECT %s FROM document_requests WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		requestColumns, whereClause, size, offset)
	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list document requests: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM document_requests WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count document requests: %w", err)
	}
	return requests, total, nil
}

// UpdateConditional writes back the mutated aggregate only if the stored
// version still matches the one the caller read. Returns ErrVersionConflict
// when the guard trips.
func (r *RequestRepository) UpdateConditional(ctx context.Context, req *models.Request, expectedVersion int) error {
	req.UpdatedAt = time.Now().UTC()
	req.Version = expectedVersion + 1

	query := `UPDATE document_requests SET documents = :documents, preferred_date = :preferred_date,
preferred_time = :preferred_time, version = :version, updated_at = :updated_at
WHERE id = :id AND version = :expected_version`
	arg := struct {
		*models.Request
		ExpectedVersion int `db:"expected_version"`
	}{Request: req, ExpectedVersion: expectedVersion}

	res, err := r.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		req.Version = expectedVersion
		return fmt.Errorf("update document request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		req.Version = expectedVersion
		return fmt.Errorf("update document request result: %w", err)
	}
	if affected == 0 {
		req.Version = expectedVersion
		return ErrVersionConflict
	}
	return nil
}
