package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-docs-api/internal/models"
)

func newRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sampleAggregate() *models.Request {
	requesterID := "user-1"
	return &models.Request{
		RequesterID: &requesterID,
		Role:        models.RequesterRoleStudent,
		FirstName:   "Juan",
		LastName:    "Dela Cruz",
		Email:       "juan@example.com",
		Phone:       "09170000001",
		Documents: models.DocumentItems{
			{ID: "doc-1", DocumentType: models.DocumentTypeGoodMoral, Purpose: models.PurposeEmployment, Copies: 2, Status: models.DocumentStatusPending},
		},
	}
}

func TestRequestRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := sampleAggregate()
	err := repo.Create(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, 1, req.Version)
	assert.False(t, req.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "requester_id", "role", "first_name", "middle_name", "last_name", "email", "phone",
		"grade_strand", "graduation_year", "documents", "preferred_date", "preferred_time",
		"access_restricted_until", "attachment_refs", "version", "created_at", "updated_at",
	}).AddRow(
		"req-1", "user-1", "STUDENT", "Juan", nil, "Dela Cruz", "juan@example.com", "09170000001",
		nil, nil, []byte(`[{"id":"doc-1","document_type":"GOOD_MORAL","purpose":"EMPLOYMENT","copies":2,"status":"PENDING","verification_token":"tok","requested_at":"2025-09-01T00:00:00Z"}]`),
		nil, nil, nil, []byte(`[]`), 3, now, now,
	)
	mock.ExpectQuery("SELECT .+ FROM document_requests WHERE id = ").
		WithArgs("req-1").
		WillReturnRows(rows)

	req, err := repo.GetByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, 3, req.Version)
	require.Len(t, req.Documents, 1)
	assert.Equal(t, models.DocumentTypeGoodMoral, req.Documents[0].DocumentType)
	assert.Equal(t, models.DocumentStatusPending, req.Documents[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateConditional(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_requests SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := sampleAggregate()
	req.ID = "req-1"
	err := repo.UpdateConditional(context.Background(), req, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, req.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateConditionalConflict(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_requests SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	req := sampleAggregate()
	req.ID = "req-1"
	err := repo.UpdateConditional(context.Background(), req, 3)
	require.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 3, req.Version, "version restored after a failed swap")
	assert.NoError(t, mock.ExpectationsWereMet())
}
