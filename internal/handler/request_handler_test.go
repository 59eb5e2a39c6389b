package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-docs-api/internal/calendar"
	"github.com/noah-isme/school-docs-api/internal/middleware"
	"github.com/noah-isme/school-docs-api/internal/models"
	"github.com/noah-isme/school-docs-api/internal/repository"
	"github.com/noah-isme/school-docs-api/internal/service"
	"github.com/noah-isme/school-docs-api/internal/verification"
)

// memRequestStore is a minimal in-memory store for full-path handler tests.
type memRequestStore struct {
	mu     sync.Mutex
	stored map[string]*models.Request
}

func newMemRequestStore() *memRequestStore {
	return &memRequestStore{stored: make(map[string]*models.Request)}
}

func (s *memRequestStore) clone(req *models.Request) *models.Request {
	raw, _ := json.Marshal(req)
	var out models.Request
	_ = json.Unmarshal(raw, &out)
	return &out
}

func (s *memRequestStore) Create(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.ID = fmt.Sprintf("req-%d", len(s.stored)+1)
	req.Version = 1
	s.stored[req.ID] = s.clone(req)
	return nil
}

func (s *memRequestStore) GetByID(_ context.Context, id string) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.stored[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s.clone(req), nil
}

func (s *memRequestStore) List(_ context.Context, _ models.RequestFilter) ([]models.Request, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Request, 0, len(s.stored))
	for _, req := range s.stored {
		out = append(out, *s.clone(req))
	}
	return out, len(out), nil
}

func (s *memRequestStore) UpdateConditional(_ context.Context, req *models.Request, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.stored[req.ID]
	if !ok || current.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	req.Version = expectedVersion + 1
	s.stored[req.ID] = s.clone(req)
	return nil
}

func newTestHandler() (*RequestHandler, *memRequestStore) {
	store := newMemRequestStore()
	svc := service.NewRequestService(store, calendar.NewEngine(), verification.NewIssuer("handler-secret", 64), nil, nil, nil, nil, service.RequestServiceConfig{})
	return NewRequestHandler(svc), store
}

func createPayload() map[string]interface{} {
	date := calendar.NewEngine().NextBusinessDay(time.Now().UTC().AddDate(0, 0, 7))
	return map[string]interface{}{
		"role":            "ALUMNI",
		"first_name":      "Maria",
		"last_name":       "Santos",
		"email":           "maria@example.com",
		"phone":           "09171234567",
		"graduation_year": 2021,
		"documents": []map[string]interface{}{
			{"document_type": "GOOD_MORAL", "purpose": "EMPLOYMENT", "copies": 1},
		},
		"preferred_date": date.Format(time.RFC3339),
		"preferred_time": "09:00-11:00",
	}
}

func TestRequestHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, store := newTestHandler()

	body, _ := json.Marshal(createPayload())
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/requests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleRequester})

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data models.Request `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data.RequesterID)
	assert.Equal(t, "user-1", *envelope.Data.RequesterID)

	stored, err := store.GetByID(context.Background(), envelope.Data.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Documents, 1)
}

func TestRequestHandlerCreateAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, store := newTestHandler()

	body, _ := json.Marshal(createPayload())
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/requests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data models.Request `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Nil(t, envelope.Data.RequesterID)

	stored, err := store.GetByID(context.Background(), envelope.Data.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RequesterID)
}

func TestRequestHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newTestHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/requests", bytes.NewBufferString(`{"role":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerListRejectsUnknownStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newTestHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/requests?status=SHIPPED", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "staff-1", Role: models.RoleStaff})

	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerTransitionInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newTestHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/requests/req-1/documents/doc-1/status", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}, {Key: "documentId", Value: "doc-1"}}

	handler.Transition(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newTestHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/requests/missing", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestParseRequestFilterDates(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/requests?dateFrom=2026-08-01&dateTo=2026-09-01T00:00:00Z&page=2&pageSize=50", nil)
	c.Request = req

	filter, err := parseRequestFilter(c)
	require.NoError(t, err)
	require.NotNil(t, filter.DateFrom)
	require.NotNil(t, filter.DateTo)
	assert.Equal(t, 2, filter.Page)
	assert.Equal(t, 50, filter.PageSize)

	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	badReq, _ := http.NewRequest(http.MethodGet, "/requests?dateFrom=yesterday", nil)
	c2.Request = badReq
	_, err = parseRequestFilter(c2)
	require.Error(t, err)
}
