package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-docs-api/internal/middleware"
	"github.com/noah-isme/school-docs-api/internal/models"
	"github.com/noah-isme/school-docs-api/internal/service"
	appErrors "github.com/noah-isme/school-docs-api/pkg/errors"
	"github.com/noah-isme/school-docs-api/pkg/response"
)

// RequestHandler exposes the document request lifecycle endpoints.
type RequestHandler struct {
	requests *service.RequestService
}

// NewRequestHandler constructs handler.
func NewRequestHandler(requests *service.RequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

// Create godoc
// @Summary Submit a document request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body service.CreateRequestRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	var req service.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	// Attribution comes from the verified token, never the body.
	if claims := middleware.CurrentUser(c); claims != nil {
		req.RequesterID = &claims.UserID
	}
	created, err := h.requests.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// List godoc
// @Summary List document requests
// @Tags Requests
// @Produce json
// @Param status query string false "Filter by document status"
// @Param role query string false "Filter by requester role"
// @Param dateFrom query string false "Created-at lower bound (RFC 3339)"
// @Param dateTo query string false "Created-at upper bound (RFC 3339)"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	filter, err := parseRequestFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	requests, pagination, err := h.requests.List(c.Request.Context(), filter, middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get one document request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	req, err := h.requests.Get(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// TransitionRequest is the staff status-change payload.
type TransitionRequest struct {
	Status string  `json:"status" binding:"required"`
	Reason *string `json:"reason"`
}

// Transition godoc
// @Summary Change one document's status
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param documentId path string true "Document item ID"
// @Param payload body TransitionRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/documents/{documentId}/status [post]
func (h *RequestHandler) Transition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.requests.TransitionDocument(c.Request.Context(), c.Param("id"), c.Param("documentId"), models.DocumentStatus(req.Status), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// ForceStatus godoc
// @Summary Force-set one document's status
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param documentId path string true "Document item ID"
// @Param payload body TransitionRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/documents/{documentId}/force-status [post]
func (h *RequestHandler) ForceStatus(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	actorID := ""
	if claims := middleware.CurrentUser(c); claims != nil {
		actorID = claims.UserID
	}
	item, err := h.requests.ForceSetStatus(c.Request.Context(), c.Param("id"), c.Param("documentId"), models.DocumentStatus(req.Status), req.Reason, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// RescheduleRequest is the schedule-change payload.
type RescheduleRequest struct {
	PreferredDate time.Time `json:"preferred_date" binding:"required"`
	PreferredTime string    `json:"preferred_time" binding:"required"`
}

// Reschedule godoc
// @Summary Move a request's pickup schedule
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body RescheduleRequest true "New schedule"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/schedule [patch]
func (h *RequestHandler) Reschedule(c *gin.Context) {
	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	updated, err := h.requests.Reschedule(c.Request.Context(), c.Param("id"), req.PreferredDate, req.PreferredTime)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// VerifyRequest carries a scanned token for verification.
type VerifyRequest struct {
	Token string `json:"token" binding:"required"`
}

// Verify godoc
// @Summary Verify a scanned document token
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body VerifyRequest true "Scanned token"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/verify [post]
func (h *RequestHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.requests.VerifyToken(c.Request.Context(), c.Param("id"), req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// TokenPNG godoc
// @Summary Render one document token as a QR image
// @Tags Requests
// @Produce png
// @Param id path string true "Request ID"
// @Param documentId path string true "Document item ID"
// @Success 200 {file} binary
// @Router /requests/{id}/documents/{documentId}/token.png [get]
func (h *RequestHandler) TokenPNG(c *gin.Context) {
	png, err := h.requests.TokenPNG(c.Request.Context(), c.Param("id"), c.Param("documentId"), middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// ClaimSlip godoc
// @Summary Render the printable claim slip
// @Tags Requests
// @Produce application/pdf
// @Param id path string true "Request ID"
// @Success 200 {file} binary
// @Router /requests/{id}/claim-slip [get]
func (h *RequestHandler) ClaimSlip(c *gin.Context) {
	pdf, err := h.requests.ClaimSlip(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=claim-slip-%s.pdf", c.Param("id")))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// ExportCSV godoc
// @Summary Export the request listing as CSV
// @Tags Requests
// @Produce text/csv
// @Success 200 {file} binary
// @Router /requests/export [get]
func (h *RequestHandler) ExportCSV(c *gin.Context) {
	filter, err := parseRequestFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	csvBytes, err := h.requests.ExportCSV(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=requests.csv")
	c.Data(http.StatusOK, "text/csv", csvBytes)
}

func parseRequestFilter(c *gin.Context) (models.RequestFilter, error) {
	filter := models.RequestFilter{
		Status: models.DocumentStatus(c.Query("status")),
		Role:   models.RequesterRole(c.Query("role")),
		Page:   queryInt(c, "page", 1),
	}
	filter.PageSize = queryInt(c, "pageSize", 20)
	if filter.Status != "" && !filter.Status.Valid() {
		return filter, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", filter.Status))
	}
	for _, bound := range []struct {
		key  string
		dest **time.Time
	}{
		{"dateFrom", &filter.DateFrom},
		{"dateTo", &filter.DateTo},
	} {
		raw := c.Query(bound.key)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			parsed, err = time.Parse("2006-01-02", raw)
		}
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid %s, expected RFC 3339 or YYYY-MM-DD", bound.key))
		}
		*bound.dest = &parsed
	}
	return filter, nil
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	var value int
	if _, err := fmt.Sscanf(raw, "%d", &value); err != nil || value < 1 {
		return fallback
	}
	return value
}
