package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-docs-api/internal/calendar"
	"github.com/noah-isme/school-docs-api/internal/models"
	"github.com/noah-isme/school-docs-api/internal/policy"
	"github.com/noah-isme/school-docs-api/internal/verification"
	appErrors "github.com/noah-isme/school-docs-api/pkg/errors"
	"github.com/noah-isme/school-docs-api/pkg/export"
)

type eventPublisher interface {
	Publish(event models.LifecycleEvent)
}

// RequestService owns the request aggregate lifecycle: creation, document
// status transitions and rescheduling. All post-creation mutations go
// through the versioned read-modify-write cycle.
type RequestService struct {
	repo      requestStore
	calendar  *calendar.Engine
	issuer    *verification.Issuer
	events    eventPublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	mutator   *requestMutator
	slips     *export.ClaimSlipExporter
	csv       *export.CSVExporter
}

// RequestServiceConfig carries tunables for the mutation path.
type RequestServiceConfig struct {
	WriteRetries int
}

// NewRequestService constructs the service.
func NewRequestService(repo requestStore, cal *calendar.Engine, issuer *verification.Issuer, events eventPublisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg RequestServiceConfig) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cal == nil {
		cal = calendar.NewEngine()
	}
	svc := &RequestService{
		repo:      repo,
		calendar:  cal,
		issuer:    issuer,
		events:    events,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		mutator:   newRequestMutator(repo, cfg.WriteRetries, metrics, logger),
		slips:     export.NewClaimSlipExporter(),
		csv:       export.NewCSVExporter(),
	}
	svc.validator.RegisterValidation("document_type", func(fl validator.FieldLevel) bool {
		return models.DocumentType(fl.Field().String()).Valid()
	})
	svc.validator.RegisterValidation("purpose", func(fl validator.FieldLevel) bool {
		return models.RequestPurpose(fl.Field().String()).Valid()
	})
	svc.validator.RegisterValidation("requester_role", func(fl validator.FieldLevel) bool {
		switch models.RequesterRole(fl.Field().String()) {
		case models.RequesterRoleStudent, models.RequesterRoleAlumni:
			return true
		default:
			return false
		}
	})
	return svc
}

// DocumentItemRequest describes one requested document in the intake payload.
type DocumentItemRequest struct {
	DocumentType     string  `json:"document_type" validate:"required,document_type"`
	Purpose          string  `json:"purpose" validate:"required,purpose"`
	PurposeDetail    *string `json:"purpose_detail"`
	Copies           int     `json:"copies" validate:"required,min=1"`
	GradeYearContext *string `json:"grade_year_context"`
}

// CreateRequestRequest describes the intake payload. The requester id comes
// from the identity provider, never the body.
type CreateRequestRequest struct {
	RequesterID    *string               `json:"-"`
	Role           string                `json:"role" validate:"required,requester_role"`
	FirstName      string                `json:"first_name" validate:"required"`
	MiddleName     *string               `json:"middle_name"`
	LastName       string                `json:"last_name" validate:"required"`
	Email          string                `json:"email" validate:"required,email"`
	Phone          string                `json:"phone" validate:"required"`
	GradeStrand    *string               `json:"grade_strand"`
	GraduationYear *int                  `json:"graduation_year"`
	Documents      []DocumentItemRequest `json:"documents" validate:"required,min=1,dive"`
	PreferredDate  time.Time             `json:"preferred_date" validate:"required"`
	PreferredTime  string                `json:"preferred_time" validate:"required"`
	AttachmentRefs []string              `json:"attachment_refs"`
}

// Create validates the draft, derives the access window, issues one
// verification token per item, and commits the aggregate in a single write.
func (s *RequestService) Create(ctx context.Context, req CreateRequestRequest) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}

	role := models.RequesterRole(req.Role)
	if role == models.RequesterRoleStudent && (req.GradeStrand == nil || *req.GradeStrand == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade_strand required for student requests")
	}
	if role == models.RequesterRoleAlumni && req.GraduationYear == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "graduation_year required for alumni requests")
	}

	now := time.Now().UTC()
	if err := s.checkSchedule(req.PreferredDate, now); err != nil {
		return nil, err
	}

	items := make(models.DocumentItems, 0, len(req.Documents))
	for _, d := range req.Documents {
		docType := models.DocumentType(d.DocumentType)
		if d.Copies < 1 || d.Copies > docType.MaxCopies() {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("copies for %s must be between 1 and %d", docType, docType.MaxCopies()))
		}
		if docType.RequiresGradeYear() && (d.GradeYearContext == nil || *d.GradeYearContext == "") {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("grade_year_context required for %s", docType))
		}
		purpose := models.RequestPurpose(d.Purpose)
		if purpose == models.PurposeOther && (d.PurposeDetail == nil || *d.PurposeDetail == "") {
			return nil, appErrors.Clone(appErrors.ErrValidation, "purpose_detail required when purpose is OTHER")
		}
		items = append(items, models.DocumentItem{
			ID:               uuid.NewString(),
			DocumentType:     docType,
			Purpose:          purpose,
			PurposeDetail:    d.PurposeDetail,
			Copies:           d.Copies,
			GradeYearContext: d.GradeYearContext,
			Status:           models.DocumentStatusPending,
			RequestedAt:      now,
		})
	}

	preferredDate := calendar.DateOnly(req.PreferredDate)
	aggregate := &models.Request{
		RequesterID:    req.RequesterID,
		Role:           role,
		FirstName:      req.FirstName,
		MiddleName:     req.MiddleName,
		LastName:       req.LastName,
		Email:          req.Email,
		Phone:          req.Phone,
		GradeStrand:    req.GradeStrand,
		GraduationYear: req.GraduationYear,
		Documents:      items,
		PreferredDate:  &preferredDate,
		PreferredTime:  &req.PreferredTime,
		AttachmentRefs: models.StringList(req.AttachmentRefs),
		CreatedAt:      now,
	}
	aggregate.AccessRestrictedUntil = policy.ComputeAccessWindow(aggregate.DocumentTypeSet(), now)

	reference := verification.NewReference(now)
	for i := range aggregate.Documents {
		token, err := s.issuer.Issue(aggregate, &aggregate.Documents[i], reference, now)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue verification token")
		}
		aggregate.Documents[i].VerificationToken = token
	}

	if err := s.repo.Create(ctx, aggregate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	s.publish(models.LifecycleEvent{
		Type:        models.EventRequestCreated,
		RequestID:   aggregate.ID,
		RequesterID: aggregate.RequesterID,
		OccurredAt:  now,
	})
	s.logger.Info("request created",
		zap.String("request_id", aggregate.ID),
		zap.Int("documents", len(aggregate.Documents)),
		zap.Bool("access_restricted", aggregate.AccessRestrictedUntil != nil),
	)
	return aggregate, nil
}

// TransitionDocument applies a staff status change to one item, enforcing
// the transition graph and the cancellation-reason rule.
func (s *RequestService) TransitionDocument(ctx context.Context, requestID, documentID string, target models.DocumentStatus, reason *string) (*models.DocumentItem, error) {
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", target))
	}
	if target == models.DocumentStatusCancelled && (reason == nil || *reason == "") {
		return nil, appErrors.Clone(appErrors.ErrMissingReason, "")
	}

	var changed models.DocumentItem
	var oldStatus models.DocumentStatus
	req, err := s.mutator.mutate(ctx, requestID, func(r *models.Request) error {
		item := r.Documents.Find(documentID)
		if item == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "document item not found")
		}
		if !item.Status.CanTransitionTo(target) {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("cannot move document from %s to %s", item.Status, target))
		}
		oldStatus = item.Status
		item.Status = target
		if target == models.DocumentStatusCancelled {
			item.CancelReason = reason
		}
		changed = *item
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveTransition(target, false)
	}
	s.publish(models.LifecycleEvent{
		Type:        models.EventDocumentStatusChanged,
		RequestID:   req.ID,
		RequesterID: req.RequesterID,
		DocumentID:  documentID,
		OldStatus:   oldStatus,
		NewStatus:   target,
		Reason:      reason,
		OccurredAt:  time.Now().UTC(),
	})
	return &changed, nil
}

// ForceSetStatus is the privileged escape hatch for operational corrections:
// it bypasses the transition graph but keeps the cancellation-reason rule,
// and every use is logged.
func (s *RequestService) ForceSetStatus(ctx context.Context, requestID, documentID string, target models.DocumentStatus, reason *string, actorID string) (*models.DocumentItem, error) {
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", target))
	}
	if target == models.DocumentStatusCancelled && (reason == nil || *reason == "") {
		return nil, appErrors.Clone(appErrors.ErrMissingReason, "")
	}

	var changed models.DocumentItem
	var oldStatus models.DocumentStatus
	req, err := s.mutator.mutate(ctx, requestID, func(r *models.Request) error {
		item := r.Documents.Find(documentID)
		if item == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "document item not found")
		}
		oldStatus = item.Status
		item.Status = target
		switch target {
		case models.DocumentStatusCancelled:
			item.CancelReason = reason
		default:
			item.CancelReason = nil
		}
		changed = *item
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveTransition(target, true)
	}
	s.logger.Warn("document status force-set",
		zap.String("request_id", requestID),
		zap.String("document_id", documentID),
		zap.String("actor_id", actorID),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(target)),
	)
	s.publish(models.LifecycleEvent{
		Type:        models.EventDocumentStatusChanged,
		RequestID:   req.ID,
		RequesterID: req.RequesterID,
		DocumentID:  documentID,
		OldStatus:   oldStatus,
		NewStatus:   target,
		Reason:      reason,
		OccurredAt:  time.Now().UTC(),
	})
	return &changed, nil
}

// Reschedule moves the pickup schedule to a new business day.
func (s *RequestService) Reschedule(ctx context.Context, requestID string, newDate time.Time, newTime string) (*models.Request, error) {
	if newTime == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "preferred_time is required")
	}
	now := time.Now().UTC()
	if err := s.checkSchedule(newDate, now); err != nil {
		return nil, err
	}

	date := calendar.DateOnly(newDate)
	req, err := s.mutator.mutate(ctx, requestID, func(r *models.Request) error {
		r.PreferredDate = &date
		r.PreferredTime = &newTime
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(models.LifecycleEvent{
		Type:        models.EventScheduleChanged,
		RequestID:   req.ID,
		RequesterID: req.RequesterID,
		NewDate:     &date,
		NewTime:     &newTime,
		OccurredAt:  now,
	})
	return req, nil
}

// Get returns one aggregate. Requesters may only read their own.
func (s *RequestService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if claims != nil && claims.Role == models.RoleRequester {
		if req.RequesterID == nil || *req.RequesterID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "")
		}
	}
	return req, nil
}

// List returns requests with pagination. Requesters are scoped to their own.
func (s *RequestService) List(ctx context.Context, filter models.RequestFilter, claims *models.JWTClaims) ([]models.Request, *models.Pagination, error) {
	if claims != nil && claims.Role == models.RoleRequester {
		filter.RequesterID = claims.UserID
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return requests, pagination, nil
}

// VerifyResult pairs a decoded token snapshot with the live item state.
type VerifyResult struct {
	Payload    *verification.Payload `json:"payload"`
	LiveStatus models.DocumentStatus `json:"live_status"`
	StatusMeta models.StatusMeta     `json:"status_meta"`
}

// VerifyToken checks a scanned token's signature and resolves the item's
// live status from the aggregate. The snapshot is never trusted for state.
func (s *RequestService) VerifyToken(ctx context.Context, requestID, token string) (*VerifyResult, error) {
	payload, err := s.issuer.Decode(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification token")
	}
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	item := req.Documents.Find(payload.DocumentID)
	if item == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document item not found on request")
	}
	if item.VerificationToken != token {
		return nil, appErrors.Clone(appErrors.ErrValidation, "token does not match the stored issuance")
	}
	return &VerifyResult{
		Payload:    payload,
		LiveStatus: item.Status,
		StatusMeta: item.Status.Meta(),
	}, nil
}

// TokenPNG renders one item's stored token as a QR image.
func (s *RequestService) TokenPNG(ctx context.Context, requestID, documentID string, claims *models.JWTClaims) ([]byte, error) {
	req, err := s.Get(ctx, requestID, claims)
	if err != nil {
		return nil, err
	}
	item := req.Documents.Find(documentID)
	if item == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document item not found")
	}
	png, err := s.issuer.RenderPNG(item.VerificationToken)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render token")
	}
	return png, nil
}

// ClaimSlip renders the printable pickup stub for a request.
func (s *RequestService) ClaimSlip(ctx context.Context, requestID string, claims *models.JWTClaims) ([]byte, error) {
	req, err := s.Get(ctx, requestID, claims)
	if err != nil {
		return nil, err
	}
	if len(req.Documents) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request has no documents")
	}

	reference := req.ID
	if payload, err := s.issuer.Decode(req.Documents[0].VerificationToken); err == nil {
		reference = payload.Reference
	}

	slip := export.ClaimSlip{
		Reference:     reference,
		RequesterName: req.RequesterName(),
		Role:          string(req.Role),
		PreferredDate: req.PreferredDate,
	}
	if req.PreferredTime != nil {
		slip.PreferredTime = *req.PreferredTime
	}
	for _, item := range req.Documents {
		png, err := s.issuer.RenderPNG(item.VerificationToken)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render token")
		}
		slip.Items = append(slip.Items, export.ClaimSlipItem{
			DocumentType: string(item.DocumentType),
			Purpose:      string(item.Purpose),
			Copies:       item.Copies,
			Status:       item.Status.Meta().Label,
			QRPNG:        png,
		})
	}
	pdf, err := s.slips.Render(slip)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render claim slip")
	}
	return pdf, nil
}

// ExportCSV renders the staff request listing as CSV.
func (s *RequestService) ExportCSV(ctx context.Context, filter models.RequestFilter) ([]byte, error) {
	filter.Page = 1
	if filter.PageSize <= 0 {
		filter.PageSize = 200
	}
	requests, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}

	dataset := export.Dataset{
		Headers: []string{"request_id", "requester", "role", "document_type", "copies", "status", "preferred_date", "created_at"},
	}
	for _, req := range requests {
		preferred := ""
		if req.PreferredDate != nil {
			preferred = req.PreferredDate.Format("2006-01-02")
		}
		for _, item := range req.Documents {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"request_id":     req.ID,
				"requester":      req.RequesterName(),
				"role":           string(req.Role),
				"document_type":  string(item.DocumentType),
				"copies":         fmt.Sprintf("%d", item.Copies),
				"status":         string(item.Status),
				"preferred_date": preferred,
				"created_at":     req.CreatedAt.Format(time.RFC3339),
			})
		}
	}
	return s.csv.Render(dataset)
}

// checkSchedule enforces that a pickup date is a business day strictly
// after the submission date. The error carries the next valid date as a
// hint for the caller.
func (s *RequestService) checkSchedule(date time.Time, now time.Time) error {
	day := calendar.DateOnly(date)
	today := calendar.DateOnly(now)
	if !day.After(today) || !s.calendar.IsBusinessDay(day) {
		next := s.calendar.NextBusinessDay(now)
		return appErrors.Clone(appErrors.ErrScheduleConstraint,
			fmt.Sprintf("pickup date must be a business day after %s; next available is %s",
				today.Format("2006-01-02"), next.Format("2006-01-02")))
	}
	return nil
}

func (s *RequestService) publish(event models.LifecycleEvent) {
	if s.events == nil {
		return
	}
	s.events.Publish(event)
}
