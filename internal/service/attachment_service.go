package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/school-docs-api/pkg/errors"
	"github.com/noah-isme/school-docs-api/pkg/storage"
)

// AttachmentService stores requester uploads (IDs, authorization letters)
// and issues stable signed download references. Requests keep only the
// returned reference.
type AttachmentService struct {
	store        *storage.LocalStorage
	signer       *storage.SignedURLSigner
	maxSizeBytes int64
	allowedMIMEs map[string]struct{}
	logger       *zap.Logger
}

// NewAttachmentService constructs the service.
func NewAttachmentService(store *storage.LocalStorage, signer *storage.SignedURLSigner, maxSizeBytes int64, allowedMIMEs []string, logger *zap.Logger) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	mimes := make(map[string]struct{}, len(allowedMIMEs))
	for _, m := range allowedMIMEs {
		mimes[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &AttachmentService{
		store:        store,
		signer:       signer,
		maxSizeBytes: maxSizeBytes,
		allowedMIMEs: mimes,
		logger:       logger,
	}
}

// UploadResult carries the stored reference handed back to the requester.
type UploadResult struct {
	AttachmentID string `json:"attachment_id"`
	URL          string `json:"url"`
}

// Upload validates and stores one file, returning its signed reference.
func (s *AttachmentService) Upload(filename, contentType string, size int64, r io.Reader) (*UploadResult, error) {
	if size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty upload")
	}
	if s.maxSizeBytes > 0 && size > s.maxSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d byte limit", s.maxSizeBytes))
	}
	if len(s.allowedMIMEs) > 0 {
		normalized := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
		if _, ok := s.allowedMIMEs[normalized]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("content type %s is not accepted", normalized))
		}
	}

	attachmentID := uuid.NewString()
	relPath := filepath.Join(attachmentID, filepath.Base(filename))
	stream := r
	if s.maxSizeBytes > 0 {
		stream = io.LimitReader(r, s.maxSizeBytes+1)
	}
	if _, err := s.store.SaveStream(relPath, stream); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
	}

	token, _, err := s.signer.Generate(attachmentID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign attachment reference")
	}
	return &UploadResult{
		AttachmentID: attachmentID,
		URL:          "/attachments/download?token=" + token,
	}, nil
}

// Open resolves a signed token back to the stored file.
func (s *AttachmentService) Open(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired attachment reference")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
	}
	return file, nil
}
