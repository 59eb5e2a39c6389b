// Package verification issues the scannable pickup tokens attached to each
// requested document. A token is an issuance snapshot signed with a
// server-held secret: scanning proves the slip was produced by the portal,
// while live status is always read from the request aggregate.
package verification

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/noah-isme/school-docs-api/internal/models"
)

const referencePrefix = "REQ"

// Payload is the issuance snapshot embedded in a token. It is frozen at
// creation and never regenerated, even after the item changes status.
type Payload struct {
	Reference             string                `json:"reference"`
	RequesterName         string                `json:"requester_name"`
	RequesterID           *string               `json:"requester_id,omitempty"`
	Role                  models.RequesterRole  `json:"role"`
	Email                 string                `json:"email"`
	Phone                 string                `json:"phone"`
	GradeStrand           *string               `json:"grade_strand,omitempty"`
	GraduationYear        *int                  `json:"graduation_year,omitempty"`
	DocumentID            string                `json:"document_id"`
	DocumentType          models.DocumentType   `json:"document_type"`
	Purpose               models.RequestPurpose `json:"purpose"`
	PurposeDetail         *string               `json:"purpose_detail,omitempty"`
	Copies                int                   `json:"copies"`
	GradeYearContext      *string               `json:"grade_year_context,omitempty"`
	PreferredDate         *time.Time            `json:"preferred_date,omitempty"`
	PreferredTime         *string               `json:"preferred_time,omitempty"`
	AccessRestrictedUntil *time.Time            `json:"access_restricted_until,omitempty"`
	StatusAtIssuance      models.DocumentStatus `json:"status_at_issuance"`
	IssuedAt              time.Time             `json:"issued_at"`
}

// Issuer signs and encodes verification tokens.
type Issuer struct {
	secret []byte
	qrSize int
}

// NewIssuer constructs an issuer around the shared signing secret. qrSize is
// the rendered PNG edge in pixels.
func NewIssuer(secret string, qrSize int) *Issuer {
	if qrSize <= 0 {
		qrSize = 256
	}
	return &Issuer{secret: []byte(secret), qrSize: qrSize}
}

// NewReference builds a globally unique request reference from the creation
// timestamp and a random suffix.
func NewReference(now time.Time) string {
	suffix := make([]byte, 3)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("%s-%s-%s", referencePrefix, now.UTC().Format("20060102150405"), strings.ToUpper(hex.EncodeToString(suffix)))
}

// Issue builds and signs the token for one document item. Status at
// issuance is whatever the item carries, which at creation is pending.
func (i *Issuer) Issue(req *models.Request, item *models.DocumentItem, reference string, now time.Time) (string, error) {
	payload := Payload{
		Reference:             reference,
		RequesterName:         req.RequesterName(),
		RequesterID:           req.RequesterID,
		Role:                  req.Role,
		Email:                 req.Email,
		Phone:                 req.Phone,
		GradeStrand:           req.GradeStrand,
		GraduationYear:        req.GraduationYear,
		DocumentID:            item.ID,
		DocumentType:          item.DocumentType,
		Purpose:               item.Purpose,
		PurposeDetail:         item.PurposeDetail,
		Copies:                item.Copies,
		GradeYearContext:      item.GradeYearContext,
		PreferredDate:         req.PreferredDate,
		PreferredTime:         req.PreferredTime,
		AccessRestrictedUntil: req.AccessRestrictedUntil,
		StatusAtIssuance:      item.Status,
		IssuedAt:              now.UTC(),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode token payload: %w", err)
	}
	body := base64.RawURLEncoding.EncodeToString(encoded)
	return body + "." + i.sign(body), nil
}

// Decode verifies the token signature and returns the embedded snapshot.
func (i *Issuer) Decode(token string) (*Payload, error) {
	body, sig, found := strings.Cut(token, ".")
	if !found {
		return nil, fmt.Errorf("malformed verification token")
	}
	expected := i.sign(body)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return nil, fmt.Errorf("verification token signature mismatch")
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("decode token payload: %w", err)
	}
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse token payload: %w", err)
	}
	return &payload, nil
}

// RenderPNG encodes the token content as a QR PNG.
func (i *Issuer) RenderPNG(token string) ([]byte, error) {
	png, err := qrcode.Encode(token, qrcode.Medium, i.qrSize)
	if err != nil {
		return nil, fmt.Errorf("render verification qr: %w", err)
	}
	return png, nil
}

func (i *Issuer) sign(body string) string {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
