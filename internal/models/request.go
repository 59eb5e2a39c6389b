package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RequesterRole identifies which intake form produced the request.
type RequesterRole string

const (
	RequesterRoleStudent RequesterRole = "STUDENT"
	RequesterRoleAlumni  RequesterRole = "ALUMNI"
)

// DocumentType enumerates the requestable document kinds.
type DocumentType string

const (
	DocumentTypeForm137        DocumentType = "FORM_137"
	DocumentTypeForm138        DocumentType = "FORM_138"
	DocumentTypeGoodMoral      DocumentType = "GOOD_MORAL"
	DocumentTypeDiploma        DocumentType = "DIPLOMA"
	DocumentTypeEnrollmentCert DocumentType = "CERT_ENROLLMENT"
	DocumentTypeGraduationCert DocumentType = "CERT_GRADUATION"
	DocumentTypeIDReplacement  DocumentType = "ID_REPLACEMENT"
)

// DocumentTypes lists every valid document type.
var DocumentTypes = []DocumentType{
	DocumentTypeForm137,
	DocumentTypeForm138,
	DocumentTypeGoodMoral,
	DocumentTypeDiploma,
	DocumentTypeEnrollmentCert,
	DocumentTypeGraduationCert,
	DocumentTypeIDReplacement,
}

// Valid reports whether the type belongs to the closed set.
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypeForm137, DocumentTypeForm138, DocumentTypeGoodMoral,
		DocumentTypeDiploma, DocumentTypeEnrollmentCert, DocumentTypeGraduationCert,
		DocumentTypeIDReplacement:
		return true
	default:
		return false
	}
}

// MaxCopies returns the per-type copy ceiling. Terminal records such as the
// permanent record and the diploma are released one copy at a time.
func (t DocumentType) MaxCopies() int {
	switch t {
	case DocumentTypeForm137, DocumentTypeDiploma, DocumentTypeIDReplacement:
		return 1
	default:
		return 5
	}
}

// Sensitive reports whether releasing this document places the requester's
// account under the registrar's post-release review window.
func (t DocumentType) Sensitive() bool {
	switch t {
	case DocumentTypeForm137, DocumentTypeDiploma:
		return true
	default:
		return false
	}
}

// RequiresGradeYear reports whether the type needs a grade/year context
// (transcript-like records are scoped to a school year).
func (t DocumentType) RequiresGradeYear() bool {
	switch t {
	case DocumentTypeForm137, DocumentTypeForm138:
		return true
	default:
		return false
	}
}

// RequestPurpose enumerates the declared reasons for a document request.
type RequestPurpose string

const (
	PurposeEmployment   RequestPurpose = "EMPLOYMENT"
	PurposeScholarship  RequestPurpose = "SCHOLARSHIP"
	PurposeTransfer     RequestPurpose = "TRANSFER"
	PurposeFurtherStudy RequestPurpose = "FURTHER_STUDY"
	PurposeBoardExam    RequestPurpose = "BOARD_EXAM"
	PurposeOther        RequestPurpose = "OTHER"
)

// Valid reports whether the purpose belongs to the closed set.
func (p RequestPurpose) Valid() bool {
	switch p {
	case PurposeEmployment, PurposeScholarship, PurposeTransfer,
		PurposeFurtherStudy, PurposeBoardExam, PurposeOther:
		return true
	default:
		return false
	}
}

// DocumentStatus captures the lifecycle state of a single document item.
type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "PENDING"
	DocumentStatusApproved  DocumentStatus = "APPROVED"
	DocumentStatusClaimed   DocumentStatus = "CLAIMED"
	DocumentStatusCancelled DocumentStatus = "CANCELLED"
)

// Valid reports whether the status belongs to the closed set.
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentStatusPending, DocumentStatusApproved, DocumentStatusClaimed, DocumentStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions.
func (s DocumentStatus) Terminal() bool {
	return s == DocumentStatusClaimed || s == DocumentStatusCancelled
}

// CanTransitionTo reports whether target is reachable from s in one step.
// Pending may be approved or cancelled; approved may be claimed or cancelled.
// Claimed and cancelled are terminal; regressions and skips are illegal.
func (s DocumentStatus) CanTransitionTo(target DocumentStatus) bool {
	switch s {
	case DocumentStatusPending:
		return target == DocumentStatusApproved || target == DocumentStatusCancelled
	case DocumentStatusApproved:
		return target == DocumentStatusClaimed || target == DocumentStatusCancelled
	case DocumentStatusClaimed, DocumentStatusCancelled:
		return false
	default:
		return false
	}
}

// StatusMeta carries the presentation attributes for a document status.
type StatusMeta struct {
	Label string `json:"label"`
	Tone  string `json:"tone"`
}

// Meta returns the closed presentation table entry for s.
func (s DocumentStatus) Meta() StatusMeta {
	switch s {
	case DocumentStatusPending:
		return StatusMeta{Label: "Pending review", Tone: "warning"}
	case DocumentStatusApproved:
		return StatusMeta{Label: "Ready for pickup", Tone: "info"}
	case DocumentStatusClaimed:
		return StatusMeta{Label: "Claimed", Tone: "success"}
	case DocumentStatusCancelled:
		return StatusMeta{Label: "Cancelled", Tone: "danger"}
	default:
		return StatusMeta{Label: string(s), Tone: "neutral"}
	}
}

// DocumentItem is one requested document embedded in its parent Request.
type DocumentItem struct {
	ID                string         `json:"id"`
	DocumentType      DocumentType   `json:"document_type"`
	Purpose           RequestPurpose `json:"purpose"`
	PurposeDetail     *string        `json:"purpose_detail,omitempty"`
	Copies            int            `json:"copies"`
	GradeYearContext  *string        `json:"grade_year_context,omitempty"`
	Status            DocumentStatus `json:"status"`
	CancelReason      *string        `json:"cancel_reason,omitempty"`
	VerificationToken string         `json:"verification_token"`
	RequestedAt       time.Time      `json:"requested_at"`
}

// DocumentItems is the embedded item list, stored as a single JSONB column
// so the aggregate is always written atomically.
type DocumentItems []DocumentItem

// Value implements driver.Valuer.
func (d DocumentItems) Value() (driver.Value, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner.
func (d *DocumentItems) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	case nil:
		*d = nil
		return nil
	default:
		return fmt.Errorf("unsupported document items source %T", src)
	}
}

// Find returns the item with the given local id, or nil.
func (d DocumentItems) Find(itemID string) *DocumentItem {
	for i := range d {
		if d[i].ID == itemID {
			return &d[i]
		}
	}
	return nil
}

// StringList is a JSONB-backed list of opaque strings (attachment refs).
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	case nil:
		*l = nil
		return nil
	default:
		return fmt.Errorf("unsupported string list source %T", src)
	}
}

// Request is the aggregate root for a document request. Items are embedded:
// the whole aggregate is read and written as a unit, and the version column
// guards concurrent read-modify-write cycles.
type Request struct {
	ID                    string        `db:"id" json:"id"`
	RequesterID           *string       `db:"requester_id" json:"requester_id,omitempty"`
	Role                  RequesterRole `db:"role" json:"role"`
	FirstName             string        `db:"first_name" json:"first_name"`
	MiddleName            *string       `db:"middle_name" json:"middle_name,omitempty"`
	LastName              string        `db:"last_name" json:"last_name"`
	Email                 string        `db:"email" json:"email"`
	Phone                 string        `db:"phone" json:"phone"`
	GradeStrand           *string       `db:"grade_strand" json:"grade_strand,omitempty"`
	GraduationYear        *int          `db:"graduation_year" json:"graduation_year,omitempty"`
	Documents             DocumentItems `db:"documents" json:"documents"`
	PreferredDate         *time.Time    `db:"preferred_date" json:"preferred_date,omitempty"`
	PreferredTime         *string       `db:"preferred_time" json:"preferred_time,omitempty"`
	AccessRestrictedUntil *time.Time    `db:"access_restricted_until" json:"access_restricted_until,omitempty"`
	AttachmentRefs        StringList    `db:"attachment_refs" json:"attachment_refs"`
	Version               int           `db:"version" json:"version"`
	CreatedAt             time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time     `db:"updated_at" json:"updated_at"`
}

// DocumentTypeSet returns the distinct document types across all items.
func (r *Request) DocumentTypeSet() map[DocumentType]struct{} {
	set := make(map[DocumentType]struct{}, len(r.Documents))
	for _, item := range r.Documents {
		set[item.DocumentType] = struct{}{}
	}
	return set
}

// RequesterName joins the name parts for display and token payloads.
func (r *Request) RequesterName() string {
	if r.MiddleName != nil && *r.MiddleName != "" {
		return r.FirstName + " " + *r.MiddleName + " " + r.LastName
	}
	return r.FirstName + " " + r.LastName
}

// RequestFilter constrains request listing queries.
type RequestFilter struct {
	RequesterID string
	Status      DocumentStatus
	Role        RequesterRole
	DateFrom    *time.Time
	DateTo      *time.Time
	Page        int
	PageSize    int
}
