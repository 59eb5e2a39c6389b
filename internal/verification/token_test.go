package verification

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-docs-api/internal/models"
)

func sampleRequest() (*models.Request, *models.DocumentItem) {
	requesterID := "user-42"
	gradeYear := "SY 2023-2024"
	req := &models.Request{
		ID:          "req-1",
		RequesterID: &requesterID,
		Role:        models.RequesterRoleAlumni,
		FirstName:   "Maria",
		LastName:    "Santos",
		Email:       "maria@example.com",
		Phone:       "09171234567",
	}
	item := &models.DocumentItem{
		ID:               "doc-1",
		DocumentType:     models.DocumentTypeForm137,
		Purpose:          models.PurposeTransfer,
		Copies:           1,
		GradeYearContext: &gradeYear,
		Status:           models.DocumentStatusPending,
	}
	return req, item
}

func TestIssueAndDecodeRoundTrip(t *testing.T) {
	issuer := NewIssuer("test-secret", 128)
	req, item := sampleRequest()
	now := time.Date(2025, time.September, 1, 9, 0, 0, 0, time.UTC)
	ref := NewReference(now)

	token, err := issuer.Issue(req, item, ref, now)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	payload, err := issuer.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, ref, payload.Reference)
	assert.Equal(t, "Maria Santos", payload.RequesterName)
	assert.Equal(t, models.DocumentTypeForm137, payload.DocumentType)
	assert.Equal(t, models.DocumentStatusPending, payload.StatusAtIssuance)
	assert.Equal(t, 1, payload.Copies)
}

func TestDecodeRejectsTamperedToken(t *testing.T) {
	issuer := NewIssuer("test-secret", 128)
	req, item := sampleRequest()
	now := time.Now().UTC()

	token, err := issuer.Issue(req, item, NewReference(now), now)
	require.NoError(t, err)

	_, err = issuer.Decode(token + "x")
	assert.Error(t, err)

	_, err = issuer.Decode("not-a-token")
	assert.Error(t, err)
}

func TestDecodeRejectsForeignSecret(t *testing.T) {
	issuer := NewIssuer("secret-a", 128)
	other := NewIssuer("secret-b", 128)
	req, item := sampleRequest()
	now := time.Now().UTC()

	token, err := issuer.Issue(req, item, NewReference(now), now)
	require.NoError(t, err)

	_, err = other.Decode(token)
	assert.Error(t, err)
}

func TestNewReferenceShape(t *testing.T) {
	now := time.Date(2025, time.September, 1, 9, 30, 15, 0, time.UTC)
	ref := NewReference(now)
	assert.True(t, strings.HasPrefix(ref, "REQ-20250901093015-"))

	again := NewReference(now)
	assert.NotEqual(t, ref, again, "random suffix keeps references unique")
}

func TestRenderPNG(t *testing.T) {
	issuer := NewIssuer("test-secret", 128)
	req, item := sampleRequest()
	now := time.Now().UTC()

	token, err := issuer.Issue(req, item, NewReference(now), now)
	require.NoError(t, err)

	png, err := issuer.RenderPNG(token)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}
