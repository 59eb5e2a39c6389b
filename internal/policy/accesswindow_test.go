package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-docs-api/internal/models"
)

func typeSet(types ...models.DocumentType) map[models.DocumentType]struct{} {
	set := make(map[models.DocumentType]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

func TestComputeAccessWindowSensitiveType(t *testing.T) {
	now := time.Date(2025, time.September, 1, 10, 0, 0, 0, time.UTC)

	until := ComputeAccessWindow(typeSet(models.DocumentTypeForm137), now)
	require.NotNil(t, until)
	assert.Equal(t, now.AddDate(0, 3, 0), *until)
}

func TestComputeAccessWindowMixedSetSingleWindow(t *testing.T) {
	now := time.Date(2025, time.September, 1, 10, 0, 0, 0, time.UTC)

	until := ComputeAccessWindow(typeSet(models.DocumentTypeForm137, models.DocumentTypeGoodMoral), now)
	require.NotNil(t, until)
	assert.Equal(t, now.AddDate(0, 3, 0), *until)

	both := ComputeAccessWindow(typeSet(models.DocumentTypeForm137, models.DocumentTypeDiploma), now)
	require.NotNil(t, both)
	assert.Equal(t, *until, *both, "multiple sensitive types still yield one window")
}

func TestComputeAccessWindowOrdinaryOnly(t *testing.T) {
	now := time.Now().UTC()
	assert.Nil(t, ComputeAccessWindow(typeSet(models.DocumentTypeGoodMoral, models.DocumentTypeEnrollmentCert), now))
	assert.Nil(t, ComputeAccessWindow(typeSet(), now))
}
