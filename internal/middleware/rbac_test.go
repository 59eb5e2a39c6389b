package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-docs-api/internal/models"
)

const testSecret = "rbac-test-secret"

func signToken(t *testing.T, role models.UserRole) string {
	t.Helper()
	claims := &models.JWTClaims{
		UserID: "user-1",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func newGatedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/force-status", JWT(testSecret), RequireSuperSteward(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "forced"})
	})
	r.POST("/status", JWT(testSecret), RequireStaff(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "changed"})
	})
	return r
}

func TestSuperStewardGateRejectsStaff(t *testing.T) {
	r := newGatedRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/force-status", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, models.RoleStaff))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSuperStewardGateAdmitsSuperSteward(t *testing.T) {
	r := newGatedRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/force-status", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, models.RoleSuperSteward))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStaffGateRoles(t *testing.T) {
	r := newGatedRouter()

	cases := []struct {
		role models.UserRole
		want int
	}{
		{models.RoleStaff, http.StatusOK},
		{models.RoleSuperSteward, http.StatusOK},
		{models.RoleRequester, http.StatusForbidden},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/status", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, tc.role))
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, "role %s", tc.role)
	}
}

func TestGatesRejectMissingAndBadTokens(t *testing.T) {
	r := newGatedRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/force-status", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/force-status", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
