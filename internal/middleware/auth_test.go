package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Mohammed-Elkharadly/backend-technote/internal/tokens"
)

func guardRequest(t *testing.T, guard *AccessGuard, authHeader string) (echo.Context, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := guard.RequireAuth(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return c, handler(c)
}

func TestRequireAuthMissingHeader(t *testing.T) {
	svc := tokens.NewService([]byte("access"), []byte("refresh"))
	guard := NewAccessGuard(svc)

	_, err := guardRequest(t, guard, "")
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireAuthMalformedHeader(t *testing.T) {
	svc := tokens.NewService([]byte("access"), []byte("refresh"))
	guard := NewAccessGuard(svc)

	token, err := svc.IssueAccess("dave", []string{"Employee"})
	require.NoError(t, err)

	// A valid token with the wrong scheme is still a 401, not a 403.
	_, err = guardRequest(t, guard, "Token "+token)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireAuthInvalidToken(t *testing.T) {
	svc := tokens.NewService([]byte("access"), []byte("refresh"))
	guard := NewAccessGuard(svc)

	_, err := guardRequest(t, guard, "Bearer not-a-token")
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, he.Code)
}

func TestRequireAuthExpiredToken(t *testing.T) {
	svc := tokens.NewService([]byte("access"), []byte("refresh"))
	svc.AccessTTL = -time.Minute
	guard := NewAccessGuard(svc)

	token, err := svc.IssueAccess("dave", []string{"Employee"})
	require.NoError(t, err)

	_, err = guardRequest(t, guard, "Bearer "+token)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, he.Code)
}

func TestRequireAuthAttachesIdentity(t *testing.T) {
	svc := tokens.NewService([]byte("access"), []byte("refresh"))
	guard := NewAccessGuard(svc)

	token, err := svc.IssueAccess("dave", []string{"Employee", "Admin"})
	require.NoError(t, err)

	c, err := guardRequest(t, guard, "Bearer "+token)
	require.NoError(t, err)
	require.Equal(t, "dave", c.Get(CtxUsername))
	require.Equal(t, []string{"Employee", "Admin"}, c.Get(CtxRoles))
}
