package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Mohammed-Elkharadly/backend-technote/internal/config"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/hash"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/models"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/tokens"
)

type testEnv struct {
	T      *testing.T
	E      *echo.Echo
	DB     *gorm.DB
	Tokens *tokens.Service
	Auth   *AuthHandler
	Users  *UserHandler
	Notes  *NoteHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// A pooled second connection would see its own empty :memory: database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, config.Migrate(db))

	svc := tokens.NewService([]byte("test-access-secret"), []byte("test-refresh-secret"))

	return &testEnv{
		T:      t,
		E:      echo.New(),
		DB:     db,
		Tokens: svc,
		Auth:   &AuthHandler{DB: db, Tokens: svc},
		Users:  &UserHandler{DB: db},
		Notes:  &NoteHandler{DB: db},
	}
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	env.T.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func (env *testEnv) createUser(username, password string, roles []string, active bool) *models.User {
	env.T.Helper()

	pwHash, err := hash.HashPassword(password)
	require.NoError(env.T, err)

	user := &models.User{
		Username:     username,
		PasswordHash: pwHash,
		Roles:        roles,
		Active:       active,
	}
	require.NoError(env.T, env.DB.Create(user).Error)
	return user
}

func (env *testEnv) createNote(userID uint, title, text string) *models.Note {
	env.T.Helper()

	note := &models.Note{UserID: userID, Title: title, Text: text}
	err := env.DB.Transaction(func(tx *gorm.DB) error {
		ticket, err := nextTicket(tx)
		if err != nil {
			return err
		}
		note.Ticket = ticket
		return tx.Create(note).Error
	})
	require.NoError(env.T, err)
	return note
}

func requireHTTPError(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %v", err)
	require.Equal(t, code, he.Code)
	return he
}

func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	res := http.Response{Header: rec.Header()}
	for _, ck := range res.Cookies() {
		if ck.Name == SessionCookie {
			return ck
		}
	}
	return nil
}
