package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/claimdesk/internal/auth"
	"github.com/JonMunkholm/claimdesk/internal/config"
	"github.com/JonMunkholm/claimdesk/internal/core"
	"github.com/JonMunkholm/claimdesk/internal/store/gormstore"
)

func newManager(t *testing.T) (*auth.Manager, core.Store) {
	t.Helper()
	store, err := gormstore.OpenSQLite(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	m := auth.NewManager(store, config.SecurityConfig{
		SessionSecret: strings.Repeat("s", 32),
		SessionMaxAge: time.Hour,
	})
	m.SetCost(bcrypt.MinCost)
	return m, store
}

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  string
	}{
		{"valid", "amy.w@example", "hunter22", ""},
		{"empty username", "", "hunter22", "username is required"},
		{"bad characters", "amy w", "hunter22", "may contain only"},
		{"too long", strings.Repeat("a", 151), "hunter22", "at most 150"},
		{"short password", "amy", "short", "at least 8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateCredentials(tt.username, tt.password)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, auth.ErrInvalidRegistration)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Register(ctx, "amy", "password1", "password2")
	assert.ErrorContains(t, err, "passwords do not match")

	u, err := m.Register(ctx, " amy ", "password1", "password1")
	require.NoError(t, err)
	assert.Equal(t, "amy", u.Username)
	assert.False(t, u.IsAdmin)
	assert.NotEqual(t, "password1", u.PasswordHash)

	_, err = m.Register(ctx, "amy", "password1", "password1")
	assert.ErrorIs(t, err, core.ErrUsernameTaken)

	got, err := m.Authenticate(ctx, "amy", "password1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = m.Authenticate(ctx, "amy", "wrong-password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = m.Authenticate(ctx, "nobody", "password1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestSessionRoundTrip(t *testing.T) {
	m, _ := newManager(t)
	u, err := m.CreateUser(context.Background(), "admin", "password1", true)
	require.NoError(t, err)

	// Log in and capture the cookie.
	rec := httptest.NewRecorder()
	require.NoError(t, m.Login(rec, httptest.NewRequest(http.MethodPost, "/login", nil), u))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	var seen core.User
	handler := m.LoadUser(auth.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = core.UserFromContext(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, u.ID, seen.ID)

	// Logging out expires the cookie.
	rec = httptest.NewRecorder()
	require.NoError(t, m.Logout(rec, req))
	for _, c := range rec.Result().Cookies() {
		assert.True(t, c.MaxAge < 0)
	}
}

func TestRequireLogin(t *testing.T) {
	m, _ := newManager(t)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	handler := m.LoadUser(auth.RequireLogin(ok))

	t.Run("browser redirect", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/claims?page=2", nil))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login?next=%2Fclaims%3Fpage%3D2", rec.Header().Get("Location"))
	})

	t.Run("htmx redirect", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/claims/1/flag", nil)
		req.Header.Set("HX-Request", "true")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Header().Get("HX-Redirect"), "/login?next="))
	})

	t.Run("tampered cookie is anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/claims/1/notes", nil)
		req.AddCookie(&http.Cookie{Name: "claimdesk_session", Value: "garbage"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireAdminRejectsStaff(t *testing.T) {
	m, _ := newManager(t)
	u, err := m.CreateUser(context.Background(), "staff", "password1", false)
	require.NoError(t, err)

	handler := auth.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req = req.WithContext(core.ContextWithUser(req.Context(), u))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                  "/claims",
		"/claims/7":         "/claims/7",
		"//evil.example":    "/claims",
		"https://evil.test": "/claims",
		`/\evil`:            "/claims",
		"admin":             "/claims",
	}
	for in, want := range tests {
		assert.Equal(t, want, auth.SafeNext(in, "/claims"), "SafeNext(%q)", in)
	}
}
