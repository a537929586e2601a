package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/JonMunkholm/claimdesk/internal/core"
	"github.com/JonMunkholm/claimdesk/internal/logging"
)

// LoginPath is where anonymous visitors are sent.
const LoginPath = "/login"

// LoadUser puts the session's user, if any, into the request context.
func (m *Manager) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok, err := m.CurrentUser(r)
		if err != nil {
			logging.FromContext(r.Context()).Error("load session user", "error", err)
		}
		if ok {
			r = r.WithContext(core.ContextWithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireLogin rejects anonymous requests. Browsers are redirected to the
// login page and HTMX requests get an HX-Redirect. API calls and other
// non-GET requests get 401.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := core.UserFromContext(r.Context()); !ok {
			redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin allows only administrators through.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := core.UserFromContext(r.Context())
		if !ok {
			redirectToLogin(w, r)
			return
		}
		if !u.IsAdmin {
			logging.FromContext(r.Context()).Warn("auth: admin required", "user_id", u.ID, "path", r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/"):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case r.Header.Get("HX-Request") == "true":
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusUnauthorized)
	case r.Method == http.MethodGet:
		http.Redirect(w, r, target, http.StatusSeeOther)
	default:
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
}

// SafeNext returns next if it is a local path, otherwise fallback.
func SafeNext(next, fallback string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return fallback
	}
	return next
}
