// Package auth handles accounts, passwords and login sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/claimdesk/internal/config"
	"github.com/JonMunkholm/claimdesk/internal/core"
)

const (
	sessionName   = "claimdesk_session"
	sessionUserID = "uid"

	MinPasswordLength = 8
	MaxUsernameLength = 150
)

var (
	// ErrInvalidCredentials is returned for an unknown user or a wrong
	// password, without saying which.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRegistration wraps every rejected sign-up.
	ErrInvalidRegistration = errors.New("invalid registration")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9@.+_-]+$`)

// Manager creates users, checks passwords and tracks who is signed in.
type Manager struct {
	users    core.UserRepository
	sessions *sessions.CookieStore
	cost     int

	// dummyHash is compared against when the user does not exist so that a
	// failed lookup costs as much as a wrong password. Built on first use
	// at the manager's cost.
	dummyHash func() []byte
}

// NewManager returns a Manager storing sessions in signed cookies.
func NewManager(users core.UserRepository, cfg config.SecurityConfig) *Manager {
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		slog.Warn("SESSION_SECRET not set; generated a random key, sessions will not survive a restart")
		secret = securecookie.GenerateRandomKey(32)
	}

	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}

	m := &Manager{users: users, sessions: store, cost: bcrypt.DefaultCost}
	m.dummyHash = sync.OnceValue(func() []byte {
		h, _ := bcrypt.GenerateFromPassword([]byte("claimdesk-dummy-password"), m.cost)
		return h
	})
	return m
}

// SetCost changes the bcrypt cost for new passwords. Tests use
// bcrypt.MinCost.
func (m *Manager) SetCost(cost int) { m.cost = cost }

// ValidateCredentials checks a username and password against the sign-up
// rules.
func ValidateCredentials(username, password string) error {
	var problems []string
	switch {
	case username == "":
		problems = append(problems, "username is required")
	case len(username) > MaxUsernameLength:
		problems = append(problems, fmt.Sprintf("username must be at most %d characters", MaxUsernameLength))
	case !usernamePattern.MatchString(username):
		problems = append(problems, "username may contain only letters, digits and @.+-_")
	}
	if len(password) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRegistration, strings.Join(problems, "; "))
	}
	return nil
}

// CreateUser validates and stores a new account.
func (m *Manager) CreateUser(ctx context.Context, username, password string, admin bool) (core.User, error) {
	username = strings.TrimSpace(username)
	if err := ValidateCredentials(username, password); err != nil {
		return core.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := m.users.CreateUser(ctx, core.User{Username: username, PasswordHash: string(hash), IsAdmin: admin})
	if err != nil {
		return core.User{}, err
	}
	slog.Info("user created", "user_id", u.ID, "username", u.Username, "admin", u.IsAdmin)
	return u, nil
}

// Register creates a regular (non-admin) account.
func (m *Manager) Register(ctx context.Context, username, password, confirm string) (core.User, error) {
	if password != confirm {
		return core.User{}, fmt.Errorf("%w: passwords do not match", ErrInvalidRegistration)
	}
	return m.CreateUser(ctx, username, password, false)
}

// Authenticate returns the user when the password matches.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	u, err := m.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if core.IsNotFound(err) {
			_ = bcrypt.CompareHashAndPassword(m.dummyHash(), []byte(password))
			return core.User{}, ErrInvalidCredentials
		}
		return core.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return core.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Login starts a session for u.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, u core.User) error {
	sess, _ := m.sessions.Get(r, sessionName)
	sess.Values[sessionUserID] = u.ID
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Logout ends the current session.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.sessions.Get(r, sessionName)
	delete(sess.Values, sessionUserID)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// CurrentUser loads the user of the request's session. It returns false
// when there is no valid session or the account no longer exists.
func (m *Manager) CurrentUser(r *http.Request) (core.User, bool, error) {
	sess, err := m.sessions.Get(r, sessionName)
	if err != nil {
		// Tampered or stale cookie: treat as signed out.
		return core.User{}, false, nil
	}
	id, ok := sess.Values[sessionUserID].(int64)
	if !ok {
		return core.User{}, false, nil
	}
	u, err := m.users.GetUser(r.Context(), id)
	if core.IsNotFound(err) {
		return core.User{}, false, nil
	}
	if err != nil {
		return core.User{}, false, err
	}
	return u, true, nil
}
