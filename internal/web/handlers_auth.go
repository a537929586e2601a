package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/claimdesk/internal/auth"
	"github.com/JonMunkholm/claimdesk/internal/core"
	"github.com/JonMunkholm/claimdesk/internal/logging"
	"github.com/JonMunkholm/claimdesk/internal/web/templates"
)

const homePath = "/claims"

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	next := auth.SafeNext(r.URL.Query().Get("next"), "")
	if _, ok := core.UserFromContext(r.Context()); ok {
		http.Redirect(w, r, auth.SafeNext(next, homePath), http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, templates.LoginPage(templates.AuthForm{Next: next}))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	var form loginForm
	if err := decodeForm(r, &form); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	user, err := s.auth.Authenticate(r.Context(), form.Username, form.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		logging.FromContext(r.Context()).Warn("login failed", "username", form.Username, "ip", core.IPAddressFromContext(r.Context()))
		s.render(w, r, http.StatusUnauthorized, templates.LoginPage(templates.AuthForm{
			Username: form.Username,
			Next:     form.Next,
			Error:    core.MapError(err).Message,
		}))
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.auth.Login(w, r, user); err != nil {
		s.fail(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("user logged in", "user_id", user.ID)
	http.Redirect(w, r, auth.SafeNext(form.Next, homePath), http.StatusSeeOther)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, templates.RegisterPage(templates.AuthForm{}))
}

// handleRegister creates a regular account and signs it in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	var form registerForm
	if err := decodeForm(r, &form); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	user, err := s.auth.Register(r.Context(), form.Username, form.Password, form.Confirm)
	if errors.Is(err, auth.ErrInvalidRegistration) || errors.Is(err, core.ErrUsernameTaken) {
		msg := err.Error()
		if errors.Is(err, core.ErrUsernameTaken) {
			msg = core.MapError(err).Message
		}
		s.render(w, r, statusFor(err), templates.RegisterPage(templates.AuthForm{
			Username: form.Username,
			Error:    msg,
		}))
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.auth.Login(w, r, user); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, homePath, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(w, r); err != nil {
		logging.FromContext(r.Context()).Warn("logout failed", "error", err)
	}
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}
