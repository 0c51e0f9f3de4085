package http

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"bilancio/internal/identity"
)

const oauthStateCookie = "bilancio_oauth_state"

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentUser(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, "login.html", struct {
		GoogleEnabled bool
	}{GoogleEnabled: s.google != nil})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	email := FormValue(r, "email")
	displayName := FormValue(r, "display_name")
	password := r.Form.Get("password")

	sess, err := s.provider.Register(r.Context(), email, displayName, password)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	s.startBrowserSession(w, sess)
	redirectOrDeny(w, r, "/house")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	sess, err := s.provider.SignInWithCredentials(r.Context(), FormValue(r, "email"), r.Form.Get("password"))
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	s.startBrowserSession(w, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if user, ok := s.currentUser(r); ok {
		s.views.dropUser(user.ID)
	}
	s.provider.SignOut(r.Context())
	clearCookie(w, sessionCookie)
	clearCookie(w, houseCookie)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		NotFoundError("Google sign-in is not configured").Write(w)
		return
	}

	state := randomState()
	setCookie(w, oauthStateCookie, state, 10*time.Minute)
	http.Redirect(w, r, s.google.AuthURL(state), http.StatusSeeOther)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		NotFoundError("Google sign-in is not configured").Write(w)
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		slog.WarnContext(r.Context(), "OAuth state mismatch")
		BadRequestError("Sign-in attempt could not be verified, please retry").Write(w)
		return
	}
	clearCookie(w, oauthStateCookie)

	sess, err := s.google.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		slog.ErrorContext(r.Context(), "Google sign-in failed", "error", err)
		InternalServerError("Google sign-in failed").Write(w)
		return
	}

	s.startBrowserSession(w, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) startBrowserSession(w http.ResponseWriter, sess *identity.Session) {
	setCookie(w, sessionCookie, sess.Token, 24*time.Hour)
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		ErrorResponse(http.StatusUnauthorized, "Wrong email or password").Write(w)
	case errors.Is(err, identity.ErrWeakPassword):
		UnprocessableEntityError("Password must be at least 8 characters").Write(w)
	case errors.Is(err, identity.ErrEmailExists):
		UnprocessableEntityError("An account with this email already exists").Write(w)
	default:
		slog.ErrorContext(r.Context(), "Auth error", "error", err)
		InternalServerError("Something went wrong, please retry").Write(w)
	}
}

func randomState() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(bytes)
}
