package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"bilancio/internal/core"
)

func (s *Server) handleHousePage(w http.ResponseWriter, r *http.Request, user core.User) {
	s.render(w, r, "house.html", struct {
		DisplayName string
		Email       string
	}{DisplayName: user.DisplayName, Email: user.Email})
}

func (s *Server) handleCreateHouse(w http.ResponseWriter, r *http.Request, user core.User) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id, err := s.houses.CreateHouse(r.Context(), FormValue(r, "name"), user)
	if errors.Is(err, core.ErrEmptyName) {
		UnprocessableEntityError("House name cannot be empty").Write(w)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Create house failed", "error", err)
		InternalServerError("Could not create the house").Write(w)
		return
	}

	setCookie(w, houseCookie, id, 365*24*time.Hour)
	redirectOrDeny(w, r, "/")
}

func (s *Server) handleJoinHouse(w http.ResponseWriter, r *http.Request, user core.User) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id, err := s.houses.JoinHouse(r.Context(), FormValue(r, "house_id"), user)
	switch {
	case errors.Is(err, core.ErrEmptyHouseID):
		UnprocessableEntityError("House ID cannot be empty").Write(w)
		return
	case errors.Is(err, core.ErrHouseNotFound):
		NotFoundError("No house with that ID").Write(w)
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Join house failed", "error", err)
		InternalServerError("Could not join the house").Write(w)
		return
	}

	setCookie(w, houseCookie, id, 365*24*time.Hour)
	redirectOrDeny(w, r, "/")
}

// handleLeaveHouse drops the house selection for this browser; the user
// stays a member and can come back with the same ID.
func (s *Server) handleLeaveHouse(w http.ResponseWriter, r *http.Request, _ core.User) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	clearCookie(w, houseCookie)
	http.Redirect(w, r, "/house", http.StatusSeeOther)
}
