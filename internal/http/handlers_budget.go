package http

import (
	"errors"
	"log/slog"
	"net/http"

	"bilancio/internal/core"
	"bilancio/internal/viewmodel"
)

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request, view *viewmodel.View) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	_, err := view.AddBudget(r.Context(), FormValue(r, "name"), FormValue(r, "planned"))
	if err != nil {
		s.writeBudgetError(w, r, err)
		return
	}

	NewHTMXResponse().
		TriggerBudgetChanged().
		TriggerSummaryRefresh(parseYearMonth(r)).
		TriggerFormReset().
		TriggerSuccessNotification("Budget created").
		Write(w)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request, view *viewmodel.View) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	err := view.EditBudget(r.Context(), FormValue(r, "id"), FormValue(r, "name"), FormValue(r, "planned"))
	if err != nil {
		s.writeBudgetError(w, r, err)
		return
	}

	NewHTMXResponse().
		TriggerBudgetChanged().
		TriggerSummaryRefresh(parseYearMonth(r)).
		TriggerSuccessNotification("Budget updated").
		Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request, view *viewmodel.View) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	// The browser shows a confirm dialog; reject requests that bypassed it.
	if FormValue(r, "confirm") != "true" {
		BadRequestError("Delete must be confirmed").Write(w)
		return
	}

	if err := view.DeleteBudget(r.Context(), FormValue(r, "id")); err != nil {
		s.writeBudgetError(w, r, err)
		return
	}

	NewHTMXResponse().
		TriggerBudgetChanged().
		TriggerSummaryRefresh(parseYearMonth(r)).
		TriggerSuccessNotification("Budget deleted").
		Write(w)
}

func (s *Server) writeBudgetError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrEmptyName):
		UnprocessableEntityError("Budget name cannot be empty").Write(w)
	case errors.Is(err, core.ErrInvalidAmount):
		UnprocessableEntityError("Planned amount must be a positive number").Write(w)
	case errors.Is(err, core.ErrEmptyDocumentID):
		BadRequestError("Missing budget ID").Write(w)
	case errors.Is(err, viewmodel.ErrNoActiveHouse):
		BadRequestError("No active house").Write(w)
	default:
		slog.ErrorContext(r.Context(), "Budget operation failed", "error", err)
		InternalServerError("Could not save the budget").Write(w)
	}
}
