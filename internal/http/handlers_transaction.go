package http

import (
	"errors"
	"log/slog"
	"net/http"

	"bilancio/internal/core"
	"bilancio/internal/viewmodel"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, view *viewmodel.View) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	typ := core.TransactionType(FormValue(r, "type"))
	_, err := view.AddTransaction(r.Context(),
		FormValue(r, "amount"), typ, FormValue(r, "description"), FormValue(r, "category_id"))
	if err != nil {
		s.writeTransactionError(w, r, err)
		return
	}

	NewHTMXResponse().
		TriggerTransactionChanged().
		TriggerSummaryRefresh(parseYearMonth(r)).
		TriggerFormReset().
		TriggerSuccessNotification("Transaction recorded").
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, view *viewmodel.View) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	err := view.EditTransaction(r.Context(), FormValue(r, "id"), FormValue(r, "amount"), FormValue(r, "description"))
	if err != nil {
		s.writeTransactionError(w, r, err)
		return
	}

	NewHTMXResponse().
		TriggerTransactionChanged().
		TriggerSummaryRefresh(parseYearMonth(r)).
		TriggerSuccessNotification("Transaction updated").
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, view *viewmodel.View) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	if FormValue(r, "confirm") != "true" {
		BadRequestError("Delete must be confirmed").Write(w)
		return
	}

	if err := view.DeleteTransaction(r.Context(), FormValue(r, "id")); err != nil {
		s.writeTransactionError(w, r, err)
		return
	}

	NewHTMXResponse().
		TriggerTransactionChanged().
		TriggerSummaryRefresh(parseYearMonth(r)).
		TriggerSuccessNotification("Transaction deleted").
		Write(w)
}

func (s *Server) writeTransactionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		UnprocessableEntityError("Amount must be a positive number").Write(w)
	case errors.Is(err, core.ErrInvalidType):
		UnprocessableEntityError("Type must be income or expense").Write(w)
	case errors.Is(err, core.ErrEmptyDocumentID):
		BadRequestError("Missing transaction ID").Write(w)
	case errors.Is(err, viewmodel.ErrNoActiveHouse):
		BadRequestError("No active house").Write(w)
	default:
		slog.ErrorContext(r.Context(), "Transaction operation failed", "error", err)
		InternalServerError("Could not save the transaction").Write(w)
	}
}
