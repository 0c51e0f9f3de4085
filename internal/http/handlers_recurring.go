package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/recurring"
	"bilancio/internal/viewmodel"
)

const ruleDateLayout = "2006-01-02"

type ruleRow struct {
	ID          string
	Description string
	Amount      string
	Type        string
	Category    string
	Frequency   string
	StartDate   string
	EndDate     string
	Active      bool
}

// handleRecurringList renders the rule list and form fragment for HTMX swaps.
func (s *Server) handleRecurringList(w http.ResponseWriter, r *http.Request, view *viewmodel.View) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	rules, err := s.recurring.Rules(r.Context(), view.HouseID())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load recurring rules", "error", err)
		InternalServerError("Could not load recurring rules").Write(w)
		return
	}

	rows := make([]ruleRow, 0, len(rules))
	for _, rule := range rules {
		row := ruleRow{
			ID:          rule.ID,
			Description: rule.Description,
			Amount:      formatEuros(rule.Amount.Cents),
			Type:        string(rule.Type),
			Frequency:   string(rule.Frequency),
			StartDate:   rule.StartDate.Format("02 Jan 2006"),
			Active:      rule.Active,
		}
		if rule.CategoryID != "" {
			if b, ok := view.Budget(rule.CategoryID); ok {
				row.Category = b.Name
			} else {
				row.Category = "(deleted)"
			}
		}
		if !rule.EndDate.IsZero() {
			row.EndDate = rule.EndDate.Format("02 Jan 2006")
		}
		rows = append(rows, row)
	}

	s.render(w, r, "recurring.html", struct {
		Rules   []ruleRow
		Budgets []core.Budget
	}{rows, view.Budgets()})
}

func (s *Server) handleCreateRecurringRule(w http.ResponseWriter, r *http.Request, view *viewmodel.View) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	amount, err := core.ParseMoney(FormValue(r, "amount"))
	if err != nil {
		s.writeRecurringError(w, r, err)
		return
	}

	rule := recurring.Rule{
		Description: FormValue(r, "description"),
		Amount:      amount,
		Type:        core.TransactionType(FormValue(r, "type")),
		CategoryID:  FormValue(r, "category_id"),
		Frequency:   recurring.Frequency(FormValue(r, "frequency")),
		StartDate:   time.Now(),
		Active:      true,
	}
	if user, ok := s.currentUser(r); ok {
		rule.CreatedBy = user.ID
	}

	if v := FormValue(r, "start_date"); v != "" {
		t, err := time.Parse(ruleDateLayout, v)
		if err != nil {
			UnprocessableEntityError("Start date must be YYYY-MM-DD").Write(w)
			return
		}
		rule.StartDate = t
	}
	if v := FormValue(r, "end_date"); v != "" {
		t, err := time.Parse(ruleDateLayout, v)
		if err != nil {
			UnprocessableEntityError("End date must be YYYY-MM-DD").Write(w)
			return
		}
		rule.EndDate = t
	}

	if _, err := s.recurring.AddRule(r.Context(), view.HouseID(), rule); err != nil {
		s.writeRecurringError(w, r, err)
		return
	}

	NewHTMXResponse().
		TriggerRecurringChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Recurring rule created").
		Write(w)
}

func (s *Server) handleDeleteRecurringRule(w http.ResponseWriter, r *http.Request, view *viewmodel.View) {
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

	if err := s.recurring.DeleteRule(r.Context(), view.HouseID(), FormValue(r, "id")); err != nil {
		s.writeRecurringError(w, r, err)
		return
	}

	NewHTMXResponse().
		TriggerRecurringChanged().
		TriggerSuccessNotification("Recurring rule deleted").
		Write(w)
}

func (s *Server) writeRecurringError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		UnprocessableEntityError("Amount must be a positive number").Write(w)
	case errors.Is(err, core.ErrInvalidType):
		UnprocessableEntityError("Type must be income or expense").Write(w)
	case errors.Is(err, recurring.ErrInvalidFrequency):
		UnprocessableEntityError("Frequency must be daily, weekly, monthly or yearly").Write(w)
	case errors.Is(err, core.ErrEmptyDocumentID):
		BadRequestError("Missing rule ID").Write(w)
	default:
		slog.ErrorContext(r.Context(), "Recurring rule operation failed", "error", err)
		InternalServerError("Could not save the recurring rule").Write(w)
	}
}
