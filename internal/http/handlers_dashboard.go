package http

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/session"
	"bilancio/internal/viewmodel"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	var userPtr *core.User
	if user, ok := s.currentUser(r); ok {
		userPtr = &user
	}

	snap := session.Derive(userPtr, s.currentHouse(r))
	switch snap.State {
	case session.StateUnauthenticated:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	case session.StateAwaitingHouseSelection:
		http.Redirect(w, r, "/house", http.StatusSeeOther)
	default:
		s.renderDashboard(w, r, snap)
	}
}

type budgetRow struct {
	ID        string
	Name      string
	Planned   string
	Spent     string
	Remaining string
	Over      bool
	Width     int
}

type transactionRow struct {
	ID          string
	Description string
	Amount      string
	Type        string
	Category    string
	Date        string
	By          string
}

type summaryData struct {
	Year      int
	Month     int
	MonthName string
	Income    string
	Expenses  string
	Net       string
	NetNeg    bool
	Planned   string
	Spent     string
	Remaining string
	Rows      []budgetRow
}

func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, snap session.Snapshot) {
	view, err := s.views.get(snap.User, snap.HouseID)
	if err != nil {
		InternalServerError("Could not load house data").Write(w)
		return
	}

	h, err := s.houses.GetHouse(r.Context(), snap.HouseID)
	if err != nil {
		// Stale cookie pointing at a deleted house.
		clearCookie(w, houseCookie)
		http.Redirect(w, r, "/house", http.StatusSeeOther)
		return
	}

	year, month := parseYearMonth(r)
	data := struct {
		DisplayName string
		HouseName   string
		HouseID     string
		Members     int
		Summary     summaryData
		Budgets     []core.Budget
		Txns        []transactionRow
	}{
		DisplayName: snap.User.DisplayName,
		HouseName:   h.Name,
		HouseID:     h.ID,
		Members:     len(h.Members),
		Summary:     s.summaryFor(view, snap.HouseID, year, month),
		Budgets:     view.Budgets(),
		Txns:        transactionRows(view.Transactions(), view),
	}
	s.render(w, r, "dashboard.html", data)
}

// handleSummaryPartial renders the month rollup fragment for HTMX swaps.
func (s *Server) handleSummaryPartial(w http.ResponseWriter, r *http.Request, view *viewmodel.View) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	year, month := parseYearMonth(r)
	s.render(w, r, "summary.html", s.summaryFor(view, view.HouseID(), year, month))
}

// summaryFor computes (or serves from cache) the rollup for one month.
func (s *Server) summaryFor(view *viewmodel.View, houseID string, year, month int) summaryData {
	key := fmt.Sprintf("%s:%s:%04d-%02d", houseID, s.views.generation(houseID), year, month)

	summary, ok := s.summaryCache.Get(key)
	if !ok {
		at := time.Date(year, time.Month(month), 1, 12, 0, 0, 0, time.Local)
		summary = view.Summary(at)
		s.summaryCache.Set(key, summary)
	}

	data := summaryData{
		Year:      summary.Year,
		Month:     int(summary.Month),
		MonthName: summary.Month.String(),
		Income:    formatEuros(summary.Income.Cents),
		Expenses:  formatEuros(summary.Expenses.Cents),
		Net:       formatEuros(summary.Net.Cents),
		NetNeg:    summary.Net.Cents < 0,
		Planned:   formatEuros(summary.PlannedTotal.Cents),
		Spent:     formatEuros(summary.SpentTotal.Cents),
		Remaining: formatEuros(summary.RemainingTotal.Cents),
	}
	for _, line := range summary.Lines {
		width := 0
		if line.Planned.Cents > 0 {
			width = int((line.Spent.Cents*100 + line.Planned.Cents/2) / line.Planned.Cents)
			if width > 100 {
				width = 100
			}
		}
		data.Rows = append(data.Rows, budgetRow{
			ID:        line.BudgetID,
			Name:      line.Name,
			Planned:   formatEuros(line.Planned.Cents),
			Spent:     formatEuros(line.Spent.Cents),
			Remaining: formatEuros(line.Remaining.Cents),
			Over:      line.Remaining.Cents < 0,
			Width:     width,
		})
	}
	return data
}

func transactionRows(txns []core.Transaction, view *viewmodel.View) []transactionRow {
	rows := make([]transactionRow, 0, len(txns))
	for _, t := range txns {
		category := ""
		if t.CategoryID != "" {
			if b, ok := view.Budget(t.CategoryID); ok {
				category = b.Name
			} else {
				category = "(deleted)"
			}
		}
		rows = append(rows, transactionRow{
			ID:          t.ID,
			Description: template.HTMLEscapeString(t.Description),
			Amount:      formatEuros(t.Amount.Cents),
			Type:        string(t.Type),
			Category:    category,
			Date:        t.CreatedAt.Format("02 Jan 2006"),
			By:          t.CreatedByEmail,
		})
	}
	return rows
}
