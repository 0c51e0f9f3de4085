package core

import "time"

// BudgetLine is the per-budget slice of a month summary.
type BudgetLine struct {
	BudgetID  string
	Name      string
	Planned   Money
	Spent     Money
	Remaining Money
}

// MonthSummary holds every figure the dashboard shows for one calendar month.
//
// Income, Expenses and Net cover the this-month transaction set. Lines carry
// per-budget spent/remaining from the same set. PlannedTotal sums all budgets
// regardless of month; SpentTotal sums all this-month expenses regardless of
// category assignment.
type MonthSummary struct {
	Year  int
	Month time.Month

	Income   Money
	Expenses Money
	Net      Money

	Lines []BudgetLine

	PlannedTotal   Money
	SpentTotal     Money
	RemainingTotal Money
}

// InMonth reports whether the transaction's creation timestamp falls in the
// given calendar month, evaluated in loc. Transactions without a timestamp
// are never in any month.
func InMonth(t Transaction, year int, month time.Month, loc *time.Location) bool {
	if t.CreatedAt.IsZero() {
		return false
	}
	y, m, _ := t.CreatedAt.In(loc).Date()
	return y == year && m == month
}

// Summarize recomputes the full dashboard aggregation from the current
// budget and transaction mirrors. It is called on every snapshot; nothing is
// maintained incrementally.
//
// Policy: a missing amount or planned value counts as zero, and a
// transaction with no category never contributes to a budget's spent figure
// but still counts toward the blanket expense total.
func Summarize(budgets []Budget, txns []Transaction, now time.Time) MonthSummary {
	year, month, _ := now.Date()
	loc := now.Location()

	s := MonthSummary{Year: year, Month: month}

	spentByCategory := make(map[string]Money, len(budgets))
	for _, t := range txns {
		if !InMonth(t, year, month, loc) {
			continue
		}
		switch t.Type {
		case Income:
			s.Income = s.Income.Add(t.Amount)
		case Expense:
			s.Expenses = s.Expenses.Add(t.Amount)
			s.SpentTotal = s.SpentTotal.Add(t.Amount)
			if t.CategoryID != "" {
				spentByCategory[t.CategoryID] = spentByCategory[t.CategoryID].Add(t.Amount)
			}
		}
	}
	s.Net = s.Income.Sub(s.Expenses)

	s.Lines = make([]BudgetLine, 0, len(budgets))
	for _, b := range budgets {
		spent := spentByCategory[b.ID]
		s.Lines = append(s.Lines, BudgetLine{
			BudgetID:  b.ID,
			Name:      b.Name,
			Planned:   b.Planned,
			Spent:     spent,
			Remaining: b.Remaining(spent),
		})
		s.PlannedTotal = s.PlannedTotal.Add(b.Planned)
	}
	s.RemainingTotal = s.PlannedTotal.Sub(s.SpentTotal)

	return s
}
