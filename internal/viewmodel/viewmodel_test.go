package viewmodel

import (
	"context"
	"errors"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/docstore/memory"
)

var ana = core.User{ID: "u-ana", Email: "ana@example.com"}

type fixture struct {
	view    *View
	changed chan struct{}
	refuse  bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { store.Close() })

	f := &fixture{changed: make(chan struct{}, 64)}
	f.view = New(store, ana,
		func(string) bool { return !f.refuse },
		func() { f.changed <- struct{}{} },
	)
	t.Cleanup(f.view.Close)
	return f
}

// waitFor drains change notifications until cond holds.
func (f *fixture) waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-f.changed:
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func (f *fixture) setHouse(t *testing.T, id string) {
	t.Helper()
	if err := f.view.SetHouse(id); err != nil {
		t.Fatalf("set house: %v", err)
	}
}

func TestMutationsRequireHouse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.view.AddBudget(ctx, "Groceries", "300"); !errors.Is(err, ErrNoActiveHouse) {
		t.Fatalf("got %v, want ErrNoActiveHouse", err)
	}
	if _, err := f.view.AddTransaction(ctx, "10", core.Expense, "", ""); !errors.Is(err, ErrNoActiveHouse) {
		t.Fatalf("got %v, want ErrNoActiveHouse", err)
	}
}

func TestAddBudgetAppearsInSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setHouse(t, "h1")

	id, err := f.view.AddBudget(ctx, "  Groceries  ", "300")
	if err != nil {
		t.Fatalf("add budget: %v", err)
	}

	f.waitFor(t, func() bool { return len(f.view.Budgets()) == 1 })
	b := f.view.Budgets()[0]
	if b.ID != id || b.Name != "Groceries" || b.Planned.Cents != 30000 {
		t.Errorf("budget = %+v", b)
	}
	if b.CreatedBy != ana.ID || b.CreatedByEmail != ana.Email {
		t.Errorf("attribution = %q/%q", b.CreatedBy, b.CreatedByEmail)
	}
}

func TestAddBudgetValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setHouse(t, "h1")

	if _, err := f.view.AddBudget(ctx, "", "300"); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("empty name: got %v", err)
	}
	if _, err := f.view.AddBudget(ctx, "Groceries", "abc"); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("bad amount: got %v", err)
	}
	if _, err := f.view.AddBudget(ctx, "Groceries", "0"); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v", err)
	}
	if len(f.view.Budgets()) != 0 {
		t.Fatal("invalid input must not reach the store")
	}
}

func TestBudgetsOrderedByName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setHouse(t, "h1")

	f.view.AddBudget(ctx, "Rent", "800")
	f.view.AddBudget(ctx, "Groceries", "300")

	f.waitFor(t, func() bool { return len(f.view.Budgets()) == 2 })
	got := f.view.Budgets()
	if got[0].Name != "Groceries" || got[1].Name != "Rent" {
		t.Errorf("order = %q, %q", got[0].Name, got[1].Name)
	}
}

func TestTransactionsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setHouse(t, "h1")

	f.view.AddTransaction(ctx, "10", core.Expense, "first", "")
	f.waitFor(t, func() bool { return len(f.view.Transactions()) == 1 })
	f.view.AddTransaction(ctx, "20", core.Expense, "second", "")

	f.waitFor(t, func() bool { return len(f.view.Transactions()) == 2 })
	got := f.view.Transactions()
	if got[0].Description != "second" {
		t.Errorf("newest transaction must come first, got %q", got[0].Description)
	}
}

func TestSummaryReflectsSpending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setHouse(t, "h1")

	bid, _ := f.view.AddBudget(ctx, "Groceries", "300")
	f.waitFor(t, func() bool { return len(f.view.Budgets()) == 1 })

	f.view.AddTransaction(ctx, "50", core.Expense, "veggies", bid)
	f.view.AddTransaction(ctx, "1000", core.Income, "salary", "")
	f.waitFor(t, func() bool { return len(f.view.Transactions()) == 2 })

	s := f.view.Summary(time.Now())
	if s.Income.Cents != 100000 || s.Expenses.Cents != 5000 {
		t.Errorf("income/expenses = %s/%s", s.Income, s.Expenses)
	}
	if s.Net.Cents != 95000 {
		t.Errorf("net = %s", s.Net)
	}
	if len(s.Lines) != 1 {
		t.Fatalf("lines = %d", len(s.Lines))
	}
	line := s.Lines[0]
	if line.Spent.Cents != 5000 || line.Remaining.Cents != 25000 {
		t.Errorf("Groceries spent %s remaining %s, want 50.00/250.00", line.Spent, line.Remaining)
	}
}

func TestEditTransactionUpdatesSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setHouse(t, "h1")

	bid, _ := f.view.AddBudget(ctx, "Groceries", "300")
	tid, _ := f.view.AddTransaction(ctx, "50", core.Expense, "veggies", bid)
	f.waitFor(t, func() bool {
		return len(f.view.Budgets()) == 1 && len(f.view.Transactions()) == 1
	})

	if err := f.view.EditTransaction(ctx, tid, "75", "veggies and fruit"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	f.waitFor(t, func() bool {
		txn, ok := f.view.Transaction(tid)
		return ok && txn.Amount.Cents == 7500
	})

	line := f.view.Summary(time.Now()).Lines[0]
	if line.Spent.Cents != 7500 || line.Remaining.Cents != 22500 {
		t.Errorf("spent %s remaining %s, want 75.00/225.00", line.Spent, line.Remaining)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setHouse(t, "h1")

	bid, _ := f.view.AddBudget(ctx, "Groceries", "300")
	f.waitFor(t, func() bool { return len(f.view.Budgets()) == 1 })

	f.refuse = true
	if err := f.view.DeleteBudget(ctx, bid); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("got %v, want ErrNotConfirmed", err)
	}
	if len(f.view.Budgets()) != 1 {
		t.Fatal("refused delete must leave the budget in place")
	}

	f.refuse = false
	if err := f.view.DeleteBudget(ctx, bid); err != nil {
		t.Fatalf("delete: %v", err)
	}
	f.waitFor(t, func() bool { return len(f.view.Budgets()) == 0 })
}

func TestDeleteBudgetLeavesTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setHouse(t, "h1")

	bid, _ := f.view.AddBudget(ctx, "Groceries", "300")
	f.view.AddTransaction(ctx, "50", core.Expense, "veggies", bid)
	f.waitFor(t, func() bool {
		return len(f.view.Budgets()) == 1 && len(f.view.Transactions()) == 1
	})

	f.view.DeleteBudget(ctx, bid)
	f.waitFor(t, func() bool { return len(f.view.Budgets()) == 0 })

	// The orphaned expense still counts toward the month's totals.
	if len(f.view.Transactions()) != 1 {
		t.Fatal("deleting a budget must not delete its transactions")
	}
	s := f.view.Summary(time.Now())
	if s.Expenses.Cents != 5000 || s.SpentTotal.Cents != 5000 {
		t.Errorf("expenses/spent = %s/%s", s.Expenses, s.SpentTotal)
	}
	if len(s.Lines) != 0 {
		t.Errorf("no budgets means no lines, got %d", len(s.Lines))
	}
}

func TestSetHouseClearsMirrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setHouse(t, "h1")

	f.view.AddBudget(ctx, "Groceries", "300")
	f.waitFor(t, func() bool { return len(f.view.Budgets()) == 1 })

	f.setHouse(t, "h2")
	f.waitFor(t, func() bool { return f.view.HouseID() == "h2" })
	if len(f.view.Budgets()) != 0 {
		t.Fatal("switching house must not keep the previous house's budgets")
	}

	f.setHouse(t, "h1")
	f.waitFor(t, func() bool { return len(f.view.Budgets()) == 1 })
}

func TestCloseDetaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setHouse(t, "h1")
	f.view.AddBudget(ctx, "Groceries", "300")
	f.waitFor(t, func() bool { return len(f.view.Budgets()) == 1 })

	f.view.Close()
	if f.view.HouseID() != "" || len(f.view.Budgets()) != 0 {
		t.Fatal("close must detach and clear")
	}
	if _, err := f.view.AddBudget(ctx, "Rent", "800"); !errors.Is(err, ErrNoActiveHouse) {
		t.Fatalf("got %v, want ErrNoActiveHouse", err)
	}
}
