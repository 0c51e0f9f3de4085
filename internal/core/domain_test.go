package core

import (
	"errors"
	"testing"
	"time"
)

func TestTransactionTypeValid(t *testing.T) {
	if !Income.Valid() || !Expense.Valid() {
		t.Fatal("income and expense must be valid types")
	}
	if TransactionType("transfer").Valid() {
		t.Fatal("unknown type must be invalid")
	}
}

func TestHouseValidate(t *testing.T) {
	if err := (House{Name: "Our Home"}).Validate(); err != nil {
		t.Fatalf("valid house rejected: %v", err)
	}
	if err := (House{Name: "   "}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("blank name: got %v, want ErrEmptyName", err)
	}
}

func TestHouseHasMember(t *testing.T) {
	h := House{Members: []string{"u1", "u2"}}
	if !h.HasMember("u2") {
		t.Error("u2 should be a member")
	}
	if h.HasMember("u3") {
		t.Error("u3 should not be a member")
	}
}

func TestBudgetValidate(t *testing.T) {
	b := Budget{Name: "Groceries", Planned: Money{Cents: 30000}}
	if err := b.Validate(); err != nil {
		t.Fatalf("valid budget rejected: %v", err)
	}
	if err := (Budget{Planned: Money{Cents: 100}}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("missing name: got %v", err)
	}
	if err := (Budget{Name: "x"}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("missing planned: got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	txn := Transaction{Amount: Money{Cents: 5000}, Type: Expense, CreatedAt: time.Now()}
	if err := txn.Validate(); err != nil {
		t.Fatalf("valid transaction rejected: %v", err)
	}

	txn.Type = "refund"
	if err := txn.Validate(); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("bad type: got %v", err)
	}

	txn.Type = Income
	txn.Amount = Money{}
	if err := txn.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("missing amount: got %v", err)
	}
}
