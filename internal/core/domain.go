package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	// TransactionType distinguishes money coming into the house from money
	// going out.
	TransactionType string

	// User is the identity-provider view of a person. It is referenced by
	// houses and transactions but never mutated by the budgeting flows.
	User struct {
		ID           string
		Email        string
		DisplayName  string
		PasswordHash string
		CreatedAt    time.Time
	}

	// House is a shared budgeting workspace. Members are user IDs; the list
	// only ever grows and a house is never deleted by this app.
	House struct {
		ID        string
		Name      string
		CreatedAt time.Time
		Members   []string
	}

	// Budget is a planned spending category scoped under exactly one house.
	// Any member may edit or delete it; there is no ownership restriction.
	Budget struct {
		ID             string
		Name           string
		Planned        Money
		CreatedAt      time.Time
		CreatedBy      string
		CreatedByEmail string
	}

	// Transaction is a single income or expense record. CategoryID is a weak
	// reference to a Budget in the same house: deleting the Budget leaves it
	// dangling and the category renders as blank.
	Transaction struct {
		ID             string
		Amount         Money
		Type           TransactionType
		Description    string
		CategoryID     string
		CreatedBy      string
		CreatedByEmail string
		CreatedAt      time.Time
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidType     = errors.New("transaction type must be income or expense")
	ErrEmptyName       = errors.New("empty name")
	ErrEmptyHouseID    = errors.New("empty house id")
	ErrHouseNotFound   = errors.New("house not found")
	ErrEmptyDocumentID = errors.New("empty document id")
)

// Valid reports whether the transaction type is one of the two known kinds.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (h House) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// HasMember reports whether the user is already on the membership list.
func (h House) HasMember(userID string) bool {
	for _, m := range h.Members {
		if m == userID {
			return true
		}
	}
	return false
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	return b.Planned.Validate()
}

// Remaining returns planned minus spent for this budget.
func (b Budget) Remaining(spent Money) Money {
	return b.Planned.Sub(spent)
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}
