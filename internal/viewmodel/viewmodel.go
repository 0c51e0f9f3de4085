// Package viewmodel keeps a live mirror of one house's budgets and
// transactions and exposes the mutations the dashboard needs. The mirror is
// fed exclusively by store snapshots: a write becomes visible only once the
// store delivers the snapshot that contains it, never by local patching.
package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/docstore"
)

var (
	ErrNoActiveHouse = errors.New("no active house selected")
	ErrNotConfirmed  = errors.New("delete not confirmed")
)

// ConfirmFunc answers whether a destructive operation may proceed. It is
// consulted before every delete.
type ConfirmFunc func(prompt string) bool

// NotifyFunc is invoked after every applied snapshot, with no locks held.
type NotifyFunc func()

// View is the per-session state behind the dashboard. It is safe for
// concurrent use; a nil house means no subscriptions and no data.
type View struct {
	store   docstore.Store
	user    core.User
	confirm ConfirmFunc
	notify  NotifyFunc

	mu        sync.Mutex
	houseID   string
	budgets   []core.Budget
	txns      []core.Transaction
	budgetSub docstore.Subscription
	txnSub    docstore.Subscription
}

// New builds a view for the given user. confirm may be nil when the caller
// performs its own confirmation before issuing deletes; notify may be nil.
func New(store docstore.Store, user core.User, confirm ConfirmFunc, notify NotifyFunc) *View {
	if confirm == nil {
		confirm = func(string) bool { return true }
	}
	if notify == nil {
		notify = func() {}
	}
	return &View{store: store, user: user, confirm: confirm, notify: notify}
}

// SetHouse switches the active house. Old subscriptions are torn down and the
// mirrors cleared before the new ones attach, so stale rows never bleed into
// the next house's data. An empty id just detaches.
func (v *View) SetHouse(houseID string) error {
	v.mu.Lock()
	v.detachLocked()
	v.houseID = houseID
	v.mu.Unlock()

	if houseID == "" {
		v.notify()
		return nil
	}

	budgetSub, err := v.store.Subscribe(docstore.HouseBudgets(houseID),
		docstore.OrderSpec{Field: "name"}, v.applyBudgets)
	if err != nil {
		return fmt.Errorf("subscribe budgets: %w", err)
	}

	txnSub, err := v.store.Subscribe(docstore.HouseTransactions(houseID),
		docstore.OrderSpec{Field: docstore.CreatedAtField, Desc: true}, v.applyTransactions)
	if err != nil {
		budgetSub.Unsubscribe()
		return fmt.Errorf("subscribe transactions: %w", err)
	}

	v.mu.Lock()
	if v.houseID != houseID {
		// Lost a race with a concurrent SetHouse; the newer call wins.
		v.mu.Unlock()
		budgetSub.Unsubscribe()
		txnSub.Unsubscribe()
		return nil
	}
	v.budgetSub = budgetSub
	v.txnSub = txnSub
	v.mu.Unlock()
	return nil
}

// HouseID returns the active house, or "" when detached.
func (v *View) HouseID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.houseID
}

// Close detaches from the store. The view can be reused with SetHouse.
func (v *View) Close() {
	v.mu.Lock()
	v.detachLocked()
	v.houseID = ""
	v.mu.Unlock()
}

func (v *View) detachLocked() {
	if v.budgetSub != nil {
		v.budgetSub.Unsubscribe()
		v.budgetSub = nil
	}
	if v.txnSub != nil {
		v.txnSub.Unsubscribe()
		v.txnSub = nil
	}
	v.budgets = nil
	v.txns = nil
}

func (v *View) applyBudgets(docs []docstore.Doc) {
	budgets := make([]core.Budget, 0, len(docs))
	for _, doc := range docs {
		budgets = append(budgets, budgetFromDoc(doc))
	}
	v.mu.Lock()
	v.budgets = budgets
	v.mu.Unlock()
	v.notify()
}

func (v *View) applyTransactions(docs []docstore.Doc) {
	txns := make([]core.Transaction, 0, len(docs))
	for _, doc := range docs {
		txns = append(txns, transactionFromDoc(doc))
	}
	v.mu.Lock()
	v.txns = txns
	v.mu.Unlock()
	v.notify()
}

// Budgets returns the mirrored budget list, ordered by name.
func (v *View) Budgets() []core.Budget {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]core.Budget(nil), v.budgets...)
}

// Transactions returns the mirrored transaction list, newest first.
func (v *View) Transactions() []core.Transaction {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]core.Transaction(nil), v.txns...)
}

// Budget looks up a mirrored budget by id.
func (v *View) Budget(id string) (core.Budget, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, b := range v.budgets {
		if b.ID == id {
			return b, true
		}
	}
	return core.Budget{}, false
}

// Transaction looks up a mirrored transaction by id.
func (v *View) Transaction(id string) (core.Transaction, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range v.txns {
		if t.ID == id {
			return t, true
		}
	}
	return core.Transaction{}, false
}

// Summary derives the rollup for the month containing now from the current
// mirrors. It is a pure read; two calls between snapshots return equal values.
func (v *View) Summary(now time.Time) core.MonthSummary {
	v.mu.Lock()
	budgets := v.budgets
	txns := v.txns
	v.mu.Unlock()
	return core.Summarize(budgets, txns, now)
}

// AddBudget creates a budget category. planned is the raw user input and is
// parsed and validated here; nothing invalid reaches the store.
func (v *View) AddBudget(ctx context.Context, name, planned string) (string, error) {
	houseID, err := v.activeHouse()
	if err != nil {
		return "", err
	}

	amount, err := core.ParseMoney(planned)
	if err != nil {
		return "", err
	}
	b := core.Budget{
		Name:           strings.TrimSpace(name),
		Planned:        amount,
		CreatedBy:      v.user.ID,
		CreatedByEmail: v.user.Email,
	}
	if err := b.Validate(); err != nil {
		return "", err
	}

	id, err := v.store.Create(ctx, docstore.HouseBudgets(houseID), budgetFields(b))
	if err != nil {
		return "", fmt.Errorf("add budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget created", "house_id", houseID, "budget_id", id, "name", b.Name)
	return id, nil
}

// EditBudget replaces a budget's name and planned amount.
func (v *View) EditBudget(ctx context.Context, id, name, planned string) error {
	houseID, err := v.activeHouse()
	if err != nil {
		return err
	}
	if id == "" {
		return core.ErrEmptyDocumentID
	}

	amount, err := core.ParseMoney(planned)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyName
	}

	if err := v.store.Update(ctx, docstore.HouseBudgets(houseID), id, map[string]any{
		"name":         name,
		"plannedCents": amount.Cents,
	}); err != nil {
		return fmt.Errorf("edit budget: %w", err)
	}
	return nil
}

// DeleteBudget removes a budget after confirmation. Transactions that pointed
// at it are kept and simply become uncategorized.
func (v *View) DeleteBudget(ctx context.Context, id string) error {
	houseID, err := v.activeHouse()
	if err != nil {
		return err
	}
	if id == "" {
		return core.ErrEmptyDocumentID
	}
	if !v.confirm("Delete this budget? Its transactions are kept but lose their category.") {
		return ErrNotConfirmed
	}

	if err := v.store.Delete(ctx, docstore.HouseBudgets(houseID), id); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget deleted", "house_id", houseID, "budget_id", id)
	return nil
}

// AddTransaction records an income or expense. categoryID may be empty; for
// expenses it should reference a budget, but a dangling reference is allowed
// and only affects how the rollup groups the amount.
func (v *View) AddTransaction(ctx context.Context, amount string, typ core.TransactionType, description, categoryID string) (string, error) {
	houseID, err := v.activeHouse()
	if err != nil {
		return "", err
	}

	money, err := core.ParseMoney(amount)
	if err != nil {
		return "", err
	}
	txn := core.Transaction{
		Amount:         money,
		Type:           typ,
		Description:    strings.TrimSpace(description),
		CategoryID:     categoryID,
		CreatedBy:      v.user.ID,
		CreatedByEmail: v.user.Email,
	}
	if err := txn.Validate(); err != nil {
		return "", err
	}

	id, err := v.store.Create(ctx, docstore.HouseTransactions(houseID), transactionFields(txn))
	if err != nil {
		return "", fmt.Errorf("add transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction recorded", "house_id", houseID, "transaction_id", id,
		"type", string(typ), "amount", money.String())
	return id, nil
}

// EditTransaction updates a transaction's amount and description. Type and
// category are fixed at creation time.
func (v *View) EditTransaction(ctx context.Context, id, amount, description string) error {
	houseID, err := v.activeHouse()
	if err != nil {
		return err
	}
	if id == "" {
		return core.ErrEmptyDocumentID
	}

	money, err := core.ParseMoney(amount)
	if err != nil {
		return err
	}

	if err := v.store.Update(ctx, docstore.HouseTransactions(houseID), id, map[string]any{
		"amountCents": money.Cents,
		"description": strings.TrimSpace(description),
	}); err != nil {
		return fmt.Errorf("edit transaction: %w", err)
	}
	return nil
}

// DeleteTransaction removes a transaction after confirmation.
func (v *View) DeleteTransaction(ctx context.Context, id string) error {
	houseID, err := v.activeHouse()
	if err != nil {
		return err
	}
	if id == "" {
		return core.ErrEmptyDocumentID
	}
	if !v.confirm("Delete this transaction?") {
		return ErrNotConfirmed
	}

	if err := v.store.Delete(ctx, docstore.HouseTransactions(houseID), id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "house_id", houseID, "transaction_id", id)
	return nil
}

func (v *View) activeHouse() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.houseID == "" {
		return "", ErrNoActiveHouse
	}
	return v.houseID, nil
}
