package recurring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/docstore"
)

const dateLayout = "2006-01-02"

// Processor sweeps every house's rules and materializes the due ones as
// transactions. A created transaction and its rule's LastRunAt update are two
// separate writes; if the second fails the rule may fire twice, which beats
// silently losing a rent payment.
type Processor struct {
	store docstore.Store
}

func NewProcessor(store docstore.Store) *Processor {
	return &Processor{store: store}
}

// AddRule stores a rule under the house's recurring collection.
func (p *Processor) AddRule(ctx context.Context, houseID string, r Rule) (string, error) {
	if houseID == "" {
		return "", core.ErrEmptyHouseID
	}
	if err := r.Validate(); err != nil {
		return "", err
	}
	id, err := p.store.Create(ctx, docstore.HouseRecurring(houseID), ruleFields(r))
	if err != nil {
		return "", fmt.Errorf("add rule: %w", err)
	}
	return id, nil
}

// DeleteRule removes a rule. Transactions it already produced are kept.
func (p *Processor) DeleteRule(ctx context.Context, houseID, id string) error {
	if id == "" {
		return core.ErrEmptyDocumentID
	}
	return p.store.Delete(ctx, docstore.HouseRecurring(houseID), id)
}

// Rules reads a house's rules.
func (p *Processor) Rules(ctx context.Context, houseID string) ([]Rule, error) {
	docs, err := docstore.ReadAll(ctx, p.store, docstore.HouseRecurring(houseID),
		docstore.OrderSpec{Field: docstore.CreatedAtField})
	if err != nil {
		return nil, err
	}
	rules := make([]Rule, 0, len(docs))
	for _, doc := range docs {
		rules = append(rules, ruleFromDoc(doc))
	}
	return rules, nil
}

// ProcessAll runs one sweep over every house and returns how many
// transactions were created.
func (p *Processor) ProcessAll(ctx context.Context, now time.Time) (int, error) {
	houses, err := docstore.ReadAll(ctx, p.store, docstore.HousesCollection,
		docstore.OrderSpec{Field: docstore.CreatedAtField})
	if err != nil {
		return 0, err
	}

	total := 0
	for _, h := range houses {
		n, err := p.ProcessHouse(ctx, h.ID, now)
		if err != nil {
			slog.ErrorContext(ctx, "Recurring sweep failed for house", "house_id", h.ID, "error", err)
			continue
		}
		total += n
	}
	slog.InfoContext(ctx, "Recurring sweep complete", "houses", len(houses), "created", total)
	return total, nil
}

// ProcessHouse materializes the house's due rules.
func (p *Processor) ProcessHouse(ctx context.Context, houseID string, now time.Time) (int, error) {
	rules, err := p.Rules(ctx, houseID)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, r := range rules {
		if !r.Due(now) {
			continue
		}

		txn := core.Transaction{
			Amount:         r.Amount,
			Type:           r.Type,
			Description:    r.Description,
			CategoryID:     r.CategoryID,
			CreatedBy:      r.CreatedBy,
			CreatedByEmail: "",
		}
		id, err := p.store.Create(ctx, docstore.HouseTransactions(houseID), map[string]any{
			"amountCents":    txn.Amount.Cents,
			"type":           string(txn.Type),
			"description":    txn.Description,
			"categoryId":     txn.CategoryID,
			"createdBy":      txn.CreatedBy,
			"createdByEmail": txn.CreatedByEmail,
			"recurringId":    r.ID,
		})
		if err != nil {
			slog.ErrorContext(ctx, "Failed to create transaction from rule",
				"house_id", houseID, "rule_id", r.ID, "error", err)
			continue
		}

		if err := p.store.Update(ctx, docstore.HouseRecurring(houseID), r.ID, map[string]any{
			"lastRunAt": now.UTC().Format(time.RFC3339Nano),
		}); err != nil {
			slog.ErrorContext(ctx, "Failed to record rule execution",
				"house_id", houseID, "rule_id", r.ID, "error", err)
		}

		created++
		slog.InfoContext(ctx, "Created transaction from rule",
			"house_id", houseID, "rule_id", r.ID, "transaction_id", id,
			"amount", r.Amount.String(), "frequency", string(r.Frequency))
	}
	return created, nil
}

func ruleFields(r Rule) map[string]any {
	fields := map[string]any{
		"description": r.Description,
		"amountCents": r.Amount.Cents,
		"type":        string(r.Type),
		"categoryId":  r.CategoryID,
		"frequency":   string(r.Frequency),
		"startDate":   r.StartDate.Format(dateLayout),
		"active":      r.Active,
		"createdBy":   r.CreatedBy,
	}
	if !r.EndDate.IsZero() {
		fields["endDate"] = r.EndDate.Format(dateLayout)
	}
	return fields
}

func ruleFromDoc(doc docstore.Doc) Rule {
	r := Rule{
		ID:          doc.ID,
		Description: str(doc.Fields, "description"),
		Amount:      core.Money{Cents: cents(doc.Fields, "amountCents")},
		Type:        core.TransactionType(str(doc.Fields, "type")),
		CategoryID:  str(doc.Fields, "categoryId"),
		Frequency:   Frequency(str(doc.Fields, "frequency")),
		CreatedBy:   str(doc.Fields, "createdBy"),
	}
	if v, ok := doc.Fields["active"].(bool); ok {
		r.Active = v
	}
	if t, err := time.Parse(dateLayout, str(doc.Fields, "startDate")); err == nil {
		r.StartDate = t
	}
	if t, err := time.Parse(dateLayout, str(doc.Fields, "endDate")); err == nil {
		r.EndDate = t
	}
	if t, err := time.Parse(time.RFC3339Nano, str(doc.Fields, "lastRunAt")); err == nil {
		r.LastRunAt = t
	}
	return r
}

func str(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func cents(fields map[string]any, key string) int64 {
	switch n := fields[key].(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}
