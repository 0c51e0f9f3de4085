package viewmodel

import (
	"bilancio/internal/core"
	"bilancio/internal/docstore"
)

// Document field codecs. Numbers survive a JSON round trip as float64, so
// the readers accept every numeric kind a snapshot can carry.

func budgetFromDoc(doc docstore.Doc) core.Budget {
	return core.Budget{
		ID:             doc.ID,
		Name:           stringField(doc.Fields, "name"),
		Planned:        core.Money{Cents: centsField(doc.Fields, "plannedCents")},
		CreatedAt:      doc.CreatedAt,
		CreatedBy:      stringField(doc.Fields, "createdBy"),
		CreatedByEmail: stringField(doc.Fields, "createdByEmail"),
	}
}

func transactionFromDoc(doc docstore.Doc) core.Transaction {
	return core.Transaction{
		ID:             doc.ID,
		Amount:         core.Money{Cents: centsField(doc.Fields, "amountCents")},
		Type:           core.TransactionType(stringField(doc.Fields, "type")),
		Description:    stringField(doc.Fields, "description"),
		CategoryID:     stringField(doc.Fields, "categoryId"),
		CreatedBy:      stringField(doc.Fields, "createdBy"),
		CreatedByEmail: stringField(doc.Fields, "createdByEmail"),
		CreatedAt:      doc.CreatedAt,
	}
}

func budgetFields(b core.Budget) map[string]any {
	return map[string]any{
		"name":           b.Name,
		"plannedCents":   b.Planned.Cents,
		"createdBy":      b.CreatedBy,
		"createdByEmail": b.CreatedByEmail,
	}
}

func transactionFields(t core.Transaction) map[string]any {
	return map[string]any{
		"amountCents":    t.Amount.Cents,
		"type":           string(t.Type),
		"description":    t.Description,
		"categoryId":     t.CategoryID,
		"createdBy":      t.CreatedBy,
		"createdByEmail": t.CreatedByEmail,
	}
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func centsField(fields map[string]any, key string) int64 {
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
