// Package house manages house records and their membership lists. Anyone who
// obtains a house ID may join it and gains full read/write over the house's
// budgets and transactions; there is no further authorization model.
package house

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/docstore"
)

type Manager struct {
	store docstore.Store
}

func NewManager(store docstore.Store) *Manager {
	return &Manager{store: store}
}

// CreateHouse creates a house with the caller as sole member and returns the
// new identifier for the caller to keep as active house context.
func (m *Manager) CreateHouse(ctx context.Context, name string, user core.User) (string, error) {
	h := core.House{Name: strings.TrimSpace(name), Members: []string{user.ID}}
	if err := h.Validate(); err != nil {
		return "", err
	}

	id, err := m.store.Create(ctx, docstore.HousesCollection, map[string]any{
		"name":    h.Name,
		"members": h.Members,
	})
	if err != nil {
		return "", fmt.Errorf("create house: %w", err)
	}

	slog.InfoContext(ctx, "House created", "house_id", id, "name", h.Name, "created_by", user.ID)
	return id, nil
}

// JoinHouse adds the user to an existing house's membership list. Rejoining
// is a no-op: the member set is an idempotent union.
func (m *Manager) JoinHouse(ctx context.Context, houseID string, user core.User) (string, error) {
	houseID = strings.TrimSpace(houseID)
	if houseID == "" {
		return "", core.ErrEmptyHouseID
	}

	h, err := m.GetHouse(ctx, houseID)
	if err != nil {
		return "", err
	}

	if h.HasMember(user.ID) {
		return houseID, nil
	}

	members := append(h.Members, user.ID)
	if err := m.store.Update(ctx, docstore.HousesCollection, houseID, map[string]any{
		"members": members,
	}); err != nil {
		return "", fmt.Errorf("join house: %w", err)
	}

	slog.InfoContext(ctx, "User joined house", "house_id", houseID, "user_id", user.ID, "members", len(members))
	return houseID, nil
}

// GetHouse reads a single house record.
func (m *Manager) GetHouse(ctx context.Context, houseID string) (core.House, error) {
	doc, err := m.store.GetOnce(ctx, docstore.HousesCollection, houseID)
	if errors.Is(err, docstore.ErrNotFound) {
		return core.House{}, core.ErrHouseNotFound
	}
	if err != nil {
		return core.House{}, fmt.Errorf("get house: %w", err)
	}
	return houseFromDoc(doc), nil
}

func houseFromDoc(doc docstore.Doc) core.House {
	name, _ := doc.Fields["name"].(string)
	return core.House{
		ID:        doc.ID,
		Name:      name,
		CreatedAt: doc.CreatedAt,
		Members:   memberList(doc.Fields["members"]),
	}
}

// memberList tolerates both the in-memory representation ([]string) and the
// JSON round-tripped one ([]any).
func memberList(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, m := range list {
			if s, ok := m.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
