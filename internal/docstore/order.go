package docstore

import (
	"sort"
	"strings"
	"time"
)

// SortDocs orders a snapshot in place. Both store
// implementations sort through this function so ordering semantics are
// identical regardless of backend. Ties break on document ID to keep
// snapshots stable across deliveries.
func SortDocs(docs []Doc, order OrderSpec) {
	sort.SliceStable(docs, func(i, j int) bool {
		c := compareDocs(docs[i], docs[j], order.Field)
		if c == 0 {
			c = strings.Compare(docs[i].ID, docs[j].ID)
		}
		if order.Desc {
			return c > 0
		}
		return c < 0
	})
}

func compareDocs(a, b Doc, field string) int {
	if field == "" || field == CreatedAtField {
		return compareTimes(a.CreatedAt, b.CreatedAt)
	}
	return compareValues(a.Fields[field], b.Fields[field])
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// compareValues handles the value kinds that survive a JSON round trip.
// Missing fields sort first so documents lacking the order field stay
// grouped at one end rather than interleaving.
func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case float64:
		if bv, ok := toFloat(b); ok {
			return compareFloats(av, bv)
		}
	case int64:
		if bv, ok := toFloat(b); ok {
			return compareFloats(float64(av), bv)
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return compareTimes(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			if av == bv {
				return 0
			}
			if !av {
				return -1
			}
			return 1
		}
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
