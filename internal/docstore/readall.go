package docstore

import (
	"context"
	"fmt"
)

// ReadAll takes a single snapshot of a collection and detaches. It is the
// one-shot counterpart of Subscribe for batch work that has no use for a
// long-lived subscription.
func ReadAll(ctx context.Context, store Store, collection string, order OrderSpec) ([]Doc, error) {
	done := make(chan []Doc, 1)
	first := true

	sub, err := store.Subscribe(collection, order, func(docs []Doc) {
		if first {
			first = false
			done <- docs
		}
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	defer sub.Unsubscribe()

	select {
	case docs := <-done:
		return docs, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
