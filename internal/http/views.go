package http

import (
	"strconv"
	"sync"
	"sync/atomic"

	"bilancio/internal/docstore"
	"bilancio/internal/viewmodel"

	"bilancio/internal/core"
)

// viewRegistry holds one live view per (user, house) pair. Views stay
// attached between requests so a dashboard reload does not resubscribe.
// Each snapshot bumps the house's generation; cached summaries embed the
// generation in their key, so a stale computation can never shadow newer
// data.
type viewRegistry struct {
	store docstore.Store

	mu          sync.Mutex
	views       map[string]*viewmodel.View
	generations map[string]*atomic.Int64
}

func newViewRegistry(store docstore.Store) *viewRegistry {
	return &viewRegistry{
		store:       store,
		views:       make(map[string]*viewmodel.View),
		generations: make(map[string]*atomic.Int64),
	}
}

func (vr *viewRegistry) get(user core.User, houseID string) (*viewmodel.View, error) {
	key := user.ID + "|" + houseID

	vr.mu.Lock()
	if v, ok := vr.views[key]; ok {
		vr.mu.Unlock()
		return v, nil
	}
	gen := vr.generationLocked(houseID)
	vr.mu.Unlock()

	// Browser dialogs confirm deletes before the request is sent, so the
	// view's own confirmation step always approves.
	v := viewmodel.New(vr.store, user, nil, func() {
		gen.Add(1)
	})
	if err := v.SetHouse(houseID); err != nil {
		return nil, err
	}

	vr.mu.Lock()
	if existing, ok := vr.views[key]; ok {
		// Another request attached first.
		vr.mu.Unlock()
		v.Close()
		return existing, nil
	}
	vr.views[key] = v
	vr.mu.Unlock()
	return v, nil
}

// generation returns a cache key fragment that changes whenever any view of
// the house applies a new snapshot.
func (vr *viewRegistry) generation(houseID string) string {
	vr.mu.Lock()
	gen := vr.generationLocked(houseID)
	vr.mu.Unlock()
	return strconv.FormatInt(gen.Load(), 10)
}

func (vr *viewRegistry) generationLocked(houseID string) *atomic.Int64 {
	gen, ok := vr.generations[houseID]
	if !ok {
		gen = &atomic.Int64{}
		vr.generations[houseID] = gen
	}
	return gen
}

// dropUser closes every view held for the user, for sign-out.
func (vr *viewRegistry) dropUser(userID string) {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	for key, v := range vr.views {
		if len(key) > len(userID) && key[:len(userID)+1] == userID+"|" {
			v.Close()
			delete(vr.views, key)
		}
	}
}

func (vr *viewRegistry) closeAll() {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	for key, v := range vr.views {
		v.Close()
		delete(vr.views, key)
	}
}
