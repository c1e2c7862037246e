package trivia

import (
	"context"
	"sync"
)

// Registry tracks which players currently hold a live session. TryAcquire
// must be atomic per player, and implementations must not serialize
// unrelated players behind one global lock.
type Registry interface {
	// TryAcquire inserts playerID if absent and reports whether it did.
	TryAcquire(ctx context.Context, playerID string) (bool, error)
	// Release removes playerID. Removing an absent player is a no-op.
	Release(ctx context.Context, playerID string) error
	// Contains reports membership without modifying the set.
	Contains(ctx context.Context, playerID string) (bool, error)
	// Snapshot lists every active player, used for broadcast-on-shutdown.
	Snapshot(ctx context.Context) ([]string, error)
}

// MemoryRegistry keeps the active-player set in process memory. sync.Map
// gives per-key atomicity on LoadOrStore, so admitting one player never
// blocks another.
type MemoryRegistry struct {
	players sync.Map // playerID -> struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{}
}

func (r *MemoryRegistry) TryAcquire(_ context.Context, playerID string) (bool, error) {
	_, loaded := r.players.LoadOrStore(playerID, struct{}{})
	return !loaded, nil
}

func (r *MemoryRegistry) Release(_ context.Context, playerID string) error {
	r.players.Delete(playerID)
	return nil
}

func (r *MemoryRegistry) Contains(_ context.Context, playerID string) (bool, error) {
	_, ok := r.players.Load(playerID)
	return ok, nil
}

func (r *MemoryRegistry) Snapshot(_ context.Context) ([]string, error) {
	var ids []string
	r.players.Range(func(key, _ any) bool {
		ids = append(ids, key.(string))
		return true
	})
	return ids, nil
}
