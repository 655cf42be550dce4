// Package collection holds the authoritative in-memory list of persons.
// Every mutation is mirrored to the persistence gateway before it becomes
// visible in memory; readers never see a person the store does not have.
package collection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/personstore/personstore/internal/model"
)

// PersonStore is the slice of the persistence gateway the collection
// mutates through.
type PersonStore interface {
	FindAllPersons(ctx context.Context) ([]model.Person, error)
	SavePerson(ctx context.Context, p model.Person) (model.Person, error)
	RemovePersonById(ctx context.Context, id int32) (bool, error)
}

// Collection is the write-through person list. Mutations are serialised;
// Snapshot gives a consistent copy. Clear-all is deliberately unsupported —
// callers scope removals with RemoveWhere.
type Collection struct {
	mu    sync.RWMutex
	items []model.Person
	store PersonStore
}

// Load builds the collection from the store, ordered by id.
func Load(ctx context.Context, store PersonStore) (*Collection, error) {
	items, err := store.FindAllPersons(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading collection: %w", err)
	}
	slog.Info("collection loaded", "size", len(items))
	return &Collection{items: items, store: store}, nil
}

// Snapshot returns a copy of the ordered sequence.
func (c *Collection) Snapshot() []model.Person {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Person, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the current element count.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Add persists the person and appends it. The returned id and creation
// date are store-assigned; the input's are ignored.
func (c *Collection) Add(ctx context.Context, p model.Person) (model.Person, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	saved, err := c.store.SavePerson(ctx, p)
	if err != nil {
		return model.Person{}, err
	}
	c.items = append(c.items, saved)
	slog.Info("person added", "id", saved.Id, "owner", saved.OwnerId)
	return saved, nil
}

// RemoveAt removes the element at index. It returns the removed person, or
// false when the index is out of range.
func (c *Collection) RemoveAt(ctx context.Context, index int) (model.Person, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.items) {
		return model.Person{}, false, nil
	}
	victim := c.items[index]
	if _, err := c.store.RemovePersonById(ctx, victim.Id); err != nil {
		return model.Person{}, false, err
	}
	c.items = append(c.items[:index], c.items[index+1:]...)
	slog.Info("person removed", "id", victim.Id)
	return victim, true, nil
}

// RemoveById removes the person with the given id. It reports whether an
// element was removed.
func (c *Collection) RemoveById(ctx context.Context, id int32) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].Id != id {
			continue
		}
		if _, err := c.store.RemovePersonById(ctx, id); err != nil {
			return false, err
		}
		c.items = append(c.items[:i], c.items[i+1:]...)
		slog.Info("person removed", "id", id)
		return true, nil
	}
	return false, nil
}

// RemoveWhere removes every person the predicate selects. Victims are
// computed on a stable snapshot and deleted from the store in ascending id
// order; memory commits only the deletions that succeeded. It returns the
// number removed; a non-nil error reports the first store failure after
// committing what did succeed.
func (c *Collection) RemoveWhere(ctx context.Context, pred func(*model.Person) bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var victims []int32
	for i := range c.items {
		if pred(&c.items[i]) {
			victims = append(victims, c.items[i].Id)
		}
	}
	// items is id-ordered, so victims already ascend.

	removed := make(map[int32]bool, len(victims))
	var firstErr error
	for _, id := range victims {
		if _, err := c.store.RemovePersonById(ctx, id); err != nil {
			firstErr = err
			break
		}
		removed[id] = true
	}

	if len(removed) > 0 {
		kept := c.items[:0]
		for _, p := range c.items {
			if !removed[p.Id] {
				kept = append(kept, p)
			}
		}
		c.items = kept
		slog.Info("persons removed", "count", len(removed))
	}
	return len(removed), firstErr
}
