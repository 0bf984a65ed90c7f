package lru

import (
	"github.com/pkg/errors"

	"github.com/outofforest/scm/types"
)

// Policy selects the eviction policy of the set.
type Policy string

// Eviction policies.
const (
	// PolicyList evicts the least recently used page.
	PolicyList Policy = "list"

	// PolicySplay evicts the structurally deepest page of the splay tree.
	PolicySplay Policy = "splay"
)

// Entry is the resident page.
type Entry struct {
	Page  types.Page
	Layer types.Layer

	// Frame is the frame when page was assigned to its layer.
	Frame types.Frame

	// Touched is the frame of the last search.
	Touched types.Frame
}

// Set stores at most one entry per page.
type Set interface {
	// Search returns the entry of the page and marks it as recently used.
	Search(page types.Page, frame types.Frame) (Entry, bool)

	// Contains returns true if page exists in the set. Recency is not affected.
	Contains(page types.Page) bool

	// Insert inserts the entry. If page already exists its entry is kept and only marked as recently used,
	// false is returned then. Inserting new page into full set panics.
	Insert(entry Entry, frame types.Frame) bool

	// Remove removes the entry of the page.
	Remove(page types.Page) (Entry, bool)

	// Eject removes the entry selected for eviction.
	Eject() (Entry, bool)

	Count() uint64
	Capacity() uint64
	Full() bool
	Empty() bool

	// Entries iterates over entries. Order depends on the policy.
	Entries() func(func(Entry) bool)
}

// New creates set using the policy.
func New(policy Policy, capacity uint64) (Set, error) {
	if capacity == 0 {
		return nil, errors.New("capacity must be positive")
	}

	switch policy {
	case PolicyList:
		return NewList(capacity)
	case PolicySplay:
		return NewSplay(capacity), nil
	default:
		return nil, errors.Errorf("unknown eviction policy %q", policy)
	}
}
