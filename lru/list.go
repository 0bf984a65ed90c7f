package lru

import (
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/pkg/errors"

	"github.com/outofforest/scm/types"
)

var _ Set = &List{}

// NewList creates set evicting the least recently used page.
func NewList(capacity uint64) (*List, error) {
	l, err := simplelru.NewLRU[types.Page, Entry](int(capacity), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &List{
		lru:      l,
		capacity: capacity,
	}, nil
}

// List keeps pages in recency list indexed by hash map.
type List struct {
	lru      *simplelru.LRU[types.Page, Entry]
	capacity uint64
}

// Search returns the entry of the page and moves it to the front of the list.
func (l *List) Search(page types.Page, frame types.Frame) (Entry, bool) {
	e, exists := l.lru.Get(page)
	if !exists {
		return Entry{}, false
	}
	e.Touched = frame
	l.lru.Add(page, e)
	return e, true
}

// Contains returns true if page exists in the set.
func (l *List) Contains(page types.Page) bool {
	return l.lru.Contains(page)
}

// Insert inserts the entry at the front of the list.
func (l *List) Insert(entry Entry, frame types.Frame) bool {
	if _, exists := l.Search(entry.Page, frame); exists {
		return false
	}
	if l.Full() {
		panic("inserting into full set")
	}
	entry.Touched = frame
	l.lru.Add(entry.Page, entry)
	return true
}

// Remove removes the entry of the page.
func (l *List) Remove(page types.Page) (Entry, bool) {
	e, exists := l.lru.Peek(page)
	if !exists {
		return Entry{}, false
	}
	l.lru.Remove(page)
	return e, true
}

// Eject removes the least recently used entry.
func (l *List) Eject() (Entry, bool) {
	_, e, exists := l.lru.RemoveOldest()
	return e, exists
}

// Count returns the number of entries.
func (l *List) Count() uint64 {
	return uint64(l.lru.Len())
}

// Capacity returns the maximum number of entries.
func (l *List) Capacity() uint64 {
	return l.capacity
}

// Full returns true if no more entries can be inserted.
func (l *List) Full() bool {
	return l.Count() == l.capacity
}

// Empty returns true if there are no entries.
func (l *List) Empty() bool {
	return l.lru.Len() == 0
}

// Entries iterates over entries from the least to the most recently used one.
func (l *List) Entries() func(func(Entry) bool) {
	return func(yield func(Entry) bool) {
		for _, page := range l.lru.Keys() {
			e, _ := l.lru.Peek(page)
			if !yield(e) {
				return
			}
		}
	}
}
