package lru

import (
	"github.com/outofforest/scm/types"
)

var _ Set = &Splay{}

type node struct {
	entry               Entry
	left, right, parent *node

	// height of the subtree rooted at the node, leaf has height 1.
	height uint64
}

func (n *node) update() {
	n.height = 1 + max(heightOf(n.left), heightOf(n.right))
}

func heightOf(n *node) uint64 {
	if n == nil {
		return 0
	}
	return n.height
}

// NewSplay creates set evicting the deepest page of the splay tree.
func NewSplay(capacity uint64) *Splay {
	nodes := make([]node, capacity)
	free := make([]*node, 0, capacity)
	for i := range nodes {
		free = append(free, &nodes[len(nodes)-1-i])
	}
	return &Splay{
		free:     free,
		capacity: capacity,
	}
}

// Splay is the self-adjusting binary search tree ordered by page. Searched and inserted pages are splayed to the
// root, so pages not used recently sink and the deepest one is ejected first.
type Splay struct {
	root     *node
	free     []*node
	count    uint64
	capacity uint64
}

// Search returns the entry of the page and splays it to the root.
func (s *Splay) Search(page types.Page, frame types.Frame) (Entry, bool) {
	n := s.find(page)
	if n == nil {
		return Entry{}, false
	}
	n.entry.Touched = frame
	s.splay(n)
	return n.entry, true
}

// Contains returns true if page exists in the set. Tree is not restructured.
func (s *Splay) Contains(page types.Page) bool {
	return s.find(page) != nil
}

// Insert inserts the entry and splays it to the root.
func (s *Splay) Insert(entry Entry, frame types.Frame) bool {
	var parent *node
	link := &s.root
	for *link != nil {
		parent = *link
		switch {
		case entry.Page.Less(parent.entry.Page):
			link = &parent.left
		case parent.entry.Page.Less(entry.Page):
			link = &parent.right
		default:
			parent.entry.Touched = frame
			s.splay(parent)
			return false
		}
	}

	if s.Full() {
		panic("inserting into full set")
	}

	n := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	entry.Touched = frame
	*n = node{
		entry:  entry,
		parent: parent,
		height: 1,
	}
	*link = n
	s.count++

	s.splay(n)
	return true
}

// Remove removes the entry of the page.
func (s *Splay) Remove(page types.Page) (Entry, bool) {
	n := s.find(page)
	if n == nil {
		return Entry{}, false
	}
	entry := n.entry

	if n.left != nil && n.right != nil {
		successor := n.right
		for successor.left != nil {
			successor = successor.left
		}
		n.entry = successor.entry
		n = successor
	}
	s.unlink(n)

	return entry, true
}

// Eject removes the deepest entry. Path to it is chosen by subtree heights and the tree is not restructured.
func (s *Splay) Eject() (Entry, bool) {
	n := s.root
	if n == nil {
		return Entry{}, false
	}

	for {
		switch {
		case n.left == nil && n.right == nil:
			entry := n.entry
			s.unlink(n)
			return entry, true
		case heightOf(n.left) >= heightOf(n.right):
			n = n.left
		default:
			n = n.right
		}
	}
}

// Count returns the number of entries.
func (s *Splay) Count() uint64 {
	return s.count
}

// Capacity returns the maximum number of entries.
func (s *Splay) Capacity() uint64 {
	return s.capacity
}

// Full returns true if no more entries can be inserted.
func (s *Splay) Full() bool {
	return s.count == s.capacity
}

// Empty returns true if there are no entries.
func (s *Splay) Empty() bool {
	return s.count == 0
}

// Height returns the height of the tree.
func (s *Splay) Height() uint64 {
	return heightOf(s.root)
}

// Entries iterates over entries in page order.
func (s *Splay) Entries() func(func(Entry) bool) {
	return func(yield func(Entry) bool) {
		stack := make([]*node, 0, s.Height())
		n := s.root
		for n != nil || len(stack) > 0 {
			for n != nil {
				stack = append(stack, n)
				n = n.left
			}
			n = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(n.entry) {
				return
			}
			n = n.right
		}
	}
}

func (s *Splay) find(page types.Page) *node {
	n := s.root
	for n != nil {
		switch {
		case page.Less(n.entry.Page):
			n = n.left
		case n.entry.Page.Less(page):
			n = n.right
		default:
			return n
		}
	}
	return nil
}

// unlink removes node having at most one child.
func (s *Splay) unlink(n *node) {
	child := n.left
	if child == nil {
		child = n.right
	}
	parent := n.parent
	if child != nil {
		child.parent = parent
	}
	s.replace(parent, n, child)

	for p := parent; p != nil; p = p.parent {
		p.update()
	}

	*n = node{}
	s.free = append(s.free, n)
	s.count--
}

func (s *Splay) replace(parent, old, n *node) {
	switch {
	case parent == nil:
		s.root = n
	case parent.left == old:
		parent.left = n
	default:
		parent.right = n
	}
}

func (s *Splay) splay(x *node) {
	for x.parent != nil {
		p := x.parent
		if g := p.parent; g != nil {
			if (g.left == p) == (p.left == x) {
				s.rotate(p)
			} else {
				s.rotate(x)
			}
		}
		s.rotate(x)
	}
}

// rotate lifts x above its parent.
func (s *Splay) rotate(x *node) {
	p := x.parent
	g := p.parent

	if p.left == x {
		p.left = x.right
		if x.right != nil {
			x.right.parent = p
		}
		x.right = p
	} else {
		p.right = x.left
		if x.left != nil {
			x.left.parent = p
		}
		x.left = p
	}
	p.parent = x
	x.parent = g
	s.replace(g, p, x)

	p.update()
	x.update()
}
