package work

import (
	"sync"

	"github.com/changelog-weaver/weaver/internal/workitem"
)

// Store is the identity-keyed index of every item known to a run. Insertion
// is idempotent and iteration follows insertion order.
type Store struct {
	mu    sync.RWMutex
	byID  map[int64]*workitem.Node
	order []*workitem.Node
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[int64]*workitem.Node)}
}

// Add stores a copy of item unless its identity is already present, and
// returns the stored node. A duplicate leaves the existing entry untouched.
func (s *Store) Add(item *workitem.Item) *workitem.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byID[item.ID]; ok {
		return n
	}
	return s.insert(workitem.NewNode(*item))
}

// AddNode stores n itself unless its identity is already present, and
// returns the stored node. Used for nodes that already belong to a tree.
func (s *Store) AddNode(n *workitem.Node) *workitem.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byID[n.ID]; ok {
		return existing
	}
	return s.insert(n)
}

func (s *Store) insert(n *workitem.Node) *workitem.Node {
	s.byID[n.ID] = n
	s.order = append(s.order, n)
	return n
}

// Get returns the node stored under id.
func (s *Store) Get(id int64) (*workitem.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[id]
	return n, ok
}

// Contains reports whether id is stored.
func (s *Store) Contains(id int64) bool {
	_, ok := s.Get(id)
	return ok
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// All returns a snapshot of the stored nodes in insertion order.
func (s *Store) All() []*workitem.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*workitem.Node(nil), s.order...)
}
