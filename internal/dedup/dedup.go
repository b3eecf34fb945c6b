// Package dedup remembers which message ids have been admitted into a
// session's history so that each identified message is admitted at most once.
package dedup

// Store is the set of admitted message ids for one session. The set only
// grows while the session lives; Reset ends the scope.
type Store interface {
	MarkSeen(id string)
	HasSeen(id string) bool
	Reset()
}

// Set is an in-memory Store. It is not safe for concurrent use; the session
// engine serializes access.
type Set struct {
	ids map[string]struct{}
}

// NewSet creates an empty in-memory Store.
func NewSet() *Set {
	return &Set{ids: make(map[string]struct{})}
}

// MarkSeen records id as admitted. Empty ids are ignored.
func (s *Set) MarkSeen(id string) {
	if id == "" {
		return
	}
	s.ids[id] = struct{}{}
}

// HasSeen reports whether id was admitted. The empty id is never seen.
func (s *Set) HasSeen(id string) bool {
	if id == "" {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// Reset forgets every id.
func (s *Set) Reset() {
	s.ids = make(map[string]struct{})
}
