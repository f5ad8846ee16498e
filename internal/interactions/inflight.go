package interactions

import (
	"sync"
)

// ActionKind identifies one optimistic interaction family.
type ActionKind string

const (
	ActionLike   ActionKind = "like"
	ActionSave   ActionKind = "save"
	ActionFollow ActionKind = "follow"
)

type inflightKey struct {
	viewerID string
	kind     ActionKind
	targetID string
}

// inflightSet serializes durable mutations per (viewer, action, target). The
// entry is claimed synchronously before any asynchronous work starts, so two
// rapid taps cannot both reach the store.
type inflightSet struct {
	mu   sync.Mutex
	keys map[inflightKey]struct{}
}

func newInflightSet() *inflightSet {
	return &inflightSet{keys: make(map[inflightKey]struct{})}
}

// TryAcquire claims the key, reporting false when it is already held.
func (s *inflightSet) TryAcquire(k inflightKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.keys[k]; held {
		return false
	}
	s.keys[k] = struct{}{}
	return true
}

func (s *inflightSet) Release(k inflightKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, k)
}
