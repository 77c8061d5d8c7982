package queue

import "sync"

// memberSet tracks which paths are pending or in flight.
type memberSet struct {
	mu      sync.Mutex
	entries map[string]struct{}
}

func newMemberSet() *memberSet {
	return &memberSet{entries: make(map[string]struct{})}
}

// add records the path, reporting false when it is already held. A changed
// fingerprint does not replace the membership: two live jobs for one path
// would race each other, so the new content waits until the current job
// finishes and the next discovery re-admits it.
func (m *memberSet) add(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[path]; ok {
		return false
	}
	m.entries[path] = struct{}{}
	return true
}

// remove drops the path.
func (m *memberSet) remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, path)
}
