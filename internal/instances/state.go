package instances

import "sync"

// ActiveInstance holds the id of the one agent instance this process
// considers live. The zero value holds no instance.
type ActiveInstance struct {
	mu sync.RWMutex
	id string
}

// Get returns the recorded id, or "" if none.
func (a *ActiveInstance) Get() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.id
}

// Set records id unconditionally.
func (a *ActiveInstance) Set(id string) {
	a.mu.Lock()
	a.id = id
	a.mu.Unlock()
}

// CompareAndSwap replaces the recorded id with next only if it is still old.
func (a *ActiveInstance) CompareAndSwap(old, next string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.id != old {
		return false
	}
	a.id = next
	return true
}
