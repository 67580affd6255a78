package notification

import "sync"

// Registry maps users to the dispatchers of their open tabs.
type Registry struct {
	mu    sync.RWMutex
	next  uint64
	users map[string]map[uint64]*Dispatcher
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[string]map[uint64]*Dispatcher)}
}

// Register adds d for userID and returns a func that removes it again.
func (r *Registry) Register(userID string, d *Dispatcher) (unregister func()) {
	r.mu.Lock()
	r.next++
	id := r.next
	set, ok := r.users[userID]
	if !ok {
		set = make(map[uint64]*Dispatcher)
		r.users[userID] = set
	}
	set[id] = d
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if set, ok := r.users[userID]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(r.users, userID)
				}
			}
		})
	}
}

// Dispatchers returns a snapshot of userID's dispatchers.
func (r *Registry) Dispatchers(userID string) []*Dispatcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.users[userID]
	out := make([]*Dispatcher, 0, len(set))
	for _, d := range set {
		out = append(out, d)
	}
	return out
}
