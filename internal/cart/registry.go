package cart

import "sync"

// Registry hands out one Store per user.
type Registry struct {
	opt Options

	mu     sync.Mutex
	stores map[string]*Store
}

func NewRegistry(opt Options) *Registry {
	opt.defaults()
	return &Registry{opt: opt, stores: map[string]*Store{}}
}

func (r *Registry) For(userID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[userID]
	if !ok {
		s = NewStore(userID, r.opt)
		r.stores[userID] = s
	}
	return s
}

func (r *Registry) Close() {
	r.mu.Lock()
	stores := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s)
	}
	r.stores = map[string]*Store{}
	r.mu.Unlock()
	for _, s := range stores {
		s.Close()
	}
}
