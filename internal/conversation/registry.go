package conversation

import (
	"sync"

	"chatforms-backend/internal/models"
)

// Registry holds the live flows, keyed by response id.
type Registry struct {
	mu    sync.Mutex
	flows map[string]*Flow
}

func NewRegistry() *Registry {
	return &Registry{flows: make(map[string]*Flow)}
}

// GetOrStart returns the flow for responseID, starting one over form when
// none exists yet.
func (r *Registry) GetOrStart(responseID string, form *models.Form) *Flow {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.flows[responseID]; ok {
		return f
	}
	f := NewFlow(form)
	r.flows[responseID] = f
	return f
}

func (r *Registry) Get(responseID string) (*Flow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flows[responseID]
	return f, ok
}

// Remove drops the flow and cancels its running stream.
func (r *Registry) Remove(responseID string) {
	r.mu.Lock()
	f, ok := r.flows[responseID]
	delete(r.flows, responseID)
	r.mu.Unlock()
	if ok {
		f.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}
