package offline

import (
	"context"
	"sync"
)

// Clients is the set of open pages a controller can take over.
type Clients interface {
	// Claim makes controller the active controller of every known client.
	Claim(ctx context.Context, controller string) error
}

// ClientSet tracks which controller governs each client id.
type ClientSet struct {
	mu      sync.RWMutex
	clients map[string]string
}

// NewClientSet returns an empty ClientSet.
func NewClientSet() *ClientSet {
	return &ClientSet{clients: make(map[string]string)}
}

// Add registers id under controller (empty for uncontrolled). Known clients
// keep their current controller.
func (s *ClientSet) Add(id, controller string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		s.clients[id] = controller
	}
}

// Remove forgets id.
func (s *ClientSet) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, id)
}

// Controlled returns the controller governing id.
func (s *ClientSet) Controlled(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	return c, ok
}

// Len returns the number of known clients.
func (s *ClientSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *ClientSet) Claim(_ context.Context, controller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.clients {
		s.clients[id] = controller
	}
	return nil
}
