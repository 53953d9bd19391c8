package browser

import (
	"context"
	"sync"

	"github.com/pagepilot/pagepilot/internal/logging"
)

// Manager caches one live session per target so repeated operations against
// the same tab reuse the attached connection.
type Manager struct {
	mu       sync.Mutex
	endpoint string
	sessions map[string]*Session
	log      logging.Logger
}

var (
	managerOnce sync.Once
	manager     *Manager
)

// GetManager returns the singleton session manager.
func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = &Manager{
			sessions: make(map[string]*Session),
			log:      logging.For("manager"),
		}
	})
	return manager
}

// Configure points the manager at a DevTools endpoint. Changing the endpoint
// drops cached sessions.
func (m *Manager) Configure(endpointURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endpoint == endpointURL {
		return
	}
	m.closeAllLocked()
	m.endpoint = endpointURL
}

// Context returns a HandlerContext for the target, reusing a cached session
// when it is still alive and attaching fresh when not.
func (m *Manager) Context(ctx context.Context, targetID string) (HandlerContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[targetID]; ok {
		if s.Alive() {
			return NewHandlerContext(s), nil
		}
		m.log.Infof("session for %s went stale, reattaching", truncateID(targetID))
		s.Close()
		delete(m.sessions, targetID)
	}

	s, err := Attach(ctx, m.endpoint, targetID)
	if err != nil {
		return HandlerContext{}, err
	}
	m.sessions[targetID] = s
	return NewHandlerContext(s), nil
}

// CloseAll tears down every cached session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeAllLocked()
}

func (m *Manager) closeAllLocked() {
	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
	}
}
