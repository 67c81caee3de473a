package observer

import (
	"context"
	"fmt"
	"sync"

	"github.com/NotCoffee418/power-control-center/internal/infrastructure/logger"
)

// Manager fans events out to registered observers. Notification is
// non-blocking: each observer runs on its own goroutine and failures
// are logged, never propagated to the producer.
type Manager struct {
	log       *logger.Logger
	mu        sync.RWMutex
	observers []Observer
}

// NewManager creates a new observer manager.
func NewManager(log *logger.Logger) *Manager {
	return &Manager{log: log}
}

// Register adds an observer. Names must be unique.
func (m *Manager) Register(obs Observer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.observers {
		if existing.Name() == obs.Name() {
			return fmt.Errorf("observer with name %q already registered", obs.Name())
		}
	}
	m.observers = append(m.observers, obs)
	return nil
}

// Notify sends an event to all registered observers without blocking
// the caller.
func (m *Manager) Notify(ctx context.Context, event Event) {
	m.mu.RLock()
	observers := make([]Observer, len(m.observers))
	copy(observers, m.observers)
	m.mu.RUnlock()

	for _, obs := range observers {
		go m.notifyObserver(ctx, obs, event)
	}
}

func (m *Manager) notifyObserver(ctx context.Context, obs Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.ErrorContext(ctx, "observer panic recovered",
				"observer", obs.Name(),
				"event_type", string(event.Type),
				"panic", r,
			)
		}
	}()

	if err := obs.OnEvent(ctx, event); err != nil {
		m.log.ErrorContext(ctx, "observer notification failed",
			"observer", obs.Name(),
			"event_type", string(event.Type),
			"error", err,
		)
	}
}
