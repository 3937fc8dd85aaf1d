// Package wiring tracks event subscriptions across the window's
// attach/detach lifecycle. Subscriptions are registered exactly once per
// attach cycle and torn down exactly once per detach cycle, however many
// times attach and detach occur. After any detach the set is empty.
package wiring

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Mustansir-06/MermaidPad/internal/log"
)

// Manager owns the set of live subscriptions. It is confined to the UI
// dispatch loop like the rest of the controller state.
type Manager struct {
	subs        map[string]func()
	attached    bool
	panelsWired bool
}

// NewManager creates a detached manager.
func NewManager() *Manager {
	return &Manager{subs: make(map[string]func())}
}

// Attach begins a wiring cycle. Attaching while already attached is a
// logged no-op so a re-entrant attach cannot double-wire anything.
func (m *Manager) Attach() bool {
	if m.attached {
		log.Warn(log.CatPanel, "Attach called while already attached")
		return false
	}
	m.attached = true
	return true
}

// Attached reports whether a wiring cycle is open.
func (m *Manager) Attached() bool { return m.attached }

// Add registers a subscription teardown under a unique identity and returns
// that identity. The name is a human-readable prefix for logs.
func (m *Manager) Add(name string, unsubscribe func()) string {
	id := fmt.Sprintf("%s/%s", name, uuid.NewString())
	m.subs[id] = unsubscribe
	log.Debug(log.CatPanel, "Subscription wired", "id", id, "total", len(m.subs))
	return id
}

// Remove tears down a single subscription by identity.
func (m *Manager) Remove(id string) {
	if unsubscribe, ok := m.subs[id]; ok {
		unsubscribe()
		delete(m.subs, id)
	}
}

// WirePanels runs wire exactly once per attach cycle. Redundant calls,
// including re-entrant discovery callbacks, are no-ops. Returns whether
// wire ran.
func (m *Manager) WirePanels(wire func()) bool {
	if m.panelsWired {
		log.Debug(log.CatPanel, "Panel wiring skipped, already wired")
		return false
	}
	m.panelsWired = true
	wire()
	return true
}

// PanelsWired reports whether panel-level wiring ran this cycle.
func (m *Manager) PanelsWired() bool { return m.panelsWired }

// Count returns the number of live subscriptions.
func (m *Manager) Count() int { return len(m.subs) }

// Detach tears down every subscription and closes the wiring cycle.
// Post-condition: zero live subscriptions. Detaching while detached is a
// no-op.
func (m *Manager) Detach() {
	if !m.attached && len(m.subs) == 0 {
		return
	}
	for id, unsubscribe := range m.subs {
		unsubscribe()
		delete(m.subs, id)
	}
	m.attached = false
	m.panelsWired = false
	log.Debug(log.CatPanel, "Wiring detached")
}
