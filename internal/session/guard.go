package session

import "sync"

// Guard enforces the single-flight constraint: at most one session per kind
// in the requesting or active state. Admission is synchronous so two rapid
// requests cannot both pass the check before either takes the slot.
type Guard struct {
	mu       sync.Mutex
	inFlight map[Kind]bool
}

func NewGuard() *Guard {
	return &Guard{inFlight: make(map[Kind]bool)}
}

// TryAcquire takes the slot for kind, reporting false when one is already
// held.
func (g *Guard) TryAcquire(kind Kind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[kind] {
		return false
	}
	g.inFlight[kind] = true
	return true
}

// Release frees the slot for kind. Safe to call when nothing was acquired.
func (g *Guard) Release(kind Kind) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, kind)
}

// Held reports whether a session of kind currently occupies the slot.
func (g *Guard) Held(kind Kind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight[kind]
}
