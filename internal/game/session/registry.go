package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/setarena/setarena/internal/events"
	"github.com/setarena/setarena/internal/game/card"
)

// DefaultSessionID is the permanent lobby session. The garbage collector
// never reaps it.
const DefaultSessionID = 1

// ErrNotFound is the registry's only surfaced error: a lookup or delete
// of a session id that is not live.
var ErrNotFound = errors.New("session not found")

// Registry owns the collection of live sessions. All methods are safe for
// concurrent use; the registry lock covers only the map and id counter,
// never a session's internal state.
type Registry struct {
	mu       sync.Mutex
	sessions map[int]*GameSession
	nextID   int

	settings Settings
	gcGrace  time.Duration

	bus    events.Publisher
	src    card.Source
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
//
// Precondition: bus, src, and logger must be non-nil; gcGrace > 0.
func NewRegistry(settings Settings, gcGrace time.Duration, bus events.Publisher, src card.Source, logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[int]*GameSession),
		nextID:   DefaultSessionID,
		settings: settings,
		gcGrace:  gcGrace,
		bus:      bus,
		src:      src,
		logger:   logger,
	}
}

// Create allocates the next id, builds a session bound to it, starts its
// presence reaper, and announces it registry-wide.
func (r *Registry) Create() *GameSession {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.mu.Unlock()

	s := newGameSession(id, r.settings, r.bus, r.src, r.logger)
	s.stopReaper = s.startPresenceReaper()

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	r.logger.Info("session created", zap.Int("session_id", id))
	r.announce(events.KindGameNew, s.State())
	return s
}

// Get returns the session for id.
//
// Postcondition: Returns ErrNotFound (wrapped) when id is not live.
func (r *Registry) Get(id int) (*GameSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	return s, nil
}

// List returns all live sessions in arbitrary order.
func (r *Registry) List() []*GameSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*GameSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Delete stops the session's recurring tasks, removes it, and announces
// the deletion with the session's last known snapshot.
func (r *Registry) Delete(id int) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	s.Close()
	r.logger.Info("session deleted", zap.Int("session_id", id))
	r.announce(events.KindGameDelete, s.State())
	return nil
}

// StartGC launches the registry-wide garbage collector and returns an
// idempotent stop function.
//
// Postcondition: empty non-default sessions older than the grace period
// are deleted once per interval until stop is called.
func (r *Registry) StartGC(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.collectGarbage(time.Now())
			case <-done:
				return
			}
		}
	}()
	return func() {
		once.Do(func() { close(done) })
	}
}

// collectGarbage deletes sessions that are empty, past the grace period,
// and not the default session.
func (r *Registry) collectGarbage(now time.Time) {
	r.mu.Lock()
	candidates := make([]int, 0)
	for id, s := range r.sessions {
		if id == DefaultSessionID {
			continue
		}
		if now.Sub(s.CreatedAt()) <= r.gcGrace {
			continue
		}
		candidates = append(candidates, id)
	}
	r.mu.Unlock()

	for _, id := range candidates {
		s, err := r.Get(id)
		if err != nil {
			continue
		}
		if s.PlayerCount() > 0 {
			continue
		}
		if err := r.Delete(id); err == nil {
			r.logger.Info("reaped abandoned session", zap.Int("session_id", id))
		}
	}
}

func (r *Registry) announce(kind events.Kind, state events.GameState) {
	env, err := events.NewEnvelope(state.ID, kind, events.GameLifecycleEvent{Game: state})
	if err != nil {
		r.logger.Error("encoding registry event", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	if err := r.bus.Publish(env); err != nil {
		r.logger.Error("publishing registry event", zap.String("kind", string(kind)), zap.Error(err))
	}
}
