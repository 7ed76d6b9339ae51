package session

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// startPresenceReaper launches the recurring eviction task for this
// session and returns an idempotent stop function. The tick period is
// half the presence timeout.
func (s *GameSession) startPresenceReaper() (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(s.settings.PlayerTimeout / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.reapIdlePlayers(time.Now())
			case <-done:
				return
			}
		}
	}()
	return func() {
		once.Do(func() { close(done) })
	}
}

// reapIdlePlayers removes every player whose last-seen timestamp is older
// than the presence timeout, and broadcasts when the roster changed.
func (s *GameSession) reapIdlePlayers(now time.Time) {
	s.do(func() {
		cutoff := now.Add(-s.settings.PlayerTimeout)
		kept := s.players[:0]
		evicted := 0
		for _, p := range s.players {
			if p.LastSeen.Before(cutoff) {
				evicted++
				s.logger.Info("evicting idle player",
					zap.String("public_id", p.PublicID),
					zap.Time("last_seen", p.LastSeen),
				)
				continue
			}
			kept = append(kept, p)
		}
		s.players = kept
		if evicted > 0 {
			s.broadcastState()
		}
	})
}
