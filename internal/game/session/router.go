package session

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/setarena/setarena/internal/events"
)

// Router decodes inbound command envelopes and dispatches them to the
// owning session's handlers. Malformed payloads and unknown sessions are
// logged and dropped; commands never surface errors to the transport.
type Router struct {
	registry *Registry
	logger   *zap.Logger
}

// NewRouter creates a Router over the given registry.
//
// Precondition: registry and logger must be non-nil.
func NewRouter(registry *Registry, logger *zap.Logger) *Router {
	return &Router{registry: registry, logger: logger}
}

// Attach subscribes the router to the bus and returns the unsubscribe
// handle.
func (r *Router) Attach(bus events.Bus) (func(), error) {
	return bus.Subscribe(r.Handle)
}

// Handle routes a single envelope. Non-command kinds are ignored so the
// router can share a bus with outbound traffic.
func (r *Router) Handle(env events.Envelope) {
	if !env.Kind.IsCommand() {
		return
	}
	s, err := r.registry.Get(env.SessionID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Warn("looking up session", zap.Int("session_id", env.SessionID), zap.Error(err))
		}
		return
	}

	switch env.Kind {
	case events.KindRegisterPlayer:
		var cmd events.RegisterPlayerCommand
		if r.decode(env, &cmd) {
			s.RegisterPlayer(cmd.RequestID, cmd.Secret, cmd.Name)
		}
	case events.KindSelectCards:
		var cmd events.SelectCardsCommand
		if r.decode(env, &cmd) {
			s.SelectCards(cmd.PlayerID, cmd.Cards)
		}
	case events.KindStartGame:
		var cmd events.PlayerCommand
		if r.decode(env, &cmd) {
			s.RequestRestart(cmd.PlayerID)
		}
	case events.KindCancelRestart:
		var cmd events.PlayerCommand
		if r.decode(env, &cmd) {
			s.CancelRestartRequest(cmd.PlayerID)
		}
	case events.KindRequestMoreCards:
		var cmd events.PlayerCommand
		if r.decode(env, &cmd) {
			s.RequestMoreCards(cmd.PlayerID)
		}
	case events.KindRequestEndGame:
		var cmd events.PlayerCommand
		if r.decode(env, &cmd) {
			s.RequestEndGame(cmd.PlayerID)
		}
	case events.KindLeave:
		var cmd events.PlayerCommand
		if r.decode(env, &cmd) {
			s.Leave(cmd.PlayerID)
		}
	case events.KindStay:
		var cmd events.PlayerCommand
		if r.decode(env, &cmd) {
			s.Stay(cmd.PlayerID)
		}
	case events.KindChangeName:
		var cmd events.ChangeNameCommand
		if r.decode(env, &cmd) {
			s.ChangeName(cmd.PlayerID, cmd.Name)
		}
	}
}

func (r *Router) decode(env events.Envelope, v any) bool {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		r.logger.Warn("dropping malformed command",
			zap.Int("session_id", env.SessionID),
			zap.String("kind", string(env.Kind)),
			zap.Error(err),
		)
		return false
	}
	return true
}
