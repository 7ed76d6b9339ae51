package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/setarena/setarena/internal/events"
	"github.com/setarena/setarena/internal/game/card"
)

func newTestRouter(t *testing.T) (*Router, *Registry, events.Bus) {
	t.Helper()
	bus := events.NewLocalBus()
	r := NewRegistry(DefaultSettings(), 30*time.Second, bus, card.NewCryptoSource(), zap.NewNop())
	router := NewRouter(r, zap.NewNop())
	detach, err := router.Attach(bus)
	require.NoError(t, err)
	t.Cleanup(detach)
	return router, r, bus
}

func TestRouter_DispatchesRegisterPlayer(t *testing.T) {
	_, reg, bus := newTestRouter(t)
	s := reg.Create()
	t.Cleanup(s.Close)

	env, err := events.NewEnvelope(s.ID(), events.KindRegisterPlayer, events.RegisterPlayerCommand{
		RequestID: "r1",
		Secret:    "s3cr3t",
		Name:      "Ada",
	})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(env))

	assert.Equal(t, 1, s.PlayerCount())
}

func TestRouter_DispatchesPlayerCommands(t *testing.T) {
	_, reg, bus := newTestRouter(t)
	s := reg.Create()
	t.Cleanup(s.Close)

	// Register through the session directly so the private id is known.
	rec := &recorder{}
	var prev events.Publisher
	s.do(func() { prev = s.bus; s.bus = rec })
	id := register(t, s, rec, "Ada")
	s.do(func() { s.bus = prev })

	publish := func(kind events.Kind, payload any) {
		env, err := events.NewEnvelope(s.ID(), kind, payload)
		require.NoError(t, err)
		require.NoError(t, bus.Publish(env))
	}

	publish(events.KindChangeName, events.ChangeNameCommand{PlayerID: id, Name: "Grace"})
	assert.Equal(t, "Grace", s.getPlayer(id).Name)

	publish(events.KindRequestMoreCards, events.PlayerCommand{PlayerID: id})
	assert.Equal(t, workingLayoutSize+3, s.occupied(), "a single player meets the more-cards quorum alone")

	publish(events.KindLeave, events.PlayerCommand{PlayerID: id})
	assert.Equal(t, 0, s.PlayerCount())
}

func TestRouter_DropsMalformedPayload(t *testing.T) {
	_, reg, bus := newTestRouter(t)
	s := reg.Create()
	t.Cleanup(s.Close)

	err := bus.Publish(events.Envelope{
		SessionID: s.ID(),
		Kind:      events.KindRegisterPlayer,
		Payload:   json.RawMessage(`{"name":`),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, s.PlayerCount())
}

func TestRouter_DropsUnknownSession(t *testing.T) {
	_, _, bus := newTestRouter(t)

	env, err := events.NewEnvelope(999, events.KindRegisterPlayer, events.RegisterPlayerCommand{Name: "Ada"})
	require.NoError(t, err)
	assert.NoError(t, bus.Publish(env))
}

func TestRouter_IgnoresNonCommands(t *testing.T) {
	router, reg, _ := newTestRouter(t)
	s := reg.Create()
	t.Cleanup(s.Close)

	env, err := events.NewEnvelope(s.ID(), events.KindGameUpdated, s.State())
	require.NoError(t, err)
	router.Handle(env)

	assert.Equal(t, 0, s.PlayerCount())
}
