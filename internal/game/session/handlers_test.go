package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setarena/setarena/internal/events"
	"github.com/setarena/setarena/internal/game/card"
)

func TestRegisterPlayer_EmitsCorrelatedEvent(t *testing.T) {
	s, rec := newTestSession(t)

	s.RegisterPlayer("req-42", "hush", "Ada")

	env, ok := rec.last(events.KindPlayerRegistered)
	require.True(t, ok)
	got := decodePayload[events.PlayerRegisteredEvent](t, env)
	assert.Equal(t, "req-42", got.RequestID)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, DefaultSettings().PlayerTimeout.Milliseconds(), got.PlayerTimeoutMS)
	assert.NotEmpty(t, got.PlayerPublicID)

	// The encoded id is the caller's secret prefixed to the private id.
	p := s.getPlayer(got.EncPlayerID[len("hush"):])
	require.NotNil(t, p)
	assert.Equal(t, got.PlayerPublicID, p.PublicID)

	assert.Equal(t, 1, s.PlayerCount())
	assert.GreaterOrEqual(t, rec.count(events.KindGameUpdated), 1)
}

func TestRegisterPlayer_DefaultsEmptyName(t *testing.T) {
	s, rec := newTestSession(t)
	id := register(t, s, rec, "")
	assert.Equal(t, "anonymous", s.getPlayer(id).Name)
}

func TestSelectCards_UnknownPlayerIgnored(t *testing.T) {
	s, rec := newTestSession(t)
	before := len(rec.kinds())

	s.SelectCards("no-such-player", findValidSet(t, s))

	assert.Len(t, rec.kinds(), before, "unknown players must not produce events")
}

func TestSelectCards_ScoredFlow(t *testing.T) {
	s, rec := newTestSession(t)
	ada := register(t, s, rec, "Ada")
	register(t, s, rec, "Bob")

	s.SelectCards(ada, findValidSet(t, s))

	env, ok := rec.last(events.KindPlayerScored)
	require.True(t, ok)
	got := decodePayload[events.SetAttemptEvent](t, env)
	assert.Equal(t, 1, got.Player.Score)
	assert.Equal(t, 1, got.Player.NumSets)
	assert.Len(t, got.Cards, 3)

	assert.Equal(t, workingLayoutSize, s.occupied())
	assert.Equal(t, 0, rec.count(events.KindPlayerFailedSet))
	assert.Equal(t, 0, rec.count(events.KindGameEnded))

	// The scorer ranks first.
	state, ok := rec.last(events.KindGameUpdated)
	require.True(t, ok)
	players := decodePayload[events.GameState](t, state).Players
	require.Len(t, players, 2)
	assert.Equal(t, "Ada", players[0].Name)
}

func TestSelectCards_FailedAttempt(t *testing.T) {
	s, rec := newTestSession(t)
	ada := register(t, s, rec, "Ada")

	pool := findValidSet(t, s)
	s.SelectCards(ada, []card.Card{pool[0], pool[0], pool[1]})

	env, ok := rec.last(events.KindPlayerFailedSet)
	require.True(t, ok)
	got := decodePayload[events.SetAttemptEvent](t, env)
	assert.Equal(t, 0, got.Player.Score)
	assert.Equal(t, 1, got.Player.NumFalseSets)
	assert.Equal(t, 0, rec.count(events.KindPlayerScored))
}

func TestSelectCards_GoalScoreEndsRound(t *testing.T) {
	s, rec := newTestSession(t)
	ada := register(t, s, rec, "Ada")

	goal := s.settings.GoalScore
	for i := 0; i < goal; i++ {
		s.SelectCards(ada, findValidSet(t, s))
	}

	env, ok := rec.last(events.KindGameEnded)
	require.True(t, ok)
	roster := decodePayload[events.GameEndedEvent](t, env).Players
	require.Len(t, roster, 1)
	assert.Equal(t, goal, roster[0].Score)

	// The round restarts after the end announcement, with scores reset.
	kinds := rec.kinds()
	ended, started := -1, -1
	for i, k := range kinds {
		if k == events.KindGameEnded {
			ended = i
		}
		if k == events.KindGameStarted && i > started {
			started = i
		}
	}
	assert.Greater(t, started, ended, "gameStarted must follow gameEnded")
	assert.Equal(t, 0, s.getPlayer(ada).Score)
	assert.Equal(t, workingLayoutSize, s.occupied())
}

func TestRequestRestart_Quorum(t *testing.T) {
	s, rec := newTestSession(t)
	ada := register(t, s, rec, "Ada")
	bob := register(t, s, rec, "Bob")
	register(t, s, rec, "Cyd")

	startsBefore := rec.count(events.KindGameStarted)

	s.RequestRestart(ada)
	assert.Equal(t, startsBefore, rec.count(events.KindGameStarted), "one vote of three is short of quorum")
	state, ok := rec.last(events.KindGameUpdated)
	require.True(t, ok)
	assert.Equal(t, 1, decodePayload[events.GameState](t, state).NumRestartGameRequests)

	s.RequestRestart(bob)
	assert.Equal(t, startsBefore+1, rec.count(events.KindGameStarted), "two votes of three meet quorum")
	assert.False(t, s.getPlayer(ada).RequestingRestart, "restart clears the votes")
}

func TestCancelRestartRequest(t *testing.T) {
	s, rec := newTestSession(t)
	ada := register(t, s, rec, "Ada")
	register(t, s, rec, "Bob")
	register(t, s, rec, "Cyd")

	s.RequestRestart(ada)
	require.True(t, s.getPlayer(ada).RequestingRestart)

	s.CancelRestartRequest(ada)
	assert.False(t, s.getPlayer(ada).RequestingRestart)
	state, ok := rec.last(events.KindGameUpdated)
	require.True(t, ok)
	assert.Equal(t, 0, decodePayload[events.GameState](t, state).NumRestartGameRequests)
}

func TestRequestMoreCards_Quorum(t *testing.T) {
	s, rec := newTestSession(t)
	ada := register(t, s, rec, "Ada")
	bob := register(t, s, rec, "Bob")

	s.RequestMoreCards(ada)
	assert.Equal(t, workingLayoutSize, s.occupied(), "one vote of two is short of quorum")

	s.RequestMoreCards(bob)
	assert.Equal(t, workingLayoutSize+3, s.occupied())
	assert.False(t, s.getPlayer(ada).RequestingMoreCards)
	assert.False(t, s.getPlayer(bob).RequestingMoreCards)
}

func TestRequestEndGame_Quorum(t *testing.T) {
	s, rec := newTestSession(t)
	ada := register(t, s, rec, "Ada")
	bob := register(t, s, rec, "Bob")

	s.RequestEndGame(ada)
	assert.Equal(t, 0, rec.count(events.KindGameEnded))

	s.RequestEndGame(bob)
	assert.Equal(t, 1, rec.count(events.KindGameEnded))
	// The deferred redeal also cleared the votes.
	assert.False(t, s.getPlayer(ada).RequestingEndGame)
}

func TestLeave(t *testing.T) {
	s, rec := newTestSession(t)
	ada := register(t, s, rec, "Ada")
	register(t, s, rec, "Bob")

	s.Leave(ada)
	assert.Equal(t, 1, s.PlayerCount())
	assert.Nil(t, s.getPlayer(ada))

	// Leaving twice still broadcasts.
	before := rec.count(events.KindGameUpdated)
	s.Leave(ada)
	assert.Equal(t, before+1, rec.count(events.KindGameUpdated))
}

func TestStay_RefreshesPresenceOnly(t *testing.T) {
	s, rec := newTestSession(t)
	ada := register(t, s, rec, "Ada")
	before := len(rec.kinds())
	seen := s.getPlayer(ada).LastSeen

	s.Stay(ada)

	assert.Len(t, rec.kinds(), before, "heartbeats are silent")
	assert.False(t, s.getPlayer(ada).LastSeen.Before(seen))
}

func TestChangeName(t *testing.T) {
	s, rec := newTestSession(t)
	ada := register(t, s, rec, "Ada")

	s.ChangeName(ada, "Grace H. 2")
	env, ok := rec.last(events.KindPlayerNameChanged)
	require.True(t, ok)
	got := decodePayload[events.PlayerNameChangedEvent](t, env)
	assert.Equal(t, "Ada", got.PrevName)
	assert.Equal(t, "Grace H. 2", got.Name)
	assert.Equal(t, s.getPlayer(ada).PublicID, got.PlayerID)
	assert.Equal(t, "Grace H. 2", s.getPlayer(ada).Name)

	// Invalid names are dropped without an event.
	for _, bad := range []string{"", "na/me", "x\n", "<script>"} {
		s.ChangeName(ada, bad)
	}
	assert.Equal(t, 1, rec.count(events.KindPlayerNameChanged))
	assert.Equal(t, "Grace H. 2", s.getPlayer(ada).Name)

	s.ChangeName("no-such-player", "Whoever")
	assert.Equal(t, 1, rec.count(events.KindPlayerNameChanged))
}
