package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/setarena/setarena/internal/events"
	"github.com/setarena/setarena/internal/game/card"
)

func newTestRegistry(t *testing.T) (*Registry, *recorder) {
	t.Helper()
	rec := &recorder{}
	r := NewRegistry(DefaultSettings(), 30*time.Second, rec, card.NewCryptoSource(), zap.NewNop())
	return r, rec
}

func TestRegistry_CreateAllocatesSequentialIDs(t *testing.T) {
	r, rec := newTestRegistry(t)

	first := r.Create()
	second := r.Create()
	t.Cleanup(func() { first.Close(); second.Close() })

	assert.Equal(t, DefaultSessionID, first.ID())
	assert.Equal(t, DefaultSessionID+1, second.ID())
	assert.Equal(t, 2, rec.count(events.KindGameNew))
	assert.Len(t, r.List(), 2)
}

func TestRegistry_Get(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := r.Create()
	t.Cleanup(s.Close)

	got, err := r.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = r.Get(999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Delete(t *testing.T) {
	r, rec := newTestRegistry(t)
	s := r.Create()

	require.NoError(t, r.Delete(s.ID()))
	assert.Equal(t, 1, rec.count(events.KindGameDelete))
	_, err := r.Get(s.ID())
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, r.Delete(s.ID()), ErrNotFound)
}

func TestRegistry_CollectGarbage(t *testing.T) {
	r, rec := newTestRegistry(t)
	lobby := r.Create() // DefaultSessionID, protected
	empty := r.Create()
	occupied := r.Create()
	t.Cleanup(func() {
		for _, s := range r.List() {
			s.Close()
		}
	})
	register(t, occupied, rec, "Ada")

	r.collectGarbage(time.Now().Add(40 * time.Second))

	_, err := r.Get(lobby.ID())
	assert.NoError(t, err, "the default session is never reaped")
	_, err = r.Get(occupied.ID())
	assert.NoError(t, err, "sessions with players are never reaped")
	_, err = r.Get(empty.ID())
	assert.ErrorIs(t, err, ErrNotFound, "abandoned sessions past the grace period are reaped")
}

func TestRegistry_CollectGarbageHonorsGrace(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Create() // lobby
	fresh := r.Create()
	t.Cleanup(func() {
		for _, s := range r.List() {
			s.Close()
		}
	})

	r.collectGarbage(time.Now().Add(10 * time.Second))

	_, err := r.Get(fresh.ID())
	assert.NoError(t, err, "sessions inside the grace period survive")
}

func TestRegistry_StartGCStopIsIdempotent(t *testing.T) {
	r, _ := newTestRegistry(t)
	stop := r.StartGC(time.Hour)
	stop()
	stop()
}
