// Package session implements the per-table game engine for real-time
// multiplayer Set: the card layout and its solvability guarantee, the
// player roster with presence timeouts, quorum-gated round transitions,
// and the registry that owns every live session.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/setarena/setarena/internal/events"
)

// defaultPlayerName is assigned when registration carries no display name.
const defaultPlayerName = "anonymous"

// Player is one seat at a session's table. It is owned by exactly one
// GameSession and only touched under that session's lock.
type Player struct {
	// id is the internal identifier embedded in the encoded correlation
	// token returned at registration. Never broadcast on its own.
	id string
	// PublicID is the identifier other players see.
	PublicID string
	Name     string
	// Score never decreases within a round.
	Score        int
	NumSets      int
	NumFalseSets int

	RequestingMoreCards bool
	RequestingEndGame   bool
	RequestingRestart   bool

	// LastSeen drives presence reaping.
	LastSeen time.Time
}

func newPlayer(name string, now time.Time) *Player {
	if name == "" {
		name = defaultPlayerName
	}
	return &Player{
		id:       uuid.NewString(),
		PublicID: uuid.NewString(),
		Name:     name,
		LastSeen: now,
	}
}

// ID returns the internal player identifier.
func (p *Player) ID() string {
	return p.id
}

// resetRound clears all round-scoped counters and pending votes.
func (p *Player) resetRound() {
	p.Score = 0
	p.NumSets = 0
	p.NumFalseSets = 0
	p.RequestingMoreCards = false
	p.RequestingEndGame = false
	p.RequestingRestart = false
}

func (p *Player) state() events.PlayerState {
	return events.PlayerState{
		PublicID:            p.PublicID,
		Name:                p.Name,
		Score:               p.Score,
		NumSets:             p.NumSets,
		NumFalseSets:        p.NumFalseSets,
		RequestingMoreCards: p.RequestingMoreCards,
		RequestingEndGame:   p.RequestingEndGame,
		RequestingRestart:   p.RequestingRestart,
	}
}
