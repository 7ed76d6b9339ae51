// Package events defines the structured message envelope exchanged between
// the gateway, the session engine, and the transport bridge, together with
// the bus abstraction that carries it.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/setarena/setarena/internal/game/card"
)

// Kind identifies what an envelope carries. Command kinds flow from clients
// to the session engine; event kinds flow back out.
type Kind string

// Command kinds (inbound, session-scoped).
const (
	KindRegisterPlayer   Kind = "registerPlayer"
	KindSelectCards      Kind = "selectCards"
	KindStartGame        Kind = "startGame" // restart-vote request
	KindCancelRestart    Kind = "cancelRestartGameRequest"
	KindRequestMoreCards Kind = "requestMoreCards"
	KindRequestEndGame   Kind = "requestEndGame"
	KindLeave            Kind = "leave"
	KindStay             Kind = "stay"
	KindChangeName       Kind = "changeName"
)

// Event kinds (outbound, session-scoped).
const (
	KindPlayerRegistered  Kind = "playerRegistered"
	KindGameUpdated       Kind = "gameUpdated"
	KindGameStarted       Kind = "gameStarted"
	KindPlayerScored      Kind = "playerScored"
	KindPlayerFailedSet   Kind = "playerFailedSet"
	KindPlayerNameChanged Kind = "playerNameChanged"
	KindGameEnded         Kind = "gameEnded"
)

// Registry-wide event kinds (not scoped to a live session).
const (
	KindGameNew    Kind = "server:game:new"
	KindGameDelete Kind = "server:game:delete"
)

// IsCommand reports whether k is an inbound command kind.
func (k Kind) IsCommand() bool {
	switch k {
	case KindRegisterPlayer, KindSelectCards, KindStartGame, KindCancelRestart,
		KindRequestMoreCards, KindRequestEndGame, KindLeave, KindStay, KindChangeName:
		return true
	}
	return false
}

// Envelope is the unit of exchange on the bus: a session id, a kind, and a
// kind-specific JSON payload.
type Envelope struct {
	SessionID int             `json:"sessionId"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload and wraps it.
//
// Postcondition: Returns a non-nil error only when payload cannot be
// marshalled to JSON.
func NewEnvelope(sessionID int, kind Kind, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshalling %s payload: %w", kind, err)
	}
	return Envelope{SessionID: sessionID, Kind: kind, Payload: raw}, nil
}

// Handler consumes envelopes delivered by a Bus subscription.
type Handler func(Envelope)

// Bus carries envelopes between producers and subscribers. Implementations
// must preserve per-publisher ordering.
type Bus interface {
	// Publish delivers the envelope to all current subscribers.
	Publish(env Envelope) error
	// Subscribe registers fn for every published envelope and returns an
	// unsubscribe handle. Calling the handle more than once is harmless.
	Subscribe(fn Handler) (func(), error)
}

// Publisher is the emit-only view of a Bus used by the session engine.
type Publisher interface {
	Publish(env Envelope) error
}

// RegisterPlayerCommand asks the session to create a player.
type RegisterPlayerCommand struct {
	RequestID string `json:"registerId"`
	Secret    string `json:"secret"`
	Name      string `json:"name,omitempty"`
}

// SelectCardsCommand claims three layout cards as a set.
type SelectCardsCommand struct {
	PlayerID string      `json:"playerId"`
	Cards    []card.Card `json:"cards"`
}

// PlayerCommand carries the acting player for commands with no other data
// (votes, cancel, leave, stay).
type PlayerCommand struct {
	PlayerID string `json:"playerId"`
}

// ChangeNameCommand requests a display-name change.
type ChangeNameCommand struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

// PlayerState is the roster entry included in state snapshots.
type PlayerState struct {
	PublicID            string `json:"publicId"`
	Name                string `json:"name"`
	Score               int    `json:"score"`
	NumSets             int    `json:"numSets"`
	NumFalseSets        int    `json:"numFalseSets"`
	RequestingMoreCards bool   `json:"isRequestingMoreCards"`
	RequestingEndGame   bool   `json:"isRequestingGameEnd"`
	RequestingRestart   bool   `json:"isRequestingGameRestart"`
}

// GameState is the full session snapshot carried by gameUpdated and
// gameStarted, and by the registry-wide lifecycle events. A nil entry in
// CardsInPlay is a hole awaiting refill.
type GameState struct {
	ID                     int           `json:"id"`
	CardsInPlay            []*card.Card  `json:"cardsInPlay"`
	Players                []PlayerState `json:"players"`
	DeckSize               int           `json:"deckSize"`
	NumMoreCardsRequests   int           `json:"numMoreCardsRequests"`
	NumRestartGameRequests int           `json:"numRestartGameRequests"`
	NumEndGameRequests     int           `json:"numEndGameRequests"`
}

// PlayerRegisteredEvent answers a RegisterPlayerCommand. EncPlayerID is the
// caller's secret concatenated with the internal player id; it is a
// correlation token, not an authentication mechanism.
type PlayerRegisteredEvent struct {
	RequestID       string `json:"registerId"`
	EncPlayerID     string `json:"encPlayerId"`
	PlayerPublicID  string `json:"playerPublicId"`
	PlayerTimeoutMS int64  `json:"playerTimeout"`
	Name            string `json:"name"`
}

// SetAttemptEvent reports a scored or failed set claim.
type SetAttemptEvent struct {
	Player PlayerState `json:"player"`
	Cards  []card.Card `json:"cards"`
}

// PlayerNameChangedEvent reports a successful rename.
type PlayerNameChangedEvent struct {
	PlayerID string `json:"playerId"`
	PrevName string `json:"prevName"`
	Name     string `json:"name"`
}

// GameEndedEvent carries the final roster ordered by descending score.
type GameEndedEvent struct {
	Players []PlayerState `json:"players"`
}

// GameLifecycleEvent carries the session snapshot for server:game:new and
// server:game:delete.
type GameLifecycleEvent struct {
	Game GameState `json:"game"`
}
