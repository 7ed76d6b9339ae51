package session

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/setarena/setarena/internal/events"
	"github.com/setarena/setarena/internal/game/card"
)

const (
	// initialDeal is dealt first; a twelfth card is added afterwards,
	// either freely (a set already exists) or forced to complete one.
	initialDeal = 11
	// workingLayoutSize is the canonical number of occupied slots.
	workingLayoutSize = 12
	// maxReplaceableSlots: claimed slots are only left as holes while
	// fewer than this many slots are occupied; beyond it the slot is
	// compacted away instead.
	maxReplaceableSlots = 13
)

// Settings control scoring, voting, and presence for one session.
type Settings struct {
	GoalScore          int
	PlayerTimeout      time.Duration
	MoreCardsThreshold float64
	EndGameThreshold   float64
	RestartThreshold   float64
}

// DefaultSettings returns the stock table rules: first to 10 points wins
// the round, all votes need two thirds of the roster, and players idle for
// 20 seconds are evicted.
func DefaultSettings() Settings {
	return Settings{
		GoalScore:          10,
		PlayerTimeout:      20 * time.Second,
		MoreCardsThreshold: 2.0 / 3.0,
		EndGameThreshold:   2.0 / 3.0,
		RestartThreshold:   2.0 / 3.0,
	}
}

// GameSession is one table: its deck, its layout, and its roster. All
// mutation funnels through a single mutex so action handlers, the presence
// reaper, and deferred round restarts never interleave.
//
// Invariant: after startGame and after every successful processSet, the
// layout contains a valid set whenever the deck is non-empty.
type GameSession struct {
	id        int
	createdAt time.Time

	mu      sync.Mutex
	deck    *card.Deck
	layout  []*card.Card // nil entries are holes awaiting refill
	players []*Player

	settings Settings

	bus    events.Publisher
	logger *zap.Logger
	src    card.Source

	// deferred holds steps scheduled to run after the current handler's
	// own mutations and emissions complete, still under the lock.
	deferred []func()

	stopReaper func()
}

func newGameSession(id int, settings Settings, bus events.Publisher, src card.Source, logger *zap.Logger) *GameSession {
	s := &GameSession{
		id:        id,
		createdAt: time.Now(),
		settings:  settings,
		bus:       bus,
		logger:    logger.With(zap.Int("session_id", id)),
		src:       src,
	}
	s.do(s.startGame)
	return s
}

// ID returns the session identifier.
func (s *GameSession) ID() int {
	return s.id
}

// CreatedAt returns the session creation timestamp.
func (s *GameSession) CreatedAt() time.Time {
	return s.createdAt
}

// PlayerCount returns the current roster size.
func (s *GameSession) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

// State returns a snapshot of the session for broadcasting.
func (s *GameSession) State() events.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

// Close stops the session's recurring tasks. Called by the registry on
// delete; idempotent.
func (s *GameSession) Close() {
	if s.stopReaper != nil {
		s.stopReaper()
	}
}

// do runs body under the session lock, then drains any steps body
// scheduled via deferStep. This is the serialization point every handler
// and recurring task goes through.
func (s *GameSession) do(body func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body()
	for len(s.deferred) > 0 {
		step := s.deferred[0]
		s.deferred = s.deferred[1:]
		step()
	}
}

// deferStep schedules fn to run after the current handler completes, so
// events emitted by the handler are observed before fn's own emissions.
func (s *GameSession) deferStep(fn func()) {
	s.deferred = append(s.deferred, fn)
}

// startGame resets the deck and layout, deals a solvable opening layout,
// clears every player's round state, and emits gameStarted.
//
// Postcondition: the layout holds 12 cards and contains a valid set.
func (s *GameSession) startGame() {
	s.deck = card.NewDeck(s.src)
	s.layout = nil

	for i := 0; i < initialDeal; i++ {
		if c, err := s.deck.Draw(); err == nil {
			s.layout = append(s.layout, &c)
		}
	}
	if s.hasSet() {
		// Dealing a twelfth is cosmetic here; eleven are already solvable.
		s.dealOne()
	} else {
		s.forceSet()
	}

	for _, p := range s.players {
		p.resetRound()
	}
	s.emit(events.KindGameStarted, s.state())
}

// processSet applies a claimed triple. It validates fully before mutating:
// on any validation failure the layout is untouched and false is returned.
func (s *GameSession) processSet(cards []card.Card) bool {
	if len(cards) != 3 || !card.IsValidSet(cards[0], cards[1], cards[2]) {
		return false
	}

	// All three must be simultaneously present in distinct occupied slots.
	slots := make([]int, 0, 3)
	taken := make(map[int]bool, 3)
	for _, c := range cards {
		idx := -1
		for i, in := range s.layout {
			if in != nil && *in == c && !taken[i] {
				idx = i
				break
			}
		}
		if idx < 0 {
			return false
		}
		taken[idx] = true
		slots = append(slots, idx)
	}

	// Claimed cards leave the layout and return to the deck. While the
	// layout is small the slot stays behind as a hole to be refilled;
	// an oversized layout is compacted instead so a claimed card is
	// never left visible.
	compact := false
	for _, idx := range slots {
		claimed := *s.layout[idx]
		if s.occupied() < maxReplaceableSlots && !s.deck.Empty() {
			s.layout[idx] = nil
		} else {
			s.layout[idx] = nil
			compact = true
		}
		s.deck.Return(claimed)
	}
	if compact {
		kept := s.layout[:0]
		for _, c := range s.layout {
			if c != nil {
				kept = append(kept, c)
			}
		}
		s.layout = kept
	}

	s.dealOne()
	s.dealOne()
	if s.hasSet() {
		s.dealOne()
	} else {
		s.forceSet()
	}
	return true
}

// hasSet exhaustively checks all unordered triples of occupied slots.
func (s *GameSession) hasSet() bool {
	n := len(s.layout)
	for i := 0; i < n; i++ {
		if s.layout[i] == nil {
			continue
		}
		for j := i + 1; j < n; j++ {
			if s.layout[j] == nil {
				continue
			}
			for k := j + 1; k < n; k++ {
				if s.layout[k] == nil {
					continue
				}
				if card.IsValidSet(*s.layout[i], *s.layout[j], *s.layout[k]) {
					return true
				}
			}
		}
	}
	return false
}

// dealOne draws a random card into the first hole, or appends when the
// layout has none. A miss on an empty deck is not an error.
func (s *GameSession) dealOne() {
	c, err := s.deck.Draw()
	if err != nil {
		return
	}
	s.addCard(c)
}

// addCard places c into the first hole, else appends a new slot.
func (s *GameSession) addCard(c card.Card) {
	for i, in := range s.layout {
		if in == nil {
			cc := c
			s.layout[i] = &cc
			return
		}
	}
	cc := c
	s.layout = append(s.layout, &cc)
}

// forceSet guarantees solvability: it picks two random occupied slots,
// computes the unique card completing a set with them, and draws that
// card by identity. When the completing card cannot be drawn the layout
// is left as-is; holes stay until the next deal.
func (s *GameSession) forceSet() {
	pair := s.randomCardsInPlay(2)
	if len(pair) < 2 {
		return
	}
	needed := card.Completion(pair[0], pair[1])
	c, err := s.deck.DrawExact(needed)
	if err != nil {
		s.logger.Warn("cannot force a set, completing card unavailable",
			zap.Int("deck_size", s.deck.Len()),
		)
		return
	}
	s.addCard(c)
}

// randomCardsInPlay returns up to n distinct occupied-slot cards.
func (s *GameSession) randomCardsInPlay(n int) []card.Card {
	pool := make([]card.Card, 0, len(s.layout))
	for _, c := range s.layout {
		if c != nil {
			pool = append(pool, *c)
		}
	}
	if n > len(pool) {
		n = len(pool)
	}
	picked := make([]card.Card, 0, n)
	for len(picked) < n {
		i := s.src.Intn(len(pool))
		picked = append(picked, pool[i])
		pool[i] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}
	return picked
}

// dealMoreCards draws up to three extra cards and clears every more-cards
// vote, then broadcasts.
func (s *GameSession) dealMoreCards() {
	for i := 0; i < 3; i++ {
		s.dealOne()
	}
	for _, p := range s.players {
		p.RequestingMoreCards = false
	}
	s.emit(events.KindGameUpdated, s.state())
}

// endGame ranks the roster, announces the result, and schedules a fresh
// deal for after the current handler completes. The session itself
// outlives the round.
func (s *GameSession) endGame() {
	s.sortPlayersByScore()
	roster := make([]events.PlayerState, 0, len(s.players))
	for _, p := range s.players {
		roster = append(roster, p.state())
	}
	s.emit(events.KindGameEnded, events.GameEndedEvent{Players: roster})
	s.deferStep(s.startGame)
}

func (s *GameSession) occupied() int {
	n := 0
	for _, c := range s.layout {
		if c != nil {
			n++
		}
	}
	return n
}

func (s *GameSession) getPlayer(playerID string) *Player {
	for _, p := range s.players {
		if p.id == playerID {
			return p
		}
	}
	return nil
}

func (s *GameSession) removePlayer(playerID string) bool {
	for i, p := range s.players {
		if p.id == playerID {
			s.players = append(s.players[:i], s.players[i+1:]...)
			return true
		}
	}
	return false
}

// sortPlayersByScore orders the roster by descending score, stable on ties.
// The order only matters for ranking display.
func (s *GameSession) sortPlayersByScore() {
	sort.SliceStable(s.players, func(i, j int) bool {
		return s.players[i].Score > s.players[j].Score
	})
}

func (s *GameSession) numMoreCardsRequests() int {
	n := 0
	for _, p := range s.players {
		if p.RequestingMoreCards {
			n++
		}
	}
	return n
}

func (s *GameSession) numEndGameRequests() int {
	n := 0
	for _, p := range s.players {
		if p.RequestingEndGame {
			n++
		}
	}
	return n
}

func (s *GameSession) numRestartRequests() int {
	n := 0
	for _, p := range s.players {
		if p.RequestingRestart {
			n++
		}
	}
	return n
}

// state builds the broadcast snapshot. Caller holds the lock.
func (s *GameSession) state() events.GameState {
	layout := make([]*card.Card, len(s.layout))
	for i, c := range s.layout {
		if c != nil {
			cc := *c
			layout[i] = &cc
		}
	}
	roster := make([]events.PlayerState, 0, len(s.players))
	for _, p := range s.players {
		roster = append(roster, p.state())
	}
	return events.GameState{
		ID:                     s.id,
		CardsInPlay:            layout,
		Players:                roster,
		DeckSize:               s.deck.Len(),
		NumMoreCardsRequests:   s.numMoreCardsRequests(),
		NumRestartGameRequests: s.numRestartRequests(),
		NumEndGameRequests:     s.numEndGameRequests(),
	}
}

// emit publishes a session-scoped event. Publish failures are logged, not
// surfaced; player actions must never fail the session.
func (s *GameSession) emit(kind events.Kind, payload any) {
	env, err := events.NewEnvelope(s.id, kind, payload)
	if err != nil {
		s.logger.Error("encoding event", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	if err := s.bus.Publish(env); err != nil {
		s.logger.Error("publishing event", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (s *GameSession) broadcastState() {
	s.emit(events.KindGameUpdated, s.state())
}
