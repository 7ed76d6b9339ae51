package session

import (
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/setarena/setarena/internal/events"
	"github.com/setarena/setarena/internal/game/card"
	"github.com/setarena/setarena/internal/game/quorum"
)

// namePattern accepts one or more word characters, dots, or spaces.
var namePattern = regexp.MustCompile(`^[\w. ]+$`)

// RegisterPlayer creates a player, stamps presence, and answers with the
// encoded correlation id. Registration always succeeds.
func (s *GameSession) RegisterPlayer(requestID, secret, name string) {
	s.do(func() {
		p := newPlayer(name, time.Now())
		s.players = append(s.players, p)
		s.logger.Info("player registered",
			zap.String("public_id", p.PublicID),
			zap.String("name", p.Name),
		)
		s.emit(events.KindPlayerRegistered, events.PlayerRegisteredEvent{
			RequestID:       requestID,
			EncPlayerID:     secret + p.id,
			PlayerPublicID:  p.PublicID,
			PlayerTimeoutMS: s.settings.PlayerTimeout.Milliseconds(),
			Name:            p.Name,
		})
		s.broadcastState()
	})
}

// SelectCards processes a claimed triple for the acting player: scoring,
// the scored/failed event, a possible round end, and a state broadcast.
// Unknown players are a silent no-op.
func (s *GameSession) SelectCards(playerID string, cards []card.Card) {
	s.do(func() {
		p := s.getPlayer(playerID)
		if p == nil {
			return
		}
		ok := s.processSet(cards)
		if ok {
			p.Score++
			p.NumSets++
		} else {
			p.NumFalseSets++
		}
		s.sortPlayersByScore()
		if ok {
			s.emit(events.KindPlayerScored, events.SetAttemptEvent{Player: p.state(), Cards: cards})
			if p.Score >= s.settings.GoalScore {
				s.endGame()
			}
		} else {
			s.emit(events.KindPlayerFailedSet, events.SetAttemptEvent{Player: p.state(), Cards: cards})
		}
		s.broadcastState()
	})
}

// RequestRestart records a restart vote and redeals immediately once the
// restart quorum is met.
func (s *GameSession) RequestRestart(playerID string) {
	s.do(func() {
		p := s.getPlayer(playerID)
		if p == nil {
			return
		}
		p.RequestingRestart = true
		if quorum.Met(s.numRestartRequests(), len(s.players), s.settings.RestartThreshold) {
			s.startGame()
		} else {
			s.broadcastState()
		}
	})
}

// CancelRestartRequest withdraws a restart vote.
func (s *GameSession) CancelRestartRequest(playerID string) {
	s.do(func() {
		p := s.getPlayer(playerID)
		if p == nil {
			return
		}
		p.RequestingRestart = false
		s.broadcastState()
	})
}

// RequestMoreCards records a more-cards vote and deals up to three extra
// cards once the quorum is met.
func (s *GameSession) RequestMoreCards(playerID string) {
	s.do(func() {
		p := s.getPlayer(playerID)
		if p == nil {
			return
		}
		p.RequestingMoreCards = true
		if quorum.Met(s.numMoreCardsRequests(), len(s.players), s.settings.MoreCardsThreshold) {
			s.dealMoreCards()
		} else {
			s.broadcastState()
		}
	})
}

// RequestEndGame records an end-game vote and ends the round once the
// quorum is met.
func (s *GameSession) RequestEndGame(playerID string) {
	s.do(func() {
		p := s.getPlayer(playerID)
		if p == nil {
			return
		}
		p.RequestingEndGame = true
		if quorum.Met(s.numEndGameRequests(), len(s.players), s.settings.EndGameThreshold) {
			s.endGame()
		} else {
			s.broadcastState()
		}
	})
}

// Leave removes the player from the roster. Removal of an unknown player
// is a no-op; the state broadcast happens either way.
func (s *GameSession) Leave(playerID string) {
	s.do(func() {
		if s.removePlayer(playerID) {
			s.logger.Info("player left", zap.String("player_id", playerID))
		}
		s.broadcastState()
	})
}

// Stay refreshes the player's presence timestamp. A pure heartbeat: no
// roster change, no events.
func (s *GameSession) Stay(playerID string) {
	s.do(func() {
		p := s.getPlayer(playerID)
		if p == nil {
			return
		}
		p.LastSeen = time.Now()
	})
}

// ChangeName renames the player when the new name matches namePattern.
// Anything else is silently dropped.
func (s *GameSession) ChangeName(playerID, name string) {
	s.do(func() {
		p := s.getPlayer(playerID)
		if p == nil {
			return
		}
		if name == "" || !namePattern.MatchString(name) {
			return
		}
		prev := p.Name
		p.Name = name
		s.emit(events.KindPlayerNameChanged, events.PlayerNameChangedEvent{
			PlayerID: p.PublicID,
			PrevName: prev,
			Name:     name,
		})
		s.broadcastState()
	})
}
