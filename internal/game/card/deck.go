package card

import "errors"

// DeckSize is the number of cards in a full Set deck (3^4 combinations).
const DeckSize = 81

// ErrDeckEmpty is returned when drawing from a deck with no cards left.
var ErrDeckEmpty = errors.New("card: deck is empty")

// ErrNotInDeck is returned when drawing a specific card that is absent.
var ErrNotInDeck = errors.New("card: card not in deck")

// Deck is an ordered multiset of the cards not currently in play.
// It is not safe for concurrent use; the owning session serializes access.
type Deck struct {
	cards []Card
	src   Source
}

// NewDeck returns a full 81-card deck.
//
// Precondition: src must be non-nil.
func NewDeck(src Source) *Deck {
	cards := make([]Card, 0, DeckSize)
	for n := 0; n < NumVariants; n++ {
		for sh := 0; sh < NumVariants; sh++ {
			for co := 0; co < NumVariants; co++ {
				for sy := 0; sy < NumVariants; sy++ {
					cards = append(cards, Card{Number: n, Shading: sh, Color: co, Symbol: sy})
				}
			}
		}
	}
	return &Deck{cards: cards, src: src}
}

// Draw removes and returns a card at a random position.
//
// Postcondition: Len decreases by one, or ErrDeckEmpty is returned and the
// deck is unchanged.
func (d *Deck) Draw() (Card, error) {
	if len(d.cards) == 0 {
		return Card{}, ErrDeckEmpty
	}
	i := d.src.Intn(len(d.cards))
	c := d.cards[i]
	d.cards[i] = d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return c, nil
}

// DrawExact removes the given card by identity.
//
// Postcondition: Returns ErrNotInDeck and leaves the deck unchanged when the
// card is absent.
func (d *Deck) DrawExact(c Card) (Card, error) {
	for i, have := range d.cards {
		if have == c {
			d.cards[i] = d.cards[len(d.cards)-1]
			d.cards = d.cards[:len(d.cards)-1]
			return have, nil
		}
	}
	return Card{}, ErrNotInDeck
}

// Return puts a card back into the deck.
func (d *Deck) Return(c Card) {
	d.cards = append(d.cards, c)
}

// Contains reports whether the card is currently in the deck.
func (d *Deck) Contains(c Card) bool {
	for _, have := range d.cards {
		if have == c {
			return true
		}
	}
	return false
}

// Empty reports whether no cards remain.
func (d *Deck) Empty() bool {
	return len(d.cards) == 0
}

// Len returns the number of remaining cards.
func (d *Deck) Len() int {
	return len(d.cards)
}
