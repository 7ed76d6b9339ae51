// Package card provides the Set card primitives: the card value itself,
// set validity over three cards, the completion card over two cards, and
// the 81-card deck.
package card

// NumVariants is the number of values each card attribute can take.
const NumVariants = 3

// Card is a single Set card. Each attribute holds a value in [0, 2].
// Cards are plain values and compare with ==.
type Card struct {
	Number  int `json:"number"`
	Shading int `json:"shading"`
	Color   int `json:"color"`
	Symbol  int `json:"symbol"`
}

// Valid reports whether every attribute is in [0, 2].
func (c Card) Valid() bool {
	return inRange(c.Number) && inRange(c.Shading) && inRange(c.Color) && inRange(c.Symbol)
}

func inRange(v int) bool {
	return v >= 0 && v < NumVariants
}

// IsValidSet reports whether the three cards form a valid set: for each
// attribute the values are either all the same or all distinct.
func IsValidSet(a, b, c Card) bool {
	return attrMatches(a.Number, b.Number, c.Number) &&
		attrMatches(a.Shading, b.Shading, c.Shading) &&
		attrMatches(a.Color, b.Color, c.Color) &&
		attrMatches(a.Symbol, b.Symbol, c.Symbol)
}

func attrMatches(x, y, z int) bool {
	if x == y && y == z {
		return true
	}
	return x != y && y != z && x != z
}

// Completion returns the unique card that forms a valid set with a and b.
//
// Precondition: a != b, both valid.
// Postcondition: IsValidSet(a, b, Completion(a, b)) is true.
func Completion(a, b Card) Card {
	return Card{
		Number:  completeAttr(a.Number, b.Number),
		Shading: completeAttr(a.Shading, b.Shading),
		Color:   completeAttr(a.Color, b.Color),
		Symbol:  completeAttr(a.Symbol, b.Symbol),
	}
}

// completeAttr returns x when x == y, otherwise the third remaining value.
func completeAttr(x, y int) int {
	if x == y {
		return x
	}
	return NumVariants - x - y
}
