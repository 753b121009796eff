// internal/game/types.go
//
// Core type definitions for the Concentration board engine.
// Defines:
//   - Card: one cell of the grid (position, letter, hidden flag).
//   - CardMatch: result of a reveal, ready once two cards are present.
//   - Board: the D×D grid, match counter and pending-reveal slot.
//   - Board errors returned by the engine.

package game

import "errors"

const (
	MinDim = 2
	MaxDim = 6

	// Hidden is how a face-down card is rendered.
	Hidden = '.'
)

// Board errors. Callers match them with errors.Is.
var (
	ErrInvalidDimension = errors.New("invalid board dimension")
	ErrOutOfBounds      = errors.New("coordinates out of bounds")
	ErrAlreadyRevealed  = errors.New("card already revealed")
	ErrGameOver         = errors.New("game is already over")
)

// Card is a single board cell. Letter never changes after creation.
type Card struct {
	Row    int
	Col    int
	Letter rune
	hidden bool
}

// Hidden reports whether the card is face down.
func (c Card) Hidden() bool { return c.hidden }

// CardMatch is produced by Board.Reveal.
// First is always set; Second is nil until a partner has been revealed.
type CardMatch struct {
	First  *Card
	Second *Card
	Match  bool // letters are equal (only meaningful when Ready)
}

// Ready reports whether both cards are present and comparable.
func (m CardMatch) Ready() bool { return m.First != nil && m.Second != nil }

// Board holds the state of one game. It is owned by a single connection
// and is not safe for concurrent use.
type Board struct {
	ID      string   // Unique game identifier (uuid).
	dim     int      // Side length, even, in [MinDim, MaxDim].
	cards   [][]Card // cards[row][col]
	pending *Card    // revealed card awaiting its partner, nil when empty
	matches int      // matched cards so far, grows by 2
}
