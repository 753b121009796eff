// internal/game/engine.go
//
// Board engine for a single Concentration game.
// Responsibilities:
//   - Create boards of D*D/2 letter pairs shuffled into a D×D grid.
//   - Reveal cards, holding the first of a pair until its partner arrives.
//   - Apply the verdict of a completed pair (keep a match, hide a mismatch).
//   - Detect completion (matches == D*D).
//
// Notes:
//   - Letters are 'A', 'B', ... one per pair.
//   - Shuffling uses crypto/rand so every connection gets an independent deal.
package game

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// New constructs a freshly shuffled board with every card hidden.
func New(dim int) (*Board, error) {
	if err := validDim(dim); err != nil {
		return nil, err
	}
	letters := make([]rune, 0, dim*dim)
	for i := 0; i < dim*dim/2; i++ {
		letters = append(letters, 'A'+rune(i), 'A'+rune(i))
	}
	shuffle(letters)
	return build(dim, letters), nil
}

// NewArranged builds a board from a fixed row-major arrangement.
// Every letter must appear exactly twice.
func NewArranged(dim int, letters string) (*Board, error) {
	if err := validDim(dim); err != nil {
		return nil, err
	}
	rs := []rune(letters)
	if len(rs) != dim*dim {
		return nil, fmt.Errorf("arrangement has %d cards, want %d", len(rs), dim*dim)
	}
	counts := make(map[rune]int, len(rs)/2)
	for _, r := range rs {
		counts[r]++
	}
	for r, n := range counts {
		if n != 2 {
			return nil, fmt.Errorf("letter %q appears %d times, want 2", r, n)
		}
	}
	return build(dim, rs), nil
}

func validDim(dim int) error {
	if dim < MinDim || dim > MaxDim {
		return fmt.Errorf("%w: %d out of range [%d,%d]", ErrInvalidDimension, dim, MinDim, MaxDim)
	}
	if dim%2 != 0 {
		return fmt.Errorf("%w: %d is not even", ErrInvalidDimension, dim)
	}
	return nil
}

func build(dim int, letters []rune) *Board {
	cards := make([][]Card, dim)
	for row := range cards {
		cards[row] = make([]Card, dim)
		for col := range cards[row] {
			cards[row][col] = Card{Row: row, Col: col, Letter: letters[row*dim+col], hidden: true}
		}
	}
	return &Board{ID: uuid.NewString(), dim: dim, cards: cards}
}

// shuffle is a Fisher–Yates shuffle driven by crypto/rand.
func shuffle(rs []rune) {
	for i := len(rs) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			panic(fmt.Sprintf("game: read random: %v", err))
		}
		j := int(n.Int64())
		rs[i], rs[j] = rs[j], rs[i]
	}
}

// Dim returns the side length of the board.
func (b *Board) Dim() int { return b.dim }

// Matches returns the number of matched cards.
func (b *Board) Matches() int { return b.matches }

// Pending returns the card awaiting a partner, if any.
func (b *Board) Pending() (Card, bool) {
	if b.pending == nil {
		return Card{}, false
	}
	return *b.pending, true
}

// Card returns a snapshot of the card at (row, col).
func (b *Board) Card(row, col int) (Card, error) {
	c, err := b.at(row, col)
	if err != nil {
		return Card{}, err
	}
	return *c, nil
}

func (b *Board) at(row, col int) (*Card, error) {
	if row < 0 || col < 0 || row >= b.dim || col >= b.dim {
		return nil, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, row, col)
	}
	return &b.cards[row][col], nil
}

// Reveal turns the card at (row, col) face up.
//
// With no pending card the revealed card becomes pending and the result is
// not ready. Otherwise the pending card and the new one are compared, the
// pending slot is cleared and a ready result is returned. On error the
// board is left untouched.
func (b *Board) Reveal(row, col int) (CardMatch, error) {
	if b.GameOver() {
		return CardMatch{}, ErrGameOver
	}
	c, err := b.at(row, col)
	if err != nil {
		return CardMatch{}, err
	}
	if !c.hidden {
		return CardMatch{}, fmt.Errorf("%w: (%d,%d)", ErrAlreadyRevealed, row, col)
	}
	c.hidden = false

	revealed := *c
	if b.pending == nil {
		b.pending = c
		return CardMatch{First: &revealed}, nil
	}
	first := *b.pending
	b.pending = nil
	return CardMatch{First: &first, Second: &revealed, Match: first.Letter == revealed.Letter}, nil
}

// UpdateRevealStatus applies the verdict of a ready CardMatch: a match adds
// two to the counter and leaves both cards up, a mismatch hides both again.
// Results that are not ready are ignored.
func (b *Board) UpdateRevealStatus(m CardMatch) {
	if !m.Ready() {
		return
	}
	if m.Match {
		b.matches += 2
		return
	}
	for _, c := range []*Card{m.First, m.Second} {
		if cell, err := b.at(c.Row, c.Col); err == nil {
			cell.hidden = true
		}
	}
}

// GameOver reports whether every card has been matched.
func (b *Board) GameOver() bool { return b.matches == b.dim*b.dim }

// String renders the board as players see it, for example a 4x4 game
// that is just underway:
//
//	  0123
//	0|G...
//	1|G...
//	2|....
//	3|....
func (b *Board) String() string { return b.render(false) }

// Solution renders the board with every letter shown.
func (b *Board) Solution() string { return b.render(true) }

func (b *Board) render(all bool) string {
	var sb strings.Builder
	sb.WriteString("  ")
	for col := 0; col < b.dim; col++ {
		sb.WriteString(strconv.Itoa(col))
	}
	sb.WriteByte('\n')
	for row := 0; row < b.dim; row++ {
		sb.WriteString(strconv.Itoa(row))
		sb.WriteByte('|')
		for _, c := range b.cards[row] {
			if c.hidden && !all {
				sb.WriteRune(Hidden)
			} else {
				sb.WriteRune(c.Letter)
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
