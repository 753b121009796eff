// internal/protocol/protocol.go
//
// Newline-delimited text protocol spoken between the server and a player.
//
//	server→client  BOARD_DIM <n>
//	client→server  REVEAL <row> <col>
//	server→client  CARD <row> <col> <letter>
//	server→client  MATCH <r1> <c1> <r2> <c2>
//	server→client  MISMATCH <r1> <c1> <r2> <c2>
//	server→client  GAME_OVER
//	server→client  ERROR <message>
//
// Formatting helpers return a line without the trailing newline.
package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MaxLineLen bounds a client line, newline excluded.
const MaxLineLen = 4096

const (
	Reveal   = "REVEAL"
	BoardDim = "BOARD_DIM"
	Card     = "CARD"
	Match    = "MATCH"
	Mismatch = "MISMATCH"
	GameOver = "GAME_OVER"
	Error    = "ERROR"
)

// Protocol errors. A malformed line is reported to the peer, it never
// ends the connection.
var (
	ErrEmpty          = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrArgCount       = errors.New("wrong number of arguments")
	ErrBadCoordinate  = errors.New("coordinate is not an integer")
	ErrLineTooLong    = errors.New("line too long")
)

// ReadLine returns the next line from r without its trailing newline. A
// final line lacking a newline is returned before io.EOF. A line longer
// than MaxLineLen is consumed up to its newline and reported as
// ErrLineTooLong, leaving r positioned at the next line.
func ReadLine(r *bufio.Reader) (string, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			buf = append(buf, chunk...)
			if len(strings.TrimSuffix(string(buf), "\n")) > MaxLineLen {
				tooLong, buf = true, nil
			}
		}
		switch {
		case err == nil:
			if tooLong {
				return "", ErrLineTooLong
			}
			return strings.TrimSuffix(string(buf), "\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(buf) > 0:
			return string(buf), nil
		default:
			return "", err
		}
	}
}

// RevealCmd is a parsed REVEAL request.
type RevealCmd struct {
	Row int
	Col int
}

// ParseReveal parses one client line. Surrounding whitespace and a trailing
// carriage return are ignored.
func ParseReveal(line string) (RevealCmd, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return RevealCmd{}, ErrEmpty
	}
	if fields[0] != Reveal {
		return RevealCmd{}, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}
	if len(fields) != 3 {
		return RevealCmd{}, fmt.Errorf("%w: %s takes 2, got %d", ErrArgCount, Reveal, len(fields)-1)
	}
	row, err := strconv.Atoi(fields[1])
	if err != nil {
		return RevealCmd{}, fmt.Errorf("%w: %q", ErrBadCoordinate, fields[1])
	}
	col, err := strconv.Atoi(fields[2])
	if err != nil {
		return RevealCmd{}, fmt.Errorf("%w: %q", ErrBadCoordinate, fields[2])
	}
	return RevealCmd{Row: row, Col: col}, nil
}

// FormatReveal renders a client request.
func FormatReveal(row, col int) string {
	return fmt.Sprintf("%s %d %d", Reveal, row, col)
}

// FormatBoardDim announces the board side length.
func FormatBoardDim(n int) string {
	return fmt.Sprintf("%s %d", BoardDim, n)
}

// FormatCard acknowledges a single reveal.
func FormatCard(row, col int, letter rune) string {
	return fmt.Sprintf("%s %d %d %c", Card, row, col, letter)
}

// FormatVerdict reports a completed pair as MATCH or MISMATCH.
func FormatVerdict(match bool, r1, c1, r2, c2 int) string {
	kind := Mismatch
	if match {
		kind = Match
	}
	return fmt.Sprintf("%s %d %d %d %d", kind, r1, c1, r2, c2)
}

// FormatGameOver is sent once every pair is matched.
func FormatGameOver() string { return GameOver }

// FormatError reports a rejected command. Line breaks in msg are flattened
// so the message stays a single protocol line.
func FormatError(msg string) string {
	msg = strings.Join(strings.Fields(msg), " ")
	return Error + " " + msg
}
