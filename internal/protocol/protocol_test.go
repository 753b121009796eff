package protocol

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestParseReveal(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    RevealCmd
		wantErr error
	}{
		{name: "plain", line: "REVEAL 1 2", want: RevealCmd{Row: 1, Col: 2}},
		{name: "crlf", line: "REVEAL 0 3\r", want: RevealCmd{Row: 0, Col: 3}},
		{name: "extra spaces", line: "  REVEAL   4  5 ", want: RevealCmd{Row: 4, Col: 5}},
		{name: "negative", line: "REVEAL -1 0", want: RevealCmd{Row: -1, Col: 0}},
		{name: "empty", line: "", wantErr: ErrEmpty},
		{name: "blank", line: "   ", wantErr: ErrEmpty},
		{name: "unknown", line: "FLIP 1 2", wantErr: ErrUnknownCommand},
		{name: "lowercase", line: "reveal 1 2", wantErr: ErrUnknownCommand},
		{name: "too few", line: "REVEAL 1", wantErr: ErrArgCount},
		{name: "too many", line: "REVEAL 1 2 3", wantErr: ErrArgCount},
		{name: "bad row", line: "REVEAL x 2", wantErr: ErrBadCoordinate},
		{name: "bad col", line: "REVEAL 1 2.5", wantErr: ErrBadCoordinate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReveal(tt.line)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{FormatBoardDim(4), "BOARD_DIM 4"},
		{FormatReveal(2, 3), "REVEAL 2 3"},
		{FormatCard(0, 1, 'B'), "CARD 0 1 B"},
		{FormatVerdict(true, 0, 0, 1, 1), "MATCH 0 0 1 1"},
		{FormatVerdict(false, 0, 0, 0, 1), "MISMATCH 0 0 0 1"},
		{FormatGameOver(), "GAME_OVER"},
		{FormatError("card already revealed"), "ERROR card already revealed"},
		{FormatError("two\nlines"), "ERROR two lines"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestReadLine(t *testing.T) {
	atLimit := strings.Repeat("a", MaxLineLen)
	input := "REVEAL 1 2\n" +
		atLimit + "\n" +
		strings.Repeat("b", MaxLineLen+1) + "\n" +
		"\n" +
		"tail"
	// a small buffer forces lines across several reads
	r := bufio.NewReaderSize(strings.NewReader(input), 16)

	steps := []struct {
		want    string
		wantErr error
	}{
		{want: "REVEAL 1 2"},
		{want: atLimit},
		{wantErr: ErrLineTooLong},
		{want: ""},
		{want: "tail"},
		{wantErr: io.EOF},
	}
	for i, step := range steps {
		got, err := ReadLine(r)
		if !errors.Is(err, step.wantErr) {
			t.Fatalf("step %d: err = %v, want %v", i, err, step.wantErr)
		}
		if got != step.want {
			t.Fatalf("step %d: got %d bytes, want %d", i, len(got), len(step.want))
		}
	}
}
