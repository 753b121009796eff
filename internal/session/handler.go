// internal/session/handler.go
//
// Connection handler: drives one board through the line protocol.
// Responsibilities:
//   - Deal a fresh board per connection and announce BOARD_DIM.
//   - Read REVEAL lines one at a time, answer CARD / MATCH / MISMATCH.
//   - Report malformed lines and board rule violations with ERROR and keep
//     the connection open.
//   - Send GAME_OVER and close once every pair is matched.
//   - Record a history Result when the connection ends.
//
// Notes:
//   - Processing inside a connection is strictly sequential, including the
//     pause before a verdict. The board never leaves this goroutine.
//   - There is no idle timeout; a silent peer holds its connection until it
//     disconnects or the server shuts down.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/concentration/internal/game"
	"github.com/robalobadob/concentration/internal/protocol"
	"github.com/robalobadob/concentration/internal/store"
)

// BoardFactory deals a new board of the given dimension.
type BoardFactory func(dim int) (*game.Board, error)

// Config controls a Handler.
type Config struct {
	Dimension   int           // board side length for every connection
	RevealDelay time.Duration // pause before MATCH/MISMATCH
	Cheat       bool          // log each board's solution
	NewBoard    BoardFactory  // defaults to game.New
	Store       store.Store   // optional history ledger
	Logger      zerolog.Logger
}

// Handler serves connections. It is safe for concurrent use: every call to
// Handle owns its own board.
type Handler struct {
	cfg Config
	log zerolog.Logger
}

// New constructs a Handler.
func New(cfg Config) *Handler {
	if cfg.NewBoard == nil {
		cfg.NewBoard = game.New
	}
	return &Handler{cfg: cfg, log: cfg.Logger}
}

// Handle plays one game over conn and closes it. It returns when the game
// is over, the peer disconnects, an I/O error occurs or ctx is cancelled.
func (h *Handler) Handle(ctx context.Context, conn net.Conn, transport string) store.Result {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	res := store.Result{
		Remote:    remoteAddr(conn),
		Transport: transport,
		Dimension: h.cfg.Dimension,
		StartedAt: time.Now().UTC(),
	}
	logger := h.log.With().Str("remote", res.Remote).Str("transport", transport).Logger()

	board, err := h.cfg.NewBoard(h.cfg.Dimension)
	if err != nil {
		logger.Error().Err(err).Int("dimension", h.cfg.Dimension).Msg("cannot deal board")
		_ = writeLine(conn, protocol.FormatError(err.Error()))
		return res
	}
	res.GameID = board.ID
	logger = logger.With().Str("game", board.ID).Logger()
	if h.cfg.Cheat {
		logger.Info().Str("solution", board.Solution()).Msg("cheat mode")
	}

	s := &session{
		h:     h,
		board: board,
		conn:  conn,
		log:   logger,
		res:   &res,
	}
	err = s.run(ctx)
	res.Matches = board.Matches()
	res.EndedAt = time.Now().UTC()

	var ev *zerolog.Event
	if err != nil && ctx.Err() == nil {
		ev = logger.Warn().Err(err)
	} else {
		ev = logger.Info()
	}
	ev.Int("reveals", res.Reveals).Int("matches", res.Matches).Bool("completed", res.Completed).
		Dur("duration", res.EndedAt.Sub(res.StartedAt)).Msg("session ended")

	h.record(res)
	return res
}

func (h *Handler) record(res store.Result) {
	if h.cfg.Store == nil || res.GameID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.cfg.Store.Save(ctx, res); err != nil {
		h.log.Warn().Err(err).Str("game", res.GameID).Msg("save result")
	}
}

// session is the per-connection state machine.
type session struct {
	h     *Handler
	board *game.Board
	conn  net.Conn
	log   zerolog.Logger
	res   *store.Result
}

// run returns nil when the game completes or the peer hangs up cleanly,
// and the transport error otherwise.
func (s *session) run(ctx context.Context) error {
	if err := writeLine(s.conn, protocol.FormatBoardDim(s.board.Dim())); err != nil {
		return fmt.Errorf("send board dimension: %w", err)
	}

	r := bufio.NewReader(s.conn)
	for {
		line, err := protocol.ReadLine(r)
		switch {
		case errors.Is(err, protocol.ErrLineTooLong):
			s.log.Debug().Int("limit", protocol.MaxLineLen).Msg("line too long")
			if err := s.reject(err); err != nil {
				return err
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("read: %w", err)
		}
		done, err := s.handleLine(ctx, line)
		if err != nil || done {
			return err
		}
	}
}

// handleLine processes one client line. done is true once GAME_OVER has
// been sent; err is only set for transport failures.
func (s *session) handleLine(ctx context.Context, line string) (done bool, err error) {
	cmd, err := protocol.ParseReveal(line)
	if err != nil {
		s.log.Debug().Err(err).Str("line", line).Msg("protocol error")
		return false, s.reject(err)
	}

	m, err := s.board.Reveal(cmd.Row, cmd.Col)
	if err != nil {
		s.log.Debug().Err(err).Int("row", cmd.Row).Int("col", cmd.Col).Msg("reveal rejected")
		return false, s.reject(err)
	}
	s.res.Reveals++

	// The newest card is Second once a pair is complete.
	card := m.First
	if m.Ready() {
		card = m.Second
	}
	if err := writeLine(s.conn, protocol.FormatCard(card.Row, card.Col, card.Letter)); err != nil {
		return false, err
	}
	if !m.Ready() {
		return false, nil
	}

	s.board.UpdateRevealStatus(m)
	if err := s.pause(ctx); err != nil {
		return false, err
	}
	verdict := protocol.FormatVerdict(m.Match, m.First.Row, m.First.Col, m.Second.Row, m.Second.Col)
	s.log.Debug().Bool("match", m.Match).Int("matches", s.board.Matches()).Msg("pair resolved")
	if err := writeLine(s.conn, verdict); err != nil {
		return false, err
	}

	if !s.board.GameOver() {
		return false, nil
	}
	s.res.Completed = true
	return true, writeLine(s.conn, protocol.FormatGameOver())
}

// pause waits RevealDelay so a remote viewer can show both cards.
func (s *session) pause(ctx context.Context) error {
	d := s.h.cfg.RevealDelay
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *session) reject(err error) error {
	return writeLine(s.conn, protocol.FormatError(err.Error()))
}

func writeLine(w io.Writer, line string) error {
	_, err := io.WriteString(w, line+"\n")
	return err
}

func remoteAddr(conn net.Conn) string {
	if a := conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}
