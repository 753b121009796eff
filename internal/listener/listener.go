// internal/listener/listener.go
//
// TCP accept loop.
// Responsibilities:
//   - Bind the configured address (failure is fatal for the process).
//   - Accept connections until the context is cancelled, handing each one
//     to its own goroutine.
//   - Log and retry transient accept errors with a capped backoff.
//   - Track live connections and wait for them on shutdown.
//
// Connections share nothing: each handler call deals its own board.
package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// HandleFunc serves one accepted connection and must close it.
type HandleFunc func(ctx context.Context, conn net.Conn)

const maxAcceptBackoff = time.Second

// Listener accepts TCP connections and dispatches them.
type Listener struct {
	addr   string
	handle HandleFunc
	log    zerolog.Logger

	ln     net.Listener
	active atomic.Int64

	mu      sync.Mutex // orders begin against drain
	closing bool
	wg      sync.WaitGroup
}

// New constructs a Listener for addr (e.g. ":5000").
func New(addr string, handle HandleFunc, logger zerolog.Logger) *Listener {
	return &Listener{addr: addr, handle: handle, log: logger}
}

// Listen binds the address.
func (l *Listener) Listen() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", l.addr, err)
	}
	l.ln = ln
	return nil
}

// Addr returns the bound address, nil before Listen.
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Active reports the number of connections being served.
func (l *Listener) Active() int64 { return l.active.Load() }

// Track counts a connection served outside the accept loop (for example a
// WebSocket) so Active and Serve's shutdown wait include it. Once Serve has
// started draining, fn is not run and Track reports false.
func (l *Listener) Track(fn func()) bool {
	done, ok := l.begin()
	if !ok {
		return false
	}
	defer done()
	fn()
	return true
}

func (l *Listener) begin() (done func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closing {
		return nil, false
	}
	l.wg.Add(1)
	l.active.Add(1)
	return func() {
		l.active.Add(-1)
		l.wg.Done()
	}, true
}

// drain refuses new connections and waits for the live ones.
func (l *Listener) drain() {
	l.mu.Lock()
	l.closing = true
	l.mu.Unlock()
	l.wg.Wait()
}

// Serve runs the accept loop. It returns nil after ctx is cancelled and
// every connection has finished, or the error that stopped accepting.
func (l *Listener) Serve(ctx context.Context) error {
	if l.ln == nil {
		if err := l.Listen(); err != nil {
			return err
		}
	}
	l.log.Info().Str("addr", l.ln.Addr().String()).Msg("accepting connections")

	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()

	var backoff time.Duration
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				l.drain()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				l.drain()
				return err
			}
			backoff = nextBackoff(backoff)
			l.log.Error().Err(err).Dur("retry_in", backoff).Msg("accept failed")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			continue
		}
		backoff = 0

		l.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("connection accepted")
		done, ok := l.begin()
		if !ok {
			_ = conn.Close()
			continue
		}
		go func() {
			defer done()
			l.handle(ctx, conn)
		}()
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > maxAcceptBackoff {
		d = maxAcceptBackoff
	}
	return d
}
