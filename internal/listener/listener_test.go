package listener

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func startListener(t *testing.T, handle HandleFunc) (*Listener, context.CancelFunc, <-chan error) {
	t.Helper()
	l := New("127.0.0.1:0", handle, zerolog.Nop())
	if err := l.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Serve(ctx) }()
	t.Cleanup(cancel)
	return l, cancel, errc
}

func TestEachConnectionIsServedIndependently(t *testing.T) {
	release := make(chan struct{})
	l, _, _ := startListener(t, func(ctx context.Context, conn net.Conn) {
		defer conn.Close()
		fmt.Fprintln(conn, "HELLO")
		select {
		case <-release:
		case <-ctx.Done():
		}
	})

	var conns []net.Conn
	for i := 0; i < 3; i++ {
		c, err := net.Dial("tcp", l.Addr().String())
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		conns = append(conns, c)
		_ = c.SetDeadline(time.Now().Add(5 * time.Second))
		line, err := bufio.NewReader(c).ReadString('\n')
		if err != nil || strings.TrimSpace(line) != "HELLO" {
			t.Fatalf("conn %d: %q %v", i, line, err)
		}
	}
	// every handler is parked on release at the same time
	if got := l.Active(); got != 3 {
		t.Fatalf("active = %d, want 3", got)
	}
	close(release)
	for _, c := range conns {
		_ = c.Close()
	}
	waitFor(t, func() bool { return l.Active() == 0 })
}

func TestServeStopsOnCancel(t *testing.T) {
	l, cancel, errc := startListener(t, func(ctx context.Context, conn net.Conn) {
		defer conn.Close()
		<-ctx.Done()
	})

	c, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	waitFor(t, func() bool { return l.Active() == 1 })

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
	if l.Active() != 0 {
		t.Fatalf("active = %d after shutdown", l.Active())
	}
	if _, err := net.DialTimeout("tcp", l.Addr().String(), time.Second); err == nil {
		t.Fatal("listener still accepting")
	}
}

func TestListenFailsOnBusyPort(t *testing.T) {
	l, _, _ := startListener(t, func(ctx context.Context, conn net.Conn) { conn.Close() })
	other := New(l.Addr().String(), nil, zerolog.Nop())
	if err := other.Listen(); err == nil {
		t.Fatal("expected bind error")
	}
}

func TestTrack(t *testing.T) {
	l := New("127.0.0.1:0", nil, zerolog.Nop())
	ran := l.Track(func() {
		if l.Active() != 1 {
			t.Fatalf("active = %d inside Track", l.Active())
		}
	})
	if !ran {
		t.Fatal("Track refused before shutdown")
	}
	if l.Active() != 0 {
		t.Fatalf("active = %d after Track", l.Active())
	}
}

func TestTrackRefusedAfterShutdown(t *testing.T) {
	l, cancel, errc := startListener(t, func(ctx context.Context, conn net.Conn) { conn.Close() })
	cancel()
	select {
	case <-errc:
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}

	called := false
	if l.Track(func() { called = true }) {
		t.Fatal("Track accepted work after shutdown")
	}
	if called || l.Active() != 0 {
		t.Fatalf("called = %v, active = %d", called, l.Active())
	}
}

func TestNextBackoff(t *testing.T) {
	d := nextBackoff(0)
	if d != 5*time.Millisecond {
		t.Fatalf("first backoff = %s", d)
	}
	for i := 0; i < 20; i++ {
		d = nextBackoff(d)
	}
	if d != maxAcceptBackoff {
		t.Fatalf("capped backoff = %s", d)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
