package core

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeServer is the remote end of a net.Pipe handed to a Session.
type fakeServer struct {
	conn  net.Conn
	lines chan string
}

func newFakeServer(conn net.Conn) *fakeServer {
	fs := &fakeServer{conn: conn, lines: make(chan string, 64)}
	go func() {
		defer close(fs.lines)
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			fs.lines <- strings.TrimSuffix(sc.Text(), "\r")
		}
	}()
	return fs
}

func (fs *fakeServer) send(t *testing.T, lines ...string) {
	t.Helper()
	for _, l := range lines {
		_ = fs.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if _, err := fs.conn.Write([]byte(l + "\r\n")); err != nil {
			t.Fatalf("server write %q: %v", l, err)
		}
	}
}

func (fs *fakeServer) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got, ok := <-fs.lines:
		if !ok {
			t.Fatalf("connection closed, expected %q", want)
		}
		if got != want {
			t.Fatalf("got line %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

// expectClosed asserts the client sends nothing more and closes the connection.
func (fs *fakeServer) expectClosed(t *testing.T) {
	t.Helper()
	select {
	case got, ok := <-fs.lines:
		if ok {
			t.Fatalf("unexpected line after close: %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not closed")
	}
}

func (fs *fakeServer) close() {
	_ = fs.conn.Close()
}

// pipeDialer hands out one net.Pipe per dial and publishes the server side.
type pipeDialer struct {
	dials   atomic.Int32
	servers chan *fakeServer
}

func newPipeDialer() *pipeDialer {
	return &pipeDialer{servers: make(chan *fakeServer, 8)}
}

func (d *pipeDialer) Dial(context.Context) (net.Conn, error) {
	d.dials.Add(1)
	client, server := net.Pipe()
	d.servers <- newFakeServer(server)
	return client, nil
}

func (d *pipeDialer) next(t *testing.T) *fakeServer {
	t.Helper()
	select {
	case fs := <-d.servers:
		t.Cleanup(fs.close)
		return fs
	case <-time.After(2 * time.Second):
		t.Fatal("session did not dial")
		return nil
	}
}

func mustState(t *testing.T, s *Session, want State) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("expected state %v, got %v", want, s.State())
}

func testOptions() Options {
	return Options{
		Nickname:       "bot",
		Username:       "bot",
		Realname:       "Bot",
		Channel:        "#dev",
		SendInterval:   2 * time.Millisecond,
		ConnectTimeout: time.Second,
		ReconnectDelay: time.Hour,
		ReconnectMax:   time.Hour,
		RejoinDelay:    10 * time.Millisecond,
		MaxNickRetries: 3,
		QuitGrace:      time.Second,
	}
}

// startSession runs s in the background and returns a function that stops it
// and reports Run's error.
func startSession(t *testing.T, s *Session) (stop func() error, done <-chan error) {
	t.Helper()
	s.Backoff().Jitter = 0

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run(ctx)
	}()
	t.Cleanup(cancel)

	return func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("session did not stop")
			return nil
		}
	}, errCh
}

// register drives the fake server through the handshake.
func register(t *testing.T, fs *fakeServer) {
	t.Helper()
	fs.expect(t, "USER bot 0 * :Bot")
	fs.expect(t, "NICK bot")
	fs.send(t, ":irc.test 001 bot :Welcome to the test network")
}
