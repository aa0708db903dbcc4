package proto

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

type fed struct {
	lines     []string
	decodeErr int
	fatal     error
}

func feedAll(c *Codec, chunks ...[]byte) fed {
	var out fed
	for _, chunk := range chunks {
		for line, err := range c.Feed(chunk) {
			var de *DecodeError
			switch {
			case errors.As(err, &de):
				out.decodeErr++
			case err != nil:
				out.fatal = err
				return out
			default:
				out.lines = append(out.lines, line)
			}
		}
	}
	return out
}

func TestCodecSplitsCRLFAndLF(t *testing.T) {
	c := NewCodec()
	got := feedAll(c, []byte("PING :a\r\n:srv 001 bot :hi\n:srv NOTICE * :x\r\n"))
	want := []string{"PING :a", ":srv 001 bot :hi", ":srv NOTICE * :x"}
	if strings.Join(got.lines, "|") != strings.Join(want, "|") {
		t.Fatalf("lines = %q, want %q", got.lines, want)
	}
}

func TestCodecBuffersSplitTerminator(t *testing.T) {
	c := NewCodec()
	got := feedAll(c, []byte("PING :abc\r"), []byte("\nPING :d"), []byte("ef\r\n"))
	if len(got.lines) != 2 || got.lines[0] != "PING :abc" || got.lines[1] != "PING :def" {
		t.Fatalf("unexpected lines: %q", got.lines)
	}
	if c.Buffered() != 0 {
		t.Fatalf("expected empty buffer, got %d bytes", c.Buffered())
	}
}

func TestCodecSkipsUndecodableLine(t *testing.T) {
	c := NewCodec()
	got := feedAll(c, []byte("PING :one\r\n:a PRIVMSG #c :\xff\xfe\r\nPING :two\r\n"))
	if got.decodeErr != 1 {
		t.Fatalf("decode errors = %d, want 1", got.decodeErr)
	}
	if len(got.lines) != 2 || got.lines[1] != "PING :two" {
		t.Fatalf("stream did not continue after decode error: %q", got.lines)
	}
}

func TestCodecFallbackEncoding(t *testing.T) {
	c := NewCodec(WithFallback(charmap.ISO8859_1))
	got := feedAll(c, []byte(":a!b@c PRIVMSG #c :caf\xe9\r\n"))
	if got.decodeErr != 0 || len(got.lines) != 1 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if !strings.HasSuffix(got.lines[0], "café") {
		t.Fatalf("latin1 not decoded: %q", got.lines[0])
	}
}

func TestCodecDropsShortLines(t *testing.T) {
	c := NewCodec()
	got := feedAll(c, []byte("\r\n   \r\nPING\r\nPING :x\r\n"))
	if len(got.lines) != 1 || got.lines[0] != "PING :x" {
		t.Fatalf("unexpected lines: %q", got.lines)
	}
}

func TestCodecLineTooLongIsFatal(t *testing.T) {
	c := NewCodec(WithMaxLine(16))
	got := feedAll(c, []byte("PING :"+strings.Repeat("x", 32)))
	if !errors.Is(got.fatal, ErrLineTooLong) {
		t.Fatalf("expected ErrLineTooLong, got %v", got.fatal)
	}
	// the error is sticky
	again := feedAll(c, []byte("PING :ok\r\n"))
	if !errors.Is(again.fatal, ErrLineTooLong) || len(again.lines) != 0 {
		t.Fatalf("expected sticky fatal error, got %+v", again)
	}

	c.Reset()
	ok := feedAll(c, []byte("PING :ok\r\n"))
	if ok.fatal != nil || len(ok.lines) != 1 {
		t.Fatalf("reset codec should work again, got %+v", ok)
	}
}

func TestCodecTerminatedLineTooLongIsFatal(t *testing.T) {
	c := NewCodec(WithMaxLine(16))
	got := feedAll(c, []byte("PING :"+strings.Repeat("x", 32)+"\r\n"))
	if !errors.Is(got.fatal, ErrLineTooLong) {
		t.Fatalf("expected ErrLineTooLong, got %v", got.fatal)
	}
}

func TestCodecMaxLineExcludesTerminator(t *testing.T) {
	body := "PING :" + strings.Repeat("x", 10)
	for _, term := range []string{"\n", "\r\n"} {
		c := NewCodec(WithMaxLine(len(body)))
		got := feedAll(c, []byte(body+term))
		if got.fatal != nil || len(got.lines) != 1 || got.lines[0] != body {
			t.Fatalf("terminator %q: got %+v", term, got)
		}
	}

	// a full line whose '\n' arrives in the next read
	c := NewCodec(WithMaxLine(len(body)))
	first := feedAll(c, []byte(body+"\r"))
	if first.fatal != nil || len(first.lines) != 0 {
		t.Fatalf("partial line: got %+v", first)
	}
	second := feedAll(c, []byte("\n"))
	if second.fatal != nil || len(second.lines) != 1 || second.lines[0] != body {
		t.Fatalf("completed line: got %+v", second)
	}

	c = NewCodec(WithMaxLine(len(body)))
	over := feedAll(c, []byte(body+"y\r\n"))
	if !errors.Is(over.fatal, ErrLineTooLong) {
		t.Fatalf("expected ErrLineTooLong, got %+v", over)
	}
}

func TestCodecEarlyStopKeepsRemainder(t *testing.T) {
	c := NewCodec()
	for line := range c.Feed([]byte("PING :1\r\nPING :2\r\n")) {
		if line != "PING :1" {
			t.Fatalf("first line = %q", line)
		}
		break
	}
	got := feedAll(c, nil)
	if len(got.lines) != 1 || got.lines[0] != "PING :2" {
		t.Fatalf("remainder lost: %q", got.lines)
	}
}

func TestCodecChunkingInvariance(t *testing.T) {
	stream := []byte(strings.Join([]string{
		":srv 001 bot :Welcome to the network",
		"PING :123456",
		":a!b@c PRIVMSG #chan :hello world",
		"",
		":a!b@c PRIVMSG #chan :\xc3\x28 broken",
		"lonely",
		":a!b@c JOIN :#chan",
		":srv 372 bot :- " + strings.Repeat("m", 200),
	}, "\r\n") + "\n:x QUIT :bye\r\n")

	whole := feedAll(NewCodec(), stream)

	rnd := rand.New(rand.NewSource(1))
	for round := 0; round < 200; round++ {
		var chunks [][]byte
		for rest := stream; len(rest) > 0; {
			n := 1 + rnd.Intn(24)
			if n > len(rest) {
				n = len(rest)
			}
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}
		got := feedAll(NewCodec(), chunks...)
		if strings.Join(got.lines, "\n") != strings.Join(whole.lines, "\n") || got.decodeErr != whole.decodeErr {
			t.Fatalf("round %d: chunked result %+v differs from whole %+v", round, got, whole)
		}
	}
}

func TestFallbackEncoding(t *testing.T) {
	if enc, ok := FallbackEncoding(""); !ok || enc != nil {
		t.Fatalf("empty name should be strict utf-8")
	}
	if enc, ok := FallbackEncoding("Latin1"); !ok || enc != charmap.ISO8859_1 {
		t.Fatalf("latin1 not recognised")
	}
	if _, ok := FallbackEncoding("ebcdic"); ok {
		t.Fatalf("unknown encoding accepted")
	}
}
