package proto

import (
	"bytes"
	"errors"
	"iter"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var errInvalidUTF8 = errors.New("invalid utf-8 sequence")

// Codec splits an inbound byte stream into decoded protocol lines.
// It is not safe for concurrent use; one read loop owns one Codec.
type Codec struct {
	buf      []byte
	max      int
	fallback encoding.Encoding
	fatal    error
}

// CodecOption customizes a Codec.
type CodecOption func(*Codec)

// WithMaxLine sets the largest line (terminator excluded) the codec buffers.
func WithMaxLine(n int) CodecOption {
	return func(c *Codec) {
		if n > 0 {
			c.max = n
		}
	}
}

// WithFallback decodes non-UTF-8 lines with enc instead of reporting a DecodeError.
func WithFallback(enc encoding.Encoding) CodecOption {
	return func(c *Codec) {
		c.fallback = enc
	}
}

// FallbackEncoding maps a configuration name to a fallback encoding.
// An empty name means strict UTF-8; ok is false for unknown names.
func FallbackEncoding(name string) (enc encoding.Encoding, ok bool) {
	switch strings.ToLower(name) {
	case "", "none", "utf8", "utf-8":
		return nil, true
	case "latin1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, true
	case "latin9", "iso-8859-15":
		return charmap.ISO8859_15, true
	case "cp1252", "windows-1252":
		return charmap.Windows1252, true
	default:
		return nil, false
	}
}

// NewCodec builds a codec with DefaultMaxInbound as the line bound.
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{max: DefaultMaxInbound}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Feed appends data to the internal buffer and returns the complete lines now
// available. Lines are consumed lazily: stopping the iteration early leaves the
// rest buffered for the next Feed.
//
// A *DecodeError is yielded for a line that cannot be decoded and iteration
// continues. ErrLineTooLong is fatal and is yielded on every later Feed too.
// Lines with fewer than two whitespace separated tokens are dropped.
func (c *Codec) Feed(data []byte) iter.Seq2[string, error] {
	if c.fatal == nil {
		c.buf = append(c.buf, data...)
	}
	return func(yield func(string, error) bool) {
		for {
			if c.fatal != nil {
				yield("", c.fatal)
				return
			}
			i := bytes.IndexByte(c.buf, '\n')
			if i < 0 {
				// a trailing '\r' may still be waiting for its '\n'
				if len(c.buf) > c.max+1 {
					c.fail()
					continue
				}
				return
			}
			raw := bytes.TrimSuffix(c.buf[:i], []byte{'\r'})
			if len(raw) > c.max {
				c.fail()
				continue
			}
			c.buf = c.buf[i+1:]

			line, err := c.decode(raw)
			if err != nil {
				if !yield("", err) {
					return
				}
				continue
			}
			if !hasMinTokens(line) {
				continue
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}

// Buffered returns the number of bytes waiting for a terminator.
func (c *Codec) Buffered() int {
	return len(c.buf)
}

// Reset drops buffered data and clears a fatal state.
func (c *Codec) Reset() {
	c.buf = nil
	c.fatal = nil
}

func (c *Codec) fail() {
	c.fatal = ErrLineTooLong
	c.buf = nil
}

func (c *Codec) decode(raw []byte) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	if c.fallback != nil {
		out, err := c.fallback.NewDecoder().Bytes(raw)
		if err == nil {
			return string(out), nil
		}
		return "", &DecodeError{Line: bytes.Clone(raw), Err: err}
	}
	return "", &DecodeError{Line: bytes.Clone(raw), Err: errInvalidUTF8}
}

func hasMinTokens(line string) bool {
	return len(strings.Fields(line)) >= 2
}
