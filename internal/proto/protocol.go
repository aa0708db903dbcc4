package proto

import (
	"errors"
	"fmt"
)

const (
	// MaxLineLength is the classic protocol limit for one line including CR-LF.
	MaxLineLength = 512
	// DefaultMaxInbound bounds how many bytes an unterminated inbound line may occupy.
	DefaultMaxInbound = 8192

	// ChannelSentinel starts every channel name.
	ChannelSentinel = '#'
	// CTCPDelim wraps CTCP payloads inside PRIVMSG text.
	CTCPDelim = '\x01'

	// ReasonClosed is the Error reason for any server ERROR line.
	ReasonClosed = "closed"

	RplWelcome        = "001"
	ErrNicknameInUse  = "433"
	CmdPing           = "PING"
	CmdError          = "ERROR"
	CmdInvite         = "INVITE"
	CmdJoin           = "JOIN"
	CmdPart           = "PART"
	CmdKick           = "KICK"
	CmdQuit           = "QUIT"
	CmdPrivmsg        = "PRIVMSG"
	closingLinkMarker = "ERROR :Closing Link:"
)

var (
	// ErrLineTooLong is fatal: the peer sent more than the inbound limit without a terminator.
	ErrLineTooLong = errors.New("inbound line exceeds limit")
	// ErrMalformedLine is returned for lines with fewer than two tokens.
	ErrMalformedLine = errors.New("malformed line")
	// ErrInvalidArgument is returned when an outbound argument could inject or break a command.
	ErrInvalidArgument = errors.New("invalid command argument")
)

// DecodeError reports a single line that could not be decoded. It is recoverable:
// the line is skipped and the stream continues.
type DecodeError struct {
	Line []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode line (%d bytes): %v", len(e.Line), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
