package proto

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCommandEncoding(t *testing.T) {
	mustLine := func(l Line, err error) string {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return l.String()
	}

	tests := []struct {
		got  string
		want string
	}{
		{mustLine(Pass("secret")), "PASS secret"},
		{mustLine(User("skeleton", "acid.vegas/skeleton")), "USER skeleton 0 * :acid.vegas/skeleton"},
		{mustLine(Nick("skeleton")), "NICK skeleton"},
		{mustLine(JoinLine("#dev", "")), "JOIN #dev"},
		{mustLine(JoinLine("#dev", "hunter2")), "JOIN #dev hunter2"},
		{mustLine(PartLine("#dev", "")), "PART #dev"},
		{mustLine(PartLine("#dev", "later all")), "PART #dev :later all"},
		{mustLine(Privmsg("#dev", "hello world")), "PRIVMSG #dev :hello world"},
		{mustLine(Notice("bob", "hi")), "NOTICE bob :hi"},
		{mustLine(Action("#dev", "waves")), "PRIVMSG #dev :\x01ACTION waves\x01"},
		{mustLine(CTCP("bob", "VERSION")), "PRIVMSG bob :\x01VERSION\x01"},
		{mustLine(Identify("bot", "pw")), "PRIVMSG NickServ :IDENTIFY bot pw"},
		{mustLine(InviteLine("bob", "#dev")), "INVITE bob #dev"},
		{mustLine(Mode("bot", "+B")), "MODE bot +B"},
		{mustLine(Oper("bot", "pw")), "OPER bot pw"},
		{mustLine(Topic("#dev", "new topic")), "TOPIC #dev :new topic"},
		{mustLine(Pong("abc")), "PONG :abc"},
		{mustLine(QuitLine("")), "QUIT"},
		{mustLine(QuitLine("bye")), "QUIT :bye"},
		{mustLine(Raw("WHO #dev")), "WHO #dev"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestCommandRejectsInjection(t *testing.T) {
	cases := []func() (Line, error){
		func() (Line, error) { return Privmsg("#dev", "hi\r\nQUIT :pwned") },
		func() (Line, error) { return Privmsg("#dev\nQUIT", "hi") },
		func() (Line, error) { return Nick("bad nick") },
		func() (Line, error) { return Nick("") },
		func() (Line, error) { return JoinLine(":#dev", "") },
		func() (Line, error) { return Raw("PRIVMSG #a :x\nQUIT") },
		func() (Line, error) { return Raw("  ") },
		func() (Line, error) { return Notice("bob", "nul\x00byte") },
	}
	for i, fn := range cases {
		if _, err := fn(); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("case %d: expected ErrInvalidArgument, got %v", i, err)
		}
	}
}

func TestCommandTruncatesToMaxLine(t *testing.T) {
	line, err := Privmsg("#dev", strings.Repeat("a", 1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wire := line.Bytes()
	if len(wire) != MaxLineLength {
		t.Fatalf("wire length = %d, want %d", len(wire), MaxLineLength)
	}
	if !strings.HasSuffix(string(wire), "a\r\n") || strings.Count(string(wire), "\r\n") != 1 {
		t.Fatalf("truncated line is malformed: %q", wire[len(wire)-8:])
	}
}

func TestCommandTruncationKeepsRunes(t *testing.T) {
	line, err := Privmsg("#dev", strings.Repeat("é", 400))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(line.Bytes()) > MaxLineLength {
		t.Fatalf("line too long: %d", len(line.Bytes()))
	}
	if !utf8.ValidString(line.String()) {
		t.Fatalf("truncation split a rune")
	}
}

func TestLineVerb(t *testing.T) {
	if v := Line("PRIVMSG #a :b").Verb(); v != "PRIVMSG" {
		t.Fatalf("verb = %q", v)
	}
	if v := Line("QUIT").Verb(); v != "QUIT" {
		t.Fatalf("verb = %q", v)
	}
}
