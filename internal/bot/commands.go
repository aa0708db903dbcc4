package bot

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vovakirdan/ircbot/internal/core"
	"github.com/vovakirdan/ircbot/internal/proto"
)

// Request is one parsed channel command.
type Request struct {
	Channel string
	Nick    string
	// Source is the sender's nick!user@host.
	Source string
	Name   string
	Args   []string
	Admin  bool
}

// CommandFunc runs a command. A returned error is reported in the channel.
type CommandFunc func(s core.Sender, req Request) error

// Command is an entry of the command registry.
type Command struct {
	Name      string
	Usage     string
	AdminOnly bool
	Run       CommandFunc
}

// Registry maps lower-case command names to commands.
type Registry struct {
	commands map[string]Command
}

// NewRegistry returns a registry with ping and help installed.
func NewRegistry() *Registry {
	r := &Registry{commands: make(map[string]Command)}
	_ = r.Register(Command{Name: "ping", Usage: "ping", Run: pingCommand})
	_ = r.Register(Command{Name: "help", Usage: "help", Run: r.helpCommand})
	return r
}

// Register adds cmd. Names are case-insensitive and must be unique.
func (r *Registry) Register(cmd Command) error {
	name := strings.ToLower(strings.TrimSpace(cmd.Name))
	if name == "" || strings.ContainsAny(name, " \t") {
		return fmt.Errorf("invalid command name %q", cmd.Name)
	}
	if cmd.Run == nil {
		return fmt.Errorf("command %q has no handler", name)
	}
	if _, ok := r.commands[name]; ok {
		return fmt.Errorf("command %q already registered", name)
	}
	cmd.Name = name
	r.commands[name] = cmd
	return nil
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.commands[strings.ToLower(name)]
	return cmd, ok
}

// Names returns the sorted command names visible to a user.
func (r *Registry) Names(admin bool) []string {
	names := make([]string, 0, len(r.commands))
	for name, cmd := range r.commands {
		if cmd.AdminOnly && !admin {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func pingCommand(s core.Sender, req Request) error {
	return reply(s, req.Channel, "pong")
}

func (r *Registry) helpCommand(s core.Sender, req Request) error {
	if len(req.Args) > 0 {
		cmd, ok := r.Lookup(req.Args[0])
		if !ok || (cmd.AdminOnly && !req.Admin) {
			return errors.New("no such command: " + req.Args[0])
		}
		return reply(s, req.Channel, "Usage: "+cmd.Usage)
	}
	return reply(s, req.Channel, "Commands: "+strings.Join(r.Names(req.Admin), ", "))
}

// reply sends a PRIVMSG to target through the session queue.
func reply(s core.Sender, target, text string) error {
	line, err := proto.Privmsg(target, text)
	if err != nil {
		return err
	}
	return s.Send(line)
}
