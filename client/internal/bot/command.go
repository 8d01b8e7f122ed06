// Package bot is the chat command engine: a registry of slash commands with
// middleware, the router that decides between private answers and channel
// announcements, and the per-user mini-game sessions behind the commands.
package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"spacedan/shared/protocol"
)

// Sender is who typed the command and what they look like right now.
type Sender struct {
	UserID   string
	Username string
	Balance  int64
	// BalanceErr is set when Balance could not be fetched.
	BalanceErr error
	Online     map[string]protocol.PresenceRecord
}

// funds returns the sender's balance, failing when it is unknown.
func (s Sender) funds() (int64, error) {
	if s.BalanceErr != nil {
		return 0, fmt.Errorf("balance: %w", s.BalanceErr)
	}
	return s.Balance, nil
}

// Invocation carries one parsed command.
type Invocation struct {
	Name   string // canonical command name
	Args   []string
	Sender Sender
}

// Arg returns the i-th argument or "".
func (inv *Invocation) Arg(i int) string {
	if i < len(inv.Args) {
		return inv.Args[i]
	}
	return ""
}

// Rest joins the arguments from i on.
func (inv *Invocation) Rest(i int) string {
	if i >= len(inv.Args) {
		return ""
	}
	return strings.Join(inv.Args[i:], " ")
}

// Reply is a command's answer. An empty Text means nothing to show.
type Reply struct {
	Text string
	// Private answers render only in the invoking client.
	Private bool
	// AsUser sends Text as the sender's own message instead of a bot message.
	AsUser bool
	VIP    bool
}

func Say(text string) Reply { return Reply{Text: text} }

// Note is a private reply for usage and validation messages.
func Note(text string) Reply { return Reply{Text: text, Private: true} }

type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) (Reply, error)
}

type RunFunc func(ctx context.Context, inv *Invocation) (Reply, error)

type funcCommand struct {
	name, usage, desc string
	aliases           []string
	run               RunFunc
}

func (c *funcCommand) Name() string        { return c.name }
func (c *funcCommand) Description() string { return c.desc }
func (c *funcCommand) Usage() string       { return c.usage }
func (c *funcCommand) Aliases() []string   { return c.aliases }
func (c *funcCommand) Run(ctx context.Context, inv *Invocation) (Reply, error) {
	return c.run(ctx, inv)
}

// Middleware wraps a command (e.g. logging, cooldown, panic recovery).
type Middleware func(Command) Command

// Apply applies middlewares in order; the first in the list is the outermost.
func Apply(c Command, mws ...Middleware) Command {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}

type wrapped struct {
	Command
	run RunFunc
}

func (w *wrapped) Run(ctx context.Context, inv *Invocation) (Reply, error) { return w.run(ctx, inv) }
func (w *wrapped) Unwrap() Command                                      { return w.Command }

// Wrap returns a command that runs run instead of c.Run.
func Wrap(c Command, run RunFunc) Command {
	return &wrapped{Command: c, run: run}
}

// Root unwraps middleware until the registered command is reached.
func Root(c Command) Command {
	for {
		u, ok := c.(interface{ Unwrap() Command })
		if !ok {
			return c
		}
		c = u.Unwrap()
	}
}

// Registry stores commands by name and alias.
type Registry struct {
	commands map[string]Command
	aliases  map[string]string
}

func NewRegistry() *Registry {
	return &Registry{commands: map[string]Command{}, aliases: map[string]string{}}
}

func (r *Registry) Register(c Command) {
	name := strings.ToLower(c.Name())
	r.commands[name] = c
	if a, ok := Root(c).(interface{ Aliases() []string }); ok {
		for _, alias := range a.Aliases() {
			r.aliases[strings.ToLower(alias)] = name
		}
	}
}

// Get resolves name or alias, returning nil when unknown.
func (r *Registry) Get(name string) Command {
	name = strings.ToLower(name)
	if canon, ok := r.aliases[name]; ok {
		name = canon
	}
	return r.commands[name]
}

// All returns every command sorted by name.
func (r *Registry) All() []Command {
	list := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

func usage(c Command) string {
	if u, ok := Root(c).(interface{ Usage() string }); ok && u.Usage() != "" {
		return "/" + c.Name() + " " + u.Usage()
	}
	return "/" + c.Name()
}
