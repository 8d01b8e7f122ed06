package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"spacedan/shared/logging"
	"spacedan/shared/protocol"

	"github.com/rs/zerolog"
)

// Presence changes the sender's own presence record.
type Presence interface {
	SetStatus(ctx context.Context, status string) error
}

// Channels is the channel side of the chat subsystem.
type Channels interface {
	// Clear purges the active channel.
	Clear(ctx context.Context) error
	JoinVoice(ctx context.Context, name string) (protocol.ChannelDescriptor, error)
	LeaveVoice(ctx context.Context) error
}

// Directory resolves usernames that are not online.
type Directory interface {
	Lookup(ctx context.Context, username string) (protocol.Profile, error)
}

var ErrUnknownUser = errors.New("unknown user")

type Deps struct {
	Economy   Economy
	Presence  Presence
	Channels  Channels
	Directory Directory
	Rand      Rand
	Now       func() time.Time
	Log       *zerolog.Logger
}

// Bot owns the command set and the mini-game sessions of one chat
// subsystem.
type Bot struct {
	econ     Economy
	presence Presence
	channels Channels
	dir      Directory
	rng      Rand
	now      func() time.Time
	log      zerolog.Logger

	games  *Sessions
	router *Router
}

func New(d Deps) *Bot {
	b := &Bot{
		econ:     d.Economy,
		presence: d.Presence,
		channels: d.Channels,
		dir:      d.Directory,
		rng:      d.Rand,
		now:      d.Now,
		log:      logging.For("bot"),
	}
	if d.Log != nil {
		b.log = *d.Log
	}
	if b.now == nil {
		b.now = time.Now
	}
	b.games = NewSessions(b.rng)

	reg := NewRegistry()
	for _, c := range b.commands() {
		reg.Register(c)
	}
	b.router = NewRouter(reg, Recover(b.log), Logging(b.log), Cooldown(time.Second, 5))
	return b
}

func (b *Bot) Router() *Router     { return b.router }
func (b *Bot) Sessions() *Sessions { return b.games }

// Dispatch runs text as a command for s.
func (b *Bot) Dispatch(ctx context.Context, text string, s Sender) (Reply, bool) {
	return b.router.Dispatch(ctx, text, s)
}

// Reset drops all game state (logout).
func (b *Bot) Reset() { b.games.Reset() }

func cmd(name, usage, desc string, run RunFunc, aliases ...string) Command {
	return &funcCommand{name: name, usage: usage, desc: desc, run: run, aliases: aliases}
}

func (b *Bot) commands() []Command {
	var out []Command
	out = append(out, b.economyCommands()...)
	out = append(out, b.gameCommands()...)
	out = append(out, b.utilityCommands()...)
	out = append(out, b.funCommands()...)
	return out
}

// parseAmount accepts a positive whole number of coins.
func parseAmount(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// resolve finds a user by @name, checking online users before the directory.
func (b *Bot) resolve(ctx context.Context, s Sender, name string) (protocol.Profile, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "@")
	if name == "" {
		return protocol.Profile{}, ErrUnknownUser
	}
	for _, r := range s.Online {
		if strings.EqualFold(r.Username, name) {
			return protocol.Profile{ID: r.ID, Username: r.Username, AvatarURL: r.AvatarURL}, nil
		}
	}
	if b.dir == nil {
		return protocol.Profile{}, ErrUnknownUser
	}
	p, err := b.dir.Lookup(ctx, name)
	if err != nil {
		return protocol.Profile{}, ErrUnknownUser
	}
	return p, nil
}

// target returns the display name an action is aimed at, defaulting to the
// sender.
func target(inv *Invocation) string {
	if t := strings.TrimPrefix(inv.Arg(0), "@"); t != "" {
		return t
	}
	return inv.Sender.Username
}
