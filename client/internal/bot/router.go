package bot

import (
	"context"
	"strings"
)

// privateCommands answer only in the invoking client; everything else is
// announced to the channel as a bot message.
var privateCommands = map[string]bool{
	"bal":    true,
	"help":   true,
	"online": true,
	"ping":   true,
	"time":   true,
	"status": true,
}

// IsPrivate reports whether the canonical command name answers privately.
func IsPrivate(name string) bool { return privateCommands[name] }

// Parse splits "/name a b" into its lower-cased name and arguments.
func Parse(text string) (name string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

type Router struct {
	reg *Registry
	mws []Middleware
}

func NewRouter(reg *Registry, mws ...Middleware) *Router {
	return &Router{reg: reg, mws: mws}
}

func (r *Router) Registry() *Registry { return r.reg }

// Lookup returns the canonical command for name, or nil.
func (r *Router) Lookup(name string) Command { return r.reg.Get(name) }

// Dispatch runs text as a command. handled is false for plain text and for
// unknown commands, which are ignored without a reply.
func (r *Router) Dispatch(ctx context.Context, text string, s Sender) (reply Reply, handled bool) {
	name, args, ok := Parse(text)
	if !ok {
		return Reply{}, false
	}
	c := r.reg.Get(name)
	if c == nil {
		return Reply{}, false
	}
	inv := &Invocation{Name: c.Name(), Args: args, Sender: s}
	reply, err := Apply(c, r.mws...).Run(ctx, inv)
	if err != nil {
		reply = Note(friendly(err))
	}
	if IsPrivate(inv.Name) {
		reply.Private = true
	}
	return reply, true
}
