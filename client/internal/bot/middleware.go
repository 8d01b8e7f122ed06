package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"spacedan/shared/protocol"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var ErrSlowDown = errors.New("slow down")

// Recover turns a panicking command into a generic failure.
func Recover(log zerolog.Logger) Middleware {
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) (r Reply, err error) {
			defer func() {
				if p := recover(); p != nil {
					log.Error().Str("cmd", inv.Name).Interface("panic", p).Msg("command panicked")
					r, err = Reply{}, fmt.Errorf("command %s panicked", inv.Name)
				}
			}()
			return c.Run(ctx, inv)
		})
	}
}

// Logging records each command with its duration.
func Logging(log zerolog.Logger) Middleware {
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) (Reply, error) {
			start := time.Now()
			r, err := c.Run(ctx, inv)
			ev := log.Debug()
			if err != nil {
				ev = log.Warn().Err(err)
			}
			ev.Str("cmd", inv.Name).Str("sender", inv.Sender.Username).Dur("took", time.Since(start)).Msg("command")
			return r, err
		})
	}
}

// Cooldown limits how fast one user can run commands.
func Cooldown(every time.Duration, burst int) Middleware {
	var mu sync.Mutex
	limiters := map[string]*rate.Limiter{}
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) (Reply, error) {
			mu.Lock()
			l, ok := limiters[inv.Sender.UserID]
			if !ok {
				l = rate.NewLimiter(rate.Every(every), burst)
				limiters[inv.Sender.UserID] = l
			}
			mu.Unlock()
			if !l.Allow() {
				return Reply{}, ErrSlowDown
			}
			return c.Run(ctx, inv)
		})
	}
}

// friendly maps an error to the text shown in chat.
func friendly(err error) string {
	var em *protocol.ErrorMsg
	switch {
	case errors.Is(err, ErrSlowDown):
		return "⏳ Slow down a little."
	case errors.Is(err, ErrInsufficientFunds):
		return "💸 Not enough coins."
	case errors.As(err, &em) && em.Code == "INSUFFICIENT_FUNDS":
		return "💸 Not enough coins."
	default:
		return "⚠️ That didn't work, try again later."
	}
}
