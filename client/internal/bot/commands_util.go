package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

func (b *Bot) utilityCommands() []Command {
	return []Command{
		cmd("help", "[command]", "List commands or explain one", b.help),
		cmd("online", "", "Who is here right now", b.online, "who"),
		cmd("status", "", "Show your presence record", b.status),
		cmd("ping", "", "Check the bot is alive", b.ping),
		cmd("time", "", "Show the current time", b.clock),
		cmd("mood", "<text>", "Set your status line (empty to clear)", b.mood),
		cmd("clear", "", "Delete every message in this channel", b.clear),
		cmd("voice", "<room>", "Join a voice room and its chat channel", b.voice),
		cmd("leave", "", "Leave your voice room", b.leave),
	}
}

func (b *Bot) help(ctx context.Context, inv *Invocation) (Reply, error) {
	if name := strings.TrimPrefix(inv.Arg(0), "/"); name != "" {
		c := b.router.Lookup(name)
		if c == nil {
			return Say(fmt.Sprintf("No command called /%s.", name)), nil
		}
		return Say(fmt.Sprintf("%s: %s", usage(c), c.Description())), nil
	}
	var sb strings.Builder
	sb.WriteString("Commands:")
	for _, c := range b.router.Registry().All() {
		fmt.Fprintf(&sb, "\n  %s  %s", usage(c), c.Description())
	}
	return Say(sb.String()), nil
}

func (b *Bot) online(ctx context.Context, inv *Invocation) (Reply, error) {
	if len(inv.Sender.Online) == 0 {
		return Say("Nobody is online."), nil
	}
	names := make([]string, 0, len(inv.Sender.Online))
	for _, r := range inv.Sender.Online {
		n := r.Username
		if r.InVoice {
			n += " 🎙️"
		}
		if r.Status != "" {
			n += " (" + r.Status + ")"
		}
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return strings.ToLower(names[i]) < strings.ToLower(names[j]) })
	return Say(fmt.Sprintf("🟢 %d online: %s", len(names), strings.Join(names, ", "))), nil
}

func (b *Bot) status(ctx context.Context, inv *Invocation) (Reply, error) {
	r, ok := inv.Sender.Online[inv.Sender.UserID]
	if !ok {
		return Say("You are not tracked yet."), nil
	}
	voice := "not in voice"
	if r.InVoice {
		voice = "in voice room " + r.VoiceRoom
	}
	mood := r.Status
	if mood == "" {
		mood = "none"
	}
	bal := "unknown"
	if n, err := inv.Sender.funds(); err == nil {
		bal = strconv.FormatInt(n, 10)
	}
	return Say(fmt.Sprintf("%s: %s, status %q, active since %s, balance %s.",
		r.Username, voice, mood, r.LastActive.Local().Format(time.Kitchen), bal)), nil
}

func (b *Bot) ping(ctx context.Context, inv *Invocation) (Reply, error) {
	return Say("🏓 Pong!"), nil
}

func (b *Bot) clock(ctx context.Context, inv *Invocation) (Reply, error) {
	return Say("🕒 " + b.now().Format("Mon Jan 2 15:04:05 MST 2006")), nil
}

func (b *Bot) mood(ctx context.Context, inv *Invocation) (Reply, error) {
	text := inv.Rest(0)
	if err := b.presence.SetStatus(ctx, text); err != nil {
		return Reply{}, err
	}
	if text == "" {
		return Say(fmt.Sprintf("%s cleared their status.", inv.Sender.Username)), nil
	}
	return Say(fmt.Sprintf("%s is now: %s", inv.Sender.Username, text)), nil
}

func (b *Bot) clear(ctx context.Context, inv *Invocation) (Reply, error) {
	if err := b.channels.Clear(ctx); err != nil {
		return Reply{}, err
	}
	// the history is gone, so the notice stays local
	return Reply{Text: fmt.Sprintf("🧹 %s cleared the channel.", inv.Sender.Username), Private: true}, nil
}

func (b *Bot) voice(ctx context.Context, inv *Invocation) (Reply, error) {
	room := inv.Rest(0)
	if room == "" {
		return Note("Usage: /voice <room>"), nil
	}
	ch, err := b.channels.JoinVoice(ctx, room)
	if err != nil {
		return Reply{}, err
	}
	return Say(fmt.Sprintf("🎙️ %s joined voice room %s (#%s).", inv.Sender.Username, ch.VoiceRoom, ch.ID)), nil
}

func (b *Bot) leave(ctx context.Context, inv *Invocation) (Reply, error) {
	if err := b.channels.LeaveVoice(ctx); err != nil {
		return Reply{}, err
	}
	return Say(fmt.Sprintf("👋 %s left voice.", inv.Sender.Username)), nil
}
