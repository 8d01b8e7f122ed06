package bot

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

func (b *Bot) funCommands() []Command {
	out := []Command{
		cmd("roll", "[sides]", "Roll a die (default d6)", b.roll, "dice"),
		cmd("flip", "", "Flip a coin", b.flip, "coin"),
		cmd("8ball", "<question>", "Ask the magic 8-ball", b.table(eightBall, "🎱 ")),
		cmd("joke", "", "Tell a joke", b.table(jokes, "😄 ")),
		cmd("fortune", "", "Open a fortune cookie", b.table(fortunes, "🥠 ")),
		cmd("fact", "", "Share a space fact", b.table(facts, "🔭 ")),
		cmd("compliment", "[@user]", "Say something nice", b.aimed(compliments)),
		cmd("roast", "[@user]", "Say something less nice", b.aimed(roasts)),
		cmd("rate", "<thing>", "Rate anything out of 10", b.rate),
		cmd("ship", "@a [@b]", "Compute a compatibility score", b.ship),
		cmd("choose", "<a> | <b> [| c...]", "Pick one option", b.choose),
		cmd("rps", "<rock|paper|scissors>", "Play rock paper scissors", b.rps),
		cmd("me", "<action>", "Describe an action", b.me),
	}
	names := make([]string, 0, len(socials))
	for name := range socials {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, cmd(name, "@user", name+" someone", b.social(socials[name])))
	}
	return out
}

func (b *Bot) roll(ctx context.Context, inv *Invocation) (Reply, error) {
	sides := 6
	if s := strings.TrimPrefix(strings.ToLower(inv.Arg(0)), "d"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 2 || n > 1000 {
			return Note("Usage: /roll [sides], 2 to 1000"), nil
		}
		sides = n
	}
	return Say(fmt.Sprintf("🎲 %s rolled a d%d: %d", inv.Sender.Username, sides, b.rng.Intn(sides)+1)), nil
}

func (b *Bot) flip(ctx context.Context, inv *Invocation) (Reply, error) {
	side := "heads"
	if b.rng.Intn(2) == 1 {
		side = "tails"
	}
	return Say(fmt.Sprintf("🪙 %s flipped %s.", inv.Sender.Username, side)), nil
}

func (b *Bot) table(t Table, prefix string) RunFunc {
	return func(ctx context.Context, inv *Invocation) (Reply, error) {
		return Say(prefix + t.Pick(b.rng)), nil
	}
}

func (b *Bot) aimed(t Table) RunFunc {
	return func(ctx context.Context, inv *Invocation) (Reply, error) {
		return Say(Fill(t.Pick(b.rng), target(inv), inv.Sender.Username)), nil
	}
}

func (b *Bot) social(t Table) RunFunc {
	return func(ctx context.Context, inv *Invocation) (Reply, error) {
		if inv.Arg(0) == "" {
			return Note(fmt.Sprintf("Usage: /%s @user", inv.Name)), nil
		}
		return Say(Fill(t.Pick(b.rng), inv.Sender.Username, target(inv))), nil
	}
}

// score is a stable 0..100 value for the same input.
func score(s string) int {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(s)))
	return int(h.Sum32() % 101)
}

func (b *Bot) rate(ctx context.Context, inv *Invocation) (Reply, error) {
	thing := inv.Rest(0)
	if thing == "" {
		return Note("Usage: /rate <thing>"), nil
	}
	return Say(fmt.Sprintf("⭐ I rate %s a %d/10.", thing, score(thing)%11)), nil
}

func (b *Bot) ship(ctx context.Context, inv *Invocation) (Reply, error) {
	a := strings.TrimPrefix(inv.Arg(0), "@")
	if a == "" {
		return Note("Usage: /ship @a [@b]"), nil
	}
	c := strings.TrimPrefix(inv.Arg(1), "@")
	if c == "" {
		a, c = inv.Sender.Username, a
	}
	pair := []string{strings.ToLower(a), strings.ToLower(c)}
	sort.Strings(pair)
	n := score(pair[0] + "+" + pair[1])
	heart := "💔"
	switch {
	case n >= 75:
		heart = "💞"
	case n >= 40:
		heart = "💛"
	}
	return Say(fmt.Sprintf("%s %s + %s: %d%% compatible", heart, a, c, n)), nil
}

func (b *Bot) choose(ctx context.Context, inv *Invocation) (Reply, error) {
	var opts []string
	for _, o := range strings.Split(inv.Rest(0), "|") {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, o)
		}
	}
	if len(opts) < 2 {
		return Note("Usage: /choose a | b [| c...]"), nil
	}
	return Say(fmt.Sprintf("🤔 I choose: %s", opts[b.rng.Intn(len(opts))])), nil
}

func (b *Bot) rps(ctx context.Context, inv *Invocation) (Reply, error) {
	mine := strings.ToLower(inv.Arg(0))
	own := -1
	for i, m := range rpsMoves {
		if m == mine {
			own = i
		}
	}
	if own < 0 {
		return Note("Usage: /rps <rock|paper|scissors>"), nil
	}
	pick := b.rng.Intn(len(rpsMoves))
	var verdict string
	switch (own - pick + 3) % 3 {
	case 0:
		verdict = "It's a tie!"
	case 1:
		verdict = inv.Sender.Username + " wins!"
	default:
		verdict = "I win!"
	}
	return Say(fmt.Sprintf("✊ %s picks %s, I pick %s. %s", inv.Sender.Username, mine, rpsMoves[pick], verdict)), nil
}

func (b *Bot) me(ctx context.Context, inv *Invocation) (Reply, error) {
	action := inv.Rest(0)
	if action == "" {
		return Note("Usage: /me <action>"), nil
	}
	return Say(fmt.Sprintf("* %s %s", inv.Sender.Username, action)), nil
}
