package bot

import (
	"context"
	"fmt"
	"time"

	"spacedan/shared/protocol"
)

func (b *Bot) economyCommands() []Command {
	return []Command{
		cmd("bal", "", "Show your coin balance", b.balance, "balance"),
		cmd("daily", "", "Claim your daily bonus", b.daily),
		cmd("work", "", "Work a shift for coins", b.work),
		cmd("give", "@user <amount> [note]", "Send coins to someone (5% fee)", b.give, "pay"),
		cmd("vip", "<message>", fmt.Sprintf("Send a highlighted message for %d coins", protocol.VIPCost), b.vip),
	}
}

func (b *Bot) balance(ctx context.Context, inv *Invocation) (Reply, error) {
	bal, err := inv.Sender.funds()
	if err != nil {
		return Reply{}, err
	}
	return Say(fmt.Sprintf("💰 %s, you have %d coins.", inv.Sender.Username, bal)), nil
}

func (b *Bot) daily(ctx context.Context, inv *Invocation) (Reply, error) {
	res, err := b.econ.ClaimDaily(ctx, inv.Sender.UserID)
	if err != nil {
		return Reply{}, err
	}
	if !res.Success {
		return Say(fmt.Sprintf("⏳ %s, your daily bonus is back in %s.", inv.Sender.Username, until(b.now(), res.NextAt))), nil
	}
	return Say(fmt.Sprintf("🎁 %s claimed the daily bonus: +%d coins (balance %d).", inv.Sender.Username, res.Bonus, res.Balance)), nil
}

func (b *Bot) work(ctx context.Context, inv *Invocation) (Reply, error) {
	res, err := b.econ.Work(ctx, inv.Sender.UserID)
	if err != nil {
		return Reply{}, err
	}
	if !res.Success {
		return Say(fmt.Sprintf("😴 %s is still tired. Next shift in %s.", inv.Sender.Username, until(b.now(), res.NextAt))), nil
	}
	return Say(fmt.Sprintf("🛠️ %s worked a shift and earned %d coins (balance %d).", inv.Sender.Username, res.Earned, res.Balance)), nil
}

func (b *Bot) give(ctx context.Context, inv *Invocation) (Reply, error) {
	amount, ok := parseAmount(inv.Arg(1))
	if inv.Arg(0) == "" || !ok {
		return Note("Usage: /give @user <amount> [note]"), nil
	}
	if amount < protocol.TransferMin || amount > protocol.TransferMax {
		return Note(fmt.Sprintf("Transfers must be between %d and %d coins.", protocol.TransferMin, protocol.TransferMax)), nil
	}
	bal, err := inv.Sender.funds()
	if err != nil {
		return Reply{}, err
	}
	if amount > bal {
		return Reply{}, ErrInsufficientFunds
	}
	to, err := b.resolve(ctx, inv.Sender, inv.Arg(0))
	if err != nil {
		return Note(fmt.Sprintf("I don't know anyone called %s.", inv.Arg(0))), nil
	}
	if to.ID == inv.Sender.UserID {
		return Note("You can't pay yourself."), nil
	}
	res, err := b.econ.Transfer(ctx, inv.Sender.UserID, to.ID, amount, inv.Rest(2))
	if err != nil {
		return Reply{}, err
	}
	return Say(fmt.Sprintf("💸 %s sent %d coins to %s (fee %d).", inv.Sender.Username, res.NetReceived, to.Username, res.Fee)), nil
}

func (b *Bot) vip(ctx context.Context, inv *Invocation) (Reply, error) {
	text := inv.Rest(0)
	if text == "" {
		return Note("Usage: /vip <message>"), nil
	}
	bal, err := inv.Sender.funds()
	if err != nil {
		return Reply{}, err
	}
	if bal < protocol.VIPCost {
		return Reply{}, ErrInsufficientFunds
	}
	if _, err := b.econ.Award(ctx, inv.Sender.UserID, -protocol.VIPCost, protocol.AwardVIPChat, "vip message"); err != nil {
		return Reply{}, err
	}
	return Reply{Text: text, AsUser: true, VIP: true}, nil
}

func until(now, at time.Time) string {
	d := at.Sub(now).Round(time.Minute)
	if d < time.Minute {
		return "a moment"
	}
	h, m := int(d.Hours()), int(d.Minutes())%60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

// settle applies a game's balance change. A failed settlement is logged and
// reported; the finished game is not restored.
func (b *Bot) settle(ctx context.Context, userID string, delta int64, game string) (int64, error) {
	kind := protocol.AwardGameReward
	if delta < 0 {
		kind = protocol.AwardGameLoss
	}
	bal, err := b.econ.Award(ctx, userID, delta, kind, game)
	if err != nil {
		b.log.Error().Err(err).Str("account", userID).Int64("delta", delta).Str("game", game).Msg("settlement failed")
	}
	return bal, err
}
