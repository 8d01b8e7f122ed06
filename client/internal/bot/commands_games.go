package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spacedan/shared/protocol"
)

func (b *Bot) gameCommands() []Command {
	return []Command{
		cmd("blackjack", "<bet>", "Start a hand of blackjack", b.blackjack, "bj"),
		cmd("hit", "", "Draw another card", b.hit),
		cmd("stand", "", "End your turn and let the dealer play", b.stand),
		cmd("bet", "<amount>", "Double or nothing on a coin flip", b.bet),
		cmd("duel", "@user <amount>", "Challenge someone to a coin-flip duel", b.duel),
		cmd("accept", "", "Accept the duel aimed at you", b.accept),
	}
}

func (b *Bot) blackjack(ctx context.Context, inv *Invocation) (Reply, error) {
	bet, ok := parseAmount(inv.Arg(0))
	if !ok {
		return Note("Usage: /blackjack <bet>"), nil
	}
	bal, err := inv.Sender.funds()
	if err != nil {
		return Reply{}, err
	}
	res, err := b.games.StartBlackjack(inv.Sender.UserID, bet, bal)
	switch {
	case errors.Is(err, ErrActiveSession):
		return Note(fmt.Sprintf("%s, finish your current hand first (/hit or /stand).", inv.Sender.Username)), nil
	case err != nil:
		return Reply{}, err
	}

	name := inv.Sender.Username
	if res.Outcome == Natural {
		line := fmt.Sprintf("🃏 %s: %s (21) BLACKJACK! Dealer: %s. +%d coins", name, showHand(res.Player), showHand(res.Dealer), res.Delta)
		return b.settled(ctx, inv, res, line), nil
	}
	return Say(fmt.Sprintf("🃏 %s bets %d: %s (%d). Dealer shows %s. /hit or /stand?",
		name, bet, showHand(res.Player), res.PlayerValue, res.Dealer[0])), nil
}

func (b *Bot) hit(ctx context.Context, inv *Invocation) (Reply, error) {
	res, err := b.games.Hit(inv.Sender.UserID)
	if errors.Is(err, ErrNoSession) {
		return Note("No hand in play. Start one with /blackjack <bet>."), nil
	}
	if err != nil {
		return Reply{}, err
	}
	name := inv.Sender.Username
	switch {
	case res.Outcome == Bust:
		line := fmt.Sprintf("💥 %s: %s (%d) BUST! -%d coins", name, showHand(res.Player), res.PlayerValue, res.Bet)
		return b.settled(ctx, inv, res, line), nil
	case res.PlayerValue == 21:
		return Say(fmt.Sprintf("🃏 %s: %s (21). /stand to play it out.", name, showHand(res.Player))), nil
	default:
		return Say(fmt.Sprintf("🃏 %s: %s (%d). /hit or /stand?", name, showHand(res.Player), res.PlayerValue)), nil
	}
}

func (b *Bot) stand(ctx context.Context, inv *Invocation) (Reply, error) {
	res, err := b.games.Stand(inv.Sender.UserID)
	if errors.Is(err, ErrNoSession) {
		return Note("No hand in play. Start one with /blackjack <bet>."), nil
	}
	if err != nil {
		return Reply{}, err
	}
	var verdict string
	switch res.Outcome {
	case Win:
		verdict = fmt.Sprintf("WIN +%d coins", res.Delta)
	case Lose:
		verdict = fmt.Sprintf("LOSE -%d coins", -res.Delta)
	default:
		verdict = "PUSH, bet returned"
	}
	line := fmt.Sprintf("🃏 %s: %s (%d) vs dealer %s (%d). %s",
		inv.Sender.Username, showHand(res.Player), res.PlayerValue, showHand(res.Dealer), res.DealerValue, verdict)
	return b.settled(ctx, inv, res, line), nil
}

// settled pays out a resolved hand and appends the new balance.
func (b *Bot) settled(ctx context.Context, inv *Invocation, res Result, line string) Reply {
	if res.Delta == 0 {
		return Say(line)
	}
	bal, err := b.settle(ctx, inv.Sender.UserID, res.Delta, GameBlackjack)
	if err != nil {
		return Say(line + " (payout failed, balance unchanged)")
	}
	return Say(fmt.Sprintf("%s. Balance: %d", line, bal))
}

func (b *Bot) bet(ctx context.Context, inv *Invocation) (Reply, error) {
	amount, ok := parseAmount(inv.Arg(0))
	if !ok {
		return Note("Usage: /bet <amount>"), nil
	}
	bal, err := inv.Sender.funds()
	if err != nil {
		return Reply{}, err
	}
	if amount > bal {
		return Reply{}, ErrInsufficientFunds
	}
	delta, verb := -amount, "lost"
	if b.rng.Intn(2) == 0 {
		delta, verb = amount, "won"
	}
	bal, err = b.econ.Award(ctx, inv.Sender.UserID, delta, protocol.AwardBet, "coin flip bet")
	if err != nil {
		return Reply{}, err
	}
	return Say(fmt.Sprintf("🎲 %s bet %d and %s! Balance: %d", inv.Sender.Username, amount, verb, bal)), nil
}

func (b *Bot) duel(ctx context.Context, inv *Invocation) (Reply, error) {
	amount, ok := parseAmount(inv.Arg(1))
	if inv.Arg(0) == "" || !ok {
		return Note("Usage: /duel @user <amount>"), nil
	}
	bal, err := inv.Sender.funds()
	if err != nil {
		return Reply{}, err
	}
	if amount > bal {
		return Reply{}, ErrInsufficientFunds
	}
	them, err := b.resolve(ctx, inv.Sender, inv.Arg(0))
	if err != nil {
		return Note(fmt.Sprintf("I don't know anyone called %s.", inv.Arg(0))), nil
	}
	if them.ID == inv.Sender.UserID {
		return Note("You can't duel yourself."), nil
	}
	res, err := b.econ.Challenge(ctx, them, amount)
	if err != nil {
		return Reply{}, err
	}
	secs := int(res.ExpiresAt.Sub(b.now()).Round(time.Second).Seconds())
	return Say(fmt.Sprintf("⚔️ %s challenges %s to a duel for %d coins! %s, type /accept within %ds.",
		inv.Sender.Username, them.Username, amount, them.Username, secs)), nil
}

func (b *Bot) accept(ctx context.Context, inv *Invocation) (Reply, error) {
	res, err := b.econ.AcceptDuel(ctx)
	var em *protocol.ErrorMsg
	if errors.As(err, &em) {
		switch em.Code {
		case "NO_DUEL":
			return Note("There is no duel to accept."), nil
		case "NOT_TARGET":
			return Note(fmt.Sprintf("%s, that duel isn't yours to accept.", inv.Sender.Username)), nil
		}
	}
	if err != nil {
		return Reply{}, err
	}
	winner, loser := inv.Sender.Username, res.ChallengerName
	if res.WinnerID != inv.Sender.UserID {
		winner, loser = loser, winner
	}
	return Say(fmt.Sprintf("⚔️ %s beats %s and takes %d coins!", winner, loser, res.Amount)), nil
}
