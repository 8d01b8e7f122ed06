package currency

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"spacedan/server/store"
	"spacedan/shared/protocol"
)

func newTestLedger(t *testing.T) (*Ledger, *store.DB, *time.Time) {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	db.SetClock(func() time.Time { return now })
	return NewLedger(db, rand.New(rand.NewSource(1))), db, &now
}

func mkUser(t *testing.T, db *store.DB, name string, balance int64) string {
	t.Helper()
	p, err := db.CreateProfile(context.Background(), name, "x", balance)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return p.ID
}

func code(err error) string {
	var ce *CurrencyError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func TestTransferChargesFee(t *testing.T) {
	l, db, _ := newTestLedger(t)
	ctx := context.Background()
	a := mkUser(t, db, "alice", 200)
	b := mkUser(t, db, "bob", 0)

	res, err := l.Transfer(ctx, protocol.TransferArgs{FromUserID: a, ToUserID: b, Amount: 100, Nonce: "n1"})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.Fee != 5 || res.NetReceived != 95 || res.FromBalance != 100 {
		t.Fatalf("unexpected result %+v", res)
	}
	if bal, _ := l.Balance(ctx, b); bal != 95 {
		t.Errorf("bob balance = %d, want 95", bal)
	}
}

func TestTransferNonceIsIdempotent(t *testing.T) {
	l, db, _ := newTestLedger(t)
	ctx := context.Background()
	a := mkUser(t, db, "alice", 200)
	b := mkUser(t, db, "bob", 0)

	args := protocol.TransferArgs{FromUserID: a, ToUserID: b, Amount: 50, Nonce: "same"}
	first, err := l.Transfer(ctx, args)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := l.Transfer(ctx, args)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first.TransferID != second.TransferID {
		t.Errorf("replay produced a new transfer: %s vs %s", first.TransferID, second.TransferID)
	}
	if bal, _ := l.Balance(ctx, a); bal != 150 {
		t.Errorf("alice balance = %d, want 150 (spent once)", bal)
	}
}

func TestTransferInsufficientFundsLeavesBalances(t *testing.T) {
	l, db, _ := newTestLedger(t)
	ctx := context.Background()
	a := mkUser(t, db, "alice", 20)
	b := mkUser(t, db, "bob", 0)

	_, err := l.Transfer(ctx, protocol.TransferArgs{FromUserID: a, ToUserID: b, Amount: 100, Nonce: "n"})
	if code(err) != CodeInsufficientFunds {
		t.Fatalf("want INSUFFICIENT_FUNDS, got %v", err)
	}
	if bal, _ := l.Balance(ctx, a); bal != 20 {
		t.Errorf("alice balance changed to %d", bal)
	}
	// failed attempts do not burn the nonce
	if _, err := l.Award(ctx, protocol.AwardArgs{UserID: a, Amount: 100, Type: protocol.AwardGameReward}); err != nil {
		t.Fatal(err)
	}
	res, err := l.Transfer(ctx, protocol.TransferArgs{FromUserID: a, ToUserID: b, Amount: 100, Nonce: "n"})
	if err != nil || !res.Success {
		t.Fatalf("retry with same nonce: %+v %v", res, err)
	}
}

func TestTransferLimits(t *testing.T) {
	l, db, _ := newTestLedger(t)
	ctx := context.Background()
	a := mkUser(t, db, "alice", 5000)
	b := mkUser(t, db, "bob", 0)

	for _, amt := range []int64{0, 5, 501} {
		if _, err := l.Transfer(ctx, protocol.TransferArgs{FromUserID: a, ToUserID: b, Amount: amt}); code(err) != CodeInvalidAmount {
			t.Errorf("amount %d: want INVALID_AMOUNT, got %v", amt, err)
		}
	}
	if _, err := l.Transfer(ctx, protocol.TransferArgs{FromUserID: a, ToUserID: a, Amount: 50}); code(err) != CodeInvalidAmount {
		t.Errorf("self transfer: got %v", err)
	}
	// settlements skip the fee and the range
	res, err := l.Transfer(ctx, protocol.TransferArgs{FromUserID: a, ToUserID: b, Amount: 1000, NoFee: true})
	if err != nil || res.Fee != 0 || res.NetReceived != 1000 {
		t.Fatalf("no-fee transfer: %+v %v", res, err)
	}
}

func TestAwardNegativeCannotOverdraw(t *testing.T) {
	l, db, _ := newTestLedger(t)
	ctx := context.Background()
	a := mkUser(t, db, "alice", 30)

	if _, err := l.Award(ctx, protocol.AwardArgs{UserID: a, Amount: -50, Type: protocol.AwardVIPChat}); code(err) != CodeInsufficientFunds {
		t.Fatalf("want INSUFFICIENT_FUNDS, got %v", err)
	}
	res, err := l.Award(ctx, protocol.AwardArgs{UserID: a, Amount: 75, Type: protocol.AwardGameReward})
	if err != nil {
		t.Fatal(err)
	}
	if res.Balance != 105 {
		t.Errorf("balance = %d, want 105", res.Balance)
	}
	if n, _ := db.LedgerCount(ctx, a); n != 1 {
		t.Errorf("ledger rows = %d, want 1", n)
	}
}

func TestDailyCooldown(t *testing.T) {
	l, db, now := newTestLedger(t)
	ctx := context.Background()
	a := mkUser(t, db, "alice", 0)

	res, err := l.ClaimDaily(ctx, protocol.DailyArgs{UserID: a, Nonce: "d1"})
	if err != nil || !res.Success || res.Balance != protocol.DailyBonus {
		t.Fatalf("first claim: %+v %v", res, err)
	}

	*now = now.Add(19 * time.Hour)
	res, err = l.ClaimDaily(ctx, protocol.DailyArgs{UserID: a, Nonce: "d2"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Reason != "cooldown" {
		t.Fatalf("claim inside cooldown succeeded: %+v", res)
	}
	if want := now.Add(time.Hour); !res.NextAt.Equal(want) {
		t.Errorf("next at %v, want %v", res.NextAt, want)
	}

	*now = now.Add(time.Hour)
	res, err = l.ClaimDaily(ctx, protocol.DailyArgs{UserID: a, Nonce: "d3"})
	if err != nil || !res.Success || res.Balance != 2*protocol.DailyBonus {
		t.Fatalf("claim after cooldown: %+v %v", res, err)
	}
}

func TestWorkPaysWithinRange(t *testing.T) {
	l, db, now := newTestLedger(t)
	ctx := context.Background()
	a := mkUser(t, db, "alice", 0)

	res, err := l.Work(ctx, protocol.WorkArgs{UserID: a})
	if err != nil || !res.Success {
		t.Fatalf("work: %+v %v", res, err)
	}
	if res.Earned < protocol.WorkMin || res.Earned > protocol.WorkMax {
		t.Errorf("wage %d out of range", res.Earned)
	}
	if res, _ := l.Work(ctx, protocol.WorkArgs{UserID: a}); res.Success {
		t.Errorf("second shift inside cooldown succeeded")
	}
	*now = now.Add(protocol.WorkCooldown)
	if res, _ := l.Work(ctx, protocol.WorkArgs{UserID: a}); !res.Success {
		t.Errorf("shift after cooldown refused: %+v", res)
	}
}

func TestCallRejectsForeignAccount(t *testing.T) {
	l, db, _ := newTestLedger(t)
	ctx := context.Background()
	a := mkUser(t, db, "alice", 100)
	b := mkUser(t, db, "bob", 100)

	raw, _ := json.Marshal(protocol.TransferArgs{FromUserID: b, ToUserID: a, Amount: 50})
	if _, err := l.Call(ctx, a, protocol.ProcTransfer, raw); code(err) != CodeForbidden {
		t.Fatalf("want FORBIDDEN, got %v", err)
	}
	if _, err := l.Call(ctx, a, "drop_tables", nil); code(err) != CodeUnknownProc {
		t.Fatalf("want UNKNOWN_PROC, got %v", err)
	}

	out, err := l.Call(ctx, a, protocol.ProcGetBalance, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.(protocol.BalanceResult).Balance; got != 100 {
		t.Errorf("balance = %d", got)
	}
}

func TestPurgeChannel(t *testing.T) {
	l, db, _ := newTestLedger(t)
	ctx := context.Background()
	a := mkUser(t, db, "alice", 0)
	for _, ch := range []string{"global", "global", "games"} {
		if _, err := db.InsertMessage(ctx, protocol.NewMessage{ChannelID: ch, UserID: a, Content: "hi"}); err != nil {
			t.Fatal(err)
		}
	}
	raw, _ := json.Marshal(protocol.PurgeArgs{ChannelID: "global", UserID: a})
	out, err := l.Call(ctx, a, protocol.ProcPurgeChannel, raw)
	if err != nil {
		t.Fatal(err)
	}
	if out.(protocol.PurgeResult).Deleted != 2 {
		t.Errorf("deleted = %+v", out)
	}
	rest, _ := db.SelectMessages(ctx, "games", 0, false)
	if len(rest) != 1 {
		t.Errorf("other channel touched: %d rows", len(rest))
	}
}

func TestDuelSettlesLoserToWinner(t *testing.T) {
	l, db, now := newTestLedger(t)
	ctx := context.Background()
	a := mkUser(t, db, "alice", 100)
	b := mkUser(t, db, "bob", 100)

	if _, err := l.Challenge(ctx, a, protocol.DuelChallengeArgs{TargetID: a, Amount: 10}); code(err) != CodeBadArgs {
		t.Fatalf("self duel: %v", err)
	}
	if _, err := l.Challenge(ctx, a, protocol.DuelChallengeArgs{TargetID: b, Amount: 500}); code(err) != CodeInsufficientFunds {
		t.Fatalf("unfunded duel: %v", err)
	}
	if _, err := l.Challenge(ctx, a, protocol.DuelChallengeArgs{TargetID: b, Amount: 40}); err != nil {
		t.Fatal(err)
	}
	if _, err := l.AcceptDuel(ctx, a, protocol.DuelAcceptArgs{}); code(err) != CodeNotTarget {
		t.Fatalf("challenger accepted own duel: %v", err)
	}

	*now = now.Add(10 * time.Second)
	res, err := l.AcceptDuel(ctx, b, protocol.DuelAcceptArgs{Nonce: "acc"})
	if err != nil {
		t.Fatal(err)
	}
	loser := a
	if res.WinnerID == a {
		loser = b
	}
	if bal, _ := l.Balance(ctx, res.WinnerID); bal != 140 {
		t.Errorf("winner balance = %d", bal)
	}
	if bal, _ := l.Balance(ctx, loser); bal != 60 {
		t.Errorf("loser balance = %d", bal)
	}
	if _, err := l.AcceptDuel(ctx, b, protocol.DuelAcceptArgs{}); code(err) != CodeNoDuel {
		t.Errorf("offer survived resolution: %v", err)
	}
}

func TestDuelExpiredMovesNothing(t *testing.T) {
	l, db, now := newTestLedger(t)
	ctx := context.Background()
	a := mkUser(t, db, "alice", 100)
	b := mkUser(t, db, "bob", 100)

	if _, err := l.Challenge(ctx, a, protocol.DuelChallengeArgs{TargetID: b, Amount: 40}); err != nil {
		t.Fatal(err)
	}
	*now = now.Add(61 * time.Second)
	if _, err := l.AcceptDuel(ctx, b, protocol.DuelAcceptArgs{}); code(err) != CodeNoDuel {
		t.Fatalf("expired accept: %v", err)
	}
	for _, id := range []string{a, b} {
		if bal, _ := l.Balance(ctx, id); bal != 100 {
			t.Errorf("balance moved to %d", bal)
		}
	}
}
