package bot

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"spacedan/shared/protocol"

	"github.com/rs/zerolog"
)

type award struct {
	userID string
	amount int64
	kind   string
}

type fakeEconomy struct {
	balance  int64
	awards   []award
	awardErr error
	duelErr  error
	duel     *protocol.DuelAcceptResult
	targets  []protocol.Profile
	transfer []int64
}

func (f *fakeEconomy) Balance(ctx context.Context, userID string) (int64, error) {
	return f.balance, nil
}

func (f *fakeEconomy) Award(ctx context.Context, userID string, amount int64, kind, desc string) (int64, error) {
	if f.awardErr != nil {
		return 0, f.awardErr
	}
	f.awards = append(f.awards, award{userID, amount, kind})
	f.balance += amount
	return f.balance, nil
}

func (f *fakeEconomy) Transfer(ctx context.Context, from, to string, amount int64, note string) (*protocol.TransferResult, error) {
	f.transfer = append(f.transfer, amount)
	fee := amount * 5 / 100
	return &protocol.TransferResult{Fee: fee, NetReceived: amount - fee}, nil
}

func (f *fakeEconomy) ClaimDaily(ctx context.Context, userID string) (*protocol.DailyResult, error) {
	return &protocol.DailyResult{Success: false, NextAt: time.Now().Add(3 * time.Hour)}, nil
}

func (f *fakeEconomy) Work(ctx context.Context, userID string) (*protocol.WorkResult, error) {
	return &protocol.WorkResult{Success: true, Earned: 30, Balance: f.balance + 30}, nil
}

func (f *fakeEconomy) Challenge(ctx context.Context, target protocol.Profile, amount int64) (*protocol.DuelChallengeResult, error) {
	f.targets = append(f.targets, target)
	return &protocol.DuelChallengeResult{ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (f *fakeEconomy) AcceptDuel(ctx context.Context) (*protocol.DuelAcceptResult, error) {
	return f.duel, f.duelErr
}

type fakeChannels struct {
	cleared int
	joined  []string
}

func (f *fakeChannels) Clear(ctx context.Context) error { f.cleared++; return nil }
func (f *fakeChannels) JoinVoice(ctx context.Context, name string) (protocol.ChannelDescriptor, error) {
	f.joined = append(f.joined, name)
	return protocol.ChannelDescriptor{ID: "voice-" + name, VoiceRoom: name, Kind: protocol.ChannelVoiceLinked}, nil
}
func (f *fakeChannels) LeaveVoice(ctx context.Context) error { return nil }

type fakePresence struct{ status string }

func (f *fakePresence) SetStatus(ctx context.Context, s string) error { f.status = s; return nil }

func newTestBot(rng Rand) (*Bot, *fakeEconomy, *fakeChannels, *fakePresence) {
	econ := &fakeEconomy{balance: 200}
	ch := &fakeChannels{}
	pr := &fakePresence{}
	log := zerolog.Nop()
	b := New(Deps{Economy: econ, Presence: pr, Channels: ch, Rand: rng, Log: &log})
	return b, econ, ch, pr
}

func alice(balance int64) Sender {
	return Sender{
		UserID:   "u-alice",
		Username: "alice",
		Balance:  balance,
		Online: map[string]protocol.PresenceRecord{
			"u-alice": {ID: "u-alice", Username: "alice"},
			"u-bob":   {ID: "u-bob", Username: "Bob", InVoice: true},
		},
	}
}

func TestParse(t *testing.T) {
	name, args, ok := Parse("  /Give @bob 20 thanks ")
	if !ok || name != "give" || len(args) != 3 || args[0] != "@bob" {
		t.Fatalf("Parse = %q %v %v", name, args, ok)
	}
	for _, s := range []string{"hello", "/", "/   ", " not /a command"} {
		if _, _, ok := Parse(s); ok {
			t.Errorf("Parse(%q) ok", s)
		}
	}
}

func TestUnknownCommandIgnored(t *testing.T) {
	b, _, _, _ := newTestBot(unshuffled)
	if _, handled := b.Dispatch(context.Background(), "/definitelynot", alice(10)); handled {
		t.Errorf("unknown command was handled")
	}
	if _, handled := b.Dispatch(context.Background(), "just chatting", alice(10)); handled {
		t.Errorf("plain text was handled")
	}
}

func TestPrivateAllowList(t *testing.T) {
	b, _, _, _ := newTestBot(unshuffled)
	ctx := context.Background()
	for _, text := range []string{"/bal", "/balance", "/help", "/online", "/ping"} {
		r, handled := b.Dispatch(ctx, text, alice(10))
		if !handled || !r.Private || r.Text == "" {
			t.Errorf("%s: handled=%v reply=%+v", text, handled, r)
		}
	}
	r, _ := b.Dispatch(ctx, "/joke", Sender{UserID: "u2", Username: "bob"})
	if r.Private || r.Text == "" {
		t.Errorf("/joke reply %+v", r)
	}
}

func TestHelpForOneCommand(t *testing.T) {
	b, _, _, _ := newTestBot(unshuffled)
	r, _ := b.Dispatch(context.Background(), "/help give", alice(0))
	if !strings.Contains(r.Text, "/give @user <amount>") {
		t.Errorf("help text %q", r.Text)
	}
}

func TestBlackjackNaturalPaysThreeToTwo(t *testing.T) {
	b, econ, _, _ := newTestBot(naturalDeck)
	r, handled := b.Dispatch(context.Background(), "/blackjack 50", alice(200))
	if !handled || r.Private {
		t.Fatalf("reply %+v", r)
	}
	if len(econ.awards) != 1 || econ.awards[0].amount != 75 || econ.awards[0].kind != protocol.AwardGameReward {
		t.Fatalf("awards %+v", econ.awards)
	}
	if b.Sessions().Len() != 0 {
		t.Errorf("natural left a session")
	}
	if !strings.Contains(r.Text, "BLACKJACK") || !strings.Contains(r.Text, "275") {
		t.Errorf("reply text %q", r.Text)
	}
}

func TestBlackjackOverBalance(t *testing.T) {
	b, econ, _, _ := newTestBot(unshuffled)
	r, _ := b.Dispatch(context.Background(), "/bj 500", alice(100))
	if r.Text != "💸 Not enough coins." || !r.Private {
		t.Errorf("reply %+v", r)
	}
	if len(econ.awards) != 0 || b.Sessions().Len() != 0 {
		t.Errorf("rejected bet had effects")
	}
}

func TestBlackjackStandSettlesLoss(t *testing.T) {
	b, econ, _, _ := newTestBot(unshuffled)
	ctx := context.Background()
	b.Dispatch(ctx, "/blackjack 20", alice(200))
	if _, ok := b.Sessions().Active("u-alice"); !ok {
		t.Fatalf("no session after deal")
	}
	r, _ := b.Dispatch(ctx, "/stand", alice(200))
	if !strings.Contains(r.Text, "LOSE") {
		t.Errorf("stand reply %q", r.Text)
	}
	if len(econ.awards) != 1 || econ.awards[0].amount != -20 || econ.awards[0].kind != protocol.AwardGameLoss {
		t.Fatalf("awards %+v", econ.awards)
	}
}

func TestBlackjackHitToTwentyOneWaitsForStand(t *testing.T) {
	b, econ, _, _ := newTestBot(unshuffled)
	ctx := context.Background()
	b.Dispatch(ctx, "/blackjack 20", alice(200))
	var r Reply
	// A 2, then 5 6 7: the ace drops to 1 and the hand lands on 21
	for i := 0; i < 3; i++ {
		r, _ = b.Dispatch(ctx, "/hit", alice(200))
	}
	if !strings.Contains(r.Text, "(21)") || !strings.Contains(r.Text, "/stand") {
		t.Fatalf("third hit reply %q", r.Text)
	}
	if _, ok := b.Sessions().Active("u-alice"); !ok {
		t.Fatalf("hand on 21 was closed")
	}
	if len(econ.awards) != 0 {
		t.Errorf("coins moved before stand: %+v", econ.awards)
	}
}

func TestBlackjackBustDeductsBet(t *testing.T) {
	b, econ, _, _ := newTestBot(unshuffled)
	ctx := context.Background()
	b.Dispatch(ctx, "/blackjack 20", alice(200))
	var r Reply
	for i := 0; i < 4; i++ {
		r, _ = b.Dispatch(ctx, "/hit", alice(200))
	}
	if !strings.Contains(r.Text, "BUST") || r.Private {
		t.Fatalf("bust reply %+v", r)
	}
	if len(econ.awards) != 1 || econ.awards[0].amount != -20 || econ.awards[0].kind != protocol.AwardGameLoss {
		t.Fatalf("awards %+v", econ.awards)
	}
	if b.Sessions().Len() != 0 {
		t.Errorf("bust left a session")
	}
}

func TestBlackjackFailedPayoutEndsHand(t *testing.T) {
	b, econ, _, _ := newTestBot(unshuffled)
	ctx := context.Background()
	b.Dispatch(ctx, "/blackjack 20", alice(200))
	econ.awardErr = errors.New("ledger offline")
	r, _ := b.Dispatch(ctx, "/stand", alice(200))
	if !strings.Contains(r.Text, "LOSE") || !strings.Contains(r.Text, "payout failed") {
		t.Fatalf("stand reply %q", r.Text)
	}
	if _, ok := b.Sessions().Active("u-alice"); ok {
		t.Fatalf("hand restored after failed payout")
	}
	if r, _ := b.Dispatch(ctx, "/hit", alice(200)); !strings.Contains(r.Text, "No hand in play") {
		t.Errorf("hit after failed payout %q", r.Text)
	}
}

func TestUnknownBalanceFailsMoneyCommands(t *testing.T) {
	ctx := context.Background()
	s := alice(0)
	s.BalanceErr = errors.New("rpc down")
	for _, text := range []string{"/bal", "/blackjack 50", "/bet 10", "/duel @bob 10", "/give @bob 20", "/vip hi"} {
		b, econ, _, _ := newTestBot(unshuffled)
		r, handled := b.Dispatch(ctx, text, s)
		if !handled || !r.Private || r.Text != "⚠️ That didn't work, try again later." {
			t.Errorf("%s: reply %+v", text, r)
		}
		if len(econ.awards)+len(econ.transfer)+len(econ.targets) != 0 || b.Sessions().Len() != 0 {
			t.Errorf("%s: reached the economy", text)
		}
	}
}

func TestValidationRepliesArePrivate(t *testing.T) {
	b, _, _, _ := newTestBot(unshuffled)
	ctx := context.Background()
	for _, text := range []string{"/give", "/give @bob 5", "/duel @nobody 30", "/blackjack lots", "/hit"} {
		r, _ := b.Dispatch(ctx, text, alice(100))
		if !r.Private || r.Text == "" {
			t.Errorf("%s: reply %+v", text, r)
		}
	}
}

func TestLoggingNamesSender(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).With().Str("user", "alice").Logger()
	ping := cmd("ping", "", "", func(ctx context.Context, inv *Invocation) (Reply, error) { return Say("pong"), nil })
	Apply(ping, Logging(log.Level(zerolog.DebugLevel))).Run(context.Background(), &Invocation{Name: "ping", Sender: alice(0)})
	line := buf.String()
	if strings.Count(line, `"user"`) != 1 || !strings.Contains(line, `"sender":"alice"`) {
		t.Errorf("log line %s", line)
	}
}

func TestAcceptWithoutDuel(t *testing.T) {
	b, econ, _, _ := newTestBot(unshuffled)
	econ.duelErr = &protocol.ErrorMsg{Code: "NO_DUEL", Message: "no duel pending"}
	r, handled := b.Dispatch(context.Background(), "/accept", alice(100))
	if !handled || r.Text != "There is no duel to accept." {
		t.Errorf("reply %+v", r)
	}
}

func TestAcceptReportsWinner(t *testing.T) {
	b, econ, _, _ := newTestBot(unshuffled)
	econ.duel = &protocol.DuelAcceptResult{ChallengerID: "u-bob", ChallengerName: "Bob", WinnerID: "u-bob", Amount: 40}
	r, _ := b.Dispatch(context.Background(), "/accept", alice(100))
	if r.Text != "⚔️ Bob beats alice and takes 40 coins!" {
		t.Errorf("reply %q", r.Text)
	}
}

func TestDuelResolvesOnlineUser(t *testing.T) {
	b, econ, _, _ := newTestBot(unshuffled)
	r, _ := b.Dispatch(context.Background(), "/duel @bob 30", alice(100))
	if len(econ.targets) != 1 || econ.targets[0].ID != "u-bob" {
		t.Fatalf("targets %+v", econ.targets)
	}
	if !strings.Contains(r.Text, "/accept") {
		t.Errorf("reply %q", r.Text)
	}

	r, _ = b.Dispatch(context.Background(), "/duel @nobody 30", alice(100))
	if !strings.Contains(r.Text, "don't know") || len(econ.targets) != 1 {
		t.Errorf("unknown target reply %q", r.Text)
	}
}

func TestGiveChecksLocally(t *testing.T) {
	b, econ, _, _ := newTestBot(unshuffled)
	ctx := context.Background()
	b.Dispatch(ctx, "/give @bob 5", alice(100))
	b.Dispatch(ctx, "/pay @alice 50", alice(100))
	if len(econ.transfer) != 0 {
		t.Fatalf("invalid transfers reached the economy: %v", econ.transfer)
	}
	r, _ := b.Dispatch(ctx, "/give @bob 100 for pizza", alice(100))
	if len(econ.transfer) != 1 || !strings.Contains(r.Text, "95") {
		t.Errorf("transfer reply %q (%v)", r.Text, econ.transfer)
	}
}

func TestVIPChargesAndSendsAsUser(t *testing.T) {
	b, econ, _, _ := newTestBot(unshuffled)
	r, _ := b.Dispatch(context.Background(), "/vip hello everyone", alice(100))
	if !r.AsUser || !r.VIP || r.Text != "hello everyone" {
		t.Fatalf("reply %+v", r)
	}
	if len(econ.awards) != 1 || econ.awards[0].amount != -protocol.VIPCost || econ.awards[0].kind != protocol.AwardVIPChat {
		t.Errorf("awards %+v", econ.awards)
	}
}

func TestUtilityCommandsUseCollaborators(t *testing.T) {
	b, _, ch, pr := newTestBot(unshuffled)
	ctx := context.Background()
	b.Dispatch(ctx, "/mood stargazing", alice(0))
	if pr.status != "stargazing" {
		t.Errorf("status = %q", pr.status)
	}
	if r, _ := b.Dispatch(ctx, "/clear", alice(0)); !r.Private || ch.cleared != 1 {
		t.Errorf("clear reply %+v, cleared %d", r, ch.cleared)
	}
	r, _ := b.Dispatch(ctx, "/voice lounge", alice(0))
	if len(ch.joined) != 1 || !strings.Contains(r.Text, "voice-lounge") {
		t.Errorf("voice reply %q", r.Text)
	}
}

func TestCooldown(t *testing.T) {
	b, _, _, _ := newTestBot(unshuffled)
	ctx := context.Background()
	var last Reply
	for i := 0; i < 6; i++ {
		last, _ = b.Dispatch(ctx, "/ping", alice(0))
	}
	if last.Text != "⏳ Slow down a little." {
		t.Errorf("sixth ping = %q", last.Text)
	}
}

func TestMiddlewareOrder(t *testing.T) {
	var trace []string
	mark := func(tag string) Middleware {
		return func(c Command) Command {
			return Wrap(c, func(ctx context.Context, inv *Invocation) (Reply, error) {
				trace = append(trace, tag)
				return c.Run(ctx, inv)
			})
		}
	}
	base := cmd("x", "", "", func(ctx context.Context, inv *Invocation) (Reply, error) {
		trace = append(trace, "run")
		return Reply{}, nil
	}, "y")
	c := Apply(base, mark("outer"), mark("inner"))
	c.Run(context.Background(), &Invocation{})
	if strings.Join(trace, ",") != "outer,inner,run" {
		t.Errorf("trace %v", trace)
	}
	if Root(c) != base {
		t.Errorf("Root did not unwrap")
	}
	reg := NewRegistry()
	reg.Register(c)
	if reg.Get("Y") != c {
		t.Errorf("alias lookup through middleware failed")
	}
}

func TestRecoverTurnsPanicIntoError(t *testing.T) {
	boom := cmd("boom", "", "", func(ctx context.Context, inv *Invocation) (Reply, error) {
		panic("kaboom")
	})
	_, err := Apply(boom, Recover(zerolog.Nop())).Run(context.Background(), &Invocation{Name: "boom"})
	if err == nil || errors.Is(err, ErrSlowDown) {
		t.Errorf("err = %v", err)
	}
}
