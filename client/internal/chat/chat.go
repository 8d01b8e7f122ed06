package chat

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"spacedan/client/internal/bot"
	"spacedan/shared/logging"
	"spacedan/shared/protocol"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	ErrNoAuth     = errors.New("chat: sign in to use chat")
	ErrNotInVoice = errors.New("chat: not in a voice room")
)

const sendTimeout = 10 * time.Second

// Identity is the signed-in user.
type Identity struct {
	UserID    string
	Username  string
	AvatarURL string
}

type Options struct {
	// Rand drives the games and flavor commands. Defaults to a time-seeded
	// source.
	Rand bot.Rand
	// Limiter throttles presence updates. Defaults to NewTracker's limiter.
	Limiter *rate.Limiter
	// OnChange runs whenever the window, the channel list or the presence
	// set changes. It may be called from any goroutine.
	OnChange func()
	// OnAlert reports failures of user-initiated sends.
	OnAlert func(error)
}

// Chat is one signed-in chat session: channels, message window, presence and
// the command bot, all over one transport.
type Chat struct {
	t     Transport
	me    Identity
	store *Store
	reg   *Registry
	pres  *Tracker
	econ  bot.Economy
	bot   *bot.Bot
	log   zerolog.Logger

	presSub  *Subscription
	onChange func()
	onAlert  func(error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(t Transport, me Identity, opts Options) (*Chat, error) {
	if me.UserID == "" {
		return nil, ErrNoAuth
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Chat{
		t:        t,
		me:       me,
		store:    NewStore(me.UserID, protocol.WindowLimit),
		pres:     NewTracker(t, opts.Limiter),
		econ:     bot.NewRPCEconomy(t),
		log:      logging.For("chat").With().Str("user", me.Username).Logger(),
		onChange: opts.OnChange,
		onAlert:  opts.OnAlert,
		ctx:      ctx,
		cancel:   cancel,
	}
	c.reg = NewRegistry(t, c.store)
	c.reg.OnChange = c.notify
	c.pres.OnChange = c.notify
	c.presSub = c.pres.Subscription(t)

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	c.bot = bot.New(bot.Deps{
		Economy:   c.econ,
		Presence:  c,
		Channels:  c,
		Directory: c,
		Rand:      rng,
		Log:       &c.log,
	})
	return c, nil
}

// Start joins presence and opens the default channel.
func (c *Chat) Start(ctx context.Context) error {
	if err := c.presSub.Start(ctx); err != nil {
		return fmt.Errorf("presence subscribe: %w", err)
	}
	if err := c.pres.Track(ctx, protocol.PresenceRecord{
		ID:        c.me.UserID,
		Username:  c.me.Username,
		AvatarURL: c.me.AvatarURL,
	}); err != nil {
		c.log.Error().Err(err).Msg("presence track failed")
	}
	return c.reg.Switch(ctx, DefaultChannel)
}

// Submit handles one line of user input: slash commands go to the bot, any
// other text is sent to the active channel.
func (c *Chat) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if _, _, ok := bot.Parse(text); !ok {
		return c.send(text, false, false)
	}

	reply, handled := c.bot.Dispatch(ctx, text, c.sender(ctx))
	if !handled || reply.Text == "" {
		return nil
	}
	switch {
	case reply.Private:
		c.store.AppendLocal(c.reg.Active(), reply.Text)
		c.notify()
		return nil
	case reply.AsUser:
		return c.send(reply.Text, reply.VIP, false)
	default:
		return c.send(reply.Text, false, true)
	}
}

func (c *Chat) sender(ctx context.Context) bot.Sender {
	bal, err := c.econ.Balance(ctx, c.me.UserID)
	if err != nil {
		c.log.Warn().Err(err).Msg("balance lookup failed")
	}
	return bot.Sender{
		UserID:     c.me.UserID,
		Username:   c.me.Username,
		Balance:    bal,
		BalanceErr: err,
		Online:     c.pres.Online(),
	}
}

// send appends a pending message and inserts it in the background. The echo
// or the insert reply confirms it; a failed insert removes it again.
func (c *Chat) send(text string, vip, asBot bool) error {
	channel := c.reg.Active()
	if channel == "" {
		return ErrUnknownChannel
	}
	m := c.store.AppendPending(Message{
		ChannelID: channel,
		AuthorID:  c.me.UserID,
		Content:   text,
		IsVIP:     vip,
		Bot:       asBot,
	})
	c.notify()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(c.ctx, sendTimeout)
		defer cancel()

		var row protocol.MessageRow
		if err := c.t.Insert(ctx, protocol.TableMessages, m.Row(), &row); err != nil {
			c.log.Error().Err(err).Str("channel", channel).Msg("send failed")
			if c.store.Drop(m.ID) {
				c.notify()
			}
			if c.onAlert != nil && c.ctx.Err() == nil {
				c.onAlert(fmt.Errorf("message not sent: %w", err))
			}
			return
		}
		if row.ID != "" && c.store.ApplyConfirmed(row).Changed() {
			c.notify()
		}
	}()
	return nil
}

func (c *Chat) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}

func (c *Chat) Me() Identity                          { return c.me }
func (c *Chat) Messages() []Message                   { return c.store.Messages() }
func (c *Chat) Channels() []protocol.ChannelDescriptor { return c.reg.Channels() }
func (c *Chat) Active() string                        { return c.reg.Active() }
func (c *Chat) Online() []protocol.PresenceRecord     { return c.pres.Sorted() }
func (c *Chat) Bot() *bot.Bot                         { return c.bot }

func (c *Chat) Switch(ctx context.Context, channelID string) error {
	return c.reg.Switch(ctx, channelID)
}

// SetStatus sets the mood line on this user's presence record.
func (c *Chat) SetStatus(ctx context.Context, status string) error {
	return c.pres.Update(ctx, PresenceUpdate{Status: &status})
}

// Clear purges the active channel for everyone and empties the window.
func (c *Chat) Clear(ctx context.Context) error {
	channel := c.reg.Active()
	var out protocol.PurgeResult
	err := c.t.RPC(ctx, protocol.ProcPurgeChannel, protocol.PurgeArgs{ChannelID: channel, UserID: c.me.UserID}, &out)
	if err != nil {
		return err
	}
	c.log.Info().Str("channel", channel).Int64("deleted", out.Deleted).Msg("channel purged")
	c.store.Clear()
	c.notify()
	return nil
}

// JoinVoice enters a voice room and switches to its linked channel, creating
// the channel if this client has not seen it yet.
func (c *Chat) JoinVoice(ctx context.Context, name string) (protocol.ChannelDescriptor, error) {
	d := c.reg.CreateVoiceLinked(name, c.me.UserID)
	in := true
	if err := c.pres.Update(ctx, PresenceUpdate{InVoice: &in, VoiceRoom: &d.VoiceRoom}); err != nil {
		c.log.Warn().Err(err).Str("room", d.VoiceRoom).Msg("voice presence not published")
	}
	if err := c.reg.Switch(ctx, d.ID); err != nil {
		return d, err
	}
	return d, nil
}

// LeaveVoice leaves the current voice room. The linked channel closes when
// this user created it; otherwise the client just returns to the default
// channel.
func (c *Chat) LeaveVoice(ctx context.Context) error {
	self, ok := c.pres.Self()
	if !ok || !self.InVoice {
		return ErrNotInVoice
	}
	room := self.VoiceRoom
	out := false
	if err := c.pres.Update(ctx, PresenceUpdate{InVoice: &out}); err != nil {
		c.log.Warn().Err(err).Str("room", room).Msg("voice presence not published")
	}
	err := c.reg.Abandon(ctx, room, c.me.UserID)
	switch {
	case errors.Is(err, ErrNotCreator), errors.Is(err, ErrUnknownChannel):
		if strings.HasPrefix(c.reg.Active(), "voice-") {
			return c.reg.Switch(ctx, DefaultChannel)
		}
		return nil
	default:
		return err
	}
}

// Lookup finds a profile by username.
func (c *Chat) Lookup(ctx context.Context, username string) (protocol.Profile, error) {
	var rows []protocol.Profile
	if err := c.t.Select(ctx, protocol.TableProfiles, protocol.Eq("username", username), 1, "", &rows); err != nil {
		return protocol.Profile{}, err
	}
	if len(rows) == 0 {
		return protocol.Profile{}, bot.ErrUnknownUser
	}
	return rows[0], nil
}

// Close ends the session: games are dropped, presence is withdrawn and the
// subscriptions stop. Pending sends are abandoned.
func (c *Chat) Close(ctx context.Context) error {
	c.bot.Reset()
	c.presSub.Stop()
	err := c.pres.Untrack(ctx)
	c.reg.Close()
	c.cancel()
	c.wg.Wait()
	return err
}
