package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spacedan/client/internal/chat"
	"spacedan/client/internal/netcfg"
	"spacedan/client/internal/realtime"
	"spacedan/shared/logging"
	"spacedan/shared/protocol"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type (
	changedMsg struct{}
	alertMsg   struct{ err error }
	sentMsg    struct{ err error }
	switchMsg  struct{ err error }
	closedMsg  struct{}
)

type theme struct {
	header   lipgloss.Style
	tab      lipgloss.Style
	tabOn    lipgloss.Style
	panel    lipgloss.Style
	title    lipgloss.Style
	input    lipgloss.Style
	footer   lipgloss.Style
	alert    lipgloss.Style
	muted    lipgloss.Style
	author   lipgloss.Style
	self     lipgloss.Style
	bot      lipgloss.Style
	vip      lipgloss.Style
	local    lipgloss.Style
	inVoice  lipgloss.Style
	presence lipgloss.Style
}

func newTheme() theme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	gold := lipgloss.Color("#ffd166")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")

	return theme{
		header: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		tab: lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 1),
		tabOn: lipgloss.NewStyle().
			Background(pink).
			Foreground(lipgloss.Color("#22062f")).
			Bold(true).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		title: lipgloss.NewStyle().Foreground(mint).Bold(true),
		input: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint).
			Padding(0, 1),
		footer:   lipgloss.NewStyle().Foreground(muted),
		alert:    lipgloss.NewStyle().Foreground(pink).Bold(true),
		muted:    lipgloss.NewStyle().Foreground(muted),
		author:   lipgloss.NewStyle().Foreground(blue).Bold(true),
		self:     lipgloss.NewStyle().Foreground(mint).Bold(true),
		bot:      lipgloss.NewStyle().Foreground(gold).Bold(true),
		vip:      lipgloss.NewStyle().Foreground(gold).Background(lipgloss.Color("#3a2a00")),
		local:    lipgloss.NewStyle().Foreground(muted).Italic(true),
		inVoice:  lipgloss.NewStyle().Foreground(pink),
		presence: lipgloss.NewStyle().Foreground(text),
	}
}

const sidebarWidth = 24

type model struct {
	c       *chat.Chat
	updates <-chan tea.Msg
	done    <-chan struct{}
	theme   theme

	input    textinput.Model
	timeline viewport.Model
	sidebar  viewport.Model

	width, height int
	status        string
	alert         string
	quitting      bool
}

func newModel(c *chat.Chat, updates <-chan tea.Msg, done <-chan struct{}) model {
	in := textinput.New()
	in.Prompt = "❯ "
	in.CharLimit = 2000
	in.Placeholder = "Say something, or /help"
	in.Focus()
	return model{
		c:        c,
		updates:  updates,
		done:     done,
		theme:    newTheme(),
		input:    in,
		timeline: viewport.New(0, 0),
		sidebar:  viewport.New(0, 0),
		status:   "connected",
	}
}

// listen waits for the next notification from the chat session.
func (m model) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.updates:
			return msg
		case <-m.done:
			return closedMsg{}
		}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listen())
}

func (m model) submitCmd(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return sentMsg{err: m.c.Submit(ctx, text)}
	}
}

func (m model) switchCmd(delta int) tea.Cmd {
	chans := m.c.Channels()
	if len(chans) == 0 {
		return nil
	}
	idx := 0
	for i, ch := range chans {
		if ch.ID == m.c.Active() {
			idx = i
		}
	}
	next := chans[(idx+delta+len(chans))%len(chans)].ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return switchMsg{err: m.c.Switch(ctx, next)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case changedMsg:
		m.render()
		cmds = append(cmds, m.listen())
	case alertMsg:
		m.alert = msg.err.Error()
		cmds = append(cmds, m.listen())
	case closedMsg:
		m.status = "disconnected"
		m.alert = "connection lost, restart to reconnect"
	case sentMsg:
		if msg.err != nil {
			m.alert = msg.err.Error()
		}
	case switchMsg:
		if msg.err != nil {
			m.alert = msg.err.Error()
		}
		m.render()
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.render()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			m.alert = ""
			if text != "" {
				cmds = append(cmds, m.submitCmd(text))
			}
			return m, tea.Batch(cmds...)
		case "tab":
			return m, m.switchCmd(1)
		case "shift+tab":
			return m, m.switchCmd(-1)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *model) resize() {
	inner := max(20, m.width-sidebarWidth-6)
	body := max(5, m.height-9)
	m.timeline.Width, m.timeline.Height = inner, body
	m.sidebar.Width, m.sidebar.Height = sidebarWidth, body
	m.input.Width = max(10, m.width-8)
}

func (m *model) render() {
	atBottom := m.timeline.AtBottom()
	m.timeline.SetContent(m.renderTimeline())
	if atBottom {
		m.timeline.GotoBottom()
	}
	m.sidebar.SetContent(m.renderSidebar())
}

func (m *model) names() map[string]string {
	out := map[string]string{protocol.BotUserID: protocol.BotName}
	for _, r := range m.c.Online() {
		out[r.ID] = r.Username
	}
	me := m.c.Me()
	out[me.UserID] = me.Username
	return out
}

func (m *model) renderTimeline() string {
	msgs := m.c.Messages()
	if len(msgs) == 0 {
		return m.theme.muted.Render("No messages yet. Say hi!")
	}
	names := m.names()
	me := m.c.Me().UserID
	var b strings.Builder
	for _, msg := range msgs {
		author := msg.Author()
		name, ok := names[author]
		if !ok {
			name = author
			if len(name) > 8 {
				name = name[:8]
			}
		}
		style := m.theme.author
		switch {
		case msg.Bot:
			style = m.theme.bot
		case author == me:
			style = m.theme.self
		}
		body := msg.Content
		switch {
		case msg.Status == chat.Local:
			body = m.theme.local.Render(body)
		case msg.IsVIP:
			body = m.theme.vip.Render("★ " + body)
		}
		stamp := m.theme.muted.Render(msg.CreatedAt.Local().Format("15:04"))
		line := fmt.Sprintf("%s %s %s", stamp, style.Render(name), body)
		if msg.Status == chat.Pending {
			line += m.theme.muted.Render(" …")
		}
		b.WriteString(lipgloss.NewStyle().Width(m.timeline.Width).Render(line))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *model) renderSidebar() string {
	online := m.c.Online()
	var b strings.Builder
	b.WriteString(m.theme.title.Render(fmt.Sprintf("Online (%d)", len(online))))
	for _, r := range online {
		b.WriteString("\n")
		if r.InVoice {
			b.WriteString(m.theme.inVoice.Render("🎙 " + r.Username))
		} else {
			b.WriteString(m.theme.presence.Render("• " + r.Username))
		}
		if r.Status != "" {
			b.WriteString("\n  " + m.theme.muted.Render(r.Status))
		}
	}
	return b.String()
}

func (m model) renderTabs() string {
	var tabs []string
	for _, ch := range m.c.Channels() {
		label := "#" + ch.DisplayName
		if ch.ID == m.c.Active() {
			tabs = append(tabs, m.theme.tabOn.Render(label))
		} else {
			tabs = append(tabs, m.theme.tab.Render(label))
		}
	}
	return m.theme.header.Width(max(20, m.width-2)).Render(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.theme.panel.Render(m.timeline.View()),
		m.theme.panel.Render(m.sidebar.View()),
	)
	footer := m.theme.footer.Render(fmt.Sprintf("%s · %s · tab switch channel · esc quit", m.c.Me().Username, m.status))
	if m.alert != "" {
		footer = m.theme.alert.Render("⚠ "+m.alert) + "\n" + footer
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTabs(),
		body,
		m.theme.input.Width(max(20, m.width-2)).Render(m.input.View()),
		footer,
	)
}

// runChat connects, starts the chat session and runs the TUI until the user
// quits.
func runChat(ctx context.Context, cfg *netcfg.Config, s *protocol.LoginResp) error {
	log := logging.For("spacechat")
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, err := realtime.Dial(dialCtx, cfg.ServerURL, s.Token)
	cancel()
	if err != nil {
		return fmt.Errorf("connect %s: %w", cfg.ServerURL, err)
	}
	defer conn.Close()

	updates := make(chan tea.Msg, 16)
	notify := func(msg tea.Msg) {
		select {
		case updates <- msg:
		default:
			// a render is already queued
		}
	}
	c, err := chat.New(conn, chat.Identity{
		UserID:    s.Profile.ID,
		Username:  s.Username,
		AvatarURL: s.Profile.AvatarURL,
	}, chat.Options{
		OnChange: func() { notify(changedMsg{}) },
		OnAlert:  func(err error) { notify(alertMsg{err}) },
	})
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start chat: %w", err)
	}
	p := tea.NewProgram(newModel(c, updates, conn.Done()), tea.WithAltScreen())
	_, runErr := p.Run()

	closeCtx, cancelClose := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelClose()
	if err := c.Close(closeCtx); err != nil {
		log.Warn().Err(err).Msg("close chat")
	}
	return runErr
}
