package ui

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/damay/pkg/session"
)

// Controller is the part of session.Manager the views drive.
type Controller interface {
	Submit(ctx context.Context, text string) error
	SelectRecommendation(ctx context.Context, i int) error
	Reroll(ctx context.Context) error
	Reset(ctx context.Context) error
	Snapshot() session.Snapshot
}

var _ Controller = (*session.Manager)(nil)

const (
	busyHint = "Tunggu sebentar, Damay masih menjawab..."
	helpText = "enter kirim • tab pilih saran • ctrl+r jawab ulang • ctrl+n obrolan baru • ctrl+y salin • ctrl+c keluar"
)

type actionDoneMsg struct {
	action string
	// text is the submitted input, handed back so a rejected submit can
	// put it back into the input.
	text string
	err  error
}

type copyFunc func(string) error

// Model is the Bubble Tea program for a chat session. It only reads state
// from snapshots; every change goes through the Controller.
type Model struct {
	ctx   context.Context
	ctrl  Controller
	feed  *SnapshotFeed
	title string

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	md       *markdownRenderer
	copyText copyFunc

	snap   session.Snapshot
	focus  int
	status string
	err    error

	width  int
	height int
}

type ModelOption func(*Model)

func WithTitle(title string) ModelOption {
	return func(m *Model) { m.title = title }
}

func WithMarkdownStyle(style string) ModelOption {
	return func(m *Model) { m.md = newMarkdownRenderer(style) }
}

func withCopyFunc(fn copyFunc) ModelOption {
	return func(m *Model) { m.copyText = fn }
}

func NewModel(ctx context.Context, ctrl Controller, feed *SnapshotFeed, opts ...ModelOption) Model {
	in := textinput.New()
	in.Placeholder = "Ketik pesan..."
	in.Prompt = "› "
	in.CharLimit = 2000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := Model{
		ctx:      ctx,
		ctrl:     ctrl,
		feed:     feed,
		title:    "Damay · SMKN 2 Indramayu",
		viewport: viewport.New(80, 20),
		input:    in,
		spinner:  sp,
		md:       newMarkdownRenderer(DefaultMarkdownStyle),
		copyText: clipboard.WriteAll,
		snap:     ctrl.Snapshot(),
		focus:    -1,
		width:    80,
		height:   24,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.layout()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForSnapshot(m.feed))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case snapshotMsg:
		m.snap = session.Snapshot(msg)
		if m.focus >= len(m.snap.Recommendations) {
			m.focus = -1
		}
		if m.focus < 0 {
			m.input.Focus()
		}
		if !m.snap.Pending && m.status == busyHint {
			m.status = ""
		}
		m.layout()
		return m, waitForSnapshot(m.feed)

	case actionDoneMsg:
		if msg.err != nil {
			if errors.Is(msg.err, session.ErrBusy) {
				m.status = busyHint
				if msg.text != "" && m.input.Value() == "" {
					m.input.SetValue(msg.text)
					m.input.CursorEnd()
				}
			} else {
				log.Warn().Err(msg.err).Str("action", msg.action).Msg("session action failed")
				m.err = msg.err
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.snap.Pending {
			m.refreshViewport()
		}
		return m, cmd

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		if m.focus >= 0 {
			m.focus = -1
			m.input.Focus()
			m.layout()
		}
		return m, nil

	case "enter":
		m.err = nil
		if m.focus >= 0 {
			cmd := m.selectChip(m.focus)
			return m, cmd
		}
		return m.submitInput()

	case "tab":
		m.cycleFocus(1)
		return m, nil

	case "shift+tab":
		m.cycleFocus(-1)
		return m, nil

	case "ctrl+r":
		m.err = nil
		if m.snap.Pending {
			m.status = busyHint
			return m, nil
		}
		return m, m.run("reroll", m.ctrl.Reroll)

	case "ctrl+n":
		m.err = nil
		m.status = ""
		m.focus = -1
		m.input.Reset()
		return m, m.run("reset", m.ctrl.Reset)

	case "ctrl+y":
		last, ok := m.snap.LastBotMessage()
		if !ok {
			return m, nil
		}
		if err := m.copyText(last.Content); err != nil {
			m.err = errors.Wrap(err, "copy reply")
		} else {
			m.status = "Jawaban disalin."
		}
		return m, nil

	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.focus >= 0 {
		// typing returns focus to the input
		m.focus = -1
		m.input.Focus()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submitInput() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if m.snap.Pending {
		// keep the text so it can be sent once the reply arrives
		m.status = busyHint
		return m, nil
	}
	m.status = ""
	m.input.Reset()
	ctx, ctrl := m.ctx, m.ctrl
	return m, func() tea.Msg {
		return actionDoneMsg{action: "submit", text: text, err: ctrl.Submit(ctx, text)}
	}
}

func (m *Model) selectChip(i int) tea.Cmd {
	if m.snap.Pending {
		m.status = busyHint
		return nil
	}
	m.focus = -1
	m.input.Focus()
	m.layout()
	return m.run("select", func(ctx context.Context) error {
		return m.ctrl.SelectRecommendation(ctx, i)
	})
}

func (m *Model) cycleFocus(delta int) {
	n := len(m.snap.Recommendations)
	if n == 0 {
		m.focus = -1
		return
	}
	// positions: -1 (input), 0..n-1 (chips)
	pos := (m.focus + 1 + delta + n + 1) % (n + 1)
	m.focus = pos - 1
	if m.focus < 0 {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
	m.layout()
}

func (m Model) run(action string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: fn(ctx)}
	}
}

func (m *Model) layout() {
	chips := renderChips(m.snap.Recommendations, m.focus, m.width)
	fixed := lipgloss.Height(m.headerView()) + lipgloss.Height(m.footerView(chips))
	m.viewport.Width = m.width
	m.viewport.Height = maxInt(m.height-fixed, 3)
	m.input.Width = maxInt(m.width-4, 10)
	m.refreshViewport()
}

// refreshViewport redraws the transcript and keeps the newest message in view.
func (m *Model) refreshViewport() {
	m.viewport.SetContent(renderTranscript(m.snap, m.width-2, m.md, m.spinner.View()))
	m.viewport.GotoBottom()
}

func (m Model) headerView() string {
	return titleStyle.Render(m.title)
}

func (m Model) footerView(chips string) string {
	var parts []string
	if chips != "" {
		parts = append(parts, chips)
	}
	parts = append(parts, m.input.View())
	switch {
	case m.err != nil:
		parts = append(parts, errorStyle.Render(m.err.Error()))
	case m.status != "":
		parts = append(parts, statusStyle.Render(m.status))
	default:
		parts = append(parts, hintStyle.Render(helpText))
	}
	return strings.Join(parts, "\n")
}

func (m Model) View() string {
	chips := renderChips(m.snap.Recommendations, m.focus, m.width)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.footerView(chips),
	)
}

// Run starts the full-screen program and blocks until the user quits.
func Run(ctx context.Context, ctrl Controller, feed *SnapshotFeed, opts ...ModelOption) error {
	p := tea.NewProgram(NewModel(ctx, ctrl, feed, opts...), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run chat ui")
	}
	return nil
}
