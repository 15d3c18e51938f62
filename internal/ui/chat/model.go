// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/jeranaias/qubi-tui/internal/lifecycle"
	"github.com/jeranaias/qubi-tui/internal/logging"
	"github.com/jeranaias/qubi-tui/internal/model"
	"github.com/jeranaias/qubi-tui/internal/prefs"
	"github.com/jeranaias/qubi-tui/internal/ui/styles"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Lifecycle is the part of the model lifecycle coordinator the UI drives.
// *lifecycle.Coordinator implements it.
type Lifecycle interface {
	Load(ctx context.Context) error
	SetAutoLoad(ctx context.Context, enabled bool) error
	ClearCache(ctx context.Context) error
}

// Sender sends one user message and returns the reply.
// *mediator.Mediator implements it.
type Sender interface {
	Send(ctx context.Context, userText string) (string, error)
}

// ThemeStore persists the theme preference. *prefs.Store implements it.
type ThemeStore interface {
	SetTheme(ctx context.Context, t prefs.Theme) error
}

// Options wires a Model.
type Options struct {
	// Context bounds every background call; cancel it on shutdown.
	Context context.Context

	Lifecycle Lifecycle
	Sender    Sender
	Themes    ThemeStore
	Theme     *styles.Theme

	ModelID       string
	AutoLoad      bool
	NotReadyDelay time.Duration

	Logger *zap.Logger
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the chat screen. It owns the transcript,
// the input buffer and the busy flag; model loading belongs to the
// coordinator and arrives here as signal messages.
type Model struct {
	ctx    context.Context
	opts   Options
	logger *zap.Logger

	theme  *styles.Theme
	themes *themeWriter
	keyMap KeyMap

	transcript *model.Transcript
	input      textinput.Model
	viewport   viewport.Model
	spinner    spinner.Model
	renderer   *glamour.TermRenderer

	busy     bool
	spinning bool
	autoLoad bool

	loaded      bool
	state       lifecycle.LoadingState
	cacheStatus lifecycle.CacheStatus
	progress    string
	fraction    float64
	statusMsg   string

	menuOpen  bool
	menuIndex int

	width  int
	height int
}

// New creates the chat model with the greeting already in the transcript.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.Light)
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = styles.LineSpinner.Bubbles()

	m := Model{
		ctx:         ctx,
		opts:        opts,
		logger:      logging.OrNop(opts.Logger).Named("ui"),
		theme:       theme,
		themes:      newThemeWriter(opts.Themes),
		keyMap:      DefaultKeyMap(),
		transcript:  model.NewTranscript(Greeting),
		input:       ti,
		viewport:    vp,
		spinner:     sp,
		autoLoad:    opts.AutoLoad,
		state:       lifecycle.StateIdle,
		cacheStatus: lifecycle.CacheUnknown,
		width:       80,
		height:      24,
	}
	m.rebuildRenderer()
	m.refresh()
	return m
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case LoadedMsg:
		return m.handleLoaded(msg)

	case ProgressMsg:
		m.progress = msg.Text
		return m, nil

	case FractionMsg:
		m.fraction = msg.Fraction
		return m, nil

	case StateMsg:
		m.state = msg.State
		cmd := m.startSpinner()
		return m, cmd

	case CacheStatusMsg:
		m.cacheStatus = msg.Status
		return m, nil

	case GuidanceMsg:
		m.appendAssistant(msg.Text)
		return m, nil

	case ThemeChangedMsg:
		m.applyTheme(msg.Theme)
		return m, nil

	case replyMsg:
		return m.handleReply(msg)

	case notReadyMsg:
		m.busy = false
		m.appendAssistant(NotReadyText)
		return m, nil

	case actionDoneMsg:
		return m.handleActionDone(msg)

	case themeSavedMsg:
		if msg.err != nil {
			m.logger.Error("failed to save theme", zap.String("theme", string(msg.theme)), zap.Error(msg.err))
			m.statusMsg = "Failed to save theme: " + msg.err.Error()
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.statusMsg = "Failed to copy: " + msg.err.Error()
		} else {
			m.statusMsg = "Copied reply (" + formatChars(msg.chars) + ")"
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy && m.state != lifecycle.StateLoading {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit sends the input buffer. Blank input and input entered while a reply
// is pending are ignored. Otherwise the user message is appended at once and
// busy stays set until the reply, the apology or the not-ready notice lands.
func (m Model) Submit() (Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.busy {
		return m, nil
	}

	m.transcript.AddUser(text)
	m.input.Reset()
	m.busy = true
	m.statusMsg = ""
	m.refresh()

	var cmd tea.Cmd
	if !m.loaded {
		cmd = notReadyCmd(m.opts.NotReadyDelay)
	} else {
		cmd = sendCmd(m.ctx, m.opts.Sender, text)
	}
	spin := m.startSpinner()
	return m, tea.Batch(cmd, spin)
}

func (m Model) handleReply(msg replyMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		m.logger.Warn("chat request failed", zap.Error(msg.err))
		m.appendAssistant(replyErrorText(msg.err))
		return m, nil
	}
	m.appendAssistant(msg.text)
	return m, nil
}

func (m Model) handleLoaded(msg LoadedMsg) (tea.Model, tea.Cmd) {
	was := m.loaded
	m.loaded = msg.Loaded
	if msg.Loaded && !was {
		m.appendAssistant(LoadedNotice)
	}
	return m, nil
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Quit) {
		return m, tea.Quit
	}
	if m.menuOpen {
		return m.handleMenuKey(msg)
	}

	switch {
	case key.Matches(msg, m.keyMap.Menu):
		m.menuOpen = true
		m.menuIndex = 0
		return m, nil

	case key.Matches(msg, m.keyMap.ToggleTheme):
		return m.toggleTheme()

	case key.Matches(msg, m.keyMap.Copy):
		return m, m.copyLastReply()

	case key.Matches(msg, m.keyMap.Submit):
		return m.Submit()

	case key.Matches(msg, m.keyMap.Up),
		key.Matches(msg, m.keyMap.Down),
		key.Matches(msg, m.keyMap.PageUp),
		key.Matches(msg, m.keyMap.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	// header + input (border + line) + status line
	const reserved = 1 + 2 + 1
	vpHeight := m.height - reserved
	if vpHeight < 1 {
		vpHeight = 1
	}
	vpWidth := m.width
	if vpWidth < 1 {
		vpWidth = 1
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight

	inputWidth := m.width - 4 - len(m.input.Prompt)
	if inputWidth < 10 {
		inputWidth = 10
	}
	m.input.Width = inputWidth

	m.theme.SetSize(m.width, m.height)
	m.rebuildRenderer()
	m.refresh()
	return m, nil
}

// =============================================================================
// THEME AND CLIPBOARD
// =============================================================================

func (m Model) toggleTheme() (tea.Model, tea.Cmd) {
	next := prefs.Theme(m.theme.Toggle())
	m.rebuildRenderer()
	m.refresh()
	m.logger.Info("theme toggled", zap.String("theme", string(next)))
	return m, saveThemeCmd(m.ctx, m.themes, next)
}

// applyTheme switches to t without persisting it.
func (m *Model) applyTheme(t prefs.Theme) {
	mode := styles.ParseMode(string(t))
	if mode == m.theme.Mode() {
		return
	}
	m.theme.SetMode(mode)
	m.rebuildRenderer()
	m.refresh()
}

func (m Model) copyLastReply() tea.Cmd {
	last, ok := m.transcript.LastAssistant()
	if !ok || last.Content == "" {
		return nil
	}
	return copyCmd(last.Content)
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Model) appendAssistant(text string) {
	m.transcript.AddAssistant(text)
	m.refresh()
}

// startSpinner begins a tick chain unless one is already running.
func (m *Model) startSpinner() tea.Cmd {
	if m.spinning || (!m.busy && m.state != lifecycle.StateLoading) {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

func (m *Model) rebuildRenderer() {
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.theme.GlamourStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		m.logger.Warn("markdown renderer unavailable", zap.Error(err))
		r = nil
	}
	m.renderer = r
}

// refresh re-renders the transcript into the viewport and scrolls to the end.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Messages returns a copy of the transcript.
func (m Model) Messages() []model.ChatMessage { return m.transcript.Messages() }

// Busy reports whether a reply is pending.
func (m Model) Busy() bool { return m.busy }

// Loaded reports the last loaded flag received.
func (m Model) Loaded() bool { return m.loaded }

// AutoLoad reports the auto-load preference as the UI sees it.
func (m Model) AutoLoad() bool { return m.autoLoad }

// Theme returns the active theme.
func (m Model) Theme() *styles.Theme { return m.theme }

// MenuOpen reports whether the menu is shown.
func (m Model) MenuOpen() bool { return m.menuOpen }

// Status returns the transient status line text.
func (m Model) Status() string { return m.statusMsg }

// Input returns the input buffer.
func (m Model) Input() string { return m.input.Value() }

// SetInput replaces the input buffer.
func (m *Model) SetInput(s string) {
	m.input.SetValue(s)
}
