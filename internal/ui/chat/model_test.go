// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/qubi-tui/internal/lifecycle"
	"github.com/jeranaias/qubi-tui/internal/mediator"
	"github.com/jeranaias/qubi-tui/internal/model"
	"github.com/jeranaias/qubi-tui/internal/prefs"
	"github.com/jeranaias/qubi-tui/internal/ui/styles"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeSender struct {
	reply string
	err   error
	calls []string
}

func (f *fakeSender) Send(_ context.Context, text string) (string, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return "", f.err
	}
	return f.reply + ": " + text, nil
}

type fakeLifecycle struct {
	loads    int
	clears   int
	autoLoad []bool
	err      error
}

func (f *fakeLifecycle) Load(context.Context) error {
	f.loads++
	return f.err
}

func (f *fakeLifecycle) SetAutoLoad(_ context.Context, enabled bool) error {
	f.autoLoad = append(f.autoLoad, enabled)
	return f.err
}

func (f *fakeLifecycle) ClearCache(context.Context) error {
	f.clears++
	return f.err
}

// =============================================================================
// HELPERS
// =============================================================================

type harness struct {
	sender *fakeSender
	lc     *fakeLifecycle
	store  *prefs.Store
}

func newTestModel(t *testing.T, mutate ...func(*Options)) (Model, *harness) {
	t.Helper()
	h := &harness{
		sender: &fakeSender{reply: "echo"},
		lc:     &fakeLifecycle{},
		store:  prefs.NewStore(prefs.NewMemoryKV(), nil),
	}
	opts := Options{
		Lifecycle:     h.lc,
		Sender:        h.sender,
		Themes:        h.store,
		Theme:         styles.NewTheme(styles.Light),
		ModelID:       "gemma2:2b",
		AutoLoad:      true,
		NotReadyDelay: 5 * time.Millisecond,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	return New(opts), h
}

// run executes cmd and returns the messages it produces. Batches are
// expanded; spinner ticks and cursor blinks are dropped.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case nil:
		return nil
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, run(c)...)
		}
		return out
	case spinner.TickMsg:
		return nil
	default:
		return []tea.Msg{msg}
	}
}

func step(m Model, msg tea.Msg) (Model, []tea.Msg) {
	next, cmd := m.Update(msg)
	return next.(Model), run(cmd)
}

// settle feeds msgs back into the model until nothing is left.
func settle(m Model, msgs []tea.Msg) Model {
	for len(msgs) > 0 {
		msg := msgs[0]
		msgs = msgs[1:]
		var more []tea.Msg
		m, more = step(m, msg)
		msgs = append(msgs, more...)
	}
	return m
}

func press(m Model, k tea.KeyType) Model {
	m, msgs := step(m, tea.KeyMsg{Type: k})
	return settle(m, msgs)
}

func submit(m Model, text string) (Model, []tea.Msg) {
	m.SetInput(text)
	m, cmd := m.Submit()
	return m, run(cmd)
}

func loaded(m Model) Model {
	m, _ = step(m, LoadedMsg{Loaded: true})
	return m
}

func lastMessage(t *testing.T, m Model) model.ChatMessage {
	t.Helper()
	msgs := m.Messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestNew_StartsWithGreeting(t *testing.T) {
	m, _ := newTestModel(t)

	msgs := m.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleAssistant, msgs[0].Role)
	assert.Equal(t, Greeting, msgs[0].Content)
	assert.False(t, m.Busy())
	assert.False(t, m.Loaded())
}

func TestSubmit_LoadedSuccessAddsTwoMessages(t *testing.T) {
	m, h := newTestModel(t)
	m = loaded(m)

	for i, text := range []string{"hi", "what is go?", "  padded  "} {
		before := len(m.Messages())

		var pending []tea.Msg
		m, pending = submit(m, text)
		require.True(t, m.Busy(), "call %d", i)
		require.Len(t, m.Messages(), before+1)
		assert.Empty(t, m.Input())

		m = settle(m, pending)
		require.Len(t, m.Messages(), before+2, "call %d", i)
		msgs := m.Messages()
		assert.Equal(t, model.RoleUser, msgs[before].Role)
		assert.Equal(t, model.RoleAssistant, msgs[before+1].Role)
		assert.Equal(t, "echo: "+msgs[before].Content, msgs[before+1].Content)
		assert.False(t, m.Busy())
	}
	assert.Equal(t, []string{"hi", "what is go?", "padded"}, h.sender.calls)
}

func TestSubmit_LoadedFailureAddsApology(t *testing.T) {
	m, h := newTestModel(t)
	h.sender.err = errors.New("engine exploded")
	m = loaded(m)

	for i := 0; i < 2; i++ {
		before := len(m.Messages())
		var pending []tea.Msg
		m, pending = submit(m, fmt.Sprintf("question %d", i))
		m = settle(m, pending)

		require.Len(t, m.Messages(), before+2)
		last := lastMessage(t, m)
		assert.Equal(t, model.RoleAssistant, last.Role)
		assert.Equal(t, ApologyText, last.Content)
		assert.False(t, m.Busy())
	}
}

func TestSubmit_WhitespaceIsNoOp(t *testing.T) {
	for _, loadedState := range []bool{false, true} {
		t.Run(fmt.Sprintf("loaded=%v", loadedState), func(t *testing.T) {
			m, h := newTestModel(t)
			if loadedState {
				m = loaded(m)
			}
			before := len(m.Messages())

			for _, blank := range []string{"", "   ", "\t\n ", " "} {
				m.SetInput(blank)
				var cmd tea.Cmd
				m, cmd = m.Submit()
				assert.Nil(t, cmd)
				assert.Len(t, m.Messages(), before)
				assert.False(t, m.Busy())
			}
			assert.Empty(t, h.sender.calls)
		})
	}
}

func TestSubmit_WhileBusyIsNoOp(t *testing.T) {
	m, h := newTestModel(t)
	m = loaded(m)

	m, pending := submit(m, "first")
	require.True(t, m.Busy())
	afterFirst := len(m.Messages())

	m.SetInput("second")
	m, cmd := m.Submit()
	assert.Nil(t, cmd)
	assert.Len(t, m.Messages(), afterFirst)
	assert.True(t, m.Busy())
	assert.Equal(t, "second", m.Input(), "ignored input stays in the buffer")

	m = settle(m, pending)
	assert.False(t, m.Busy())
	assert.Equal(t, []string{"first"}, h.sender.calls)
}

func TestSubmit_NotLoadedAddsOneNotice(t *testing.T) {
	m, h := newTestModel(t)
	before := len(m.Messages())

	start := time.Now()
	m, pending := submit(m, "hello?")
	require.True(t, m.Busy())
	require.Len(t, m.Messages(), before+1)

	m = settle(m, pending)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)

	require.Len(t, m.Messages(), before+2)
	last := lastMessage(t, m)
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Equal(t, NotReadyText, last.Content)
	assert.False(t, m.Busy())
	assert.Empty(t, h.sender.calls, "engine must not be contacted")
}

func TestSubmit_EnterKey(t *testing.T) {
	m, _ := newTestModel(t)
	m = loaded(m)
	before := len(m.Messages())

	m.SetInput("via keyboard")
	m = press(m, tea.KeyEnter)

	require.Len(t, m.Messages(), before+2)
	assert.Equal(t, "echo: via keyboard", lastMessage(t, m).Content)
}

func TestReplyErrorText(t *testing.T) {
	assert.Equal(t, NotReadyText, replyErrorText(mediator.ErrModelNotInitialized))
	assert.Equal(t, NotReadyText, replyErrorText(fmt.Errorf("send: %w", mediator.ErrModelNotInitialized)))
	assert.Equal(t, ApologyText, replyErrorText(errors.New("boom")))
}

func TestSendCmd_NilSender(t *testing.T) {
	msg := sendCmd(context.Background(), nil, "x")()
	reply, ok := msg.(replyMsg)
	require.True(t, ok)
	assert.ErrorIs(t, reply.err, mediator.ErrModelNotInitialized)
}

// =============================================================================
// SIGNALS
// =============================================================================

func TestLoadedMsg_NoticeOnEachRisingEdge(t *testing.T) {
	m, _ := newTestModel(t)

	for _, v := range []bool{false, true, true, false, true} {
		m, _ = step(m, LoadedMsg{Loaded: v})
	}

	notices := 0
	for _, msg := range m.Messages() {
		if msg.Content == LoadedNotice {
			notices++
		}
	}
	assert.Equal(t, 2, notices)
	assert.True(t, m.Loaded())
}

func TestSignalMessages(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = step(m, StateMsg{State: lifecycle.StateLoading})
	m, _ = step(m, ProgressMsg{Text: "Fetching model gemma2:2b: 40%"})
	m, _ = step(m, FractionMsg{Fraction: 0.4})
	m, _ = step(m, CacheStatusMsg{Status: lifecycle.CacheFound})

	assert.Equal(t, lifecycle.StateLoading, m.state)
	assert.Equal(t, lifecycle.CacheFound, m.cacheStatus)
	assert.InDelta(t, 0.4, m.fraction, 1e-9)

	view := m.View()
	assert.Contains(t, view, "loading")
	assert.Contains(t, view, "cache: found")
}

func TestStatusBar_CacheSegmentKeepsWidth(t *testing.T) {
	m, _ := newTestModel(t)
	want := map[lifecycle.CacheStatus]string{
		lifecycle.CacheFound:    "cache: found    ",
		lifecycle.CacheChecking: "cache: checking ",
		lifecycle.CacheNotFound: "cache: not-found",
	}
	for status, seg := range want {
		m, _ = step(m, CacheStatusMsg{Status: status})
		bar := m.renderStatusBar()
		i := strings.Index(bar, "cache: ")
		require.GreaterOrEqual(t, i, 0, "status %s", status)
		assert.Equal(t, seg, bar[i:i+len(seg)])
	}
}

func TestGuidanceMsg_AppendsAssistantMessage(t *testing.T) {
	m, _ := newTestModel(t)
	before := len(m.Messages())

	m, _ = step(m, GuidanceMsg{Text: GuidanceText})

	require.Len(t, m.Messages(), before+1)
	last := lastMessage(t, m)
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Equal(t, GuidanceText, last.Content)
}

// =============================================================================
// THEME
// =============================================================================

func TestToggleTheme_PersistsAndFlipsAttribute(t *testing.T) {
	m, h := newTestModel(t)
	ctx := context.Background()
	require.Equal(t, "light", m.Theme().Attribute())

	m = press(m, tea.KeyCtrlT)
	assert.Equal(t, "dark", m.Theme().Attribute())
	assert.True(t, m.Theme().IsDark())
	assert.Equal(t, prefs.ThemeDark, h.store.Load(ctx).Theme)

	m = press(m, tea.KeyCtrlT)
	assert.Equal(t, "light", m.Theme().Attribute())
	assert.False(t, m.Theme().IsDark())
	assert.Equal(t, prefs.ThemeLight, h.store.Load(ctx).Theme)
}

func TestToggleTheme_SaveFailureShownInStatus(t *testing.T) {
	m, _ := newTestModel(t, func(o *Options) { o.Themes = failingThemes{} })

	m = press(m, tea.KeyCtrlT)
	assert.Equal(t, "dark", m.Theme().Attribute())
	assert.Contains(t, m.Status(), "Failed to save theme")
}

func TestToggleTheme_RapidTogglesPersistLastTheme(t *testing.T) {
	// The first toggle writes "dark" and is the slow one.
	m, h := newTestModel(t, func(o *Options) {
		o.Themes = &slowThemes{store: o.Themes, delay: 30 * time.Millisecond, slowFor: prefs.ThemeDark}
	})

	next, first := m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = next.(Model)
	next, second := m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = next.(Model)
	require.Equal(t, "light", m.Theme().Attribute())

	var wg sync.WaitGroup
	for _, cmd := range []tea.Cmd{first, second} {
		wg.Add(1)
		go func(cmd tea.Cmd) {
			defer wg.Done()
			run(cmd)
		}(cmd)
	}
	wg.Wait()

	assert.Equal(t, prefs.Theme(m.Theme().Attribute()), h.store.Load(context.Background()).Theme)
}

// slowThemes delays writes of one theme.
type slowThemes struct {
	store   ThemeStore
	delay   time.Duration
	slowFor prefs.Theme
}

func (s *slowThemes) SetTheme(ctx context.Context, t prefs.Theme) error {
	if t == s.slowFor {
		time.Sleep(s.delay)
	}
	return s.store.SetTheme(ctx, t)
}

type failingThemes struct{}

func (failingThemes) SetTheme(context.Context, prefs.Theme) error {
	return errors.New("disk full")
}

func TestThemeChangedMsg_AppliesWithoutSaving(t *testing.T) {
	m, h := newTestModel(t)

	m, msgs := step(m, ThemeChangedMsg{Theme: prefs.ThemeDark})
	assert.Empty(t, msgs)
	assert.Equal(t, "dark", m.Theme().Attribute())
	assert.Equal(t, prefs.ThemeLight, h.store.Load(context.Background()).Theme)
}

// =============================================================================
// MENU
// =============================================================================

func TestMenu_LoadModel(t *testing.T) {
	m, h := newTestModel(t)

	m = press(m, tea.KeyCtrlO)
	require.True(t, m.MenuOpen())
	assert.Contains(t, m.View(), "Load Model")

	m = press(m, tea.KeyEnter)
	assert.False(t, m.MenuOpen())
	assert.Equal(t, 1, h.lc.loads)
}

func TestMenu_LoadInProgress(t *testing.T) {
	m, h := newTestModel(t)
	h.lc.err = lifecycle.ErrLoadInProgress

	m = press(m, tea.KeyCtrlO)
	m = press(m, tea.KeyEnter)
	assert.Equal(t, "Model load already in progress", m.Status())
}

func TestMenu_AutoLoadToggle(t *testing.T) {
	m, h := newTestModel(t)
	require.True(t, m.AutoLoad())

	openAutoLoad := func(m Model) Model {
		m = press(m, tea.KeyCtrlO)
		m = press(m, tea.KeyDown)
		return press(m, tea.KeyEnter)
	}

	m = openAutoLoad(m)
	assert.False(t, m.AutoLoad())
	assert.Equal(t, AutoLoadOffText, lastMessage(t, m).Content)

	m = openAutoLoad(m)
	assert.True(t, m.AutoLoad())
	assert.Equal(t, AutoLoadOnText, lastMessage(t, m).Content)

	assert.Equal(t, []bool{false, true}, h.lc.autoLoad)
}

func TestMenu_AutoLoadOnWhileLoadedIsSilent(t *testing.T) {
	m, _ := newTestModel(t, func(o *Options) { o.AutoLoad = false })
	m = loaded(m)
	before := len(m.Messages())

	m = press(m, tea.KeyCtrlO)
	m = press(m, tea.KeyDown)
	m = press(m, tea.KeyEnter)

	assert.True(t, m.AutoLoad())
	assert.Len(t, m.Messages(), before)
}

func TestMenu_ClearCache(t *testing.T) {
	m, h := newTestModel(t)

	m = press(m, tea.KeyCtrlO)
	for i := 0; i < 3; i++ {
		m = press(m, tea.KeyDown)
	}
	m = press(m, tea.KeyEnter)

	assert.Equal(t, 1, h.lc.clears)
	assert.Equal(t, "Model cache cleared", m.Status())
}

func TestMenu_EscCloses(t *testing.T) {
	m, h := newTestModel(t)

	m = press(m, tea.KeyCtrlO)
	m = press(m, tea.KeyUp)
	m = press(m, tea.KeyEsc)

	assert.False(t, m.MenuOpen())
	assert.Zero(t, h.lc.loads)
}

// =============================================================================
// CLIPBOARD AND VIEW
// =============================================================================

func TestCopyLastReply(t *testing.T) {
	var copied string
	orig := copyToClipboard
	copyToClipboard = func(s string) error {
		copied = s
		return nil
	}
	t.Cleanup(func() { copyToClipboard = orig })

	m, _ := newTestModel(t)
	m = press(m, tea.KeyCtrlY)

	assert.Equal(t, Greeting, copied)
	assert.Contains(t, m.Status(), "Copied reply")
}

func TestView_Resize(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = step(m, tea.WindowSizeMsg{Width: 100, Height: 30})

	view := m.View()
	assert.Contains(t, view, "Qubi")
	assert.Contains(t, view, "gemma2:2b")
	assert.Equal(t, 100, m.Theme().Width)
}

func TestFormatChars(t *testing.T) {
	assert.Equal(t, "42 chars", formatChars(42))
	assert.Equal(t, "1.5K chars", formatChars(1500))
}
