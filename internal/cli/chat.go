// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/qubi-tui/internal/lifecycle"
	"github.com/jeranaias/qubi-tui/internal/logging"
	"github.com/jeranaias/qubi-tui/internal/mediator"
	"github.com/jeranaias/qubi-tui/internal/prefs"
	"github.com/jeranaias/qubi-tui/internal/signal"
	"github.com/jeranaias/qubi-tui/internal/ui/chat"
	"github.com/jeranaias/qubi-tui/internal/ui/styles"
)

// HistoryFileName is the REPL history file inside the data directory.
const HistoryFileName = "history"

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader is a source of REPL input lines.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// ChatCLI provides line editing and persistent history for the REPL.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor backed by historyFile.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{line: line, historyFile: historyFile}
	c.LoadHistory()
	return c
}

// LoadHistory reads the history file if it exists.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads one line. Non-blank lines are added to the history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes the history file, owner read/write only.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// scanReader reads lines from a non-terminal input such as a pipe.
type scanReader struct {
	sc *bufio.Scanner
}

func newScanReader(r io.Reader) *scanReader {
	return &scanReader{sc: bufio.NewScanner(r)}
}

func (s *scanReader) ReadInput(string) (string, error) {
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.sc.Text(), nil
}

func (s *scanReader) Close() {}

// =============================================================================
// SESSION
// =============================================================================

// replCoordinator is what the REPL needs from the lifecycle coordinator.
type replCoordinator interface {
	chat.Lifecycle
	Loaded() *signal.Value[bool]
	State() *signal.Value[lifecycle.LoadingState]
	CacheStatus() *signal.Value[lifecycle.CacheStatus]
	ModelID() string
}

// replSession runs slash commands and chat turns against a coordinator.
// Output is serialized because signal callbacks print from other
// goroutines.
type replSession struct {
	coord         replCoordinator
	sender        chat.Sender
	store         *prefs.Store
	notReadyDelay time.Duration
	logger        *zap.Logger

	mu       sync.Mutex
	out      io.Writer
	renderer *glamour.TermRenderer
	autoLoad bool
	theme    prefs.Theme
}

type replOptions struct {
	Coordinator   replCoordinator
	Sender        chat.Sender
	Prefs         *prefs.Store
	Out           io.Writer
	NotReadyDelay time.Duration
	Logger        *zap.Logger
}

func newREPLSession(ctx context.Context, opts replOptions) *replSession {
	s := &replSession{
		coord:         opts.Coordinator,
		sender:        opts.Sender,
		store:         opts.Prefs,
		notReadyDelay: opts.NotReadyDelay,
		logger:        logging.OrNop(opts.Logger),
		out:           opts.Out,
	}
	p := s.store.Load(ctx)
	s.autoLoad = p.AutoLoad
	s.theme = p.Theme
	s.renderer = newMarkdownRenderer(s.theme)
	return s
}

// newMarkdownRenderer returns nil when glamour cannot be initialized; replies
// are then printed raw.
func newMarkdownRenderer(t prefs.Theme) *glamour.TermRenderer {
	style := styles.NewTheme(styles.ParseMode(string(t))).GlamourStyle()
	if !ColorsEnabled() {
		style = "notty"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(GetTerminalWidth()-4),
	)
	if err != nil {
		return nil
	}
	return r
}

func (s *replSession) println(a ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, a...)
}

func (s *replSession) say(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body := text
	if s.renderer != nil {
		if out, err := s.renderer.Render(text); err == nil {
			body = strings.Trim(out, "\n")
		}
	}
	fmt.Fprintln(s.out, AssistantStyle.Render("Qubi:"), body)
}

func (s *replSession) fail(err error) {
	s.println(ErrorStyle.Render("[Error]"), err)
}

// bind prints coordinator events: the loaded notice on each rising edge,
// progress lines while loading, and the guidance hint.
func (s *replSession) bind(c *lifecycle.Coordinator) func() {
	var (
		edgeMu sync.Mutex
		was    bool
	)
	stops := []func(){
		c.Loaded().Subscribe(func(v bool) {
			edgeMu.Lock()
			rising := v && !was
			was = v
			edgeMu.Unlock()
			if rising {
				s.say(chat.LoadedNotice)
			}
		}),
		c.Progress().Subscribe(func(text string) {
			if text != "" && c.State().Get() == lifecycle.StateLoading {
				s.println(DimStyle.Render("  " + text))
			}
		}),
		c.OnGuidance(func(text string) { s.say(text) }),
	}
	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}

func (s *replSession) welcome() {
	s.println()
	s.println(TitleStyle.Render("qubi chat"))
	s.println(RenderSeparator(30))
	s.println(RenderLabel("Model:"), ValueStyle.Render(s.coord.ModelID()))
	s.println(RenderLabel("Theme:"), ValueStyle.Render(string(s.theme)))
	s.println()
	s.say(chat.Greeting)
	s.println(DimStyle.Render("Type a message and press Enter. Commands: /help, /quit"))
	s.println()
}

// handle processes one input line and reports whether the REPL should exit.
func (s *replSession) handle(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
		return true
	}
	if strings.HasPrefix(input, "/") {
		return s.command(ctx, input)
	}
	s.turn(ctx, input)
	return false
}

// turn sends one chat message. Before the model is loaded the reply is the
// not-ready notice, after the configured delay.
func (s *replSession) turn(ctx context.Context, text string) {
	if !s.coord.Loaded().Get() {
		select {
		case <-time.After(s.notReadyDelay):
		case <-ctx.Done():
			return
		}
		s.say(chat.NotReadyText)
		return
	}

	reply, err := s.sender.Send(ctx, text)
	switch {
	case err == nil:
		s.say(reply)
	case errors.Is(err, context.Canceled):
	case errors.Is(err, mediator.ErrModelNotInitialized):
		s.say(chat.NotReadyText)
	default:
		s.logger.Warn("chat turn failed", zap.Error(err))
		s.say(chat.ApologyText)
	}
}

func (s *replSession) command(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	name := strings.ToLower(fields[0])
	args := fields[1:]

	switch name {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		s.help()

	case "/load":
		s.println(DimStyle.Render("Loading " + s.coord.ModelID() + "..."))
		if err := s.coord.Load(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.fail(err)
		}

	case "/autoload":
		enabled := !s.autoLoad
		if len(args) > 0 {
			switch strings.ToLower(args[0]) {
			case "on", "true", "1":
				enabled = true
			case "off", "false", "0":
				enabled = false
			default:
				s.fail(errors.New("usage: /autoload [on|off]"))
				return false
			}
		}
		wasLoaded := s.coord.Loaded().Get()
		if enabled && !wasLoaded {
			s.say(chat.AutoLoadOnText)
		}
		if !enabled {
			s.say(chat.AutoLoadOffText)
		}
		if err := s.coord.SetAutoLoad(ctx, enabled); err != nil && !errors.Is(err, context.Canceled) {
			s.fail(err)
		}
		s.autoLoad = enabled

	case "/theme":
		next := s.theme.Toggle()
		if err := s.store.SetTheme(ctx, next); err != nil {
			s.fail(err)
			return false
		}
		s.mu.Lock()
		s.theme = next
		s.renderer = newMarkdownRenderer(next)
		s.mu.Unlock()
		s.println(RenderStatus("ok"), "theme:", string(next))

	case "/clear-cache":
		if err := s.coord.ClearCache(ctx); err != nil {
			s.fail(err)
			return false
		}
		s.println(RenderStatus("ok"), "Model cache cleared")

	case "/status":
		s.status()

	default:
		s.fail(fmt.Errorf("unknown command %s (try /help)", name))
	}
	return false
}

func (s *replSession) status() {
	onOff := "off"
	if s.autoLoad {
		onOff = "on"
	}
	s.println(RenderLabel("Model:"), ValueStyle.Render(s.coord.ModelID()))
	s.println(RenderLabel("State:"), ValueStyle.Render(string(s.coord.State().Get())))
	s.println(RenderLabel("Cache:"), ValueStyle.Render(string(s.coord.CacheStatus().Get())))
	s.println(RenderLabel("Auto-load:"), ValueStyle.Render(onOff))
	s.println(RenderLabel("Theme:"), ValueStyle.Render(string(s.theme)))
}

func (s *replSession) help() {
	commands := []struct{ cmd, desc string }{
		{"/load", "Load the model"},
		{"/autoload [on|off]", "Toggle loading the model at startup"},
		{"/theme", "Switch between light and dark"},
		{"/clear-cache", "Remove the model from the local cache"},
		{"/status", "Show model and preference state"},
		{"/quit, /q", "Exit"},
	}
	s.println()
	for _, c := range commands {
		s.println(" ", PromptStyle.Render(fmt.Sprintf("%-20s", c.cmd)), DimStyle.Render(c.desc))
	}
	s.println()
}

// run reads lines until quit, EOF, Ctrl+C or ctx cancellation.
func (s *replSession) run(ctx context.Context, in lineReader) error {
	for ctx.Err() == nil {
		line, err := in.ReadInput(PromptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				s.println()
				return nil
			}
			return err
		}
		if s.handle(ctx, line) {
			return nil
		}
	}
	return nil
}

// =============================================================================
// COMMAND
// =============================================================================

func newChatCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Line-based chat with history",
		Long: `Start a line-based chat session. Input history is kept in the data
directory. Slash commands: /load, /autoload [on|off], /theme, /clear-cache,
/status, /help, /quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup()
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()
			return runREPL(cmd.Context(), e, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runREPL(ctx context.Context, e *env, in io.Reader, out io.Writer) error {
	app, err := NewApp(e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), disposeTimeout)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			e.logger.Warn("shutdown failed", zap.Error(err))
		}
	}()

	s := newREPLSession(ctx, replOptions{
		Coordinator:   app.Coordinator,
		Sender:        app.Mediator,
		Prefs:         app.Prefs,
		Out:           out,
		NotReadyDelay: e.cfg.NotReadyDelay(),
		Logger:        e.logger.Named("repl"),
	})
	unbind := s.bind(app.Coordinator)
	defer unbind()

	s.welcome()
	autoLoad := s.autoLoad && !e.noAutoLoad
	if err := app.Coordinator.Startup(ctx, autoLoad); err != nil && !errors.Is(err, context.Canceled) {
		s.fail(err)
	}

	var reader lineReader
	if f, ok := in.(*os.File); ok && f == os.Stdin && IsTTY() {
		dataDir, err := e.cfg.DataDir()
		if err != nil {
			return err
		}
		reader = NewChatCLI(filepath.Join(dataDir, HistoryFileName))
	} else {
		reader = newScanReader(in)
	}
	defer reader.Close()

	return s.run(ctx, reader)
}
