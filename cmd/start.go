package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/longkey1/chatline/internal/chatline"
	"github.com/longkey1/chatline/internal/chatline/conversation"
	"github.com/longkey1/chatline/internal/chatline/panel"
	"github.com/longkey1/chatline/internal/chatline/render"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// maxLineSize bounds one line of input, so long pastes are accepted.
const maxLineSize = 1 << 20

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation on the terminal.

The session opens on the welcome panel. Type a message (or the number of a
suggestion) to start chatting. Typed messages and voice transcripts are shown
in one time-ordered conversation. Type '/help' for commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg, os.Stderr)

		panels, err := panel.LoadAll(cfg.PanelDirs)
		if err != nil {
			return fmt.Errorf("loading panels: %w", err)
		}
		timeout, _ := cfg.Timeout()

		coord := newCoordinator(cfg, logger)
		r := &repl{
			coord:   coord,
			panels:  panels,
			out:     os.Stdout,
			errOut:  os.Stderr,
			timeout: timeout,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return r.run(ctx, os.Stdin)
	},
}

// repl drives a coordinator from line input and renders its snapshots
type repl struct {
	coord   *conversation.Coordinator
	panels  map[string]*panel.Panel
	out     io.Writer
	errOut  io.Writer
	timeout time.Duration
}

// run reads lines from in until EOF, /exit or ctx ends
func (r *repl) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(r.errOut, "\n=== chatline [%s] ===\n", shortID(r.coord.Snapshot().SessionID))
	if r.coord.VoiceEnabled() {
		fmt.Fprintln(r.errOut, "Voice calls are available: type '/call' to start one")
	}
	fmt.Fprintf(r.errOut, "Type '/help' for commands, '/exit' or 'Ctrl+D' to quit\n")
	fmt.Fprintf(r.errOut, "===================================\n\n")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	updates, unsubscribe := r.coord.Subscribe()
	g.Go(func() error {
		r.render(gctx, updates)
		return nil
	})

	// The scanner blocks in Read and cannot be interrupted, so it stays
	// outside the group.
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-gctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	var err error
loop:
	for {
		select {
		case <-gctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				select {
				case err = <-scanErr:
				default:
				}
				if err != nil {
					err = fmt.Errorf("input error: %w", err)
				} else {
					fmt.Fprintln(r.errOut, "\nGoodbye!")
				}
				break loop
			}
			if !r.handleLine(gctx, g, line) {
				break loop
			}
		}
	}

	r.coord.StopVoice()
	unsubscribe()
	cancel()
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return err
}

// handleLine processes one input line. It returns false to exit.
func (r *repl) handleLine(ctx context.Context, g *errgroup.Group, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}
	if strings.HasPrefix(input, "/") {
		return r.handleSpecialCommand(ctx, g, input)
	}

	switch r.coord.Mode() {
	case chatline.ModeWelcome:
		if n, err := strconv.Atoi(input); err == nil {
			if p, ok := r.panels[string(chatline.ModeWelcome)]; ok {
				if s, ok := p.Suggestion(n); ok {
					input = s
				}
			}
		}
		r.send(ctx, g, func(ctx context.Context) { r.coord.StartChat(ctx, input) })
	case chatline.ModeChatting:
		if r.coord.IsLoading() {
			fmt.Fprintln(r.errOut, "Please wait for the reply before sending another message")
			return true
		}
		r.send(ctx, g, func(ctx context.Context) { r.coord.SendMessage(ctx, input) })
	default:
		fmt.Fprintln(r.errOut, "Type '/chat' to return to the conversation or '/home' for the welcome panel")
	}
	return true
}

// send runs fn in the background with the request timeout applied
func (r *repl) send(ctx context.Context, g *errgroup.Group, fn func(context.Context)) {
	g.Go(func() error {
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		fn(ctx)
		return nil
	})
}

// handleSpecialCommand processes slash commands
// Returns true to continue the loop, false to exit
func (r *repl) handleSpecialCommand(ctx context.Context, g *errgroup.Group, command string) bool {
	command = strings.ToLower(strings.TrimSpace(command))

	switch command {
	case "/help", "/h":
		fmt.Fprintln(r.errOut, "\nAvailable commands:")
		fmt.Fprintln(r.errOut, "  /help, /h     - Show this help message")
		fmt.Fprintln(r.errOut, "  /chat         - Open the conversation")
		fmt.Fprintln(r.errOut, "  /new, /n      - Start a new chat (clears the conversation)")
		fmt.Fprintln(r.errOut, "  /home         - Show the welcome panel")
		fmt.Fprintln(r.errOut, "  /history      - Show the chats panel")
		fmt.Fprintln(r.errOut, "  /faq          - Show the FAQ panel")
		fmt.Fprintln(r.errOut, "  /call         - Start a voice call")
		fmt.Fprintln(r.errOut, "  /hangup       - End the voice call")
		fmt.Fprintln(r.errOut, "  /info, /i     - Show session information")
		fmt.Fprintln(r.errOut, "  /exit, /quit  - Exit interactive mode")
		fmt.Fprintln(r.errOut, "  Ctrl+D        - Exit interactive mode")
		fmt.Fprintln(r.errOut, "")
		return true

	case "/chat":
		r.coord.StartChat(ctx, "")
		return true

	case "/new", "/n":
		r.coord.StartNewChat()
		fmt.Fprintln(r.errOut, "Started a new chat")
		return true

	case "/home":
		r.coord.GoHome()
		return true

	case "/history":
		_ = r.coord.Navigate(chatline.ModeHistory)
		return true

	case "/faq":
		_ = r.coord.Navigate(chatline.ModeFAQ)
		return true

	case "/call":
		if !r.coord.VoiceEnabled() {
			fmt.Fprintln(r.errOut, "Voice is not configured (set voice_url)")
			return true
		}
		r.coord.StartVoice(ctx)
		return true

	case "/hangup":
		r.coord.StopVoice()
		return true

	case "/info", "/i":
		snap := r.coord.Snapshot()
		fmt.Fprintln(r.errOut, "\nSession Information:")
		fmt.Fprintf(r.errOut, "  ID: %s\n", shortID(snap.SessionID))
		fmt.Fprintf(r.errOut, "  Full ID: %s\n", snap.SessionID)
		fmt.Fprintf(r.errOut, "  Mode: %s\n", snap.Mode)
		fmt.Fprintf(r.errOut, "  Messages: %d\n", len(snap.Timeline))
		if snap.Voice.Enabled {
			fmt.Fprintf(r.errOut, "  Voice: %s\n", snap.Voice.State)
		}
		fmt.Fprintln(r.errOut, "")
		return true

	case "/exit", "/quit", "/q":
		fmt.Fprintln(r.errOut, "Goodbye!")
		return false

	default:
		fmt.Fprintf(r.errOut, "Unknown command: %s (type '/help' for available commands)\n", command)
		return true
	}
}

// render prints every snapshot received until updates closes or ctx ends
func (r *repl) render(ctx context.Context, updates <-chan conversation.Snapshot) {
	printer := render.NewPrinter(r.out)
	var (
		mode      chatline.Mode
		voice     = chatline.Disconnected
		lastError string
		spinner   chan struct{}
	)
	stopSpinner := func() {
		if spinner != nil {
			close(spinner)
			spinner = nil
		}
	}
	defer stopSpinner()

	show := func(snap conversation.Snapshot) {
		if snap.Mode != mode {
			mode = snap.Mode
			if p, ok := r.panels[string(mode)]; ok {
				fmt.Fprintln(r.out, render.Markup(p.Text(), printer.Emphasis()))
			}
		}
		if snap.Voice.State != voice {
			voice = snap.Voice.State
			fmt.Fprintf(r.errOut, "[voice %s]\n", voice)
		}
		if snap.Voice.LastError != "" && snap.Voice.LastError != lastError {
			fmt.Fprintf(r.errOut, "Voice error: %s\n", snap.Voice.LastError)
		}
		lastError = snap.Voice.LastError

		if mode != chatline.ModeChatting {
			stopSpinner()
			return
		}
		if printer.Print(snap.Generation, snap.Timeline) > 0 {
			stopSpinner()
		}
		switch {
		case snap.IsLoading && spinner == nil:
			spinner = make(chan struct{})
			go showSpinner(r.errOut, spinner)
		case !snap.IsLoading:
			stopSpinner()
		}
	}

	show(r.coord.Snapshot())
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}
			show(snap)
		case <-ctx.Done():
			return
		}
	}
}

// showSpinner displays a spinner animation while waiting for response
func showSpinner(w io.Writer, done <-chan struct{}) {
	spinners := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	i := 0
	for {
		select {
		case <-done:
			// Clear the spinner line
			fmt.Fprint(w, "\r\033[K")
			return
		case <-ticker.C:
			fmt.Fprintf(w, "\r%s Waiting for response...", spinners[i])
			i = (i + 1) % len(spinners)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.AddCommand(startCmd)
}
