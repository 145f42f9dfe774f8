package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/go-go-golems/damay/pkg/session"
)

const lineHelp = `Perintah:
  /new      mulai obrolan baru
  /reroll   minta jawaban ulang untuk pesan terakhir
  /1 ... /n pilih pertanyaan yang disarankan
  /help     tampilkan bantuan ini
  /quit     keluar`

// LineView prints session changes incrementally to a plain writer. It is used
// when stdin or stdout is not a terminal.
type LineView struct {
	mu       sync.Mutex
	out      io.Writer
	md       *markdownRenderer
	width    int
	plain    bool
	printed  []session.Message
	welcomed bool
	typing   bool
	chips    []string
}

var _ session.View = (*LineView)(nil)

type LineOption func(*LineView)

// WithPlainText disables markdown rendering of bot replies.
func WithPlainText() LineOption {
	return func(v *LineView) { v.plain = true }
}

func WithLineWidth(width int) LineOption {
	return func(v *LineView) {
		if width > 0 {
			v.width = width
		}
	}
}

func NewLineView(out io.Writer, opts ...LineOption) *LineView {
	v := &LineView{out: out, md: newMarkdownRenderer("notty"), width: 80}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// TerminalWidth returns the width of the terminal behind f, or 0.
func TerminalWidth(f *os.File) int {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}

func (v *LineView) Render(s session.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	msgs := session.Persistable(s.Messages)

	// the log only grows by appending, except after a reset or a reroll,
	// which cut it back to a prefix
	common := 0
	for common < len(msgs) && common < len(v.printed) && msgs[common] == v.printed[common] {
		common++
	}
	if len(msgs) == 0 && s.Welcome != "" && !v.welcomed {
		if len(v.printed) > 0 {
			fmt.Fprintln(v.out, "--- obrolan baru ---")
		}
		v.printMessage(session.NewBotMessage(s.Welcome))
		v.welcomed = true
	}
	if len(msgs) > 0 {
		v.welcomed = false
	}
	for _, msg := range msgs[common:] {
		v.printMessage(msg)
	}
	v.printed = append(make([]session.Message, 0, len(msgs)), msgs...)

	if s.Pending && !v.typing {
		fmt.Fprintf(v.out, "%s %s\n", botLabel, typingText)
	}
	v.typing = s.Pending

	if !equalStrings(v.chips, s.Recommendations) {
		v.chips = append([]string(nil), s.Recommendations...)
		if len(v.chips) > 0 {
			fmt.Fprintln(v.out, "Saran pertanyaan:")
			for i, c := range v.chips {
				fmt.Fprintf(v.out, "  /%d %s\n", i+1, c)
			}
		}
	}
}

func (v *LineView) printMessage(msg session.Message) {
	if msg.Role == session.RoleUser {
		fmt.Fprintf(v.out, "%s: %s\n", userLabel, msg.Content)
		return
	}
	text := msg.Content
	if !v.plain {
		text = v.md.Render(text, v.width)
	}
	fmt.Fprintf(v.out, "%s: %s\n", botLabel, strings.TrimSpace(text))
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// RunLines reads commands and messages from in until EOF, /quit or ctx is
// done. Every line is handled to completion before the next one is read.
func RunLines(ctx context.Context, ctrl Controller, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	// the reader cannot be interrupted; it is left behind when ctx ends
	go func() {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return errors.Wrap(<-readErr, "read input")
			}
			quit, err := handleLine(ctx, ctrl, line, out)
			if err != nil {
				fmt.Fprintf(out, "! %s\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, ctrl Controller, line string, out io.Writer) (bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return false, ctrl.Submit(ctx, line)
	}
	cmd := strings.ToLower(strings.TrimPrefix(line, "/"))
	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "new", "reset":
		return false, ctrl.Reset(ctx)
	case "reroll", "r":
		return false, ctrl.Reroll(ctx)
	case "help", "?":
		fmt.Fprintln(out, lineHelp)
		return false, nil
	}
	if n, err := strconv.Atoi(cmd); err == nil {
		return false, ctrl.SelectRecommendation(ctx, n-1)
	}
	return false, errors.Errorf("perintah tidak dikenal: %s (ketik /help)", line)
}
