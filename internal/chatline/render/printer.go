package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/longkey1/chatline/internal/chatline"
)

// Printer writes timeline messages to a terminal, each one once
type Printer struct {
	w          io.Writer
	emphasis   lipgloss.Style
	userLabel  lipgloss.Style
	botLabel   lipgloss.Style
	timeStyle  lipgloss.Style
	seen       map[string]bool
	generation uint64
}

// NewPrinter creates a printer writing to w. Colors follow the capabilities
// detected for w.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:         w,
		emphasis:  r.NewStyle().Bold(true),
		userLabel: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		botLabel:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		timeStyle: r.NewStyle().Faint(true),
		seen:      make(map[string]bool),
	}
}

// Emphasis returns the style used for emphasized spans
func (p *Printer) Emphasis() lipgloss.Style {
	return p.emphasis
}

// Print writes the messages of timeline not printed before and returns how
// many were written. A new generation forgets every printed message.
func (p *Printer) Print(generation uint64, timeline []chatline.Message) int {
	if generation != p.generation {
		p.generation = generation
		p.seen = make(map[string]bool)
	}

	printed := 0
	for _, msg := range timeline {
		if p.seen[msg.ID] {
			continue
		}
		p.seen[msg.ID] = true
		fmt.Fprintln(p.w, p.Format(msg))
		printed++
	}
	return printed
}

// Format renders one message as "[HH:MM] Label: content". Continuation
// lines are indented under the content.
func (p *Printer) Format(msg chatline.Message) string {
	label := p.botLabel.Render("Assistant")
	if msg.Sender == chatline.SenderUser {
		label = p.userLabel.Render("You")
	}
	stamp := p.timeStyle.Render("[" + msg.Timestamp.Local().Format("15:04") + "]")
	body := Markup(msg.Content, p.emphasis)
	body = strings.ReplaceAll(body, "\n", "\n    ")
	return fmt.Sprintf("%s %s: %s", stamp, label, body)
}
