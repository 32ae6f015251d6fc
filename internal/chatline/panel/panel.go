// Package panel loads the static panels shown outside the chat: the welcome
// screen, the chat history placeholder and the FAQ.
package panel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/longkey1/chatline/internal/chatline"
	"github.com/pkg/errors"
)

// Panel represents the structure of a TOML panel file
type Panel struct {
	Name        string   `toml:"-" json:"name"`
	Title       string   `toml:"title" json:"title"`
	Body        string   `toml:"body" json:"body"`
	Suggestions []string `toml:"suggestions,omitempty" json:"suggestions,omitempty"` // quick-start messages
	Entries     []Entry  `toml:"entries,omitempty" json:"entries,omitempty"`
	Source      string   `toml:"-" json:"source"` // file path, or "builtin"
}

// Entry is one question and answer pair
type Entry struct {
	Question string `toml:"question" json:"question"`
	Answer   string `toml:"answer" json:"answer"`
}

// Names lists the panels that can be loaded, one per static mode
func Names() []string {
	return []string{string(chatline.ModeWelcome), string(chatline.ModeHistory), string(chatline.ModeFAQ)}
}

// LoadPanel loads a panel file and returns its contents
func LoadPanel(filePath string) (*Panel, error) {
	var p Panel
	if _, err := toml.DecodeFile(filePath, &p); err != nil {
		return nil, errors.Wrapf(err, "error decoding panel file %s", filePath)
	}
	p.Name = strings.TrimSuffix(filepath.Base(filePath), ".toml")
	p.Source = filePath
	return &p, nil
}

// Find returns the path of name.toml in panelDirs. Later directories take
// precedence. ok is false when no directory has the file.
func Find(name string, panelDirs []string) (path string, ok bool) {
	panelFile := name
	if !strings.HasSuffix(panelFile, ".toml") {
		panelFile = panelFile + ".toml"
	}
	for _, panelDir := range panelDirs {
		candidatePath := filepath.Join(panelDir, panelFile)
		if _, err := os.Stat(candidatePath); err == nil {
			path = candidatePath
			ok = true
		}
	}
	return path, ok
}

// Load returns the named panel from panelDirs, falling back to the built-in
// panel when no file exists. A file that exists but cannot be decoded is an
// error.
func Load(name string, panelDirs []string) (*Panel, error) {
	builtin, known := Builtin(name)
	if !known {
		return nil, fmt.Errorf("unknown panel: %s", name)
	}
	path, found := Find(name, panelDirs)
	if !found {
		return builtin, nil
	}
	p, err := LoadPanel(path)
	if err != nil {
		return nil, err
	}
	p.Name = name
	return p, nil
}

// LoadAll loads every panel in Names
func LoadAll(panelDirs []string) (map[string]*Panel, error) {
	panels := make(map[string]*Panel, len(Names()))
	for _, name := range Names() {
		p, err := Load(name, panelDirs)
		if err != nil {
			return nil, err
		}
		panels[name] = p
	}
	return panels, nil
}

// Builtin returns the default panel for name
func Builtin(name string) (*Panel, bool) {
	var p Panel
	switch name {
	case string(chatline.ModeWelcome):
		p = Panel{
			Title: "Home",
			Body:  "Hi there! How can we help you today?",
			Suggestions: []string{
				"Where is my order?",
				"What are your opening hours?",
				"I need help with a return",
			},
		}
	case string(chatline.ModeHistory):
		p = Panel{
			Title: "Chats",
			Body:  "Past conversations are not kept once the session ends.",
		}
	case string(chatline.ModeFAQ):
		p = Panel{
			Title: "FAQ",
			Body:  "Answers to common questions.",
			Entries: []Entry{
				{Question: "How do I start a voice call?", Answer: "Open a chat and use the call button, or type /call."},
				{Question: "Can I start over?", Answer: "Use *New Chat* (or /new) to clear the conversation."},
			},
		}
	default:
		return nil, false
	}
	p.Name = name
	p.Source = "builtin"
	return &p, true
}

// Text formats the panel for plain-text display. Suggestions are numbered
// from 1 so a caller can select one by number.
func (p *Panel) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", p.Title)
	if p.Body != "" {
		b.WriteString(p.Body)
		b.WriteString("\n")
	}
	for i, s := range p.Suggestions {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, s)
	}
	for _, e := range p.Entries {
		fmt.Fprintf(&b, "\n*%s*\n%s\n", e.Question, e.Answer)
	}
	return b.String()
}

// Suggestion returns the suggestion selected by a 1-based number
func (p *Panel) Suggestion(n int) (string, bool) {
	if n < 1 || n > len(p.Suggestions) {
		return "", false
	}
	return p.Suggestions[n-1], true
}
