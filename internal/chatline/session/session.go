// Package session holds the state of one conversation: its mode, its typed
// messages and the generation counter that identifies a fresh conversation.
//
// A Session is not safe for concurrent use; the conversation coordinator
// serializes access to it.
package session

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/longkey1/chatline/internal/chatline"
)

// Session represents the current conversation
type Session struct {
	ID         string             `json:"id"`         // UUID v4, replaced on every reset
	Generation uint64             `json:"generation"` // incremented by Reset
	Mode       chatline.Mode      `json:"mode"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	Messages   []chatline.Message `json:"messages"`
	Loading    bool               `json:"is_loading"`
}

// NewSession creates a session in welcome mode
func NewSession(now time.Time) *Session {
	return &Session{
		ID:        uuid.New().String(),
		Mode:      chatline.ModeWelcome,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []chatline.Message{},
	}
}

// StartChat moves the session into chatting mode
func (s *Session) StartChat(now time.Time) {
	s.setMode(chatline.ModeChatting, now)
}

// GoHome moves the session back to the welcome mode
func (s *Session) GoHome(now time.Time) {
	s.setMode(chatline.ModeWelcome, now)
}

// Navigate jumps directly to target
func (s *Session) Navigate(target chatline.Mode, now time.Time) error {
	if !slices.Contains(chatline.Modes(), target) {
		return fmt.Errorf("%w: %q", chatline.ErrUnknownMode, target)
	}
	s.setMode(target, now)
	return nil
}

// Reset starts a new conversation in place. Messages are dropped, loading is
// cleared, the generation advances and a new ID is assigned. Mode is unchanged.
func (s *Session) Reset(now time.Time) {
	s.ID = uuid.New().String()
	s.Generation++
	s.Messages = []chatline.Message{}
	s.Loading = false
	s.CreatedAt = now
	s.UpdatedAt = now
}

// AddMessage appends a message to the session
func (s *Session) AddMessage(msg chatline.Message) {
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = msg.Timestamp
}

// CopyMessages returns a copy of the message list
func (s *Session) CopyMessages() []chatline.Message {
	return slices.Clone(s.Messages)
}

// GetShortID returns the shortened session ID (first 8 characters)
func (s *Session) GetShortID() string {
	if len(s.ID) >= 8 {
		return s.ID[:8]
	}
	return s.ID
}

// MessageCount returns the number of messages in the session
func (s *Session) MessageCount() int {
	return len(s.Messages)
}

// InputEnabled reports whether typed input is accepted right now
func (s *Session) InputEnabled() bool {
	return s.Mode == chatline.ModeChatting && !s.Loading
}

func (s *Session) setMode(mode chatline.Mode, now time.Time) {
	s.Mode = mode
	s.UpdatedAt = now
}
