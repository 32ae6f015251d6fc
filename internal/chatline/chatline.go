// Package chatline provides the core types shared by the conversation
// coordinator and its collaborators.
//
// The package defines the two ports the coordinator depends on: Exchanger,
// the request/response text channel, and VoiceChannel, the push-based
// real-time voice channel. Implementations live in the webhook and voice
// packages.
//
// Example usage:
//
//	client := webhook.NewClient(cfg.WebhookURL)
//	coord := conversation.NewCoordinator(client)
//	coord.StartChat(ctx, "Hello")
package chatline

import (
	"context"
	"fmt"
	"strings"
)

// Exchanger sends one outbound text message and returns exactly one reply.
// Implementations make a single attempt and must not retry.
type Exchanger interface {
	Send(ctx context.Context, content string) (string, error)
}

// VoiceChannel is a real-time voice session that produces a transcript.
type VoiceChannel interface {
	// ConnectionState reports the current state of the channel.
	ConnectionState() ConnectionState

	// Speaking reports whether the remote party's audio is playing.
	Speaking() bool

	// StartCall requests opening the channel. It returns immediately;
	// progress is reported through ConnectionState and observers.
	// It is a no-op while connecting or connected.
	StartCall(ctx context.Context)

	// StopCall requests closing the channel. It is a no-op when disconnected.
	StopCall()

	// Transcript returns the entries accumulated since the last ClearTranscript.
	Transcript() []TranscriptEntry

	// ClearTranscript empties the transcript without touching the connection.
	ClearTranscript()

	// Observe registers fn to receive channel events.
	Observe(fn func(VoiceEvent))
}

// ConnectionState is the state of a voice channel.
type ConnectionState string

const (
	Disconnected ConnectionState = "disconnected"
	Connecting   ConnectionState = "connecting"
	Connected    ConnectionState = "connected"
)

// VoiceEventKind discriminates VoiceEvent.
type VoiceEventKind string

const (
	VoiceStateChanged    VoiceEventKind = "state"
	VoiceSpeakingChanged VoiceEventKind = "speaking"
	VoiceTranscript      VoiceEventKind = "transcript"
	VoiceFailure         VoiceEventKind = "failure"
)

// VoiceEvent is emitted by a VoiceChannel to its observers.
type VoiceEvent struct {
	Kind     VoiceEventKind
	State    ConnectionState
	Speaking bool
	Entry    TranscriptEntry
	Err      error // set for VoiceFailure, always a *VoiceChannelFailure
}

// Mode is the top-level mode of the conversation.
type Mode string

const (
	ModeWelcome  Mode = "welcome"
	ModeChatting Mode = "chatting"
	ModeHistory  Mode = "history"
	ModeFAQ      Mode = "faq"
)

// Modes lists every navigable destination in display order.
func Modes() []Mode {
	return []Mode{ModeWelcome, ModeChatting, ModeHistory, ModeFAQ}
}

// ParseMode parses a destination name.
//
// Example:
//
//	mode, err := ParseMode(" FAQ ")
//	// mode = ModeFAQ
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, m := range Modes() {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}
