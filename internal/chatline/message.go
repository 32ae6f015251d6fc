package chatline

import "time"

// Sender identifies who authored a Message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message represents a single entry of the conversation timeline.
// Messages are values: they are never mutated after creation.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"` // may contain *emphasis* and newlines
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptEntry is one finalized utterance captured by the voice channel.
type TranscriptEntry struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// SenderForRole maps a transcript role onto a Message sender.
// Only "user" maps to SenderUser; every other role is the assistant.
func SenderForRole(role string) Sender {
	if role == string(SenderUser) {
		return SenderUser
	}
	return SenderAssistant
}
