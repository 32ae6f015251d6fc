package voice

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Client frame types
const (
	FrameStart = "start"
	FrameStop  = "stop"
)

// Server frame types
const (
	EventCallStart   = "call-start"
	EventSpeechStart = "speech-start"
	EventSpeechEnd   = "speech-end"
	EventTranscript  = "transcript"
	EventCallEnd     = "call-end"
	EventError       = "error"
)

// Transcript kinds carried in transcript frames
const (
	TranscriptPartial = "partial"
	TranscriptFinal   = "final"
)

// StartFrame opens a call for an assistant
type StartFrame struct {
	Type        string `json:"type"`
	AssistantID string `json:"assistant_id"`
}

// StopFrame asks the remote side to end the call
type StopFrame struct {
	Type string `json:"type"`
}

// ServerFrame is any frame received from the voice service. Fields that do
// not apply to a frame type are left empty.
type ServerFrame struct {
	Type           string `json:"type"`
	Role           string `json:"role,omitempty"`
	TranscriptType string `json:"transcript_type,omitempty"`
	Transcript     string `json:"transcript,omitempty"`
	Message        string `json:"message,omitempty"`
}

// IsFinalTranscript reports whether f carries a finalized utterance
func (f ServerFrame) IsFinalTranscript() bool {
	return f.Type == EventTranscript && f.TranscriptType == TranscriptFinal && strings.TrimSpace(f.Transcript) != ""
}

func decodeServerFrame(data []byte) (ServerFrame, error) {
	var frame ServerFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return ServerFrame{}, errors.Wrap(err, "decode voice frame")
	}
	frame.Type = strings.TrimSpace(frame.Type)
	if frame.Type == "" {
		return ServerFrame{}, errors.New("voice frame without type")
	}
	return frame, nil
}
