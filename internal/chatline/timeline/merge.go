// Package timeline combines typed messages and voice transcript entries
// into one time-ordered view.
package timeline

import (
	"fmt"
	"slices"

	"github.com/longkey1/chatline/internal/chatline"
)

// TranscriptIDPrefix prefixes the ids of transcript-derived messages.
const TranscriptIDPrefix = "transcript-"

// FromTranscript converts transcript entries into messages. The id of each
// message is derived from the entry's position, so converting the same
// transcript twice yields the same ids.
func FromTranscript(entries []chatline.TranscriptEntry) []chatline.Message {
	messages := make([]chatline.Message, 0, len(entries))
	for i, entry := range entries {
		messages = append(messages, chatline.Message{
			ID:        TranscriptID(i),
			Content:   entry.Text,
			Sender:    chatline.SenderForRole(entry.Role),
			Timestamp: entry.Timestamp,
		})
	}
	return messages
}

// TranscriptID returns the id of the transcript-derived message at index.
func TranscriptID(index int) string {
	return fmt.Sprintf("%s%d", TranscriptIDPrefix, index)
}

// Merge returns text messages and transcript-derived messages sorted by
// ascending timestamp. The sort is stable over text followed by transcript,
// so at equal timestamps text messages come first and each source keeps its
// own order. Neither input is modified.
func Merge(text []chatline.Message, transcript []chatline.TranscriptEntry) []chatline.Message {
	merged := make([]chatline.Message, 0, len(text)+len(transcript))
	merged = append(merged, text...)
	merged = append(merged, FromTranscript(transcript)...)

	slices.SortStableFunc(merged, func(a, b chatline.Message) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return merged
}
