package conversation

import "github.com/longkey1/chatline/internal/chatline"

// Snapshot is a consistent view of the conversation at one instant.
type Snapshot struct {
	SessionID    string             `json:"session_id"`
	Generation   uint64             `json:"generation"`
	Mode         chatline.Mode      `json:"mode"`
	IsLoading    bool               `json:"is_loading"`
	InputEnabled bool               `json:"input_enabled"`
	Voice        VoiceStatus        `json:"voice"`
	Timeline     []chatline.Message `json:"timeline"`
}

// VoiceStatus is the voice part of a Snapshot.
type VoiceStatus struct {
	Enabled   bool                     `json:"enabled"`
	State     chatline.ConnectionState `json:"state"`
	Speaking  bool                     `json:"speaking"`
	LastError string                   `json:"last_error,omitempty"`
}

// Snapshot returns the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		SessionID:    c.sess.ID,
		Generation:   c.sess.Generation,
		Mode:         c.sess.Mode,
		IsLoading:    c.sess.Loading,
		InputEnabled: c.sess.InputEnabled(),
		Voice:        VoiceStatus{State: chatline.Disconnected},
		Timeline:     c.timelineLocked(),
	}
	if c.voice != nil {
		snap.Voice.Enabled = true
		snap.Voice.State = c.voice.ConnectionState()
		snap.Voice.Speaking = c.voice.Speaking()
	}
	if c.voiceErr != nil {
		snap.Voice.LastError = c.voiceErr.Error()
	}
	return snap
}

// Subscribe returns a channel receiving a Snapshot after every change.
// Delivery is latest-wins: a slow reader skips intermediate snapshots but
// always observes the most recent one. The returned func unsubscribes and
// closes the channel.
func (c *Coordinator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.pubMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = ch
	c.pubMu.Unlock()

	cancel := func() {
		c.pubMu.Lock()
		defer c.pubMu.Unlock()
		if _, ok := c.listeners[id]; ok {
			delete(c.listeners, id)
			close(ch)
		}
	}
	return ch, cancel
}

// publish takes the snapshot while holding pubMu so the last publish always
// delivers the latest state.
func (c *Coordinator) publish() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	if len(c.listeners) == 0 {
		return
	}

	snap := c.Snapshot()
	for _, ch := range c.listeners {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
