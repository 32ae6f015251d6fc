// Package conversation implements the coordinator that owns the message
// timeline, the session mode and the loading flag, and that drives the text
// exchange and voice channels on behalf of a caller.
package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/longkey1/chatline/internal/chatline"
	"github.com/longkey1/chatline/internal/chatline/session"
	"github.com/longkey1/chatline/internal/chatline/timeline"
	"github.com/rs/zerolog"
)

const (
	// FallbackReply is shown when the responder answers with an empty reply.
	FallbackReply = "Sorry, I couldn’t understand that."

	// ApologyReply is shown when the exchange fails.
	ApologyReply = "Oops! Something went wrong. Try again later."

	// VoiceFailureNotice is shown after a voice failure when notices are enabled.
	VoiceFailureNotice = "The voice call ended unexpectedly. You can keep typing or try calling again."
)

// SendOutcome describes how a SendMessage call settled.
type SendOutcome string

const (
	OutcomeIgnored   SendOutcome = "ignored"   // blank content
	OutcomeReplied   SendOutcome = "replied"   // reply or fallback appended
	OutcomeFailed    SendOutcome = "failed"    // apology appended
	OutcomeDiscarded SendOutcome = "discarded" // conversation was reset before settling
	OutcomeCanceled  SendOutcome = "canceled"  // context ended while waiting for the send slot
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the clock used to timestamp messages.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithIDGenerator sets the function producing message ids.
func WithIDGenerator(newID func() string) Option {
	return func(c *Coordinator) { c.newID = newID }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithVoice attaches a voice channel. Without one, voice is disabled.
func WithVoice(voice chatline.VoiceChannel) Option {
	return func(c *Coordinator) { c.voice = voice }
}

// WithVoiceFailureNotice appends VoiceFailureNotice to the timeline whenever
// the voice channel fails.
func WithVoiceFailureNotice(enabled bool) Option {
	return func(c *Coordinator) { c.voiceNotice = enabled }
}

// Coordinator is the single entry point for a conversation. It is safe for
// concurrent use.
type Coordinator struct {
	exchanger   chatline.Exchanger
	voice       chatline.VoiceChannel
	now         func() time.Time
	newID       func() string
	logger      zerolog.Logger
	voiceNotice bool

	mu        sync.Mutex
	sess      *session.Session
	slot      chan struct{} // send slot of the current generation
	pending   int           // sends of the current generation not yet settled
	voiceErr  error
	pubMu     sync.Mutex
	listeners map[int]chan Snapshot
	nextID    int
}

// NewCoordinator creates a coordinator in welcome mode.
func NewCoordinator(exchanger chatline.Exchanger, opts ...Option) *Coordinator {
	c := &Coordinator{
		exchanger: exchanger,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    zerolog.Nop(),
		slot:      make(chan struct{}, 1),
		listeners: make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sess = session.NewSession(c.now())
	if c.voice != nil {
		c.voice.Observe(c.onVoiceEvent)
	}
	return c
}

// StartChat enters chatting mode. When first is not blank it is sent
// immediately and StartChat returns once that send settles.
func (c *Coordinator) StartChat(ctx context.Context, first string) SendOutcome {
	c.mu.Lock()
	c.sess.StartChat(c.now())
	c.mu.Unlock()
	c.logger.Debug().Str("mode", string(chatline.ModeChatting)).Msg("transition")
	c.publish()

	if strings.TrimSpace(first) == "" {
		return OutcomeIgnored
	}
	return c.SendMessage(ctx, first)
}

// GoHome returns to the welcome mode. In-flight sends keep running.
func (c *Coordinator) GoHome() {
	c.mu.Lock()
	c.sess.GoHome(c.now())
	c.mu.Unlock()
	c.logger.Debug().Str("mode", string(chatline.ModeWelcome)).Msg("transition")
	c.publish()
}

// Navigate jumps to target. An unknown target returns chatline.ErrUnknownMode.
func (c *Coordinator) Navigate(target chatline.Mode) error {
	c.mu.Lock()
	err := c.sess.Navigate(target, c.now())
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.logger.Debug().Str("mode", string(target)).Msg("transition")
	c.publish()
	return nil
}

// StartNewChat discards the current conversation. Messages, transcript and
// the loading flag are cleared, and results of sends issued before the call
// are discarded when they arrive. The mode is unchanged.
func (c *Coordinator) StartNewChat() {
	c.mu.Lock()
	c.sess.Reset(c.now())
	c.slot = make(chan struct{}, 1)
	c.pending = 0
	c.voiceErr = nil
	if c.voice != nil {
		c.voice.ClearTranscript()
	}
	gen := c.sess.Generation
	c.mu.Unlock()
	c.logger.Debug().Uint64("generation", gen).Msg("new chat")
	c.publish()
}

// SendMessage runs the send pipeline for content and blocks until it
// settles. It never fails: exchange errors become an apology message.
//
// Sends are serialized per conversation. A call made while another send is
// outstanding waits for it to settle before its own user message is appended,
// and the loading flag stays set across the hand-off.
func (c *Coordinator) SendMessage(ctx context.Context, content string) SendOutcome {
	content = strings.TrimSpace(content)
	if content == "" {
		return OutcomeIgnored
	}

	c.mu.Lock()
	slot := c.slot
	gen := c.sess.Generation
	c.pending++
	c.mu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		c.mu.Lock()
		cleared := false
		if c.sess.Generation == gen {
			c.pending--
			if c.pending == 0 && c.sess.Loading {
				c.sess.Loading = false
				cleared = true
			}
		}
		c.mu.Unlock()
		if cleared {
			c.publish()
		}
		return OutcomeCanceled
	}
	defer func() { <-slot }()

	c.mu.Lock()
	if c.sess.Generation != gen {
		c.mu.Unlock()
		return OutcomeDiscarded
	}
	c.sess.AddMessage(c.message(content, chatline.SenderUser))
	c.sess.Loading = true
	sessionID := c.sess.ID
	c.mu.Unlock()
	c.publish()

	reply, err := c.exchanger.Send(ctx, content)

	outcome := OutcomeReplied
	text := reply
	if err != nil {
		c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("exchange failed")
		outcome = OutcomeFailed
		text = ApologyReply
	} else if strings.TrimSpace(reply) == "" {
		text = FallbackReply
	}

	c.mu.Lock()
	if c.sess.Generation != gen {
		c.mu.Unlock()
		c.logger.Debug().Str("session_id", sessionID).Str("outcome", string(outcome)).Msg("discarding stale reply")
		return OutcomeDiscarded
	}
	c.sess.AddMessage(c.message(text, chatline.SenderAssistant))
	c.pending--
	c.sess.Loading = c.pending > 0
	c.mu.Unlock()
	c.publish()

	return outcome
}

// StartVoice requests a voice call. It is a no-op when voice is disabled.
func (c *Coordinator) StartVoice(ctx context.Context) {
	if c.voice == nil {
		c.logger.Debug().Msg("voice disabled")
		return
	}
	c.mu.Lock()
	c.voiceErr = nil
	c.mu.Unlock()
	c.voice.StartCall(ctx)
	c.publish()
}

// StopVoice requests hanging up the voice call.
func (c *Coordinator) StopVoice() {
	if c.voice == nil {
		return
	}
	c.voice.StopCall()
	c.publish()
}

// VoiceEnabled reports whether a voice channel is attached.
func (c *Coordinator) VoiceEnabled() bool {
	return c.voice != nil
}

// Timeline returns the merged, time-ordered view of the conversation.
func (c *Coordinator) Timeline() []chatline.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timelineLocked()
}

// Mode returns the current mode.
func (c *Coordinator) Mode() chatline.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Mode
}

// IsLoading reports whether a send is outstanding.
func (c *Coordinator) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Loading
}

// InputEnabled reports whether typed input should be accepted: the mode is
// chatting and no send is outstanding.
func (c *Coordinator) InputEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.InputEnabled()
}

func (c *Coordinator) timelineLocked() []chatline.Message {
	var transcript []chatline.TranscriptEntry
	if c.voice != nil {
		transcript = c.voice.Transcript()
	}
	return timeline.Merge(c.sess.Messages, transcript)
}

func (c *Coordinator) message(content string, sender chatline.Sender) chatline.Message {
	return chatline.Message{
		ID:        c.newID(),
		Content:   content,
		Sender:    sender,
		Timestamp: c.now(),
	}
}

func (c *Coordinator) onVoiceEvent(ev chatline.VoiceEvent) {
	if ev.Kind == chatline.VoiceFailure {
		c.logger.Warn().Err(ev.Err).Msg("voice channel failed")
		c.mu.Lock()
		c.voiceErr = ev.Err
		if c.voiceNotice {
			c.sess.AddMessage(c.message(VoiceFailureNotice, chatline.SenderAssistant))
		}
		c.mu.Unlock()
	}
	c.publish()
}
