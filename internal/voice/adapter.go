// Package voice implements chatline.VoiceChannel over a websocket control
// connection to a real-time voice service. Audio capture and playback are
// handled by the service's own client; this package only tracks call state,
// speaking state and the finalized transcript.
package voice

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/longkey1/chatline/internal/chatline"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	defaultHandshakeTimeout = 15 * time.Second
	closeWriteTimeout       = 2 * time.Second
)

// Config holds the credentials and endpoint of the voice service
type Config struct {
	URL              string
	APIKey           string
	AssistantID      string
	HandshakeTimeout time.Duration // zero means 15s
}

// Option configures an Adapter
type Option func(*Adapter)

// WithClock sets the clock used to stamp transcript entries
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

// WithDialer sets the websocket dialer
func WithDialer(dialer *websocket.Dialer) Option {
	return func(a *Adapter) { a.dialer = dialer }
}

// call is one attempt to open the channel. Frames from a call that is no
// longer current never change adapter state.
type call struct {
	id       uint64
	cancel   context.CancelFunc
	conn     *websocket.Conn // nil while dialing, guarded by Adapter.mu
	writeMu  sync.Mutex
	once     sync.Once
	stopping atomic.Bool
}

// Adapter implements chatline.VoiceChannel
type Adapter struct {
	cfg    Config
	dialer *websocket.Dialer
	now    func() time.Time
	logger zerolog.Logger

	mu         sync.Mutex
	state      chatline.ConnectionState
	speaking   bool
	transcript []chatline.TranscriptEntry
	observers  []func(chatline.VoiceEvent)
	seq        uint64
	current    *call
}

var _ chatline.VoiceChannel = (*Adapter)(nil)

// NewAdapter creates a disconnected adapter
func NewAdapter(cfg Config, opts ...Option) *Adapter {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	a := &Adapter{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		now:    time.Now,
		logger: zerolog.Nop(),
		state:  chatline.Disconnected,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ConnectionState returns the current connection state
func (a *Adapter) ConnectionState() chatline.ConnectionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Speaking reports whether the assistant is speaking
func (a *Adapter) Speaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.speaking
}

// Transcript returns a copy of the finalized utterances
func (a *Adapter) Transcript() []chatline.TranscriptEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]chatline.TranscriptEntry(nil), a.transcript...)
}

// ClearTranscript drops every utterance. It emits no event.
func (a *Adapter) ClearTranscript() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transcript = nil
}

// Observe registers fn for every subsequent event. fn is called from the
// adapter's goroutines without any adapter lock held.
func (a *Adapter) Observe(fn func(chatline.VoiceEvent)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
}

// StartCall dials the voice service in the background. ctx contributes its
// values only: the call lives until StopCall or the remote side ends it.
func (a *Adapter) StartCall(ctx context.Context) {
	a.mu.Lock()
	if a.state != chatline.Disconnected {
		a.mu.Unlock()
		return
	}
	a.seq++
	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &call{id: a.seq, cancel: cancel}
	a.current = c
	a.state = chatline.Connecting
	a.mu.Unlock()

	a.logger.Debug().Uint64("call", c.id).Msg("voice call connecting")
	a.emit(chatline.VoiceEvent{Kind: chatline.VoiceStateChanged, State: chatline.Connecting})
	go a.run(callCtx, c)
}

// StopCall hangs up the current call, including one still connecting
func (a *Adapter) StopCall() {
	a.mu.Lock()
	c := a.current
	if c == nil {
		a.mu.Unlock()
		return
	}
	conn := c.conn
	a.current = nil
	a.state = chatline.Disconnected
	a.speaking = false
	a.mu.Unlock()

	c.stopping.Store(true)
	c.cancel()
	if conn != nil {
		c.close(conn, true)
	}
	a.logger.Debug().Uint64("call", c.id).Msg("voice call stopped")
	a.emit(chatline.VoiceEvent{Kind: chatline.VoiceStateChanged, State: chatline.Disconnected})
}

func (a *Adapter) run(ctx context.Context, c *call) {
	conn, err := a.dial(ctx)
	if err != nil {
		if c.stopping.Load() {
			return
		}
		a.finish(c, err)
		return
	}

	a.mu.Lock()
	if a.current != c {
		a.mu.Unlock()
		c.close(conn, true)
		return
	}
	c.conn = conn
	a.state = chatline.Connected
	a.mu.Unlock()

	a.logger.Debug().Uint64("call", c.id).Msg("voice call connected")
	a.emit(chatline.VoiceEvent{Kind: chatline.VoiceStateChanged, State: chatline.Connected})
	a.readLoop(c, conn)
}

func (a *Adapter) dial(ctx context.Context) (*websocket.Conn, error) {
	headers := make(http.Header)
	if a.cfg.APIKey != "" {
		headers.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	dialCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, a.cfg.HandshakeTimeout)
		defer cancel()
	}

	conn, resp, err := a.dialer.DialContext(dialCtx, a.cfg.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "voice dial failed (status %d)", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "voice dial failed")
	}

	_ = conn.SetWriteDeadline(time.Now().Add(a.cfg.HandshakeTimeout))
	if err := conn.WriteJSON(StartFrame{Type: FrameStart, AssistantID: a.cfg.AssistantID}); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "send start frame")
	}
	_ = conn.SetWriteDeadline(time.Time{})
	return conn, nil
}

func (a *Adapter) readLoop(c *call, conn *websocket.Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if c.stopping.Load() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.finish(c, nil)
				return
			}
			a.finish(c, errors.Wrap(err, "voice connection lost"))
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		frame, err := decodeServerFrame(data)
		if err != nil {
			a.logger.Warn().Err(err).Uint64("call", c.id).Msg("ignoring voice frame")
			continue
		}
		if done := a.handleFrame(c, frame); done {
			return
		}
	}
}

// handleFrame applies frame to the adapter and reports whether the call ended.
func (a *Adapter) handleFrame(c *call, frame ServerFrame) bool {
	switch frame.Type {
	case EventCallStart:
		a.logger.Debug().Uint64("call", c.id).Msg("voice call started")
	case EventSpeechStart, EventSpeechEnd:
		speaking := frame.Type == EventSpeechStart
		a.mu.Lock()
		if a.current != c || a.speaking == speaking {
			a.mu.Unlock()
			return false
		}
		a.speaking = speaking
		a.mu.Unlock()
		a.emit(chatline.VoiceEvent{Kind: chatline.VoiceSpeakingChanged, Speaking: speaking})
	case EventTranscript:
		if !frame.IsFinalTranscript() {
			return false
		}
		a.mu.Lock()
		if a.current != c {
			a.mu.Unlock()
			return false
		}
		entry := chatline.TranscriptEntry{Role: frame.Role, Text: frame.Transcript, Timestamp: a.now()}
		a.transcript = append(a.transcript, entry)
		a.mu.Unlock()
		a.emit(chatline.VoiceEvent{Kind: chatline.VoiceTranscript, Entry: entry})
	case EventCallEnd:
		a.finish(c, nil)
		return true
	case EventError:
		msg := frame.Message
		if msg == "" {
			msg = "voice service error"
		}
		a.finish(c, errors.New(msg))
		return true
	default:
		a.logger.Debug().Str("type", frame.Type).Msg("unknown voice frame")
	}
	return false
}

// finish ends c if it is still current. A non-nil cause is reported as a
// VoiceChannelFailure after the state change.
func (a *Adapter) finish(c *call, cause error) {
	a.mu.Lock()
	if a.current != c {
		a.mu.Unlock()
		return
	}
	conn := c.conn
	a.current = nil
	a.state = chatline.Disconnected
	a.speaking = false
	a.mu.Unlock()

	c.cancel()
	if conn != nil {
		c.close(conn, false)
	}
	a.emit(chatline.VoiceEvent{Kind: chatline.VoiceStateChanged, State: chatline.Disconnected})
	if cause != nil {
		a.logger.Warn().Err(cause).Uint64("call", c.id).Msg("voice call failed")
		a.emit(chatline.VoiceEvent{Kind: chatline.VoiceFailure, Err: &chatline.VoiceChannelFailure{Err: cause}})
		return
	}
	a.logger.Debug().Uint64("call", c.id).Msg("voice call ended")
}

func (a *Adapter) emit(ev chatline.VoiceEvent) {
	a.mu.Lock()
	observers := slices.Clone(a.observers)
	a.mu.Unlock()
	for _, fn := range observers {
		fn(ev)
	}
}

// close shuts conn once. When hangUp is set a stop frame and a normal close
// are sent first.
func (c *call) close(conn *websocket.Conn, hangUp bool) {
	c.once.Do(func() {
		if hangUp {
			c.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(closeWriteTimeout))
			_ = conn.WriteJSON(StopFrame{Type: FrameStop})
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeWriteTimeout))
			c.writeMu.Unlock()
		}
		_ = conn.Close()
	})
}
