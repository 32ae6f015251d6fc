package voice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/longkey1/chatline/internal/chatline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

// voiceServer is a scripted voice service. Each accepted connection runs
// script after the start frame has been read.
type voiceServer struct {
	*httptest.Server
	dials    atomic.Int32
	frames   chan map[string]any
	authSeen chan string
}

func newVoiceServer(t *testing.T, script func(conn *websocket.Conn)) *voiceServer {
	t.Helper()
	vs := &voiceServer{
		frames:   make(chan map[string]any, 16),
		authSeen: make(chan string, 4),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	vs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vs.dials.Add(1)
		vs.authSeen <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var start map[string]any
		if err := conn.ReadJSON(&start); err != nil {
			return
		}
		vs.frames <- start

		if script != nil {
			script(conn)
		}

		for {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			vs.frames <- frame
		}
	}))
	t.Cleanup(vs.Close)
	return vs
}

func (vs *voiceServer) wsURL() string {
	return "ws" + strings.TrimPrefix(vs.URL, "http")
}

// recorder collects adapter events.
type recorder struct {
	mu     sync.Mutex
	events []chatline.VoiceEvent
}

func (r *recorder) observe(ev chatline.VoiceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds(kind chatline.VoiceEventKind) []chatline.VoiceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []chatline.VoiceEvent
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func newTestAdapter(url string) (*Adapter, *recorder) {
	a := NewAdapter(Config{URL: url, APIKey: "secret", AssistantID: "assistant-1"},
		WithClock(func() time.Time { return fixedNow }))
	rec := &recorder{}
	a.Observe(rec.observe)
	return a, rec
}

func waitState(t *testing.T, a *Adapter, want chatline.ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool { return a.ConnectionState() == want }, 2*time.Second, 5*time.Millisecond)
}

func TestStartCallSendsCredentials(t *testing.T) {
	vs := newVoiceServer(t, nil)
	a, rec := newTestAdapter(vs.wsURL())

	a.StartCall(context.Background())
	waitState(t, a, chatline.Connected)

	assert.Equal(t, "Bearer secret", <-vs.authSeen)
	start := <-vs.frames
	assert.Equal(t, FrameStart, start["type"])
	assert.Equal(t, "assistant-1", start["assistant_id"])

	require.Eventually(t, func() bool { return len(rec.kinds(chatline.VoiceStateChanged)) == 2 }, 2*time.Second, 5*time.Millisecond)
	states := rec.kinds(chatline.VoiceStateChanged)
	assert.Equal(t, chatline.Connecting, states[0].State)
	assert.Equal(t, chatline.Connected, states[1].State)

	a.StopCall()
}

func TestStartCallIsIdempotent(t *testing.T) {
	vs := newVoiceServer(t, nil)
	a, _ := newTestAdapter(vs.wsURL())

	a.StartCall(context.Background())
	a.StartCall(context.Background())
	waitState(t, a, chatline.Connected)
	a.StartCall(context.Background())

	require.Never(t, func() bool { return vs.dials.Load() > 1 }, 100*time.Millisecond, 10*time.Millisecond)
	a.StopCall()
}

func TestTranscriptAccumulatesFinalUtterances(t *testing.T) {
	vs := newVoiceServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(ServerFrame{Type: EventCallStart})
		_ = conn.WriteJSON(ServerFrame{Type: EventTranscript, Role: "user", TranscriptType: TranscriptPartial, Transcript: "hel"})
		_ = conn.WriteJSON(ServerFrame{Type: EventTranscript, Role: "user", TranscriptType: TranscriptFinal, Transcript: "hello"})
		_ = conn.WriteJSON(ServerFrame{Type: EventSpeechStart})
		_ = conn.WriteJSON(ServerFrame{Type: EventTranscript, Role: "assistant", TranscriptType: TranscriptFinal, Transcript: "hi there"})
		_ = conn.WriteJSON(ServerFrame{Type: "volume-level"})
		_ = conn.WriteJSON(ServerFrame{Type: EventSpeechEnd})
	})
	a, rec := newTestAdapter(vs.wsURL())

	a.StartCall(context.Background())
	require.Eventually(t, func() bool { return len(a.Transcript()) == 2 && len(rec.kinds(chatline.VoiceSpeakingChanged)) == 2 },
		2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []chatline.TranscriptEntry{
		{Role: "user", Text: "hello", Timestamp: fixedNow},
		{Role: "assistant", Text: "hi there", Timestamp: fixedNow},
	}, a.Transcript())

	speaking := rec.kinds(chatline.VoiceSpeakingChanged)
	assert.True(t, speaking[0].Speaking)
	assert.False(t, speaking[1].Speaking)
	assert.False(t, a.Speaking())
	assert.Len(t, rec.kinds(chatline.VoiceTranscript), 2)
	assert.Equal(t, chatline.Connected, a.ConnectionState())

	a.StopCall()
}

func TestClearTranscriptKeepsConnection(t *testing.T) {
	vs := newVoiceServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(ServerFrame{Type: EventTranscript, Role: "user", TranscriptType: TranscriptFinal, Transcript: "one"})
	})
	a, _ := newTestAdapter(vs.wsURL())

	a.StartCall(context.Background())
	require.Eventually(t, func() bool { return len(a.Transcript()) == 1 }, 2*time.Second, 5*time.Millisecond)

	a.ClearTranscript()

	assert.Empty(t, a.Transcript())
	assert.Equal(t, chatline.Connected, a.ConnectionState())
	a.StopCall()
}

func TestStopCallSendsStopFrame(t *testing.T) {
	vs := newVoiceServer(t, nil)
	a, rec := newTestAdapter(vs.wsURL())

	a.StartCall(context.Background())
	waitState(t, a, chatline.Connected)
	<-vs.frames

	a.StopCall()

	assert.Equal(t, chatline.Disconnected, a.ConnectionState())
	select {
	case frame := <-vs.frames:
		assert.Equal(t, FrameStop, frame["type"])
	case <-time.After(2 * time.Second):
		t.Fatal("stop frame not received")
	}
	require.Never(t, func() bool { return len(rec.kinds(chatline.VoiceFailure)) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestStopCallWhenDisconnectedIsNoop(t *testing.T) {
	a, rec := newTestAdapter("ws://127.0.0.1:1")

	a.StopCall()

	assert.Equal(t, chatline.Disconnected, a.ConnectionState())
	assert.Empty(t, rec.kinds(chatline.VoiceStateChanged))
}

func TestDialFailureReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()
	a, rec := newTestAdapter("ws" + strings.TrimPrefix(server.URL, "http"))

	a.StartCall(context.Background())

	require.Eventually(t, func() bool { return len(rec.kinds(chatline.VoiceFailure)) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, chatline.Disconnected, a.ConnectionState())

	failure := rec.kinds(chatline.VoiceFailure)[0]
	var vcf *chatline.VoiceChannelFailure
	require.ErrorAs(t, failure.Err, &vcf)
	assert.Contains(t, failure.Err.Error(), "status 401")
}

func TestErrorFrameReportsFailure(t *testing.T) {
	vs := newVoiceServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(ServerFrame{Type: EventError, Message: "assistant not found"})
	})
	a, rec := newTestAdapter(vs.wsURL())

	a.StartCall(context.Background())

	require.Eventually(t, func() bool { return len(rec.kinds(chatline.VoiceFailure)) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, chatline.Disconnected, a.ConnectionState())
	assert.Contains(t, rec.kinds(chatline.VoiceFailure)[0].Err.Error(), "assistant not found")
}

func TestRemoteCallEnd(t *testing.T) {
	vs := newVoiceServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(ServerFrame{Type: EventTranscript, Role: "assistant", TranscriptType: TranscriptFinal, Transcript: "bye"})
		_ = conn.WriteJSON(ServerFrame{Type: EventCallEnd})
	})
	a, rec := newTestAdapter(vs.wsURL())

	a.StartCall(context.Background())

	require.Eventually(t, func() bool {
		states := rec.kinds(chatline.VoiceStateChanged)
		return len(states) == 3 && states[2].State == chatline.Disconnected
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, rec.kinds(chatline.VoiceFailure))
	assert.Len(t, a.Transcript(), 1, "transcript survives the end of the call")
}

func TestConnectionDropReportsFailure(t *testing.T) {
	vs := newVoiceServer(t, func(conn *websocket.Conn) {
		_ = conn.UnderlyingConn().Close()
	})
	a, rec := newTestAdapter(vs.wsURL())

	a.StartCall(context.Background())

	require.Eventually(t, func() bool { return len(rec.kinds(chatline.VoiceFailure)) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, chatline.Disconnected, a.ConnectionState())
}

func TestRestartAfterStop(t *testing.T) {
	vs := newVoiceServer(t, nil)
	a, _ := newTestAdapter(vs.wsURL())

	a.StartCall(context.Background())
	waitState(t, a, chatline.Connected)
	a.StopCall()
	a.StartCall(context.Background())
	waitState(t, a, chatline.Connected)

	assert.Equal(t, int32(2), vs.dials.Load())
	a.StopCall()
}

func TestStaleCallFramesIgnored(t *testing.T) {
	a, rec := newTestAdapter("ws://127.0.0.1:1")
	stale := &call{id: 42, cancel: func() {}}

	assert.False(t, a.handleFrame(stale, ServerFrame{Type: EventTranscript, Role: "user", TranscriptType: TranscriptFinal, Transcript: "old"}))
	assert.False(t, a.handleFrame(stale, ServerFrame{Type: EventSpeechStart}))
	assert.True(t, a.handleFrame(stale, ServerFrame{Type: EventError, Message: "old failure"}))

	assert.Empty(t, a.Transcript())
	assert.False(t, a.Speaking())
	assert.Empty(t, rec.kinds(chatline.VoiceFailure))
	assert.Equal(t, chatline.Disconnected, a.ConnectionState())
}

func TestDecodeServerFrame(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantType  string
		wantFinal bool
		wantErr   bool
	}{
		{name: "final transcript", input: `{"type":"transcript","role":"user","transcript_type":"final","transcript":"hi"}`, wantType: EventTranscript, wantFinal: true},
		{name: "partial transcript", input: `{"type":"transcript","role":"user","transcript_type":"partial","transcript":"h"}`, wantType: EventTranscript},
		{name: "blank final transcript", input: `{"type":"transcript","transcript_type":"final","transcript":"  "}`, wantType: EventTranscript},
		{name: "call end", input: `{"type":"call-end"}`, wantType: EventCallEnd},
		{name: "missing type", input: `{"role":"user"}`, wantErr: true},
		{name: "not json", input: `nope`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := decodeServerFrame([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, frame.Type)
			assert.Equal(t, tt.wantFinal, frame.IsFinalTranscript())
		})
	}
}
