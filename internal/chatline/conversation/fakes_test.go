package conversation

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/longkey1/chatline/internal/chatline"
)

type exchangeResult struct {
	reply string
	err   error
}

// stubExchanger answers every send with a fixed result.
type stubExchanger struct {
	mu    sync.Mutex
	reply string
	err   error
	sent  []string
}

func (s *stubExchanger) Send(_ context.Context, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, content)
	return s.reply, s.err
}

func (s *stubExchanger) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

// gatedExchanger blocks each send until the test releases it by content.
type gatedExchanger struct {
	started chan string

	mu    sync.Mutex
	gates map[string]chan exchangeResult
}

func newGatedExchanger() *gatedExchanger {
	return &gatedExchanger{
		started: make(chan string, 16),
		gates:   make(map[string]chan exchangeResult),
	}
}

func (g *gatedExchanger) gate(content string) chan exchangeResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[content]
	if !ok {
		ch = make(chan exchangeResult, 1)
		g.gates[content] = ch
	}
	return ch
}

func (g *gatedExchanger) release(content string, res exchangeResult) {
	g.gate(content) <- res
}

func (g *gatedExchanger) Send(ctx context.Context, content string) (string, error) {
	g.started <- content
	select {
	case res := <-g.gate(content):
		return res.reply, res.err
	case <-ctx.Done():
		return "", &chatline.ExchangeFailure{Reason: "canceled", Err: ctx.Err()}
	}
}

// fakeVoice is an in-memory voice channel driven by the test.
type fakeVoice struct {
	mu         sync.Mutex
	state      chatline.ConnectionState
	speaking   bool
	transcript []chatline.TranscriptEntry
	observers  []func(chatline.VoiceEvent)
	starts     int
	stops      int
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{state: chatline.Disconnected}
}

func (f *fakeVoice) ConnectionState() chatline.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeVoice) Speaking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speaking
}

func (f *fakeVoice) StartCall(context.Context) {
	f.mu.Lock()
	f.starts++
	f.state = chatline.Connected
	f.mu.Unlock()
}

func (f *fakeVoice) StopCall() {
	f.mu.Lock()
	f.stops++
	f.state = chatline.Disconnected
	f.mu.Unlock()
}

func (f *fakeVoice) Transcript() []chatline.TranscriptEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chatline.TranscriptEntry(nil), f.transcript...)
}

func (f *fakeVoice) ClearTranscript() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcript = nil
}

func (f *fakeVoice) Observe(fn func(chatline.VoiceEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, fn)
}

func (f *fakeVoice) emit(ev chatline.VoiceEvent) {
	f.mu.Lock()
	observers := slices.Clone(f.observers)
	f.mu.Unlock()
	for _, fn := range observers {
		fn(ev)
	}
}

func (f *fakeVoice) utter(role, text string, ts time.Time) {
	entry := chatline.TranscriptEntry{Role: role, Text: text, Timestamp: ts}
	f.mu.Lock()
	f.transcript = append(f.transcript, entry)
	f.mu.Unlock()
	f.emit(chatline.VoiceEvent{Kind: chatline.VoiceTranscript, Entry: entry})
}

func (f *fakeVoice) fail(err error) {
	f.mu.Lock()
	f.state = chatline.Disconnected
	f.mu.Unlock()
	f.emit(chatline.VoiceEvent{Kind: chatline.VoiceFailure, Err: &chatline.VoiceChannelFailure{Err: err}})
}

// stepClock returns a clock advancing one millisecond per reading.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := current
		current = current.Add(time.Millisecond)
		return t
	}
}

// sequentialIDs returns an id generator producing msg-1, msg-2, ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("msg-%d", n)
	}
}
