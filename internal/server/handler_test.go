package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/longkey1/chatline/internal/chatline"
	"github.com/longkey1/chatline/internal/chatline/conversation"
	"github.com/longkey1/chatline/internal/chatline/panel"
	"github.com/longkey1/chatline/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedExchanger struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
}

func (e *scriptedExchanger) Send(_ context.Context, content string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	return e.replies[content], nil
}

func newTestServer(t *testing.T, ex chatline.Exchanger) (http.Handler, *conversation.Coordinator) {
	t.Helper()
	coord := conversation.NewCoordinator(ex)
	panels, err := panel.LoadAll(nil)
	require.NoError(t, err)
	return server.NewServer(coord, panels, server.WithRequestTimeout(time.Second)), coord
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) conversation.Snapshot {
	t.Helper()
	var snap conversation.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap), w.Body.String())
	return snap
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t, &scriptedExchanger{})

	w := do(t, h, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStartChatAndSendMessage(t *testing.T) {
	h, _ := newTestServer(t, &scriptedExchanger{replies: map[string]string{"Hello": "Hi there", "Bye": "See you"}})

	w := do(t, h, http.MethodPost, "/chat/start", `{"message":"Hello"}`)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, chatline.ModeChatting, snap.Mode)
	require.Len(t, snap.Timeline, 2)
	assert.Equal(t, "Hi there", snap.Timeline[1].Content)
	assert.True(t, snap.InputEnabled)

	w = do(t, h, http.MethodPost, "/messages", `{"message":"Bye"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Outcome conversation.SendOutcome `json:"outcome"`
		State   conversation.Snapshot    `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, conversation.OutcomeReplied, resp.Outcome)
	assert.Len(t, resp.State.Timeline, 4)
	assert.False(t, resp.State.IsLoading)
}

func TestStartChatWithoutBody(t *testing.T) {
	h, _ := newTestServer(t, &scriptedExchanger{})

	w := do(t, h, http.MethodPost, "/chat/start", "")

	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, chatline.ModeChatting, snap.Mode)
	assert.Empty(t, snap.Timeline)
}

func TestStartChatWithEmptyChunkedBody(t *testing.T) {
	h, _ := newTestServer(t, &scriptedExchanger{})
	req := httptest.NewRequest(http.MethodPost, "/chat/start", strings.NewReader(""))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decodeSnapshot(t, w)
	assert.Equal(t, chatline.ModeChatting, snap.Mode)
	assert.Empty(t, snap.Timeline)
}

func TestStartChatInvalidBody(t *testing.T) {
	h, _ := newTestServer(t, &scriptedExchanger{})

	w := do(t, h, http.MethodPost, "/chat/start", `{"message":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendMessageFailureIsApology(t *testing.T) {
	h, _ := newTestServer(t, &scriptedExchanger{err: &chatline.ExchangeFailure{Reason: "status 500"}})

	w := do(t, h, http.MethodPost, "/messages", `{"message":"Hello"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"failed"`)
	assert.Contains(t, w.Body.String(), conversation.ApologyReply)
}

func TestSendMessageValidation(t *testing.T) {
	h, _ := newTestServer(t, &scriptedExchanger{})

	w := do(t, h, http.MethodPost, "/messages", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/messages", `{"message":"   "}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"ignored"`)
}

func TestNewChatClearsTimeline(t *testing.T) {
	h, _ := newTestServer(t, &scriptedExchanger{replies: map[string]string{"Hello": "Hi"}})
	do(t, h, http.MethodPost, "/chat/start", `{"message":"Hello"}`)

	w := do(t, h, http.MethodPost, "/chat/new", "")

	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Empty(t, snap.Timeline)
	assert.Equal(t, uint64(1), snap.Generation)
}

func TestNavigateAndHome(t *testing.T) {
	h, coord := newTestServer(t, &scriptedExchanger{})

	w := do(t, h, http.MethodPost, "/navigate", `{"target":"faq"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, chatline.ModeFAQ, coord.Mode())

	w = do(t, h, http.MethodPost, "/navigate", `{"target":"settings"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, chatline.ModeFAQ, coord.Mode())

	w = do(t, h, http.MethodPost, "/home", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, chatline.ModeWelcome, decodeSnapshot(t, w).Mode)
}

func TestVoiceDisabledEndpoints(t *testing.T) {
	h, _ := newTestServer(t, &scriptedExchanger{})

	w := do(t, h, http.MethodPost, "/voice/start", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	snap := decodeSnapshot(t, w)
	assert.False(t, snap.Voice.Enabled)
	assert.Equal(t, chatline.Disconnected, snap.Voice.State)

	w = do(t, h, http.MethodPost, "/voice/stop", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestPanels(t *testing.T) {
	h, _ := newTestServer(t, &scriptedExchanger{})

	w := do(t, h, http.MethodGet, "/panels/faq", "")
	require.Equal(t, http.StatusOK, w.Code)
	var p panel.Panel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "faq", p.Name)
	assert.NotEmpty(t, p.Entries)

	w = do(t, h, http.MethodGet, "/panels/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestServer(t, &scriptedExchanger{})

	w := do(t, h, http.MethodGet, "/messages", "")

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCORS(t *testing.T) {
	h, _ := newTestServer(t, &scriptedExchanger{})

	w := do(t, h, http.MethodOptions, "/messages", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestEventsStream(t *testing.T) {
	h, coord := newTestServer(t, &scriptedExchanger{replies: map[string]string{"Hello": "Hi there"}})
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	var first conversation.Snapshot
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, chatline.ModeWelcome, first.Mode)

	coord.StartChat(context.Background(), "Hello")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var snap conversation.Snapshot
		require.NoError(t, conn.ReadJSON(&snap))
		if len(snap.Timeline) == 2 && !snap.IsLoading {
			assert.Equal(t, "Hi there", snap.Timeline[1].Content)
			return
		}
	}
}
