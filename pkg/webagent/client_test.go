package webagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutomate(t *testing.T) {
	var got AutomationConfig
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathAutomate, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(AutomationResponse{Message: "found 3 tables"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	resp, err := c.Automate(context.Background(), AutomationConfig{
		StartingURL:     "https://example.com",
		Goal:            "find a table",
		Model:           "gpt-4o-mini",
		Features:        "axtree",
		ElementsFilter:  ElementsFilterSOM,
		BranchingFactor: 5,
		StorageState:    "state.json",
		LogFolder:       "log",
	})
	require.NoError(t, err)
	assert.Equal(t, "found 3 tables", resp.Message)
	assert.Equal(t, AgentTypePrompt, got.AgentType)
	assert.Equal(t, "https://example.com", got.StartingURL)
	assert.Equal(t, 5, got.BranchingFactor)
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"error field", `{"error":"boom"}`, "boom"},
		{"detail field", `{"detail":"bad goal"}`, "bad goal"},
		{"no body", ``, "500 Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Automate(context.Background(), AutomationConfig{})
			require.Error(t, err)
			apiErr := AsAPIError(err)
			require.NotNil(t, apiErr)
			assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
		})
	}
}

func TestStartBrowserSession(t *testing.T) {
	t.Run("complete response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, PathStartBrowserSession, r.URL.Path)
			fmt.Fprint(w, `{"live_browser_url":"https://live/1","session_id":"s-1"}`)
		}))
		defer srv.Close()

		sess, err := NewClient(srv.URL).StartBrowserSession(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "s-1", sess.SessionID)
		assert.Equal(t, "https://live/1", sess.LiveBrowserURL)
	})

	t.Run("missing session id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"live_browser_url":"https://live/1"}`)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).StartBrowserSession(context.Background())
		assert.ErrorIs(t, err, ErrIncompleteSession)
	})
}

func TestEndSession(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathEndSession, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewClient(srv.URL).EndSession(context.Background(), "s-9"))
	assert.Equal(t, "s-9", got["session_id"])
}

func TestRunStepsSSE(t *testing.T) {
	var got StepsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathInitialSteps, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		fmt.Fprint(w, "data: {\"type\":\"thinking\",\"message\":\"Looking\"}\n\n")
		fmt.Fprint(w, ": keep-alive comment\n\n")
		fmt.Fprint(w, "event: frame\ndata: {\"type\":\"tool_result\",\ndata: \"message\":{\"content\":\"ok\"}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, "data: {\"type\":\"complete\"}")
	}))
	defer srv.Close()

	var frames []string
	err := NewClient(srv.URL).RunInitialSteps(context.Background(), StepsRequest{
		Goal:        "find a table",
		StartingURL: "https://example.com",
		SessionID:   "s-1",
	}, func(raw []byte) { frames = append(frames, string(raw)) })
	require.NoError(t, err)

	assert.Equal(t, "s-1", got.SessionID)
	require.Len(t, frames, 3)
	assert.Equal(t, `{"type":"thinking","message":"Looking"}`, frames[0])
	assert.Equal(t, "{\"type\":\"tool_result\",\n\"message\":{\"content\":\"ok\"}}", frames[1])
	assert.Equal(t, `{"type":"complete"}`, frames[2])
}

func TestRunStepsNDJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathAdditionalSteps, r.URL.Path)
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprint(w, "{\"type\":\"action\",\"message\":\"click\"}\n\n   \nnot json\n")
	}))
	defer srv.Close()

	var frames []string
	err := NewClient(srv.URL).RunAdditionalSteps(context.Background(), StepsRequest{SessionID: "s-1"},
		func(raw []byte) { frames = append(frames, string(raw)) })
	require.NoError(t, err)
	assert.Equal(t, []string{`{"type":"action","message":"click"}`, "not json"}, frames)
}

func TestRunStepsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"no such session"}`)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).RunAdditionalSteps(context.Background(), StepsRequest{SessionID: "gone"}, nil)
	require.Error(t, err)
	apiErr := AsAPIError(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestRunStepsWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var got StepsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathWSInitialSteps, r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		msgType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, msgType)
		require.NoError(t, json.Unmarshal(data, &got))
		for _, f := range []string{
			`{"type":"status","message":"starting"}`,
			`{"type":"complete","message":{"response":[]}}`,
		} {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		// Drain until the client acknowledges the close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	var frames []string
	c := NewClient(srv.URL, WithTransport(TransportWebSocket))
	err := c.RunInitialSteps(context.Background(), StepsRequest{Goal: "go", SessionID: "s-2"},
		func(raw []byte) { frames = append(frames, string(raw)) })
	require.NoError(t, err)
	assert.Equal(t, "s-2", got.SessionID)
	assert.Len(t, frames, 2)
}

func TestRunStepsWebSocketCanceled(t *testing.T) {
	upgrader := websocket.Upgrader{}
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		var req StepsRequest
		_ = conn.ReadJSON(&req)
		close(started)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	err := NewClient(srv.URL, WithTransport(TransportWebSocket)).
		RunInitialSteps(ctx, StepsRequest{SessionID: "s-3"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{"http://localhost:5001", "ws://localhost:5001/ws/initial-steps", false},
		{"https://agent.example.com/api", "wss://agent.example.com/api/ws/initial-steps", false},
		{"ftp://nope", "", true},
	}
	for _, tt := range tests {
		got, err := websocketURL(tt.base, PathWSInitialSteps)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestReadFramesFlushesTrailingEvent(t *testing.T) {
	var frames []string
	n, err := readFrames(strings.NewReader("data: a\ndata: b"), true, func(raw []byte) {
		frames = append(frames, string(raw))
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a\nb"}, frames)
}
