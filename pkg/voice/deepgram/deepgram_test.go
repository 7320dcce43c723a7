package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/webagent/pkg/voice"
)

func TestConfigURL(t *testing.T) {
	cfg := DefaultConfig()
	raw, err := cfg.URL()
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "wss", u.Scheme)
	assert.Equal(t, "/v1/listen", u.Path)

	q := u.Query()
	assert.Equal(t, "nova-2", q.Get("model"))
	assert.Equal(t, "true", q.Get("interim_results"))
	assert.Equal(t, "true", q.Get("smart_format"))
	assert.Equal(t, "true", q.Get("filler_words"))
	assert.Equal(t, "3000", q.Get("utterance_end_ms"))
	assert.Equal(t, "linear16", q.Get("encoding"))
	assert.Equal(t, "16000", q.Get("sample_rate"))
	assert.False(t, q.Has("language"))

	cfg.Language = "en-US"
	raw, err = cfg.URL()
	require.NoError(t, err)
	u, err = url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "en-US", u.Query().Get("language"))
}

func TestDecodeTranscript(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    voice.Transcript
		wantOK  bool
		wantErr bool
	}{
		{
			name:   "final result",
			raw:    `{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"find a table","confidence":0.98}]}}`,
			want:   voice.Transcript{IsFinal: true, SpeechFinal: true, Text: "find a table"},
			wantOK: true,
		},
		{
			name:   "interim result",
			raw:    `{"type":"Results","is_final":false,"speech_final":false,"channel":{"alternatives":[{"transcript":"find a"}]}}`,
			want:   voice.Transcript{Text: "find a"},
			wantOK: true,
		},
		{
			name:   "no alternatives",
			raw:    `{"type":"Results","is_final":true,"channel":{"alternatives":[]}}`,
			want:   voice.Transcript{IsFinal: true},
			wantOK: true,
		},
		{name: "metadata", raw: `{"type":"Metadata","request_id":"x"}`},
		{name: "utterance end", raw: `{"type":"UtteranceEnd","last_word_end":2.1}`},
		{name: "error", raw: `{"type":"Error","description":"bad audio"}`, wantErr: true},
		{name: "garbage", raw: `nope`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := decodeTranscript([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDialRequiresAPIKey(t *testing.T) {
	_, err := Dial(context.Background(), DefaultConfig(), nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

type fakeService struct {
	mu       sync.Mutex
	auth     string
	query    url.Values
	binary   [][]byte
	controls []string
}

func (f *fakeService) handler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.auth = r.Header.Get("Authorization")
		f.query = r.URL.Query()
		f.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		results := []string{
			`{"type":"Metadata"}`,
			`{"type":"Results","is_final":false,"speech_final":false,"channel":{"alternatives":[{"transcript":"hel"}]}}`,
			`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"hello"}]}}`,
		}
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			f.mu.Lock()
			if messageType == websocket.BinaryMessage {
				f.binary = append(f.binary, data)
			} else {
				f.controls = append(f.controls, string(data))
			}
			f.mu.Unlock()

			if messageType == websocket.BinaryMessage {
				for _, res := range results {
					_ = conn.WriteMessage(websocket.TextMessage, []byte(res))
				}
			}
			if strings.Contains(string(data), "CloseStream") {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}
}

func TestConnStreamsAudioAndTranscripts(t *testing.T) {
	svc := &fakeService{}
	srv := httptest.NewServer(svc.handler(t))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.APIKey = "secret"
	cfg.Endpoint = "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/listen"

	conn, err := Dial(context.Background(), cfg, nil)
	require.NoError(t, err)

	require.NoError(t, conn.KeepAlive())
	require.NoError(t, conn.Send([]byte{0, 1, 2, 3}))

	var got []voice.Transcript
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case tr := <-conn.Transcripts():
			got = append(got, tr)
		case <-timeout:
			t.Fatal("timed out waiting for transcripts")
		}
	}
	assert.Equal(t, "hel", got[0].Text)
	assert.True(t, got[1].IsFinal && got[1].SpeechFinal)
	assert.Equal(t, "hello", got[1].Text)

	require.NoError(t, conn.Close())
	_, open := <-conn.Transcripts()
	assert.False(t, open)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, "Token secret", svc.auth)
	assert.Equal(t, "nova-2", svc.query.Get("model"))
	assert.Equal(t, [][]byte{{0, 1, 2, 3}}, svc.binary)
	assert.Contains(t, svc.controls, `{"type":"KeepAlive"}`)
	assert.Contains(t, svc.controls, `{"type":"CloseStream"}`)
}
