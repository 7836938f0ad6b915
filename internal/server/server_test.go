package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagalabs/saga/internal/ai"
	"github.com/sagalabs/saga/internal/chat"
	"github.com/sagalabs/saga/internal/logging"
	"github.com/sagalabs/saga/internal/store"
	"github.com/sagalabs/saga/internal/store/migrations"
)

type scriptStep struct {
	chunks []string
	err    error
}

type fakeClient struct {
	script []scriptStep
	sends  int
}

func (f *fakeClient) Name() string { return "fake" }
func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) NewSession(ctx context.Context, opts ai.SessionOptions) (ai.Session, error) {
	return &fakeSession{client: f}, nil
}

type fakeSession struct {
	client *fakeClient
}

func (s *fakeSession) SendMessage(ctx context.Context, text string) <-chan ai.StreamEvent {
	step := scriptStep{err: fmt.Errorf("script exhausted")}
	if s.client.sends < len(s.client.script) {
		step = s.client.script[s.client.sends]
	}
	s.client.sends++

	events := make(chan ai.StreamEvent, len(step.chunks)+1)
	go func() {
		defer close(events)
		for _, c := range step.chunks {
			events <- ai.StreamEvent{Type: ai.EventTypeText, Text: c}
		}
		if step.err != nil {
			events <- ai.StreamEvent{Type: ai.EventTypeError, Err: step.err}
			return
		}
		events <- ai.StreamEvent{Type: ai.EventTypeDone}
	}()
	return events
}

func newTestServer(t *testing.T, client *fakeClient, opts Options) (*httptest.Server, *Hub) {
	t.Helper()
	logging.Disable()
	t.Cleanup(logging.Enable)
	migrations.QuietMode = true

	st, err := store.Open(filepath.Join(t.TempDir(), "saga.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hub := NewHub(st, client, HubConfig{
		DefaultModel: "gemini-2.0-flash",
		HistoryLimit: 6,
		MaxAttempts:  1,
	})
	ts := httptest.NewServer(New(hub, opts).routes())
	t.Cleanup(ts.Close)
	return ts, hub
}

func createConversation(t *testing.T, ts *httptest.Server, title string) string {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/v1/conversations", "application/json",
		bytes.NewBufferString(fmt.Sprintf(`{"title":%q}`, title)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var conv store.Conversation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conv))
	return conv.ID
}

func TestHealthNeedsNoToken(t *testing.T) {
	ts, _ := newTestServer(t, &fakeClient{}, Options{Token: "sekrit"})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTokenAuth(t *testing.T) {
	ts, _ := newTestServer(t, &fakeClient{}, Options{Token: "sekrit"})

	resp, err := http.Get(ts.URL + "/api/v1/models")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/models", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Query parameter fallback for websocket clients
	resp, err = http.Get(ts.URL + "/api/v1/models?token=sekrit")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSendPersistsTurns(t *testing.T) {
	client := &fakeClient{script: []scriptStep{{chunks: []string{"Paris, ", "1889."}}}}
	ts, _ := newTestServer(t, client, Options{})
	id := createConversation(t, ts, "Tower talk")

	resp, err := http.Post(ts.URL+"/api/v1/conversations/"+id+"/messages", "application/json",
		bytes.NewBufferString(`{"text":"Where and when?"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got sendResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "Paris, 1889.", got.Reply)
	assert.Equal(t, chat.StateSuccess, got.State)
	assert.Equal(t, 2, got.Turns)

	turnsResp, err := http.Get(ts.URL + "/api/v1/conversations/" + id + "/turns")
	require.NoError(t, err)
	defer turnsResp.Body.Close()
	var turns []chat.Turn
	require.NoError(t, json.NewDecoder(turnsResp.Body).Decode(&turns))
	require.Len(t, turns, 2)
	assert.Equal(t, ai.RoleUser, turns[0].Role)
	assert.Equal(t, "Paris, 1889.", turns[1].Text)
}

func TestSendQuotaMapsTo429AndResets(t *testing.T) {
	client := &fakeClient{script: []scriptStep{
		{err: &ai.Error{Kind: ai.KindQuota, Provider: "fake", Status: 429, Message: "rate limited"}},
	}}
	ts, hub := newTestServer(t, client, Options{})
	id := createConversation(t, ts, "")

	resp, err := http.Post(ts.URL+"/api/v1/conversations/"+id+"/messages", "application/json",
		bytes.NewBufferString(`{"text":"hello"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	var body struct {
		Kind string `json:"kind"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "quota", body.Kind)

	// Exhaustion resets the conversation; the store follows.
	turns, err := hub.Store().LoadTurns(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestSendToMissingConversation(t *testing.T) {
	ts, _ := newTestServer(t, &fakeClient{}, Options{})

	resp, err := http.Post(ts.URL+"/api/v1/conversations/nope/messages", "application/json",
		bytes.NewBufferString(`{"text":"hello"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResetClearsStore(t *testing.T) {
	client := &fakeClient{script: []scriptStep{{chunks: []string{"hi"}}}}
	ts, hub := newTestServer(t, client, Options{})
	id := createConversation(t, ts, "")

	resp, err := http.Post(ts.URL+"/api/v1/conversations/"+id+"/messages", "application/json",
		bytes.NewBufferString(`{"text":"hello"}`))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Post(ts.URL+"/api/v1/conversations/"+id+"/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	turns, err := hub.Store().LoadTurns(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestSetModelRejectsEmpty(t *testing.T) {
	ts, _ := newTestServer(t, &fakeClient{}, Options{})
	id := createConversation(t, ts, "")

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/conversations/"+id+"/model",
		bytes.NewBufferString(`{"model":""}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportCSV(t *testing.T) {
	client := &fakeClient{script: []scriptStep{{chunks: []string{"hi"}}}}
	ts, _ := newTestServer(t, client, Options{})
	id := createConversation(t, ts, "Export me")

	resp, err := http.Post(ts.URL+"/api/v1/conversations/"+id+"/messages", "application/json",
		bytes.NewBufferString(`{"text":"hello"}`))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/conversations/" + id + "/export?format=csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte{0xEF, 0xBB, 0xBF}), "CSV export carries a UTF-8 BOM")
	assert.Contains(t, buf.String(), "Role,Message,Timestamp")
	assert.Contains(t, buf.String(), "hello")
}

func TestRateLimit(t *testing.T) {
	ts, _ := newTestServer(t, &fakeClient{}, Options{RateLimit: 1})

	resp, err := http.Get(ts.URL + "/api/v1/models")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/v1/models")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
