package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/forkline-ai/forkline"
)

func testGraph(t *testing.T) *forkline.Graph {
	t.Helper()
	schema, err := forkline.NewSchema(
		forkline.Channel{Name: forkline.ChannelMessages, Policy: forkline.Append},
		forkline.Channel{Name: forkline.ChannelIntent},
		forkline.Channel{Name: forkline.ChannelSessionID},
		forkline.Channel{Name: forkline.ChannelUserID},
		forkline.Channel{Name: forkline.ChannelRequestedStep},
	)
	require.NoError(t, err)

	responder := forkline.NewNodeFunc("responder", func(ctx context.Context, state forkline.State, sink forkline.EventSink) (forkline.State, error) {
		msg, _ := forkline.LastUserMessage(state.Messages(forkline.ChannelMessages))
		sink.Emit(forkline.Event{Type: forkline.EventStatus, Message: "responding"})
		return forkline.State{
			forkline.ChannelIntent: "general",
			forkline.ChannelMessages: []forkline.Message{
				forkline.AssistantMessage("you said: " + msg.Content),
			},
		}, nil
	})

	graph, err := forkline.NewGraph(forkline.GraphOptions{
		Name:   "test",
		Schema: schema,
		Entry:  "responder",
		Nodes:  []forkline.Node{responder},
		Edges:  []forkline.Edge{{From: "responder", To: forkline.End}},
	})
	require.NoError(t, err)
	return graph
}

func newTestServer(t *testing.T, registry *prometheus.Registry) *Server {
	t.Helper()
	engine, err := forkline.NewEngine(forkline.EngineOptions{
		Graph: testGraph(t),
		Store: forkline.NewMemoryStore(),
	})
	require.NoError(t, err)
	return New(Options{
		Threads:  forkline.NewThreads(engine),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registry: registry,
	})
}

func postJSON(t *testing.T, server *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func decodeTurn(t *testing.T, rec *httptest.ResponseRecorder) TurnResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp TurnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}

func TestNewThreadAndTurn(t *testing.T) {
	server := newTestServer(t, nil)

	resp := decodeTurn(t, postJSON(t, server, "/threads", TurnRequest{Message: "hello"}))
	require.NotEmpty(t, resp.ThreadID)
	require.Equal(t, "you said: hello", resp.Reply)
	require.NotEmpty(t, resp.Checkpoints)
	require.NotEmpty(t, resp.Events)

	// A follow-up turn on the returned thread continues the conversation.
	second := decodeTurn(t, postJSON(t, server,
		fmt.Sprintf("/threads/%s/turns", resp.ThreadID), TurnRequest{Message: "again"}))
	require.Equal(t, resp.ThreadID, second.ThreadID)
	require.Equal(t, "you said: again", second.Reply)
}

func TestTurnRejectsBadBody(t *testing.T) {
	server := newTestServer(t, nil)

	rec := postJSON(t, server, "/threads", TurnRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/threads", bytes.NewReader([]byte("{")))
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory(t *testing.T) {
	server := newTestServer(t, nil)

	resp := decodeTurn(t, postJSON(t, server, "/threads", TurnRequest{Message: "one"}))
	decodeTurn(t, postJSON(t, server, fmt.Sprintf("/threads/%s/turns", resp.ThreadID), TurnRequest{Message: "two"}))

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/threads/%s/history", resp.ThreadID), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ThreadID string                  `json:"thread_id"`
		History  []forkline.HistoryEntry `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, resp.ThreadID, body.ThreadID)
	// Two turns leave four checkpoints: turn input plus responder, twice.
	require.Len(t, body.History, 4)
	require.Equal(t, "general", body.History[0].Intent)

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/threads/%s/history?limit=1", resp.ThreadID), nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.History, 1)

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/threads/%s/history?limit=bogus", resp.ThreadID), nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResume(t *testing.T) {
	server := newTestServer(t, nil)

	first := decodeTurn(t, postJSON(t, server, "/threads", TurnRequest{Message: "one"}))
	decodeTurn(t, postJSON(t, server, fmt.Sprintf("/threads/%s/turns", first.ThreadID), TurnRequest{Message: "two"}))

	// Resume from the end of the first turn, superseding the second.
	fromID := first.Checkpoints[len(first.Checkpoints)-1]
	resumed := decodeTurn(t, postJSON(t, server,
		fmt.Sprintf("/threads/%s/resume/%s", first.ThreadID, fromID),
		TurnRequest{Message: "take two"}))
	require.Equal(t, first.ThreadID, resumed.ThreadID)
	require.Equal(t, "you said: take two", resumed.Reply)

	rec := postJSON(t, server,
		fmt.Sprintf("/threads/%s/resume/%s", first.ThreadID, "chk_missing"),
		TurnRequest{Message: "nope"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestBranch(t *testing.T) {
	server := newTestServer(t, nil)

	first := decodeTurn(t, postJSON(t, server, "/threads", TurnRequest{Message: "one"}))
	fromID := first.Checkpoints[len(first.Checkpoints)-1]

	branched := decodeTurn(t, postJSON(t, server,
		fmt.Sprintf("/threads/%s/branch", first.ThreadID),
		BranchRequest{CheckpointID: fromID, Message: "alternate"}))
	require.NotEmpty(t, branched.ThreadID)
	require.NotEqual(t, first.ThreadID, branched.ThreadID)
	require.Equal(t, "you said: alternate", branched.Reply)

	rec := postJSON(t, server,
		fmt.Sprintf("/threads/%s/branch", first.ThreadID),
		BranchRequest{Message: "missing checkpoint id"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteThread(t *testing.T) {
	server := newTestServer(t, nil)

	resp := decodeTurn(t, postJSON(t, server, "/threads", TurnRequest{Message: "one"}))

	req := httptest.NewRequest(http.MethodDelete, "/threads/"+resp.ThreadID, nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	histRec := httptest.NewRecorder()
	server.ServeHTTP(histRec, httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/threads/%s/history", resp.ThreadID), nil))
	var body struct {
		History []forkline.HistoryEntry `json:"history"`
	}
	require.NoError(t, json.Unmarshal(histRec.Body.Bytes(), &body))
	require.Empty(t, body.History)
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	server := newTestServer(t, registry)

	decodeTurn(t, postJSON(t, server, "/threads", TurnRequest{Message: "one"}))

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `forkline_turns_total{outcome="ok"} 1`)
}
