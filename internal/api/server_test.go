package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/helpdeskhq/insight/internal/freshness"
	"github.com/helpdeskhq/insight/internal/llm/providers"
	"github.com/helpdeskhq/insight/internal/search"
	"github.com/helpdeskhq/insight/internal/store"
	"github.com/helpdeskhq/insight/internal/vector"
)

type stubDirectory struct{}

func (stubDirectory) ListTickets(ctx context.Context) ([]store.Ticket, error) { return nil, nil }
func (stubDirectory) LatestMutation(ctx context.Context) (time.Time, error) {
	return time.Time{}, nil
}
func (stubDirectory) FindTeamByName(ctx context.Context, name string) (*store.Team, error) {
	return nil, nil
}
func (stubDirectory) TeamMemberIDs(ctx context.Context, teamID string) ([]string, error) {
	return nil, nil
}
func (stubDirectory) FindUserByName(ctx context.Context, name string) (*store.User, error) {
	return nil, nil
}
func (stubDirectory) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	return nil, nil
}

type stubIndex struct{}

func (stubIndex) Available() bool                                  { return true }
func (stubIndex) EnsureCollection(ctx context.Context, dim int) error { return nil }
func (stubIndex) Upsert(ctx context.Context, docs []vector.Document) error { return nil }
func (stubIndex) Query(ctx context.Context, vec []float32, topK int) ([]vector.Match, error) {
	return nil, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	provider := providers.NewLocalProvider()
	dir := stubDirectory{}
	index := stubIndex{}
	syncer := search.NewSyncer(dir, index, provider, freshness.NewTracker())
	engine := search.NewEngine(
		search.NewAnalyzer(provider),
		search.NewRetriever(provider, index),
		syncer,
		search.NewProcessor(dir),
	)
	srv, err := NewServer(engine, syncer)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestAskRejectsBadBody(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader("{not json")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"   "}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] != "question required" {
		t.Fatalf("unexpected error: %q", body["error"])
	}
}

func TestAskReturnsAnswer(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"open tickets","user_id":"u1"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp search.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Text == "" {
		t.Fatal("expected an answer text")
	}
	if resp.Text == search.FallbackText {
		t.Fatalf("healthy stack should not fall back: %q", resp.Text)
	}
}

func TestSyncEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sync", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var first search.SyncResult
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode sync result: %v", err)
	}
	if first.Skipped {
		t.Fatal("first sync should run")
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sync", nil))
	var second search.SyncResult
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode sync result: %v", err)
	}
	if !second.Skipped {
		t.Fatal("immediate second sync should be skipped")
	}
}

func TestLogsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/logs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Entries []map[string]interface{} `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
}
