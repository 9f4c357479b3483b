package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeChroma implements just enough of the ChromaDB HTTP surface for the
// client tests.
type fakeChroma struct {
	mu sync.Mutex

	heartbeatFails int
	heartbeats     int
	upsertMissing  bool

	collections map[string]string // name -> id
	lastUpsert  map[string]interface{}
	addCalls    int
	upsertCalls int

	queryResponse map[string]interface{}
}

func newFakeChroma() *fakeChroma {
	return &fakeChroma{collections: make(map[string]string)}
}

func (f *fakeChroma) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.heartbeats++
		fail := f.heartbeats <= f.heartbeatFails
		f.mu.Unlock()
		if fail {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			type col struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			}
			out := struct {
				Collections []col `json:"collections"`
			}{}
			for name, id := range f.collections {
				out.Collections = append(out.Collections, col{ID: id, Name: name})
			}
			json.NewEncoder(w).Encode(out)
		case http.MethodPost:
			var body struct {
				Name string `json:"name"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if _, exists := f.collections[body.Name]; exists {
				http.Error(w, "exists", http.StatusConflict)
				return
			}
			id := "col-" + body.Name
			f.collections[body.Name] = id
			json.NewEncoder(w).Encode(map[string]string{"id": id})
		default:
			http.Error(w, "method", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/collections/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case strings.HasSuffix(r.URL.Path, "/upsert"):
			f.upsertCalls++
			if f.upsertMissing {
				http.Error(w, "unknown route", http.StatusNotFound)
				return
			}
			var payload map[string]interface{}
			json.NewDecoder(r.Body).Decode(&payload)
			f.lastUpsert = payload
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/add"):
			f.addCalls++
			var payload map[string]interface{}
			json.NewDecoder(r.Body).Decode(&payload)
			f.lastUpsert = payload
			w.WriteHeader(http.StatusCreated)
		case strings.HasSuffix(r.URL.Path, "/query"):
			if f.queryResponse == nil {
				http.Error(w, "no fixture", http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(f.queryResponse)
		default:
			http.Error(w, "unknown route", http.StatusNotFound)
		}
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeChroma) *Client {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	parsed, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	cfg := Config{
		Host:       parsed.Hostname(),
		Port:       parsed.Port(),
		Scheme:     "http",
		Collection: "tickets_test",
		Timeout:    2 * time.Second,
	}
	cfg.applyDefaults()

	client, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewCreatesCollection(t *testing.T) {
	fake := newFakeChroma()
	client := newTestClient(t, fake)

	if !client.Available() {
		t.Fatal("client should be available after construction")
	}
	fake.mu.Lock()
	_, created := fake.collections["tickets_test"]
	fake.mu.Unlock()
	if !created {
		t.Fatal("expected the collection to be created")
	}
}

func TestNewRetriesHeartbeat(t *testing.T) {
	fake := newFakeChroma()
	fake.heartbeatFails = 2
	client := newTestClient(t, fake)

	if !client.Available() {
		t.Fatal("client should recover within the retry budget")
	}
}

func TestClientRecoversOnNextCall(t *testing.T) {
	fake := newFakeChroma()
	fake.heartbeatFails = 3
	client := newTestClient(t, fake)

	if client.Available() {
		t.Fatal("client should start unavailable when the store is down")
	}

	// The store comes back; the next public call retries readiness.
	err := client.Upsert(context.Background(), []Document{{
		ID:     "ticket-1",
		Text:   "t",
		Vector: []float32{1},
	}})
	if err != nil {
		t.Fatalf("Upsert after recovery returned error: %v", err)
	}
	if !client.Available() {
		t.Fatal("client should be available after a successful call")
	}
}

func TestUpsertFlattensMetadata(t *testing.T) {
	fake := newFakeChroma()
	client := newTestClient(t, fake)

	err := client.Upsert(context.Background(), []Document{{
		ID:     "ticket-1",
		Text:   "summary",
		Vector: []float32{0.1, 0.2},
		Metadata: map[string]interface{}{
			"subject":     "hello",
			"assigned_to": nil,
			"labels":      []string{"a", "b"},
			"priority":    "high",
		},
	}})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	fake.mu.Lock()
	payload := fake.lastUpsert
	fake.mu.Unlock()
	metadatas, ok := payload["metadatas"].([]interface{})
	if !ok || len(metadatas) != 1 {
		t.Fatalf("unexpected metadatas payload: %v", payload["metadatas"])
	}
	metadata := metadatas[0].(map[string]interface{})
	if metadata["assigned_to"] != "" {
		t.Fatalf("nil metadata should flatten to empty string, got %v", metadata["assigned_to"])
	}
	if metadata["labels"] != "[a b]" {
		t.Fatalf("non-scalar metadata should flatten to a string, got %v", metadata["labels"])
	}
	if metadata["subject"] != "hello" || metadata["priority"] != "high" {
		t.Fatalf("scalar metadata should pass through: %v", metadata)
	}
}

func TestUpsertFallsBackToAdd(t *testing.T) {
	fake := newFakeChroma()
	fake.upsertMissing = true
	client := newTestClient(t, fake)

	err := client.Upsert(context.Background(), []Document{{
		ID:     "ticket-1",
		Text:   "t",
		Vector: []float32{1},
	}})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.addCalls != 1 {
		t.Fatalf("expected one add fallback call, got %d", fake.addCalls)
	}
}

func TestQueryMapsDistancesToScores(t *testing.T) {
	fake := newFakeChroma()
	fake.queryResponse = map[string]interface{}{
		"ids":       [][]string{{"ticket-1", "comment-2"}},
		"distances": [][]float64{{0.0, 1.0}},
		"metadatas": [][]map[string]interface{}{{
			{"type": "ticket", "id": "1"},
			{"type": "comment", "id": "2"},
		}},
		"documents": [][]string{{"a", "b"}},
	}
	client := newTestClient(t, fake)

	matches, err := client.Query(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "ticket-1" || matches[0].Score != 1 {
		t.Fatalf("unexpected first match: %+v", matches[0])
	}
	if matches[1].Score != 0.5 {
		t.Fatalf("expected score 0.5 for distance 1, got %v", matches[1].Score)
	}
	if matches[0].Metadata["type"] != "ticket" {
		t.Fatalf("metadata not mapped: %+v", matches[0].Metadata)
	}
}
