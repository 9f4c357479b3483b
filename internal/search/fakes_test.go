package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/helpdeskhq/insight/internal/llm"
	"github.com/helpdeskhq/insight/internal/store"
	"github.com/helpdeskhq/insight/internal/vector"
)

type fakeDirectory struct {
	mu      sync.Mutex
	tickets []store.Ticket
	latest  time.Time
	teams   []store.Team
	members map[string][]string
	users   []store.User

	listErr   error
	latestErr error
	teamErr   error
	userErr   error

	listCalls int
}

func (f *fakeDirectory) ListTickets(ctx context.Context) ([]store.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]store.Ticket(nil), f.tickets...), nil
}

func (f *fakeDirectory) LatestMutation(ctx context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latestErr != nil {
		return time.Time{}, f.latestErr
	}
	return f.latest, nil
}

func (f *fakeDirectory) FindTeamByName(ctx context.Context, name string) (*store.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.teamErr != nil {
		return nil, f.teamErr
	}
	for _, team := range f.teams {
		if strings.Contains(strings.ToLower(team.Name), strings.ToLower(name)) {
			t := team
			return &t, nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) TeamMemberIDs(ctx context.Context, teamID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.teamErr != nil {
		return nil, f.teamErr
	}
	return append([]string(nil), f.members[teamID]...), nil
}

func (f *fakeDirectory) FindUserByName(ctx context.Context, name string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userErr != nil {
		return nil, f.userErr
	}
	for _, user := range f.users {
		if strings.Contains(strings.ToLower(user.FullName), strings.ToLower(name)) {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userErr != nil {
		return nil, f.userErr
	}
	for _, user := range f.users {
		if user.ID == id {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

type fakeProvider struct {
	mu         sync.Mutex
	intentJSON string
	chatErr    error
	embedErr   error
	embedGate  chan struct{}
	embedCalls int
}

func (f *fakeProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return "", nil
}

func (f *fakeProvider) ChatJSON(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return f.intentJSON, nil
}

func (f *fakeProvider) Embed(ctx context.Context, input []string) ([][]float32, error) {
	f.mu.Lock()
	gate := f.embedGate
	f.embedCalls++
	err := f.embedErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(input))
	for i := range input {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (f *fakeProvider) Name() string { return "fake" }

type fakeIndex struct {
	mu         sync.Mutex
	docs       map[string]vector.Document
	upsertErr  error
	queryErr   error
	upsertRuns int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: make(map[string]vector.Document)}
}

func (f *fakeIndex) Available() bool { return true }

func (f *fakeIndex) EnsureCollection(ctx context.Context, dim int) error { return nil }

func (f *fakeIndex) Upsert(ctx context.Context, docs []vector.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upsertRuns++
	for _, doc := range docs {
		f.docs[doc.ID] = doc
	}
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, vec []float32, topK int) ([]vector.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	ids := make([]string, 0, len(f.docs))
	for id := range f.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	matches := make([]vector.Match, 0, len(ids))
	for _, id := range ids {
		if len(matches) >= topK {
			break
		}
		doc := f.docs[id]
		matches = append(matches, vector.Match{ID: id, Score: 1, Metadata: doc.Metadata})
	}
	return matches, nil
}

func (f *fakeIndex) document(id string) (vector.Document, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	return doc, ok
}

func (f *fakeIndex) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

// ticketCandidate builds a retrieved candidate the way the sync engine
// serializes ticket metadata.
func ticketCandidate(id, status, priority, assigneeType, assignedTo string, created, updated time.Time) Candidate {
	return Candidate{
		Score: 1,
		Metadata: map[string]interface{}{
			"type":          "ticket",
			"id":            id,
			"subject":       "Subject " + id,
			"description":   "",
			"status":        status,
			"priority":      priority,
			"assignee_type": assigneeType,
			"assigned_to":   assignedTo,
			"created_at":    created.Format(time.RFC3339),
			"updated_at":    updated.Format(time.RFC3339),
		},
	}
}
