package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helpdeskhq/insight/internal/common"
	"github.com/helpdeskhq/insight/internal/freshness"
	"github.com/helpdeskhq/insight/internal/llm"
	"github.com/helpdeskhq/insight/internal/store"
	"github.com/helpdeskhq/insight/internal/vector"
)

const embedBatchSize = 64

// SyncResult describes a SyncAll run. Skipped is true when the freshness
// tracker decided no work was needed.
type SyncResult struct {
	RunID    string `json:"run_id"`
	Skipped  bool   `json:"skipped"`
	Tickets  int    `json:"tickets"`
	Comments int    `json:"comments"`
}

// Syncer keeps the vector index consistent with the source-of-record.
// Concurrent SyncAll calls share a single in-flight run instead of racing on
// the freshness state.
type Syncer struct {
	dir      Directory
	index    vector.Index
	provider llm.Provider
	tracker  *freshness.Tracker

	group flightGroup
}

func NewSyncer(dir Directory, index vector.Index, provider llm.Provider, tracker *freshness.Tracker) *Syncer {
	return &Syncer{dir: dir, index: index, provider: provider, tracker: tracker}
}

// SyncAll reconciles the vector index with the source-of-record. It is a
// no-op when the tracker reports the index fresh. Any failure aborts the run
// without marking the tracker, so the next invocation retries in full.
func (s *Syncer) SyncAll(ctx context.Context) (SyncResult, error) {
	return s.group.do(ctx, s.syncAll)
}

func (s *Syncer) syncAll(ctx context.Context) (SyncResult, error) {
	logger := common.Logger()
	latest, err := s.dir.LatestMutation(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("read latest mutation: %w", err)
	}
	if !s.tracker.ShouldSync(latest) {
		logger.Debug("sync: index fresh, skipping", "last_sync", s.tracker.LastSync())
		return SyncResult{Skipped: true}, nil
	}

	runID := uuid.NewString()
	start := time.Now()
	tickets, err := s.dir.ListTickets(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list tickets: %w", err)
	}

	docs := make([]vector.Document, 0, len(tickets)*2)
	comments := 0
	for _, ticket := range tickets {
		docs = append(docs, ticketDocument(ticket))
		for _, comment := range ticket.Comments {
			docs = append(docs, commentDocument(comment))
			comments++
		}
	}
	logger.Info("sync: starting full sync", "run_id", runID, "tickets", len(tickets), "comments", comments)

	for offset := 0; offset < len(docs); offset += embedBatchSize {
		end := offset + embedBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[offset:end]
		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.Text
		}
		vectors, err := s.provider.Embed(ctx, texts)
		if err != nil {
			return SyncResult{}, fmt.Errorf("embed documents: %w", err)
		}
		if len(vectors) != len(batch) {
			return SyncResult{}, fmt.Errorf("embed documents: got %d vectors for %d inputs", len(vectors), len(batch))
		}
		for i := range batch {
			batch[i].Vector = vectors[i]
		}
		if err := s.index.Upsert(ctx, batch); err != nil {
			return SyncResult{}, fmt.Errorf("upsert documents: %w", err)
		}
	}

	s.tracker.MarkSynced()
	logger.Info("sync: completed", "run_id", runID, "documents", len(docs), "duration", time.Since(start))
	return SyncResult{RunID: runID, Tickets: len(tickets), Comments: comments}, nil
}

// ticketDocument builds the embeddable summary and scalar metadata for a
// ticket. Absent optional fields become empty strings; the index rejects
// null metadata values.
func ticketDocument(t store.Ticket) vector.Document {
	assignee := t.Assignee()
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %s: %s\n", t.ID, t.Subject)
	fmt.Fprintf(&b, "Description: %s\n", t.Description)
	fmt.Fprintf(&b, "Status: %s\n", t.Status)
	fmt.Fprintf(&b, "Priority: %s\n", t.Priority)
	fmt.Fprintf(&b, "Created: %s\n", t.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Updated: %s\n", t.UpdatedAt.Format(time.RFC3339))
	switch assignee.Kind {
	case store.AssigneeUser:
		fmt.Fprintf(&b, "Assigned to user %s", assignee.ID)
	case store.AssigneeTeam:
		fmt.Fprintf(&b, "Assigned to team %s", assignee.ID)
	default:
		b.WriteString("Unassigned")
	}
	return vector.Document{
		ID:   fmt.Sprintf("ticket-%s", t.ID),
		Text: b.String(),
		Metadata: map[string]interface{}{
			"type":          "ticket",
			"id":            t.ID,
			"subject":       t.Subject,
			"description":   t.Description,
			"status":        t.Status,
			"priority":      t.Priority,
			"created_at":    t.CreatedAt.Format(time.RFC3339),
			"updated_at":    t.UpdatedAt.Format(time.RFC3339),
			"assignee_type": string(assignee.Kind),
			"assigned_to":   assignee.ID,
		},
	}
}

func commentDocument(c store.Comment) vector.Document {
	text := fmt.Sprintf("Comment on ticket %s (%s): %s", c.TicketID, c.CreatedAt.Format(time.RFC3339), c.Content)
	return vector.Document{
		ID:   fmt.Sprintf("comment-%s", c.ID),
		Text: text,
		Metadata: map[string]interface{}{
			"type":       "comment",
			"id":         c.ID,
			"ticket_id":  c.TicketID,
			"content":    c.Content,
			"author_id":  c.AuthorID,
			"created_at": c.CreatedAt.Format(time.RFC3339),
		},
	}
}
