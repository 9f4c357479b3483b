package search

import (
	"context"
	"time"

	"github.com/helpdeskhq/insight/internal/store"
)

// Directory is the read-only view of the source-of-record the engine
// consumes. *store.Store satisfies it; tests supply fakes.
type Directory interface {
	ListTickets(ctx context.Context) ([]store.Ticket, error)
	LatestMutation(ctx context.Context) (time.Time, error)
	FindTeamByName(ctx context.Context, name string) (*store.Team, error)
	TeamMemberIDs(ctx context.Context, teamID string) ([]string, error)
	FindUserByName(ctx context.Context, name string) (*store.User, error)
	GetUserByID(ctx context.Context, id string) (*store.User, error)
}

var _ Directory = (*store.Store)(nil)
