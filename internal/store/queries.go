package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ListTickets returns every ticket with its comments attached, ordered by
// creation time. This is the full read the sync engine consumes.
func (s *Store) ListTickets(ctx context.Context) ([]Ticket, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("ticket store not initialised")
	}
	tickets := []Ticket{}
	if err := s.db.SelectContext(ctx, &tickets, `SELECT id, subject, description, status, priority, assignee_type, assigned_to, created_at, updated_at FROM tickets ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("select tickets: %w", err)
	}
	if len(tickets) == 0 {
		return tickets, nil
	}
	comments := []Comment{}
	if err := s.db.SelectContext(ctx, &comments, `SELECT id, ticket_id, content, author_id, created_at FROM comments ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("select comments: %w", err)
	}
	byTicket := make(map[string][]Comment, len(tickets))
	for _, comment := range comments {
		byTicket[comment.TicketID] = append(byTicket[comment.TicketID], comment)
	}
	for i := range tickets {
		tickets[i].Comments = byTicket[tickets[i].ID]
	}
	return tickets, nil
}

// LatestMutation returns the most recent updated_at across the ticket table.
// The zero time is returned when no tickets exist.
func (s *Store) LatestMutation(ctx context.Context) (time.Time, error) {
	if s == nil || s.db == nil {
		return time.Time{}, fmt.Errorf("ticket store not initialised")
	}
	// Selecting the column directly keeps its DATETIME declared type; an
	// aggregate expression would come back as an untyped string.
	var latest time.Time
	err := s.db.GetContext(ctx, &latest, `SELECT updated_at FROM tickets ORDER BY updated_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("select latest mutation: %w", err)
	}
	return latest, nil
}

// FindTeamByName resolves a team by case-insensitive substring match on its
// name, returning the first match or nil when nothing matches.
func (s *Store) FindTeamByName(ctx context.Context, name string) (*Team, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("ticket store not initialised")
	}
	var team Team
	err := s.db.GetContext(ctx, &team, `SELECT id, name FROM teams WHERE LOWER(name) LIKE '%' || LOWER(?) || '%' ORDER BY name LIMIT 1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select team by name: %w", err)
	}
	return &team, nil
}

// TeamMemberIDs returns the user ids belonging to a team.
func (s *Store) TeamMemberIDs(ctx context.Context, teamID string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("ticket store not initialised")
	}
	ids := []string{}
	if err := s.db.SelectContext(ctx, &ids, `SELECT user_id FROM team_members WHERE team_id = ? ORDER BY user_id`, teamID); err != nil {
		return nil, fmt.Errorf("select team members: %w", err)
	}
	return ids, nil
}

// FindUserByName resolves a user by case-insensitive substring match on the
// full name, returning the first match or nil when nothing matches.
func (s *Store) FindUserByName(ctx context.Context, name string) (*User, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("ticket store not initialised")
	}
	var user User
	err := s.db.GetContext(ctx, &user, `SELECT id, full_name FROM users WHERE LOWER(full_name) LIKE '%' || LOWER(?) || '%' ORDER BY full_name LIMIT 1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user by name: %w", err)
	}
	return &user, nil
}

// GetUserByID fetches a single user, returning nil when the id is unknown.
func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("ticket store not initialised")
	}
	var user User
	err := s.db.GetContext(ctx, &user, `SELECT id, full_name FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user by id: %w", err)
	}
	return &user, nil
}
