package store

import (
	"strings"
	"time"
)

// AssigneeKind discriminates the assignment union on a ticket.
type AssigneeKind string

const (
	AssigneeNone AssigneeKind = "none"
	AssigneeUser AssigneeKind = "user"
	AssigneeTeam AssigneeKind = "team"
)

// Assignment is the typed form of the (assignee_type, assigned_to) column
// pair. Kind is AssigneeNone when the ticket is unassigned, in which case ID
// is empty.
type Assignment struct {
	Kind AssigneeKind
	ID   string
}

func (a Assignment) Assigned() bool {
	return a.Kind != AssigneeNone && a.ID != ""
}

// assignmentFromColumns converts the loosely typed column pair at the store
// boundary. Unknown kinds degrade to unassigned.
func assignmentFromColumns(kind, id string) Assignment {
	id = strings.TrimSpace(id)
	switch AssigneeKind(strings.ToLower(strings.TrimSpace(kind))) {
	case AssigneeUser:
		if id != "" {
			return Assignment{Kind: AssigneeUser, ID: id}
		}
	case AssigneeTeam:
		if id != "" {
			return Assignment{Kind: AssigneeTeam, ID: id}
		}
	}
	return Assignment{Kind: AssigneeNone}
}

// Ticket is a source-of-record ticket row with its comments attached.
type Ticket struct {
	ID          string    `db:"id"`
	Subject     string    `db:"subject"`
	Description string    `db:"description"`
	Status      string    `db:"status"`
	Priority    string    `db:"priority"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`

	AssigneeType string `db:"assignee_type"`
	AssignedTo   string `db:"assigned_to"`

	Comments []Comment `db:"-"`
}

// Assignee returns the ticket's assignment as a tagged union.
func (t Ticket) Assignee() Assignment {
	return assignmentFromColumns(t.AssigneeType, t.AssignedTo)
}

// Comment is a source-of-record ticket comment row.
type Comment struct {
	ID        string    `db:"id"`
	TicketID  string    `db:"ticket_id"`
	Content   string    `db:"content"`
	AuthorID  string    `db:"author_id"`
	CreatedAt time.Time `db:"created_at"`
}

// User is a people-directory row.
type User struct {
	ID       string `db:"id"`
	FullName string `db:"full_name"`
}

// Team is a team-directory row.
type Team struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}
