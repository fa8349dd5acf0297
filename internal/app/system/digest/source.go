package digest

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Scope selects personal or team tasks.
type Scope string

const (
	ScopePersonal Scope = "personal"
	ScopeTeam     Scope = "team"
)

// Filter selects which incomplete tasks a query returns.
type Filter string

const (
	// FilterDueWindow returns tasks due inside [From, To] plus tasks with no due instant.
	FilterDueWindow Filter = "due_window"
	// FilterOverdue returns tasks due strictly before Before.
	FilterOverdue Filter = "overdue"
	// FilterAny returns every incomplete task in scope.
	FilterAny Filter = "any"
)

// Query describes one task read. Only incomplete tasks are ever returned.
//
// For ScopeTeam the result holds tasks of every team the user belongs to
// that are unassigned or assigned to the user.
type Query struct {
	UserID primitive.ObjectID
	Scope  Scope
	Filter Filter
	From   time.Time
	To     time.Time
	Before time.Time
}

// Item is a task as the digest sees it.
type Item struct {
	TaskID    primitive.ObjectID
	Title     string
	DueAt     *time.Time
	CreatedAt time.Time
	TeamName  string // empty for personal tasks
	Assigned  bool   // explicitly assigned to the reader
}

// Source is the read-only storage view the builder needs.
type Source interface {
	// LatestFocus returns the newest focus text, or ok=false when none exists.
	LatestFocus(ctx context.Context, userID primitive.ObjectID) (text string, ok bool, err error)
	QueryTasks(ctx context.Context, q Query) ([]Item, error)
}

// Matches reports whether it satisfies q's filter, ignoring ownership and
// scope. Sources that filter in memory use it to stay consistent with the
// database queries.
func (q Query) Matches(it Item) bool {
	switch q.Filter {
	case FilterDueWindow:
		if it.DueAt == nil {
			return true
		}
		return !it.DueAt.Before(q.From) && !it.DueAt.After(q.To)
	case FilterOverdue:
		return it.DueAt != nil && it.DueAt.Before(q.Before)
	default:
		return true
	}
}
