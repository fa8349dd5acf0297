// internal/domain/models/task.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Task is either personal (TeamID nil) or scoped to a team.
//
// NOTE:
//   - AssigneeID is only meaningful for team tasks and must reference a
//     member of TeamID.
//   - DueAt is stored in UTC; rendering converts to the reader's offset.
type Task struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OwnerID    primitive.ObjectID  `bson:"owner_id" json:"owner_id"`
	TeamID     *primitive.ObjectID `bson:"team_id,omitempty" json:"team_id,omitempty"`
	AssigneeID *primitive.ObjectID `bson:"assignee_id,omitempty" json:"assignee_id,omitempty"`
	Title      string              `bson:"title" json:"title"`
	DueAt      *time.Time          `bson:"due_at,omitempty" json:"due_at,omitempty"`
	Done       bool                `bson:"done" json:"done"`
	DoneAt     *time.Time          `bson:"done_at,omitempty" json:"done_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsTeam reports whether the task belongs to a team.
func (t Task) IsTeam() bool {
	return t.TeamID != nil
}
