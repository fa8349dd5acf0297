// internal/domain/models/team.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Team groups users who share tasks. JoinToken is an opaque, unique token
// that lets a user enroll themselves.
//
// OwnerID is the explicit owner. Teams created before the field existed have
// it unset; for those the earliest member by JoinedAt is treated as owner.
type Team struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name      string              `bson:"name" json:"name"`
	NameCI    string              `bson:"name_ci" json:"-"`
	JoinToken string              `bson:"join_token" json:"join_token,omitempty"`
	OwnerID   *primitive.ObjectID `bson:"owner_id,omitempty" json:"owner_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// TeamMembership is one row of the team <-> user join.
type TeamMembership struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TeamID   primitive.ObjectID `bson:"team_id" json:"team_id"`
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	JoinedAt time.Time          `bson:"joined_at" json:"joined_at"`
}
