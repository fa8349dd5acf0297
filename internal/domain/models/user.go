// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a chat-platform account known to FocusHub.
//
// TelegramID is the platform-assigned identity and is unique across users.
// ID is the internal identity referenced by every other collection; it never
// changes once the user has been created.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TelegramID   int64              `bson:"telegram_id" json:"telegram_id"`
	Username     string             `bson:"username,omitempty" json:"username,omitempty"`
	FirstName    string             `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName     string             `bson:"last_name,omitempty" json:"last_name,omitempty"`
	LanguageCode string             `bson:"language_code,omitempty" json:"language_code,omitempty"`

	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	LastSeenAt time.Time `bson:"last_seen_at" json:"last_seen_at"`
}

// DisplayName returns the handle if present, otherwise the first name.
func (u User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "user"
}
