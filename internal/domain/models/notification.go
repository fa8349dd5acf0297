// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification preference defaults, applied when a user has no stored row.
const (
	DefaultIntervalHours = 4
	DefaultStartHour     = 9
	DefaultEndHour       = 21
)

// Allowed ranges for preference fields. Writers clamp into these ranges.
const (
	MinIntervalHours   = 1
	MaxIntervalHours   = 24
	MinHour            = 0
	MaxHour            = 23
	MaxTZOffsetMinutes = 14 * 60
)

// NotificationPreference drives the digest cycle for one user.
//
// LastSentAt is written only after a confirmed send. LeaseUntil is a short
// claim taken by a running cycle so overlapping cycles skip the user.
type NotificationPreference struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID          primitive.ObjectID `bson:"user_id" json:"user_id"`
	Enabled         bool               `bson:"enabled" json:"enabled"`
	IntervalHours   int                `bson:"interval_hours" json:"interval_hours"`
	StartHour       int                `bson:"start_hour" json:"start_hour"`
	EndHour         int                `bson:"end_hour" json:"end_hour"`
	TZOffsetMinutes int                `bson:"tz_offset_minutes" json:"tz_offset_minutes"`
	LastSentAt      *time.Time         `bson:"last_sent_at" json:"last_sent_at"`
	LeaseUntil      *time.Time         `bson:"lease_until,omitempty" json:"-"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

// DefaultNotificationPreference returns the preference used for users
// who never saved one.
func DefaultNotificationPreference(userID primitive.ObjectID) NotificationPreference {
	return NotificationPreference{
		UserID:        userID,
		Enabled:       false,
		IntervalHours: DefaultIntervalHours,
		StartHour:     DefaultStartHour,
		EndHour:       DefaultEndHour,
	}
}

// TaskNotificationState holds the one-shot alert flags for a task.
// Flags are never reset; the row is removed together with its task.
type TaskNotificationState struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	TaskID               primitive.ObjectID `bson:"task_id" json:"task_id"`
	SentDueWarning       bool               `bson:"sent_due_warning" json:"sent_due_warning"`
	SentDueWarningAt     *time.Time         `bson:"sent_due_warning_at,omitempty" json:"sent_due_warning_at,omitempty"`
	SentOverdue          bool               `bson:"sent_overdue" json:"sent_overdue"`
	SentOverdueAt        *time.Time         `bson:"sent_overdue_at,omitempty" json:"sent_overdue_at,omitempty"`
	DueWarningLeaseUntil *time.Time         `bson:"due_warning_lease_until,omitempty" json:"-"`
	OverdueLeaseUntil    *time.Time         `bson:"overdue_lease_until,omitempty" json:"-"`
	CreatedAt            time.Time          `bson:"created_at" json:"created_at"`
}

// Notification log kinds.
const (
	NotificationKindDigest   = "digest"
	NotificationKindReminder = "reminder"
)

// NotificationLog records one dispatch attempt. Rows are insert-only.
type NotificationLog struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID  `bson:"user_id" json:"user_id"`
	Kind        string              `bson:"kind" json:"kind"` // digest | reminder
	TaskID      *primitive.ObjectID `bson:"task_id,omitempty" json:"task_id,omitempty"`
	AttemptedAt time.Time           `bson:"attempted_at" json:"attempted_at"`
	Success     bool                `bson:"success" json:"success"`
	Error       string              `bson:"error,omitempty" json:"error,omitempty"`
}
