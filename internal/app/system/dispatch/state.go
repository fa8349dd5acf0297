package dispatch

import (
	"time"

	"github.com/dalemusser/focushub/internal/app/system/digest"
	"github.com/dalemusser/focushub/internal/domain/models"
)

// State is where a user stands in the digest cycle.
type State string

const (
	StateDisabled State = "disabled"
	StateWaiting  State = "waiting"
	StateEligible State = "eligible"
	StateSent     State = "sent"
)

// Evaluate returns the state of p at now. Evaluate never returns StateSent;
// that state only exists for the duration of a successful cycle.
func Evaluate(p models.NotificationPreference, now time.Time) State {
	if !p.Enabled {
		return StateDisabled
	}
	if !InWindow(p, now) {
		return StateWaiting
	}
	if p.LastSentAt != nil {
		interval := time.Duration(p.IntervalHours) * time.Hour
		if now.Sub(*p.LastSentAt) < interval {
			return StateWaiting
		}
	}
	return StateEligible
}

// InWindow reports whether the user's local hour at now lies in
// [StartHour, EndHour). A window with StartHour > EndHour wraps past
// midnight; equal bounds make the window empty.
func InWindow(p models.NotificationPreference, now time.Time) bool {
	h := now.In(digest.Zone(p.TZOffsetMinutes)).Hour()
	switch {
	case p.StartHour == p.EndHour:
		return false
	case p.StartHour < p.EndHour:
		return h >= p.StartHour && h < p.EndHour
	default:
		return h >= p.StartHour || h < p.EndHour
	}
}
