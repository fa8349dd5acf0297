// Package dispatch runs the digest cycle: it finds users whose preference
// makes them eligible, builds their digest, sends it and records the outcome.
//
// A cycle admits at most one digest per user per interval. last_sent_at is
// written only after the transport accepted the message, so a failed or
// cancelled cycle can be re-run. A crash between the send and the write can
// still repeat a digest on the next cycle.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/focushub/internal/app/system/messenger"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
	"github.com/dalemusser/focushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Preferences is the preference storage the engine needs.
type Preferences interface {
	ListEnabled(ctx context.Context) ([]models.NotificationPreference, error)
	// Claim takes a lease on the user if last_sent_at still equals observed
	// and no unexpired lease exists. It reports whether the lease was taken.
	Claim(ctx context.Context, userID primitive.ObjectID, observed *time.Time, now, until time.Time) (bool, error)
	// Release drops the lease without touching last_sent_at.
	Release(ctx context.Context, userID primitive.ObjectID) error
	// MarkSent sets last_sent_at to at if it still equals observed, and
	// drops the lease.
	MarkSent(ctx context.Context, userID primitive.ObjectID, observed *time.Time, at time.Time) (bool, error)
}

// Users resolves internal ids to chat identities.
type Users interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Builder renders a digest.
type Builder interface {
	Build(ctx context.Context, userID primitive.ObjectID, now time.Time, tzOffsetMinutes int) (string, error)
}

// Log appends dispatch attempts.
type Log interface {
	Append(ctx context.Context, entry models.NotificationLog) error
}

// Result summarizes one cycle.
type Result struct {
	Considered int `json:"considered"`
	Eligible   int `json:"eligible"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	Unclaimed  int `json:"unclaimed"`
}

// DefaultConcurrency bounds per-user work within a cycle.
const DefaultConcurrency = 8

// DefaultLease is how long a claim protects a user from overlapping cycles.
const DefaultLease = 2 * time.Minute

// Engine runs digest cycles.
type Engine struct {
	Prefs   Preferences
	Users   Users
	Builder Builder
	Sender  messenger.Sender
	Log     Log
	Logger  *zap.Logger

	Concurrency int
	Lease       time.Duration
	Now         func() time.Time
}

// Run executes one cycle. Per-user failures are counted, never returned.
// The only error is a failure to list preferences. When ctx ends the cycle
// stops claiming users and waits for in-flight ones.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	var res Result
	now := e.now()

	prefs, err := e.Prefs.ListEnabled(ctx)
	if err != nil {
		return res, err
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(e.concurrency())

	for _, p := range prefs {
		res.Considered++
		if Evaluate(p, now) != StateEligible {
			continue
		}
		res.Eligible++

		if ctx.Err() != nil {
			res.Unclaimed++
			continue
		}

		p := p
		g.Go(func() error {
			outcome := e.deliver(ctx, p, now)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case StateSent:
				res.Sent++
			case StateEligible:
				res.Failed++
			default:
				res.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	e.Logger.Info("digest cycle finished",
		zap.Int("considered", res.Considered),
		zap.Int("eligible", res.Eligible),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
		zap.Int("unclaimed", res.Unclaimed))
	return res, nil
}

// deliver handles one eligible user. It returns StateSent on success,
// StateEligible when the user must be retried next cycle, and StateWaiting
// when another cycle owns the user.
func (e *Engine) deliver(ctx context.Context, p models.NotificationPreference, now time.Time) State {
	log := e.Logger.With(zap.String("user_id", p.UserID.Hex()))

	if ctx.Err() != nil {
		return StateWaiting
	}
	claimed, err := e.Prefs.Claim(ctx, p.UserID, p.LastSentAt, now, now.Add(e.lease()))
	if err != nil {
		log.Error("digest claim failed", zap.Error(err))
		return StateEligible
	}
	if !claimed {
		return StateWaiting
	}

	// Bookkeeping must survive the cycle deadline.
	bg := context.WithoutCancel(ctx)

	user, err := e.Users.GetByID(ctx, p.UserID)
	if err != nil {
		log.Error("digest user lookup failed", zap.Error(err))
		e.release(bg, p.UserID, log)
		return StateEligible
	}

	text, err := e.Builder.Build(ctx, p.UserID, now, p.TZOffsetMinutes)
	if err != nil {
		log.Error("digest build failed", zap.Error(err))
		e.release(bg, p.UserID, log)
		return StateEligible
	}

	sendErr := e.Sender.Send(ctx, user.TelegramID, text)

	entry := models.NotificationLog{
		UserID:      p.UserID,
		Kind:        models.NotificationKindDigest,
		AttemptedAt: e.now(),
		Success:     sendErr == nil,
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	e.appendLog(bg, entry, log)

	if sendErr != nil {
		log.Warn("digest send failed", zap.Error(sendErr))
		e.release(bg, p.UserID, log)
		return StateEligible
	}

	wctx, cancel := context.WithTimeout(bg, timeouts.Short())
	defer cancel()
	ok, err := e.Prefs.MarkSent(wctx, p.UserID, p.LastSentAt, now)
	if err != nil {
		log.Error("digest mark sent failed", zap.Error(err))
	} else if !ok {
		log.Warn("digest preference changed during send; last_sent_at not updated")
	}
	return StateSent
}

func (e *Engine) release(ctx context.Context, userID primitive.ObjectID, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()
	if err := e.Prefs.Release(ctx, userID); err != nil {
		log.Error("digest lease release failed", zap.Error(err))
	}
}

func (e *Engine) appendLog(ctx context.Context, entry models.NotificationLog, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()
	if err := e.Log.Append(ctx, entry); err != nil {
		log.Error("notification log append failed", zap.Error(err))
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *Engine) concurrency() int {
	if e.Concurrency > 0 {
		return e.Concurrency
	}
	return DefaultConcurrency
}

func (e *Engine) lease() time.Duration {
	if e.Lease > 0 {
		return e.Lease
	}
	return DefaultLease
}

// SendNow builds and sends the digest for one user immediately, outside the
// interval gate. The attempt is logged but last_sent_at is not touched.
func (e *Engine) SendNow(ctx context.Context, p models.NotificationPreference) error {
	user, err := e.Users.GetByID(ctx, p.UserID)
	if err != nil {
		return err
	}
	text, err := e.Builder.Build(ctx, p.UserID, e.now(), p.TZOffsetMinutes)
	if err != nil {
		return err
	}
	sendErr := e.Sender.Send(ctx, user.TelegramID, text)

	entry := models.NotificationLog{
		UserID:      p.UserID,
		Kind:        models.NotificationKindDigest,
		AttemptedAt: e.now(),
		Success:     sendErr == nil,
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	e.appendLog(context.WithoutCancel(ctx), entry, e.Logger)
	return sendErr
}
