// Package deadlines sends the two one-shot alerts a task can produce: "due
// soon" when its due instant enters the warning window, and "overdue" once
// the due instant has passed.
//
// Each alert kind has a persisted flag per task. A task is claimed with a
// short lease before its recipients are contacted, and the flag is set once
// the alert was attempted, whether or not every recipient received it. Once
// a task's fan-out has started it runs to completion even if the cycle ends,
// each send bounded by timeouts.Short.
package deadlines

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dalemusser/focushub/internal/app/system/digest"
	"github.com/dalemusser/focushub/internal/app/system/messenger"
	"github.com/dalemusser/focushub/internal/app/system/timeouts"
	"github.com/dalemusser/focushub/internal/domain/models"
	"github.com/sourcegraph/conc/pool"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Kind identifies an alert.
type Kind string

const (
	KindDueSoon Kind = "due_warning"
	KindOverdue Kind = "overdue"
)

// DefaultWindow is how far ahead a due instant triggers the "due soon" alert.
const DefaultWindow = 15 * time.Minute

// DefaultBatch caps how many tasks of one kind a cycle handles.
const DefaultBatch = 500

// Candidates returns incomplete tasks whose flag for the kind is not yet set.
type Candidates interface {
	// DueSoon returns tasks due in [from, to].
	DueSoon(ctx context.Context, from, to time.Time, limit int) ([]models.Task, error)
	// Overdue returns tasks due strictly before before.
	Overdue(ctx context.Context, before time.Time, limit int) ([]models.Task, error)
}

// Flags persists the per-task alert flags.
type Flags interface {
	// Claim takes a lease on (task, kind) unless the flag is already set or
	// another lease is live.
	Claim(ctx context.Context, taskID primitive.ObjectID, kind Kind, now, until time.Time) (bool, error)
	// Mark sets the flag. Setting an already set flag is a no-op.
	Mark(ctx context.Context, taskID primitive.ObjectID, kind Kind, at time.Time) (bool, error)
	// Release drops the lease without setting the flag.
	Release(ctx context.Context, taskID primitive.ObjectID, kind Kind) error
}

// Teams resolves team names and members.
type Teams interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Team, error)
	MemberIDs(ctx context.Context, teamID primitive.ObjectID) ([]primitive.ObjectID, error)
}

// Users resolves internal ids to chat identities.
type Users interface {
	ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
}

// Offsets returns each user's timezone offset in minutes. Missing users
// default to UTC.
type Offsets interface {
	TZOffsets(ctx context.Context, userIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error)
}

// Log appends dispatch attempts.
type Log interface {
	Append(ctx context.Context, entry models.NotificationLog) error
}

// Result summarizes one cycle.
type Result struct {
	Considered       int `json:"considered"`
	Alerted          int `json:"alerted"`
	Skipped          int `json:"skipped"`
	Failed           int `json:"failed"`
	Deliveries       int `json:"deliveries"`
	DeliveryFailures int `json:"delivery_failures"`
}

// Notifier runs deadline cycles.
type Notifier struct {
	Candidates Candidates
	Flags      Flags
	Teams      Teams
	Users      Users
	Offsets    Offsets
	Sender     messenger.Sender
	Log        Log
	Logger     *zap.Logger

	Window               time.Duration
	Batch                int
	Concurrency          int
	RecipientConcurrency int
	Lease                time.Duration
	Now                  func() time.Time
}

// Run handles due-soon alerts, then overdue alerts. Per-task failures are
// counted, never returned; the error reports a candidate query failure.
func (n *Notifier) Run(ctx context.Context) (Result, error) {
	var res Result
	now := n.now()

	due, err := n.Candidates.DueSoon(ctx, now, now.Add(n.window()), n.batch())
	if err != nil {
		return res, fmt.Errorf("due soon candidates: %w", err)
	}
	n.runKind(ctx, KindDueSoon, due, now, &res)

	over, err := n.Candidates.Overdue(ctx, now, n.batch())
	if err != nil {
		return res, fmt.Errorf("overdue candidates: %w", err)
	}
	n.runKind(ctx, KindOverdue, over, now, &res)

	n.Logger.Info("deadline cycle finished",
		zap.Int("considered", res.Considered),
		zap.Int("alerted", res.Alerted),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Int("deliveries", res.Deliveries),
		zap.Int("delivery_failures", res.DeliveryFailures))
	return res, nil
}

func (n *Notifier) runKind(ctx context.Context, kind Kind, tasks []models.Task, now time.Time, res *Result) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(n.concurrency())

	for _, t := range tasks {
		res.Considered++
		if ctx.Err() != nil {
			res.Skipped++
			continue
		}
		t := t
		g.Go(func() error {
			out := n.alert(ctx, kind, t, now)
			mu.Lock()
			defer mu.Unlock()
			res.Deliveries += out.delivered
			res.DeliveryFailures += out.failed
			switch {
			case out.err != nil:
				res.Failed++
			case !out.claimed:
				res.Skipped++
			default:
				res.Alerted++
			}
			return nil
		})
	}
	_ = g.Wait()
}

type outcome struct {
	claimed   bool
	delivered int
	failed    int
	err       error
}

func (n *Notifier) alert(ctx context.Context, kind Kind, t models.Task, now time.Time) outcome {
	log := n.Logger.With(zap.String("task_id", t.ID.Hex()), zap.String("kind", string(kind)))

	claimed, err := n.Flags.Claim(ctx, t.ID, kind, now, now.Add(n.lease()))
	if err != nil {
		log.Error("deadline claim failed", zap.Error(err))
		return outcome{err: err}
	}
	if !claimed {
		return outcome{}
	}

	bg := context.WithoutCancel(ctx)

	recipients, teamName, err := n.resolve(ctx, t)
	if err != nil {
		log.Error("deadline recipients failed", zap.Error(err))
		n.release(bg, t.ID, kind, log)
		return outcome{claimed: true, err: err}
	}

	var delivered, failed int64
	p := pool.New().WithMaxGoroutines(n.recipientConcurrency())
	for _, r := range recipients {
		r := r
		p.Go(func() {
			text := Message(kind, t, teamName, now, r.offset)
			sctx, cancel := context.WithTimeout(bg, timeouts.Short())
			sendErr := n.Sender.Send(sctx, r.user.TelegramID, text)
			cancel()

			taskID := t.ID
			entry := models.NotificationLog{
				UserID:      r.user.ID,
				Kind:        models.NotificationKindReminder,
				TaskID:      &taskID,
				AttemptedAt: n.now(),
				Success:     sendErr == nil,
			}
			if sendErr != nil {
				entry.Error = sendErr.Error()
				atomic.AddInt64(&failed, 1)
				log.Warn("deadline alert send failed",
					zap.String("user_id", r.user.ID.Hex()), zap.Error(sendErr))
			} else {
				atomic.AddInt64(&delivered, 1)
			}
			n.appendLog(bg, entry, log)
		})
	}
	p.Wait()

	mctx, cancel := context.WithTimeout(bg, timeouts.Short())
	defer cancel()
	if _, err := n.Flags.Mark(mctx, t.ID, kind, n.now()); err != nil {
		log.Error("deadline flag write failed", zap.Error(err))
	}

	return outcome{claimed: true, delivered: int(delivered), failed: int(failed)}
}

type recipient struct {
	user   models.User
	offset int
}

func (n *Notifier) resolve(ctx context.Context, t models.Task) ([]recipient, string, error) {
	var members []primitive.ObjectID
	var teamName string
	if t.TeamID != nil {
		team, err := n.Teams.GetByID(ctx, *t.TeamID)
		if err != nil {
			return nil, "", fmt.Errorf("team: %w", err)
		}
		teamName = team.Name
		if t.AssigneeID == nil {
			if members, err = n.Teams.MemberIDs(ctx, *t.TeamID); err != nil {
				return nil, "", fmt.Errorf("team members: %w", err)
			}
		}
	}

	ids := Recipients(t, members)
	users, err := n.Users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, "", fmt.Errorf("users: %w", err)
	}
	offsets, err := n.Offsets.TZOffsets(ctx, ids)
	if err != nil {
		return nil, "", fmt.Errorf("offsets: %w", err)
	}

	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]recipient, 0, len(ids))
	for _, id := range ids {
		u, ok := byID[id]
		if !ok || u.TelegramID == 0 {
			continue
		}
		out = append(out, recipient{user: u, offset: offsets[id]})
	}
	return out, teamName, nil
}

// Recipients returns who receives an alert for t: the owner plus the
// assignee when one is set, otherwise the owner plus every member of the
// task's team. Ids are deduplicated, owner first.
func Recipients(t models.Task, teamMembers []primitive.ObjectID) []primitive.ObjectID {
	ids := []primitive.ObjectID{t.OwnerID}
	switch {
	case t.AssigneeID != nil:
		ids = append(ids, *t.AssigneeID)
	case t.TeamID != nil:
		ids = append(ids, teamMembers...)
	}

	seen := make(map[primitive.ObjectID]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if id.IsZero() || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Message renders the alert text in the recipient's offset.
func Message(kind Kind, t models.Task, teamName string, now time.Time, offsetMinutes int) string {
	title := digest.Escape(t.Title)
	var due string
	if t.DueAt != nil {
		due = digest.FormatDue(*t.DueAt, now, offsetMinutes)
		if kind == KindOverdue {
			due = digest.FormatDate(*t.DueAt, offsetMinutes)
		}
	}

	var text string
	if kind == KindDueSoon {
		text = fmt.Sprintf("⏰ <b>Due soon:</b> %s (%s)", title, due)
	} else {
		text = fmt.Sprintf("⚠️ <b>Overdue:</b> %s (was due by %s)", title, due)
	}
	if teamName != "" {
		text += fmt.Sprintf(" [%s]", digest.Escape(teamName))
	}
	return text
}

func (n *Notifier) release(ctx context.Context, taskID primitive.ObjectID, kind Kind, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()
	if err := n.Flags.Release(ctx, taskID, kind); err != nil {
		log.Error("deadline lease release failed", zap.Error(err))
	}
}

func (n *Notifier) appendLog(ctx context.Context, entry models.NotificationLog, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()
	if err := n.Log.Append(ctx, entry); err != nil {
		log.Error("notification log append failed", zap.Error(err))
	}
}

func (n *Notifier) now() time.Time {
	if n.Now != nil {
		return n.Now().UTC()
	}
	return time.Now().UTC()
}

func (n *Notifier) window() time.Duration {
	if n.Window > 0 {
		return n.Window
	}
	return DefaultWindow
}

func (n *Notifier) batch() int {
	if n.Batch > 0 {
		return n.Batch
	}
	return DefaultBatch
}

func (n *Notifier) concurrency() int {
	if n.Concurrency > 0 {
		return n.Concurrency
	}
	return 8
}

func (n *Notifier) recipientConcurrency() int {
	if n.RecipientConcurrency > 0 {
		return n.RecipientConcurrency
	}
	return 4
}

func (n *Notifier) lease() time.Duration {
	if n.Lease > 0 {
		return n.Lease
	}
	return 2 * time.Minute
}
