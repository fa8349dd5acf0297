// Package digest builds the periodic summary of a user's focus, today's
// tasks and overdue tasks.
//
// Building is read-only. Given the same stored state, instant and offset the
// output is byte-identical.
package digest

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/focushub/internal/app/system/apperr"
	"github.com/dalemusser/focushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// List caps.
const (
	TodayLimit   = 10
	OverdueLimit = 12
)

// FocusNotSet is rendered when the user has no focus entry.
const FocusNotSet = "(not set)"

// Snapshot is everything a digest renders.
type Snapshot struct {
	Now           time.Time
	OffsetMinutes int
	Focus         string
	HasFocus      bool
	Personal      []Item // today, personal scope
	Team          []Item // today, team scope
	Overdue       []Item // both scopes
}

// Builder reads a Snapshot from a Source and renders it.
type Builder struct {
	src Source
}

// NewBuilder returns a Builder over src.
func NewBuilder(src Source) *Builder {
	return &Builder{src: src}
}

// Build returns the digest text for userID at now in the reader's offset.
func (b *Builder) Build(ctx context.Context, userID primitive.ObjectID, now time.Time, tzOffsetMinutes int) (string, error) {
	snap, err := b.Snapshot(ctx, userID, now, tzOffsetMinutes)
	if err != nil {
		return "", err
	}
	return Render(snap), nil
}

// Snapshot gathers the digest inputs without rendering them.
func (b *Builder) Snapshot(ctx context.Context, userID primitive.ObjectID, now time.Time, tzOffsetMinutes int) (Snapshot, error) {
	if userID.IsZero() {
		return Snapshot{}, fmt.Errorf("%w: digest requires a user", apperr.ErrValidation)
	}
	if tzOffsetMinutes < -models.MaxTZOffsetMinutes || tzOffsetMinutes > models.MaxTZOffsetMinutes {
		return Snapshot{}, fmt.Errorf("%w: offset %d out of range", apperr.ErrValidation, tzOffsetMinutes)
	}

	snap := Snapshot{Now: now, OffsetMinutes: tzOffsetMinutes}
	start, end := TodayWindow(now, tzOffsetMinutes)

	focus, ok, err := b.src.LatestFocus(ctx, userID)
	if err != nil {
		return Snapshot{}, apperr.Storage(fmt.Errorf("latest focus: %w", err))
	}
	snap.Focus, snap.HasFocus = focus, ok

	today := Query{UserID: userID, Filter: FilterDueWindow, From: start, To: end}

	today.Scope = ScopePersonal
	if snap.Personal, err = b.src.QueryTasks(ctx, today); err != nil {
		return Snapshot{}, apperr.Storage(fmt.Errorf("personal tasks: %w", err))
	}

	today.Scope = ScopeTeam
	if snap.Team, err = b.src.QueryTasks(ctx, today); err != nil {
		return Snapshot{}, apperr.Storage(fmt.Errorf("team tasks: %w", err))
	}

	overdue := Query{UserID: userID, Filter: FilterOverdue, Before: now}
	for _, scope := range []Scope{ScopePersonal, ScopeTeam} {
		overdue.Scope = scope
		items, err := b.src.QueryTasks(ctx, overdue)
		if err != nil {
			return Snapshot{}, apperr.Storage(fmt.Errorf("%s overdue tasks: %w", scope, err))
		}
		snap.Overdue = append(snap.Overdue, items...)
	}

	return snap, nil
}

// Render formats a Snapshot. Lists are sorted here, so the output does not
// depend on the order a Source returned rows in.
//
// The result never exceeds MaxMessageLength visible characters: long titles
// and team names are shortened, more aggressively when the first attempt is
// still too long. Section order and list caps are unchanged.
func Render(s Snapshot) string {
	var out string
	for _, l := range renderSteps {
		out = render(s, l)
		if VisibleLength(out) <= MaxMessageLength {
			break
		}
	}
	return out
}

// MaxMessageLength is the Bot API limit on one message, counted after
// markup is parsed.
const MaxMessageLength = 4096

// FocusRunes bounds the focus note in a digest.
const FocusRunes = 300

type textLimits struct {
	title int
	team  int
}

// The last step keeps a full digest (32 lines, focus, headers) well under
// MaxMessageLength.
var renderSteps = []textLimits{
	{title: 80, team: 32},
	{title: 48, team: 24},
	{title: 24, team: 16},
}

func render(s Snapshot, l textLimits) string {
	var b strings.Builder

	focus := FocusNotSet
	if s.HasFocus && strings.TrimSpace(s.Focus) != "" {
		focus = Escape(Shorten(s.Focus, FocusRunes))
	}
	fmt.Fprintf(&b, "🎯 <b>Focus:</b> %s\n", focus)

	b.WriteString("\n")
	writeSection(&b, "📋 <b>Personal today</b>", s.Personal, TodayLimit, func(it Item) string {
		return todayLine(it, s, l)
	})

	b.WriteString("\n")
	writeSection(&b, "👥 <b>Team today</b>", s.Team, TodayLimit, func(it Item) string {
		return todayLine(it, s, l)
	})

	if len(s.Overdue) > 0 {
		b.WriteString("\n")
		writeSection(&b, "⚠️ <b>Overdue</b>", s.Overdue, OverdueLimit, func(it Item) string {
			return fmt.Sprintf("• %s (was due by %s) %s",
				Escape(Shorten(it.Title, l.title)), FormatDate(*it.DueAt, s.OffsetMinutes), tag(it, l))
		})
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, header string, items []Item, limit int, line func(Item) string) {
	sorted := append([]Item(nil), items...)
	Sort(sorted)

	fmt.Fprintf(b, "%s (%d)\n", header, len(sorted))
	if len(sorted) == 0 {
		b.WriteString("<i>no tasks</i>\n")
		return
	}

	shown := sorted
	if len(shown) > limit {
		shown = shown[:limit]
	}
	for _, it := range shown {
		b.WriteString(line(it))
		b.WriteString("\n")
	}
	if rest := len(sorted) - len(shown); rest > 0 {
		fmt.Fprintf(b, "…and %d more\n", rest)
	}
}

func todayLine(it Item, s Snapshot, l textLimits) string {
	due := "no deadline"
	if it.DueAt != nil {
		due = FormatDue(*it.DueAt, s.Now, s.OffsetMinutes)
	}
	line := fmt.Sprintf("• %s (%s)", Escape(Shorten(it.Title, l.title)), due)
	if it.TeamName != "" {
		line += " " + tag(it, l)
	}
	return line
}

func tag(it Item, l textLimits) string {
	if it.TeamName == "" {
		return "[personal]"
	}
	who := "everyone"
	if it.Assigned {
		who = "you"
	}
	return fmt.Sprintf("[%s · %s]", Escape(Shorten(it.TeamName, l.team)), who)
}

// Sort orders items the way every digest list is shown: tasks with a due
// instant first, ascending by due; then newest created first; then by id
// descending.
func Sort(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if (a.DueAt == nil) != (b.DueAt == nil) {
			return a.DueAt != nil
		}
		if a.DueAt != nil && !a.DueAt.Equal(*b.DueAt) {
			return a.DueAt.Before(*b.DueAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return bytes.Compare(a.TaskID[:], b.TaskID[:]) > 0
	})
}
