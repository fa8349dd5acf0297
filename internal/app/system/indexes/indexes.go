// Package indexes reconciles the MongoDB indexes the application relies on.
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each collection set is idempotent. Problems
are aggregated so all of them are visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	sets := []struct {
		coll   string
		models []mongo.IndexModel
	}{
		{"users", []mongo.IndexModel{
			unique("uniq_users_telegram_id", bson.D{{Key: "telegram_id", Value: 1}}),
		}},
		{"focus", []mongo.IndexModel{
			index("idx_focus_user_id_desc", bson.D{{Key: "user_id", Value: 1}, {Key: "_id", Value: -1}}),
		}},
		{"tasks", []mongo.IndexModel{
			index("idx_tasks_owner_done_due", bson.D{{Key: "owner_id", Value: 1}, {Key: "done", Value: 1}, {Key: "due_at", Value: 1}}),
			index("idx_tasks_team_done_due", bson.D{{Key: "team_id", Value: 1}, {Key: "done", Value: 1}, {Key: "due_at", Value: 1}}),
			// deadline scans: open tasks by due time
			index("idx_tasks_done_due", bson.D{{Key: "done", Value: 1}, {Key: "due_at", Value: 1}}),
		}},
		{"teams", []mongo.IndexModel{
			unique("uniq_teams_join_token", bson.D{{Key: "join_token", Value: 1}}),
		}},
		{"team_memberships", []mongo.IndexModel{
			unique("uniq_team_memberships_team_user", bson.D{{Key: "team_id", Value: 1}, {Key: "user_id", Value: 1}}),
			index("idx_team_memberships_user", bson.D{{Key: "user_id", Value: 1}}),
		}},
		{"notification_preferences", []mongo.IndexModel{
			unique("uniq_notification_preferences_user", bson.D{{Key: "user_id", Value: 1}}),
			index("idx_notification_preferences_enabled", bson.D{{Key: "enabled", Value: 1}}),
		}},
		{"task_notification_states", []mongo.IndexModel{
			unique("uniq_task_notification_states_task", bson.D{{Key: "task_id", Value: 1}}),
		}},
		{"notification_logs", []mongo.IndexModel{
			index("idx_notification_logs_user_attempted", bson.D{{Key: "user_id", Value: 1}, {Key: "attempted_at", Value: -1}}),
			index("idx_notification_logs_attempted", bson.D{{Key: "attempted_at", Value: 1}}),
		}},
	}

	var problems []string
	for _, s := range sets {
		if err := ensureIndexSet(ctx, db.Collection(s.coll), s.models); err != nil {
			problems = append(problems, s.coll+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func index(name string, keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetName(name)}
}

func unique(name string, keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetName(name).SetUnique(true)}
}

/* -------------------------------------------------------------------------- */
/* Reconcile the desired indexes of one collection                            */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func isUnique(b *bool) bool { return b != nil && *b }

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	return strings.Contains(err.Error(), "E11000")
}

func listExisting(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]existingIndex{}
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out, cur.Err()
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	existing, err := listExisting(ctx, coll)
	if err != nil {
		// A collection that does not exist yet lists as an error on some
		// servers; treat it as having no indexes.
		existing = map[string]existingIndex{}
	}

	var errs []string
	for _, m := range models {
		name := *m.Options.Name
		wantUnique := isUnique(m.Options.Unique)
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()

		if ex, ok := existing[sig]; ok {
			if ex.Name == name && isUnique(ex.Unique) == wantUnique {
				zap.L().Debug("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name))
				continue
			}
			// Same keys under another name or with other options: replace.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s: drop %s failed: %v", name, ex.Name, err))
				continue
			}
			zap.L().Info("dropped mismatched index",
				zap.String("collection", coll.Name()),
				zap.String("name", ex.Name),
				zap.String("keys", sig))
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if wantUnique && isDuplicateKeyErr(err) {
				errs = append(errs, fmt.Sprintf("%s: cannot create unique index (duplicates present on %s)", name, sig))
			} else {
				errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			}
			continue
		}
		zap.L().Info("index created",
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", wantUnique),
			zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
