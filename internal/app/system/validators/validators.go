// Package validators creates the application's collections and attaches
// JSON-Schema validators so out-of-range writes fail at the database.
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/focushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, validator bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if err := setValidator(ctx, db, coll, validator); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("users", usersSchema())
	ensure("focus", focusSchema())
	ensure("tasks", tasksSchema())
	ensure("teams", teamsSchema())
	ensure("team_memberships", membershipsSchema())
	ensure("notification_preferences", preferencesSchema())
	ensure("task_notification_states", statesSchema())
	ensure("notification_logs", logsSchema())

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var (
	integer  = bson.A{"int", "long"}
	nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}
	optID    = bson.M{"bsonType": bson.A{"objectId", "null"}}
	optDate  = bson.M{"bsonType": bson.A{"date", "null"}}
)

func intRange(lo, hi int) bson.M {
	return bson.M{"bsonType": integer, "minimum": lo, "maximum": hi}
}

func schema(required bson.A, props bson.M) bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType":   "object",
			"required":   required,
			"properties": props,
		},
	}
}

func usersSchema() bson.M {
	return schema(bson.A{"telegram_id", "created_at"}, bson.M{
		"telegram_id": bson.M{"bsonType": integer, "minimum": 1},
		"username":    bson.M{"bsonType": "string"},
		"created_at":  bson.M{"bsonType": "date"},
	})
}

func focusSchema() bson.M {
	return schema(bson.A{"user_id", "text"}, bson.M{
		"user_id": bson.M{"bsonType": "objectId"},
		"text":    bson.M{"bsonType": "string"},
	})
}

func tasksSchema() bson.M {
	return schema(bson.A{"owner_id", "title", "done", "created_at"}, bson.M{
		"owner_id":    bson.M{"bsonType": "objectId"},
		"team_id":     optID,
		"assignee_id": optID,
		"title":       nonBlank,
		"due_at":      optDate,
		"done":        bson.M{"bsonType": "bool"},
		"done_at":     optDate,
		"created_at":  bson.M{"bsonType": "date"},
	})
}

func teamsSchema() bson.M {
	return schema(bson.A{"name", "name_ci", "join_token"}, bson.M{
		"name":       nonBlank,
		"name_ci":    nonBlank,
		"join_token": nonBlank,
		"owner_id":   optID,
	})
}

func membershipsSchema() bson.M {
	return schema(bson.A{"team_id", "user_id", "joined_at"}, bson.M{
		"team_id":   bson.M{"bsonType": "objectId"},
		"user_id":   bson.M{"bsonType": "objectId"},
		"joined_at": bson.M{"bsonType": "date"},
	})
}

func preferencesSchema() bson.M {
	return schema(bson.A{"user_id", "enabled", "interval_hours", "start_hour", "end_hour", "tz_offset_minutes"}, bson.M{
		"user_id":           bson.M{"bsonType": "objectId"},
		"enabled":           bson.M{"bsonType": "bool"},
		"interval_hours":    intRange(models.MinIntervalHours, models.MaxIntervalHours),
		"start_hour":        intRange(models.MinHour, models.MaxHour),
		"end_hour":          intRange(models.MinHour, models.MaxHour),
		"tz_offset_minutes": intRange(-models.MaxTZOffsetMinutes, models.MaxTZOffsetMinutes),
		"last_sent_at":      optDate,
		"lease_until":       optDate,
	})
}

func statesSchema() bson.M {
	return schema(bson.A{"task_id"}, bson.M{
		"task_id":          bson.M{"bsonType": "objectId"},
		"sent_due_warning": bson.M{"bsonType": "bool"},
		"sent_overdue":     bson.M{"bsonType": "bool"},
	})
}

func logsSchema() bson.M {
	return schema(bson.A{"user_id", "kind", "attempted_at", "success"}, bson.M{
		"user_id":      bson.M{"bsonType": "objectId"},
		"kind":         bson.M{"enum": bson.A{models.NotificationKindDigest, models.NotificationKindReminder}},
		"task_id":      optID,
		"attempted_at": bson.M{"bsonType": "date"},
		"success":      bson.M{"bsonType": "bool"},
	})
}
