package tasknotifystore

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/focushub/internal/app/system/deadlines"
	"github.com/dalemusser/focushub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to task_notification_states, one row per task
// (unique on task_id).
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("task_notification_states")}
}

type fields struct {
	flag, at, lease string
}

func fieldsFor(kind deadlines.Kind) (fields, error) {
	switch kind {
	case deadlines.KindDueSoon:
		return fields{"sent_due_warning", "sent_due_warning_at", "due_warning_lease_until"}, nil
	case deadlines.KindOverdue:
		return fields{"sent_overdue", "sent_overdue_at", "overdue_lease_until"}, nil
	}
	return fields{}, fmt.Errorf("unknown alert kind %q", kind)
}

// Claim leases (task, kind) until until. It fails without error when the
// flag is already set or another live lease exists. The row is created on
// first claim; a concurrent creator loses on the unique task_id index.
func (s *Store) Claim(ctx context.Context, taskID primitive.ObjectID, kind deadlines.Kind, now, until time.Time) (bool, error) {
	f, err := fieldsFor(kind)
	if err != nil {
		return false, err
	}
	filter := bson.M{
		"task_id": taskID,
		f.flag:    bson.M{"$ne": true},
		"$or": bson.A{
			bson.M{f.lease: nil},
			bson.M{f.lease: bson.M{"$lte": now}},
		},
	}
	update := bson.M{
		"$set": bson.M{f.lease: until},
		"$setOnInsert": bson.M{
			"_id":              primitive.NewObjectID(),
			"sent_due_warning": false,
			"sent_overdue":     false,
			"created_at":       now,
		},
	}
	res, err := s.c.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if wafflemongo.IsDup(err) {
			return false, nil
		}
		return false, err
	}
	return res.ModifiedCount == 1 || res.UpsertedCount == 1, nil
}

// Mark sets the flag and drops the lease. It reports whether the flag
// changed; an already set flag is a no-op.
func (s *Store) Mark(ctx context.Context, taskID primitive.ObjectID, kind deadlines.Kind, at time.Time) (bool, error) {
	f, err := fieldsFor(kind)
	if err != nil {
		return false, err
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"task_id": taskID, f.flag: bson.M{"$ne": true}},
		bson.M{
			"$set":   bson.M{f.flag: true, f.at: at},
			"$unset": bson.M{f.lease: ""},
		})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// Release drops the lease without setting the flag.
func (s *Store) Release(ctx context.Context, taskID primitive.ObjectID, kind deadlines.Kind) error {
	f, err := fieldsFor(kind)
	if err != nil {
		return err
	}
	_, err = s.c.UpdateOne(ctx, bson.M{"task_id": taskID}, bson.M{"$unset": bson.M{f.lease: ""}})
	return err
}

// Get returns the state of a task, or a zero state when none exists.
func (s *Store) Get(ctx context.Context, taskID primitive.ObjectID) (models.TaskNotificationState, error) {
	var st models.TaskNotificationState
	err := s.c.FindOne(ctx, bson.M{"task_id": taskID}).Decode(&st)
	if err == mongo.ErrNoDocuments {
		return models.TaskNotificationState{TaskID: taskID}, nil
	}
	return st, err
}
