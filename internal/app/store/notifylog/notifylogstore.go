package notifylogstore

import (
	"context"
	"time"

	"github.com/dalemusser/focushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultRecent is how many rows Recent returns when limit <= 0.
const DefaultRecent = 50

// Store provides access to notification_logs. Rows are inserted, read for
// display and pruned by age; they are never updated.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notification_logs")}
}

// Append inserts one attempt.
func (s *Store) Append(ctx context.Context, e models.NotificationLog) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if e.AttemptedAt.IsZero() {
		e.AttemptedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, e)
	return err
}

// Recent returns the newest attempts of userID.
func (s *Store) Recent(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.NotificationLog, error) {
	if limit <= 0 {
		limit = DefaultRecent
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "attempted_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.NotificationLog{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteOlderThan prunes attempts before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"attempted_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
