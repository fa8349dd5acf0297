package focusstore

import (
	"context"
	"time"

	"github.com/dalemusser/focushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the focus collection. Entries are append-only.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("focus")}
}

// Set appends a new focus entry, which becomes the current focus.
func (s *Store) Set(ctx context.Context, userID primitive.ObjectID, text string) (models.Focus, error) {
	f := models.Focus{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, f); err != nil {
		return models.Focus{}, err
	}
	return f, nil
}

// Latest returns the entry with the highest id, or ok=false if the user
// never set one.
func (s *Store) Latest(ctx context.Context, userID primitive.ObjectID) (f models.Focus, ok bool, err error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})
	err = s.c.FindOne(ctx, bson.M{"user_id": userID}, opts).Decode(&f)
	if err == mongo.ErrNoDocuments {
		return models.Focus{}, false, nil
	}
	if err != nil {
		return models.Focus{}, false, err
	}
	return f, true, nil
}
