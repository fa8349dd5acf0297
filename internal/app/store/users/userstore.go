package userstore

import (
	"context"
	"time"

	"github.com/dalemusser/focushub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByTelegramID looks a user up by platform id. Returns
// mongo.ErrNoDocuments if not found.
func (s *Store) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"telegram_id": telegramID}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListByIDs returns the users among ids that exist, in no particular order.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert creates or refreshes the user with u.TelegramID and returns the
// stored row. Profile fields are overwritten with the latest values; the
// internal id and CreatedAt are only written on insert.
//
// Two concurrent first calls for the same platform id both attempt the
// upsert; the unique index makes one of them fail with a duplicate key, and
// that caller retries against the row the winner inserted. Both return the
// same internal id.
func (s *Store) Upsert(ctx context.Context, u models.User) (*models.User, error) {
	now := time.Now().UTC()
	filter := bson.M{"telegram_id": u.TelegramID}
	update := bson.M{
		"$set": bson.M{
			"username":      u.Username,
			"first_name":    u.FirstName,
			"last_name":     u.LastName,
			"language_code": u.LanguageCode,
			"last_seen_at":  now,
		},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var out models.User
	err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	if err != nil && wafflemongo.IsDup(err) {
		err = s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
