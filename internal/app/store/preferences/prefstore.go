package prefstore

import (
	"context"
	"time"

	"github.com/dalemusser/focushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to notification_preferences, one row per user.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notification_preferences")}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp forces every ranged field into its allowed range.
func Clamp(p models.NotificationPreference) models.NotificationPreference {
	p.IntervalHours = clampInt(p.IntervalHours, models.MinIntervalHours, models.MaxIntervalHours)
	p.StartHour = clampInt(p.StartHour, models.MinHour, models.MaxHour)
	p.EndHour = clampInt(p.EndHour, models.MinHour, models.MaxHour)
	p.TZOffsetMinutes = clampInt(p.TZOffsetMinutes, -models.MaxTZOffsetMinutes, models.MaxTZOffsetMinutes)
	return p
}

// Get returns the stored preference, or the defaults if none was saved.
func (s *Store) Get(ctx context.Context, userID primitive.ObjectID) (models.NotificationPreference, error) {
	var p models.NotificationPreference
	err := s.c.FindOne(ctx, bson.M{"user_id": userID}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return models.DefaultNotificationPreference(userID), nil
	}
	if err != nil {
		return models.NotificationPreference{}, err
	}
	return p, nil
}

// Save clamps and upserts the editable fields of p. A write with
// Enabled=true resets last_sent_at so the next eligible window fires
// immediately. Disabling leaves last_sent_at untouched.
func (s *Store) Save(ctx context.Context, p models.NotificationPreference) (models.NotificationPreference, error) {
	p = Clamp(p)
	now := time.Now().UTC()

	set := bson.M{
		"enabled":           p.Enabled,
		"interval_hours":    p.IntervalHours,
		"start_hour":        p.StartHour,
		"end_hour":          p.EndHour,
		"tz_offset_minutes": p.TZOffsetMinutes,
		"updated_at":        now,
	}
	setOnInsert := bson.M{"_id": primitive.NewObjectID()}
	if p.Enabled {
		set["last_sent_at"] = nil
	} else {
		setOnInsert["last_sent_at"] = nil
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	var out models.NotificationPreference
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"user_id": p.UserID},
		bson.M{"$set": set, "$setOnInsert": setOnInsert},
		opts,
	).Decode(&out)
	if err != nil {
		return models.NotificationPreference{}, err
	}
	return out, nil
}

// ListEnabled returns every enabled preference.
func (s *Store) ListEnabled(ctx context.Context) ([]models.NotificationPreference, error) {
	cur, err := s.c.Find(ctx, bson.M{"enabled": true})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.NotificationPreference
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TZOffsets returns the stored offsets of userIDs. Users without a row are
// absent from the map.
func (s *Store) TZOffsets(ctx context.Context, userIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	out := make(map[primitive.ObjectID]int, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"user_id": bson.M{"$in": userIDs}},
		options.Find().SetProjection(bson.M{"user_id": 1, "tz_offset_minutes": 1}))
	if err != nil {
		return nil, err
	}
	var rows []struct {
		UserID primitive.ObjectID `bson:"user_id"`
		Offset int                `bson:"tz_offset_minutes"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.UserID] = r.Offset
	}
	return out, nil
}

func leaseFree(now time.Time) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"lease_until": nil},
		bson.M{"lease_until": bson.M{"$lte": now}},
	}}
}

// Claim leases the user until until, provided the row is still enabled,
// last_sent_at still equals observed and no live lease exists.
func (s *Store) Claim(ctx context.Context, userID primitive.ObjectID, observed *time.Time, now, until time.Time) (bool, error) {
	filter := bson.M{
		"user_id":      userID,
		"enabled":      true,
		"last_sent_at": observedValue(observed),
	}
	for k, v := range leaseFree(now) {
		filter[k] = v
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"lease_until": until}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// Release drops the lease.
func (s *Store) Release(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"user_id": userID}, bson.M{"$unset": bson.M{"lease_until": ""}})
	return err
}

// MarkSent records a confirmed send if last_sent_at still equals observed,
// and drops the lease.
func (s *Store) MarkSent(ctx context.Context, userID primitive.ObjectID, observed *time.Time, at time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"user_id": userID, "last_sent_at": observedValue(observed)},
		bson.M{
			"$set":   bson.M{"last_sent_at": at},
			"$unset": bson.M{"lease_until": ""},
		})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func observedValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
