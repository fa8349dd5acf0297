package teamstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/focushub/internal/app/system/txn"
	"github.com/dalemusser/focushub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ErrNoMembers is returned by Owner for a team without owner and members.
var ErrNoMembers = errors.New("team has no members")

// Store provides access to the teams and team_memberships collections.
type Store struct {
	db      *mongo.Database
	teams   *mongo.Collection
	members *mongo.Collection
	log     *zap.Logger
}

func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{
		db:      db,
		teams:   db.Collection("teams"),
		members: db.Collection("team_memberships"),
		log:     logger,
	}
}

func newJoinToken() string {
	return uuid.NewString()
}

// Create inserts a team owned by ownerID and enrolls the owner as its first
// member.
func (s *Store) Create(ctx context.Context, name string, ownerID primitive.ObjectID) (models.Team, error) {
	now := time.Now().UTC()
	team := models.Team{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		JoinToken: newJoinToken(),
		OwnerID:   &ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := txn.Run(ctx, s.db.Client(), s.log, func(ctx context.Context) error {
		if _, err := s.teams.InsertOne(ctx, team); err != nil {
			return err
		}
		_, err := s.members.InsertOne(ctx, models.TeamMembership{
			ID:       primitive.NewObjectID(),
			TeamID:   team.ID,
			UserID:   ownerID,
			JoinedAt: now,
		})
		return err
	})
	if err != nil {
		return models.Team{}, err
	}
	return team, nil
}

// GetByID loads a team. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Team, error) {
	var t models.Team
	if err := s.teams.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByToken loads a team by join token.
func (s *Store) GetByToken(ctx context.Context, token string) (*models.Team, error) {
	var t models.Team
	if err := s.teams.FindOne(ctx, bson.M{"join_token": token}).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// TeamIDs returns the ids of the teams userID belongs to.
func (s *Store) TeamIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.members.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetProjection(bson.M{"team_id": 1}))
	if err != nil {
		return nil, err
	}
	var rows []struct {
		TeamID primitive.ObjectID `bson:"team_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, len(rows))
	for i, r := range rows {
		ids[i] = r.TeamID
	}
	return ids, nil
}

// ListForUser returns the teams userID belongs to, ordered by name.
func (s *Store) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Team, error) {
	ids, err := s.TeamIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := []models.Team{}
	if len(ids) == 0 {
		return out, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.teams.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Names maps team ids to names.
func (s *Store) Names(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	out := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.teams.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"name": 1}))
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID   primitive.ObjectID `bson:"_id"`
		Name string             `bson:"name"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r.Name
	}
	return out, nil
}

// Join enrolls userID in the team holding token. joined is false when the
// user already was a member. Returns mongo.ErrNoDocuments for an unknown
// token.
func (s *Store) Join(ctx context.Context, token string, userID primitive.ObjectID) (team *models.Team, joined bool, err error) {
	team, err = s.GetByToken(ctx, token)
	if err != nil {
		return nil, false, err
	}
	res, err := s.members.UpdateOne(ctx,
		bson.M{"team_id": team.ID, "user_id": userID},
		bson.M{"$setOnInsert": bson.M{
			"_id":       primitive.NewObjectID(),
			"joined_at": time.Now().UTC(),
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		if wafflemongo.IsDup(err) {
			return team, false, nil
		}
		return nil, false, err
	}
	return team, res.UpsertedCount == 1, nil
}

// Leave removes the membership. It reports whether one existed.
func (s *Store) Leave(ctx context.Context, teamID, userID primitive.ObjectID) (bool, error) {
	res, err := s.members.DeleteOne(ctx, bson.M{"team_id": teamID, "user_id": userID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

// IsMember reports whether userID belongs to teamID.
func (s *Store) IsMember(ctx context.Context, teamID, userID primitive.ObjectID) (bool, error) {
	n, err := s.members.CountDocuments(ctx, bson.M{"team_id": teamID, "user_id": userID})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Members returns the memberships of teamID in join order.
func (s *Store) Members(ctx context.Context, teamID primitive.ObjectID) ([]models.TeamMembership, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.members.Find(ctx, bson.M{"team_id": teamID}, opts)
	if err != nil {
		return nil, err
	}
	out := []models.TeamMembership{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MemberIDs returns the user ids of teamID in join order.
func (s *Store) MemberIDs(ctx context.Context, teamID primitive.ObjectID) ([]primitive.ObjectID, error) {
	ms, err := s.Members(ctx, teamID)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, len(ms))
	for i, m := range ms {
		ids[i] = m.UserID
	}
	return ids, nil
}

// Owner returns the explicit owner, or the earliest member when the team
// has none recorded.
func (s *Store) Owner(ctx context.Context, team models.Team) (primitive.ObjectID, error) {
	if team.OwnerID != nil {
		return *team.OwnerID, nil
	}
	var first models.TeamMembership
	opts := options.FindOne().SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "_id", Value: 1}})
	err := s.members.FindOne(ctx, bson.M{"team_id": team.ID}, opts).Decode(&first)
	if err == mongo.ErrNoDocuments {
		return primitive.NilObjectID, ErrNoMembers
	}
	if err != nil {
		return primitive.NilObjectID, err
	}
	return first.UserID, nil
}

// ClearOwner drops the explicit owner so ownership falls back to the
// earliest remaining member.
func (s *Store) ClearOwner(ctx context.Context, teamID primitive.ObjectID) error {
	_, err := s.teams.UpdateOne(ctx, bson.M{"_id": teamID}, bson.M{
		"$unset": bson.M{"owner_id": ""},
		"$set":   bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

// RotateToken replaces the join token and returns the new one.
func (s *Store) RotateToken(ctx context.Context, teamID primitive.ObjectID) (string, error) {
	token := newJoinToken()
	res, err := s.teams.UpdateOne(ctx, bson.M{"_id": teamID}, bson.M{
		"$set": bson.M{"join_token": token, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return "", err
	}
	if res.MatchedCount == 0 {
		return "", mongo.ErrNoDocuments
	}
	return token, nil
}

// TaskPurger removes the tasks of a team.
type TaskPurger interface {
	DeleteByTeam(ctx context.Context, teamID primitive.ObjectID) (int64, error)
}

// Delete removes the team, its memberships and, through tasks, its tasks.
func (s *Store) Delete(ctx context.Context, teamID primitive.ObjectID, tasks TaskPurger) error {
	return txn.Run(ctx, s.db.Client(), s.log, func(ctx context.Context) error {
		res, err := s.teams.DeleteOne(ctx, bson.M{"_id": teamID})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return mongo.ErrNoDocuments
		}
		if _, err := s.members.DeleteMany(ctx, bson.M{"team_id": teamID}); err != nil {
			return err
		}
		_, err = tasks.DeleteByTeam(ctx, teamID)
		return err
	})
}
