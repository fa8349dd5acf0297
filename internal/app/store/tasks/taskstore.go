package taskstore

import (
	"context"
	"time"

	"github.com/dalemusser/focushub/internal/app/system/txn"
	"github.com/dalemusser/focushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Scope selects which tasks List returns.
type Scope string

const (
	ScopePersonal Scope = "personal"
	ScopeTeam     Scope = "team"
	ScopeAll      Scope = "all"
)

// ListFilter describes a task listing for one user.
type ListFilter struct {
	UserID  primitive.ObjectID
	TeamIDs []primitive.ObjectID // teams the user belongs to
	Scope   Scope
	Done    *bool
}

// Update carries optional field changes. Nil pointers leave a field alone;
// the Clear flags unset the corresponding field.
type Update struct {
	Title         *string
	DueAt         *time.Time
	ClearDueAt    bool
	AssigneeID    *primitive.ObjectID
	ClearAssignee bool
}

type Store struct {
	db     *mongo.Database
	c      *mongo.Collection
	states *mongo.Collection
	log    *zap.Logger
}

func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		c:      db.Collection("tasks"),
		states: db.Collection("task_notification_states"),
		log:    logger,
	}
}

// Create inserts t with a fresh id and timestamps.
func (s *Store) Create(ctx context.Context, t models.Task) (models.Task, error) {
	now := time.Now().UTC()
	t.ID = primitive.NewObjectID()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Done = false
	t.DoneAt = nil
	if t.DueAt != nil {
		d := t.DueAt.UTC()
		t.DueAt = &d
	}
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// GetByID loads a task. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Task, error) {
	var t models.Task
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns tasks visible to f.UserID, newest first. Personal tasks are
// the user's own non-team tasks; team tasks are every task of f.TeamIDs.
func (s *Store) List(ctx context.Context, f ListFilter) ([]models.Task, error) {
	personal := bson.M{"owner_id": f.UserID, "team_id": nil}
	team := bson.M{"team_id": bson.M{"$in": f.TeamIDs}}

	var filter bson.M
	switch f.Scope {
	case ScopePersonal:
		filter = personal
	case ScopeTeam:
		if len(f.TeamIDs) == 0 {
			return nil, nil
		}
		filter = team
	default:
		if len(f.TeamIDs) == 0 {
			filter = personal
		} else {
			filter = bson.M{"$or": bson.A{personal, team}}
		}
	}
	if f.Done != nil {
		filter = bson.M{"$and": bson.A{filter, bson.M{"done": *f.Done}}}
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Task{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Apply writes u to the task and returns the updated row.
func (s *Store) Apply(ctx context.Context, id primitive.ObjectID, u Update) (*models.Task, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	unset := bson.M{}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	switch {
	case u.ClearDueAt:
		unset["due_at"] = ""
	case u.DueAt != nil:
		set["due_at"] = u.DueAt.UTC()
	}
	switch {
	case u.ClearAssignee:
		unset["assignee_id"] = ""
	case u.AssigneeID != nil:
		set["assignee_id"] = *u.AssigneeID
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return s.findAndUpdate(ctx, id, update)
}

// SetDone marks the task complete or open again.
func (s *Store) SetDone(ctx context.Context, id primitive.ObjectID, done bool) (*models.Task, error) {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"done": done, "done_at": now, "updated_at": now}}
	if !done {
		update = bson.M{
			"$set":   bson.M{"done": false, "updated_at": now},
			"$unset": bson.M{"done_at": ""},
		}
	}
	return s.findAndUpdate(ctx, id, update)
}

func (s *Store) findAndUpdate(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.Task, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var t models.Task
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes the task together with its alert state.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	return txn.Run(ctx, s.db.Client(), s.log, func(ctx context.Context) error {
		res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return mongo.ErrNoDocuments
		}
		_, err = s.states.DeleteOne(ctx, bson.M{"task_id": id})
		return err
	})
}

// DeleteByTeam removes every task of a team with its alert states. It runs
// inside the caller's transaction when ctx carries one.
func (s *Store) DeleteByTeam(ctx context.Context, teamID primitive.ObjectID) (int64, error) {
	cur, err := s.c.Find(ctx, bson.M{"team_id": teamID}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, err
	}
	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	ids := make([]primitive.ObjectID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	if _, err := s.states.DeleteMany(ctx, bson.M{"task_id": bson.M{"$in": ids}}); err != nil {
		return 0, err
	}
	res, err := s.c.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// UnassignMember clears assignments of userID on teamID's tasks, keeping
// every assignee a member of the task's team.
func (s *Store) UnassignMember(ctx context.Context, teamID, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"team_id": teamID, "assignee_id": userID},
		bson.M{
			"$unset": bson.M{"assignee_id": ""},
			"$set":   bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
