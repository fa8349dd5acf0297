// Package digestqueries reads the tasks and focus a digest is built from.
package digestqueries

import (
	"context"
	"time"

	"github.com/dalemusser/focushub/internal/app/system/digest"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Source implements digest.Source over MongoDB.
type Source struct {
	db *mongo.Database
}

func New(db *mongo.Database) *Source {
	return &Source{db: db}
}

// LatestFocus returns the text of the user's focus entry with the highest id.
func (s *Source) LatestFocus(ctx context.Context, userID primitive.ObjectID) (string, bool, error) {
	var row struct {
		Text string `bson:"text"`
	}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetProjection(bson.M{"text": 1})
	err := s.db.Collection("focus").FindOne(ctx, bson.M{"user_id": userID}, opts).Decode(&row)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Text, true, nil
}

type taskRow struct {
	ID         primitive.ObjectID  `bson:"_id"`
	Title      string              `bson:"title"`
	DueAt      *time.Time          `bson:"due_at"`
	CreatedAt  time.Time           `bson:"created_at"`
	AssigneeID *primitive.ObjectID `bson:"assignee_id"`
	TeamName   string              `bson:"team_name"`
}

// QueryTasks returns the incomplete tasks matching q, unordered. Ordering
// is applied by the builder.
func (s *Source) QueryTasks(ctx context.Context, q digest.Query) ([]digest.Item, error) {
	clauses := []bson.M{{"done": false}}
	if f := filterClause(q); f != nil {
		clauses = append(clauses, f)
	}

	var pipeline mongo.Pipeline
	switch q.Scope {
	case digest.ScopeTeam:
		teamIDs, err := s.teamIDs(ctx, q.UserID)
		if err != nil {
			return nil, err
		}
		if len(teamIDs) == 0 {
			return nil, nil
		}
		clauses = append(clauses,
			bson.M{"team_id": bson.M{"$in": teamIDs}},
			bson.M{"$or": bson.A{
				bson.M{"assignee_id": nil},
				bson.M{"assignee_id": q.UserID},
			}},
		)
		pipeline = mongo.Pipeline{
			{{Key: "$match", Value: andify(clauses)}},
			{{Key: "$lookup", Value: bson.M{
				"from":         "teams",
				"localField":   "team_id",
				"foreignField": "_id",
				"as":           "team",
			}}},
			{{Key: "$addFields", Value: bson.M{
				"team_name": bson.M{"$ifNull": bson.A{bson.M{"$arrayElemAt": bson.A{"$team.name", 0}}, ""}},
			}}},
			{{Key: "$project", Value: bson.M{"team": 0}}},
		}
	default:
		clauses = append(clauses, bson.M{"owner_id": q.UserID, "team_id": nil})
		pipeline = mongo.Pipeline{{{Key: "$match", Value: andify(clauses)}}}
	}

	cur, err := s.db.Collection("tasks").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []taskRow
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	items := make([]digest.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, digest.Item{
			TaskID:    r.ID,
			Title:     r.Title,
			DueAt:     r.DueAt,
			CreatedAt: r.CreatedAt,
			TeamName:  r.TeamName,
			Assigned:  r.AssigneeID != nil && *r.AssigneeID == q.UserID,
		})
	}
	return items, nil
}

func filterClause(q digest.Query) bson.M {
	switch q.Filter {
	case digest.FilterDueWindow:
		return bson.M{"$or": bson.A{
			bson.M{"due_at": nil},
			bson.M{"due_at": bson.M{"$gte": q.From, "$lte": q.To}},
		}}
	case digest.FilterOverdue:
		return bson.M{"due_at": bson.M{"$lt": q.Before}}
	}
	return nil
}

func (s *Source) teamIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	raw, err := s.db.Collection("team_memberships").Distinct(ctx, "team_id", bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func andify(clauses []bson.M) bson.M {
	if len(clauses) == 1 {
		return clauses[0]
	}
	a := make(bson.A, len(clauses))
	for i, c := range clauses {
		a[i] = c
	}
	return bson.M{"$and": a}
}
