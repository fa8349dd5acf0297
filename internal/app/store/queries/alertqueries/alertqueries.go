// Package alertqueries finds tasks whose deadline alerts are still pending.
package alertqueries

import (
	"context"
	"time"

	"github.com/dalemusser/focushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Candidates implements deadlines.Candidates over MongoDB.
type Candidates struct {
	db *mongo.Database
}

func New(db *mongo.Database) *Candidates {
	return &Candidates{db: db}
}

// DueSoon returns open tasks due in [from, to] whose due warning was not
// sent, earliest first.
func (c *Candidates) DueSoon(ctx context.Context, from, to time.Time, limit int) ([]models.Task, error) {
	return c.pending(ctx, bson.M{"$gte": from, "$lte": to}, "sent_due_warning", limit)
}

// Overdue returns open tasks due strictly before before whose overdue alert
// was not sent, earliest first.
func (c *Candidates) Overdue(ctx context.Context, before time.Time, limit int) ([]models.Task, error) {
	return c.pending(ctx, bson.M{"$lt": before}, "sent_overdue", limit)
}

func (c *Candidates) pending(ctx context.Context, due bson.M, flag string, limit int) ([]models.Task, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"done": false, "due_at": due}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "task_notification_states",
			"localField":   "_id",
			"foreignField": "task_id",
			"as":           "state",
		}}},
		{{Key: "$match", Value: bson.M{"state." + flag: bson.M{"$ne": true}}}},
		{{Key: "$project", Value: bson.M{"state": 0}}},
		{{Key: "$sort", Value: bson.D{{Key: "due_at", Value: 1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}

	cur, err := c.db.Collection("tasks").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Task
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
