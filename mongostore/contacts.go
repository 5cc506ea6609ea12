package mongostore

import (
	"context"
	"time"

	membership "github.com/goliatone/go-membership"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type contacts struct {
	col *mongo.Collection
}

func (c *contacts) Create(ctx context.Context, msg *membership.ContactMessage) (*membership.ContactMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if _, err := c.col.InsertOne(ctx, msg); err != nil {
		return nil, wrapError(err, "failed to insert contact message")
	}
	return msg, nil
}

func (c *contacts) MarkNotified(ctx context.Context, id string, at time.Time) error {
	return updateFields(ctx, c.col, id, bson.D{{Key: "notified_at", Value: at.UTC()}})
}

func (c *contacts) List(ctx context.Context, limit, offset int) ([]*membership.ContactMessage, int, error) {
	total, err := c.col.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, wrapError(err, "failed to count contact messages")
	}
	msgs, err := findMany[membership.ContactMessage](ctx, c.col, bson.D{}, page(limit, offset))
	if err != nil {
		return nil, 0, err
	}
	return msgs, int(total), nil
}
