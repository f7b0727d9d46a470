package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"civicsync-be/models"
)

type NotificationStore struct {
	coll *mongo.Collection
}

func NewNotificationStore(db *mongo.Database) *NotificationStore {
	return &NotificationStore{coll: db.Collection("notifications")}
}

func (s *NotificationStore) Insert(ctx context.Context, n *models.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if _, err := s.coll.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *NotificationStore) ListForUser(ctx context.Context, user primitive.ObjectID, limit int) ([]*models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.coll.Find(ctx, bson.M{"user": user}, opts)
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}
	defer cursor.Close(ctx)

	out := []*models.Notification{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return out, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, id, user primitive.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id, "user": user}, bson.M{"$set": bson.M{"isRead": true}})
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureNotificationIndexes backs the inbox query.
func EnsureNotificationIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("notifications").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "isRead", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}
