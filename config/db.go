package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"civicsync-be/models"
	"civicsync-be/store"
)

// ConnectDB opens a MongoDB connection and creates the indexes the stores
// rely on. The caller disconnects the returned client.
func ConnectDB(ctx context.Context, cfg *Config) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, nil, disconnectOnError(client, fmt.Errorf("ping MongoDB: %w", err))
	}

	db := client.Database(cfg.MongoDB)
	if err := disconnectOnError(client, ensureIndexes(ctx, db)); err != nil {
		return nil, nil, err
	}
	return client, db, nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	if err := models.EnsureUserIndexes(ctx, db.Collection("users")); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	if err := models.EnsureIssueIndexes(ctx, db.Collection("issues")); err != nil {
		return fmt.Errorf("create issue indexes: %w", err)
	}
	if err := store.EnsureNotificationIndexes(ctx, db); err != nil {
		return fmt.Errorf("create notification indexes: %w", err)
	}
	if err := store.EnsureProfileRequestIndexes(ctx, db); err != nil {
		return fmt.Errorf("create profile request indexes: %w", err)
	}
	return nil
}

type disconnecter interface {
	Disconnect(ctx context.Context) error
}

// disconnectOnError closes client when setup failed after connecting.
func disconnectOnError(client disconnecter, err error) error {
	if err != nil {
		_ = client.Disconnect(context.Background())
	}
	return err
}
