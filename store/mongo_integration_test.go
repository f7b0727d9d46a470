//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"civicsync-be/models"
)

// Run with: go test -tags=integration -timeout 180s ./store/...
func TestMongoStores(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	var n int
	suite.Run(t, &storeContractSuite{factory: func() backends {
		n++
		db := client.Database(fmt.Sprintf("civicsync_test_%d", n))
		require.NoError(t, models.EnsureUserIndexes(ctx, db.Collection("users")))
		require.NoError(t, models.EnsureIssueIndexes(ctx, db.Collection("issues")))
		require.NoError(t, EnsureNotificationIndexes(ctx, db))
		require.NoError(t, EnsureProfileRequestIndexes(ctx, db))
		return backends{
			issues:   NewIssueStore(db),
			users:    NewUserStore(db),
			inbox:    NewNotificationStore(db),
			requests: NewProfileRequestStore(db),
		}
	}})
}
