package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Upvote is a citizen's vote on an issue. An issue holds at most one per voter.
type Upvote struct {
	Voter   primitive.ObjectID `bson:"voter" json:"voter"`
	VotedAt time.Time          `bson:"votedAt" json:"votedAt"`
}

// EnsureIssueIndexes creates the indexes the listing and scoping queries rely on.
func EnsureIssueIndexes(ctx context.Context, collection *mongo.Collection) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "department", Value: 1}, {Key: "location.pincode", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "reportedBy", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "assignedTo", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "upvoteCount", Value: -1}}},
	})
	return err
}

// EnsureUserIndexes creates unique login identifiers.
func EnsureUserIndexes(ctx context.Context, collection *mongo.Collection) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "aadharNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"aadharNumber": bson.M{"$type": "string"}}),
		},
		{
			Keys:    bson.D{{Key: "officerId", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"officerId": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "department", Value: 1}, {Key: "pincode", Value: 1}}},
	})
	return err
}
