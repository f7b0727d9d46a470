package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"civicsync-be/models"
)

type ProfileRequestStore struct {
	coll *mongo.Collection
}

func NewProfileRequestStore(db *mongo.Database) *ProfileRequestStore {
	return &ProfileRequestStore{coll: db.Collection("profileupdaterequests")}
}

// Insert stores a new pending request. The partial unique index on user
// turns a second pending request into ErrDuplicate.
func (s *ProfileRequestStore) Insert(ctx context.Context, r *models.ProfileUpdateRequest) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	if _, err := s.coll.InsertOne(ctx, r); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert profile request: %w", err)
	}
	return nil
}

func (s *ProfileRequestStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.ProfileUpdateRequest, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *ProfileRequestStore) FindPending(ctx context.Context, user primitive.ObjectID) (*models.ProfileUpdateRequest, error) {
	return s.findOne(ctx, bson.M{"user": user, "status": models.RequestPending})
}

func (s *ProfileRequestStore) findOne(ctx context.Context, filter bson.M) (*models.ProfileUpdateRequest, error) {
	var r models.ProfileUpdateRequest
	if err := s.coll.FindOne(ctx, filter).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find profile request: %w", err)
	}
	return &r, nil
}

// ListPending returns pending requests, newest first.
func (s *ProfileRequestStore) ListPending(ctx context.Context) ([]*models.ProfileUpdateRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.coll.Find(ctx, bson.M{"status": models.RequestPending}, opts)
	if err != nil {
		return nil, fmt.Errorf("find profile requests: %w", err)
	}
	defer cursor.Close(ctx)

	out := []*models.ProfileUpdateRequest{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode profile requests: %w", err)
	}
	return out, nil
}

// SetStatus moves a request from one status to another, failing with
// ErrConflict when it is no longer in from.
func (s *ProfileRequestStore) SetStatus(ctx context.Context, id primitive.ObjectID, from, to models.RequestStatus, review RequestReview) (*models.ProfileUpdateRequest, error) {
	update := bson.M{}
	set := bson.M{"status": to, "updatedAt": time.Now()}
	if review.By.IsZero() {
		update["$unset"] = bson.M{"reviewedBy": "", "reviewedAt": "", "rejectionReason": ""}
	} else {
		set["reviewedBy"] = review.By
		set["reviewedAt"] = review.At
		set["rejectionReason"] = review.Reason
	}
	update["$set"] = set

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var r models.ProfileUpdateRequest
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": from}, update, opts).Decode(&r)
	if err == nil {
		return &r, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("set profile request status: %w", err)
	}
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("check profile request: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrConflict
}

// EnsureProfileRequestIndexes enforces one pending request per user.
func EnsureProfileRequestIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("profileupdaterequests").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"status": models.RequestPending}),
	})
	return err
}
