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
	"golang.org/x/sync/errgroup"

	"civicsync-be/models"
	"civicsync-be/scope"
)

// IssueStore is the MongoDB-backed issue collection.
type IssueStore struct {
	coll *mongo.Collection
}

func NewIssueStore(db *mongo.Database) *IssueStore {
	return &IssueStore{coll: db.Collection("issues")}
}

func predicateFilter(p scope.Predicate) bson.M {
	f := bson.M{}
	if p.Department != "" {
		f["department"] = p.Department
	}
	if p.Pincode != "" {
		f["location.pincode"] = p.Pincode
	}
	return f
}

// issueFilter builds the Mongo form of matchesQuery. The scope predicate and
// the caller's own department/pincode filters are ANDed as separate clauses
// so a caller filter can only narrow the scope, never widen it.
func issueFilter(q ListQuery) bson.M {
	clauses := bson.A{predicateFilter(q.Scope), predicateFilter(scope.Predicate{Department: q.Department, Pincode: q.Pincode})}

	f := bson.M{}
	if q.Status != "" {
		f["status"] = q.Status
	} else if len(q.Statuses) > 0 {
		f["status"] = bson.M{"$in": q.Statuses}
	}
	if q.Category != "" {
		f["category"] = q.Category
	}
	if q.Priority != "" {
		f["priority"] = q.Priority
	}
	if q.ReportedBy != nil {
		f["reportedBy"] = *q.ReportedBy
	}
	if q.Since != nil {
		f["createdAt"] = bson.M{"$gte": *q.Since}
	}
	clauses = append(clauses, f)
	return bson.M{"$and": clauses}
}

func (s *IssueStore) Insert(ctx context.Context, issue *models.Issue) error {
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	initIssueSlices(issue)
	issue.Version = 1
	if _, err := s.coll.InsertOne(ctx, issue); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (s *IssueStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find issue: %w", err)
	}
	return &issue, nil
}

func (s *IssueStore) List(ctx context.Context, q ListQuery) ([]*models.Issue, int64, error) {
	filter := issueFilter(q)

	var sortOptions bson.D
	switch q.Sort {
	case SortOldest:
		sortOptions = bson.D{{Key: "createdAt", Value: 1}}
	case SortUpvotes:
		sortOptions = bson.D{{Key: "upvoteCount", Value: -1}, {Key: "createdAt", Value: -1}}
	default:
		sortOptions = bson.D{{Key: "createdAt", Value: -1}}
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count issues: %w", err)
	}

	findOptions := options.Find().SetSort(sortOptions).SetSkip(q.skip())
	if q.Limit > 0 {
		findOptions.SetLimit(int64(q.Limit))
	}
	cursor, err := s.coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("find issues: %w", err)
	}
	defer cursor.Close(ctx)

	issues := []*models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, 0, fmt.Errorf("decode issues: %w", err)
	}
	return issues, total, nil
}

func (s *IssueStore) missingOr(ctx context.Context, id primitive.ObjectID, otherwise error) error {
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("check issue: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return otherwise
}

// CompareAndSwap writes the workflow fields of issue if the stored version
// still equals expected.
func (s *IssueStore) CompareAndSwap(ctx context.Context, issue *models.Issue, expected int64) error {
	set := bson.M{
		"title":                   issue.Title,
		"description":             issue.Description,
		"status":                  issue.Status,
		"priority":                issue.Priority,
		"tags":                    issue.Tags,
		"assignedTo":              issue.AssignedTo,
		"slaDeadline":             issue.SLADeadline,
		"resolvedAt":              issue.ResolvedAt,
		"resolutionNotes":         issue.ResolutionNotes,
		"resolutionCreditAwarded": issue.ResolutionCreditAwarded,
		"aiPrediction":            issue.AIPrediction,
		"updatedAt":               issue.UpdatedAt,
		"version":                 expected + 1,
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": issue.ID, "version": expected}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	if res.MatchedCount == 0 {
		return s.missingOr(ctx, issue.ID, ErrConflict)
	}
	issue.Version = expected + 1
	return nil
}

// ToggleUpvote flips voter's membership in the upvote set and recomputes
// upvoteCount inside one pipeline update, so the pair cannot drift even when
// toggles on the same issue race.
func (s *IssueStore) ToggleUpvote(ctx context.Context, id, voter primitive.ObjectID, at time.Time) (*models.Issue, bool, error) {
	current := bson.M{"$ifNull": bson.A{"$upvotes", bson.A{}}}
	hasVoted := bson.M{"$in": bson.A{voter, bson.M{"$map": bson.M{"input": current, "as": "u", "in": "$$u.voter"}}}}

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"upvotes": bson.M{"$cond": bson.A{
				hasVoted,
				bson.M{"$filter": bson.M{"input": current, "as": "u", "cond": bson.M{"$ne": bson.A{"$$u.voter", voter}}}},
				bson.M{"$concatArrays": bson.A{current, bson.A{bson.M{"voter": voter, "votedAt": at}}}},
			}},
			"updatedAt": at,
		}}},
		{{Key: "$set", Value: bson.M{"upvoteCount": bson.M{"$size": "$upvotes"}}}},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var issue models.Issue
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline, opts).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("toggle upvote: %w", err)
	}
	return &issue, issue.HasUpvoteFrom(voter), nil
}

func (s *IssueStore) AppendComment(ctx context.Context, id primitive.ObjectID, c models.Comment) (*models.Issue, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$push": bson.M{"comments": c},
		"$set":  bson.M{"updatedAt": c.CreatedAt},
	}
	var issue models.Issue
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("append comment: %w", err)
	}
	return &issue, nil
}

func (s *IssueStore) SetEnrichment(ctx context.Context, id primitive.ObjectID, e Enrichment) error {
	set := bson.M{"aiPrediction": e.Prediction, "tags": append([]string{}, e.Tags...)}
	if e.Priority != "" {
		set["priority"] = e.Priority
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("set enrichment: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *IssueStore) ReporterStats(ctx context.Context, reporter primitive.ObjectID) (ReporterStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"reportedBy": reporter}}},
		{{Key: "$group", Value: bson.M{
			"_id":      nil,
			"reported": bson.M{"$sum": 1},
			"upvotes":  bson.M{"$sum": "$upvoteCount"},
			"resolved": bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$status", models.StatusResolved}}, 1, 0}}},
			"open": bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$in": bson.A{"$status", bson.A{
				models.StatusPending, models.StatusVerified, models.StatusAssigned, models.StatusInProgress,
			}}}, 1, 0}}},
			"verified": bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$in": bson.A{"$status", bson.A{
				models.StatusVerified, models.StatusAssigned, models.StatusInProgress, models.StatusResolved,
			}}}, 1, 0}}},
		}}},
	}
	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return ReporterStats{}, fmt.Errorf("aggregate reporter stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Reported int64 `bson:"reported"`
		Upvotes  int64 `bson:"upvotes"`
		Resolved int64 `bson:"resolved"`
		Open     int64 `bson:"open"`
		Verified int64 `bson:"verified"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return ReporterStats{}, fmt.Errorf("decode reporter stats: %w", err)
	}
	if len(rows) == 0 {
		return ReporterStats{}, nil
	}
	r := rows[0]
	return ReporterStats{Reported: r.Reported, Resolved: r.Resolved, Open: r.Open, Verified: r.Verified, UpvotesReceived: r.Upvotes}, nil
}

func (s *IssueStore) groupCounts(ctx context.Context, match bson.M, field string) (map[string]int64, error) {
	cursor, err := s.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("group by %s: %w", field, err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode %s groups: %w", field, err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Count
	}
	return out, nil
}

// Stats runs the count and the three group-bys concurrently.
func (s *IssueStore) Stats(ctx context.Context, q ListQuery) (IssueStats, error) {
	match := issueFilter(q)
	var st IssueStats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.Total, err = s.coll.CountDocuments(gctx, match)
		return err
	})
	g.Go(func() (err error) {
		st.ByStatus, err = s.groupCounts(gctx, match, "status")
		return err
	})
	g.Go(func() (err error) {
		st.ByCategory, err = s.groupCounts(gctx, match, "category")
		return err
	})
	g.Go(func() (err error) {
		st.ByPriority, err = s.groupCounts(gctx, match, "priority")
		return err
	})
	if err := g.Wait(); err != nil {
		return IssueStats{}, err
	}
	return st, nil
}
