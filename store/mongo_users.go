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

// UserStore is the MongoDB-backed users collection. Balance changes are
// single-document updates so concurrent awards never lose an increment.
type UserStore struct {
	coll *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{coll: db.Collection("users")}
}

func (s *UserStore) Insert(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.Badges == nil {
		u.Badges = []models.Badge{}
	}
	if _, err := s.coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// FindByLogin looks citizens up by Aadhaar number and staff by officer id.
func (s *UserStore) FindByLogin(ctx context.Context, role models.Role, loginID string) (*models.User, error) {
	if role == models.RoleCitizen {
		return s.findOne(ctx, bson.M{"role": role, "aadharNumber": loginID})
	}
	return s.findOne(ctx, bson.M{"role": role, "officerId": loginID})
}

func userFilter(f UserFilter) bson.M {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.AccountStatus != "" {
		filter["accountStatus"] = f.AccountStatus
	}
	if f.Department != "" {
		filter["department"] = f.Department
	}
	if f.Pincode != "" {
		filter["pincode"] = f.Pincode
	}
	return filter
}

func (s *UserStore) List(ctx context.Context, f UserFilter) ([]*models.User, error) {
	filter := userFilter(f)
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"password": 0, "creditLedger": 0})
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []*models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (s *UserStore) FindOfficers(ctx context.Context, dept models.Department, pincode string) ([]*models.User, error) {
	return s.List(ctx, UserFilter{Role: models.RoleOfficer, Department: dept, Pincode: pincode})
}

func (s *UserStore) Count(ctx context.Context, f UserFilter) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, userFilter(f))
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *UserStore) exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return n > 0, nil
}

// ApplyCredit increments the balance and records entry in one update that
// only matches while the event key is absent from the ledger.
func (s *UserStore) ApplyCredit(ctx context.Context, userID primitive.ObjectID, entry models.CreditEntry) (bool, error) {
	filter := bson.M{"_id": userID, "creditLedger.eventKey": bson.M{"$ne": entry.EventKey}}
	update := bson.M{
		"$inc":  bson.M{"civicCredits": entry.Amount},
		"$push": bson.M{"creditLedger": entry},
		"$set":  bson.M{"updatedAt": entry.CreatedAt},
	}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("apply credit: %w", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	ok, err := s.exists(ctx, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrNotFound
	}
	return false, nil
}

// Debit subtracts cost only while the balance covers it.
func (s *UserStore) Debit(ctx context.Context, userID primitive.ObjectID, cost int64, entry models.CreditEntry) (int64, bool, error) {
	filter := bson.M{"_id": userID, "civicCredits": bson.M{"$gte": cost}}
	update := bson.M{
		"$inc":  bson.M{"civicCredits": -cost},
		"$push": bson.M{"creditLedger": entry},
		"$set":  bson.M{"updatedAt": entry.CreatedAt},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"civicCredits": 1})
	var u models.User
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&u)
	if err == nil {
		return u.CivicCredits, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, fmt.Errorf("debit credits: %w", err)
	}
	ok, err := s.exists(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, ErrNotFound
	}
	return 0, false, nil
}

// AddBadges pushes each badge only if no badge with that name is present.
func (s *UserStore) AddBadges(ctx context.Context, userID primitive.ObjectID, badges []models.Badge) ([]models.Badge, error) {
	var added []models.Badge
	for _, b := range badges {
		res, err := s.coll.UpdateOne(ctx,
			bson.M{"_id": userID, "badges.name": bson.M{"$ne": b.Name}},
			bson.M{"$push": bson.M{"badges": b}},
		)
		if err != nil {
			return added, fmt.Errorf("add badge %s: %w", b.Name, err)
		}
		if res.ModifiedCount == 1 {
			added = append(added, b)
		}
	}
	return added, nil
}

func (s *UserStore) SetAccountStatus(ctx context.Context, id primitive.ObjectID, from, to models.AccountStatus, reason string) (*models.User, error) {
	set := bson.M{"accountStatus": to, "rejectionReason": reason, "updatedAt": time.Now()}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id, "accountStatus": from}, bson.M{"$set": set}, opts).Decode(&u)
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("set account status: %w", err)
	}
	ok, err := s.exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return nil, ErrConflict
}

func (s *UserStore) Update(ctx context.Context, id primitive.ObjectID, upd UserUpdate) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now()}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Phone != nil {
		set["phone"] = *upd.Phone
	}
	if upd.Department != nil {
		set["department"] = *upd.Department
	}
	if upd.Pincode != nil {
		set["pincode"] = *upd.Pincode
	}
	if upd.Address != nil {
		set["address"] = *upd.Address
	}
	if upd.Password != nil {
		set["password"] = *upd.Password
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
