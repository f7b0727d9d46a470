package store

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-be/models"
	"civicsync-be/scope"
)

type issueBackend interface {
	Insert(ctx context.Context, issue *models.Issue) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	List(ctx context.Context, q ListQuery) ([]*models.Issue, int64, error)
	CompareAndSwap(ctx context.Context, issue *models.Issue, expected int64) error
	ToggleUpvote(ctx context.Context, id, voter primitive.ObjectID, at time.Time) (*models.Issue, bool, error)
	AppendComment(ctx context.Context, id primitive.ObjectID, c models.Comment) (*models.Issue, error)
	SetEnrichment(ctx context.Context, id primitive.ObjectID, e Enrichment) error
	ReporterStats(ctx context.Context, reporter primitive.ObjectID) (ReporterStats, error)
	Stats(ctx context.Context, q ListQuery) (IssueStats, error)
}

type userBackend interface {
	Insert(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByLogin(ctx context.Context, role models.Role, loginID string) (*models.User, error)
	List(ctx context.Context, f UserFilter) ([]*models.User, error)
	FindOfficers(ctx context.Context, dept models.Department, pincode string) ([]*models.User, error)
	Count(ctx context.Context, f UserFilter) (int64, error)
	ApplyCredit(ctx context.Context, userID primitive.ObjectID, entry models.CreditEntry) (bool, error)
	Debit(ctx context.Context, userID primitive.ObjectID, cost int64, entry models.CreditEntry) (int64, bool, error)
	AddBadges(ctx context.Context, userID primitive.ObjectID, badges []models.Badge) ([]models.Badge, error)
	SetAccountStatus(ctx context.Context, id primitive.ObjectID, from, to models.AccountStatus, reason string) (*models.User, error)
	Update(ctx context.Context, id primitive.ObjectID, upd UserUpdate) (*models.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type inboxBackend interface {
	Insert(ctx context.Context, n *models.Notification) error
	ListForUser(ctx context.Context, user primitive.ObjectID, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id, user primitive.ObjectID) error
}

type profileRequestBackend interface {
	Insert(ctx context.Context, r *models.ProfileUpdateRequest) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.ProfileUpdateRequest, error)
	FindPending(ctx context.Context, user primitive.ObjectID) (*models.ProfileUpdateRequest, error)
	ListPending(ctx context.Context) ([]*models.ProfileUpdateRequest, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, from, to models.RequestStatus, review RequestReview) (*models.ProfileUpdateRequest, error)
}

type backends struct {
	issues   issueBackend
	users    userBackend
	inbox    inboxBackend
	requests profileRequestBackend
}

// storeContractSuite holds the behaviour every store implementation shares.
type storeContractSuite struct {
	suite.Suite
	ctx     context.Context
	factory func() backends
	backends
}

func (s *storeContractSuite) SetupTest() {
	s.ctx = context.Background()
	s.backends = s.factory()
}

func (s *storeContractSuite) issue(dept models.Department, pincode string, reporter primitive.ObjectID) *models.Issue {
	i := &models.Issue{
		Title:      "Broken " + string(dept),
		Category:   models.Other,
		Department: dept,
		Priority:   models.PriorityMedium,
		Status:     models.StatusPending,
		Location:   models.Location{Type: "Point", Coordinates: []float64{77.2, 28.6}, Pincode: pincode},
		ReportedBy: reporter,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	s.Require().NoError(s.issues.Insert(s.ctx, i))
	return i
}

func (s *storeContractSuite) citizen(aadhar, pincode string) *models.User {
	u := &models.User{Name: "c" + aadhar, Role: models.RoleCitizen, AadharNumber: aadhar, Pincode: pincode, AccountStatus: models.AccountPending, CreatedAt: time.Now().UTC()}
	s.Require().NoError(s.users.Insert(s.ctx, u))
	return u
}

func (s *storeContractSuite) TestInsertInitialisesIssue() {
	i := s.issue(models.DeptWater, "110001", primitive.NewObjectID())
	got, err := s.issues.FindByID(s.ctx, i.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), got.Version)
	s.NotNil(got.Upvotes)
	s.Zero(got.UpvoteCount)

	_, err = s.issues.FindByID(s.ctx, primitive.NewObjectID())
	s.ErrorIs(err, ErrNotFound)
}

func (s *storeContractSuite) TestListAppliesScopeAndFilters() {
	reporter := primitive.NewObjectID()
	s.issue(models.DeptWater, "110001", reporter)
	s.issue(models.DeptRoads, "110001", reporter)
	s.issue(models.DeptWater, "110002", primitive.NewObjectID())

	cases := []struct {
		name string
		q    ListQuery
		want int64
	}{
		{"open scope", ListQuery{}, 3},
		{"officer scope", ListQuery{Scope: scope.Predicate{Department: models.DeptWater, Pincode: "110001"}}, 1},
		{"citizen scope", ListQuery{Scope: scope.Predicate{Pincode: "110001"}}, 2},
		{"scope and conflicting pincode filter", ListQuery{Scope: scope.Predicate{Pincode: "110001"}, Pincode: "110002"}, 0},
		{"reporter", ListQuery{ReportedBy: &reporter}, 2},
		{"statuses", ListQuery{Statuses: []models.IssueStatus{models.StatusResolved}}, 0},
		{"paged", ListQuery{Page: 2, Limit: 2}, 3},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			items, total, err := s.issues.List(s.ctx, tc.q)
			s.Require().NoError(err)
			s.Equal(tc.want, total)
			for _, i := range items {
				s.True(tc.q.Scope.Matches(i))
			}
		})
	}

	items, _, err := s.issues.List(s.ctx, ListQuery{Page: 2, Limit: 2})
	s.Require().NoError(err)
	s.Len(items, 1)

	items, total, err := s.issues.List(s.ctx, ListQuery{Page: math.MaxInt, Limit: 20})
	s.Require().NoError(err)
	s.Equal(int64(3), total)
	s.Empty(items)
}

func (s *storeContractSuite) TestCompareAndSwapDetectsStaleVersion() {
	i := s.issue(models.DeptWater, "110001", primitive.NewObjectID())

	first, err := s.issues.FindByID(s.ctx, i.ID)
	s.Require().NoError(err)
	second, err := s.issues.FindByID(s.ctx, i.ID)
	s.Require().NoError(err)

	first.Status = models.StatusVerified
	s.Require().NoError(s.issues.CompareAndSwap(s.ctx, first, 1))
	s.Equal(int64(2), first.Version)

	second.Status = models.StatusRejected
	s.ErrorIs(s.issues.CompareAndSwap(s.ctx, second, 1), ErrConflict)

	missing := &models.Issue{ID: primitive.NewObjectID()}
	s.ErrorIs(s.issues.CompareAndSwap(s.ctx, missing, 1), ErrNotFound)

	got, err := s.issues.FindByID(s.ctx, i.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, got.Status)
}

func (s *storeContractSuite) TestToggleUpvoteKeepsCountInSync() {
	i := s.issue(models.DeptWater, "110001", primitive.NewObjectID())
	voters := make([]primitive.ObjectID, 10)
	for n := range voters {
		voters[n] = primitive.NewObjectID()
	}

	var wg sync.WaitGroup
	for _, v := range voters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, added, err := s.issues.ToggleUpvote(s.ctx, i.ID, v, time.Now().UTC().Truncate(time.Millisecond))
			s.NoError(err)
			s.True(added)
		}()
	}
	wg.Wait()

	got, added, err := s.issues.ToggleUpvote(s.ctx, i.ID, voters[0], time.Now().UTC())
	s.Require().NoError(err)
	s.False(added)
	s.Equal(9, got.UpvoteCount)
	s.Len(got.Upvotes, 9)
	s.False(got.HasUpvoteFrom(voters[0]))

	_, _, err = s.issues.ToggleUpvote(s.ctx, primitive.NewObjectID(), voters[0], time.Now())
	s.ErrorIs(err, ErrNotFound)
}

func (s *storeContractSuite) TestCommentsEnrichmentAndStats() {
	reporter := primitive.NewObjectID()
	i := s.issue(models.DeptWater, "110001", reporter)
	resolved := s.issue(models.DeptWater, "110001", reporter)
	resolved.Status = models.StatusResolved
	s.Require().NoError(s.issues.CompareAndSwap(s.ctx, resolved, 1))

	got, err := s.issues.AppendComment(s.ctx, i.ID, models.Comment{User: reporter, Text: "any update?", CreatedAt: time.Now().UTC()})
	s.Require().NoError(err)
	s.Len(got.Comments, 1)

	s.Require().NoError(s.issues.SetEnrichment(s.ctx, i.ID, Enrichment{
		Prediction: models.AIPrediction{Category: "water", Confidence: 0.8},
		Tags:       []string{"leak"},
		Priority:   models.PriorityHigh,
	}))
	got, err = s.issues.FindByID(s.ctx, i.ID)
	s.Require().NoError(err)
	s.Equal(models.PriorityHigh, got.Priority)
	s.Equal([]string{"leak"}, got.Tags)
	s.Require().NotNil(got.AIPrediction)

	_, _, err = s.issues.ToggleUpvote(s.ctx, i.ID, primitive.NewObjectID(), time.Now().UTC())
	s.Require().NoError(err)

	rs, err := s.issues.ReporterStats(s.ctx, reporter)
	s.Require().NoError(err)
	s.Equal(ReporterStats{Reported: 2, Resolved: 1, Open: 1, Verified: 1, UpvotesReceived: 1}, rs)

	st, err := s.issues.Stats(s.ctx, ListQuery{Scope: scope.Predicate{Pincode: "110001"}})
	s.Require().NoError(err)
	s.Equal(int64(2), st.Total)
	s.Equal(int64(1), st.ByStatus["resolved"])
	s.Equal(int64(1), st.ByPriority["high"])
}

func (s *storeContractSuite) TestUserLookups() {
	c := s.citizen("111111111111", "110001")
	o := &models.User{Name: "o", Role: models.RoleOfficer, OfficerID: "OFF-1", Department: models.DeptWater, Pincode: "110001", AccountStatus: models.AccountApproved}
	s.Require().NoError(s.users.Insert(s.ctx, o))

	s.ErrorIs(s.users.Insert(s.ctx, &models.User{Role: models.RoleCitizen, AadharNumber: "111111111111"}), ErrDuplicate)

	got, err := s.users.FindByLogin(s.ctx, models.RoleCitizen, "111111111111")
	s.Require().NoError(err)
	s.Equal(c.ID, got.ID)
	_, err = s.users.FindByLogin(s.ctx, models.RoleAdmin, "OFF-1")
	s.ErrorIs(err, ErrNotFound)

	officers, err := s.users.FindOfficers(s.ctx, models.DeptWater, "110001")
	s.Require().NoError(err)
	s.Require().Len(officers, 1)
	s.Equal(o.ID, officers[0].ID)

	n, err := s.users.Count(s.ctx, UserFilter{Role: models.RoleCitizen, AccountStatus: models.AccountPending})
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	pin := "110005"
	updated, err := s.users.Update(s.ctx, o.ID, UserUpdate{Pincode: &pin})
	s.Require().NoError(err)
	s.Equal("110005", updated.Pincode)

	s.Require().NoError(s.users.Delete(s.ctx, o.ID))
	s.ErrorIs(s.users.Delete(s.ctx, o.ID), ErrNotFound)
}

func (s *storeContractSuite) TestCreditsAreIdempotentPerEvent() {
	c := s.citizen("222222222222", "110001")
	entry := models.CreditEntry{EventKey: "resolution:x", Reason: "issue_resolved", Amount: 100, CreatedAt: time.Now().UTC()}

	applied, err := s.users.ApplyCredit(s.ctx, c.ID, entry)
	s.Require().NoError(err)
	s.True(applied)
	applied, err = s.users.ApplyCredit(s.ctx, c.ID, entry)
	s.Require().NoError(err)
	s.False(applied)

	_, err = s.users.ApplyCredit(s.ctx, primitive.NewObjectID(), entry)
	s.ErrorIs(err, ErrNotFound)

	balance, ok, err := s.users.Debit(s.ctx, c.ID, 150, models.CreditEntry{EventKey: "claim:a", Amount: -150})
	s.Require().NoError(err)
	s.False(ok)

	balance, ok, err = s.users.Debit(s.ctx, c.ID, 60, models.CreditEntry{EventKey: "claim:b", Amount: -60})
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(int64(40), balance)

	got, err := s.users.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(int64(40), got.CivicCredits)
}

func (s *storeContractSuite) TestBadgesAndAccountStatus() {
	c := s.citizen("333333333333", "110001")
	first := models.Badge{Name: "First Report", Icon: "🚩", EarnedAt: time.Now().UTC().Truncate(time.Millisecond)}

	added, err := s.users.AddBadges(s.ctx, c.ID, []models.Badge{first})
	s.Require().NoError(err)
	s.Len(added, 1)
	added, err = s.users.AddBadges(s.ctx, c.ID, []models.Badge{first})
	s.Require().NoError(err)
	s.Empty(added)

	u, err := s.users.SetAccountStatus(s.ctx, c.ID, models.AccountPending, models.AccountRejected, "Blurry document")
	s.Require().NoError(err)
	s.Equal(models.AccountRejected, u.AccountStatus)
	s.Equal("Blurry document", u.RejectionReason)

	_, err = s.users.SetAccountStatus(s.ctx, c.ID, models.AccountPending, models.AccountApproved, "")
	s.ErrorIs(err, ErrConflict)
	_, err = s.users.SetAccountStatus(s.ctx, primitive.NewObjectID(), models.AccountPending, models.AccountApproved, "")
	s.ErrorIs(err, ErrNotFound)
}

func (s *storeContractSuite) TestInbox() {
	user := primitive.NewObjectID()
	for _, title := range []string{"first", "second", "third"} {
		s.Require().NoError(s.inbox.Insert(s.ctx, &models.Notification{User: user, Title: title, CreatedAt: time.Now().UTC()}))
		time.Sleep(2 * time.Millisecond)
	}
	s.Require().NoError(s.inbox.Insert(s.ctx, &models.Notification{User: primitive.NewObjectID(), Title: "other"}))

	items, err := s.inbox.ListForUser(s.ctx, user, 2)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Equal("third", items[0].Title)

	s.Require().NoError(s.inbox.MarkRead(s.ctx, items[0].ID, user))
	s.ErrorIs(s.inbox.MarkRead(s.ctx, items[0].ID, primitive.NewObjectID()), ErrNotFound)
}

func (s *storeContractSuite) TestProfileRequestsAllowOnePendingPerUser() {
	user := primitive.NewObjectID()
	pending := func(phone string) *models.ProfileUpdateRequest {
		return &models.ProfileUpdateRequest{
			User:             user,
			RequestedChanges: models.ProfileChanges{Phone: phone},
			Status:           models.RequestPending,
			CreatedAt:        time.Now().UTC().Truncate(time.Millisecond),
		}
	}

	first := pending("9000000001")
	s.Require().NoError(s.requests.Insert(s.ctx, first))
	s.ErrorIs(s.requests.Insert(s.ctx, pending("9000000002")), ErrDuplicate)

	got, err := s.requests.FindPending(s.ctx, user)
	s.Require().NoError(err)
	s.Equal(first.ID, got.ID)
	s.Equal("9000000001", got.RequestedChanges.Phone)

	admin := primitive.NewObjectID()
	at := time.Now().UTC().Truncate(time.Millisecond)
	rejected, err := s.requests.SetStatus(s.ctx, first.ID, models.RequestPending, models.RequestRejected, RequestReview{By: admin, Reason: "Unreadable", At: at})
	s.Require().NoError(err)
	s.Equal(models.RequestRejected, rejected.Status)
	s.Require().NotNil(rejected.ReviewedBy)
	s.Equal(admin, *rejected.ReviewedBy)
	s.Equal("Unreadable", rejected.RejectionReason)

	_, err = s.requests.SetStatus(s.ctx, first.ID, models.RequestPending, models.RequestApproved, RequestReview{By: admin, At: at})
	s.ErrorIs(err, ErrConflict)
	_, err = s.requests.SetStatus(s.ctx, primitive.NewObjectID(), models.RequestPending, models.RequestApproved, RequestReview{By: admin, At: at})
	s.ErrorIs(err, ErrNotFound)

	_, err = s.requests.FindPending(s.ctx, user)
	s.ErrorIs(err, ErrNotFound)
	// A reviewed request frees the slot for a new one.
	s.Require().NoError(s.requests.Insert(s.ctx, pending("9000000003")))
}

func (s *storeContractSuite) TestProfileRequestReviewCanBeUndone() {
	r := &models.ProfileUpdateRequest{User: primitive.NewObjectID(), RequestedChanges: models.ProfileChanges{Pincode: "110002"}, Status: models.RequestPending, CreatedAt: time.Now().UTC()}
	s.Require().NoError(s.requests.Insert(s.ctx, r))

	_, err := s.requests.SetStatus(s.ctx, r.ID, models.RequestPending, models.RequestApproved, RequestReview{By: primitive.NewObjectID(), At: time.Now().UTC()})
	s.Require().NoError(err)
	back, err := s.requests.SetStatus(s.ctx, r.ID, models.RequestApproved, models.RequestPending, RequestReview{})
	s.Require().NoError(err)
	s.Equal(models.RequestPending, back.Status)
	s.Nil(back.ReviewedBy)
	s.Nil(back.ReviewedAt)

	got, err := s.requests.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.RequestPending, got.Status)
	_, err = s.requests.FindByID(s.ctx, primitive.NewObjectID())
	s.ErrorIs(err, ErrNotFound)
}

func (s *storeContractSuite) TestListPendingProfileRequestsNewestFirst() {
	base := time.Now().UTC().Truncate(time.Millisecond)
	var ids []primitive.ObjectID
	for i := 0; i < 3; i++ {
		r := &models.ProfileUpdateRequest{User: primitive.NewObjectID(), RequestedChanges: models.ProfileChanges{Address: "Block " + string(rune('A'+i))}, Status: models.RequestPending, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		s.Require().NoError(s.requests.Insert(s.ctx, r))
		ids = append(ids, r.ID)
	}
	_, err := s.requests.SetStatus(s.ctx, ids[1], models.RequestPending, models.RequestApproved, RequestReview{By: primitive.NewObjectID(), At: base})
	s.Require().NoError(err)

	items, err := s.requests.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Equal(ids[2], items[0].ID)
	s.Equal(ids[0], items[1].ID)
}

func (s *storeContractSuite) TestUserUpdateSetsAddress() {
	c := s.citizen("444444444444", "110001")
	address := "12 Ring Road"
	u, err := s.users.Update(s.ctx, c.ID, UserUpdate{Address: &address})
	s.Require().NoError(err)
	s.Equal(address, u.Address)
	s.Equal("110001", u.Pincode)
}
