package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-be/lifecycle"
	"civicsync-be/models"
	"civicsync-be/scope"
)

// MemoryIssueStore keeps issues in a map. Every method copies on the way in
// and out so callers never share state with the store.
type MemoryIssueStore struct {
	mu     sync.RWMutex
	issues map[primitive.ObjectID]*models.Issue
}

func NewMemoryIssueStore() *MemoryIssueStore {
	return &MemoryIssueStore{issues: make(map[primitive.ObjectID]*models.Issue)}
}

func (s *MemoryIssueStore) Insert(_ context.Context, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if _, ok := s.issues[issue.ID]; ok {
		return ErrDuplicate
	}
	initIssueSlices(issue)
	issue.Version = 1
	s.issues[issue.ID] = issue.Clone()
	return nil
}

func (s *MemoryIssueStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issue, ok := s.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	return issue.Clone(), nil
}

func matchesQuery(issue *models.Issue, q ListQuery) bool {
	if !q.Scope.Matches(issue) {
		return false
	}
	if !(scope.Predicate{Department: q.Department, Pincode: q.Pincode}).Matches(issue) {
		return false
	}
	if q.Status != "" && issue.Status != q.Status {
		return false
	}
	if len(q.Statuses) > 0 {
		found := false
		for _, st := range q.Statuses {
			if issue.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Category != "" && issue.Category != q.Category {
		return false
	}
	if q.Priority != "" && issue.Priority != q.Priority {
		return false
	}
	if q.ReportedBy != nil && issue.ReportedBy != *q.ReportedBy {
		return false
	}
	if q.Since != nil && issue.CreatedAt.Before(*q.Since) {
		return false
	}
	return true
}

func (s *MemoryIssueStore) List(_ context.Context, q ListQuery) ([]*models.Issue, int64, error) {
	s.mu.RLock()
	var matched []*models.Issue
	for _, issue := range s.issues {
		if matchesQuery(issue, q) {
			matched = append(matched, issue.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch q.Sort {
		case SortOldest:
			return a.CreatedAt.Before(b.CreatedAt)
		case SortUpvotes:
			if a.UpvoteCount != b.UpvoteCount {
				return a.UpvoteCount > b.UpvoteCount
			}
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	total := int64(len(matched))
	start := q.skip()
	if start >= total {
		return []*models.Issue{}, total, nil
	}
	end := total
	if q.Limit > 0 && start+int64(q.Limit) < total {
		end = start + int64(q.Limit)
	}
	return matched[start:end], total, nil
}

// CompareAndSwap writes the workflow fields of issue if the stored version
// still equals expected. Upvotes and comments have their own atomic writers
// and are not touched; department and postal code never change.
func (s *MemoryIssueStore) CompareAndSwap(_ context.Context, issue *models.Issue, expected int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.issues[issue.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != expected {
		return ErrConflict
	}
	next := stored.Clone()
	src := issue.Clone()
	next.Title = src.Title
	next.Description = src.Description
	next.Status = src.Status
	next.Priority = src.Priority
	next.Tags = src.Tags
	next.AssignedTo = src.AssignedTo
	next.SLADeadline = src.SLADeadline
	next.ResolvedAt = src.ResolvedAt
	next.ResolutionNotes = src.ResolutionNotes
	next.ResolutionCreditAwarded = src.ResolutionCreditAwarded
	next.AIPrediction = src.AIPrediction
	next.UpdatedAt = src.UpdatedAt
	next.Version = expected + 1
	s.issues[issue.ID] = next
	issue.Version = next.Version
	return nil
}

func (s *MemoryIssueStore) ToggleUpvote(_ context.Context, id, voter primitive.ObjectID, at time.Time) (*models.Issue, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.issues[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	added := lifecycle.ToggleUpvote(stored, voter, at)
	return stored.Clone(), added, nil
}

func (s *MemoryIssueStore) AppendComment(_ context.Context, id primitive.ObjectID, c models.Comment) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	lifecycle.AppendComment(stored, c)
	return stored.Clone(), nil
}

func (s *MemoryIssueStore) SetEnrichment(_ context.Context, id primitive.ObjectID, e Enrichment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.issues[id]
	if !ok {
		return ErrNotFound
	}
	p := e.Prediction
	stored.AIPrediction = &p
	stored.Tags = append([]string{}, e.Tags...)
	if e.Priority != "" {
		stored.Priority = e.Priority
	}
	return nil
}

func (s *MemoryIssueStore) ReporterStats(_ context.Context, reporter primitive.ObjectID) (ReporterStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st ReporterStats
	for _, issue := range s.issues {
		if issue.ReportedBy != reporter {
			continue
		}
		st.Reported++
		st.UpvotesReceived += int64(issue.UpvoteCount)
		if issue.Status == models.StatusResolved {
			st.Resolved++
		}
		if isOpenStatus(issue.Status) {
			st.Open++
		}
		if isVerifiedOrLater(issue.Status) {
			st.Verified++
		}
	}
	return st, nil
}

func (s *MemoryIssueStore) Stats(_ context.Context, q ListQuery) (IssueStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := IssueStats{ByStatus: map[string]int64{}, ByCategory: map[string]int64{}, ByPriority: map[string]int64{}}
	for _, issue := range s.issues {
		if !matchesQuery(issue, q) {
			continue
		}
		st.Total++
		st.ByStatus[string(issue.Status)]++
		st.ByCategory[string(issue.Category)]++
		st.ByPriority[string(issue.Priority)]++
	}
	return st, nil
}

// MemoryUserStore keeps users in a map.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]*models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[primitive.ObjectID]*models.User)}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Badges = append([]models.Badge{}, u.Badges...)
	c.CreditLedger = append([]models.CreditEntry(nil), u.CreditLedger...)
	return &c
}

func (s *MemoryUserStore) Insert(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	for _, existing := range s.users {
		if existing.ID == u.ID ||
			(u.AadharNumber != "" && existing.AadharNumber == u.AadharNumber) ||
			(u.OfficerID != "" && existing.OfficerID == u.OfficerID) {
			return ErrDuplicate
		}
	}
	if u.Badges == nil {
		u.Badges = []models.Badge{}
	}
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryUserStore) FindByLogin(_ context.Context, role models.Role, loginID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Role != role {
			continue
		}
		if (role == models.RoleCitizen && u.AadharNumber == loginID) || (role != models.RoleCitizen && u.OfficerID == loginID) {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) List(_ context.Context, f UserFilter) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.User{}
	for _, u := range s.users {
		if f.matches(u) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryUserStore) FindOfficers(ctx context.Context, dept models.Department, pincode string) ([]*models.User, error) {
	return s.List(ctx, UserFilter{Role: models.RoleOfficer, Department: dept, Pincode: pincode})
}

func (s *MemoryUserStore) Count(_ context.Context, f UserFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, u := range s.users {
		if f.matches(u) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryUserStore) ApplyCredit(_ context.Context, userID primitive.ObjectID, entry models.CreditEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return false, ErrNotFound
	}
	for _, e := range u.CreditLedger {
		if e.EventKey == entry.EventKey {
			return false, nil
		}
	}
	u.CivicCredits += entry.Amount
	u.CreditLedger = append(u.CreditLedger, entry)
	return true, nil
}

func (s *MemoryUserStore) Debit(_ context.Context, userID primitive.ObjectID, cost int64, entry models.CreditEntry) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, false, ErrNotFound
	}
	if u.CivicCredits < cost {
		return u.CivicCredits, false, nil
	}
	u.CivicCredits -= cost
	u.CreditLedger = append(u.CreditLedger, entry)
	return u.CivicCredits, true, nil
}

func (s *MemoryUserStore) AddBadges(_ context.Context, userID primitive.ObjectID, badges []models.Badge) ([]models.Badge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	var added []models.Badge
	for _, b := range badges {
		if u.HasBadge(b.Name) {
			continue
		}
		u.Badges = append(u.Badges, b)
		added = append(added, b)
	}
	return added, nil
}

func (s *MemoryUserStore) SetAccountStatus(_ context.Context, id primitive.ObjectID, from, to models.AccountStatus, reason string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.AccountStatus != from {
		return nil, ErrConflict
	}
	u.AccountStatus = to
	u.RejectionReason = reason
	u.UpdatedAt = time.Now()
	return cloneUser(u), nil
}

func (s *MemoryUserStore) Update(_ context.Context, id primitive.ObjectID, upd UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Phone != nil {
		u.Phone = *upd.Phone
	}
	if upd.Department != nil {
		u.Department = *upd.Department
	}
	if upd.Pincode != nil {
		u.Pincode = *upd.Pincode
	}
	if upd.Address != nil {
		u.Address = *upd.Address
	}
	if upd.Password != nil {
		u.Password = *upd.Password
	}
	u.UpdatedAt = time.Now()
	return cloneUser(u), nil
}

func (s *MemoryUserStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// MemoryNotificationStore keeps notifications in insertion order.
type MemoryNotificationStore struct {
	mu    sync.RWMutex
	items []*models.Notification
}

func NewMemoryNotificationStore() *MemoryNotificationStore {
	return &MemoryNotificationStore{}
}

func (s *MemoryNotificationStore) Insert(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	c := *n
	s.items = append(s.items, &c)
	return nil
}

func (s *MemoryNotificationStore) ListForUser(_ context.Context, user primitive.ObjectID, limit int) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Notification{}
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].User != user {
			continue
		}
		c := *s.items[i]
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryNotificationStore) MarkRead(_ context.Context, id, user primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.items {
		if n.ID == id && n.User == user {
			n.IsRead = true
			return nil
		}
	}
	return ErrNotFound
}

// MemoryProfileRequestStore keeps profile update requests in insertion order.
type MemoryProfileRequestStore struct {
	mu    sync.RWMutex
	items []*models.ProfileUpdateRequest
}

func NewMemoryProfileRequestStore() *MemoryProfileRequestStore {
	return &MemoryProfileRequestStore{}
}

func cloneRequest(r *models.ProfileUpdateRequest) *models.ProfileUpdateRequest {
	c := *r
	if r.ReviewedBy != nil {
		by := *r.ReviewedBy
		c.ReviewedBy = &by
	}
	if r.ReviewedAt != nil {
		at := *r.ReviewedAt
		c.ReviewedAt = &at
	}
	return &c
}

func (s *MemoryProfileRequestStore) Insert(_ context.Context, r *models.ProfileUpdateRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Status == models.RequestPending {
		for _, existing := range s.items {
			if existing.User == r.User && existing.Status == models.RequestPending {
				return ErrDuplicate
			}
		}
	}
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	s.items = append(s.items, cloneRequest(r))
	return nil
}

func (s *MemoryProfileRequestStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.ProfileUpdateRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.items {
		if r.ID == id {
			return cloneRequest(r), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryProfileRequestStore) FindPending(_ context.Context, user primitive.ObjectID) (*models.ProfileUpdateRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.items {
		if r.User == user && r.Status == models.RequestPending {
			return cloneRequest(r), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryProfileRequestStore) ListPending(_ context.Context) ([]*models.ProfileUpdateRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.ProfileUpdateRequest{}
	for _, r := range s.items {
		if r.Status == models.RequestPending {
			out = append(out, cloneRequest(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryProfileRequestStore) SetStatus(_ context.Context, id primitive.ObjectID, from, to models.RequestStatus, review RequestReview) (*models.ProfileUpdateRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.items {
		if r.ID != id {
			continue
		}
		if r.Status != from {
			return nil, ErrConflict
		}
		r.Status = to
		if review.By.IsZero() {
			r.ReviewedBy, r.ReviewedAt, r.RejectionReason = nil, nil, ""
		} else {
			by, at := review.By, review.At
			r.ReviewedBy, r.ReviewedAt, r.RejectionReason = &by, &at, review.Reason
		}
		r.UpdatedAt = time.Now()
		return cloneRequest(r), nil
	}
	return nil, ErrNotFound
}
