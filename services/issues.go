package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-be/ai"
	"civicsync-be/apperrors"
	"civicsync-be/badges"
	"civicsync-be/cache"
	"civicsync-be/credits"
	"civicsync-be/lifecycle"
	"civicsync-be/models"
	"civicsync-be/scope"
	"civicsync-be/store"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPage         = 100000

	maxCommentLength = 1000
	maxCASAttempts   = 5
)

type IssueService struct {
	base
	issues IssueStore
	users  UserStore
	ledger *credits.Ledger
}

func NewIssueService(issues IssueStore, users UserStore, ledger *credits.Ledger, opts ...Option) (*IssueService, error) {
	if issues == nil {
		return nil, errors.New("issue store is required")
	}
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if ledger == nil {
		return nil, errors.New("credit ledger is required")
	}
	return &IssueService{base: newBase(opts), issues: issues, users: users, ledger: ledger}, nil
}

type CreateIssueInput struct {
	Title       string
	Description string
	Category    string
	Department  string
	Priority    string
	Location    models.Location
}

// CreateIssue records a new issue reported by an approved citizen.
func (s *IssueService) CreateIssue(ctx context.Context, principal *models.User, in CreateIssueInput) (*models.Issue, error) {
	if err := requireRole(principal, "Only citizens can report issues", models.RoleCitizen); err != nil {
		return nil, err
	}
	if principal.AccountStatus != models.AccountApproved {
		return nil, apperrors.Denied("Your account is pending approval")
	}

	issue, err := s.buildIssue(principal, in)
	if err != nil {
		return nil, err
	}
	if err := s.issues.Insert(ctx, issue); err != nil {
		return nil, storeErr(err, "Issue")
	}
	s.logger.Info("issue reported",
		"issue", issue.ID.Hex(),
		"department", string(issue.Department),
		"pincode", issue.Location.Pincode,
	)
	s.metrics.IssueCreated()

	s.enrich(ctx, issue)
	s.notifyOfficers(ctx, issue)
	s.evaluateBadges(ctx, issue.ReportedBy)
	s.cache.Invalidate(ctx)
	return issue, nil
}

func (s *IssueService) buildIssue(principal *models.User, in CreateIssueInput) (*models.Issue, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		return nil, apperrors.Validation("Title and description are required")
	}
	category := models.IssueCategory(strings.ToLower(strings.TrimSpace(in.Category)))
	if !category.Valid() {
		return nil, apperrors.Validation("Invalid category")
	}
	dept, ok := models.ParseDepartment(in.Department)
	if !ok {
		return nil, apperrors.Validation("Invalid department")
	}
	priority := models.PriorityMedium
	if in.Priority != "" {
		priority = models.Priority(strings.ToLower(strings.TrimSpace(in.Priority)))
		if !priority.Valid() {
			return nil, apperrors.Validation("Invalid priority")
		}
	}
	loc := in.Location
	loc.Pincode = strings.TrimSpace(loc.Pincode)
	if loc.Pincode == "" {
		return nil, apperrors.Validation("Location pincode is required")
	}
	if len(loc.Coordinates) != 0 && len(loc.Coordinates) != 2 {
		return nil, apperrors.Validation("Location coordinates must be [longitude, latitude]")
	}
	if loc.Type == "" {
		loc.Type = "Point"
	}

	now := s.now()
	return &models.Issue{
		Title:       title,
		Description: description,
		Category:    category,
		Department:  dept,
		Priority:    priority,
		Status:      models.StatusPending,
		Location:    loc,
		ReportedBy:  principal.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// enrich asks the analysis service about issue and stores the annotation.
// Any failure leaves the issue as reported.
func (s *IssueService) enrich(ctx context.Context, issue *models.Issue) {
	if s.analyzer == nil {
		return
	}
	res, err := s.analyzer.Analyze(ctx, ai.AnalyzeRequest{
		IssueID:     issue.ID.Hex(),
		Title:       issue.Title,
		Description: issue.Description,
		Category:    string(issue.Category),
		Location: ai.Location{
			Type:        issue.Location.Type,
			Coordinates: issue.Location.Coordinates,
			Address:     issue.Location.Address,
		},
	})
	if err != nil {
		s.metrics.EnrichmentFailed()
		s.logger.Warn("issue enrichment failed", "issue", issue.ID.Hex(), "error", err)
		return
	}

	e := store.Enrichment{
		Prediction: models.AIPrediction{
			Category:                res.PredictedCategory,
			Confidence:              res.Confidence,
			IsDuplicate:             res.IsDuplicate,
			Similarity:              res.Similarity,
			PriorityScore:           res.PriorityScore,
			EstimatedResolutionTime: res.EstimatedResolutionTime,
			PredictedAt:             s.now(),
		},
		Tags: res.Tags,
	}
	if res.DuplicateOf != nil {
		if dup, err := primitive.ObjectIDFromHex(*res.DuplicateOf); err == nil {
			e.Prediction.DuplicateOf = &dup
		}
	}
	if p := models.Priority(strings.ToLower(res.Priority)); p.Valid() {
		e.Prediction.Priority = p
		e.Priority = p
	}

	if err := s.issues.SetEnrichment(ctx, issue.ID, e); err != nil {
		s.metrics.EnrichmentFailed()
		s.logger.Warn("failed to store issue enrichment", "issue", issue.ID.Hex(), "error", err)
		return
	}
	prediction := e.Prediction
	issue.AIPrediction = &prediction
	issue.Tags = append([]string{}, e.Tags...)
	if e.Priority != "" {
		issue.Priority = e.Priority
	}
}

func (s *IssueService) notifyOfficers(ctx context.Context, issue *models.Issue) {
	officers, err := s.users.FindOfficers(ctx, issue.Department, issue.Location.Pincode)
	if err != nil {
		s.metrics.NotificationFailed()
		s.logger.Error("failed to look up officers to notify", "issue", issue.ID.Hex(), "error", err)
		return
	}
	for _, o := range officers {
		s.notifier.Notify(ctx, o.ID,
			"New Issue Reported",
			fmt.Sprintf("A new %s issue has been reported in your area: %s", issue.Category, issue.Title),
			models.NotifyNewIssue,
			map[string]string{"issueId": issue.ID.Hex()},
		)
	}
}

// evaluateBadges awards any badges the citizen newly qualifies for.
func (s *IssueService) evaluateBadges(ctx context.Context, userID primitive.ObjectID) {
	awardBadges(ctx, s.base, s.issues, s.users, userID)
}

func awardBadges(ctx context.Context, b base, issues IssueStore, users UserStore, userID primitive.ObjectID) {
	citizen, err := users.FindByID(ctx, userID)
	if err != nil {
		b.logger.Warn("badge evaluation skipped", "user", userID.Hex(), "error", err)
		return
	}
	if citizen.Role != models.RoleCitizen {
		return
	}
	st, err := issues.ReporterStats(ctx, userID)
	if err != nil {
		b.logger.Warn("badge evaluation skipped", "user", userID.Hex(), "error", err)
		return
	}
	earned := badges.Evaluate(citizen, badges.Counters{
		Reported:        st.Reported,
		Resolved:        st.Resolved,
		UpvotesReceived: st.UpvotesReceived,
		Balance:         citizen.CivicCredits,
	}, b.now())
	if len(earned) == 0 {
		return
	}
	added, err := users.AddBadges(ctx, userID, earned)
	if err != nil {
		b.logger.Error("failed to store badges", "user", userID.Hex(), "error", err)
	}
	for _, badge := range added {
		b.notifier.Notify(ctx, userID,
			"Badge Earned!",
			fmt.Sprintf("Congratulations! You earned the %s badge %s", badge.Name, badge.Icon),
			models.NotifyBadge,
			map[string]string{"badge": badge.Name},
		)
	}
}

func (s *IssueService) load(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Issue")
	}
	return issue, nil
}

// GetIssue returns one issue if the principal's scope admits it.
func (s *IssueService) GetIssue(ctx context.Context, principal *models.User, id primitive.ObjectID) (*models.Issue, error) {
	sc, err := scope.Resolve(principal)
	if err != nil {
		return nil, err
	}
	issue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := scope.Check(sc, issue, scope.Read); err != nil {
		return nil, err
	}
	return issue, nil
}

// ListParams are the caller's listing filters. Field order is part of the
// cache key.
type ListParams struct {
	Status     string `json:"status,omitempty"`
	Category   string `json:"category,omitempty"`
	Priority   string `json:"priority,omitempty"`
	Department string `json:"department,omitempty"`
	Pincode    string `json:"pincode,omitempty"`
	Sort       string `json:"sort,omitempty"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
}

type IssuePage struct {
	Issues      []*models.Issue `json:"issues"`
	Total       int64           `json:"totalIssues"`
	TotalPages  int             `json:"totalPages"`
	CurrentPage int             `json:"currentPage"`
}

func (p *ListParams) normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	switch p.Sort {
	case store.SortOldest, store.SortUpvotes:
	default:
		p.Sort = store.SortNewest
	}
	p.Pincode = strings.TrimSpace(p.Pincode)
}

func (p ListParams) query(sc scope.Scope) (store.ListQuery, error) {
	q := store.ListQuery{Scope: sc.Predicate(), Sort: p.Sort, Page: p.Page, Limit: p.Limit}
	if p.Page > MaxPage {
		return q, apperrors.Newf(apperrors.CodeValidation, "Page must be at most %d", MaxPage)
	}
	if p.Status != "" && p.Status != "all" {
		st, ok := models.ParseIssueStatus(p.Status)
		if !ok {
			return q, apperrors.Validation("Invalid status")
		}
		q.Status = st
	}
	if p.Category != "" && p.Category != "all" {
		c := models.IssueCategory(p.Category)
		if !c.Valid() {
			return q, apperrors.Validation("Invalid category")
		}
		q.Category = c
	}
	if p.Priority != "" && p.Priority != "all" {
		pr := models.Priority(p.Priority)
		if !pr.Valid() {
			return q, apperrors.Validation("Invalid priority")
		}
		q.Priority = pr
	}
	if p.Department != "" && p.Department != "all" {
		d, ok := models.ParseDepartment(p.Department)
		if !ok {
			return q, apperrors.Validation("Invalid department")
		}
		q.Department = d
	}
	// Scoped viewers are already pinned to their own area.
	if sc.Kind == scope.Unrestricted {
		q.Pincode = p.Pincode
	}
	return q, nil
}

// ListIssues returns a page of the issues visible to principal.
func (s *IssueService) ListIssues(ctx context.Context, principal *models.User, p ListParams) (*IssuePage, error) {
	sc, err := scope.Resolve(principal)
	if err != nil {
		return nil, err
	}
	p.normalize()
	q, err := p.query(sc)
	if err != nil {
		return nil, err
	}

	compute := func(ctx context.Context) (*IssuePage, error) {
		items, total, err := s.issues.List(ctx, q)
		if err != nil {
			return nil, storeErr(err, "Issues")
		}
		return &IssuePage{
			Issues:      items,
			Total:       total,
			TotalPages:  int((total + int64(p.Limit) - 1) / int64(p.Limit)),
			CurrentPage: p.Page,
		}, nil
	}

	key, err := cache.Key(sc.Key(), p)
	if err != nil {
		s.logger.Warn("listing cache key failed", "error", err)
		return compute(ctx)
	}
	return cache.GetOrCompute(ctx, s.cache, key, s.listTTL, compute)
}

type UpvoteResult struct {
	Issue       *models.Issue `json:"issue"`
	Upvoted     bool          `json:"upvoted"`
	UpvoteCount int           `json:"upvoteCount"`
}

// ToggleUpvote adds the principal's upvote, or retracts it if present.
func (s *IssueService) ToggleUpvote(ctx context.Context, principal *models.User, id primitive.ObjectID) (*UpvoteResult, error) {
	if principal == nil {
		return nil, errNotAuthenticated
	}
	sc, err := scope.Resolve(principal)
	if err != nil {
		return nil, err
	}
	issue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := scope.Check(sc, issue, scope.Write); err != nil {
		return nil, err
	}

	at := s.now().Truncate(time.Millisecond)
	updated, added, err := s.issues.ToggleUpvote(ctx, id, principal.ID, at)
	if err != nil {
		return nil, storeErr(err, "Issue")
	}
	s.metrics.Upvote(added)

	if added {
		if _, err := s.ledger.AwardUpvoteCredit(ctx, updated, principal.ID, at); err != nil {
			s.logger.Error("failed to award upvote credit", "issue", id.Hex(), "voter", principal.ID.Hex(), "error", err)
		}
		if updated.ReportedBy != principal.ID {
			s.notifier.Notify(ctx, updated.ReportedBy,
				"Issue Upvoted",
				fmt.Sprintf("%s upvoted your issue: %s. You earned %d CivicCredits!", principal.Name, updated.Title, credits.UpvoteCredit),
				models.NotifyUpvote,
				map[string]string{"issueId": id.Hex()},
			)
		}
		s.evaluateBadges(ctx, updated.ReportedBy)
	}
	s.cache.Invalidate(ctx)

	return &UpvoteResult{Issue: updated, Upvoted: added, UpvoteCount: updated.UpvoteCount}, nil
}

// mutate applies fn to a fresh copy of the issue and saves it with a
// compare-and-swap on its version, retrying when a concurrent writer won.
// fn runs again on every retry and must derive everything from its argument.
func (s *IssueService) mutate(ctx context.Context, sc scope.Scope, id primitive.ObjectID, fn func(*models.Issue) error) (*models.Issue, error) {
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		issue, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := scope.Check(sc, issue, scope.Write); err != nil {
			return nil, err
		}
		expected := issue.Version
		if err := fn(issue); err != nil {
			return nil, err
		}
		err = s.issues.CompareAndSwap(ctx, issue, expected)
		if err == nil {
			return issue, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, storeErr(err, "Issue")
		}
		s.logger.Debug("issue version conflict, retrying", "issue", id.Hex(), "attempt", attempt)
	}
	return nil, storeErr(store.ErrConflict, "Issue")
}

// AssignIssue hands an issue to an officer with an optional SLA deadline.
func (s *IssueService) AssignIssue(ctx context.Context, principal *models.User, id, officerID primitive.ObjectID, slaDeadline *time.Time) (*models.Issue, error) {
	if err := requireRole(principal, "Only officers and admins can assign issues", models.RoleOfficer, models.RoleAdmin); err != nil {
		return nil, err
	}
	sc, err := scope.Resolve(principal)
	if err != nil {
		return nil, err
	}
	officer, err := s.users.FindByID(ctx, officerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.Validation("Invalid officer user")
		}
		return nil, storeErr(err, "Officer")
	}
	if officer.Role != models.RoleOfficer {
		return nil, apperrors.Validation("Invalid officer user")
	}

	issue, err := s.mutate(ctx, sc, id, func(issue *models.Issue) error {
		return lifecycle.Assign(issue, officerID, slaDeadline, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.metrics.StatusChanged(string(issue.Status))
	s.notifier.Notify(ctx, officerID,
		"Issue Assigned",
		"You have been assigned a new issue: "+issue.Title,
		models.NotifyAssignment,
		map[string]string{"issueId": id.Hex()},
	)
	s.cache.Invalidate(ctx)
	return issue, nil
}

// UpdateStatus moves an issue to the status chosen by an officer or admin.
// Resolving an issue credits its reporter once, however often it is re-saved.
func (s *IssueService) UpdateStatus(ctx context.Context, principal *models.User, id primitive.ObjectID, status, notes string) (*models.Issue, error) {
	if err := requireRole(principal, "Only officers and admins can update issue status", models.RoleOfficer, models.RoleAdmin); err != nil {
		return nil, err
	}
	to, ok := models.ParseIssueStatus(status)
	if !ok {
		return nil, apperrors.Validation("Invalid status")
	}
	sc, err := scope.Resolve(principal)
	if err != nil {
		return nil, err
	}

	var outcome lifecycle.StatusOutcome
	issue, err := s.mutate(ctx, sc, id, func(issue *models.Issue) error {
		var err error
		outcome, err = lifecycle.ApplyStatus(issue, to, notes, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	if outcome.Previous != outcome.Current {
		s.metrics.StatusChanged(string(outcome.Current))
		s.logger.Info("issue status changed",
			"issue", id.Hex(),
			"from", string(outcome.Previous),
			"to", string(outcome.Current),
			"by", principal.ID.Hex(),
		)
	}

	if issue.Status == models.StatusResolved {
		// The ledger event key keeps this to one credit per issue, so a
		// re-save retries an award that failed the first time.
		applied, err := s.ledger.AwardResolutionCredit(ctx, issue)
		if err != nil {
			s.logger.Error("failed to award resolution credit", "issue", id.Hex(), "error", err)
		}
		if outcome.AwardResolution {
			s.notifier.Notify(ctx, issue.ReportedBy,
				"Issue Resolved",
				fmt.Sprintf("Your issue has been resolved: %s. You earned %d CivicCredits!", issue.Title, credits.ResolutionCredit),
				models.NotifyResolution,
				map[string]string{"issueId": id.Hex()},
			)
		}
		if applied || outcome.AwardResolution {
			s.evaluateBadges(ctx, issue.ReportedBy)
		}
	}
	s.cache.Invalidate(ctx)
	return issue, nil
}

// AddComment appends a comment to the issue thread.
func (s *IssueService) AddComment(ctx context.Context, principal *models.User, id primitive.ObjectID, text string) (*models.Issue, error) {
	if principal == nil {
		return nil, errNotAuthenticated
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Validation("Comment text is required")
	}
	if len(text) > maxCommentLength {
		return nil, apperrors.Validation("Comment is too long")
	}
	sc, err := scope.Resolve(principal)
	if err != nil {
		return nil, err
	}
	issue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := scope.Check(sc, issue, scope.Write); err != nil {
		return nil, err
	}
	updated, err := s.issues.AppendComment(ctx, id, models.Comment{User: principal.ID, Text: text, CreatedAt: s.now()})
	if err != nil {
		return nil, storeErr(err, "Issue")
	}
	s.cache.Invalidate(ctx)
	return updated, nil
}

// Analytics returns grouped issue counts within the principal's scope.
func (s *IssueService) Analytics(ctx context.Context, principal *models.User) (store.IssueStats, error) {
	if err := requireRole(principal, "Only officers and admins can view analytics", models.RoleOfficer, models.RoleAdmin); err != nil {
		return store.IssueStats{}, err
	}
	sc, err := scope.Resolve(principal)
	if err != nil {
		return store.IssueStats{}, err
	}
	st, err := s.issues.Stats(ctx, store.ListQuery{Scope: sc.Predicate()})
	if err != nil {
		return store.IssueStats{}, storeErr(err, "Issues")
	}
	return st, nil
}
