// Package store persists users, issues and notifications. Each store has a
// MongoDB implementation and an in-memory one with the same semantics; the
// in-memory versions back the tests and the memory:// development mode.
package store

import (
	"errors"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-be/models"
	"civicsync-be/scope"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("version conflict")
	ErrDuplicate = errors.New("duplicate key")
)

const (
	SortNewest  = "newest"
	SortOldest  = "oldest"
	SortUpvotes = "upvotes"
)

// ListQuery selects a page of issues. Scope is always applied; the other
// filters narrow it further.
type ListQuery struct {
	Scope      scope.Predicate
	Status     models.IssueStatus
	Statuses   []models.IssueStatus
	Category   models.IssueCategory
	Priority   models.Priority
	Department models.Department
	Pincode    string
	ReportedBy *primitive.ObjectID
	Since      *time.Time
	Sort       string
	Page       int
	Limit      int
}

// skip saturates instead of overflowing, so an absurd page is simply empty.
func (q ListQuery) skip() int64 {
	if q.Page < 1 || q.Limit < 1 {
		return 0
	}
	pages, limit := int64(q.Page-1), int64(q.Limit)
	if pages > math.MaxInt64/limit {
		return math.MaxInt64
	}
	return pages * limit
}

// IssueStats are grouped counts over the issues visible to a predicate.
type IssueStats struct {
	Total      int64            `json:"totalIssues"`
	ByStatus   map[string]int64 `json:"byStatus"`
	ByCategory map[string]int64 `json:"byCategory"`
	ByPriority map[string]int64 `json:"byPriority"`
}

// ReporterStats are per-citizen counters used by badges and contribution pages.
type ReporterStats struct {
	Reported        int64 `json:"totalIssuesReported"`
	Resolved        int64 `json:"issuesResolved"`
	Open            int64 `json:"issuesPending"`
	Verified        int64 `json:"issuesVerified"`
	UpvotesReceived int64 `json:"upvotesReceived"`
}

// UserFilter narrows admin user listings. Zero fields do not constrain.
type UserFilter struct {
	Role          models.Role
	AccountStatus models.AccountStatus
	Department    models.Department
	Pincode       string
}

func (f UserFilter) matches(u *models.User) bool {
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if f.AccountStatus != "" && u.AccountStatus != f.AccountStatus {
		return false
	}
	if f.Department != "" && u.Department != f.Department {
		return false
	}
	if f.Pincode != "" && u.Pincode != f.Pincode {
		return false
	}
	return true
}

// UserUpdate carries admin edits; nil fields are left unchanged.
type UserUpdate struct {
	Name       *string
	Phone      *string
	Department *models.Department
	Pincode    *string
	Address    *string
	Password   *string
}

// RequestReview records who moved a profile update request and why. The
// zero value clears the review fields.
type RequestReview struct {
	By     primitive.ObjectID
	Reason string
	At     time.Time
}

// Enrichment is the AI annotation merged into an issue after creation.
type Enrichment struct {
	Prediction models.AIPrediction
	Tags       []string
	Priority   models.Priority
}

func isOpenStatus(s models.IssueStatus) bool {
	switch s {
	case models.StatusPending, models.StatusVerified, models.StatusAssigned, models.StatusInProgress:
		return true
	}
	return false
}

func isVerifiedOrLater(s models.IssueStatus) bool {
	switch s {
	case models.StatusVerified, models.StatusAssigned, models.StatusInProgress, models.StatusResolved:
		return true
	}
	return false
}

func initIssueSlices(issue *models.Issue) {
	if issue.Upvotes == nil {
		issue.Upvotes = []models.Upvote{}
	}
	if issue.Comments == nil {
		issue.Comments = []models.Comment{}
	}
	if issue.Tags == nil {
		issue.Tags = []string{}
	}
	issue.UpvoteCount = len(issue.Upvotes)
}
