// Package services orchestrates the issue engine: it resolves the caller's
// scope, applies lifecycle rules through the stores, and fires the credit,
// badge, notification and cache side effects that follow a committed change.
package services

//go:generate mockgen -source=services.go -destination=mocks/mocks.go -package=mocks Notifier,Analyzer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-be/ai"
	"civicsync-be/apperrors"
	"civicsync-be/cache"
	"civicsync-be/metrics"
	"civicsync-be/models"
	"civicsync-be/store"
)

// IssueStore is implemented by store.IssueStore and store.MemoryIssueStore.
type IssueStore interface {
	Insert(ctx context.Context, issue *models.Issue) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	List(ctx context.Context, q store.ListQuery) ([]*models.Issue, int64, error)
	CompareAndSwap(ctx context.Context, issue *models.Issue, expected int64) error
	ToggleUpvote(ctx context.Context, id, voter primitive.ObjectID, at time.Time) (*models.Issue, bool, error)
	AppendComment(ctx context.Context, id primitive.ObjectID, c models.Comment) (*models.Issue, error)
	SetEnrichment(ctx context.Context, id primitive.ObjectID, e store.Enrichment) error
	ReporterStats(ctx context.Context, reporter primitive.ObjectID) (store.ReporterStats, error)
	Stats(ctx context.Context, q store.ListQuery) (store.IssueStats, error)
}

// UserStore is implemented by store.UserStore and store.MemoryUserStore.
type UserStore interface {
	Insert(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByLogin(ctx context.Context, role models.Role, loginID string) (*models.User, error)
	List(ctx context.Context, f store.UserFilter) ([]*models.User, error)
	FindOfficers(ctx context.Context, dept models.Department, pincode string) ([]*models.User, error)
	Count(ctx context.Context, f store.UserFilter) (int64, error)
	AddBadges(ctx context.Context, userID primitive.ObjectID, badges []models.Badge) ([]models.Badge, error)
	SetAccountStatus(ctx context.Context, id primitive.ObjectID, from, to models.AccountStatus, reason string) (*models.User, error)
	Update(ctx context.Context, id primitive.ObjectID, upd store.UserUpdate) (*models.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// ProfileRequestStore is implemented by store.ProfileRequestStore and
// store.MemoryProfileRequestStore.
type ProfileRequestStore interface {
	Insert(ctx context.Context, r *models.ProfileUpdateRequest) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.ProfileUpdateRequest, error)
	FindPending(ctx context.Context, user primitive.ObjectID) (*models.ProfileUpdateRequest, error)
	ListPending(ctx context.Context) ([]*models.ProfileUpdateRequest, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, from, to models.RequestStatus, review store.RequestReview) (*models.ProfileUpdateRequest, error)
}

// InboxStore reads back stored notifications.
type InboxStore interface {
	ListForUser(ctx context.Context, user primitive.ObjectID, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id, user primitive.ObjectID) error
}

// Notifier hands a message to the notification boundary. It never fails
// from the caller's point of view.
type Notifier interface {
	Notify(ctx context.Context, recipient primitive.ObjectID, title, body string, category models.NotificationCategory, data map[string]string)
}

// Analyzer is the AI analysis collaborator.
type Analyzer interface {
	Analyze(ctx context.Context, req ai.AnalyzeRequest) (*ai.Analysis, error)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, primitive.ObjectID, string, string, models.NotificationCategory, map[string]string) {
}

// base carries the collaborators shared by every service.
type base struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	notifier Notifier
	analyzer Analyzer
	cache    *cache.ListCache
	listTTL  time.Duration
	now      func() time.Time
}

type Option func(*base)

func WithLogger(logger *slog.Logger) Option {
	return func(b *base) { b.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *base) { b.metrics = m }
}

func WithNotifier(n Notifier) Option {
	return func(b *base) { b.notifier = n }
}

// WithAnalyzer enables AI enrichment of new issues.
func WithAnalyzer(a Analyzer) Option {
	return func(b *base) { b.analyzer = a }
}

// WithListCache memoizes issue listings for ttl.
func WithListCache(c *cache.ListCache, ttl time.Duration) Option {
	return func(b *base) {
		b.cache = c
		b.listTTL = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

func newBase(opts []Option) base {
	b := base{
		logger:   slog.Default(),
		notifier: nopNotifier{},
		listTTL:  cache.DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

var errNotAuthenticated = apperrors.New(apperrors.CodeUnauthorized, "User not authenticated")

func requireRole(p *models.User, msg string, roles ...models.Role) error {
	if p == nil {
		return errNotAuthenticated
	}
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return apperrors.Denied(msg)
}

// storeErr translates store sentinels into caller-facing errors about what.
func storeErr(err error, what string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NotFound(what)
	case errors.Is(err, store.ErrDuplicate):
		return apperrors.Wrap(err, apperrors.CodeConflict, what+" already exists")
	case errors.Is(err, store.ErrConflict):
		return apperrors.Wrap(err, apperrors.CodeConflict, what+" was modified concurrently, please retry")
	}
	return apperrors.Wrap(err, apperrors.CodeInternal, "Something went wrong")
}
