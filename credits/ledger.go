// Package credits applies civic-credit awards and reward claims.
//
// Every award carries an event key naming the single event instance that
// earned it. The store applies the balance increment and records the key in
// one atomic write, and refuses a key it has already seen, so replaying an
// event never pays twice.
package credits

//go:generate mockgen -source=ledger.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-be/apperrors"
	"civicsync-be/metrics"
	"civicsync-be/models"
)

const (
	UpvoteCredit     int64 = 5
	ResolutionCredit int64 = 100
)

const (
	ReasonUpvote     = "upvote"
	ReasonResolution = "resolution"
	ReasonClaim      = "reward_claim"
)

// Store is the slice of the user store the ledger needs.
type Store interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	// ApplyCredit adds entry.Amount to the balance and appends entry, unless
	// an entry with the same EventKey exists. Reports whether it applied.
	ApplyCredit(ctx context.Context, userID primitive.ObjectID, entry models.CreditEntry) (bool, error)
	// Debit subtracts cost only if the balance covers it. Reports the new
	// balance and whether it applied.
	Debit(ctx context.Context, userID primitive.ObjectID, cost int64, entry models.CreditEntry) (int64, bool, error)
}

type Ledger struct {
	users   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(users Store, opts ...Option) *Ledger {
	l := &Ledger{users: users, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// UpvoteEventKey names one upvote-add event. A retracted and re-cast vote is
// a new event with a new timestamp.
func UpvoteEventKey(issueID, voter primitive.ObjectID, votedAt time.Time) string {
	return fmt.Sprintf("upvote:%s:%s:%d", issueID.Hex(), voter.Hex(), votedAt.UnixMilli())
}

func ResolutionEventKey(issueID primitive.ObjectID) string {
	return "resolution:" + issueID.Hex()
}

// AwardUpvoteCredit credits the reporter of issue for an upvote cast by voter
// at votedAt. Only citizen reporters are credited.
func (l *Ledger) AwardUpvoteCredit(ctx context.Context, issue *models.Issue, voter primitive.ObjectID, votedAt time.Time) (bool, error) {
	return l.award(ctx, issue.ReportedBy, models.CreditEntry{
		EventKey: UpvoteEventKey(issue.ID, voter, votedAt),
		Reason:   ReasonUpvote,
		Amount:   UpvoteCredit,
	})
}

// AwardResolutionCredit credits the reporter once per issue for its resolution.
func (l *Ledger) AwardResolutionCredit(ctx context.Context, issue *models.Issue) (bool, error) {
	return l.award(ctx, issue.ReportedBy, models.CreditEntry{
		EventKey: ResolutionEventKey(issue.ID),
		Reason:   ReasonResolution,
		Amount:   ResolutionCredit,
	})
}

func (l *Ledger) award(ctx context.Context, userID primitive.ObjectID, entry models.CreditEntry) (bool, error) {
	reporter, err := l.users.FindByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load reporter: %w", err)
	}
	if reporter.Role != models.RoleCitizen {
		return false, nil
	}
	entry.CreatedAt = l.now()
	applied, err := l.users.ApplyCredit(ctx, userID, entry)
	if err != nil {
		return false, fmt.Errorf("apply %s credit: %w", entry.Reason, err)
	}
	if applied {
		l.metrics.CreditAwarded(entry.Reason, entry.Amount)
	} else {
		l.logger.Info("credit event already applied", "event", entry.EventKey, "user", userID.Hex())
	}
	return applied, nil
}

// ClaimReward spends cost credits from a citizen's balance and returns the
// remaining balance.
func (l *Ledger) ClaimReward(ctx context.Context, citizen *models.User, rewardID string, cost int64) (int64, error) {
	if citizen.Role != models.RoleCitizen {
		return 0, apperrors.Denied("Only users can claim rewards")
	}
	rewardID = strings.TrimSpace(rewardID)
	if rewardID == "" {
		return 0, apperrors.Validation("Reward id is required")
	}
	if cost <= 0 {
		return 0, apperrors.Validation("Reward cost must be positive")
	}

	entry := models.CreditEntry{
		EventKey:  "claim:" + rewardID + ":" + uuid.NewString(),
		Reason:    ReasonClaim,
		Amount:    -cost,
		CreatedAt: l.now(),
	}
	balance, ok, err := l.users.Debit(ctx, citizen.ID, cost, entry)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeInternal, "Failed to claim reward")
	}
	if !ok {
		current, err := l.users.FindByID(ctx, citizen.ID)
		if err != nil {
			return 0, apperrors.Wrap(err, apperrors.CodeInternal, "Failed to claim reward")
		}
		return 0, apperrors.NewInsufficientCredit(cost, current.CivicCredits)
	}
	l.metrics.RewardClaimed()
	return balance, nil
}
