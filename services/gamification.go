package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"civicsync-be/apperrors"
	"civicsync-be/credits"
	"civicsync-be/models"
	"civicsync-be/store"
)

const recentLimit = 10

type GamificationService struct {
	base
	issues IssueStore
	users  UserStore
	ledger *credits.Ledger
}

func NewGamificationService(issues IssueStore, users UserStore, ledger *credits.Ledger, opts ...Option) (*GamificationService, error) {
	if issues == nil || users == nil || ledger == nil {
		return nil, errors.New("issue store, user store and ledger are required")
	}
	return &GamificationService{base: newBase(opts), issues: issues, users: users, ledger: ledger}, nil
}

// since maps a timeframe name to the earliest creation time it covers.
func (s *GamificationService) since(timeframe string) (*time.Time, string, error) {
	now := s.now()
	var t time.Time
	switch strings.ToLower(timeframe) {
	case "", "all":
		return nil, "all", nil
	case "week":
		t = now.AddDate(0, 0, -7)
	case "month":
		t = now.AddDate(0, -1, 0)
	default:
		return nil, "", apperrors.Validation("Invalid timeframe")
	}
	return &t, strings.ToLower(timeframe), nil
}

func resolutionRate(resolved, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(resolved)/float64(total)*1000) / 10
}

type CityProgress struct {
	TotalIssuesReported int64   `json:"totalIssuesReported"`
	TotalIssuesResolved int64   `json:"totalIssuesResolved"`
	TotalActiveCitizens int64   `json:"totalActiveCitizens"`
	ResolutionRate      float64 `json:"resolutionRate"`
}

type CommunityDashboard struct {
	CityWideProgress     CityProgress     `json:"cityWideProgress"`
	IssuesByCategory     map[string]int64 `json:"issuesByCategory"`
	IssuesByStatus       map[string]int64 `json:"issuesByStatus"`
	RecentResolvedIssues []*models.Issue  `json:"recentResolvedIssues"`
	Timeframe            string           `json:"timeframe"`
}

// CommunityDashboard summarises city-wide progress. It is public.
func (s *GamificationService) CommunityDashboard(ctx context.Context, timeframe string) (*CommunityDashboard, error) {
	since, tf, err := s.since(timeframe)
	if err != nil {
		return nil, err
	}

	var (
		stats    store.IssueStats
		citizens int64
		recent   []*models.Issue
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats, err = s.issues.Stats(gctx, store.ListQuery{Since: since})
		return err
	})
	g.Go(func() (err error) {
		citizens, err = s.users.Count(gctx, store.UserFilter{Role: models.RoleCitizen})
		return err
	})
	g.Go(func() (err error) {
		recent, _, err = s.issues.List(gctx, store.ListQuery{
			Status: models.StatusResolved,
			Since:  since,
			Sort:   store.SortNewest,
			Page:   1,
			Limit:  recentLimit,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeErr(err, "Dashboard")
	}

	resolved := stats.ByStatus[string(models.StatusResolved)]
	return &CommunityDashboard{
		CityWideProgress: CityProgress{
			TotalIssuesReported: stats.Total,
			TotalIssuesResolved: resolved,
			TotalActiveCitizens: citizens,
			ResolutionRate:      resolutionRate(resolved, stats.Total),
		},
		IssuesByCategory:     stats.ByCategory,
		IssuesByStatus:       stats.ByStatus,
		RecentResolvedIssues: recent,
		Timeframe:            tf,
	}, nil
}

type NeighborhoodSummary struct {
	IssuesReported  int64   `json:"issuesReported"`
	IssuesResolved  int64   `json:"issuesResolved"`
	ResolutionRate  float64 `json:"resolutionRate"`
	ActiveResidents int64   `json:"activeResidents"`
}

type NeighborhoodStats struct {
	Pincode          string              `json:"pincode"`
	Stats            NeighborhoodSummary `json:"stats"`
	IssuesByCategory map[string]int64    `json:"issuesByCategory"`
	Timeframe        string              `json:"timeframe"`
}

// NeighborhoodStats summarises one postal area. It is public.
func (s *GamificationService) NeighborhoodStats(ctx context.Context, pincode, timeframe string) (*NeighborhoodStats, error) {
	pincode = strings.TrimSpace(pincode)
	if pincode == "" {
		return nil, apperrors.Validation("Pincode is required")
	}
	since, tf, err := s.since(timeframe)
	if err != nil {
		return nil, err
	}

	var (
		stats     store.IssueStats
		residents int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats, err = s.issues.Stats(gctx, store.ListQuery{Pincode: pincode, Since: since})
		return err
	})
	g.Go(func() (err error) {
		residents, err = s.users.Count(gctx, store.UserFilter{Role: models.RoleCitizen, Pincode: pincode})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeErr(err, "Neighborhood stats")
	}

	resolved := stats.ByStatus[string(models.StatusResolved)]
	return &NeighborhoodStats{
		Pincode: pincode,
		Stats: NeighborhoodSummary{
			IssuesReported:  stats.Total,
			IssuesResolved:  resolved,
			ResolutionRate:  resolutionRate(resolved, stats.Total),
			ActiveResidents: residents,
		},
		IssuesByCategory: stats.ByCategory,
		Timeframe:        tf,
	}, nil
}

type PersonalStats struct {
	CivicCredits         int64 `json:"civicAppreciationPoints"`
	TotalIssuesReported  int64 `json:"totalIssuesReported"`
	IssuesResolved       int64 `json:"issuesResolved"`
	IssuesPending        int64 `json:"issuesPending"`
	IssuesVerified       int64 `json:"issuesVerified"`
	UpvotesReceived      int64 `json:"upvotesReceived"`
	CommunityImpactScore int64 `json:"communityImpactScore"`
}

type PersonalContributions struct {
	PersonalStats       PersonalStats   `json:"personalStats"`
	Badges              []models.Badge  `json:"badges"`
	RecentContributions []*models.Issue `json:"recentContributions"`
	MemberSince         time.Time       `json:"memberSince"`
}

// ImpactScore weighs resolved and verified reports above raw volume.
func ImpactScore(st store.ReporterStats) int64 {
	return st.Resolved*10 + st.Verified*5 + st.Reported
}

// PersonalContributions summarises the principal's own reporting history.
func (s *GamificationService) PersonalContributions(ctx context.Context, principal *models.User) (*PersonalContributions, error) {
	if principal == nil {
		return nil, errNotAuthenticated
	}

	var (
		user   *models.User
		st     store.ReporterStats
		recent []*models.Issue
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		user, err = s.users.FindByID(gctx, principal.ID)
		return err
	})
	g.Go(func() (err error) {
		st, err = s.issues.ReporterStats(gctx, principal.ID)
		return err
	})
	g.Go(func() (err error) {
		recent, _, err = s.issues.List(gctx, store.ListQuery{
			ReportedBy: &principal.ID,
			Sort:       store.SortNewest,
			Page:       1,
			Limit:      recentLimit,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeErr(err, "User")
	}

	return &PersonalContributions{
		PersonalStats: PersonalStats{
			CivicCredits:         user.CivicCredits,
			TotalIssuesReported:  st.Reported,
			IssuesResolved:       st.Resolved,
			IssuesPending:        st.Open,
			IssuesVerified:       st.Verified,
			UpvotesReceived:      st.UpvotesReceived,
			CommunityImpactScore: ImpactScore(st),
		},
		Badges:              user.Badges,
		RecentContributions: recent,
		MemberSince:         user.CreatedAt,
	}, nil
}

type RewardClaim struct {
	RewardID         string `json:"rewardId"`
	CreditsDeducted  int64  `json:"creditsDeducted"`
	RemainingCredits int64  `json:"remainingCredits"`
}

// ClaimReward spends the principal's credits on a reward.
func (s *GamificationService) ClaimReward(ctx context.Context, principal *models.User, rewardID string, cost int64) (*RewardClaim, error) {
	if principal == nil {
		return nil, errNotAuthenticated
	}
	remaining, err := s.ledger.ClaimReward(ctx, principal, rewardID, cost)
	if err != nil {
		return nil, err
	}
	s.logger.Info("reward claimed", "user", principal.ID.Hex(), "reward", rewardID, "cost", cost)
	return &RewardClaim{RewardID: strings.TrimSpace(rewardID), CreditsDeducted: cost, RemainingCredits: remaining}, nil
}
