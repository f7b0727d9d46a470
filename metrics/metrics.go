package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the issue engine. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	IssuesCreated        prometheus.Counter
	UpvotesAdded         prometheus.Counter
	UpvotesRetracted     prometheus.Counter
	StatusChanges        *prometheus.CounterVec
	CreditsAwarded       *prometheus.CounterVec
	RewardsClaimed       prometheus.Counter
	CacheLookups         *prometheus.CounterVec
	NotificationFailures prometheus.Counter
	EnrichmentFailures   prometheus.Counter
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IssuesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "civicsync_issues_created_total",
			Help: "Total number of issues reported",
		}),
		UpvotesAdded: f.NewCounter(prometheus.CounterOpts{
			Name: "civicsync_upvotes_added_total",
			Help: "Upvotes cast",
		}),
		UpvotesRetracted: f.NewCounter(prometheus.CounterOpts{
			Name: "civicsync_upvotes_retracted_total",
			Help: "Upvotes withdrawn by a second toggle",
		}),
		StatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civicsync_issue_status_changes_total",
			Help: "Issue status changes by target status",
		}, []string{"status"}),
		CreditsAwarded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civicsync_credits_awarded_total",
			Help: "Civic credits awarded by reason",
		}, []string{"reason"}),
		RewardsClaimed: f.NewCounter(prometheus.CounterOpts{
			Name: "civicsync_rewards_claimed_total",
			Help: "Successful reward claims",
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civicsync_list_cache_lookups_total",
			Help: "Issue listing cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
		NotificationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "civicsync_notification_failures_total",
			Help: "Notifications that could not be stored or delivered",
		}),
		EnrichmentFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "civicsync_ai_enrichment_failures_total",
			Help: "Failed calls to the AI analysis service",
		}),
	}
}

func (m *Metrics) IssueCreated() {
	if m != nil {
		m.IssuesCreated.Inc()
	}
}

func (m *Metrics) Upvote(added bool) {
	if m == nil {
		return
	}
	if added {
		m.UpvotesAdded.Inc()
	} else {
		m.UpvotesRetracted.Inc()
	}
}

func (m *Metrics) StatusChanged(status string) {
	if m != nil {
		m.StatusChanges.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) CreditAwarded(reason string, amount int64) {
	if m != nil {
		m.CreditsAwarded.WithLabelValues(reason).Add(float64(amount))
	}
}

func (m *Metrics) RewardClaimed() {
	if m != nil {
		m.RewardsClaimed.Inc()
	}
}

func (m *Metrics) CacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) NotificationFailed() {
	if m != nil {
		m.NotificationFailures.Inc()
	}
}

func (m *Metrics) EnrichmentFailed() {
	if m != nil {
		m.EnrichmentFailures.Inc()
	}
}
