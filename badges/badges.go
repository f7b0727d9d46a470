// Package badges computes which achievement badges a citizen has newly
// qualified for. Evaluation is pure: it never removes a badge and never
// returns one the citizen already holds.
package badges

import (
	"time"

	"civicsync-be/credits"
	"civicsync-be/models"
)

// Counters is a snapshot of the numbers badge rules look at.
type Counters struct {
	Reported        int64
	Resolved        int64
	UpvotesReceived int64
	Balance         int64
}

type Rule struct {
	Name  string
	Icon  string
	Earns func(Counters) bool
}

// Rules is the fixed badge catalogue.
var Rules = []Rule{
	{Name: "First Report", Icon: "🚩", Earns: func(c Counters) bool { return c.Reported >= 1 }},
	{Name: "Active Reporter", Icon: "📣", Earns: func(c Counters) bool { return c.Reported >= 10 }},
	{Name: "Civic Champion", Icon: "🏆", Earns: func(c Counters) bool { return c.Reported >= 50 }},
	{Name: "Problem Solver", Icon: "🛠️", Earns: func(c Counters) bool { return c.Resolved >= 5 }},
	{Name: "Community Favourite", Icon: "👍", Earns: func(c Counters) bool { return c.UpvotesReceived*credits.UpvoteCredit >= 50 }},
	{Name: "Civic Legend", Icon: "🌟", Earns: func(c Counters) bool { return c.Balance >= 1000 }},
}

// Evaluate returns the badges the citizen qualifies for but does not yet hold.
func Evaluate(citizen *models.User, c Counters, now time.Time) []models.Badge {
	var earned []models.Badge
	for _, r := range Rules {
		if citizen.HasBadge(r.Name) || !r.Earns(c) {
			continue
		}
		earned = append(earned, models.Badge{Name: r.Name, Icon: r.Icon, EarnedAt: now})
	}
	return earned
}
