// Package lifecycle owns the status workflow of an issue and the in-memory
// form of its mutations. Functions here only change the *models.Issue they
// are given; persistence and side effects belong to the caller.
package lifecycle

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-be/apperrors"
	"civicsync-be/models"
)

var order = map[models.IssueStatus]int{
	models.StatusPending:    0,
	models.StatusVerified:   1,
	models.StatusAssigned:   2,
	models.StatusInProgress: 3,
	models.StatusResolved:   4,
}

func IsTerminal(s models.IssueStatus) bool {
	return s == models.StatusResolved || s == models.StatusRejected
}

// CanTransition reports whether an officer may move an issue from one status
// to another. Re-saving the current status is always allowed; otherwise the
// workflow only moves forward, and rejected is reachable from any
// non-terminal status.
func CanTransition(from, to models.IssueStatus) bool {
	if from == to {
		return true
	}
	if IsTerminal(from) {
		return false
	}
	if to == models.StatusRejected {
		return true
	}
	fr, ok1 := order[from]
	tr, ok2 := order[to]
	return ok1 && ok2 && tr > fr
}

// StatusOutcome describes what a status change did so the caller can fire
// side effects.
type StatusOutcome struct {
	Previous models.IssueStatus
	Current  models.IssueStatus
	// AwardResolution is true exactly once per issue: on the change that
	// flipped ResolutionCreditAwarded. It gates the resolution notice; the
	// credit itself is deduplicated by the ledger.
	AwardResolution bool
}

// ApplyStatus moves issue to the requested status.
func ApplyStatus(issue *models.Issue, to models.IssueStatus, notes string, now time.Time) (StatusOutcome, error) {
	out := StatusOutcome{Previous: issue.Status, Current: issue.Status}
	if _, ok := models.ParseIssueStatus(string(to)); !ok {
		return out, apperrors.Validation("Invalid status")
	}
	if !CanTransition(issue.Status, to) {
		return out, apperrors.Newf(apperrors.CodeInvalidTransition, "Cannot change status from %s to %s", issue.Status, to)
	}

	if to == models.StatusResolved {
		notes = strings.TrimSpace(notes)
		if notes == "" {
			return out, apperrors.Validation("Resolution notes are required")
		}
		if issue.Status != models.StatusResolved || issue.ResolvedAt == nil {
			t := now
			issue.ResolvedAt = &t
		}
		issue.ResolutionNotes = notes
		if !issue.ResolutionCreditAwarded {
			issue.ResolutionCreditAwarded = true
			out.AwardResolution = true
		}
	}

	issue.Status = to
	issue.UpdatedAt = now
	out.Current = to
	return out, nil
}

// Assign hands the issue to an officer. Pending, verified and already
// assigned issues can be (re)assigned; work in progress cannot move back.
func Assign(issue *models.Issue, officer primitive.ObjectID, slaDeadline *time.Time, now time.Time) error {
	if !CanTransition(issue.Status, models.StatusAssigned) {
		return apperrors.Newf(apperrors.CodeInvalidTransition, "Cannot assign a %s issue", issue.Status)
	}
	issue.AssignedTo = &officer
	issue.Status = models.StatusAssigned
	issue.SLADeadline = slaDeadline
	issue.UpdatedAt = now
	return nil
}

// ToggleUpvote adds voter's upvote, or retracts it when already present, and
// recomputes UpvoteCount in the same step. It reports whether a vote was added.
func ToggleUpvote(issue *models.Issue, voter primitive.ObjectID, now time.Time) bool {
	kept := issue.Upvotes[:0:0]
	removed := false
	for _, u := range issue.Upvotes {
		if u.Voter == voter {
			removed = true
			continue
		}
		kept = append(kept, u)
	}
	if !removed {
		kept = append(kept, models.Upvote{Voter: voter, VotedAt: now})
	}
	issue.Upvotes = kept
	issue.UpvoteCount = len(kept)
	issue.UpdatedAt = now
	return !removed
}

// AppendComment adds a comment at the end of the thread.
func AppendComment(issue *models.Issue, c models.Comment) {
	issue.Comments = append(issue.Comments, c)
	issue.UpdatedAt = c.CreatedAt
}
