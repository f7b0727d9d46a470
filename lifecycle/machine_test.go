package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-be/apperrors"
	"civicsync-be/models"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.IssueStatus
		want     bool
	}{
		{models.StatusPending, models.StatusVerified, true},
		{models.StatusVerified, models.StatusAssigned, true},
		{models.StatusAssigned, models.StatusInProgress, true},
		{models.StatusInProgress, models.StatusResolved, true},
		{models.StatusPending, models.StatusResolved, true},
		{models.StatusPending, models.StatusRejected, true},
		{models.StatusInProgress, models.StatusRejected, true},
		{models.StatusResolved, models.StatusResolved, true},
		{models.StatusInProgress, models.StatusVerified, false},
		{models.StatusVerified, models.StatusPending, false},
		{models.StatusResolved, models.StatusInProgress, false},
		{models.StatusResolved, models.StatusRejected, false},
		{models.StatusRejected, models.StatusPending, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestApplyStatusResolutionAwardsOnce(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	issue := &models.Issue{Status: models.StatusInProgress}

	out, err := ApplyStatus(issue, models.StatusResolved, "  fixed the pipe ", now)
	require.NoError(t, err)
	assert.True(t, out.AwardResolution)
	assert.Equal(t, models.StatusInProgress, out.Previous)
	assert.Equal(t, models.StatusResolved, issue.Status)
	assert.Equal(t, "fixed the pipe", issue.ResolutionNotes)
	require.NotNil(t, issue.ResolvedAt)
	assert.Equal(t, now, *issue.ResolvedAt)

	later := now.Add(time.Hour)
	out, err = ApplyStatus(issue, models.StatusResolved, "fixed the pipe", later)
	require.NoError(t, err)
	assert.False(t, out.AwardResolution)
	assert.Equal(t, now, *issue.ResolvedAt)
}

func TestApplyStatusRejectsBadInput(t *testing.T) {
	issue := &models.Issue{Status: models.StatusAssigned}

	_, err := ApplyStatus(issue, models.StatusResolved, "   ", time.Now())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = ApplyStatus(issue, models.IssueStatus("closed"), "", time.Now())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = ApplyStatus(issue, models.StatusVerified, "", time.Now())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
	assert.Equal(t, models.StatusAssigned, issue.Status)
}

func TestAssign(t *testing.T) {
	officer := primitive.NewObjectID()
	sla := time.Now().Add(72 * time.Hour)
	issue := &models.Issue{Status: models.StatusVerified}

	require.NoError(t, Assign(issue, officer, &sla, time.Now()))
	assert.Equal(t, models.StatusAssigned, issue.Status)
	assert.Equal(t, officer, *issue.AssignedTo)
	assert.Equal(t, sla, *issue.SLADeadline)

	other := primitive.NewObjectID()
	require.NoError(t, Assign(issue, other, nil, time.Now()))
	assert.Equal(t, other, *issue.AssignedTo)

	for _, st := range []models.IssueStatus{models.StatusInProgress, models.StatusResolved, models.StatusRejected} {
		issue := &models.Issue{Status: st, AssignedTo: &officer}
		err := Assign(issue, other, nil, time.Now())
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition), "from %s", st)
		assert.Equal(t, st, issue.Status)
		assert.Equal(t, officer, *issue.AssignedTo)
	}
}

func TestToggleUpvoteKeepsCountConsistent(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	issue := &models.Issue{}

	assert.True(t, ToggleUpvote(issue, a, time.Now()))
	assert.True(t, ToggleUpvote(issue, b, time.Now()))
	assert.Equal(t, 2, issue.UpvoteCount)
	assert.Len(t, issue.Upvotes, issue.UpvoteCount)

	assert.False(t, ToggleUpvote(issue, a, time.Now()))
	assert.Equal(t, 1, issue.UpvoteCount)
	assert.Len(t, issue.Upvotes, issue.UpvoteCount)
	assert.True(t, issue.HasUpvoteFrom(b))
	assert.False(t, issue.HasUpvoteFrom(a))
}

func TestToggleUpvoteTwiceRestoresOriginal(t *testing.T) {
	existing := models.Upvote{Voter: primitive.NewObjectID(), VotedAt: time.Unix(100, 0)}
	issue := &models.Issue{Upvotes: []models.Upvote{existing}, UpvoteCount: 1}
	voter := primitive.NewObjectID()

	ToggleUpvote(issue, voter, time.Now())
	ToggleUpvote(issue, voter, time.Now())

	assert.Equal(t, []models.Upvote{existing}, issue.Upvotes)
	assert.Equal(t, 1, issue.UpvoteCount)
}

func TestToggleUpvoteDoesNotAliasInput(t *testing.T) {
	v := primitive.NewObjectID()
	original := []models.Upvote{{Voter: v}, {Voter: primitive.NewObjectID()}}
	issue := &models.Issue{Upvotes: original, UpvoteCount: 2}

	ToggleUpvote(issue, v, time.Now())
	assert.Equal(t, v, original[0].Voter)
}
