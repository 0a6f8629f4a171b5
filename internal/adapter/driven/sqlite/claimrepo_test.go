package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Auankj/decode/internal/domain/model"
)

func sampleClaim(issueNumber int, claimant string, commentID int64) model.Claim {
	now := time.Now().UTC().Truncate(time.Second)
	return model.Claim{
		RepoFullName:    "acme/widgets",
		IssueNumber:     issueNumber,
		IssueID:         int64(issueNumber) + 9000,
		Claimant:        claimant,
		ClaimantID:      1234,
		CommentID:       commentID,
		ClaimText:       "I'll take this!",
		ConfidenceScore: 95,
		Status:          model.ClaimStatusActive,
		ClaimedAt:       now,
		LastActivityAt:  now,
		Metadata:        map[string]string{"tier": "direct_claim"},
	}
}

func TestClaimRepoCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepo(db)
	jobs := NewJobRepo(db)
	ctx := context.Background()

	checkAt := time.Now().UTC().Add(time.Hour)
	created, err := repo.CreateActive(ctx, sampleClaim(1, "alice", 100), checkAt)
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := repo.GetActiveByIssue(ctx, "acme/widgets", 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "alice", got.Claimant)
	assert.Equal(t, int64(100), got.CommentID)
	assert.Equal(t, 95, got.ConfidenceScore)
	assert.Equal(t, model.ClaimStatusActive, got.Status)
	assert.Zero(t, got.NudgeCount)
	assert.Nil(t, got.FirstNudgeAt)
	assert.Nil(t, got.AutoReleaseAt)
	assert.Equal(t, map[string]string{"tier": "direct_claim"}, got.Metadata)

	byID, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, got.Claimant, byID.Claimant)

	// The first check job committed with the claim.
	due, err := jobs.Due(ctx, checkAt.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, created.ID, due[0].ClaimID)
	assert.WithinDuration(t, checkAt, due[0].RunAt, time.Second)

	// The audit log opens with the detection entry.
	entries, err := repo.ListActivity(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActivityClaimDetected, entries[0].Type)
}

func TestClaimRepoGetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepo(db)
	ctx := context.Background()

	got, err := repo.Get(ctx, 12345)
	require.NoError(t, err)
	assert.Nil(t, got)

	active, err := repo.GetActiveByIssue(ctx, "acme/widgets", 77)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestClaimRepoOneActivePerIssue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepo(db)
	ctx := context.Background()
	checkAt := time.Now().UTC().Add(time.Hour)

	first, err := repo.CreateActive(ctx, sampleClaim(1, "alice", 100), checkAt)
	require.NoError(t, err)

	// Second active claim on the same issue violates the partial unique index.
	_, err = repo.CreateActive(ctx, sampleClaim(1, "bob", 101), checkAt)
	require.Error(t, err)

	// A different issue is unaffected.
	_, err = repo.CreateActive(ctx, sampleClaim(2, "bob", 102), checkAt)
	require.NoError(t, err)

	// Once the claim is terminal the issue can be claimed again.
	applied, err := repo.Release(ctx, first.ID, model.ReleaseReasonManual, model.ActivityManualRelease, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, applied)

	_, err = repo.CreateActive(ctx, sampleClaim(1, "bob", 103), checkAt)
	require.NoError(t, err)
}

func TestClaimRepoRefresh(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepo(db)
	ctx := context.Background()

	created, err := repo.CreateActive(ctx, sampleClaim(1, "alice", 100), time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)

	at := time.Now().UTC().Add(time.Minute).Truncate(time.Second)
	err = repo.Refresh(ctx, created.ID, "Updated: still on it", 100, map[string]string{"tier": "direct_claim", "boost": "5"}, at)
	require.NoError(t, err)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated: still on it", got.ClaimText)
	assert.Equal(t, 100, got.ConfidenceScore)
	assert.Equal(t, "5", got.Metadata["boost"])
	assert.WithinDuration(t, at, got.LastActivityAt, time.Second)
}

func TestClaimRepoRecordProgress(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepo(db)
	jobs := NewJobRepo(db)
	ctx := context.Background()

	firstCheck := time.Now().UTC().Add(time.Hour)
	created, err := repo.CreateActive(ctx, sampleClaim(1, "alice", 100), firstCheck)
	require.NoError(t, err)

	at := time.Now().UTC()
	nextCheck := at.Add(48 * time.Hour)
	applied, err := repo.RecordProgress(ctx, created.ID, at, nextCheck, map[string]string{"source": "comment"})
	require.NoError(t, err)
	assert.True(t, applied)

	// The single pending job moved to the new run time.
	due, err := jobs.Due(ctx, nextCheck.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.WithinDuration(t, nextCheck, due[0].RunAt, time.Second)

	entries, err := repo.ListActivity(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActivityProgressDetected, entries[1].Type)
	assert.Equal(t, "comment", entries[1].Metadata["source"])

	t.Run("guard fails on terminal claim", func(t *testing.T) {
		_, err := repo.Release(ctx, created.ID, model.ReleaseReasonManual, model.ActivityManualRelease, time.Now().UTC())
		require.NoError(t, err)

		applied, err := repo.RecordProgress(ctx, created.ID, time.Now().UTC(), nextCheck, nil)
		require.NoError(t, err)
		assert.False(t, applied)
	})
}

func TestClaimRepoRecordNudge(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepo(db)
	ctx := context.Background()

	created, err := repo.CreateActive(ctx, sampleClaim(1, "alice", 100), time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)

	at := time.Now().UTC()
	nextCheck := at.Add(24 * time.Hour)

	applied, err := repo.RecordNudge(ctx, created.ID, 0, at, nextCheck, nil)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.NudgeCount)
	require.NotNil(t, got.FirstNudgeAt)
	firstNudge := *got.FirstNudgeAt

	t.Run("stale expected count loses the guard", func(t *testing.T) {
		applied, err := repo.RecordNudge(ctx, created.ID, 0, time.Now().UTC(), nextCheck, nil)
		require.NoError(t, err)
		assert.False(t, applied)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.NudgeCount)
	})

	t.Run("second nudge keeps first_nudge_at", func(t *testing.T) {
		later := time.Now().UTC().Add(time.Hour)
		applied, err := repo.RecordNudge(ctx, created.ID, 1, later, later.Add(24*time.Hour), nil)
		require.NoError(t, err)
		assert.True(t, applied)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.NudgeCount)
		require.NotNil(t, got.FirstNudgeAt)
		assert.WithinDuration(t, firstNudge, *got.FirstNudgeAt, time.Second)
	})
}

func TestClaimRepoRelease(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepo(db)
	jobs := NewJobRepo(db)
	ctx := context.Background()

	checkAt := time.Now().UTC().Add(time.Hour)
	created, err := repo.CreateActive(ctx, sampleClaim(1, "alice", 100), checkAt)
	require.NoError(t, err)

	at := time.Now().UTC()
	applied, err := repo.Release(ctx, created.ID, model.ReleaseReasonMaxNudges, model.ActivityAutoReleased, at)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStatusReleased, got.Status)
	assert.Equal(t, model.ReleaseReasonMaxNudges, got.ReleaseReason)
	require.NotNil(t, got.AutoReleaseAt)
	assert.WithinDuration(t, at, *got.AutoReleaseAt, time.Second)

	// The pending check closed with the release.
	due, err := jobs.Due(ctx, checkAt.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	// The issue no longer has an active claim.
	active, err := repo.GetActiveByIssue(ctx, "acme/widgets", 1)
	require.NoError(t, err)
	assert.Nil(t, active)

	t.Run("second release loses the guard", func(t *testing.T) {
		applied, err := repo.Release(ctx, created.ID, model.ReleaseReasonManual, model.ActivityManualRelease, time.Now().UTC())
		require.NoError(t, err)
		assert.False(t, applied)
	})
}

func TestClaimRepoManualReleaseHasNoAutoTimestamp(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepo(db)
	ctx := context.Background()

	created, err := repo.CreateActive(ctx, sampleClaim(1, "alice", 100), time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)

	applied, err := repo.Release(ctx, created.ID, model.ReleaseReasonManual, model.ActivityManualRelease, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReleaseReasonManual, got.ReleaseReason)
	assert.Nil(t, got.AutoReleaseAt)
}

func TestClaimRepoComplete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClaimRepo(db)
	jobs := NewJobRepo(db)
	ctx := context.Background()

	checkAt := time.Now().UTC().Add(time.Hour)
	created, err := repo.CreateActive(ctx, sampleClaim(1, "alice", 100), checkAt)
	require.NoError(t, err)

	applied, err := repo.Complete(ctx, created.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStatusCompleted, got.Status)

	due, err := jobs.Due(ctx, checkAt.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	entries, err := repo.ListActivity(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActivityClaimCompleted, entries[1].Type)
}
