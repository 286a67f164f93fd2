package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/callscript/internal/testutil"
)

func TestBeginRun_AssignsIDAndSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.BeginRun(ctx, RunParams{Application: "main"})
	require.NoError(t, err)
	second, err := s.BeginRun(ctx, RunParams{Application: "main", Rule: "inbound", Force: true})
	require.NoError(t, err)

	assert.Equal(t, "run-1", first.ID)
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, "run-2", second.ID)
	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, StatusRunning, second.Status)
	assert.Equal(t, testutil.Epoch, first.StartedAt)
}

func TestRun_Lifecycle(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run, err := s.BeginRun(ctx, RunParams{Application: "main.acme.voximplant.com", DryRun: true})
	require.NoError(t, err)

	require.NoError(t, s.RecordOutcome(ctx, run.ID, Outcome{Kind: KindScenario, Name: "greet", Action: "created", RemoteID: 101, ContentHash: "abc"}))
	require.NoError(t, s.RecordOutcome(ctx, run.ID, Outcome{Kind: KindRule, Name: "inbound", Action: "updated", RemoteID: 7, Detail: "pattern"}))
	require.NoError(t, s.FinishRun(ctx, run.ID, nil))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, got.Status)
	assert.True(t, got.DryRun)
	assert.Empty(t, got.Error)
	assert.Equal(t, testutil.Epoch, got.StartedAt)
	assert.Equal(t, testutil.Epoch.Add(time.Second), got.FinishedAt)
	require.Len(t, got.Outcomes, 2)
	assert.Equal(t, "greet", got.Outcomes[0].Name)
	assert.Equal(t, int64(101), got.Outcomes[0].RemoteID)
	assert.Equal(t, "pattern", got.Outcomes[1].Detail)
}

func TestFinishRun_Failure(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run, err := s.BeginRun(ctx, RunParams{Application: "main"})
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, run.ID, errors.New("conflict on greet")))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "conflict on greet", got.Error)
}

func TestFinishRun_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	err := s.FinishRun(context.Background(), "missing", nil)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestGetRun_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestRecordOutcome_UnknownRunViolatesForeignKey(t *testing.T) {
	s := createTestStore(t)

	err := s.RecordOutcome(context.Background(), "missing", Outcome{Kind: KindScenario, Name: "x", Action: "created"})
	assert.Error(t, err)
}

func TestListRuns_NewestFirstWithLimit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, app := range []string{"a", "b", "c"} {
		run, err := s.BeginRun(ctx, RunParams{Application: app})
		require.NoError(t, err)
		require.NoError(t, s.RecordOutcome(ctx, run.ID, Outcome{Kind: KindApplication, Name: app, Action: "skipped"}))
		require.NoError(t, s.FinishRun(ctx, run.ID, nil))
	}

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Application)
	assert.Equal(t, "a", all[2].Application)
	require.Len(t, all[0].Outcomes, 1)

	latest, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "b", latest[1].Application)
}

func TestHistory_FiltersByArtifact(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run1, err := s.BeginRun(ctx, RunParams{Application: "main"})
	require.NoError(t, err)
	require.NoError(t, s.RecordOutcome(ctx, run1.ID, Outcome{Kind: KindScenario, Name: "greet", Action: "created", RemoteID: 101}))
	require.NoError(t, s.RecordOutcome(ctx, run1.ID, Outcome{Kind: KindScenario, Name: "route", Action: "created", RemoteID: 102}))

	run2, err := s.BeginRun(ctx, RunParams{Application: "main"})
	require.NoError(t, err)
	require.NoError(t, s.RecordOutcome(ctx, run2.ID, Outcome{Kind: KindScenario, Name: "greet", Action: "updated", RemoteID: 101}))

	entries, err := s.History(ctx, KindScenario, "greet")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, run2.ID, entries[0].RunID)
	assert.Equal(t, "updated", entries[0].Action)
	assert.Equal(t, run1.ID, entries[1].RunID)

	none, err := s.History(ctx, KindRule, "greet")
	require.NoError(t, err)
	assert.Empty(t, none)
}
