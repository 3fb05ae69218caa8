package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdoor/orchestrator/internal/apperr"
	"github.com/smartdoor/orchestrator/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doorbell.db")
	st, err := Open(DefaultConfig(path))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestSession(id string) models.Session {
	now := time.Now()
	return models.Session{
		ID:            id,
		DeviceID:      "front-door-01",
		CreatedAt:     now,
		LastUpdatedAt: now,
		Status:        models.StatusQueued,
	}
}

func TestCreateSession_RejectsDuplicateID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession("s1")

	require.NoError(t, st.CreateSession(ctx, sess))

	err := st.CreateSession(ctx, sess)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrDuplicateSession))
}

func TestGetSession_RoundTripsFields(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession("s2")
	require.NoError(t, st.CreateSession(ctx, sess))

	got, err := st.GetSession(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, "s2", got.ID)
	assert.Equal(t, "front-door-01", got.DeviceID)
	assert.Equal(t, models.StatusQueued, got.Status)
	assert.Nil(t, got.FinalAction)
}

func TestGetSession_NotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetSession(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrSessionNotFound))
}

func TestUpdateSessionStatus_AllowsMonotonicAdvance(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, newTestSession("s3")))

	require.NoError(t, st.UpdateSessionStatus(ctx, "s3", models.StatusProcessing, nil, nil))

	got, err := st.GetSession(ctx, "s3")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, got.Status)
}

func TestUpdateSessionStatus_RejectsBackwardTransition(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, newTestSession("s4")))
	require.NoError(t, st.UpdateSessionStatus(ctx, "s4", models.StatusIntelligenceDone, nil, nil))

	err := st.UpdateSessionStatus(ctx, "s4", models.StatusProcessing, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNonMonotonicStatus))
}

func TestUpdateSessionStatus_RejectsAnyTransitionFromTerminal(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, newTestSession("s5")))
	require.NoError(t, st.UpdateSessionStatus(ctx, "s5", models.StatusError, nil, nil))

	err := st.UpdateSessionStatus(ctx, "s5", models.StatusProcessing, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNonMonotonicStatus))
}

func TestUpdateSessionStatus_PersistsRiskScoreAndFinalAction(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, newTestSession("s6")))

	risk := 0.82
	action := models.ActionEscalate
	require.NoError(t, st.UpdateSessionStatus(ctx, "s6", models.StatusCompleted, &risk, &action))

	got, err := st.GetSession(ctx, "s6")
	require.NoError(t, err)
	assert.Equal(t, 0.82, got.RiskScore)
	require.NotNil(t, got.FinalAction)
	assert.Equal(t, models.ActionEscalate, *got.FinalAction)
}

func TestListSessions_FiltersByStatusAndOrdersByRecency(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, newTestSession("older")))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, st.CreateSession(ctx, newTestSession("newer")))
	require.NoError(t, st.UpdateSessionStatus(ctx, "newer", models.StatusProcessing, nil, nil))

	all, err := st.ListSessions(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "newer", all[0].ID)

	queued, err := st.ListSessions(ctx, 10, models.StatusQueued)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "older", queued[0].ID)
}
