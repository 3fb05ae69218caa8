package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdoor/orchestrator/internal/models"
)

func TestAppendTranscript_ListReturnsInsertionOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, newTestSession("t1")))

	entries := []string{"hello", "how can I help?", "is anyone home"}
	for _, content := range entries {
		require.NoError(t, st.AppendTranscript(ctx, models.TranscriptEntry{
			SessionID: "t1", Role: models.RoleVisitor, Content: content, Timestamp: time.Now(),
		}))
	}

	got, err := st.ListTranscripts(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, content := range entries {
		assert.Equal(t, content, got[i].Content)
	}
}

func TestRecentTranscripts_ReturnsLastNOldestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, newTestSession("t2")))

	for i := 0; i < 5; i++ {
		require.NoError(t, st.AppendTranscript(ctx, models.TranscriptEntry{
			SessionID: "t2", Role: models.RoleVisitor, Content: string(rune('a' + i)), Timestamp: time.Now(),
		}))
	}

	recent, err := st.RecentTranscripts(ctx, "t2", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "d", recent[0].Content)
	assert.Equal(t, "e", recent[1].Content)
}

func TestAppendAudit_ReturnsIncrementingRowIDs(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, newTestSession("au1")))

	id1, err := st.AppendAudit(ctx, models.AuditRow{SessionID: "au1", Agent: "orchestrator", ActionType: "stage_transition", Status: "ok", ShortReason: "queued->processing", Timestamp: time.Now()})
	require.NoError(t, err)

	id2, err := st.AppendAudit(ctx, models.AuditRow{SessionID: "au1", Agent: "orchestrator", ActionType: "stage_transition", Status: "ok", ShortReason: "processing->perception_done", Timestamp: time.Now()})
	require.NoError(t, err)

	assert.Greater(t, id2, id1)
}
