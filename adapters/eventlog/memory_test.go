package eventlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assaygate/domain/audit"
	"assaygate/domain/core"
)

func TestMemoryAppendAndFilter(t *testing.T) {
	m := NewMemory()
	runID := core.NewRunID()

	require.NoError(t, m.Append(context.Background(), audit.New(runID, 0, audit.SchemaClaimOpened, map[string]any{"claimed": 1.0})))
	require.NoError(t, m.Append(context.Background(), audit.New(runID, 0, audit.SchemaGovernanceDecision, nil)))
	require.NoError(t, m.Append(context.Background(), audit.New(runID, 1, audit.SchemaClaimOpened, nil)))

	assert.Len(t, m.Events(), 3)
	opened := m.BySchema(audit.SchemaClaimOpened)
	require.Len(t, opened, 2)
	assert.Equal(t, 0, opened[0].Cycle)
	assert.Equal(t, 1, opened[1].Cycle)

	for _, ev := range m.Events() {
		assert.NotEmpty(t, ev.ID.String())
		assert.Equal(t, runID, ev.RunID)
		assert.False(t, ev.At.IsZero())
	}
}

func TestMemoryEventsCopies(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Append(context.Background(), audit.New(core.NewRunID(), 0, audit.SchemaRefusal, nil)))

	events := m.Events()
	events[0].Cycle = 99
	assert.Equal(t, 0, m.Events()[0].Cycle)
}
