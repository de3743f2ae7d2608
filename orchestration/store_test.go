package orchestration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/goatherd/core"
)

// Interface compliance (compile-time assertions)
var (
	_ LedgerStore = (*InMemoryLedgerStore)(nil)
	_ LedgerStore = (*FileLedgerStore)(nil)
)

func sampleLedger() *core.RunLedger {
	l := core.NewRunLedger("goat", "write a blog post")
	l.AppendStep(core.StepLog{
		Step:      1,
		Rationale: "delegating",
		Action:    core.ActionRecord{Kind: core.ActionDelegate, TargetAgentID: "writer", Message: "draft it"},
		AgentCall: &core.AgentCall{TargetAgentID: "writer", ProviderID: "test", Response: "draft"},
	})
	l.AppendStep(core.StepLog{
		Step:   2,
		Action: core.ActionRecord{Kind: core.ActionFinish, Message: "draft"},
	})
	l.Complete(core.StatusCompleted, "draft")
	return l
}

func TestFileLedgerStore_Roundtrip(t *testing.T) {
	store := NewFileLedgerStore(t.TempDir())
	ledger := sampleLedger()

	require.NoError(t, store.Save(ledger))

	got, err := store.Load(ledger.RunID)
	require.NoError(t, err)
	assert.Equal(t, ledger.RunID, got.RunID)
	assert.Equal(t, core.LedgerSchemaVersion, got.SchemaVersion)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, core.ActionDelegate, got.Steps[0].Action.Kind)
	assert.Equal(t, core.StatusCompleted, got.Status)

	// The persisted action records rebuild into typed actions.
	action, err := core.ActionFromRecord(got.Steps[0].Action)
	require.NoError(t, err)
	delegate, ok := action.(core.DelegateAction)
	require.True(t, ok)
	assert.Equal(t, "writer", delegate.TargetAgentID)

	ids, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{ledger.RunID}, ids)
}

func TestFileLedgerStore_SaveOverwrites(t *testing.T) {
	store := NewFileLedgerStore(t.TempDir())
	ledger := sampleLedger()

	require.NoError(t, store.Save(ledger))
	require.NoError(t, store.Save(ledger))

	got, err := store.Load(ledger.RunID)
	require.NoError(t, err)
	assert.Len(t, got.Steps, 2)

	ids, err := store.List()
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestFileLedgerStore_Missing(t *testing.T) {
	store := NewFileLedgerStore(t.TempDir())

	_, err := store.Load("absent")
	assert.True(t, errors.Is(err, ErrLedgerNotFound))

	ids, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestInMemoryLedgerStore_DeepCopies(t *testing.T) {
	store := NewInMemoryLedgerStore()
	ledger := sampleLedger()

	require.NoError(t, store.Save(ledger))

	// Mutating the original after save must not leak into the store.
	ledger.Steps[0].Rationale = "mutated"

	got, err := store.Load(ledger.RunID)
	require.NoError(t, err)
	assert.Equal(t, "delegating", got.Steps[0].Rationale)

	// Mutating a loaded copy must not affect subsequent loads.
	got.Steps[0].Rationale = "also mutated"
	again, err := store.Load(ledger.RunID)
	require.NoError(t, err)
	assert.Equal(t, "delegating", again.Steps[0].Rationale)
}
