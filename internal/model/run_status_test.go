package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoredStatus(store *RunStatusStore, runID string) {
	store.Set(runID, &RunStatus{
		RunID:  runID,
		Status: RunStatusRunning,
		Phase:  PhaseDiscovery,
		Items:  map[string]ItemProgress{},
	})
}

func TestRunStatusStore_SetAndGet(t *testing.T) {
	store := NewRunStatusStore()
	newStoredStatus(store, "run-1")

	status, ok := store.Get("run-1")
	require.True(t, ok)
	assert.Equal(t, RunStatusRunning, status.Status)
	assert.False(t, status.UpdatedAt.IsZero())

	_, ok = store.Get("run-missing")
	assert.False(t, ok)
}

func TestRunStatusStore_GetReturnsCopy(t *testing.T) {
	store := NewRunStatusStore()
	newStoredStatus(store, "run-1")
	store.UpdateItem("run-1", "company-1", ItemDiscovering, "finding", "")

	snapshot, ok := store.Get("run-1")
	require.True(t, ok)

	// Mutating the snapshot must not leak back into the store
	snapshot.Items["company-1"] = ItemProgress{State: ItemAnalyzed}
	snapshot.Status = RunStatusCompleted

	fresh, _ := store.Get("run-1")
	assert.Equal(t, ItemDiscovering, fresh.Items["company-1"].State)
	assert.Equal(t, RunStatusRunning, fresh.Status)
}

func TestRunStatusStore_UpdateRun(t *testing.T) {
	store := NewRunStatusStore()
	newStoredStatus(store, "run-1")

	store.UpdateRun("run-1", RunStatusAwaitingSelection, PhaseDiscovery)

	status, _ := store.Get("run-1")
	assert.Equal(t, RunStatusAwaitingSelection, status.Status)

	// Unknown run is a no-op
	store.UpdateRun("run-missing", RunStatusCompleted, PhaseAnalysis)
}

func TestRunStatusStore_UpdateItem(t *testing.T) {
	store := NewRunStatusStore()
	newStoredStatus(store, "run-1")

	store.UpdateItem("run-1", "company-1", ItemDiscoveryFailed, "finding", "connection refused")

	status, _ := store.Get("run-1")
	progress := status.Items["company-1"]
	assert.Equal(t, ItemDiscoveryFailed, progress.State)
	assert.Equal(t, "connection refused", progress.Message)
}

func TestRunStatusStore_Delete(t *testing.T) {
	store := NewRunStatusStore()
	newStoredStatus(store, "run-1")

	store.Delete("run-1")

	_, ok := store.Get("run-1")
	assert.False(t, ok)
}

// The store takes concurrent writes from batch goroutines and concurrent
// reads from status polling.
func TestRunStatusStore_ConcurrentAccess(t *testing.T) {
	store := NewRunStatusStore()
	newStoredStatus(store, "run-1")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.UpdateItem("run-1", "company-1", ItemDiscovering, "finding", "")
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.Get("run-1")
			}
		}()
	}
	wg.Wait()

	status, ok := store.Get("run-1")
	require.True(t, ok)
	assert.Equal(t, ItemDiscovering, status.Items["company-1"].State)
}
