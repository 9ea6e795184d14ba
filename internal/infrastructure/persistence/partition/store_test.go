package partition

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/AtRiskMedia/formrelay-go/internal/domain/entry"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/persistence/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	logger, err := logging.NewChanneledLogger(logging.TestLoggerConfig())
	require.NoError(t, err)

	db, err := database.Open(database.Config{
		SQLitePath: filepath.Join(t.TempDir(), "formrelay.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db, logger)
	require.NoError(t, err)
	return store
}

func TestEnsurePartitionCreatesExactlyOnce(t *testing.T) {
	store := newTestStore(t)

	first, err := store.EnsurePartition("v-1")
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := store.EnsurePartition("v-1")
	require.NoError(t, err)
	assert.False(t, second.Created, "repeated ensure must reuse the partition")
	assert.Equal(t, "v-1", second.Identity)
}

func TestEnsurePartitionRejectsEmptyIdentity(t *testing.T) {
	store := newTestStore(t)

	_, err := store.EnsurePartition("")
	require.ErrorIs(t, err, entry.ErrValidation)
}

func TestEnsurePartitionConcurrentFirstContact(t *testing.T) {
	store := newTestStore(t)

	const racers = 10
	created := make(chan bool, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handle, err := store.EnsurePartition("v-race")
			if !assert.NoError(t, err) {
				created <- false
				return
			}
			created <- handle.Created
		}()
	}
	wg.Wait()
	close(created)

	wins := 0
	for c := range created {
		if c {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one caller observes creation")
}

func TestAppendAndListRecords(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		err := store.AppendRecord("v-1", &entry.PartitionRecord{
			DataType:   "landing",
			Payload:    map[string]any{"seq": float64(i)},
			Page:       "start",
			StepNumber: i,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	records, err := store.ListRecords("v-1")
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first, with payloads round-tripped through JSON.
	assert.Equal(t, float64(2), records[0].Payload["seq"])
	assert.Equal(t, float64(0), records[2].Payload["seq"])
	assert.Equal(t, "landing", records[0].DataType)
	assert.Equal(t, "v-1", records[0].Identity)
}

func TestListRecordsIsScopedToIdentity(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AppendRecord("v-1", &entry.PartitionRecord{
		DataType: "landing", Payload: map[string]any{},
	}))
	require.NoError(t, store.AppendRecord("v-2", &entry.PartitionRecord{
		DataType: "payment", Payload: map[string]any{},
	}))

	records, err := store.ListRecords("v-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "landing", records[0].DataType)

	empty, err := store.ListRecords("v-none")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAppendRecordAutoCreatesPartition(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AppendRecord("v-fresh", &entry.PartitionRecord{
		DataType: "landing", Payload: map[string]any{"ok": true},
	}))

	handle, err := store.EnsurePartition("v-fresh")
	require.NoError(t, err)
	assert.False(t, handle.Created)
}

func TestReapRemovesOnlyStalePartitions(t *testing.T) {
	store := newTestStore(t)

	stale := time.Now().UTC().AddDate(0, 0, -40)
	require.NoError(t, store.AppendRecord("v-stale", &entry.PartitionRecord{
		DataType: "landing", Payload: map[string]any{}, CreatedAt: stale,
	}))
	require.NoError(t, store.AppendRecord("v-live", &entry.PartitionRecord{
		DataType: "landing", Payload: map[string]any{},
	}))

	reaped, err := store.Reap(30)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	gone, err := store.ListRecords("v-stale")
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := store.ListRecords("v-live")
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestReapIsStableAcrossManyPartitions(t *testing.T) {
	store := newTestStore(t)

	stale := time.Now().UTC().AddDate(0, 0, -40)
	for i := 0; i < 5; i++ {
		identity := fmt.Sprintf("v-old-%d", i)
		require.NoError(t, store.AppendRecord(identity, &entry.PartitionRecord{
			DataType: "landing", Payload: map[string]any{}, CreatedAt: stale,
		}))
	}

	reaped, err := store.Reap(30)
	require.NoError(t, err)
	assert.Equal(t, 5, reaped)

	again, err := store.Reap(30)
	require.NoError(t, err)
	assert.Zero(t, again)
}
