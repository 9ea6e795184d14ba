package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExportFixture(t *testing.T, hardMax int) (*ExportService, *EntryService) {
	t.Helper()
	entries, _, _ := newEntryFixture(t)
	return NewExportService(entries, hardMax, newTestLogger(t)), entries
}

func TestQueryClampsLimitToHardMax(t *testing.T) {
	export, entries := newExportFixture(t, 3)

	for i := 0; i < 5; i++ {
		_, err := entries.Submit("v-1", "landing", map[string]any{"seq": i}, "start", i)
		require.NoError(t, err)
	}

	overMax := export.Query("", nil, 10)
	assert.Equal(t, 3, overMax.Limit)
	assert.Equal(t, 3, overMax.Count)
	require.Len(t, overMax.Entries, 3)
	assert.Equal(t, 4, overMax.Entries[0].Payload["seq"], "newest entry comes first")

	// Zero and negative limits mean "as many as allowed".
	assert.Equal(t, 3, export.Query("", nil, 0).Count)
	assert.Equal(t, 3, export.Query("", nil, -1).Count)

	within := export.Query("", nil, 2)
	assert.Equal(t, 2, within.Limit)
	assert.Equal(t, 2, within.Count)
}

func TestQueryEmptyLogReturnsEmptySlice(t *testing.T) {
	export, _ := newExportFixture(t, 100)

	result := export.Query("", nil, 10)
	require.NotNil(t, result.Entries)
	assert.Empty(t, result.Entries)
	assert.Equal(t, 0, result.Count)
}

func TestQueryEchoesFilters(t *testing.T) {
	export, entries := newExportFixture(t, 100)

	_, err := entries.Submit("v-1", "payment", map[string]any{}, "payment", 5)
	require.NoError(t, err)

	result := export.Query("payment", nil, 10)
	assert.Equal(t, "payment", result.Topic)
	assert.Equal(t, 1, result.Count)
}
