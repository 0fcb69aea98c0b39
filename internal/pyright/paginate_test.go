package pyright

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeItems(n int) []map[string]any {
	items := make([]map[string]any, n)
	for i := range items {
		items[i] = map[string]any{"name": fmt.Sprintf("item%d", i)}
	}
	return items
}

func TestPaginateDefaults(t *testing.T) {
	p := paginate(makeItems(10), pageParams{})

	assert.Len(t, p.Items, 10)
	assert.Equal(t, 10, p.TotalItems)
	assert.Equal(t, 0, p.Offset)
	assert.Equal(t, defaultPageLimit, p.Limit)
	assert.False(t, p.HasMore)
	assert.Nil(t, p.NextOffset)
}

func TestPaginateWindow(t *testing.T) {
	p := paginate(makeItems(120), pageParams{Offset: 40, Limit: 30})

	assert.Len(t, p.Items, 30)
	assert.Equal(t, 120, p.TotalItems)
	assert.True(t, p.HasMore)
	require.NotNil(t, p.NextOffset)
	assert.Equal(t, 70, *p.NextOffset)

	// Every item carries its absolute position.
	assert.Equal(t, 40, p.Items[0]["offset"])
	assert.Equal(t, 69, p.Items[29]["offset"])
}

func TestPaginateLimitClamped(t *testing.T) {
	p := paginate(makeItems(500), pageParams{Limit: 9999})

	assert.Equal(t, maxPageLimit, p.Limit)
	assert.Len(t, p.Items, maxPageLimit)
	assert.True(t, p.HasMore)
}

func TestPaginateOffsetPastEnd(t *testing.T) {
	p := paginate(makeItems(5), pageParams{Offset: 50})

	assert.Empty(t, p.Items)
	assert.Equal(t, 5, p.TotalItems)
	assert.False(t, p.HasMore)
}

func TestPaginateNegativeOffset(t *testing.T) {
	p := paginate(makeItems(3), pageParams{Offset: -10})

	assert.Len(t, p.Items, 3)
	assert.Equal(t, 0, p.Items[0]["offset"])
}
