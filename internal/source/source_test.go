package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/stockcast/internal/domain"
)

func TestStaticSource_GroupsByDepotInOrder(t *testing.T) {
	src := NewStaticSource([]domain.Item{
		{SKU: "B", Depot: "north"},
		{SKU: "A", Depot: "north"},
		{SKU: "C", Depot: "south"},
	})

	items, err := src.ListByScope(context.Background(), "north")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "B", items[0].SKU)
	assert.Equal(t, "A", items[1].SKU)

	items[0].SKU = "mutated"
	again, _ := src.ListByScope(context.Background(), "north")
	assert.Equal(t, "B", again[0].SKU)

	none, err := src.ListByScope(context.Background(), "east")
	require.NoError(t, err)
	assert.Empty(t, none)
}
