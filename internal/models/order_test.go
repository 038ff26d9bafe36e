package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsOpenLikeOrderStatus(t *testing.T) {
	open := []string{"new", "accepted", "partially_filled", "pending_new", "pending_cancel", "pending_replace"}
	for _, s := range open {
		assert.True(t, IsOpenLikeOrderStatus(s), s)
	}
	terminal := []string{"filled", "canceled", "rejected", "expired", "done_for_day", ""}
	for _, s := range terminal {
		assert.False(t, IsOpenLikeOrderStatus(s), s)
	}
}

func TestFlattenOrders(t *testing.T) {
	orders := []Order{
		{
			ID: "a", Status: OrderStatusFilled,
			Legs: []Order{
				{ID: "a1", Status: OrderStatusNew},
				{
					ID: "a2", Status: OrderStatusCanceled,
					Legs: []Order{{ID: "a2x", Status: OrderStatusAccepted}},
				},
			},
		},
		{ID: "b", Status: OrderStatusNew},
	}

	flat := FlattenOrders(orders)
	require.Len(t, flat, 5)
	ids := make([]string, len(flat))
	for i, o := range flat {
		ids[i] = o.ID
		assert.Empty(t, o.Legs, "ноги должны быть развёрнуты")
	}
	assert.Equal(t, []string{"a", "a1", "a2", "a2x", "b"}, ids)

	openLike := OpenLikeOrders(orders)
	require.Len(t, openLike, 3)
}
