package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusClassification(t *testing.T) {
	cases := []struct {
		status     OrderStatus
		terminal   bool
		completed  bool
		recognized bool
	}{
		{OrderStatusPending, false, false, true},
		{OrderStatusOpen, false, false, true},
		{OrderStatusDone, true, true, true},
		{OrderStatusSettled, true, true, true},
		{OrderStatusRejected, true, false, true},
		{OrderStatus("halted"), true, false, false},
		{OrderStatus(""), true, false, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			assert.Equal(t, tc.terminal, tc.status.Terminal())
			assert.Equal(t, tc.completed, tc.status.Completed())
			assert.Equal(t, tc.recognized, tc.status.Recognized())
		})
	}
}

func TestParseOrderSide(t *testing.T) {
	side, ok := ParseOrderSide("buy")
	assert.True(t, ok)
	assert.Equal(t, OrderSideBuy, side)

	_, ok = ParseOrderSide("hold")
	assert.False(t, ok)
}

func TestParseOrderType(t *testing.T) {
	for _, valid := range []string{"market", "limit", "stop"} {
		_, ok := ParseOrderType(valid)
		assert.True(t, ok, valid)
	}
	_, ok := ParseOrderType("iceberg")
	assert.False(t, ok)
}
