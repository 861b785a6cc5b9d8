package trader

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyTrend(t *testing.T) {
	cases := []struct {
		name              string
		current, previous string
		want              Trend
	}{
		{"increase", "105", "100", TrendUp},
		{"decrease", "95", "100", TrendDown},
		{"unchanged", "100", "100", TrendFlat},
		{"first observation", "100", "0", TrendUp},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyTrend(
				decimal.RequireFromString(tc.current),
				decimal.RequireFromString(tc.previous),
			)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWatchEmitsTrendAgainstPreviousFetch(t *testing.T) {
	scriptEnd := errors.New("script exhausted")
	fake := &fakeExchange{
		tickPrices: []string{"100", "105", "105", "95"},
		tickErr:    scriptEnd,
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	feed := NewTickerFeed(fake, "BTC-USD", 0, logger)

	var updates []TickerUpdate
	err := feed.Watch(context.Background(), func(u TickerUpdate) {
		updates = append(updates, u)
	})
	assert.ErrorIs(t, err, scriptEnd)

	require.Len(t, updates, 4)
	assert.Equal(t, []Trend{TrendUp, TrendUp, TrendFlat, TrendDown}, []Trend{
		updates[0].Trend, updates[1].Trend, updates[2].Trend, updates[3].Trend,
	})
	assert.True(t, updates[3].Price.Equal(decimal.RequireFromString("95")))
}

func TestWatchStopsOnCancellation(t *testing.T) {
	fake := &fakeExchange{tickPrices: []string{"100"}}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	feed := NewTickerFeed(fake, "BTC-USD", 0, logger)

	ctx, cancel := context.WithCancel(context.Background())
	err := feed.Watch(ctx, func(u TickerUpdate) {
		cancel()
	})
	assert.Error(t, err)
}
