package trader

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tradetools/gdax-cli/pkg/coinbase"
	"github.com/tradetools/gdax-cli/pkg/models"
)

// Trend classifies a price against the previous observation.
type Trend int

const (
	TrendFlat Trend = iota
	TrendUp
	TrendDown
)

// TickerUpdate is one observation from a watch loop.
type TickerUpdate struct {
	Price decimal.Decimal
	Trend Trend
}

// TickerFeed polls the REST ticker. A zero poll interval keeps the
// reference behavior of fetching again as soon as the previous call
// returns; that hammers the rate limit, so callers normally configure
// an interval.
type TickerFeed struct {
	exchange  coinbase.Exchange
	productID string
	limiter   *rate.Limiter
	logger    *logrus.Logger
}

func NewTickerFeed(exchange coinbase.Exchange, productID string, pollInterval time.Duration, logger *logrus.Logger) *TickerFeed {
	limit := rate.Inf
	if pollInterval > 0 {
		limit = rate.Every(pollInterval)
	}
	return &TickerFeed{
		exchange:  exchange,
		productID: productID,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// Fetch returns the current ticker snapshot.
func (f *TickerFeed) Fetch(ctx context.Context) (*models.Ticker, error) {
	return f.exchange.GetTicker(ctx, f.productID)
}

// Watch fetches the ticker forever, emitting each price with its trend
// against the previous fetch. The first observation compares against
// zero. Returns only on ctx cancellation or a fetch error.
func (f *TickerFeed) Watch(ctx context.Context, emit func(TickerUpdate)) error {
	last := decimal.Zero
	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
		tick, err := f.Fetch(ctx)
		if err != nil {
			return err
		}
		emit(TickerUpdate{
			Price: tick.Price,
			Trend: classifyTrend(tick.Price, last),
		})
		last = tick.Price
	}
}

func classifyTrend(current, previous decimal.Decimal) Trend {
	switch current.Cmp(previous) {
	case 1:
		return TrendUp
	case -1:
		return TrendDown
	}
	return TrendFlat
}
