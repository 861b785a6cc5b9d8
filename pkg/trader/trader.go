package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/tradetools/gdax-cli/pkg/coinbase"
	"github.com/tradetools/gdax-cli/pkg/models"
)

const defaultPollInterval = time.Second

// ErrDeclined is returned when the confirmation callback answers no.
// The order was never sent.
var ErrDeclined = errors.New("order placement declined")

// ConfirmFunc answers an interactive yes/no prompt. A nil ConfirmFunc
// means always yes, which is what automated callers want.
type ConfirmFunc func(prompt string) bool

type Config struct {
	ProductID    string
	PollInterval time.Duration
	Confirm      ConfirmFunc
}

// Trader drives the order lifecycle for a single trading pair:
// place, get, cancel, and the poll-until-terminal watch loop.
type Trader struct {
	exchange     coinbase.Exchange
	productID    string
	pollInterval time.Duration
	confirm      ConfirmFunc
	logger       *logrus.Logger
}

func New(exchange coinbase.Exchange, cfg Config, logger *logrus.Logger) *Trader {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Trader{
		exchange:     exchange,
		productID:    cfg.ProductID,
		pollInterval: interval,
		confirm:      cfg.Confirm,
		logger:       logger,
	}
}

// Place submits a new order. Market orders are never post-only; limit
// and stop orders always are. A declined confirmation returns
// ErrDeclined without touching the network; an *APIError means the
// exchange rejected the order; any other error means the request
// failed to send.
func (t *Trader) Place(ctx context.Context, otype models.OrderType, side models.OrderSide, size, price decimal.Decimal) (*models.Order, error) {
	req := &models.OrderRequest{
		ProductID: t.productID,
		Type:      otype,
		Side:      side,
		Size:      size,
		Price:     price,
		PostOnly:  otype != models.OrderTypeMarket,
	}

	if t.confirm != nil {
		prompt := fmt.Sprintf("Place %s %s order for %s BTC at $%s/coin (y/N)? ",
			otype, side, models.FormatBTC(size), models.FormatUSD(price))
		if !t.confirm(prompt) {
			return nil, ErrDeclined
		}
	}

	order, err := t.exchange.PlaceOrder(ctx, req)
	if err != nil {
		t.logger.WithError(err).WithFields(logrus.Fields{
			"type": otype,
			"side": side,
		}).Debug("Order placement failed")
		return nil, err
	}

	t.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"status":   order.Status,
	}).Debug("Order placed")
	return order, nil
}

// Get fetches the current order snapshot. A missing order is
// coinbase.ErrOrderNotFound, a normal outcome.
func (t *Trader) Get(ctx context.Context, orderID string) (*models.Order, error) {
	return t.exchange.GetOrder(ctx, orderID)
}

// ListOpen returns the open orders for the credential.
func (t *Trader) ListOpen(ctx context.Context) ([]models.Order, error) {
	return t.exchange.ListOpenOrders(ctx)
}

// Cancel fetches the order first so the caller can report what was
// cancelled. A missing order short-circuits to ErrOrderNotFound before
// any DELETE is issued.
func (t *Trader) Cancel(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := t.exchange.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := t.exchange.CancelOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return order, nil
}

// Watch polls the order until it leaves the pending/open states and
// returns the first terminal snapshot. The loop is unbounded; the only
// way out besides a terminal status is ctx cancellation.
func (t *Trader) Watch(ctx context.Context, orderID string) (*models.Order, error) {
	for {
		order, err := t.exchange.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order.Status.Terminal() {
			return order, nil
		}

		t.logger.WithFields(logrus.Fields{
			"order_id": orderID,
			"status":   order.Status,
		}).Debug("Order still in flight")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t.pollInterval):
		}
	}
}
