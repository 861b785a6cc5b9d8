package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tradetools/gdax-cli/internal/config"
	"github.com/tradetools/gdax-cli/pkg/coinbase"
	"github.com/tradetools/gdax-cli/pkg/models"
	"github.com/tradetools/gdax-cli/pkg/trader"
)

// ANSI colors for ticker trend output
const (
	colorRed   = "\x1b[31m"
	colorGreen = "\x1b[32m"
	colorReset = "\x1b[0m"
)

var (
	cfgFile string
	stream  bool
)

type app struct {
	cfg    *config.Config
	client *coinbase.Client
	trader *trader.Trader
	feed   *trader.TickerFeed
	// legacyAuth is set unless JWT auth is configured; the websocket
	// subscribe message can only be signed with the legacy scheme.
	legacyAuth *coinbase.LegacyAuthenticator
	logger     *logrus.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// A user interrupt is a normal way to leave a watch loop.
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gdax",
		Short:         "Command-line trading client for the Coinbase exchange",
		Long:          `A command-line client for the Coinbase (GDAX) exchange: market data, balances, and the full order lifecycle over the authenticated REST API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(
		newTickerCmd(),
		newBalanceCmd(),
		newOrdersCmd(),
		newOrderCmd(),
		newWatchCmd(),
		newBuySellCmd(models.OrderSideBuy),
		newBuySellCmd(models.OrderSideSell),
		newPlaceCmd(models.OrderTypeMarket),
		newPlaceCmd(models.OrderTypeLimit),
		newPlaceCmd(models.OrderTypeStop),
		newCancelCmd(),
		newLiveCmd(),
		newOrderBookCmd(),
	)
	return rootCmd
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)

	// JWT mode authenticates with the key-name/private-key pair alone;
	// only the legacy scheme needs the API_KEY/API_SECRET/API_PASS triple.
	var auth coinbase.Authenticator
	var legacyAuth *coinbase.LegacyAuthenticator
	switch coinbase.AuthType(cfg.Auth.Type) {
	case coinbase.AuthTypeJWT:
		auth, err = coinbase.NewJWTAuthenticator(cfg.Auth.APIKeyName, cfg.Auth.PrivateKeyPEM)
		if err != nil {
			return nil, err
		}
	default:
		creds, err := config.LoadCredentials(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		legacyAuth, err = coinbase.NewLegacyAuthenticator(creds.APIKey, creds.APISecret, creds.Passphrase)
		if err != nil {
			return nil, err
		}
		auth = legacyAuth
	}

	client := coinbase.NewClient(
		cfg.Exchange.BaseURL,
		auth,
		time.Duration(cfg.Exchange.HTTPTimeoutSec)*time.Second,
		logger,
	)

	t := trader.New(client, trader.Config{
		ProductID:    cfg.Exchange.ProductID,
		PollInterval: time.Duration(cfg.Watch.OrderPollIntervalMs) * time.Millisecond,
		Confirm:      askConfirm,
	}, logger)

	feed := trader.NewTickerFeed(
		client,
		cfg.Exchange.ProductID,
		time.Duration(cfg.Watch.TickerPollIntervalMs)*time.Millisecond,
		logger,
	)

	return &app{
		cfg:        cfg,
		client:     client,
		trader:     t,
		feed:       feed,
		legacyAuth: legacyAuth,
		logger:     logger,
	}, nil
}

// askConfirm reads an interactive y/N answer; anything but y declines.
func askConfirm(prompt string) bool {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

// report prints a runtime failure and swallows it: diagnostics go to
// the user, the process still exits cleanly. Startup failures and
// interrupts propagate.
func report(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, coinbase.ErrOrderNotFound) {
		fmt.Println("Order not found")
		return nil
	}
	if apiErr, ok := coinbase.AsAPIError(err); ok {
		fmt.Print(apiErr.Diagnostic())
		return nil
	}
	fmt.Fprintln(os.Stderr, err)
	return nil
}

func newTickerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ticker",
		Short: "Get current market ticker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			tick, err := a.feed.Fetch(cmd.Context())
			if err != nil {
				return report(err)
			}
			fmt.Printf("Market price: %s\n", models.FormatUSD(tick.Price))
			return nil
		},
	}
}

func newBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Get current account balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			accounts, err := a.client.GetAccounts(cmd.Context())
			if err != nil {
				return report(err)
			}
			base, quote := pairCurrencies(a.cfg.Exchange.ProductID)
			for _, account := range accounts {
				if account.Currency == base || account.Currency == quote {
					fmt.Printf("%s: %s\n", account.Currency, models.FormatBTC(account.Balance))
				}
			}
			return nil
		},
	}
}

func newOrdersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "Get list of existing orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			orders, err := a.trader.ListOpen(cmd.Context())
			if err != nil {
				return report(err)
			}
			for _, order := range orders {
				fmt.Printf("%s (%s): %s %s %sBTC at $%s\n",
					order.ID,
					order.Status,
					order.Type,
					order.Side,
					models.FormatBTC(order.Size),
					models.FormatUSD(order.Price),
				)
			}
			return nil
		},
	}
}

func newOrderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order <order-id>",
		Short: "Get details of existing order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			order, err := a.trader.Get(cmd.Context(), args[0])
			if err != nil {
				return report(err)
			}
			describeOrder(order)
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <order-id>",
		Short: "Watch order for completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			order, err := a.trader.Watch(cmd.Context(), args[0])
			if err != nil {
				return report(err)
			}
			describeOrder(order)
			return nil
		},
	}
}

// newBuySellCmd builds the buy/sell shorthand for a market order. Both
// sides require the amount and the price.
func newBuySellCmd(side models.OrderSide) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s <btc-amount> <price>", side),
		Short: fmt.Sprintf("Market %s BTC", side),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlace(cmd.Context(), models.OrderTypeMarket, string(side), args[0], args[1])
		},
	}
}

func newPlaceCmd(otype models.OrderType) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s <buy|sell> <btc-amount> <price>", otype),
		Short: fmt.Sprintf("Place a %s buy/sell order", otype),
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlace(cmd.Context(), otype, args[0], args[1], args[2])
		},
	}
}

func runPlace(ctx context.Context, otype models.OrderType, sideArg, sizeArg, priceArg string) error {
	side, ok := models.ParseOrderSide(sideArg)
	if !ok {
		return fmt.Errorf("invalid side %q: must be buy or sell", sideArg)
	}
	size, err := models.ParseAmount(sizeArg)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", sizeArg, err)
	}
	price, err := models.ParseAmount(priceArg)
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", priceArg, err)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	order, err := a.trader.Place(ctx, otype, side, size, price)
	switch {
	case errors.Is(err, trader.ErrDeclined):
		fmt.Println("Order not placed")
		return nil
	case err != nil:
		fmt.Println("Failed to place order!")
		return report(err)
	}
	fmt.Printf("Order placed successfully (ID %s)\n", order.ID)
	return nil
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel an existing order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			order, err := a.trader.Cancel(cmd.Context(), args[0])
			if errors.Is(err, coinbase.ErrOrderNotFound) {
				fmt.Println("Order does not exist")
				return nil
			}
			if err != nil {
				fmt.Println("Failed to cancel order!")
				return report(err)
			}
			fmt.Printf("Cancelled %s %s order for %s BTC at $%s/coin\n",
				order.Type,
				order.Side,
				models.FormatBTC(order.Size),
				models.FormatUSD(order.Price),
			)
			return nil
		},
	}
}

func newLiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Live stream of ticker data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			if stream {
				return report(runLiveStream(cmd.Context(), a))
			}
			err = a.feed.Watch(cmd.Context(), func(u trader.TickerUpdate) {
				printTick(u.Price, u.Trend)
			})
			return report(err)
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "use the websocket feed instead of REST polling")
	return cmd
}

func runLiveStream(ctx context.Context, a *app) error {
	if a.legacyAuth == nil {
		return errors.New("websocket streaming requires legacy authentication")
	}
	ws := coinbase.NewWebSocketFeed(a.cfg.Exchange.WebSocketURL, a.legacyAuth, a.logger)
	ticks, err := ws.Stream(ctx, a.cfg.Exchange.ProductID)
	if err != nil {
		return err
	}
	last := decimal.Zero
	for tick := range ticks {
		trend := trader.TrendFlat
		switch tick.Price.Cmp(last) {
		case 1:
			trend = trader.TrendUp
		case -1:
			trend = trader.TrendDown
		}
		printTick(tick.Price, trend)
		last = tick.Price
	}
	return ctx.Err()
}

func printTick(price decimal.Decimal, trend trader.Trend) {
	formatted := models.FormatUSD(price)
	switch trend {
	case trader.TrendUp:
		fmt.Printf("Market price: %s%s%s\n", colorGreen, formatted, colorReset)
	case trader.TrendDown:
		fmt.Printf("Market price: %s%s%s\n", colorRed, formatted, colorReset)
	default:
		fmt.Printf("Market price: %s\n", formatted)
	}
}

func newOrderBookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orderbook",
		Short: "Snapshot of the level-2 order book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			book, err := a.client.GetOrderBook(cmd.Context(), a.cfg.Exchange.ProductID, 2)
			if err != nil {
				return report(err)
			}
			if len(book.Bids) > 0 {
				best := book.Bids[0]
				fmt.Printf("Best bid: %s (%s BTC across %d orders)\n",
					models.FormatUSD(best.Price), models.FormatBTC(best.Size), best.NumOrders)
			}
			if len(book.Asks) > 0 {
				best := book.Asks[0]
				fmt.Printf("Best ask: %s (%s BTC across %d orders)\n",
					models.FormatUSD(best.Price), models.FormatBTC(best.Size), best.NumOrders)
			}
			fmt.Printf("Depth: %d bid levels, %d ask levels\n", len(book.Bids), len(book.Asks))
			return nil
		},
	}
}

// describeOrder prints the human-readable state of an order snapshot.
func describeOrder(order *models.Order) {
	switch {
	case order.Status.Completed():
		verb := "Bought"
		if order.Side == models.OrderSideSell {
			verb = "Sold"
		}
		fmt.Printf("%s %s BTC at $%s\n", verb, models.FormatBTC(order.FilledSize), models.FormatUSD(order.Funds))
	case order.Status == models.OrderStatusRejected:
		fmt.Println("Order was rejected")
	case !order.Status.Recognized():
		fmt.Printf("Error processing order (status: %s)\n", order.Status)
	default:
		fmt.Printf("%s %s %sBTC at $%s (pending)\n",
			order.Type,
			order.Side,
			models.FormatBTC(order.Size),
			models.FormatUSD(order.Price),
		)
	}
}

func pairCurrencies(productID string) (base, quote string) {
	parts := strings.SplitN(productID, "-", 2)
	base = parts[0]
	if len(parts) > 1 {
		quote = parts[1]
	}
	return base, quote
}
