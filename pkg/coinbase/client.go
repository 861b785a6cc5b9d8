package coinbase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradetools/gdax-cli/pkg/models"
)

const DefaultBaseURL = "https://api.exchange.coinbase.com"

// ErrOrderNotFound is the normal outcome of looking up or cancelling an
// order the exchange does not know about. It is not an APIError.
var ErrOrderNotFound = errors.New("order not found")

// Exchange is the set of authenticated calls the rest of the program
// uses. *Client is the live implementation.
type Exchange interface {
	GetTicker(ctx context.Context, productID string) (*models.Ticker, error)
	GetOrderBook(ctx context.Context, productID string, level int) (*models.OrderBook, error)
	GetAccounts(ctx context.Context) ([]models.Account, error)
	ListOpenOrders(ctx context.Context) ([]models.Order, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	PlaceOrder(ctx context.Context, req *models.OrderRequest) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// APIError is a non-2xx (and non-whitelisted-404) response. It carries
// everything needed for a complete diagnostic: the endpoint, the
// server's message when parseable, the outbound request body, and the
// raw response text.
type APIError struct {
	Endpoint      string
	Status        int
	ServerMessage string
	RequestBody   string
	RawResponse   string
}

func (e *APIError) Error() string {
	if e.ServerMessage != "" {
		return fmt.Sprintf("api error from %s: %d %s", e.Endpoint, e.Status, e.ServerMessage)
	}
	return fmt.Sprintf("api error from %s: status %d", e.Endpoint, e.Status)
}

// Diagnostic renders the full error block shown to the user on request
// failure. Completeness here is part of the client's contract.
func (e *APIError) Diagnostic() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error getting data from API: %s\n", e.Endpoint)
	if e.ServerMessage != "" {
		fmt.Fprintf(&b, "Response: %s\n", e.ServerMessage)
	}
	params := e.RequestBody
	if params == "" {
		params = "None"
	}
	fmt.Fprintf(&b, "Params: %s\n", params)
	fmt.Fprintf(&b, "Raw: %s\n", e.RawResponse)
	return b.String()
}

func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Client performs typed, signed calls against the exchange REST API. It
// holds the only reference to the credential (through its
// Authenticator) and no other mutable state; methods are safe to call
// sequentially for the life of the process.
type Client struct {
	baseURL    string
	auth       Authenticator
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(baseURL string, auth Authenticator, timeout time.Duration, logger *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		auth:       auth,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// do issues one signed call. A non-nil body forces POST with the body
// JSON-encoded; otherwise the given method is used with no body. HTTP
// 200 is success, as is 404 when allow404 is set (idempotent lookups
// and cancels). Every other status becomes an *APIError. An empty
// success body is returned as an empty JSON object. No retries at any
// layer.
func (c *Client) do(ctx context.Context, method, endpoint string, body interface{}, allow404 bool) (json.RawMessage, error) {
	path := "/" + endpoint

	var bodyString string
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request for %s: %w", endpoint, err)
		}
		bodyString = string(encoded)
		reqBody = strings.NewReader(bodyString)
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", endpoint, err)
	}
	if err := c.auth.AddAuthHeaders(req, method, path, bodyString); err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"endpoint": endpoint,
	}).Debug("API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", endpoint, err)
	}

	if resp.StatusCode == http.StatusOK || (allow404 && resp.StatusCode == http.StatusNotFound) {
		if len(bytes.TrimSpace(raw)) == 0 {
			return json.RawMessage("{}"), nil
		}
		return json.RawMessage(raw), nil
	}

	apiErr := &APIError{
		Endpoint:    endpoint,
		Status:      resp.StatusCode,
		RequestBody: bodyString,
		RawResponse: string(raw),
	}
	var serverMsg struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &serverMsg) == nil {
		apiErr.ServerMessage = serverMsg.Message
	}
	return nil, apiErr
}

func (c *Client) GetTicker(ctx context.Context, productID string) (*models.Ticker, error) {
	raw, err := c.do(ctx, http.MethodGet, "products/"+productID+"/ticker", nil, false)
	if err != nil {
		return nil, err
	}
	var ticker models.Ticker
	if err := json.Unmarshal(raw, &ticker); err != nil {
		return nil, fmt.Errorf("parse ticker: %w", err)
	}
	return &ticker, nil
}

func (c *Client) GetOrderBook(ctx context.Context, productID string, level int) (*models.OrderBook, error) {
	endpoint := "products/" + productID + "/book?level=" + strconv.Itoa(level)
	raw, err := c.do(ctx, http.MethodGet, endpoint, nil, false)
	if err != nil {
		return nil, err
	}
	var book models.OrderBook
	if err := json.Unmarshal(raw, &book); err != nil {
		return nil, fmt.Errorf("parse order book: %w", err)
	}
	return &book, nil
}

func (c *Client) GetAccounts(ctx context.Context) ([]models.Account, error) {
	raw, err := c.do(ctx, http.MethodGet, "accounts", nil, false)
	if err != nil {
		return nil, err
	}
	var accounts []models.Account
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("parse accounts: %w", err)
	}
	return accounts, nil
}

func (c *Client) ListOpenOrders(ctx context.Context) ([]models.Order, error) {
	raw, err := c.do(ctx, http.MethodGet, "orders?status=open", nil, false)
	if err != nil {
		return nil, err
	}
	var orders []models.Order
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, fmt.Errorf("parse orders: %w", err)
	}
	return orders, nil
}

// GetOrder resolves both an HTTP 404 and a {"message":"NotFound"} body
// to ErrOrderNotFound; the two are equivalent outcomes, not errors.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	raw, err := c.do(ctx, http.MethodGet, "orders/"+orderID, nil, true)
	if err != nil {
		return nil, err
	}
	if isNotFoundBody(raw) {
		return nil, ErrOrderNotFound
	}
	var order models.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("parse order %s: %w", orderID, err)
	}
	if order.ID == "" {
		return nil, ErrOrderNotFound
	}
	return &order, nil
}

// placeOrderPayload is the exact wire shape of a new-order request.
// Size and price carry exactly 8 fractional digits, never a binary
// float.
type placeOrderPayload struct {
	ProductID string `json:"product_id"`
	Type      string `json:"type"`
	Side      string `json:"side"`
	Size      string `json:"size"`
	Price     string `json:"price"`
	PostOnly  bool   `json:"post_only"`
}

func (c *Client) PlaceOrder(ctx context.Context, req *models.OrderRequest) (*models.Order, error) {
	payload := &placeOrderPayload{
		ProductID: req.ProductID,
		Type:      string(req.Type),
		Side:      string(req.Side),
		Size:      models.FormatAmount(req.Size, models.BTCPlaces),
		Price:     models.FormatAmount(req.Price, models.BTCPlaces),
		PostOnly:  req.PostOnly,
	}
	raw, err := c.do(ctx, http.MethodPost, "orders", payload, false)
	if err != nil {
		return nil, err
	}
	var order models.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("parse placed order: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("placed order response missing id: %s", string(raw))
	}
	return &order, nil
}

// CancelOrder treats an empty success body as cancellation confirmed.
// A NotFound response maps to ErrOrderNotFound; anything else non-empty
// means the cancel was not confirmed.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	raw, err := c.do(ctx, http.MethodDelete, "orders/"+orderID, nil, true)
	if err != nil {
		return err
	}
	if isNotFoundBody(raw) {
		return ErrOrderNotFound
	}
	if emptyBody(raw) {
		return nil
	}
	return fmt.Errorf("cancel order %s not confirmed: %s", orderID, string(raw))
}

func isNotFoundBody(raw json.RawMessage) bool {
	var probe struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return probe.Message == "NotFound"
}

func emptyBody(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "{}"
}
