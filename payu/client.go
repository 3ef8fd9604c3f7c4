package payu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// API URLs
	APISandboxURL    = "https://secure.snd.payu.com"
	APIProductionURL = "https://secure.payu.com"

	// API Endpoints
	endpointAuthorize    = "/pl/standard/user/oauth/authorize"
	endpointOrders       = "/api/v2_1/orders"
	endpointOrder        = "/api/v2_1/orders/%s"
	endpointOrderRefunds = "/api/v2_1/orders/%s/refunds"
	endpointOrderRefund  = "/api/v2_1/orders/%s/refunds/%s"
	endpointCaptures     = "/api/v2_1/orders/%s/captures"
	endpointTransactions = "/api/v2_1/orders/%s/transactions"
	endpointShop         = "/api/v2_1/shops/%s"
	endpointPayMethods   = "/api/v2_1/paymethods"
	endpointPayouts      = "/api/v2_1/payouts"
	endpointPayout       = "/api/v2_1/payouts/%s"
	endpointToken        = "/api/v2_1/tokens/%s"

	// A token this close to expiry is refreshed before use.
	tokenExpiryMargin = 5 * time.Second

	defaultTimeout = 30 * time.Second
)

// ClientConfig holds the credentials and endpoint for a PayU point of sale.
type ClientConfig struct {
	APIURL      string
	PosID       string
	OAuthID     string
	OAuthSecret string
	Timeout     time.Duration
}

// Client is a typed facade over the PayU REST API. It holds only the OAuth2
// bearer token and its expiry; every call re-authenticates lazily when the
// token is absent or about to expire. Concurrent calls may race on the
// refresh, which is harmless: re-acquiring a token has no side effect.
type Client struct {
	apiURL      string
	posID       string
	oauthID     string
	oauthSecret string
	client      *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a PayU API client. Redirects are never followed: a 302
// from order creation is a success signal carrying the payment page URL,
// not a location to fetch.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiURL:      strings.TrimSuffix(cfg.APIURL, "/"),
		posID:       cfg.PosID,
		oauthID:     cfg.OAuthID,
		oauthSecret: cfg.OAuthSecret,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// ensureAuth refreshes the cached token when it is missing or within the
// expiry margin.
func (c *Client) ensureAuth(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Until(c.tokenExpiry) > tokenExpiryMargin {
		return nil
	}
	return c.authorize(ctx)
}

// authorize performs the client-credentials grant. Callers must hold c.mu.
func (c *Client) authorize(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.oauthID)
	form.Set("client_secret", c.oauthSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+endpointAuthorize, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("payu: failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return &CredentialsError{Response: GatewayResponse{Body: []byte(err.Error())}}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("payu: failed to read auth response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &CredentialsError{Response: GatewayResponse{StatusCode: resp.StatusCode, Body: body}}
	}

	var grant struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &grant); err != nil {
		return &CredentialsError{Response: GatewayResponse{StatusCode: resp.StatusCode, Body: body}}
	}

	c.token = capitalize(grant.TokenType) + " " + grant.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(grant.ExpiresIn) * time.Second)
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// send executes an authenticated JSON request and returns the status code
// and raw response body. Transport failures surface as CommunicationError.
func (c *Client) send(ctx context.Context, op, method, path string, body []byte) (int, []byte, error) {
	if err := c.ensureAuth(ctx); err != nil {
		return 0, nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("payu: failed to create request: %w", err)
	}

	c.mu.Lock()
	req.Header.Set("Authorization", c.token)
	c.mu.Unlock()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, &CommunicationError{Op: op, Response: GatewayResponse{Body: []byte(err.Error())}}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &CommunicationError{Op: op, Response: GatewayResponse{StatusCode: resp.StatusCode, Body: []byte(err.Error())}}
	}
	return resp.StatusCode, respBody, nil
}

// decodeMajor parses a JSON response and converts centified amount fields
// back into decimals.
func decodeMajor(body []byte) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("payu: failed to parse response: %w", err)
	}
	normalized, _ := ToMajorUnits(data).(map[string]any)
	return normalized, nil
}

// decodeRaw parses a JSON response without amount conversion, for endpoints
// whose amount fields are not centified or fall outside the allow-list.
func decodeRaw(body []byte) (any, error) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("payu: failed to parse response: %w", err)
	}
	return data, nil
}

// OrderRequest describes a new order to register with PayU. Amounts are
// decimal major units; the client centifies them on the wire.
type OrderRequest struct {
	OrderID      string
	Amount       decimal.Decimal
	Currency     string
	Description  string
	CustomerIP   string
	Buyer        *Buyer
	Products     []Product
	NotifyURL    string
	ContinueURL  string
	ValidityTime int
	// Extra carries forward-compatible order fields (payMethods, riskData,
	// recurring, ...) straight into the request body.
	Extra map[string]any
}

// NewOrder registers a new order. 200, 201 and 302 are all success: a 302
// signals a redirect-based payment flow. Anything else is a lock failure.
func (c *Client) NewOrder(ctx context.Context, order OrderRequest) (map[string]any, error) {
	customerIP := order.CustomerIP
	if customerIP == "" {
		customerIP = "127.0.0.1"
	}
	description := order.Description
	if description == "" {
		description = "Payment order"
	}
	products := order.Products
	if len(products) == 0 {
		products = []Product{{Name: "Total order", UnitPrice: order.Amount, Quantity: 1}}
	}

	data := map[string]any{
		"extOrderId":    order.OrderID,
		"customerIp":    customerIP,
		"merchantPosId": c.posID,
		"description":   description,
		"currencyCode":  strings.ToUpper(order.Currency),
		"totalAmount":   order.Amount,
		"products":      productsToTree(products),
	}
	if order.NotifyURL != "" {
		data["notifyUrl"] = order.NotifyURL
	}
	if order.ContinueURL != "" {
		data["continueUrl"] = order.ContinueURL
	}
	if order.ValidityTime > 0 {
		data["validityTime"] = order.ValidityTime
	}
	if order.Buyer != nil {
		data["buyer"] = buyerToTree(*order.Buyer)
	}
	for k, v := range order.Extra {
		data[k] = v
	}

	encoded, err := json.Marshal(ToMinorUnits(data))
	if err != nil {
		return nil, fmt.Errorf("payu: failed to marshal order: %w", err)
	}

	status, body, err := c.send(ctx, "create order", http.MethodPost, endpointOrders, encoded)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusFound:
		return decodeMajor(body)
	}
	return nil, &LockFailure{Response: GatewayResponse{StatusCode: status, Body: body}}
}

// RefundOptions describe a refund request. A nil Amount asks for a full
// refund.
type RefundOptions struct {
	Amount          *decimal.Decimal
	Description     string
	ExtRefundID     string
	CurrencyCode    string
	BankDescription string
	Type            string
}

// Refund requests a refund for an order. The order id is path-scoped only
// and never appears in the request body.
func (c *Client) Refund(ctx context.Context, orderID string, opts RefundOptions) (map[string]any, error) {
	description := opts.Description
	if description == "" {
		description = "Refund"
	}
	refund := map[string]any{
		"description": description,
	}
	if opts.Amount != nil {
		refund["amount"] = *opts.Amount
	}
	if opts.ExtRefundID != "" {
		refund["extRefundId"] = opts.ExtRefundID
	}
	if opts.CurrencyCode != "" {
		refund["currencyCode"] = opts.CurrencyCode
	}
	if opts.BankDescription != "" {
		refund["bankDescription"] = opts.BankDescription
	}
	if opts.Type != "" {
		refund["type"] = opts.Type
	}

	encoded, err := json.Marshal(map[string]any{"refund": ToMinorUnits(refund)})
	if err != nil {
		return nil, fmt.Errorf("payu: failed to marshal refund: %w", err)
	}

	status, body, err := c.send(ctx, "create refund", http.MethodPost, fmt.Sprintf(endpointOrderRefunds, orderID), encoded)
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK {
		return decodeMajor(body)
	}
	return nil, &RefundFailure{Response: GatewayResponse{StatusCode: status, Body: body}}
}

// CancelOrder cancels an existing order, releasing any funds lock.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (map[string]any, error) {
	status, body, err := c.send(ctx, "cancel order", http.MethodDelete, fmt.Sprintf(endpointOrder, orderID), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK {
		return decodeMajor(body)
	}
	return nil, &CommunicationError{Op: "cancel order", Response: GatewayResponse{StatusCode: status, Body: body}}
}

// Capture charges a previously locked (pre-authorized) order.
func (c *Client) Capture(ctx context.Context, orderID string) (map[string]any, error) {
	status, body, err := c.send(ctx, "capture order", http.MethodPost, fmt.Sprintf(endpointCaptures, orderID), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK {
		return decodeMajor(body)
	}
	return nil, &ChargeFailure{Response: GatewayResponse{StatusCode: status, Body: body}}
}

// GetOrderInfo retrieves order details.
func (c *Client) GetOrderInfo(ctx context.Context, orderID string) (map[string]any, error) {
	return c.getMajor(ctx, "get order info", fmt.Sprintf(endpointOrder, orderID))
}

// GetShopInfo retrieves shop details, including the available balance.
func (c *Client) GetShopInfo(ctx context.Context, shopID string) (map[string]any, error) {
	return c.getMajor(ctx, "get shop info", fmt.Sprintf(endpointShop, shopID))
}

func (c *Client) getMajor(ctx context.Context, op, path string) (map[string]any, error) {
	status, body, err := c.send(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK {
		return decodeMajor(body)
	}
	return nil, &CommunicationError{Op: op, Response: GatewayResponse{StatusCode: status, Body: body}}
}

// GetPaymentMethods lists all payment methods available to the point of
// sale. The response is returned as received: the gateway does not centify
// these fields.
func (c *Client) GetPaymentMethods(ctx context.Context, lang string) (any, error) {
	path := endpointPayMethods
	if lang != "" {
		path += "?lang=" + url.QueryEscape(lang)
	}
	return c.getRaw(ctx, "get payment methods", path)
}

// GetTransaction retrieves transaction details for an order, as received.
func (c *Client) GetTransaction(ctx context.Context, orderID string) (any, error) {
	return c.getRaw(ctx, "get transaction", fmt.Sprintf(endpointTransactions, orderID))
}

// GetRefunds lists all refunds for an order, as received.
func (c *Client) GetRefunds(ctx context.Context, orderID string) (any, error) {
	return c.getRaw(ctx, "get refunds", fmt.Sprintf(endpointOrderRefunds, orderID))
}

// GetRefund retrieves a single refund record, as received.
func (c *Client) GetRefund(ctx context.Context, orderID, refundID string) (any, error) {
	return c.getRaw(ctx, "get refund", fmt.Sprintf(endpointOrderRefund, orderID, refundID))
}

func (c *Client) getRaw(ctx context.Context, op, path string) (any, error) {
	status, body, err := c.send(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK {
		return decodeRaw(body)
	}
	return nil, &CommunicationError{Op: op, Response: GatewayResponse{StatusCode: status, Body: body}}
}

// PayoutOptions describe a payout. Amount is in minor units, matching the
// gateway's payout API; a nil Amount withdraws the full available balance.
type PayoutOptions struct {
	ShopID      string
	Amount      *int64
	Description string
	ExtPayoutID string
}

// CreatePayout withdraws funds from the PayU account.
func (c *Client) CreatePayout(ctx context.Context, opts PayoutOptions) (any, error) {
	data := map[string]any{"shopId": opts.ShopID}
	payout := map[string]any{}
	if opts.Amount != nil {
		payout["amount"] = *opts.Amount
	}
	if opts.Description != "" {
		payout["description"] = opts.Description
	}
	if opts.ExtPayoutID != "" {
		payout["extPayoutId"] = opts.ExtPayoutID
	}
	if len(payout) > 0 {
		data["payout"] = payout
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("payu: failed to marshal payout: %w", err)
	}

	status, body, err := c.send(ctx, "create payout", http.MethodPost, endpointPayouts, encoded)
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK {
		return decodeRaw(body)
	}
	return nil, &CommunicationError{Op: "create payout", Response: GatewayResponse{StatusCode: status, Body: body}}
}

// GetPayout retrieves payout details, as received.
func (c *Client) GetPayout(ctx context.Context, payoutID string) (any, error) {
	return c.getRaw(ctx, "get payout", fmt.Sprintf(endpointPayout, payoutID))
}

// DeleteToken deletes a stored payment token.
func (c *Client) DeleteToken(ctx context.Context, token string) error {
	status, body, err := c.send(ctx, "delete token", http.MethodDelete, fmt.Sprintf(endpointToken, token), nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK || status == http.StatusNoContent {
		return nil
	}
	return &CommunicationError{Op: "delete token", Response: GatewayResponse{StatusCode: status, Body: body}}
}

func productsToTree(products []Product) []any {
	tree := make([]any, len(products))
	for i, p := range products {
		tree[i] = map[string]any{
			"name":      p.Name,
			"unitPrice": p.UnitPrice,
			"quantity":  p.Quantity,
		}
	}
	return tree
}

func buyerToTree(b Buyer) map[string]any {
	tree := map[string]any{}
	if b.Email != "" {
		tree["email"] = b.Email
	}
	if b.FirstName != "" {
		tree["firstName"] = b.FirstName
	}
	if b.LastName != "" {
		tree["lastName"] = b.LastName
	}
	if b.Phone != "" {
		tree["phone"] = b.Phone
	}
	return tree
}
