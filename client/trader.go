package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Order listing and transaction windows use the provider's millisecond ISO form.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// AccountNumbers lists plain account numbers together with the hash values
// the trading endpoints require in URL paths.
func (c *Client) AccountNumbers(ctx context.Context) ([]AccountNumberHash, error) {
	var out []AccountNumberHash
	if err := c.getJSON(ctx, c.TraderURL+"/accounts/accountNumbers", &out); err != nil {
		return nil, fmt.Errorf("fetching account numbers: %w", err)
	}
	return out, nil
}

// Accounts fetches every linked account. fields may be "positions" to
// include holdings.
func (c *Client) Accounts(ctx context.Context, fields string) ([]Account, error) {
	u := c.TraderURL + "/accounts"
	if fields != "" {
		u += "?fields=" + url.QueryEscape(fields)
	}
	var out []Account
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("fetching accounts: %w", err)
	}
	return out, nil
}

// Account fetches a single account by its hash value.
func (c *Client) Account(ctx context.Context, accountHash, fields string) (*Account, error) {
	u := c.TraderURL + "/accounts/" + url.PathEscape(accountHash)
	if fields != "" {
		u += "?fields=" + url.QueryEscape(fields)
	}
	var out Account
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}
	return &out, nil
}

// OrderParams narrows an order listing.
type OrderParams struct {
	From       time.Time
	To         time.Time
	Status     string
	MaxResults int
}

func (p OrderParams) values() url.Values {
	v := url.Values{}
	if !p.From.IsZero() {
		v.Set("fromEnteredTime", p.From.UTC().Format(timestampLayout))
	}
	if !p.To.IsZero() {
		v.Set("toEnteredTime", p.To.UTC().Format(timestampLayout))
	}
	if p.Status != "" {
		v.Set("status", p.Status)
	}
	if p.MaxResults > 0 {
		v.Set("maxResults", strconv.Itoa(p.MaxResults))
	}
	return v
}

// Orders lists orders for one account.
func (c *Client) Orders(ctx context.Context, accountHash string, params OrderParams) ([]Order, error) {
	u := c.TraderURL + "/accounts/" + url.PathEscape(accountHash) + "/orders"
	if enc := params.values().Encode(); enc != "" {
		u += "?" + enc
	}
	var out []Order
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("fetching orders: %w", err)
	}
	return out, nil
}

// Order fetches a single order.
func (c *Client) Order(ctx context.Context, accountHash string, orderID int64) (*Order, error) {
	u := c.TraderURL + "/accounts/" + url.PathEscape(accountHash) + "/orders/" + strconv.FormatInt(orderID, 10)
	var out Order
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("fetching order %d: %w", orderID, err)
	}
	return &out, nil
}

// PlaceOrder submits an order and returns the provider-assigned order ID
// parsed from the Location header. A zero ID with a nil error means the
// order was accepted but the provider did not echo an ID back.
func (c *Client) PlaceOrder(ctx context.Context, accountHash string, order *OrderRequest) (int64, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return 0, fmt.Errorf("encoding order: %w", err)
	}

	u := c.TraderURL + "/accounts/" + url.PathEscape(accountHash) + "/orders"
	resp, err := c.call(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("placing order: %w", err)
	}
	defer closeResponseBody(resp)

	location := resp.Header.Get("Location")
	id, err := orderIDFromLocation(location)
	if err != nil {
		log.Warn().Str("location", location).Msg("Order accepted but no order ID in Location header")
		return 0, nil
	}
	log.Info().Int64("order_id", id).Msg("Order placed")
	return id, nil
}

func orderIDFromLocation(location string) (int64, error) {
	if location == "" {
		return 0, fmt.Errorf("empty Location header")
	}
	parts := strings.Split(strings.TrimSuffix(location, "/"), "/")
	return strconv.ParseInt(parts[len(parts)-1], 10, 64)
}

// CancelOrder cancels a working order.
func (c *Client) CancelOrder(ctx context.Context, accountHash string, orderID int64) error {
	u := c.TraderURL + "/accounts/" + url.PathEscape(accountHash) + "/orders/" + strconv.FormatInt(orderID, 10)
	resp, err := c.call(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("cancelling order %d: %w", orderID, err)
	}
	closeResponseBody(resp)
	log.Info().Int64("order_id", orderID).Msg("Order cancelled")
	return nil
}

// Transactions lists account activity inside a time window. txType may name
// a single transaction type such as TRADE or DIVIDEND_OR_INTEREST.
func (c *Client) Transactions(ctx context.Context, accountHash string, start, end time.Time, txType string) ([]Transaction, error) {
	v := url.Values{}
	v.Set("startDate", start.UTC().Format(timestampLayout))
	v.Set("endDate", end.UTC().Format(timestampLayout))
	if txType != "" {
		v.Set("types", txType)
	}

	u := c.TraderURL + "/accounts/" + url.PathEscape(accountHash) + "/transactions?" + v.Encode()
	var out []Transaction
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("fetching transactions: %w", err)
	}
	return out, nil
}

// UserPreference fetches account nicknames and streamer connection details.
func (c *Client) UserPreference(ctx context.Context) (*UserPreference, error) {
	var out UserPreference
	if err := c.getJSON(ctx, c.TraderURL+"/userPreference", &out); err != nil {
		return nil, fmt.Errorf("fetching user preference: %w", err)
	}
	return &out, nil
}
