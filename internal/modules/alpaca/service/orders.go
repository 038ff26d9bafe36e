package service

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bytedance/sonic"

	"magic_bot/internal/httpx"
	"magic_bot/internal/models"
)

type OrderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty,omitempty"`
	Notional    string `json:"notional,omitempty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
	LimitPrice  string `json:"limit_price,omitempty"`
	ClientID    string `json:"client_order_id,omitempty"`
}

// ListOrders возвращает ордера в заданном статусе (open|closed|all),
// с развёрнутыми bracket-ногами.
func (c *Client) ListOrders(ctx context.Context, status string, nested bool) ([]models.Order, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	q.Set("nested", strconv.FormatBool(nested))
	q.Set("limit", "500")

	var orders []models.Order
	if e := c.http.GetJSON(ctx, c.tradingURL+"/v2/orders?"+q.Encode(), c.headers(), &orders); e != nil {
		return nil, c.wrapErr(e)
	}
	return models.FlattenOrders(orders), nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if e := c.http.GetJSON(ctx, c.tradingURL+"/v2/orders/"+url.PathEscape(id), c.headers(), &o); e != nil {
		return nil, c.wrapErr(e)
	}
	return &o, nil
}

func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (*models.Order, error) {
	body, err := sonic.Marshal(req)
	if err != nil {
		return nil, err
	}
	var o models.Order
	_, e := c.http.Do(ctx, httpx.Spec{
		Method:  http.MethodPost,
		URL:     c.tradingURL + "/v2/orders",
		Headers: c.headers(),
		Body:    body,
		Decode:  func(b []byte) error { return sonic.Unmarshal(b, &o) },
	})
	if e != nil {
		return nil, c.wrapErr(e)
	}
	return &o, nil
}

// ReplaceOrder меняет параметры живого ордера (PATCH).
func (c *Client) ReplaceOrder(ctx context.Context, id string, limitPrice string) (*models.Order, error) {
	body, err := sonic.Marshal(map[string]string{"limit_price": limitPrice})
	if err != nil {
		return nil, err
	}
	var o models.Order
	_, e := c.http.Do(ctx, httpx.Spec{
		Method:  http.MethodPatch,
		URL:     c.tradingURL + "/v2/orders/" + url.PathEscape(id),
		Headers: c.headers(),
		Body:    body,
		Decode:  func(b []byte) error { return sonic.Unmarshal(b, &o) },
	})
	if e != nil {
		return nil, c.wrapErr(e)
	}
	return &o, nil
}

func (c *Client) CancelOrder(ctx context.Context, id string) error {
	_, e := c.http.Do(ctx, httpx.Spec{
		Method:  http.MethodDelete,
		URL:     c.tradingURL + "/v2/orders/" + url.PathEscape(id),
		Headers: c.headers(),
	})
	return c.wrapErr(e)
}

// wrapErr поднимает тело 4xx/5xx в APIError, если брокер прислал
// структурированную ошибку; иначе отдаём httpx-ошибку как есть.
func (c *Client) wrapErr(e *httpx.Error) error {
	if e == nil {
		return nil
	}
	if e.Kind == httpx.KindHTTPError && e.Body != "" {
		apiErr := &APIError{StatusCode: e.StatusCode}
		if err := sonic.UnmarshalString(e.Body, apiErr); err == nil && (apiErr.Code != 0 || apiErr.Message != "") {
			return apiErr
		}
	}
	return e
}
