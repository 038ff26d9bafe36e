package service

import (
	"context"
	"net/url"

	"magic_bot/internal/models"
)

func (c *Client) ListAssets(ctx context.Context, class, status string) ([]models.Asset, error) {
	q := url.Values{}
	if class != "" {
		q.Set("asset_class", class)
	}
	if status != "" {
		q.Set("status", status)
	}
	var assets []models.Asset
	if e := c.http.GetJSON(ctx, c.tradingURL+"/v2/assets?"+q.Encode(), c.headers(), &assets); e != nil {
		return nil, c.wrapErr(e)
	}
	return assets, nil
}

func (c *Client) GetClock(ctx context.Context) (*models.Clock, error) {
	var clock models.Clock
	if e := c.http.GetJSON(ctx, c.tradingURL+"/v2/clock", c.headers(), &clock); e != nil {
		return nil, c.wrapErr(e)
	}
	return &clock, nil
}
