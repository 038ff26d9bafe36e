package service

import (
	"context"
	"net/url"

	"magic_bot/internal/models"
)

func (c *Client) GetAccount(ctx context.Context) (*models.Account, error) {
	var acc models.Account
	if e := c.http.GetJSON(ctx, c.tradingURL+"/v2/account", c.headers(), &acc); e != nil {
		return nil, c.wrapErr(e)
	}
	return &acc, nil
}

// GetActivities — история исполнений (FILL) для детекции закрытых входов.
func (c *Client) GetActivities(ctx context.Context, activityType string) ([]models.Activity, error) {
	u := c.tradingURL + "/v2/account/activities"
	if activityType != "" {
		u += "/" + url.PathEscape(activityType)
	}
	var acts []models.Activity
	if e := c.http.GetJSON(ctx, u, c.headers(), &acts); e != nil {
		return nil, c.wrapErr(e)
	}
	return acts, nil
}

func (c *Client) GetPortfolioHistory(ctx context.Context, period, timeframe string) (*models.PortfolioHistory, error) {
	q := url.Values{}
	if period != "" {
		q.Set("period", period)
	}
	if timeframe != "" {
		q.Set("timeframe", timeframe)
	}
	var ph models.PortfolioHistory
	if e := c.http.GetJSON(ctx, c.tradingURL+"/v2/account/portfolio/history?"+q.Encode(), c.headers(), &ph); e != nil {
		return nil, c.wrapErr(e)
	}
	return &ph, nil
}
