package service

import (
	"context"
	"net/url"

	"magic_bot/internal/models"
)

func (c *Client) ListPositions(ctx context.Context) ([]models.Position, error) {
	var positions []models.Position
	if e := c.http.GetJSON(ctx, c.tradingURL+"/v2/positions", c.headers(), &positions); e != nil {
		return nil, c.wrapErr(e)
	}
	return positions, nil
}

func (c *Client) GetPosition(ctx context.Context, symbol string) (*models.Position, error) {
	var p models.Position
	if e := c.http.GetJSON(ctx, c.tradingURL+"/v2/positions/"+url.PathEscape(symbol), c.headers(), &p); e != nil {
		return nil, c.wrapErr(e)
	}
	return &p, nil
}
