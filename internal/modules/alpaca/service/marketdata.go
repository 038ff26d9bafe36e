package service

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"magic_bot/internal/models"
)

// Крипто-символы у брокера пишутся с косой чертой (BTC/USD).
func isCryptoSymbol(symbol string) bool {
	return strings.Contains(symbol, "/")
}

// GetLatestQuote — свежий bid/ask; крипта и акции живут на разных путях
// data-хоста, но наружу отдаём одну модель.
func (c *Client) GetLatestQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if isCryptoSymbol(symbol) {
		var payload struct {
			Quotes map[string]models.Quote `json:"quotes"`
		}
		u := c.dataURL + "/v1beta3/crypto/us/latest/quotes?symbols=" + url.QueryEscape(symbol)
		if e := c.http.GetJSON(ctx, u, c.headers(), &payload); e != nil {
			return nil, c.wrapErr(e)
		}
		q, ok := payload.Quotes[symbol]
		if !ok {
			return nil, &APIError{StatusCode: 404, Message: "no quote for " + symbol}
		}
		q.Symbol = symbol
		return &q, nil
	}

	var payload struct {
		Symbol string       `json:"symbol"`
		Quote  models.Quote `json:"quote"`
	}
	u := c.dataURL + "/v2/stocks/" + url.PathEscape(symbol) + "/quotes/latest"
	if e := c.http.GetJSON(ctx, u, c.headers(), &payload); e != nil {
		return nil, c.wrapErr(e)
	}
	payload.Quote.Symbol = symbol
	return &payload.Quote, nil
}

func (c *Client) GetLatestTrade(ctx context.Context, symbol string) (*models.Trade, error) {
	if isCryptoSymbol(symbol) {
		var payload struct {
			Trades map[string]models.Trade `json:"trades"`
		}
		u := c.dataURL + "/v1beta3/crypto/us/latest/trades?symbols=" + url.QueryEscape(symbol)
		if e := c.http.GetJSON(ctx, u, c.headers(), &payload); e != nil {
			return nil, c.wrapErr(e)
		}
		t, ok := payload.Trades[symbol]
		if !ok {
			return nil, &APIError{StatusCode: 404, Message: "no trade for " + symbol}
		}
		t.Symbol = symbol
		return &t, nil
	}

	var payload struct {
		Trade models.Trade `json:"trade"`
	}
	u := c.dataURL + "/v2/stocks/" + url.PathEscape(symbol) + "/trades/latest"
	if e := c.http.GetJSON(ctx, u, c.headers(), &payload); e != nil {
		return nil, c.wrapErr(e)
	}
	payload.Trade.Symbol = symbol
	return &payload.Trade, nil
}

// GetBars — последние limit свечей таймфрейма (1Min/5Min/15Min).
func (c *Client) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error) {
	q := url.Values{}
	q.Set("timeframe", timeframe)
	q.Set("limit", strconv.Itoa(limit))

	if isCryptoSymbol(symbol) {
		q.Set("symbols", symbol)
		var payload struct {
			Bars map[string][]models.Bar `json:"bars"`
		}
		u := c.dataURL + "/v1beta3/crypto/us/bars?" + q.Encode()
		if e := c.http.GetJSON(ctx, u, c.headers(), &payload); e != nil {
			return nil, c.wrapErr(e)
		}
		return payload.Bars[symbol], nil
	}

	var payload struct {
		Bars []models.Bar `json:"bars"`
	}
	u := c.dataURL + "/v2/stocks/" + url.PathEscape(symbol) + "/bars?" + q.Encode()
	if e := c.http.GetJSON(ctx, u, c.headers(), &payload); e != nil {
		return nil, c.wrapErr(e)
	}
	return payload.Bars, nil
}

// GetOrderBook — снапшот стакана (есть только у крипты). Для акций
// синтезируем книгу из лучшего bid/ask.
func (c *Client) GetOrderBook(ctx context.Context, symbol string) (*models.OrderBook, error) {
	if isCryptoSymbol(symbol) {
		var payload struct {
			Orderbooks map[string]struct {
				Bids      []models.BookLevel `json:"b"`
				Asks      []models.BookLevel `json:"a"`
				Timestamp string             `json:"t"`
			} `json:"orderbooks"`
		}
		u := c.dataURL + "/v1beta3/crypto/us/latest/orderbooks?symbols=" + url.QueryEscape(symbol)
		if e := c.http.GetJSON(ctx, u, c.headers(), &payload); e != nil {
			return nil, c.wrapErr(e)
		}
		ob, ok := payload.Orderbooks[symbol]
		if !ok {
			return nil, &APIError{StatusCode: 404, Message: "no orderbook for " + symbol}
		}
		return &models.OrderBook{Symbol: symbol, Bids: ob.Bids, Asks: ob.Asks}, nil
	}

	q, err := c.GetLatestQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &models.OrderBook{
		Symbol:    symbol,
		Bids:      []models.BookLevel{{Price: q.BidPrice, Size: q.BidSize}},
		Asks:      []models.BookLevel{{Price: q.AskPrice, Size: q.AskSize}},
		Timestamp: q.Timestamp,
	}, nil
}
