// Package httpx — HTTP-обвязка к брокеру: очереди «лимитера» на классы
// маршрутов, ретраи с бэкоффом и типизированная таксономия ошибок.
package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"magic_bot/internal/ratelimit"
	"magic_bot/pkg/logger"

	"github.com/bytedance/sonic"
)

// Лестницы бэкоффа по индексу попытки. Для 429 своя, более частая.
var (
	backoffLadder    = []time.Duration{250 * time.Millisecond, 750 * time.Millisecond, 1750 * time.Millisecond, 3750 * time.Millisecond}
	backoff429Ladder = []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, time.Second, 2 * time.Second, 5 * time.Second}
)

const (
	jitterMax       = 120 * time.Millisecond
	resetClampMin   = 250 * time.Millisecond
	resetClampMax   = 10 * time.Second
	defaultAttempts = 4
)

type Spec struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	// MaxAttempts <= 0 — берём дефолт клиента.
	MaxAttempts int
	// Decode разбирает тело успешного ответа; ошибка декода — parse_error
	// и ретраится наравне с пустым телом.
	Decode func([]byte) error
}

type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Client struct {
	http        *http.Client
	queues      *ratelimit.Set
	lastErr     *LastError
	timeout     time.Duration
	maxAttempts int
}

func NewClient(queues *ratelimit.Set, lastErr *LastError, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:        &http.Client{Timeout: timeout},
		queues:      queues,
		lastErr:     lastErr,
		timeout:     timeout,
		maxAttempts: defaultAttempts,
	}
}

// Do выполняет запрос под лимитером своего класса, с ретраями по таксономии:
// сеть/таймаут/пустое тело/parse/429/5xx повторяем, invalid_request и прочие
// 4xx — нет. Исчерпание попыток возвращает последнюю ошибку с их числом.
func (c *Client) Do(ctx context.Context, spec Spec) (*Result, *Error) {
	u, err := url.Parse(spec.URL)
	if err != nil || u.Host == "" {
		e := &Error{Kind: KindInvalidRequest, URL: spec.URL, Attempts: 1, Err: err}
		c.lastErr.Record(e)
		return nil, e
	}

	maxAttempts := spec.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = c.maxAttempts
	}
	q := c.queues.ForURL(u.Host, u.Path)

	var lastE *Error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, c.retryDelay(lastE, attempt-1)); err != nil {
				lastE.Attempts = attempt
				return nil, lastE
			}
		}

		var res *Result
		var e *Error
		qErr := q.Run(ctx, func() error {
			res, e = c.doOnce(ctx, spec)
			return nil
		})
		if qErr != nil {
			e = &Error{Kind: KindTimeout, URL: spec.URL, Err: qErr}
		}
		if e == nil {
			return res, nil
		}
		e.Attempts = attempt + 1
		lastE = e
		c.lastErr.Record(e)
		if !e.Retryable() {
			return nil, e
		}
		logger.Warn("http_retry url=%s kind=%s status=%d attempt=%d", spec.URL, e.Kind, e.StatusCode, attempt+1)
	}
	return nil, lastE
}

func (c *Client) doOnce(ctx context.Context, spec Spec) (*Result, *Error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if len(spec.Body) > 0 {
		body = bytes.NewReader(spec.Body)
	}
	req, err := http.NewRequestWithContext(callCtx, spec.Method, spec.URL, body)
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, URL: spec.URL, Err: err}
	}
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		kind := KindNetworkError
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return nil, &Error{Kind: kind, URL: spec.URL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetworkError, URL: spec.URL, Err: err}
	}

	if resp.StatusCode >= 400 {
		e := &Error{Kind: KindHTTPError, StatusCode: resp.StatusCode, URL: spec.URL, Body: string(raw)}
		if resp.StatusCode == 429 {
			e.resetAfter = parseRateLimitReset(resp.Header.Get("x-ratelimit-reset"))
		}
		return nil, e
	}
	if len(raw) == 0 && spec.Method == http.MethodGet {
		return nil, &Error{Kind: KindEmptyBody, StatusCode: resp.StatusCode, URL: spec.URL}
	}

	if spec.Decode != nil {
		if err := spec.Decode(raw); err != nil {
			return nil, &Error{Kind: KindParseError, StatusCode: resp.StatusCode, URL: spec.URL, Err: err}
		}
	}

	return &Result{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

// retryDelay — задержка перед попыткой idx+1. Для 429 предпочитаем
// серверный x-ratelimit-reset, иначе лестница 429; для остального —
// общая лестница плюс джиттер.
func (c *Client) retryDelay(e *Error, idx int) time.Duration {
	if e != nil && e.StatusCode == 429 {
		if e.resetAfter > 0 {
			return e.resetAfter
		}
		return ladderAt(backoff429Ladder, idx)
	}
	return ladderAt(backoffLadder, idx) + time.Duration(rand.Int63n(int64(jitterMax)))
}

func ladderAt(ladder []time.Duration, idx int) time.Duration {
	if idx >= len(ladder) {
		idx = len(ladder) - 1
	}
	return ladder[idx]
}

// parseRateLimitReset понимает три формата заголовка: секунды-до-сброса
// (< 1e9), epoch в секундах (< 1e12) и epoch в миллисекундах. Результат
// зажимается в [250ms, 10s]; 0 — заголовка нет или он битый.
func parseRateLimitReset(v string) time.Duration {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n <= 0 {
		return 0
	}
	var d time.Duration
	switch {
	case n < 1e9:
		d = time.Duration(n * float64(time.Second))
	case n < 1e12:
		d = time.Until(time.Unix(int64(n), 0))
	default:
		d = time.Until(time.UnixMilli(int64(n)))
	}
	if d < resetClampMin {
		return resetClampMin
	}
	if d > resetClampMax {
		return resetClampMax
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetJSON — GET с декодом тела в out. Битый JSON — parse_error (ретраится).
func (c *Client) GetJSON(ctx context.Context, rawURL string, headers map[string]string, out any) *Error {
	_, e := c.Do(ctx, Spec{
		Method:  http.MethodGet,
		URL:     rawURL,
		Headers: headers,
		Decode:  func(b []byte) error { return sonic.Unmarshal(b, out) },
	})
	return e
}

func (c *Client) LastError() *ErrorSnapshot { return c.lastErr.Snapshot() }
