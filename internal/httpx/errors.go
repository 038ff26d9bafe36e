package httpx

import (
	"fmt"
	"sync"
	"time"
)

// Kind — класс ошибки HTTP-слоя. Определяет, ретраим ли вызов.
type Kind string

const (
	KindInvalidRequest Kind = "invalid_request"
	KindNetworkError   Kind = "network_error"
	KindTimeout        Kind = "timeout"
	KindHTTPError      Kind = "http_error"
	KindEmptyBody      Kind = "empty_body"
	KindParseError     Kind = "parse_error"
)

// Error — типизированная ошибка исходящего вызова.
type Error struct {
	Kind       Kind
	StatusCode int
	Body       string
	URL        string
	Attempts   int
	Err        error

	// Серверная подсказка из x-ratelimit-reset (только для 429).
	resetAfter time.Duration
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: http %d %s (attempts=%d)", e.Kind, e.StatusCode, e.URL, e.Attempts)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v (attempts=%d)", e.Kind, e.Err, e.Attempts)
	}
	return fmt.Sprintf("%s (attempts=%d)", e.Kind, e.Attempts)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable — можно ли повторять вызов с этим классом ошибки.
// invalid_request и 4xx (кроме 429) не повторяем никогда.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindInvalidRequest:
		return false
	case KindNetworkError, KindTimeout, KindEmptyBody, KindParseError:
		return true
	case KindHTTPError:
		return e.StatusCode == 429 || e.StatusCode >= 500
	}
	return false
}

// LastError хранит последний падавший вызов процесса — для /debug/status.
type LastError struct {
	mu   sync.RWMutex
	snap *ErrorSnapshot
}

type ErrorSnapshot struct {
	Kind       Kind      `json:"kind"`
	StatusCode int       `json:"status_code,omitempty"`
	URL        string    `json:"url"`
	Message    string    `json:"message"`
	Attempts   int       `json:"attempts"`
	At         time.Time `json:"at"`
}

func NewLastError() *LastError { return &LastError{} }

func (l *LastError) Record(e *Error) {
	if l == nil || e == nil {
		return
	}
	l.mu.Lock()
	l.snap = &ErrorSnapshot{
		Kind:       e.Kind,
		StatusCode: e.StatusCode,
		URL:        e.URL,
		Message:    e.Error(),
		Attempts:   e.Attempts,
		At:         time.Now(),
	}
	l.mu.Unlock()
}

// Snapshot возвращает копию последней ошибки; nil, если ошибок не было.
func (l *LastError) Snapshot() *ErrorSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.snap == nil {
		return nil
	}
	cp := *l.snap
	return &cp
}
