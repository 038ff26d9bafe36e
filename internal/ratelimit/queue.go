// Package ratelimit ограничивает исходящие вызовы к брокеру: на каждый класс
// маршрутов своя очередь с потолком одновременных задач и минимальным
// интервалом между стартами.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Классы маршрутов. Торговые вызовы, котировки и бары лимитируются раздельно.
const (
	ClassTrading = "trading"
	ClassQuotes  = "quotes"
	ClassBars    = "bars"
)

// Queue — FIFO-очередь одного класса маршрутов. Задача стартует, когда есть
// свободный слот и с прошлого старта прошло не меньше minSpacing.
type Queue struct {
	name          string
	maxConcurrent int
	minSpacing    time.Duration

	slots chan struct{}

	// startMu сериализует старты, чтобы выдержать интервал между ними.
	startMu   sync.Mutex
	lastStart time.Time

	active int64
	queued int64
}

func NewQueue(name string, maxConcurrent int, minSpacing time.Duration) *Queue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Queue{
		name:          name,
		maxConcurrent: maxConcurrent,
		minSpacing:    minSpacing,
		slots:         make(chan struct{}, maxConcurrent),
	}
}

// Acquire блокирует (через контекст) до допуска задачи. Вернувшийся release
// обязателен к вызову по завершении задачи.
func (q *Queue) Acquire(ctx context.Context) (release func(), err error) {
	atomic.AddInt64(&q.queued, 1)
	defer atomic.AddInt64(&q.queued, -1)

	select {
	case q.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	q.startMu.Lock()
	if wait := q.minSpacing - time.Since(q.lastStart); wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			q.startMu.Unlock()
			<-q.slots
			return nil, ctx.Err()
		}
	}
	q.lastStart = time.Now()
	q.startMu.Unlock()

	atomic.AddInt64(&q.active, 1)
	var once sync.Once
	return func() {
		once.Do(func() {
			atomic.AddInt64(&q.active, -1)
			<-q.slots
		})
	}, nil
}

// Run выполняет fn под лимитами очереди.
func (q *Queue) Run(ctx context.Context, fn func() error) error {
	release, err := q.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

type QueueStatus struct {
	Name          string        `json:"name"`
	MaxConcurrent int           `json:"max_concurrent"`
	MinSpacing    time.Duration `json:"min_spacing"`
	Active        int           `json:"active"`
	Queued        int           `json:"queued"`
}

func (q *Queue) Status() QueueStatus {
	return QueueStatus{
		Name:          q.name,
		MaxConcurrent: q.maxConcurrent,
		MinSpacing:    q.minSpacing,
		Active:        int(atomic.LoadInt64(&q.active)),
		Queued:        int(atomic.LoadInt64(&q.queued)),
	}
}

// Set — очереди всех классов. Конструируется композиционным корнем,
// глобалов нет.
type Set struct {
	Trading *Queue
	Quotes  *Queue
	Bars    *Queue
}

// ForURL выбирает очередь по хосту и пути запроса: data-хост — котировки,
// путь с барами — бары, остальное — торговый класс.
func (s *Set) ForURL(host, path string) *Queue {
	if strings.Contains(path, "/bars") {
		return s.Bars
	}
	if strings.Contains(host, "data.") {
		return s.Quotes
	}
	return s.Trading
}

func (s *Set) Statuses() []QueueStatus {
	return []QueueStatus{s.Trading.Status(), s.Quotes.Status(), s.Bars.Status()}
}
