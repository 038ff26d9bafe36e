package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueConcurrencyCap(t *testing.T) {
	q := NewQueue(ClassTrading, 2, 0)

	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := q.Run(context.Background(), func() error {
				cur := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestQueueMinSpacing(t *testing.T) {
	q := NewQueue(ClassQuotes, 4, 40*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Run(context.Background(), func() error { return nil }))
	}
	// три старта, два интервала
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestQueueContextCancel(t *testing.T) {
	q := NewQueue(ClassBars, 1, 0)

	release, err := q.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = q.Run(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueStatus(t *testing.T) {
	q := NewQueue(ClassTrading, 2, time.Second)
	st := q.Status()
	assert.Equal(t, ClassTrading, st.Name)
	assert.Equal(t, 2, st.MaxConcurrent)
	assert.Equal(t, time.Second, st.MinSpacing)
	assert.Zero(t, st.Active)
	assert.Zero(t, st.Queued)

	release, err := q.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, q.Status().Active)
	release()
	assert.Zero(t, q.Status().Active)
}

func TestSetForURL(t *testing.T) {
	set := &Set{
		Trading: NewQueue(ClassTrading, 1, 0),
		Quotes:  NewQueue(ClassQuotes, 1, 0),
		Bars:    NewQueue(ClassBars, 1, 0),
	}

	assert.Same(t, set.Trading, set.ForURL("paper-api.alpaca.markets", "/v2/orders"))
	assert.Same(t, set.Quotes, set.ForURL("data.alpaca.markets", "/v2/stocks/AAPL/quotes/latest"))
	assert.Same(t, set.Bars, set.ForURL("data.alpaca.markets", "/v2/stocks/AAPL/bars"))
	assert.Same(t, set.Bars, set.ForURL("data.alpaca.markets", "/v1beta3/crypto/us/bars"))
}
