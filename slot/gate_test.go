package slot

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGateSerializes(t *testing.T) {
	g := NewGate(1)
	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Do(context.Background(), func(context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak)
}

func TestGateHonoursCancellation(t *testing.T) {
	g := NewGate(1)
	hold := make(chan struct{})
	go g.Do(context.Background(), func(context.Context) error { <-hold; return nil })
	time.Sleep(5 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	ran := false
	err := g.Do(ctx, func(context.Context) error { ran = true; return nil })
	close(hold)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran)
}

func TestNilGate(t *testing.T) {
	var g *Gate
	assert.NoError(t, g.Do(context.Background(), func(context.Context) error { return nil }))
	assert.Zero(t, g.Size())
}
