package workpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_NonPositiveSizeFallsBackToDefault(t *testing.T) {
	p := New(0)
	assert.Equal(t, DefaultSize, cap(p.slots))

	p = New(-3)
	assert.Equal(t, DefaultSize, cap(p.slots))
}

func TestRun_ExecutesFunctionAndReturnsItsError(t *testing.T) {
	p := New(1)
	wantErr := errors.New("boom")
	err := p.Run(context.Background(), func(ctx context.Context) error {
		return wantErr
	})
	assert.Equal(t, wantErr, err)
}

func TestRun_BoundsConcurrencyToPoolSize(t *testing.T) {
	p := New(2)
	var concurrent int32
	var maxSeen int32
	done := make(chan struct{})

	for i := 0; i < 6; i++ {
		go func() {
			_ = p.Run(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt32(&concurrent, 1)
				for {
					old := atomic.LoadInt32(&maxSeen)
					if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&concurrent, -1)
				done <- struct{}{}
				return nil
			})
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(2))
}

func TestRun_ReturnsContextErrorWhenNoSlotBecomesAvailable(t *testing.T) {
	p := New(1)
	blockRelease := make(chan struct{})
	go func() {
		_ = p.Run(context.Background(), func(ctx context.Context) error {
			<-blockRelease
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond) // ensure the slot above is held

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := p.Run(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(blockRelease)
}
