package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query-gateway/middleware/ratelimit/infra"
)

// countingPool conta chamadas e registra se o ctx recebido tinha deadline.
type countingPool struct {
	calls       int
	hadDeadline bool
}

func (p *countingPool) Acquire(ctx context.Context) (func(), bool) {
	p.calls++
	_, p.hadDeadline = ctx.Deadline()
	return func() {}, true
}

func TestConcurrencyService_NilPoolAlwaysAdmits(t *testing.T) {
	svc := ConcurrencyService{}

	release, ok := svc.Acquire(context.Background())
	require.True(t, ok)
	release()
}

func TestConcurrencyService_GivesUpAfterAcquireTimeout(t *testing.T) {
	pool := infra.NewChanPool(1)
	hold, ok := pool.Acquire(context.Background())
	require.True(t, ok)
	defer hold()

	svc := ConcurrencyService{Pool: pool, AcquireTimeout: 15 * time.Millisecond}

	start := time.Now()
	_, ok = svc.Acquire(context.Background())
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestConcurrencyService_ZeroTimeoutKeepsCallerContext(t *testing.T) {
	pool := &countingPool{}
	svc := ConcurrencyService{Pool: pool}

	_, ok := svc.Acquire(context.Background())
	require.True(t, ok)
	assert.Equal(t, 1, pool.calls)
	assert.False(t, pool.hadDeadline)
}

func TestConcurrencyService_CallerCancellationWins(t *testing.T) {
	pool := infra.NewChanPool(1)
	hold, ok := pool.Acquire(context.Background())
	require.True(t, ok)
	defer hold()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := ConcurrencyService{Pool: pool, AcquireTimeout: time.Minute}
	_, ok = svc.Acquire(ctx)
	assert.False(t, ok)
}
