package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResilientRunnerRestartsOnError(t *testing.T) {
	sup := New(zap.NewNop(), time.Second, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var invocations int32
	body := func(ctx context.Context, heartbeat func()) error {
		heartbeat()
		atomic.AddInt32(&invocations, 1)
		return assertError
	}

	sup.Spawn(ctx, "flaky", body)
	time.Sleep(restartBackoff + 100*time.Millisecond)
	cancel()
	sup.Wait()

	require.GreaterOrEqual(t, atomic.LoadInt32(&invocations), int32(2))
}

func TestWatchdogRestartsHungTask(t *testing.T) {
	sup := New(zap.NewNop(), 100*time.Millisecond, 30*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var starts int32
	body := func(ctx context.Context, heartbeat func()) error {
		atomic.AddInt32(&starts, 1)
		<-ctx.Done()
		return ctx.Err()
	}

	sup.Spawn(ctx, "hung", body)
	go sup.RunWatchdog(ctx)

	time.Sleep(400 * time.Millisecond)
	cancel()
	sup.Wait()

	assert.GreaterOrEqual(t, atomic.LoadInt32(&starts), int32(2))
}

func TestSnapshotReportsHealthyWithinTimeout(t *testing.T) {
	sup := New(zap.NewNop(), time.Minute, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	body := func(ctx context.Context, heartbeat func()) error {
		<-ctx.Done()
		return ctx.Err()
	}
	sup.Spawn(ctx, "steady", body)
	time.Sleep(20 * time.Millisecond)

	snap := sup.Snapshot()
	require.Contains(t, snap, "steady")
	assert.True(t, snap["steady"].Healthy)

	cancel()
	sup.Wait()
}

var assertError = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
