// Package supervisor implements the watchdog/heartbeat/restart trio as a
// first-class abstraction: register a loop with (name, body) under a
// supervisor-wide task timeout; the supervisor owns spawning, heartbeat recording, error recovery, and
// replacement. Loop bodies themselves own their own ticking interval.
package supervisor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/netring-mesh/netring/internal/logging"
)

// TaskBody is one supervised loop. It should run until ctx is cancelled or
// a fatal condition occurs, calling heartbeat periodically (at least once
// per iteration) so the watchdog can observe liveness. A nil return means
// clean, deliberate completion; any other return is treated as a failure
// the runner will restart after a backoff sleep.
type TaskBody func(ctx context.Context, heartbeat func()) error

const restartBackoff = 5 * time.Second

// Supervisor owns a task-heartbeat table and the resilient runners wrapping
// each registered task, plus the watchdog loop that restarts stalled tasks.
type Supervisor struct {
	logger          *zap.Logger
	taskTimeout     time.Duration
	monitorInterval time.Duration

	mu        sync.Mutex
	heartbeat map[string]time.Time
	bodies    map[string]TaskBody
	cancels   map[string]context.CancelFunc
	done      map[string]chan struct{}

	wg sync.WaitGroup
}

// New creates a Supervisor. taskTimeout bounds how stale a task's
// heartbeat may grow before the watchdog restarts it; monitorInterval is
// the watchdog's scan period.
func New(logger *zap.Logger, taskTimeout, monitorInterval time.Duration) *Supervisor {
	return &Supervisor{
		logger:          logger,
		taskTimeout:     taskTimeout,
		monitorInterval: monitorInterval,
		heartbeat:       make(map[string]time.Time),
		bodies:          make(map[string]TaskBody),
		cancels:         make(map[string]context.CancelFunc),
		done:            make(map[string]chan struct{}),
	}
}

// Spawn registers and starts a task under name. Call before RunWatchdog, or
// while the watchdog is running — Spawn is safe for concurrent use.
func (s *Supervisor) Spawn(parent context.Context, name string, body TaskBody) {
	s.mu.Lock()
	s.bodies[name] = body
	s.heartbeat[name] = time.Now()
	s.mu.Unlock()
	s.spawnLocked(parent, name, body)
}

func (s *Supervisor) spawnLocked(parent context.Context, name string, body TaskBody) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancels[name] = cancel
	s.done[name] = done
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		s.runResilient(ctx, name, body)
	}()
}

func (s *Supervisor) recordHeartbeat(name string) {
	s.mu.Lock()
	s.heartbeat[name] = time.Now()
	s.mu.Unlock()
}

// runResilient implements the resilient-runner contract: heartbeat before
// invoke, clean exit on nil return, log+sleep+heartbeat+reinvoke on error,
// prompt exit without restart on cancellation.
func (s *Supervisor) runResilient(ctx context.Context, name string, body TaskBody) {
	heartbeat := func() { s.recordHeartbeat(name) }
	taskLogger := logging.WithTask(s.logger, name)

	for {
		heartbeat()

		start := time.Now()
		err := body(ctx, heartbeat)

		if ctx.Err() != nil {
			return
		}
		if err == nil {
			heartbeat()
			return
		}

		taskLogger.Error("supervised task failed, restarting",
			zap.Error(err), logging.Duration(time.Since(start)))

		select {
		case <-ctx.Done():
			return
		case <-time.After(restartBackoff):
		}
		heartbeat()
	}
}

// TaskStatus is a point-in-time snapshot of one task's liveness.
type TaskStatus struct {
	LastHeartbeat time.Time
	Age           time.Duration
	Healthy       bool
}

// Snapshot returns the current heartbeat age for every registered task.
func (s *Supervisor) Snapshot() map[string]TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	out := make(map[string]TaskStatus, len(s.heartbeat))
	for name, last := range s.heartbeat {
		age := now.Sub(last)
		out[name] = TaskStatus{
			LastHeartbeat: last,
			Age:           age,
			Healthy:       age < s.taskTimeout,
		}
	}
	return out
}

// RunWatchdog scans the heartbeat table every monitorInterval and restarts
// any task whose heartbeat has aged past taskTimeout. It blocks until ctx
// is cancelled.
func (s *Supervisor) RunWatchdog(ctx context.Context) {
	ticker := time.NewTicker(s.monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAndRestart(ctx)
		}
	}
}

func (s *Supervisor) checkAndRestart(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	var stale []string
	for name, last := range s.heartbeat {
		if now.Sub(last) >= s.taskTimeout {
			stale = append(stale, name)
		}
	}
	s.mu.Unlock()

	for _, name := range stale {
		s.mu.Lock()
		cancel, hasCancel := s.cancels[name]
		done, hasDone := s.done[name]
		body := s.bodies[name]
		s.mu.Unlock()

		s.logger.Warn("watchdog restarting stalled task", zap.String("task", name))

		if hasCancel {
			cancel()
		}
		if hasDone {
			<-done
		}

		s.mu.Lock()
		s.heartbeat[name] = time.Now()
		s.mu.Unlock()

		s.spawnLocked(ctx, name, body)
	}
}

// Wait blocks until every spawned task goroutine has returned. Call after
// cancelling the parent context passed to Spawn/RunWatchdog.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
