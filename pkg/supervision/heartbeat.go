package supervision

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// heartbeat reports agent liveness to a supervisor on a fixed cadence. One
// goroutine per running agent; start and stop are never called concurrently
// because Supervised serializes them.
type heartbeat struct {
	name        string
	interval    time.Duration
	joinTimeout time.Duration
	supervisor  Supervisor
	tracker     *ProgressTracker
	logger      *zap.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

func newHeartbeat(name string, interval, joinTimeout time.Duration, sup Supervisor, tracker *ProgressTracker, logger *zap.Logger) *heartbeat {
	return &heartbeat{
		name:        name,
		interval:    interval,
		joinTimeout: joinTimeout,
		supervisor:  sup,
		tracker:     tracker,
		logger:      logger,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// start launches the heartbeat goroutine. The first beat is sent
// immediately so the supervisor sees the agent without waiting a full
// interval.
func (h *heartbeat) start() {
	go h.run()
}

func (h *heartbeat) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		h.beat()

		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// beat sends one liveness report. Failures are logged and swallowed; a
// supervisor outage must not take the agent down with it.
func (h *heartbeat) beat() {
	err := h.send()
	if err == nil {
		HeartbeatsTotal.WithLabelValues("ok").Inc()
		return
	}

	HeartbeatsTotal.WithLabelValues("error").Inc()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrNoSupervisor) {
		h.logger.Debug("heartbeat skipped", zap.String("agent", h.name), zap.Error(err))
		return
	}
	h.logger.Warn("failed to send heartbeat", zap.String("agent", h.name), zap.Error(err))
}

func (h *heartbeat) send() error {
	if h.supervisor == nil {
		return ErrNoSupervisor
	}

	// Bound each send by the interval so a stuck backend cannot queue up
	// overlapping reports.
	ctx, cancel := context.WithTimeout(context.Background(), h.interval)
	defer cancel()

	return h.supervisor.AgentHeartbeat(ctx, h.name, h.tracker.Snapshot())
}

// stop signals the goroutine and waits up to joinTimeout for it to exit.
// A goroutine stuck in a slow send is abandoned rather than allowed to
// block shutdown.
func (h *heartbeat) stop() {
	close(h.stopCh)

	select {
	case <-h.doneCh:
	case <-time.After(h.joinTimeout):
		h.logger.Warn("heartbeat goroutine did not exit before join timeout",
			zap.String("agent", h.name),
			zap.Duration("join_timeout", h.joinTimeout))
	}
}
