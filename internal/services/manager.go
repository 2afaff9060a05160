package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Manager controls the whole set of managed services.
type Manager struct {
	monitor    *Monitor
	controller func(Mode) Controller
}

// NewManager returns a Manager driving the services tracked by monitor.
// If controller is nil, NewController is used.
func NewManager(monitor *Monitor, controller func(Mode) Controller) *Manager {
	if controller == nil {
		controller = NewController
	}

	return &Manager{
		monitor:    monitor,
		controller: controller,
	}
}

// Monitor returns the status monitor of the managed services.
func (m *Manager) Monitor() *Monitor {
	return m.monitor
}

// StopAll asks every managed service to stop through the path matching mode.
// It doesn't wait for the services to actually be stopped.
func (m *Manager) StopAll(ctx context.Context, mode Mode) error {
	ctl := m.controller(mode)

	var (
		mu   sync.Mutex
		errs error
	)

	g, gctx := errgroup.WithContext(ctx)

	for _, svc := range m.monitor.Services() {
		g.Go(func() error {
			slog.InfoContext(gctx, "Stopping service", "service", svc.Name, "mode", mode)

			err := ctl.Stop(gctx, svc.Unit)
			if err != nil {
				mu.Lock()
				errs = multierror.Append(errs, err)
				mu.Unlock()
			}

			return nil
		})
	}

	_ = g.Wait()

	// Statuses cached before the stop requests no longer tell anything.
	m.monitor.Invalidate()

	// Poll again from the shortest interval.
	m.monitor.Kick()

	return errs
}

// WaitUntilAllStopped blocks until every managed service is reported stopped.
// Statuses are queried afresh on every wake-up, the cache is never trusted on its own.
// It returns false if timeout elapses or ctx is cancelled first.
func (m *Manager) WaitUntilAllStopped(ctx context.Context, timeout time.Duration) bool {
	notify, unsubscribe := m.monitor.Subscribe()
	defer unsubscribe()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	ticker := backoff.NewTicker(m.monitor.newBackOff())
	defer ticker.Stop()

	for {
		if m.allStopped(ctx) {
			return true
		}

		select {
		case <-notify:
		case <-ticker.C:
		case <-timer.C:
			return m.allStopped(ctx)
		case <-ctx.Done():
			return false
		}
	}
}

func (m *Manager) allStopped(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	// Only trust this query, a background poll may have cached an older answer.
	stopped, err := m.monitor.refresh(ctx)
	if err != nil {
		slog.DebugContext(ctx, "Failed to refresh service status", "err", err)
	}

	return stopped
}
