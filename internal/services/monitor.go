package services

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-multierror"
)

// Monitor tracks the last known status of the managed services.
//
// Statuses are refreshed asynchronously by Run: on a backoff schedule that
// restarts from its shortest interval whenever Kick is called, and whenever a
// pid file changes in the pid directory.
type Monitor struct {
	mu       sync.Mutex
	services []Service
	statuses map[string]Status
	subs     map[int]chan struct{}
	nextSub  int

	controller Controller
	pidDir     string
	kick       chan struct{}

	// MaxInterval bounds the delay between two polls.
	MaxInterval time.Duration
}

// NewMonitor returns a Monitor for the given services, querying them through controller.
// If pidDir is empty, the monitor only polls.
func NewMonitor(services []Service, controller Controller, pidDir string) *Monitor {
	statuses := make(map[string]Status, len(services))
	for _, svc := range services {
		statuses[svc.Name] = StatusUnknown
	}

	return &Monitor{
		services:    services,
		statuses:    statuses,
		subs:        map[int]chan struct{}{},
		controller:  controller,
		pidDir:      pidDir,
		kick:        make(chan struct{}, 1),
		MaxInterval: 5 * time.Second,
	}
}

// Services returns the monitored services.
func (m *Monitor) Services() []Service {
	return m.services
}

// Statuses returns a copy of the last known statuses.
func (m *Monitor) Statuses() map[string]Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return maps.Clone(m.statuses)
}

// AllStopped reports whether every monitored service is known to be stopped.
func (m *Monitor) AllStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, st := range m.statuses {
		if st != StatusStopped {
			return false
		}
	}

	return true
}

// Set records the status of a service and notifies subscribers on change.
func (m *Monitor) Set(name string, st Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.statuses[name]
	if !ok || old == st {
		return
	}

	slog.Debug("Service status changed", "service", name, "from", old, "to", st)
	m.statuses[name] = st

	for _, ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Invalidate forgets every known status, so that only a later query can report
// a service as stopped.
func (m *Monitor) Invalidate() {
	for _, svc := range m.services {
		m.Set(svc.Name, StatusUnknown)
	}
}

// Subscribe registers for status change notifications. The returned function
// unregisters the subscription.
func (m *Monitor) Subscribe() (<-chan struct{}, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++

	ch := make(chan struct{}, 1)
	m.subs[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		delete(m.subs, id)
	}
}

// Refresh queries the status of every service.
func (m *Monitor) Refresh(ctx context.Context) error {
	_, err := m.refresh(ctx)

	return err
}

// refresh queries the status of every service and reports whether this very
// query found them all stopped.
func (m *Monitor) refresh(ctx context.Context) (bool, error) {
	var errs error

	allStopped := true

	for _, svc := range m.services {
		st, err := m.controller.Status(ctx, svc.Unit)
		if err != nil {
			errs = multierror.Append(errs, err)
		}

		if st != StatusStopped {
			allStopped = false
		}

		m.Set(svc.Name, st)
	}

	return allStopped, errs
}

// Kick restarts polling from its shortest interval.
func (m *Monitor) Kick() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Run keeps the statuses up to date until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	var (
		events chan fsnotify.Event
		errs   chan error
	)

	if m.pidDir != "" {
		watcher, err := m.watchPidDir()
		if err != nil {
			slog.WarnContext(ctx, "Unable to watch service pid files, falling back to polling", "path", m.pidDir, "err", err)
		} else {
			defer func() { _ = watcher.Close() }()

			events = watcher.Events
			errs = watcher.Errors
		}
	}

	ticker := backoff.NewTicker(m.newBackOff())

	defer func() { ticker.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:

		case ev, ok := <-events:
			if !ok {
				events = nil

				continue
			}

			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Write) {
				continue
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
			} else {
				slog.DebugContext(ctx, "Pid directory watch error", "err", err)
			}

			continue

		case <-m.kick:
			ticker.Stop()
			ticker = backoff.NewTicker(m.newBackOff())
		}

		err := m.Refresh(ctx)
		if err != nil {
			slog.DebugContext(ctx, "Failed to refresh service status", "err", err)
		}
	}
}

func (m *Monitor) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = m.MaxInterval
	b.MaxElapsedTime = 0

	return b
}

func (m *Monitor) watchPidDir() (*fsnotify.Watcher, error) {
	err := os.MkdirAll(m.pidDir, 0o755)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	err = watcher.Add(m.pidDir)
	if err != nil {
		_ = watcher.Close()

		return nil, err
	}

	return watcher, nil
}
