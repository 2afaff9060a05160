package services_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veilnet/veild/internal/services"
)

type fakeController struct {
	mu      sync.Mutex
	state   map[string]services.Status
	stopped []string
	failOn  string
}

func newFakeController(units ...string) *fakeController {
	c := &fakeController{state: map[string]services.Status{}}
	for _, unit := range units {
		c.state[unit] = services.StatusRunning
	}

	return c
}

func (c *fakeController) Start(_ context.Context, unit string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state[unit] = services.StatusRunning

	return nil
}

func (c *fakeController) Stop(_ context.Context, unit string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = append(c.stopped, unit)

	if unit == c.failOn {
		return errors.New("unit is stuck")
	}

	c.state[unit] = services.StatusStopped

	return nil
}

func (c *fakeController) Status(_ context.Context, unit string) (services.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.state[unit]
	if !ok {
		return services.StatusUnknown, errors.New("no such unit")
	}

	return st, nil
}

func loadAll(t *testing.T) []services.Service {
	t.Helper()

	svcs := make([]services.Service, 0, len(services.Supported))

	for _, name := range services.Supported {
		svc, err := services.Load(name, "")
		require.NoError(t, err)

		svcs = append(svcs, svc)
	}

	return svcs
}

func TestLoad(t *testing.T) {
	t.Parallel()

	svc, err := services.Load("tor", "")
	require.NoError(t, err)
	require.Equal(t, "tor.service", svc.Unit)
	require.Equal(t, "tor.pid", svc.PidFile())

	svc, err = services.Load("i2pd", "i2pd-user")
	require.NoError(t, err)
	require.Equal(t, "i2pd-user.service", svc.Unit)

	_, err = services.Load("openvpn", "")
	require.ErrorIs(t, err, services.ErrUnknownService)
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	mode, err := services.ParseMode("privileged")
	require.NoError(t, err)
	require.Equal(t, services.ModePrivileged, mode)

	mode, err = services.ParseMode("unprivileged")
	require.NoError(t, err)
	require.Equal(t, services.ModeUnprivileged, mode)
	require.Equal(t, "unprivileged", mode.String())

	mode, err = services.ParseMode("auto")
	require.NoError(t, err)
	require.Equal(t, services.DetectMode(), mode)

	_, err = services.ParseMode("root")
	require.ErrorIs(t, err, services.ErrUnknownMode)
}

func TestMonitorRefresh(t *testing.T) {
	t.Parallel()

	svcs := loadAll(t)
	ctl := newFakeController("dnscrypt-proxy.service", "tor.service")
	mon := services.NewMonitor(svcs, ctl, "")

	for _, st := range mon.Statuses() {
		require.Equal(t, services.StatusUnknown, st)
	}

	err := mon.Refresh(context.Background())
	require.Error(t, err)

	statuses := mon.Statuses()
	require.Equal(t, services.StatusRunning, statuses["tor"])
	require.Equal(t, services.StatusUnknown, statuses["i2pd"])
	require.False(t, mon.AllStopped())
}

func TestMonitorSubscribe(t *testing.T) {
	t.Parallel()

	mon := services.NewMonitor(loadAll(t), newFakeController(), "")

	notify, unsubscribe := mon.Subscribe()

	mon.Set("tor", services.StatusStopped)

	select {
	case <-notify:
	case <-time.After(time.Second):
		t.Fatal("no notification received")
	}

	// Setting the same status again doesn't notify.
	mon.Set("tor", services.StatusStopped)

	select {
	case <-notify:
		t.Fatal("unexpected notification")
	default:
	}

	unsubscribe()

	mon.Set("tor", services.StatusRunning)

	select {
	case <-notify:
		t.Fatal("notification after unsubscribe")
	default:
	}
}

func TestStopAll(t *testing.T) {
	t.Parallel()

	svcs := loadAll(t)
	ctl := newFakeController("dnscrypt-proxy.service", "tor.service", "i2pd.service")
	mon := services.NewMonitor(svcs, ctl, "")

	var usedMode services.Mode

	mgr := services.NewManager(mon, func(mode services.Mode) services.Controller {
		usedMode = mode

		return ctl
	})

	err := mgr.StopAll(context.Background(), services.ModePrivileged)
	require.NoError(t, err)
	require.Equal(t, services.ModePrivileged, usedMode)
	require.ElementsMatch(t, []string{"dnscrypt-proxy.service", "tor.service", "i2pd.service"}, ctl.stopped)

	require.NoError(t, mon.Refresh(context.Background()))
	require.True(t, mon.AllStopped())
}

func TestStopAllAggregatesErrors(t *testing.T) {
	t.Parallel()

	ctl := newFakeController("dnscrypt-proxy.service", "tor.service", "i2pd.service")
	ctl.failOn = "tor.service"

	mgr := services.NewManager(services.NewMonitor(loadAll(t), ctl, ""), func(services.Mode) services.Controller { return ctl })

	err := mgr.StopAll(context.Background(), services.ModeUnprivileged)
	require.ErrorContains(t, err, "unit is stuck")

	// Every service was still asked to stop.
	require.Len(t, ctl.stopped, 3)
}

func TestWaitUntilAllStopped(t *testing.T) {
	t.Parallel()

	ctl := newFakeController("dnscrypt-proxy.service", "tor.service", "i2pd.service")
	mon := services.NewMonitor(loadAll(t), ctl, "")
	mgr := services.NewManager(mon, nil)

	go func() {
		for _, svc := range mon.Services() {
			time.Sleep(10 * time.Millisecond)

			_ = ctl.Stop(context.Background(), svc.Unit)
		}
	}()

	require.True(t, mgr.WaitUntilAllStopped(context.Background(), 5*time.Second))
	require.Len(t, ctl.stopped, 3)
}

// slowController accepts stop requests right away and stops the unit later,
// like "systemctl stop --no-block".
type slowController struct {
	*fakeController

	delay time.Duration
}

func (c *slowController) Stop(_ context.Context, unit string) error {
	time.AfterFunc(c.delay, func() {
		_ = c.fakeController.Stop(context.Background(), unit)
	})

	return nil
}

func (c *slowController) running() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0

	for _, st := range c.state {
		if st == services.StatusRunning {
			count++
		}
	}

	return count
}

func TestWaitUntilAllStoppedStaleCache(t *testing.T) {
	t.Parallel()

	ctl := &slowController{fakeController: newFakeController(), delay: 300 * time.Millisecond}
	mon := services.NewMonitor(loadAll(t), ctl, "")

	// The last poll saw every service stopped.
	for _, svc := range mon.Services() {
		mon.Set(svc.Name, services.StatusStopped)
	}

	require.True(t, mon.AllStopped())

	// The services were started since.
	for _, svc := range mon.Services() {
		require.NoError(t, ctl.Start(context.Background(), svc.Unit))
	}

	mgr := services.NewManager(mon, func(services.Mode) services.Controller { return ctl })

	start := time.Now()

	require.NoError(t, mgr.StopAll(context.Background(), services.ModePrivileged))
	require.False(t, mon.AllStopped())

	require.True(t, mgr.WaitUntilAllStopped(context.Background(), 5*time.Second))
	require.Zero(t, ctl.running())
	require.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestWaitUntilAllStoppedTimeout(t *testing.T) {
	t.Parallel()

	mon := services.NewMonitor(loadAll(t), newFakeController(), "")
	mon.Set("tor", services.StatusStopped)

	mgr := services.NewManager(mon, nil)

	start := time.Now()
	require.False(t, mgr.WaitUntilAllStopped(context.Background(), 50*time.Millisecond))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitUntilAllStoppedCancel(t *testing.T) {
	t.Parallel()

	mgr := services.NewManager(services.NewMonitor(loadAll(t), newFakeController(), ""), nil)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	require.False(t, mgr.WaitUntilAllStopped(ctx, time.Minute))
}

func TestMonitorRunPidEvents(t *testing.T) {
	t.Parallel()

	pidDir := filepath.Join(t.TempDir(), "pids")
	svcs := loadAll(t)
	ctl := newFakeController("dnscrypt-proxy.service", "tor.service", "i2pd.service")

	mon := services.NewMonitor(svcs, ctl, pidDir)
	mon.MaxInterval = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- mon.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return mon.Statuses()["tor"] == services.StatusRunning
	}, 5*time.Second, 10*time.Millisecond)

	for _, svc := range svcs {
		require.NoError(t, ctl.Stop(ctx, svc.Unit))
	}

	// A pid file change triggers a refresh.
	err := os.WriteFile(filepath.Join(pidDir, "tor.pid"), []byte("42\n"), 0o600)
	require.NoError(t, err)

	require.Eventually(t, mon.AllStopped, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
