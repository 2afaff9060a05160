// Package reset implements the factory reset of the application: stopping the
// managed services, reinstalling the bundled components, clearing the
// configuration stores and marking the application installed again.
package reset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/google/uuid"

	"github.com/veilnet/veild/internal/services"
	"github.com/veilnet/veild/internal/state"
	"github.com/veilnet/veild/internal/ui"
)

// ServiceManager stops the managed services.
type ServiceManager interface {
	StopAll(ctx context.Context, mode services.Mode) error
	WaitUntilAllStopped(ctx context.Context, timeout time.Duration) bool
}

// Installer reinstalls the bundled components.
type Installer interface {
	Components() []string
	RemoveInstallationDirectories() error
	CreateLogsDirectory() error
	ExtractComponent(ctx context.Context, name string) (string, error)
	SetExecutablePermissions(path string) error
	ResolveInstallationRoot() (string, error)
}

// StatusUpdater publishes the installed state of the application.
type StatusUpdater interface {
	SetInstalled(installed bool)
	Refresh(ctx context.Context) error
}

// Submitter runs a task on a shared worker pool.
type Submitter interface {
	Submit(name string, fn func(context.Context)) error
}

// Dependencies are the subsystems a reset drives.
type Dependencies struct {
	Services  ServiceManager
	Installer Installer
	Status    StatusUpdater

	// PreservesRegistration decides from the application version string
	// whether the registration code survives the reset.
	PreservesRegistration func(version string) bool
}

// Options configure a single reset.
type Options struct {
	Mode        services.Mode
	StopTimeout time.Duration

	// AppStore is the name of the application-named configuration store.
	AppStore string

	// UI context and progress surface of the caller. Neither is kept alive by the session.
	Context  *ui.Context
	Progress *ui.Progress
}

type target struct {
	ctx      weak.Pointer[ui.Context]
	progress weak.Pointer[ui.Progress]
}

func newTarget(ctx *ui.Context, progress *ui.Progress) *target {
	t := &target{}

	if ctx != nil {
		t.ctx = weak.Make(ctx)
	}

	if progress != nil {
		t.progress = weak.Make(progress)
	}

	return t
}

// Session is a single factory reset.
type Session struct {
	id        string
	deps      Dependencies
	mode      services.Mode
	timeout   time.Duration
	appStore  string
	startedAt time.Time

	target atomic.Pointer[target]

	started     atomic.Bool
	interrupted atomic.Bool

	mu     sync.Mutex
	phase  Phase
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a new reset session.
func New(deps Dependencies, opts Options) *Session {
	if deps.PreservesRegistration == nil {
		deps.PreservesRegistration = func(string) bool { return false }
	}

	s := &Session{
		id:       uuid.New().String(),
		deps:     deps,
		mode:     opts.Mode,
		timeout:  opts.StopTimeout,
		appStore: opts.AppStore,
		done:     make(chan struct{}),
	}

	s.target.Store(newTarget(opts.Context, opts.Progress))

	return s
}

// ID returns the unique identifier of the session.
func (s *Session) ID() string {
	return s.id
}

// Mode returns the service control mode of the session.
func (s *Session) Mode() services.Mode {
	return s.mode
}

// StartedAt returns when the session started running.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.startedAt
}

// Phase returns the current phase of the session.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.phase
}

// Err returns the error the session ended with, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Done is closed once the session reached a terminal phase and closed its progress indicator.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Rebind points the session at a new UI context and progress surface.
func (s *Session) Rebind(ctx *ui.Context, progress *ui.Progress) {
	s.target.Store(newTarget(ctx, progress))
}

// Interrupt requests the session to stop waiting for the services and abort.
// It has no effect once the reinstallation started.
func (s *Session) Interrupt() {
	s.interrupted.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
}

// Start runs the session on the worker pool. It doesn't wait for completion.
func (s *Session) Start(pool Submitter) error {
	return pool.Submit("factory-reset", func(ctx context.Context) {
		_ = s.Run(ctx)
	})
}

func (s *Session) uiContext() *ui.Context {
	return s.target.Load().ctx.Value()
}

func (s *Session) progress() *ui.Progress {
	return s.target.Load().progress.Value()
}

func (s *Session) setPhase(ctx context.Context, phase Phase) {
	s.mu.Lock()
	s.phase = phase
	s.mu.Unlock()

	slog.DebugContext(ctx, "Factory reset phase", "session", s.id, "phase", phase.String())
}

// Run performs the reset on the calling goroutine.
func (s *Session) Run(ctx context.Context) (err error) {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	var stack []byte

	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("factory reset panicked: %v", r)
			stack = debug.Stack()
		}

		s.finish(ctx, err, stack)
	}()

	slog.InfoContext(ctx, "Starting factory reset", "session", s.id, "mode", s.mode.String())

	// Stop the services.
	s.setPhase(ctx, PhaseStoppingServices)

	result := s.stopServices(ctx)
	if result != StopOK {
		return &AbortError{Result: result}
	}

	// Nothing below can be interrupted.
	ctx = context.WithoutCancel(ctx)

	// Reinstall the bundled components.
	s.setPhase(ctx, PhaseReinstalling)

	err = s.reinstall(ctx)
	if err != nil {
		return err
	}

	// Reset the configuration.
	s.setPhase(ctx, PhaseResettingConfig)

	err = s.resetConfig(ctx)
	if err != nil {
		return err
	}

	// Publish the new status.
	s.setPhase(ctx, PhaseFinalizing)

	s.deps.Status.SetInstalled(true)

	err = s.deps.Status.Refresh(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to refresh status after factory reset", "err", err)
	}

	return nil
}

// finish records the outcome, reports failures to the user and closes the progress indicator.
func (s *Session) finish(ctx context.Context, err error, stack []byte) {
	phase := PhaseDone
	if err != nil {
		phase = PhaseFailed

		var abortErr *AbortError
		if errors.As(err, &abortErr) {
			phase = PhaseAborted
		}
	}

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	s.setPhase(ctx, phase)

	if err != nil {
		if stack == nil {
			stack = debug.Stack()
		}

		cause := errors.Unwrap(err)
		if cause == nil {
			cause = err
		}

		slog.ErrorContext(ctx, "Factory reset failed", "session", s.id, "err", err, "cause", cause, "stack", string(stack))

		msg := ui.MsgSomethingWentWrong

		uictx := s.uiContext()
		if uictx != nil {
			localized, err := uictx.Localize(msg)
			if err == nil {
				msg = localized
			}
		}

		progress := s.progress()
		if progress != nil {
			progress.ShowMessage(msg)
		}
	} else {
		slog.InfoContext(ctx, "Factory reset completed", "session", s.id)
	}

	// Closing the progress indicator is always the last user visible action.
	progress := s.progress()
	if progress != nil {
		progress.CloseProgress()
	}

	close(s.done)
}

func (s *Session) stopServices(ctx context.Context) StopResult {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	// Catch interruptions requested before the wait could be cancelled.
	if s.interrupted.Load() {
		cancel()
	}

	err := s.deps.Services.StopAll(waitCtx, s.mode)
	if err != nil {
		slog.WarnContext(ctx, "Failed to request some services to stop", "err", err)
	}

	stopped := s.deps.Services.WaitUntilAllStopped(waitCtx, s.timeout)

	if s.interrupted.Load() || ctx.Err() != nil {
		return StopInterrupted
	}

	if !stopped {
		return StopTimedOut
	}

	return StopOK
}

func (s *Session) reinstall(ctx context.Context) error {
	inst := s.deps.Installer

	err := inst.RemoveInstallationDirectories()
	if err != nil {
		return &InstallError{Step: "remove installation directories", Err: err}
	}

	err = inst.CreateLogsDirectory()
	if err != nil {
		return &InstallError{Step: "create logs directory", Err: err}
	}

	paths := make([]string, 0, len(inst.Components()))

	for _, name := range inst.Components() {
		path, err := inst.ExtractComponent(ctx, name)
		if err != nil {
			return &InstallError{Step: "extract", Component: name, Err: err}
		}

		paths = append(paths, path)
	}

	for _, path := range paths {
		err := inst.SetExecutablePermissions(path)
		if err != nil {
			return &InstallError{Step: "set permissions on", Component: path, Err: err}
		}
	}

	root, err := inst.ResolveInstallationRoot()
	if err != nil {
		return &InstallError{Step: "resolve installation root", Err: err}
	}

	slog.InfoContext(ctx, "Reinstalled bundled components", "root", root, "components", len(paths))

	return nil
}

// store returns the named configuration store through the UI context, or
// ui.ErrContextUnavailable if that context is gone.
func (s *Session) store(name string) (state.Store, error) {
	uictx := s.uiContext()
	if uictx == nil {
		return nil, ui.ErrContextUnavailable
	}

	return uictx.Store(name)
}

// preserved captures the fields to keep across the reset.
func (s *Session) preserved(ctx context.Context) (Snapshot, error) {
	uictx := s.uiContext()
	if uictx == nil {
		return nil, nil
	}

	version, err := uictx.Version()
	if err != nil || !s.deps.PreservesRegistration(version) {
		return nil, nil
	}

	store, err := uictx.Store(s.appStore)
	if err != nil {
		if errors.Is(err, ui.ErrContextUnavailable) {
			return nil, nil
		}

		return nil, &ConfigError{Store: s.appStore, Err: err}
	}

	snap, err := Capture(store, RegistrationCodeKey)
	if err != nil {
		return nil, &ConfigError{Store: s.appStore, Err: err}
	}

	slog.DebugContext(ctx, "Captured preserved fields", "store", s.appStore, "empty", snap.Empty())

	return snap, nil
}

func (s *Session) resetConfig(ctx context.Context) error {
	// The preserved fields must be read before the stores are cleared.
	snap, err := s.preserved(ctx)
	if err != nil {
		return err
	}

	for _, name := range []string{state.DefaultStoreName, s.appStore} {
		store, err := s.store(name)
		if err != nil {
			if errors.Is(err, ui.ErrContextUnavailable) {
				slog.InfoContext(ctx, "Skipping configuration store reset, context unavailable", "store", name)

				continue
			}

			return &ConfigError{Store: name, Err: err}
		}

		err = store.ClearAll()
		if err != nil {
			return &ConfigError{Store: name, Err: err}
		}

		slog.InfoContext(ctx, "Reset configuration store", "store", name)
	}

	if snap.Empty() {
		return nil
	}

	store, err := s.store(s.appStore)
	if err != nil {
		if errors.Is(err, ui.ErrContextUnavailable) {
			slog.WarnContext(ctx, "Unable to restore preserved fields, context unavailable", "store", s.appStore)

			return nil
		}

		return &ConfigError{Store: s.appStore, Err: err}
	}

	count, err := snap.Restore(store)
	if err != nil {
		return &ConfigError{Store: s.appStore, Err: err}
	}

	slog.InfoContext(ctx, "Restored preserved fields", "store", s.appStore, "count", count)

	return nil
}
