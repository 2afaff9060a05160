// Package status tracks the installed and running state of the application.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-version"

	"github.com/veilnet/veild/api"
	"github.com/veilnet/veild/internal/services"
)

// ComponentSource reports on the bundled components.
type ComponentSource interface {
	Root() string
	Components() []string
	BundledVersion(name string) (*version.Version, error)
	InstalledVersion(name string) (*version.Version, error)
}

// ServiceSource reports on the managed services.
type ServiceSource interface {
	Refresh(ctx context.Context) error
	Statuses() map[string]services.Status
}

type persisted struct {
	ModulesInstalled bool      `json:"modules_installed"`
	LastInstall      time.Time `json:"last_install"`
}

// Tracker holds the persisted "modules installed" flag and the last computed status.
type Tracker struct {
	mu      sync.Mutex
	path    string
	state   persisted
	current api.SystemStatus

	components ComponentSource
	services   ServiceSource
	version    string
}

// NewTracker loads the status file at path, creating an empty state if it doesn't exist yet.
func NewTracker(path string, appVersion string, components ComponentSource, svcs ServiceSource) (*Tracker, error) {
	t := &Tracker{
		path:       path,
		components: components,
		services:   svcs,
		version:    appVersion,
	}

	// #nosec G304
	body, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if err == nil {
		err = json.Unmarshal(body, &t.state)
		if err != nil {
			return nil, errors.New("unable to parse status file: " + err.Error())
		}
	}

	t.current = api.SystemStatus{
		Version:          appVersion,
		ModulesInstalled: t.state.ModulesInstalled,
		InstallRoot:      components.Root(),
	}

	return t, nil
}

// Installed returns the persisted "modules installed" flag.
func (t *Tracker) Installed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state.ModulesInstalled
}

// SetInstalled updates and persists the "modules installed" flag.
// A failure to persist is logged, the in-memory flag is updated regardless.
func (t *Tracker) SetInstalled(installed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.ModulesInstalled = installed
	if installed {
		t.state.LastInstall = time.Now().UTC()
	}

	t.current.ModulesInstalled = installed

	err := t.save()
	if err != nil {
		slog.Error("Failed to save status file", "path", t.path, "err", err)
	}
}

func (t *Tracker) save() error {
	body, err := json.Marshal(t.state)
	if err != nil {
		return err
	}

	tmp := t.path + ".tmp"

	err = os.WriteFile(tmp, body, 0o600)
	if err != nil {
		return err
	}

	return os.Rename(tmp, t.path)
}

// Refresh recomputes the status of the components and services.
func (t *Tracker) Refresh(ctx context.Context) error {
	err := t.services.Refresh(ctx)
	if err != nil {
		slog.DebugContext(ctx, "Some service states couldn't be determined", "err", err)
	}

	comps := make([]api.ComponentStatus, 0, len(t.components.Components()))

	for _, name := range t.components.Components() {
		comp := api.ComponentStatus{Name: name}

		bundled, err := t.components.BundledVersion(name)
		if err == nil {
			comp.BundledVersion = bundled.String()
		}

		installed, err := t.components.InstalledVersion(name)
		if err == nil {
			comp.InstalledVersion = installed.String()
			comp.Installed = true
		}

		comps = append(comps, comp)
	}

	svcs := map[string]string{}
	for name, st := range t.services.Statuses() {
		svcs[name] = string(st)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = api.SystemStatus{
		Version:          t.version,
		ModulesInstalled: t.state.ModulesInstalled,
		InstallRoot:      t.components.Root(),
		Components:       comps,
		Services:         svcs,
		UpdatedAt:        time.Now().UTC(),
	}

	return nil
}

// Get returns the last computed status.
func (t *Tracker) Get() api.SystemStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.current
}
