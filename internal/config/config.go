// Package config handles the veild daemon configuration file.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Component describes a bundled component shipped as an archive.
type Component struct {
	Name        string   `validate:"required"          yaml:"name"`
	Archive     string   `validate:"required"          yaml:"archive"`
	Version     string   `validate:"required"          yaml:"version"`
	Service     string   `validate:"required"          yaml:"service"`
	Executables []string `validate:"min=1,dive,required" yaml:"executables"`
}

// Config represents the daemon configuration.
type Config struct {
	// Directory holding the extracted components.
	InstallRoot string `validate:"required" yaml:"install_root"`

	// Directory holding the component archives shipped with the application.
	BundleDir string `validate:"required" yaml:"bundle_dir"`

	// Directory holding the configuration stores and status file.
	StateDir string `validate:"required" yaml:"state_dir"`

	// Directory holding the API socket and service pid files.
	RunDir string `validate:"required" yaml:"run_dir"`

	// Name of the application-named configuration store.
	AppName string `validate:"required,alphanum" yaml:"app_name"`

	Language string `validate:"required" yaml:"language"`

	// Service control mode, one of "auto", "privileged" or "unprivileged".
	Mode string `validate:"oneof=auto privileged unprivileged" yaml:"mode"`

	// How long a factory reset waits for the services to stop.
	StopTimeout time.Duration `validate:"gt=0" yaml:"stop_timeout"`

	// Crontab expression for the periodic status refresh.
	StatusSchedule string `validate:"required" yaml:"status_schedule"`

	Components []Component `validate:"min=1,dive" yaml:"components"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		InstallRoot:    "/var/lib/veild/app",
		BundleDir:      "/usr/share/veild/bundle",
		StateDir:       "/var/lib/veild",
		RunDir:         "/run/veild",
		AppName:        "veild",
		Language:       "en",
		Mode:           "auto",
		StopTimeout:    15 * time.Second,
		StatusSchedule: "*/5 * * * *",
		Components: []Component{
			{
				Name:        "dnscrypt-proxy",
				Archive:     "dnscrypt-proxy.tar.gz",
				Version:     "2.1.5",
				Service:     "dnscrypt-proxy.service",
				Executables: []string{"dnscrypt-proxy"},
			},
			{
				Name:        "tor",
				Archive:     "tor.tar.zst",
				Version:     "0.4.8.12",
				Service:     "tor.service",
				Executables: []string{"tor"},
			},
			{
				Name:        "i2pd",
				Archive:     "i2pd.cpio",
				Version:     "2.54.0",
				Service:     "i2pd.service",
				Executables: []string{"i2pd"},
			},
		},
	}
}

// Load reads the configuration file at the given path on top of the defaults.
// A missing file isn't an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304
	body, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if err == nil {
		err = yaml.Unmarshal(body, cfg)
		if err != nil {
			return nil, errors.New("unable to parse configuration: " + err.Error())
		}
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, verr := range verrs {
				fields = append(fields, verr.Namespace()+" ("+verr.Tag()+")")
			}

			return errors.New("invalid configuration: " + strings.Join(fields, ", "))
		}

		return err
	}

	names := map[string]bool{}

	for _, comp := range c.Components {
		if names[comp.Name] {
			return errors.New("invalid configuration: duplicate component " + comp.Name)
		}

		if comp.Name != filepath.Base(comp.Name) || !filepath.IsLocal(comp.Name) || comp.Name == "." || comp.Name == "logs" {
			return errors.New("invalid configuration: bad component name " + comp.Name)
		}

		names[comp.Name] = true
	}

	return nil
}

// Component returns the named component.
func (c *Config) Component(name string) (Component, bool) {
	for _, comp := range c.Components {
		if comp.Name == name {
			return comp, true
		}
	}

	return Component{}, false
}

// LogsDir returns the path of the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.InstallRoot, "logs")
}

// PidDir returns the directory where the managed services write their pid files.
func (c *Config) PidDir() string {
	return filepath.Join(c.RunDir, "pids")
}

// SocketPath returns the path of the API unix socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.RunDir, "unix.socket")
}

// StatusPath returns the path of the persisted status file.
func (c *Config) StatusPath() string {
	return filepath.Join(c.StateDir, "status.json")
}
