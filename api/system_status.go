package api

import (
	"time"
)

// SystemStatus represents the installed and running state of the system.
type SystemStatus struct {
	Version          string            `json:"version"           yaml:"version"`
	ModulesInstalled bool              `json:"modules_installed" yaml:"modules_installed"`
	InstallRoot      string            `json:"install_root"      yaml:"install_root"`
	Components       []ComponentStatus `json:"components"        yaml:"components"`
	Services         map[string]string `json:"services"          yaml:"services"`
	UpdatedAt        time.Time         `json:"updated_at"        yaml:"updated_at"`
}

// ComponentStatus represents a single bundled component.
type ComponentStatus struct {
	Name             string `json:"name"              yaml:"name"`
	BundledVersion   string `json:"bundled_version"   yaml:"bundled_version"`
	InstalledVersion string `json:"installed_version" yaml:"installed_version"`
	Installed        bool   `json:"installed"         yaml:"installed"`
}
