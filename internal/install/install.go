// Package install extracts the bundled components into the installation root.
package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-version"
	"github.com/lxc/incus/v6/shared/revert"
	"golang.org/x/sys/unix"

	"github.com/veilnet/veild/internal/config"
)

const versionFile = ".version"

var (
	// ErrUnknownComponent is returned when referring to a component missing from the bundle.
	ErrUnknownComponent = errors.New("unknown component")

	// ErrUnsafePath is returned for archive entries escaping their component directory.
	ErrUnsafePath = errors.New("archive entry escapes the component directory")

	// ErrUnsupportedEntry is returned for archive entries other than directories and regular files.
	ErrUnsupportedEntry = errors.New("unsupported archive entry")
)

// Installer installs the bundled components under the installation root.
type Installer struct {
	mu         sync.RWMutex
	root       string
	bundleDir  string
	components []config.Component
}

// New returns an Installer for the components of the given configuration.
func New(cfg *config.Config) *Installer {
	return &Installer{
		root:       cfg.InstallRoot,
		bundleDir:  cfg.BundleDir,
		components: cfg.Components,
	}
}

// Root returns the installation root.
func (i *Installer) Root() string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.root
}

// LogsDir returns the path of the logs directory.
func (i *Installer) LogsDir() string {
	return filepath.Join(i.Root(), "logs")
}

// Components returns the names of the bundled components, in installation order.
func (i *Installer) Components() []string {
	names := make([]string, 0, len(i.components))
	for _, comp := range i.components {
		names = append(names, comp.Name)
	}

	return names
}

func (i *Installer) component(name string) (config.Component, error) {
	for _, comp := range i.components {
		if comp.Name == name {
			return comp, nil
		}
	}

	return config.Component{}, ErrUnknownComponent
}

// RemoveInstallationDirectories removes every component directory and the logs directory.
// Directories that don't exist are skipped.
func (i *Installer) RemoveInstallationDirectories() error {
	dirs := []string{i.LogsDir()}
	for _, comp := range i.components {
		dirs = append(dirs, filepath.Join(i.Root(), comp.Name))
	}

	for _, dir := range dirs {
		err := os.RemoveAll(dir)
		if err != nil {
			return err
		}
	}

	return nil
}

// CreateLogsDirectory creates an empty logs directory.
func (i *Installer) CreateLogsDirectory() error {
	return os.MkdirAll(i.LogsDir(), 0o750)
}

// ExtractComponent extracts the archive of the named component and returns
// the directory it was extracted to. A partial extraction is removed.
func (i *Installer) ExtractComponent(ctx context.Context, name string) (string, error) {
	comp, err := i.component(name)
	if err != nil {
		return "", err
	}

	reverter := revert.New()
	defer reverter.Fail()

	target := filepath.Join(i.Root(), comp.Name)

	err = os.MkdirAll(target, 0o755)
	if err != nil {
		return "", err
	}

	reverter.Add(func() {
		_ = os.RemoveAll(target)
	})

	// #nosec G304
	fd, err := os.Open(filepath.Join(i.bundleDir, comp.Archive))
	if err != nil {
		return "", err
	}

	defer fd.Close()

	archive, release, err := openArchive(comp.Archive, fd)
	if err != nil {
		return "", err
	}

	defer release()

	count := 0

	for {
		err := ctx.Err()
		if err != nil {
			return "", err
		}

		entryName, info, err := archive.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return "", err
		}

		err = extractEntry(target, entryName, info, archive)
		if err != nil {
			return "", fmt.Errorf("unable to extract %s: %w", entryName, err)
		}

		count++
	}

	err = os.WriteFile(filepath.Join(target, versionFile), []byte(comp.Version+"\n"), 0o644)
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Extracted component", "component", comp.Name, "version", comp.Version, "entries", count)

	reverter.Success()

	return target, nil
}

func extractEntry(target string, name string, info os.FileInfo, r io.Reader) error {
	name = strings.TrimPrefix(filepath.Clean(name), "./")
	if name == "." {
		return nil
	}

	if !filepath.IsLocal(name) {
		return ErrUnsafePath
	}

	path := filepath.Join(target, name)

	switch {
	case info.IsDir():
		return os.MkdirAll(path, 0o755)

	case info.Mode().IsRegular():
		err := os.MkdirAll(filepath.Dir(path), 0o755)
		if err != nil {
			return err
		}

		// #nosec G304
		fd, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm()&0o755)
		if err != nil {
			return err
		}

		defer fd.Close()

		// Read from the archive in chunks to avoid excessive memory consumption.
		for {
			_, err = io.CopyN(fd, r, 4*1024*1024)
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}

				return err
			}
		}

		return fd.Close()

	default:
		return ErrUnsupportedEntry
	}
}

// SetExecutablePermissions marks the executables of the component extracted at path as executable.
func (i *Installer) SetExecutablePermissions(path string) error {
	comp, err := i.component(filepath.Base(path))
	if err != nil {
		return err
	}

	for _, exe := range comp.Executables {
		err := os.Chmod(filepath.Join(path, exe), 0o755)
		if err != nil {
			return err
		}
	}

	return nil
}

// ResolveInstallationRoot turns the installation root into an absolute path
// with symlinks resolved, then flushes the extracted files to disk.
func (i *Installer) ResolveInstallationRoot() (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	root, err := filepath.Abs(i.root)
	if err != nil {
		return "", err
	}

	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return "", err
	}

	i.root = root

	unix.Sync()

	return root, nil
}

// BundledVersion returns the version of the named component shipped in the bundle.
func (i *Installer) BundledVersion(name string) (*version.Version, error) {
	comp, err := i.component(name)
	if err != nil {
		return nil, err
	}

	return version.NewVersion(comp.Version)
}

// InstalledVersion returns the version of the named component currently extracted.
// It returns an error satisfying os.IsNotExist if the component isn't installed.
func (i *Installer) InstalledVersion(name string) (*version.Version, error) {
	comp, err := i.component(name)
	if err != nil {
		return nil, err
	}

	// #nosec G304
	body, err := os.ReadFile(filepath.Join(i.Root(), comp.Name, versionFile))
	if err != nil {
		return nil, err
	}

	return version.NewVersion(strings.TrimSpace(string(body)))
}
