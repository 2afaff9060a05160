package state

import (
	"io"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// DefaultStoreName is the name of the framework-default configuration store.
const DefaultStoreName = "default"

// Registry holds the configuration stores of the application.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]Store
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		stores: map[string]Store{},
	}
}

// Open opens the two configuration stores of the application under dir: the
// framework-default store and the store named after the application.
func Open(dir string, appName string) (*Registry, error) {
	defaultStore, err := OpenFileStore(filepath.Join(dir, DefaultStoreName+".txt"))
	if err != nil {
		return nil, err
	}

	appStore, err := OpenSQLiteStore(filepath.Join(dir, appName+".db"))
	if err != nil {
		return nil, err
	}

	r := NewRegistry()
	r.Add(DefaultStoreName, defaultStore)
	r.Add(appName, appStore)

	return r, nil
}

// Add registers a store under name.
func (r *Registry) Add(name string, s Store) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stores[name] = s
}

// Get returns the store registered under name.
func (r *Registry) Get(name string) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stores[name]
	if !ok {
		return nil, ErrUnknownStore
	}

	return s, nil
}

// Close closes every store that holds resources.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs error

	for _, s := range r.stores {
		closer, ok := s.(io.Closer)
		if !ok {
			continue
		}

		err := closer.Close()
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return errs
}
