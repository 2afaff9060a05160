// Package state provides the persisted configuration stores.
package state

import (
	"errors"
	"strings"
)

// ErrUnknownStore is returned when a store name isn't registered.
var ErrUnknownStore = errors.New("unknown configuration store")

// ErrInvalidKey is returned when a key can't be persisted.
var ErrInvalidKey = errors.New("invalid configuration key")

// Store represents a persisted key-value configuration store.
type Store interface {
	// GetString returns the value of key and whether it was set.
	GetString(key string) (string, bool, error)

	// SetString stores value under key.
	SetString(key string, value string) error

	// ClearAll removes every key from the store.
	ClearAll() error

	// Keys returns the sorted list of keys currently set.
	Keys() ([]string, error)
}

func validKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, ":\n\r") && strings.TrimSpace(key) == key
}
