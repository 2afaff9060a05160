package reset

import (
	"github.com/veilnet/veild/internal/state"
)

// RegistrationCodeKey is the configuration key of the registration code.
const RegistrationCodeKey = "registrationCode"

// Field is a configuration value kept across a reset.
type Field struct {
	Key   string
	Value string
}

// Snapshot holds the configuration values kept across a reset, in capture order.
type Snapshot []Field

// Capture reads the given keys from store. Missing keys are recorded as empty.
func Capture(store state.Store, keys ...string) (Snapshot, error) {
	snap := make(Snapshot, 0, len(keys))

	for _, key := range keys {
		value, _, err := store.GetString(key)
		if err != nil {
			return nil, err
		}

		snap = append(snap, Field{Key: key, Value: value})
	}

	return snap, nil
}

// Restore writes the non-empty values back into store and returns how many were written.
func (s Snapshot) Restore(store state.Store) (int, error) {
	count := 0

	for _, field := range s {
		if field.Value == "" {
			continue
		}

		err := store.SetString(field.Key, field.Value)
		if err != nil {
			return count, err
		}

		count++
	}

	return count, nil
}

// Empty reports whether there's nothing to restore.
func (s Snapshot) Empty() bool {
	for _, field := range s {
		if field.Value != "" {
			return false
		}
	}

	return true
}
