package reset

import (
	"sync"
)

// Runner starts reset sessions on a worker pool, one at a time.
type Runner struct {
	mu      sync.Mutex
	pool    Submitter
	current *Session
}

// NewRunner returns a Runner submitting sessions to pool.
func NewRunner(pool Submitter) *Runner {
	return &Runner{pool: pool}
}

// Start submits the session, failing with ErrResetInProgress if another one is still running.
func (r *Runner) Start(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		select {
		case <-r.current.Done():
		default:
			return ErrResetInProgress
		}
	}

	err := s.Start(r.pool)
	if err != nil {
		return err
	}

	r.current = s

	return nil
}

// Current returns the last started session, or nil.
func (r *Runner) Current() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.current
}

// Lookup returns the last started session if it has the given ID.
func (r *Runner) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil || r.current.ID() != id {
		return nil, false
	}

	return r.current, true
}
