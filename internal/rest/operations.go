package rest

import (
	"sync"
	"time"

	"github.com/veilnet/veild/api"
	"github.com/veilnet/veild/internal/ui"
)

// operation is the progress surface of a request handled in the background.
// It holds the strong references the background work only points at weakly.
type operation struct {
	id       string
	uictx    *ui.Context
	progress *ui.Progress
	sink     *operationSink
}

// operationSink records what a background task reports to its API client.
type operationSink struct {
	mu      sync.Mutex
	message string
	done    bool
	doneAt  time.Time
}

func (s *operationSink) Update(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.message = message
}

func (s *operationSink) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.done = true
	s.doneAt = time.Now()
}

func (op *operation) toAPI() api.Operation {
	op.sink.mu.Lock()
	defer op.sink.mu.Unlock()

	return api.Operation{
		ID:      op.id,
		Message: op.sink.message,
		Done:    op.sink.done,
	}
}

// destroy tears down the UI handles of the operation.
func (op *operation) destroy() {
	op.progress.Destroy()
	op.uictx.Close()
}

type operations struct {
	mu  sync.Mutex
	ops map[string]*operation
}

func newOperations() *operations {
	return &operations{ops: map[string]*operation{}}
}

// newOperation returns an operation reporting through a fresh progress surface.
func newOperation(uictx *ui.Context) *operation {
	sink := &operationSink{}

	return &operation{
		uictx:    uictx,
		progress: ui.NewProgress(sink),
		sink:     sink,
	}
}

// add registers the operation under id.
func (o *operations) add(id string, op *operation) {
	op.id = id

	o.mu.Lock()
	defer o.mu.Unlock()

	o.ops[id] = op
}

func (o *operations) get(id string) (*operation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	op, ok := o.ops[id]

	return op, ok
}

// remove forgets the operation and destroys its UI handles.
func (o *operations) remove(id string) bool {
	o.mu.Lock()
	op, ok := o.ops[id]
	delete(o.ops, id)
	o.mu.Unlock()

	if ok {
		op.destroy()
	}

	return ok
}

// prune removes the operations completed for longer than maxAge.
func (o *operations) prune(maxAge time.Duration) int {
	o.mu.Lock()

	expired := []*operation{}

	for id, op := range o.ops {
		op.sink.mu.Lock()
		old := op.sink.done && time.Since(op.sink.doneAt) > maxAge
		op.sink.mu.Unlock()

		if old {
			expired = append(expired, op)
			delete(o.ops, id)
		}
	}

	o.mu.Unlock()

	for _, op := range expired {
		op.destroy()
	}

	return len(expired)
}
