// Package trigger resolves and runs before/after mutation hooks.
//
// Triggers are declared per (database, table, event) and execute around the
// single-row engine calls of a mutation. A handler's console output is
// captured for the duration of the call and only becomes visible when the
// returned Interceptor is committed; Discard drops it. This is a
// log-visibility protocol, not a data transaction: rolling back data effects
// of a failed engine call remains the engine's responsibility.
package trigger

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/davrell/fluentdml/internal/dml"
)

// Phase names the mutation kind an event belongs to.
type Phase string

const (
	PhaseAdd    Phase = "Add"
	PhaseUpdate Phase = "Update"
	PhaseDelete Phase = "Delete"
)

// Event is a fully qualified trigger event key, e.g. "beforeAdd".
type Event string

const (
	BeforeAdd    Event = "beforeAdd"
	AfterAdd     Event = "afterAdd"
	BeforeUpdate Event = "beforeUpdate"
	AfterUpdate  Event = "afterUpdate"
	BeforeDelete Event = "beforeDelete"
	AfterDelete  Event = "afterDelete"
)

// Before returns the before-phase event for a mutation phase.
func Before(p Phase) Event { return Event("before" + string(p)) }

// After returns the after-phase event for a mutation phase.
func After(p Phase) Event { return Event("after" + string(p)) }

// Descriptor declares one registered trigger.
type Descriptor struct {
	Type     Event  `yaml:"type" json:"type"`
	Database string `yaml:"database" json:"database"`
	Table    string `yaml:"table" json:"table"`
}

// Registry holds the triggers of one table, keyed by event. It is built
// once per table handle and read-only afterwards, so concurrent builder
// chains can share it without locking.
type Registry struct {
	byEvent map[Event]Descriptor
}

// NewRegistry filters the database-wide descriptor list down to one table.
func NewRegistry(descs []Descriptor, database, table string) *Registry {
	byEvent := make(map[Event]Descriptor)
	for _, d := range descs {
		if d.Database == database && d.Table == table {
			byEvent[d.Type] = d
		}
	}
	return &Registry{byEvent: byEvent}
}

// Get returns the trigger registered for an exact event key, or nil.
func (r *Registry) Get(ev Event) *Descriptor {
	if r == nil {
		return nil
	}
	if d, ok := r.byEvent[ev]; ok {
		return &d
	}
	return nil
}

// Len returns the number of registered triggers.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byEvent)
}

// Collaborator is the execution handle a handler receives, letting it read
// related rows mid-hook. Declared here rather than reusing the engine's
// executor contract so the engine can depend on this package; the engine
// provides the adapter.
type Collaborator interface {
	Query(ctx context.Context, d dml.Descriptor) ([]dml.Row, error)
}

// Call is the argument bundle passed to a handler. Engine reaches back into
// the execution engine for reads; it is nil when the runner is driven without
// one. OldData and NewData both carry the row under mutation; handlers that
// distinguish them receive the pre-image once read-back support lands in the
// executor.
type Call struct {
	Engine  Collaborator
	Log     *slog.Logger
	OldData dml.Row
	NewData dml.Row
}

// HandlerFunc is an external trigger handler.
type HandlerFunc func(ctx context.Context, call Call) error

// Runner resolves named handlers and executes them with scoped log capture.
// Handlers are registered in-process; Go has no runtime module loading, so
// the handler table plays the role of the handler-module loader.
type Runner struct {
	logDir string

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRunner creates a runner writing committed handler logs under logDir,
// one file per (database, table, event).
func NewRunner(logDir string) *Runner {
	return &Runner{
		logDir:   logDir,
		handlers: make(map[string]HandlerFunc),
	}
}

func handlerKey(database, table string, ev Event) string {
	return database + "." + table + "." + string(ev)
}

// Register installs the handler for a (database, table, event) key.
func (r *Runner) Register(database, table string, ev Event, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[handlerKey(database, table, ev)] = fn
}

// Resolve returns the handler for a key, if one is registered.
func (r *Runner) Resolve(database, table string, ev Event) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[handlerKey(database, table, ev)]
	return fn, ok
}

// Execute resolves and runs the handler for an event, capturing everything
// it logs. engine is handed to the handler for mid-hook reads. Returns a nil
// Interceptor when no handler is registered. A handler error propagates
// unchanged and its captured output is dropped.
func (r *Runner) Execute(ctx context.Context, engine Collaborator, database, table string, ev Event, row dml.Row) (*Interceptor, error) {
	fn, ok := r.Resolve(database, table, ev)
	if !ok {
		return nil, nil
	}

	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))

	call := Call{
		Engine:  engine,
		Log:     logger,
		OldData: row.Clone(),
		NewData: row.Clone(),
	}
	if err := fn(ctx, call); err != nil {
		return nil, fmt.Errorf("trigger %s on %s.%s: %w", ev, database, table, err)
	}

	return &Interceptor{
		buf:  buf,
		path: filepath.Join(r.logDir, database, table, string(ev)+".log"),
	}, nil
}

// Interceptor is the commit/discard handle governing visibility of the log
// output one handler execution produced.
type Interceptor struct {
	buf  *bytes.Buffer
	path string
	done bool
}

// Commit flushes the captured output to the per-event log file.
// Idempotent: the second call is a no-op.
func (i *Interceptor) Commit() error {
	if i == nil || i.done {
		return nil
	}
	i.done = true

	if i.buf.Len() == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(i.path), 0o755); err != nil {
		return fmt.Errorf("create trigger log dir: %w", err)
	}
	f, err := os.OpenFile(i.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open trigger log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(i.buf.Bytes()); err != nil {
		return fmt.Errorf("write trigger log: %w", err)
	}
	return nil
}

// Discard drops the captured output without writing it.
func (i *Interceptor) Discard() {
	if i == nil || i.done {
		return
	}
	i.done = true
	i.buf.Reset()
}
