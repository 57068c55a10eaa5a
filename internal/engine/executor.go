package engine

import (
	"context"

	"github.com/davrell/fluentdml/internal/dml"
)

// Response statuses returned by an Executor. Anything other than StatusOK
// is a failure; StatusWarning is a warning-tier failure distinguished only
// for diagnostic coloring, with no other semantic difference.
const (
	StatusOK      = 200
	StatusError   = 500
	StatusWarning = 600
)

// Response is the structured result of one executor call.
type Response struct {
	Status  int       `json:"status"`
	Data    []dml.Row `json:"data,omitempty"`
	Message string    `json:"message,omitempty"`
}

// OK reports whether the call succeeded.
func (r Response) OK() bool { return r.Status == StatusOK }

// Executor is the execution-engine collaborator: it compiles a finalized
// descriptor into a target-store query and runs it. The orchestrator never
// performs store I/O itself; it only produces descriptors and forwards them
// here. See the store package for the SQLite implementation.
type Executor interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Execute(ctx context.Context, d dml.Descriptor) Response
}
