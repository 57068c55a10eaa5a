package engine

import (
	"errors"
	"fmt"
)

// EngineError surfaces a non-success status from the executor collaborator.
// The thrown error is the authoritative failure signal; the formatted
// diagnostic log line emitted alongside it is a side effect only.
type EngineError struct {
	// Status is the executor's status code (anything but 200).
	Status int

	// Message is the executor's failure message.
	Message string

	// Fingerprint identifies the descriptor that failed, when computable.
	Fingerprint string
}

func (e *EngineError) Error() string {
	if e.Fingerprint != "" {
		return fmt.Sprintf("engine: status %d: %s (request=%s)", e.Status, e.Message, shortFingerprint(e.Fingerprint))
	}
	return fmt.Sprintf("engine: status %d: %s", e.Status, e.Message)
}

// Warning reports whether this is the warning-tier failure status.
// Warning-tier only changes diagnostic presentation, never control flow.
func (e *EngineError) Warning() bool { return e.Status == StatusWarning }

// IsEngineError reports whether err is (or wraps) an EngineError.
func IsEngineError(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee)
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
