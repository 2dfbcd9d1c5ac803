package inventory

import "fmt"

// AttemptError records one failed attempt of a retried operation: the type
// name of the underlying error and its message.
type AttemptError struct {
	Type    string
	Message string
}

// TransientNetworkError is raised when a REST call exhausts its retry
// budget. It carries the full sequence of attempt failures so callers can
// log the complete retry history.
type TransientNetworkError struct {
	Resource string
	Attempts []AttemptError
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("transient network error fetching %s after %d attempts: %s",
		e.Resource, len(e.Attempts), e.lastMessage())
}

func (e *TransientNetworkError) lastMessage() string {
	if len(e.Attempts) == 0 {
		return "no attempts recorded"
	}
	return e.Attempts[len(e.Attempts)-1].Message
}

// ParseError means a remote payload had an unexpected shape. Adapters catch
// it at their boundary, log it, and return an empty delta without mutating
// the inventory.
type ParseError struct {
	Resource string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s response: %v", e.Resource, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MissingReferent means a remote payload named a site or group that does
// not exist locally. The affected replica keeps group = nil (site-less rows
// are skipped outright); this is a warning condition, never fatal.
type MissingReferent struct {
	Kind string // "site" or "group"
	Name string
}

func (e *MissingReferent) Error() string {
	return fmt.Sprintf("missing referent: %s %q not found locally", e.Kind, e.Name)
}

// InvariantViolation means an internal consistency check failed (e.g. a
// BlockReplica without a matching DatasetReplica). It is always fatal to
// the operation in progress: a synchronization cycle aborts and does not
// commit a save.
type InvariantViolation struct {
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Detail)
}

// StoreError wraps a SQL failure. It aborts the current save swap; temp
// tables are dropped and the live tables are left untouched.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ConfigError means a policy variable or condition was unknown or
// malformed. It is fatal at startup.
type ConfigError struct {
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Detail)
}
