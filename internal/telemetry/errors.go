package telemetry

import "fmt"

// ContractViolationError is returned when a caller omits a mandatory
// details key for a prompt-driven action. It is never caught internally:
// malformed telemetry must fail the offending call, not enter the dataset.
type ContractViolationError struct {
	AgentName  string
	Action     Action
	MissingKey string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("telemetry: contract violation (agent %q, action %q): details missing mandatory key %q",
		e.AgentName, e.Action, e.MissingKey)
}

// PersistenceError wraps a directory-creation or file-write failure.
// Fatal to the call that triggered it; losing telemetry silently would
// defeat the logger's purpose.
type PersistenceError struct {
	Path string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("telemetry: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
