package solver

import (
	"errors"
	"fmt"
)

// SolveError annotates a stage solve failure with the stage that failed.
// The trajectory returned alongside it keeps every segment completed
// before the failure; nothing from the failing stage is appended.
type SolveError struct {
	StageID string
	Err     error
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("stage %q: %v", e.StageID, e.Err)
}

func (e *SolveError) Unwrap() error { return e.Err }

// IsSolveError reports whether err is (or wraps) a SolveError.
func IsSolveError(err error) bool {
	var se *SolveError
	return errors.As(err, &se)
}

// PluginMissingError is raised when an inter-stage connection needs a
// mechanism switch but no switcher was injected. A silent identity
// pass-through would misrepresent downstream composition, so this is a
// hard error raised the moment the switch is needed.
type PluginMissingError struct {
	ConnectionID    string
	SourceMechanism string
	TargetMechanism string
}

func (e *PluginMissingError) Error() string {
	return fmt.Sprintf(
		"connection %q requires a mechanism switch (%q -> %q) but no switcher is registered",
		e.ConnectionID, e.SourceMechanism, e.TargetMechanism,
	)
}

// IsPluginMissing reports whether err is (or wraps) a PluginMissingError.
func IsPluginMissing(err error) bool {
	var pe *PluginMissingError
	return errors.As(err, &pe)
}
