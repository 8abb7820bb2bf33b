package stage

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigErrorCode categorizes stage-graph construction errors.
type ConfigErrorCode string

const (
	// ErrCodeUnknownGroup indicates a node referencing a group that is not
	// declared in the groups table.
	ErrCodeUnknownGroup ConfigErrorCode = "UNKNOWN_GROUP"

	// ErrCodeStageCycle indicates a cycle among inter-stage connections.
	ErrCodeStageCycle ConfigErrorCode = "STAGE_CYCLE"
)

// ConfigError is raised during stage-graph construction, before any
// solving happens.
type ConfigError struct {
	Code    ConfigErrorCode
	Message string

	// Stages lists the stage ids left unplaced by the topological sort
	// (cycle errors only).
	Stages []string
}

func (e *ConfigError) Error() string {
	if len(e.Stages) > 0 {
		return fmt.Sprintf("%s: %s (stages: %s)", e.Code, e.Message, strings.Join(e.Stages, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCycleError reports whether err is a stage-cycle ConfigError.
func IsCycleError(err error) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeStageCycle
	}
	return false
}
