package stone

import (
	"errors"
	"fmt"
)

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeUnsupportedFormat indicates a non-YAML config file.
	ErrCodeUnsupportedFormat ConfigErrorCode = "UNSUPPORTED_FORMAT"

	// ErrCodeParse indicates the YAML document could not be decoded.
	ErrCodeParse ConfigErrorCode = "PARSE_ERROR"

	// ErrCodeSchema indicates the document failed CUE schema validation.
	ErrCodeSchema ConfigErrorCode = "SCHEMA_VIOLATION"

	// ErrCodeDuplicateID indicates a repeated node or connection id.
	ErrCodeDuplicateID ConfigErrorCode = "DUPLICATE_ID"

	// ErrCodeDanglingReference indicates a connection endpoint that names
	// no existing node.
	ErrCodeDanglingReference ConfigErrorCode = "DANGLING_REFERENCE"
)

// ConfigError is a structured configuration error.
type ConfigError struct {
	Code    ConfigErrorCode
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
