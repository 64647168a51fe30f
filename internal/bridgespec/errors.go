package bridgespec

import (
	"errors"
	"fmt"
)

// ErrConfig is the sentinel all declaration errors wrap.
// Use errors.Is(err, bridgespec.ErrConfig) to distinguish a bad
// declaration from an I/O failure.
var ErrConfig = errors.New("bridgespec: invalid declaration")

// ConfigError describes a problem in the declaration file.
type ConfigError struct {
	// Line is the 1-based line number of the offending directive,
	// or 0 for file-level problems (e.g. no connection declared).
	Line int

	// Msg describes what is wrong.
	Msg string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

// Unwrap lets errors.Is match ErrConfig.
func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// configErrorf builds a ConfigError for a line.
func configErrorf(line int, format string, args ...any) *ConfigError {
	return &ConfigError{Line: line, Msg: fmt.Sprintf(format, args...)}
}
