// Package errs defines the typed error kinds raised by the pipeline stages.
// Every error names the stage that failed so callers never have to guess
// which component of the pipeline aborted.
package errs

import "fmt"

// ConfigError reports an unknown key, an unparseable value, or an
// incompatible combination of options in the text configuration.
type ConfigError struct {
	Stage string
	Key   string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: config error: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: config error (key=%q): %v", e.Stage, e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IoError reports an unreadable training file or a file with the wrong
// shape.
type IoError struct {
	Stage string
	Path  string
	Err   error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("%s: io error (path=%q): %v", e.Stage, e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// NumericalError reports non-finite values, eigenvalues below the negative
// tolerance, or a singular matrix that made a stage impossible to complete.
type NumericalError struct {
	Stage string
	Err   error
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("%s: numerical error: %v", e.Stage, e.Err)
}

func (e *NumericalError) Unwrap() error { return e.Err }

// ShapeError reports a sample-count request that exceeds the generated
// pool, or any other dimension mismatch between two matrices that must
// agree.
type ShapeError struct {
	Stage string
	Want  [2]int
	Got   [2]int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: shape error: want %dx%d, got %dx%d",
		e.Stage, e.Want[0], e.Want[1], e.Got[0], e.Got[1])
}

// StateError reports a pipeline invoked without the prerequisite state it
// depends on, e.g. sampling-only without a prior projection.
type StateError struct {
	Stage   string
	Missing string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: missing required state: %s", e.Stage, e.Missing)
}
