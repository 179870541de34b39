package rdbms

import (
	"fmt"

	"github.com/gridmix/gridmix/stream"
)

// LoadError describes a failed batch write. The window and batch index give
// enough detail to re-run the failed portion after an operator fixes the cause.
type LoadError struct {
	Window     stream.Window
	BatchIndex int
	Err        error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("error writing batch %v of window %v: %v", e.BatchIndex, e.Window, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
