package stats

import (
	"errors"
	"fmt"
)

// ErrDataProcessing is matched by every DataProcessingError via errors.Is
var ErrDataProcessing = errors.New("data processing error")

// ErrInvalidParameter is matched by every ParameterError via errors.Is
var ErrInvalidParameter = errors.New("invalid parameter")

// DataProcessingError reports a record that cannot be turned into an Activity.
// The whole batch is rejected when one is returned.
type DataProcessingError struct {
	Index int    // position of the offending record in the input
	Field string // key that failed, empty for structural problems
	Err   error
}

func (e *DataProcessingError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("record %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("record %d: field %q: %v", e.Index, e.Field, e.Err)
}

func (e *DataProcessingError) Unwrap() error {
	return e.Err
}

// Is lets callers test with errors.Is(err, ErrDataProcessing)
func (e *DataProcessingError) Is(target error) bool {
	return target == ErrDataProcessing
}

// ParameterError reports an out-of-range filter or pagination parameter
type ParameterError struct {
	Param  string
	Value  any
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Param, e.Value, e.Reason)
}

// Is lets callers test with errors.Is(err, ErrInvalidParameter)
func (e *ParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}
