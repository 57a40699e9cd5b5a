package model

import "fmt"

// CalendarError tags a failure with the operation that produced it. The
// conflict detector and calendar context surface these loudly: they operate
// on data the system itself validated, so an error here is a logic defect,
// not bad user input.
type CalendarError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *CalendarError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("calendar error in %s", e.Op)
	}
	return fmt.Sprintf("calendar error in %s: %v", e.Op, e.Err)
}

func (e *CalendarError) Unwrap() error { return e.Err }

// NewCalendarError wraps err with the given operation name.
func NewCalendarError(op string, err error, retryable bool) *CalendarError {
	return &CalendarError{Op: op, Err: err, Retryable: retryable}
}
