package appointment

import "fmt"

// allowedTransitions lists the statuses each status may move to. Completed
// and refunded appear as keys with no targets: they are terminal.
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusScheduled, StatusReschedule, StatusCancelled},
	StatusScheduled:  {StatusReschedule, StatusCompleted, StatusCancelled},
	StatusReschedule: {StatusScheduled, StatusCancelled},
	StatusCancelled:  {StatusRefunded},
	StatusCompleted:  {},
	StatusRefunded:   {},
}

func CanTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// InvalidStateTransitionError names both the current and the attempted
// status so the caller can refresh state before retrying.
type InvalidStateTransitionError struct {
	From      Status
	Attempted Status
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.Attempted)
}

// ValidationError reports malformed or logically inconsistent input. It is
// never retryable as-is.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
