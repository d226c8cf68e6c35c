package types

import "fmt"

// ValidationError indicates a record or request was rejected before any state
// mutation took place.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}
