package mutate

import (
	"errors"
	"fmt"
)

var (
	ErrWorkOrderClosed  = errors.New("work order is completed")
	ErrWorkOrderStarted = errors.New("work order is in progress")
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// InvalidError is a request the backend refuses to apply as given.
type InvalidError struct {
	Field  string
	Reason string
}

func (e InvalidError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
