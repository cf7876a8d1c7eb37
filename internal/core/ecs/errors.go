package ecs

import (
	"errors"
	"fmt"
)

// ErrProgrammer marks failures caused by misuse of the API. They are not
// retried and the App treats them as fatal.
var ErrProgrammer = errors.New("programmer error")

var (
	ErrComponentNotFound = fmt.Errorf("%w: component not found", ErrProgrammer)
	ErrResourceNotFound  = fmt.Errorf("%w: resource not found", ErrProgrammer)
	ErrEntityNotFound    = errors.New("entity not found")
	ErrNotConnected      = errors.New("native registry not connected")
	ErrWorldNotEmpty     = errors.New("world already has entities")
	ErrNativeUnbound     = errors.New("native component kind not bound")
)

func componentNotFound(e Entity, c ComponentType) error {
	return fmt.Errorf("get %s on entity %d: %w", c.Name(), e, ErrComponentNotFound)
}
