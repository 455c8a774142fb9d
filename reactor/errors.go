package reactor

import (
	"errors"
	"fmt"
)

// ErrInvalidRegistration 注册参数非法
var ErrInvalidRegistration = errors.New("reactor: invalid registration")

// RegistrationError 表示内核注册失败，没有可降级的模式。
type RegistrationError struct {
	FD       int
	Interest Interest
	Cause    error
}

// Error implements the [builtin.error] interface.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("reactor: register fd %d (%s): %s", e.FD, e.Interest, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e *RegistrationError) Unwrap() error {
	return e.Cause
}
