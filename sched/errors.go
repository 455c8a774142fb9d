package sched

import (
	"errors"
	"fmt"
)

var (
	// ErrRunning Run 已在运行
	ErrRunning = errors.New("sched: scheduler already running")
	// ErrClosed 调度器已关闭
	ErrClosed = errors.New("sched: scheduler closed")

	errStopped = errors.New("sched: stopped")
)

// PanicError 表示任务在 Poll 中 panic。
type PanicError struct {
	TaskID uint64
	Value  any
	Stack  []byte
}

// Error implements the [builtin.error] interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("sched: task %d panicked: %v", e.TaskID, e.Value)
}

// TaskError 包装任务 Poll 返回的致命错误。
type TaskError struct {
	TaskID uint64
	Cause  error
}

// Error implements the [builtin.error] interface.
func (e *TaskError) Error() string {
	return fmt.Sprintf("sched: task %d failed: %s", e.TaskID, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e *TaskError) Unwrap() error {
	return e.Cause
}
