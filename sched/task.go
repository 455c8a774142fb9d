// Package sched 实现协作式调度器与 poll/wake 挂起恢复约定。
//
// Task 通过 Poll 尝试推进：返回 Ready 表示完成；返回 Pending 前，
// Task 必须已安排好未来某个事件会调用传入的 Waker（通常是向 reactor 注册），
// 否则该 Task 将永远不会再被调度。
package sched

import "fmt"

// Status 为一次 Poll 的结果。
type Status uint8

const (
	// Pending 当前无法继续推进，等待 Waker 被调用
	Pending Status = iota
	// Ready 任务完成，调度器将其丢弃
	Ready
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Task 是所有协作式任务的统一形状。
//
// Poll 永远不会被并发调用。返回非 nil 错误表示进程级致命错误，
// 调度器会停止并把错误返回给 Run 的调用者；连接级错误应在任务内部消化。
type Task interface {
	Poll(w *Waker) (Status, error)
}

// TaskFunc 为函数形式的 Task。
type TaskFunc func(w *Waker) (Status, error)

func (f TaskFunc) Poll(w *Waker) (Status, error) { return f(w) }
