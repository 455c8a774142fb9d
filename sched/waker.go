package sched

import "sync/atomic"

// cell 生命周期状态
const (
	stateIdle     int32 = iota // 挂起，等待唤醒
	stateQueued                // 位于运行队列
	stateRunning               // 正在被某个 worker poll
	stateNotified              // poll 期间被唤醒，返回 Pending 后需要重新入队
	stateDone                  // 已完成，唤醒无效
)

// cell 持有任务及其调度状态；运行队列与 Waker 共享同一个 cell。
type cell struct {
	id    uint64
	task  Task
	state atomic.Int32
	waker Waker
}

// Waker 绑定到唯一一个任务，调用 Wake 将该任务重新放回运行队列。
//
// Wake 可在任意 goroutine 调用，多次调用在任务下一次被 poll 之前只生效一次；
// 任务完成后的调用为空操作。
type Waker struct {
	c *cell
	s *Scheduler
}

// Wake 将绑定的任务重新放回运行队列。
func (w *Waker) Wake() {
	if w == nil || w.c == nil {
		return
	}
	w.s.wakes.Add(1)
	c := w.c
	for {
		switch c.state.Load() {
		case stateIdle:
			if c.state.CompareAndSwap(stateIdle, stateQueued) {
				w.s.push(c)
				return
			}
		case stateRunning:
			if c.state.CompareAndSwap(stateRunning, stateNotified) {
				return
			}
		default:
			// 已在队列中、已标记或已完成
			return
		}
	}
}

// ID 返回绑定任务的编号，用于日志。
func (w *Waker) ID() uint64 {
	if w == nil || w.c == nil {
		return 0
	}
	return w.c.id
}
