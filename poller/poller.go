// Package poller 封装操作系统的就绪通知机制（linux: epoll，darwin: kqueue）。
//
// 所有后端均为水平触发：只要 fd 仍然可读/可写，每次 Wait 都会再次报告，
// 因此只读取了部分数据的任务无需重新注册即可再次被唤醒。
package poller

import "errors"

// FD 表示文件描述符。
type FD = int

// Event 为一次就绪通知的事件位。
type Event uint8

const (
	EventReadable Event = 1 << iota
	EventWritable
	EventHangup
	EventError
)

// Has 判断是否包含给定事件位。
func (e Event) Has(x Event) bool { return e&x != 0 }

// Handler 是 poller 的事件回调接口。
// 在调用 Wait 的 goroutine 中同步调用，要求无阻塞返回。
type Handler interface {
	OnReady(fd FD, ev Event)
}

// HandlerFunc 为函数形式的 Handler。
type HandlerFunc func(fd FD, ev Event)

func (f HandlerFunc) OnReady(fd FD, ev Event) { f(fd, ev) }

// Poller 提供注册与单轮等待。
type Poller interface {
	Register(fd FD, readable, writable bool) error
	Mod(fd FD, readable, writable bool) error
	Unregister(fd FD) error
	// Wait 阻塞至少一个 fd 就绪或被 Wake 打断，timeoutMs < 0 表示无限等待。
	// 返回分发给 h 的事件数；唤醒 fd 自身的事件不计入。
	Wait(timeoutMs int, h Handler) (int, error)
	Wake() error
	Close() error
}

var (
	// ErrPlatformNotSupported 当前平台没有可用的就绪通知机制
	ErrPlatformNotSupported = errors.New("poller: platform not supported (requires epoll or kqueue)")

	// ErrClosed poller 已关闭
	ErrClosed = errors.New("poller: closed")
)
