// Package server 实现运行在调度器上的具体任务：每个连接一个 Connection 状态机，
// 以及一个负责 accept 并为新连接派生任务的 Listener。
package server

import (
	"errors"

	"github.com/legamerdc/aio/protocol"
	"github.com/legamerdc/aio/reactor"
	"github.com/legamerdc/aio/sched"

	"go.uber.org/zap"
)

var (
	// ErrRequestTooLarge 读缓冲区已满仍未收到结束标记
	ErrRequestTooLarge = errors.New("server: request too large")
	// ErrPeerClosed 对端在请求完成前关闭连接
	ErrPeerClosed = errors.New("server: peer closed connection")
	// ErrShortWrite 写入返回 0 字节
	ErrShortWrite = errors.New("server: write returned zero bytes")
)

// Registrar 为任务可见的 reactor 子集。
type Registrar interface {
	Register(fd int, interest reactor.Interest, w reactor.Waker) error
	Deregister(fd int) error
}

// Spawner 提交新任务。
type Spawner interface {
	Spawn(t sched.Task)
}

// Env 为所有任务共享的运行环境。
type Env struct {
	Reactor        Registrar
	Spawner        Spawner
	Logger         *zap.Logger
	MaxRequestSize int // 单个请求最大字节数（含结束标记），<=0 取 protocol.DefaultMaxRequest
	WriteBuffer    int // 每连接用户态写缓冲字节数，<=0 直接写 fd
}

func (e *Env) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Env) maxRequest() int {
	if e.MaxRequestSize <= 0 {
		return protocol.DefaultMaxRequest
	}
	return e.MaxRequestSize
}

func (e *Env) newSocket(fd int) Socket {
	if e.WriteBuffer > 0 {
		return NewBufferedSocket(fd, e.WriteBuffer)
	}
	return NewSocket(fd)
}
