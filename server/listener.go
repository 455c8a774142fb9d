package server

import (
	"fmt"
	"sync/atomic"

	"github.com/legamerdc/aio/internal/netutil"
	"github.com/legamerdc/aio/reactor"
	"github.com/legamerdc/aio/sched"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// 单次 poll 最多 accept 的连接数，超过后让出给其他任务
const acceptBatch = 64

// Listener 接受连接并为每个连接派生一个 Connection 任务。
type Listener struct {
	env        *Env
	fd         int
	registered bool
	closed     bool
	accepted   atomic.Uint64
}

// NewListener 为已处于监听状态的非阻塞 fd 创建任务，任务接管 fd 的所有权。
func NewListener(env *Env, fd int) *Listener {
	return &Listener{env: env, fd: fd}
}

// Accepted 返回已接受的连接数。
func (l *Listener) Accepted() uint64 { return l.accepted.Load() }

// Poll 接受所有已排队的连接。除 accept 可重试错误外，其余错误都是致命的。
func (l *Listener) Poll(w *sched.Waker) (sched.Status, error) {
	if !l.registered {
		if err := l.env.Reactor.Register(l.fd, reactor.Readable, w); err != nil {
			return sched.Ready, fmt.Errorf("server: register listener: %w", err)
		}
		l.registered = true
	}
	for i := 0; i < acceptBatch; i++ {
		fd, err := netutil.Accept(l.fd)
		if err != nil {
			if netutil.IsWouldBlock(err) {
				return sched.Pending, nil
			}
			if netutil.IsRetryableAccept(err) {
				continue
			}
			return sched.Ready, fmt.Errorf("server: accept: %w", err)
		}
		if err := netutil.SetNoDelay(fd, true); err != nil {
			l.env.log().Debug("server: set nodelay", zap.Int("fd", fd), zap.Error(err))
		}
		l.accepted.Add(1)
		l.env.log().Debug("server: accepted", zap.Int("fd", fd))
		l.env.Spawner.Spawn(NewConnection(l.env, l.env.newSocket(fd)))
	}
	// 仍可能有排队的连接，重新排到队尾
	w.Wake()
	return sched.Pending, nil
}

// Close 注销并关闭监听 fd，可重复调用。
func (l *Listener) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	var err error
	if l.registered {
		err = multierr.Append(err, l.env.Reactor.Deregister(l.fd))
		l.registered = false
	}
	return multierr.Append(err, netutil.Close(l.fd))
}
