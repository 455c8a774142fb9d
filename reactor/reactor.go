// Package reactor 实现就绪注册表：把 fd 映射到就绪时应调用的 Waker，
// 将一次阻塞等待转换为多次 Waker 调用。
//
// 底层 poller 为水平触发：只读取部分数据的任务会在下一轮等待中再次被唤醒，
// 无需每次重新注册。
package reactor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/legamerdc/aio/poller"

	"go.uber.org/zap"
)

// Interest 为注册关注的事件。
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable

	ReadWrite = Readable | Writable
)

func (i Interest) String() string {
	switch i {
	case Readable:
		return "readable"
	case Writable:
		return "writable"
	case ReadWrite:
		return "readable|writable"
	default:
		return fmt.Sprintf("interest(%d)", uint8(i))
	}
}

// Waker 在 fd 就绪时被调用，调用时不持有注册表锁。
// 实现必须可在任意 goroutine 调用，不得调用 Register/Deregister/Poll；
// 可以调用 Notify（只修改原子标志，分发期间不会触发系统调用）。
type Waker interface {
	Wake()
}

type registration struct {
	interest Interest
	waker    Waker
}

// Reactor 拥有 poller 以及 fd -> Waker 的注册表。
type Reactor struct {
	p   poller.Poller
	log *zap.Logger

	mu   sync.Mutex
	regs map[int]registration

	// waitMu 保证同一时刻只有一个 goroutine 阻塞在 poller 中
	waitMu  sync.Mutex
	ready   []int
	wakers  []Waker
	collect poller.Handler

	waiting  atomic.Bool
	notified atomic.Bool
}

// Option 配置 Reactor。
type Option func(*Reactor)

// WithLogger 设置日志，默认不输出。
func WithLogger(log *zap.Logger) Option {
	return func(r *Reactor) {
		if log != nil {
			r.log = log
		}
	}
}

// New 基于 p 构造 Reactor，Reactor 接管 p 的生命周期。
func New(p poller.Poller, opts ...Option) *Reactor {
	r := &Reactor{
		p:    p,
		log:  zap.NewNop(),
		regs: make(map[int]registration),
	}
	r.collect = poller.HandlerFunc(func(fd poller.FD, _ poller.Event) {
		r.ready = append(r.ready, fd)
	})
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register 以 interest 关注 fd，并在就绪时调用 w。
// 对已注册的 fd 再次注册会替换 Waker，interest 变化时修改内核注册。
// 返回的 *RegistrationError 应视为进程级致命错误。
func (r *Reactor) Register(fd int, interest Interest, w Waker) error {
	if fd < 0 || interest&ReadWrite == 0 || w == nil {
		return &RegistrationError{FD: fd, Interest: interest, Cause: ErrInvalidRegistration}
	}
	rd, wr := interest&Readable != 0, interest&Writable != 0

	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[fd]
	var err error
	switch {
	case !ok:
		err = r.p.Register(fd, rd, wr)
		if errors.Is(err, syscall.EEXIST) {
			err = r.p.Mod(fd, rd, wr)
		}
	case reg.interest != interest:
		err = r.p.Mod(fd, rd, wr)
	}
	if err != nil {
		return &RegistrationError{FD: fd, Interest: interest, Cause: err}
	}
	r.regs[fd] = registration{interest: interest, waker: w}
	return nil
}

// Deregister 删除 fd 的注册，必须在 fd 关闭之前调用。
// 未注册的 fd 视为成功。
func (r *Reactor) Deregister(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.regs[fd]; !ok {
		return nil
	}
	delete(r.regs, fd)
	err := r.p.Unregister(fd)
	if err == nil || errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.EBADF) {
		return nil
	}
	return fmt.Errorf("reactor: deregister fd %d: %w", fd, err)
}

// Len 返回当前注册的 fd 数量。
func (r *Reactor) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.regs)
}

// WaitAndDispatch 无限期阻塞直到至少一个 fd 就绪（或被 Notify 打断），
// 然后调用每个就绪 fd 的 Waker。
func (r *Reactor) WaitAndDispatch() error {
	_, err := r.Poll(-1)
	return err
}

// Poll 与 WaitAndDispatch 相同，但最多等待 timeout（负数表示无限）。
// 返回被调用的 Waker 数量。
func (r *Reactor) Poll(timeout time.Duration) (int, error) {
	r.waitMu.Lock()
	defer r.waitMu.Unlock()

	r.waiting.Store(true)
	if r.notified.Swap(false) {
		r.waiting.Store(false)
		return 0, nil
	}
	r.ready = r.ready[:0]
	_, err := r.p.Wait(timeoutMillis(timeout), r.collect)
	r.waiting.Store(false)
	if err != nil {
		return 0, fmt.Errorf("reactor: wait: %w", err)
	}

	r.mu.Lock()
	for _, fd := range r.ready {
		reg, ok := r.regs[fd]
		if !ok {
			// 注销与事件投递竞争，丢弃
			r.log.Debug("reactor: drop event for unregistered fd", zap.Int("fd", fd))
			continue
		}
		r.wakers = append(r.wakers, reg.waker)
	}
	r.mu.Unlock()

	n := len(r.wakers)
	for i, w := range r.wakers {
		w.Wake()
		r.wakers[i] = nil
	}
	r.wakers = r.wakers[:0]
	// 此前的 Notify 对应的入队在本次返回后一定可见，清除以免下一轮空转
	r.notified.Store(false)
	return n, nil
}

// Notify 打断正在进行（或下一次）的等待。可在任意 goroutine 调用。
func (r *Reactor) Notify() error {
	r.notified.Store(true)
	if r.waiting.Load() {
		return r.p.Wake()
	}
	return nil
}

// Close 关闭底层 poller。
func (r *Reactor) Close() error {
	return r.p.Close()
}

func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	return int(ms)
}
