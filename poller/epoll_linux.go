//go:build linux

package poller

import (
	"sync/atomic"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

const defaultMaxEvents = 1024

type epollPoller struct {
	efd    int
	wfd    int // eventfd for wakeup
	events []unix.EpollEvent
	closed atomic.Bool
}

// New 创建 epoll poller，maxEvents 为单次 Wait 的事件批大小（<=0 取 1024）。
func New(maxEvents int) (Poller, error) {
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	efd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wfd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(efd)
		return nil, err
	}
	p := &epollPoller{efd: efd, wfd: wfd, events: make([]unix.EpollEvent, maxEvents)}
	// 注册 wakeup fd（唯一使用边缘触发的 fd，读到后整体清空）
	ev := &unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(wfd)}
	if err := unix.EpollCtl(efd, unix.EPOLL_CTL_ADD, wfd, ev); err != nil {
		unix.Close(wfd)
		unix.Close(efd)
		return nil, err
	}
	return p, nil
}

func interestFlags(readable, writable bool) uint32 {
	var flag uint32
	if readable {
		flag |= unix.EPOLLIN
	}
	if writable {
		flag |= unix.EPOLLOUT
	}
	return flag
}

func (p *epollPoller) Register(fd FD, readable, writable bool) error {
	ev := &unix.EpollEvent{Events: interestFlags(readable, writable), Fd: int32(fd)}
	return unix.EpollCtl(p.efd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (p *epollPoller) Mod(fd FD, readable, writable bool) error {
	ev := &unix.EpollEvent{Events: interestFlags(readable, writable), Fd: int32(fd)}
	return unix.EpollCtl(p.efd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (p *epollPoller) Unregister(fd FD) error {
	return unix.EpollCtl(p.efd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Wake() error {
	var buf [8]byte
	buf[0] = 1
	_, err := unix.Write(p.wfd, buf[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func (p *epollPoller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return multierr.Combine(unix.Close(p.wfd), unix.Close(p.efd))
}

func (p *epollPoller) Wait(timeoutMs int, h Handler) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	if timeoutMs < 0 {
		timeoutMs = -1
	}
	n, err := unix.EpollWait(p.efd, p.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	dispatched := 0
	var efdBuf [8]byte
	for i := 0; i < n; i++ {
		ev := p.events[i]
		fd := int(ev.Fd)
		if fd == p.wfd {
			// 清空 eventfd
			for {
				_, rerr := unix.Read(p.wfd, efdBuf[:])
				if rerr == unix.EAGAIN {
					break
				}
				if rerr != nil {
					return dispatched, rerr
				}
			}
			continue
		}
		var e Event
		if ev.Events&unix.EPOLLIN != 0 {
			e |= EventReadable
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			e |= EventWritable
		}
		if ev.Events&unix.EPOLLHUP != 0 {
			e |= EventHangup
		}
		if ev.Events&unix.EPOLLERR != 0 {
			e |= EventError
		}
		h.OnReady(fd, e)
		dispatched++
	}
	return dispatched, nil
}
