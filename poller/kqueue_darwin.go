//go:build darwin

package poller

import (
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

const defaultMaxEvents = 1024

type kqueuePoller struct {
	kq     int
	wfd    int // 写端，用于唤醒
	rfd    int // 读端，注册到 kqueue
	events []unix.Kevent_t
	closed atomic.Bool

	// kqueue 没有 MOD，需要记住每个 fd 当前的过滤器
	mu       sync.Mutex
	interest map[FD][2]bool
}

// New 创建 kqueue poller，maxEvents 为单次 Wait 的事件批大小（<=0 取 1024）。
func New(maxEvents int) (Poller, error) {
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	// 使用管道作为唤醒
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		unix.Close(kq)
		return nil, err
	}
	rfd, wfd := p[0], p[1]
	_ = unix.SetNonblock(rfd, true)
	_ = unix.SetNonblock(wfd, true)
	unix.CloseOnExec(rfd)
	unix.CloseOnExec(wfd)
	kev := unix.Kevent_t{
		Ident:  uint64(rfd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	if _, err := unix.Kevent(kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		unix.Close(rfd)
		unix.Close(wfd)
		unix.Close(kq)
		return nil, err
	}
	return &kqueuePoller{
		kq:       kq,
		wfd:      wfd,
		rfd:      rfd,
		events:   make([]unix.Kevent_t, maxEvents),
		interest: make(map[FD][2]bool),
	}, nil
}

// 不带 EV_CLEAR：水平触发
func filterChange(fd FD, filter int16, add bool) unix.Kevent_t {
	flags := uint16(unix.EV_DELETE)
	if add {
		flags = unix.EV_ADD
	}
	return unix.Kevent_t{Ident: uint64(fd), Filter: filter, Flags: flags}
}

func (p *kqueuePoller) Register(fd FD, readable, writable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.interest[fd]; ok {
		return unix.EEXIST
	}
	var changes []unix.Kevent_t
	if readable {
		changes = append(changes, filterChange(fd, unix.EVFILT_READ, true))
	}
	if writable {
		changes = append(changes, filterChange(fd, unix.EVFILT_WRITE, true))
	}
	if len(changes) > 0 {
		if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
			return err
		}
	}
	p.interest[fd] = [2]bool{readable, writable}
	return nil
}

func (p *kqueuePoller) Mod(fd FD, readable, writable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.interest[fd]
	if !ok {
		return unix.ENOENT
	}
	// 只提交变化的过滤器，避免删除不存在的过滤器返回 ENOENT
	var changes []unix.Kevent_t
	if cur[0] != readable {
		changes = append(changes, filterChange(fd, unix.EVFILT_READ, readable))
	}
	if cur[1] != writable {
		changes = append(changes, filterChange(fd, unix.EVFILT_WRITE, writable))
	}
	if len(changes) > 0 {
		if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
			return err
		}
	}
	p.interest[fd] = [2]bool{readable, writable}
	return nil
}

func (p *kqueuePoller) Unregister(fd FD) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.interest[fd]
	if !ok {
		return unix.ENOENT
	}
	delete(p.interest, fd)
	var changes []unix.Kevent_t
	if cur[0] {
		changes = append(changes, filterChange(fd, unix.EVFILT_READ, false))
	}
	if cur[1] {
		changes = append(changes, filterChange(fd, unix.EVFILT_WRITE, false))
	}
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) Wake() error {
	var b [1]byte
	b[0] = 1
	_, err := unix.Write(p.wfd, b[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func (p *kqueuePoller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return multierr.Combine(unix.Close(p.rfd), unix.Close(p.wfd), unix.Close(p.kq))
}

func (p *kqueuePoller) Wait(timeoutMs int, h Handler) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		ts = &t
	}
	n, err := unix.Kevent(p.kq, nil, p.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	dispatched := 0
	var buf [16]byte
	for i := 0; i < n; i++ {
		ev := p.events[i]
		fd := int(ev.Ident)
		if fd == p.rfd {
			for {
				_, rerr := unix.Read(p.rfd, buf[:])
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
		switch ev.Filter {
		case unix.EVFILT_READ:
			e |= EventReadable
		case unix.EVFILT_WRITE:
			e |= EventWritable
		}
		if ev.Flags&unix.EV_EOF != 0 {
			e |= EventHangup
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			e |= EventError
		}
		h.OnReady(fd, e)
		dispatched++
	}
	return dispatched, nil
}
