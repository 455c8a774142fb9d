package server

import (
	"github.com/legamerdc/aio/internal/netutil"
	"github.com/legamerdc/aio/internal/ring"
)

// Socket 为非阻塞流 socket。暂时无法完成的操作返回 netutil.ErrWouldBlock。
type Socket interface {
	Fd() int
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	// Flush 把用户态缓冲的数据交给内核；无缓冲的实现直接返回 nil。
	Flush() error
	Close() error
}

type fdSocket struct {
	fd     int
	closed bool
}

// NewSocket 包装一个已设置为非阻塞的 fd，Close 时关闭该 fd。
func NewSocket(fd int) Socket {
	return &fdSocket{fd: fd}
}

func (s *fdSocket) Fd() int { return s.fd }

func (s *fdSocket) Read(p []byte) (int, error) { return netutil.Read(s.fd, p) }

func (s *fdSocket) Write(p []byte) (int, error) { return netutil.Write(s.fd, p) }

// 直接写 fd，没有用户态缓冲
func (s *fdSocket) Flush() error { return nil }

func (s *fdSocket) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return netutil.Close(s.fd)
}

type bufferedSocket struct {
	fdSocket
	wb *ring.Buffer
}

// NewBufferedSocket 包装 fd 并带一个 size 字节的用户态写缓冲：
// Write 只写入缓冲（缓冲满时先尝试 Flush），Flush 把缓冲写入 fd。
func NewBufferedSocket(fd, size int) Socket {
	return &bufferedSocket{fdSocket: fdSocket{fd: fd}, wb: ring.New(size)}
}

func (s *bufferedSocket) Write(p []byte) (int, error) {
	if s.wb.Free() == 0 {
		if err := s.Flush(); err != nil {
			return 0, err
		}
	}
	return s.wb.Write(p), nil
}

func (s *bufferedSocket) Flush() error {
	for s.wb.Len() > 0 {
		n, err := netutil.Write(s.fd, s.wb.Peek())
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrShortWrite
		}
		s.wb.Discard(n)
	}
	return nil
}
