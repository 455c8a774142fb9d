package server

import (
	"fmt"

	"github.com/legamerdc/aio/internal/netutil"
	"github.com/legamerdc/aio/protocol"
	"github.com/legamerdc/aio/reactor"
	"github.com/legamerdc/aio/sched"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ConnState 为连接状态机的状态。
type ConnState uint8

const (
	StateStart ConnState = iota
	StateReading
	StateWriting
	StateFlushing
	StateDone
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateReading:
		return "reading"
	case StateWriting:
		return "writing"
	case StateFlushing:
		return "flushing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Connection 服务一个已接受的连接：读到 "\r\n\r\n" 为止，写固定响应，然后关闭。
type Connection struct {
	env  *Env
	sock Socket
	fd   int

	state     ConnState
	buf       []byte
	filled    int
	sent      int
	interest  reactor.Interest // 当前注册的关注事件，0 表示未注册
	responded bool
	err       error
	closed    bool
}

// NewConnection 为 sock 创建连接任务，任务接管 sock 的所有权。
func NewConnection(env *Env, sock Socket) *Connection {
	return &Connection{env: env, sock: sock, fd: sock.Fd()}
}

// State 返回当前状态。
func (c *Connection) State() ConnState { return c.state }

// Responded 响应是否已完整写出。
func (c *Connection) Responded() bool { return c.responded }

// Err 返回导致连接结束的原因，正常完成时为 nil。
func (c *Connection) Err() error { return c.err }

// Poll 尽可能推进状态机，直到需要等待就绪或进入终态。
// 只有注册失败会作为错误返回。
func (c *Connection) Poll(w *sched.Waker) (sched.Status, error) {
	for {
		switch c.state {
		case StateStart:
			c.buf = protocol.GetBuffer(c.env.maxRequest())
			if err := c.want(reactor.Readable, w); err != nil {
				return sched.Ready, err
			}
			c.state = StateReading

		case StateReading:
			n, err := c.sock.Read(c.buf[c.filled:])
			if err != nil {
				if netutil.IsWouldBlock(err) {
					return sched.Pending, nil
				}
				c.fail(err)
				continue
			}
			if n == 0 {
				c.env.log().Debug("server: peer closed before request completed",
					zap.Int("fd", c.fd), zap.Int("bytes", c.filled))
				c.err = ErrPeerClosed
				c.state = StateDone
				continue
			}
			c.filled += n
			req := c.buf[:c.filled]
			if protocol.Complete(req) {
				c.env.log().Debug("server: request received",
					zap.Int("fd", c.fd), zap.Int("bytes", c.filled),
					zap.ByteString("line", protocol.FirstLine(req)))
				if err := c.want(reactor.Writable, w); err != nil {
					return sched.Ready, err
				}
				c.state = StateWriting
				continue
			}
			if c.filled == len(c.buf) {
				c.fail(ErrRequestTooLarge)
			}

		case StateWriting:
			n, err := c.sock.Write(protocol.Response[c.sent:])
			if err != nil {
				if netutil.IsWouldBlock(err) {
					return sched.Pending, nil
				}
				c.fail(err)
				continue
			}
			if n == 0 {
				c.fail(ErrShortWrite)
				continue
			}
			c.sent += n
			if c.sent == len(protocol.Response) {
				c.state = StateFlushing
			}

		case StateFlushing:
			if err := c.sock.Flush(); err != nil {
				if netutil.IsWouldBlock(err) {
					return sched.Pending, nil
				}
				c.fail(err)
				continue
			}
			c.responded = true
			c.state = StateDone

		case StateDone, StateFailed:
			if err := c.Close(); err != nil {
				c.env.log().Debug("server: close connection", zap.Int("fd", c.fd), zap.Error(err))
			}
			return sched.Ready, nil
		}
	}
}

// want 保证 fd 以 interest 注册；同一任务的 waker 不变，仅在关注事件变化时重新注册。
func (c *Connection) want(interest reactor.Interest, w *sched.Waker) error {
	if c.interest == interest {
		return nil
	}
	if err := c.env.Reactor.Register(c.fd, interest, w); err != nil {
		return fmt.Errorf("server: register connection: %w", err)
	}
	c.interest = interest
	return nil
}

func (c *Connection) fail(err error) {
	c.env.log().Warn("server: connection failed",
		zap.Int("fd", c.fd), zap.Stringer("state", c.state), zap.Error(err))
	c.err = err
	c.state = StateFailed
}

// Close 注销并关闭 socket、归还缓冲区，可重复调用。
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var err error
	// 必须先注销再关闭，避免 fd 被复用后收到旧的注册
	if c.interest != 0 {
		err = multierr.Append(err, c.env.Reactor.Deregister(c.fd))
		c.interest = 0
	}
	err = multierr.Append(err, c.sock.Close())
	if c.buf != nil {
		protocol.PutBuffer(c.buf)
		c.buf = nil
	}
	return err
}
