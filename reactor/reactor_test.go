//go:build linux || darwin

package reactor

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/legamerdc/aio/poller"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type countWaker struct {
	n atomic.Int32
}

func (w *countWaker) Wake() { w.n.Add(1) }

func newReactor(t *testing.T) *Reactor {
	t.Helper()
	p, err := poller.New(16)
	require.NoError(t, err)
	r := New(p)
	t.Cleanup(func() { r.Close() })
	return r
}

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestReactor_LevelTriggered(t *testing.T) {
	r := newReactor(t)
	a, b := socketPair(t)

	w := &countWaker{}
	require.NoError(t, r.Register(a, Readable, w))
	assert.Equal(t, 1, r.Len())

	_, err := unix.Write(b, []byte("ping"))
	require.NoError(t, err)

	n, err := r.Poll(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(1), w.n.Load())

	// 数据仍未读取：水平触发会再次通知
	n, err = r.Poll(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(2), w.n.Load())

	buf := make([]byte, 16)
	_, err = unix.Read(a, buf)
	require.NoError(t, err)

	n, err = r.Poll(20 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int32(2), w.n.Load())
}

func TestReactor_Deregister(t *testing.T) {
	r := newReactor(t)
	a, b := socketPair(t)

	w := &countWaker{}
	require.NoError(t, r.Register(a, Readable, w))
	_, err := unix.Write(b, []byte("ping"))
	require.NoError(t, err)

	require.NoError(t, r.Deregister(a))
	assert.Equal(t, 0, r.Len())

	n, err := r.Poll(20 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int32(0), w.n.Load())

	// 重复注销无副作用
	require.NoError(t, r.Deregister(a))
	require.NoError(t, r.Deregister(12345))
}

func TestReactor_ReRegisterNarrowsInterest(t *testing.T) {
	r := newReactor(t)
	a, _ := socketPair(t)

	reader := &countWaker{}
	require.NoError(t, r.Register(a, Readable, reader))

	n, err := r.Poll(20 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// 改为关注可写：空的 socket 立即可写，且只调用新的 Waker
	writer := &countWaker{}
	require.NoError(t, r.Register(a, Writable, writer))
	assert.Equal(t, 1, r.Len())

	n, err = r.Poll(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(0), reader.n.Load())
	assert.Equal(t, int32(1), writer.n.Load())
}

func TestReactor_HangupWakes(t *testing.T) {
	r := newReactor(t)
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])

	w := &countWaker{}
	require.NoError(t, r.Register(fds[0], Readable, w))
	require.NoError(t, unix.Close(fds[1]))

	n, err := r.Poll(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(1), w.n.Load())
}

func TestReactor_RegisterInvalid(t *testing.T) {
	r := newReactor(t)
	a, _ := socketPair(t)

	var regErr *RegistrationError

	err := r.Register(a, 0, &countWaker{})
	require.Error(t, err)
	require.True(t, errors.As(err, &regErr))
	assert.ErrorIs(t, err, ErrInvalidRegistration)

	err = r.Register(a, Readable, nil)
	assert.ErrorIs(t, err, ErrInvalidRegistration)

	// 已关闭的 fd 由内核拒绝
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	unix.Close(fds[0])
	unix.Close(fds[1])
	err = r.Register(fds[0], Readable, &countWaker{})
	require.True(t, errors.As(err, &regErr))
	assert.Equal(t, fds[0], regErr.FD)
	assert.Equal(t, 0, r.Len())
}

func TestReactor_NotifyBeforeWait(t *testing.T) {
	r := newReactor(t)
	require.NoError(t, r.Notify())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.WaitAndDispatch()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitAndDispatch did not observe an earlier Notify")
	}
}

func TestReactor_NotifyWhileWaiting(t *testing.T) {
	r := newReactor(t)

	done := make(chan error, 1)
	go func() {
		done <- r.WaitAndDispatch()
	}()

	// 等待 goroutine 进入内核
	require.Eventually(t, r.waiting.Load, time.Second, time.Millisecond)
	require.NoError(t, r.Notify())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Notify did not interrupt WaitAndDispatch")
	}
}

// notifyWaker 在被唤醒时回调 Notify，与调度器在分发期间入队的行为一致。
type notifyWaker struct {
	r   *Reactor
	n   atomic.Int32
	err atomic.Pointer[error]
}

func (w *notifyWaker) Wake() {
	w.n.Add(1)
	if err := w.r.Notify(); err != nil {
		w.err.Store(&err)
	}
}

func TestReactor_NotifyFromWaker(t *testing.T) {
	r := newReactor(t)
	a, b := socketPair(t)

	w := &notifyWaker{r: r}
	require.NoError(t, r.Register(a, Readable, w))
	_, err := unix.Write(b, []byte("ping"))
	require.NoError(t, err)

	n, err := r.Poll(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.EqualValues(t, 1, w.n.Load())
	assert.Nil(t, w.err.Load())

	buf := make([]byte, 16)
	_, err = unix.Read(a, buf)
	require.NoError(t, err)

	// 分发期间的 Notify 不会让下一次等待立即返回
	start := time.Now()
	n, err = r.Poll(20 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
	assert.EqualValues(t, 1, w.n.Load())
}

func TestTimeoutMillis(t *testing.T) {
	assert.Equal(t, -1, timeoutMillis(-1))
	assert.Equal(t, 0, timeoutMillis(0))
	assert.Equal(t, 1, timeoutMillis(time.Microsecond))
	assert.Equal(t, 20, timeoutMillis(20*time.Millisecond))
}

func TestInterestString(t *testing.T) {
	assert.Equal(t, "readable", Readable.String())
	assert.Equal(t, "writable", Writable.String())
	assert.Equal(t, "readable|writable", ReadWrite.String())
}
