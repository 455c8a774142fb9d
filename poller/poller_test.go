//go:build linux || darwin

package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type recorder struct {
	events map[FD]Event
}

func (r *recorder) OnReady(fd FD, ev Event) {
	if r.events == nil {
		r.events = make(map[FD]Event)
	}
	r.events[fd] |= ev
}

func newPair(t *testing.T) [2]int {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds
}

func newPoller(t *testing.T) Poller {
	t.Helper()
	p, err := New(0)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPoller_ReadableIsLevelTriggered(t *testing.T) {
	p := newPoller(t)
	fds := newPair(t)
	require.NoError(t, p.Register(fds[0], true, false))

	_, err := unix.Write(fds[1], []byte("x"))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		var rec recorder
		n, err := p.Wait(1000, &rec)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.True(t, rec.events[fds[0]].Has(EventReadable))
	}
}

func TestPoller_ModSwitchesInterest(t *testing.T) {
	p := newPoller(t)
	fds := newPair(t)
	require.NoError(t, p.Register(fds[0], true, false))

	// 无数据可读：不应有事件
	var rec recorder
	n, err := p.Wait(10, &rec)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, p.Mod(fds[0], false, true))
	n, err = p.Wait(1000, &rec)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, rec.events[fds[0]].Has(EventWritable))
	assert.False(t, rec.events[fds[0]].Has(EventReadable))
}

func TestPoller_UnregisterStopsEvents(t *testing.T) {
	p := newPoller(t)
	fds := newPair(t)
	require.NoError(t, p.Register(fds[0], false, true))
	require.NoError(t, p.Unregister(fds[0]))

	var rec recorder
	n, err := p.Wait(10, &rec)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Error(t, p.Unregister(fds[0]))
}

func TestPoller_RegisterTwice(t *testing.T) {
	p := newPoller(t)
	fds := newPair(t)
	require.NoError(t, p.Register(fds[0], true, false))
	assert.ErrorIs(t, p.Register(fds[0], true, false), unix.EEXIST)
}

func TestPoller_WakeInterruptsWait(t *testing.T) {
	p := newPoller(t)
	done := make(chan int, 1)
	go func() {
		n, _ := p.Wait(-1, HandlerFunc(func(FD, Event) {}))
		done <- n
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.Wake())

	select {
	case n := <-done:
		assert.Equal(t, 0, n)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait not interrupted by Wake")
	}
}

func TestPoller_WakeCoalesces(t *testing.T) {
	p := newPoller(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wake())
	}
	n, err := p.Wait(1000, HandlerFunc(func(FD, Event) {}))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// 唤醒已被清空，下一次等待应超时
	start := time.Now()
	_, err = p.Wait(20, HandlerFunc(func(FD, Event) {}))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestPoller_WaitAfterClose(t *testing.T) {
	p, err := New(8)
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	_, err = p.Wait(0, HandlerFunc(func(FD, Event) {}))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEvent_Has(t *testing.T) {
	ev := EventReadable | EventHangup
	assert.True(t, ev.Has(EventReadable))
	assert.True(t, ev.Has(EventHangup))
	assert.False(t, ev.Has(EventWritable))
}
