package sched

import (
	"context"
	"errors"
	"io"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reactor 为调度器空闲时阻塞的就绪源。
type Reactor interface {
	// WaitAndDispatch 阻塞到至少一个事件到达并唤醒对应任务，或被 Notify 打断。
	WaitAndDispatch() error
	// Notify 打断正在进行（或即将开始）的 WaitAndDispatch，可在任意 goroutine 调用，
	// 包括 WaitAndDispatch 分发期间被调用的 Waker 内部。
	Notify() error
}

// Stats 为调度器运行统计。
type Stats struct {
	Spawned   uint64 // 提交的任务数
	Completed uint64 // 返回 Ready 的任务数
	Polls     uint64 // Poll 调用次数
	Wakes     uint64 // Wake 调用次数（含被合并的）
	Waits     uint64 // 进入 reactor 阻塞的次数
	Queued    int    // 当前队列长度
	Live      int    // 尚未结束的任务数（含挂起的）
}

// Option 配置 Scheduler。
type Option func(*Scheduler)

// WithWorkers 设置 worker 数量，<=0 取 1。
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger 设置日志，nil 时不输出。
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// Scheduler 为 FIFO 运行队列 + worker。
//
// 队列为空时恰好一个 worker 阻塞在 Reactor 上，其余 worker 在条件变量上睡眠，
// 因此空闲时不会自旋。同一任务任意时刻最多在队列中出现一次，且不会被并发 poll。
type Scheduler struct {
	r       Reactor
	log     *zap.Logger
	workers int

	mu      sync.Mutex
	cond    *sync.Cond
	runq    *queue.Queue // *cell
	polling bool         // 某个 worker 正阻塞在 Reactor 中
	stopped bool
	running bool
	closed  bool
	live    map[uint64]*cell // 尚未结束的任务

	nextID    atomic.Uint64
	spawned   atomic.Uint64
	completed atomic.Uint64
	polls     atomic.Uint64
	wakes     atomic.Uint64
	waits     atomic.Uint64
}

// New 创建调度器。
func New(r Reactor, opts ...Option) *Scheduler {
	s := &Scheduler{
		r:       r,
		log:     zap.NewNop(),
		workers: 1,
		runq:    queue.New(),
		live:    make(map[uint64]*cell),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spawn 提交一个新任务到队尾，可在任意 goroutine（包括任务内部）调用。
// Close 之后提交的任务不会运行，实现 io.Closer 的任务被立即关闭。
func (s *Scheduler) Spawn(t Task) {
	if t == nil {
		panic("sched: Spawn of nil Task")
	}
	c := &cell{id: s.nextID.Add(1), task: t}
	c.waker = Waker{c: c, s: s}
	c.state.Store(stateQueued)
	s.spawned.Add(1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		c.state.Store(stateDone)
		if err := closeTask(c); err != nil {
			s.log.Debug("sched: close task", zap.Uint64("task", c.id), zap.Error(err))
		}
		return
	}
	s.live[c.id] = c
	s.mu.Unlock()
	s.push(c)
}

func (s *Scheduler) push(c *cell) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.runq.Add(c)
	notify := s.polling
	s.cond.Signal()
	s.mu.Unlock()
	if notify {
		// 阻塞在 reactor 中的 worker 需要被打断才能看到新任务
		if err := s.r.Notify(); err != nil {
			s.log.Warn("sched: notify reactor", zap.Error(err))
		}
	}
}

// Len 返回当前队列长度。
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runq.Length()
}

// Stats 返回运行统计快照。
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	queued, live := s.runq.Length(), len(s.live)
	s.mu.Unlock()
	return Stats{
		Spawned:   s.spawned.Load(),
		Completed: s.completed.Load(),
		Polls:     s.polls.Load(),
		Wakes:     s.wakes.Load(),
		Waits:     s.waits.Load(),
		Queued:    queued,
		Live:      live,
	}
}

// Close 丢弃所有尚未结束的任务（包括挂起在 reactor 中的），对实现 io.Closer 的任务调用 Close，
// 使其拥有的 fd 在调度器停止后不会泄漏。必须在 Run 返回之后调用，可重复调用。
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopped = true
	cells := make([]*cell, 0, len(s.live))
	for _, c := range s.live {
		cells = append(cells, c)
	}
	s.live = make(map[uint64]*cell)
	s.runq = queue.New()
	s.mu.Unlock()

	var err error
	for _, c := range cells {
		c.state.Store(stateDone)
		err = multierr.Append(err, closeTask(c))
	}
	if len(cells) > 0 {
		s.log.Debug("sched: released unfinished tasks", zap.Int("tasks", len(cells)))
	}
	return err
}

// Run 启动 worker 并阻塞，直到 ctx 结束（返回 nil）或任务产生致命错误（返回该错误）。
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}
	s.running = true
	s.stopped = false
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		id := i
		g.Go(func() error {
			s.log.Debug("sched: worker started", zap.Int("worker", id))
			err := s.work()
			s.log.Debug("sched: worker stopped", zap.Int("worker", id), zap.Error(err))
			return err
		})
	}
	// worker 只会因 stop 或错误退出，错误会取消 gctx，因此这里总能返回
	g.Go(func() error {
		<-gctx.Done()
		s.stop()
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.Error("sched: fatal task error", zap.Error(err))
		return err
	}
	return nil
}

func (s *Scheduler) stop() {
	s.mu.Lock()
	s.stopped = true
	notify := s.polling
	s.cond.Broadcast()
	s.mu.Unlock()
	if notify {
		if err := s.r.Notify(); err != nil {
			s.log.Warn("sched: notify reactor", zap.Error(err))
		}
	}
}

func (s *Scheduler) work() error {
	for {
		c, err := s.next()
		if err != nil {
			if errors.Is(err, errStopped) {
				return nil
			}
			return err
		}
		if err := s.run(c); err != nil {
			return err
		}
	}
}

// next 取出下一个可运行任务；队列为空时由一个 worker 进入 reactor 等待，其余睡眠。
func (s *Scheduler) next() (*cell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.stopped {
			return nil, errStopped
		}
		if s.runq.Length() > 0 {
			return s.runq.Remove().(*cell), nil
		}
		if s.polling {
			s.cond.Wait()
			continue
		}
		s.polling = true
		s.mu.Unlock()
		s.waits.Add(1)
		err := s.r.WaitAndDispatch()
		s.mu.Lock()
		s.polling = false
		// 唤醒其他 worker：可能有多个任务就绪，或需要有人接替等待
		s.cond.Broadcast()
		if err != nil {
			return nil, err
		}
	}
}

// Tick 在当前 goroutine 中非阻塞地运行至多 max 个已就绪任务（max<=0 表示直到队列为空），
// 返回实际 poll 的次数。不会进入 reactor 等待。
func (s *Scheduler) Tick(max int) (int, error) {
	n := 0
	for max <= 0 || n < max {
		s.mu.Lock()
		if s.runq.Length() == 0 {
			s.mu.Unlock()
			break
		}
		c := s.runq.Remove().(*cell)
		s.mu.Unlock()
		n++
		if err := s.run(c); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (s *Scheduler) run(c *cell) error {
	c.state.Store(stateRunning)
	s.polls.Add(1)
	st, err := s.poll(c)
	if err != nil {
		c.state.Store(stateDone)
		s.release(c)
		var pe *PanicError
		if errors.As(err, &pe) {
			return err
		}
		return &TaskError{TaskID: c.id, Cause: err}
	}
	if st == Ready {
		c.state.Store(stateDone)
		s.completed.Add(1)
		s.release(c)
		return nil
	}
	if c.state.CompareAndSwap(stateRunning, stateIdle) {
		return nil
	}
	// poll 期间被唤醒
	c.state.Store(stateQueued)
	s.push(c)
	return nil
}

func (s *Scheduler) poll(c *cell) (st Status, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{TaskID: c.id, Value: v, Stack: debug.Stack()}
		}
	}()
	return c.task.Poll(&c.waker)
}

// release 丢弃已结束的任务，实现 io.Closer 的任务在此释放资源。
func (s *Scheduler) release(c *cell) {
	s.mu.Lock()
	delete(s.live, c.id)
	s.mu.Unlock()
	if err := closeTask(c); err != nil {
		s.log.Debug("sched: close task", zap.Uint64("task", c.id), zap.Error(err))
	}
}

func closeTask(c *cell) error {
	t := c.task
	c.task = nil
	if closer, ok := t.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
