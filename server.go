package aio

import (
	"context"
	"net"
	"sync"

	"github.com/legamerdc/aio/reactor"
	"github.com/legamerdc/aio/sched"
	"github.com/legamerdc/aio/server"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Server 把监听 socket、reactor 与调度器组装在一起。
// 所有状态都属于实例本身，同一进程可以运行多个 Server。
type Server struct {
	cfg Config
	log *zap.Logger

	mu      sync.Mutex
	lfd     int
	addr    net.Addr
	sched   *sched.Scheduler
	cancel  context.CancelFunc
	serving bool
	closed  bool
}

// NewServer 校验配置并构造未启动的 Server。
func NewServer(cfg Config) (*Server, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, log: cfg.Logger, lfd: -1}, nil
}

// Listen 绑定监听地址。绑定失败应中止启动。重复调用无副作用。
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	if s.lfd >= 0 {
		return nil
	}
	fd, addr, err := listen(s.cfg)
	if err != nil {
		return err
	}
	s.lfd, s.addr = fd, addr
	s.log.Info("aio: listening", zap.Stringer("addr", addr))
	return nil
}

// Addr 返回实际监听地址，Listen 之前为 nil。
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stats 返回调度器统计，Serve 之前为零值。
func (s *Server) Stats() sched.Stats {
	s.mu.Lock()
	sc := s.sched
	s.mu.Unlock()
	if sc == nil {
		return sched.Stats{}
	}
	return sc.Stats()
}

// Serve 创建 reactor 与调度器，派生 listener 任务并运行，直到 ctx 结束或出现致命错误。
// ctx 结束时返回 nil。返回前关闭监听 fd 与所有未完成的连接（不做排空，对端直接看到 EOF）。
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.serving {
		s.mu.Unlock()
		return ErrServing
	}
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	p, err := newPoller(s.cfg)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r := reactor.New(p, reactor.WithLogger(s.log))
	sc := sched.New(r, sched.WithWorkers(s.cfg.Workers), sched.WithLogger(s.log))
	env := &server.Env{
		Reactor:        r,
		Spawner:        sc,
		Logger:         s.log,
		MaxRequestSize: s.cfg.MaxRequestSize,
		WriteBuffer:    s.cfg.WriteBuffer,
	}
	ln := server.NewListener(env, s.lfd)
	// listener 接管监听 fd
	s.lfd = -1
	s.serving = true
	s.sched = sc
	s.cancel = cancel
	addr := s.addr
	s.mu.Unlock()

	s.log.Info("aio: serving", zap.Stringer("addr", addr), zap.Int("workers", s.cfg.Workers))
	sc.Spawn(ln)
	runErr := sc.Run(ctx)

	// 先释放挂起的连接（注销并关闭 fd），再关闭 reactor
	err = multierr.Combine(runErr, sc.Close(), ln.Close(), r.Close())
	s.mu.Lock()
	s.serving = false
	s.cancel = nil
	s.closed = true
	s.mu.Unlock()
	if runErr != nil {
		s.log.Error("aio: serve stopped", zap.Error(runErr))
	} else {
		s.log.Info("aio: serve stopped")
	}
	return err
}

// Close 停止 Serve（若正在运行）并释放监听 fd，可重复调用。
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.lfd < 0 {
		return nil
	}
	fd := s.lfd
	s.lfd = -1
	return closeFD(fd)
}

// ListenAndServe 等价于 NewServer + Serve。
func ListenAndServe(ctx context.Context, cfg Config) error {
	s, err := NewServer(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Serve(ctx)
}
