// Package aio 是一个最小的就绪驱动异步 I/O 运行时：
// reactor 复用 socket 就绪事件，协作式调度器只在能推进时 poll 任务，
// 每个连接读到 "\r\n\r\n" 后返回固定响应并关闭。
package aio

import (
	"fmt"

	"github.com/legamerdc/aio/protocol"

	"go.uber.org/zap"
)

// Config 为服务端配置
type Config struct {
	Address        string      // 监听地址，如 "localhost:3000"
	Workers        int         // 调度器 worker 数
	MaxRequestSize int         // 单个请求最大字节数（含结束标记）
	WriteBuffer    int         // 每连接用户态写缓冲，0 表示直接写 fd
	EventBatch     int         // 单次等待最多返回的就绪事件数
	Backlog        int         // listen backlog
	Logger         *zap.Logger // nil 时不输出
}

// DefaultConfig 提供一组可工作的默认值
func DefaultConfig() Config {
	return Config{
		Address:        "localhost:3000",
		Workers:        1,
		MaxRequestSize: protocol.DefaultMaxRequest,
		EventBatch:     1024,
		Backlog:        1024,
		Logger:         zap.NewNop(),
	}
}

// withDefaults 用默认值补全零值字段并校验
func (c Config) withDefaults() (Config, error) {
	def := DefaultConfig()
	if c.Address == "" {
		c.Address = def.Address
	}
	if c.Workers == 0 {
		c.Workers = def.Workers
	}
	if c.MaxRequestSize == 0 {
		c.MaxRequestSize = def.MaxRequestSize
	}
	if c.EventBatch == 0 {
		c.EventBatch = def.EventBatch
	}
	if c.Backlog == 0 {
		c.Backlog = def.Backlog
	}
	if c.Logger == nil {
		c.Logger = def.Logger
	}
	switch {
	case c.Workers < 0:
		return c, fmt.Errorf("%w: workers %d", ErrInvalidArgument, c.Workers)
	case c.MaxRequestSize < len(protocol.Terminator):
		return c, fmt.Errorf("%w: max request size %d", ErrInvalidArgument, c.MaxRequestSize)
	case c.WriteBuffer < 0:
		return c, fmt.Errorf("%w: write buffer %d", ErrInvalidArgument, c.WriteBuffer)
	case c.EventBatch < 0:
		return c, fmt.Errorf("%w: event batch %d", ErrInvalidArgument, c.EventBatch)
	case c.Backlog < 0:
		return c, fmt.Errorf("%w: backlog %d", ErrInvalidArgument, c.Backlog)
	}
	return c, nil
}
