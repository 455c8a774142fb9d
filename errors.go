package aio

import "errors"

var (
	// ErrPlatformNotSupported 当前平台没有 epoll/kqueue
	ErrPlatformNotSupported = errors.New("aio: platform not supported (requires epoll or kqueue)")

	// ErrInvalidArgument 参数非法
	ErrInvalidArgument = errors.New("aio: invalid argument")

	// ErrServerClosed Server 已关闭
	ErrServerClosed = errors.New("aio: server closed")

	// ErrServing Serve 已在运行
	ErrServing = errors.New("aio: server already serving")
)
