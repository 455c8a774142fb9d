//go:build !linux && !darwin

package aio

import (
	"net"

	"github.com/legamerdc/aio/poller"
)

// 非 linux/darwin 平台返回占位错误，保证编译通过
func listen(cfg Config) (int, net.Addr, error) {
	return -1, nil, ErrPlatformNotSupported
}

func newPoller(cfg Config) (poller.Poller, error) {
	return nil, ErrPlatformNotSupported
}

func closeFD(fd int) error { return nil }
