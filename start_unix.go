//go:build linux || darwin

package aio

import (
	"fmt"
	"net"

	"github.com/legamerdc/aio/internal/netutil"
	"github.com/legamerdc/aio/poller"
)

func listen(cfg Config) (int, net.Addr, error) {
	fd, err := netutil.Listen("tcp", cfg.Address, cfg.Backlog)
	if err != nil {
		return -1, nil, fmt.Errorf("aio: listen %s: %w", cfg.Address, err)
	}
	addr, err := netutil.LocalAddr(fd)
	if err != nil {
		netutil.Close(fd)
		return -1, nil, fmt.Errorf("aio: local addr: %w", err)
	}
	return fd, addr, nil
}

func newPoller(cfg Config) (poller.Poller, error) {
	p, err := poller.New(cfg.EventBatch)
	if err != nil {
		return nil, fmt.Errorf("aio: create poller: %w", err)
	}
	return p, nil
}

func closeFD(fd int) error { return netutil.Close(fd) }
