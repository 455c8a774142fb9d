//go:build !linux && !darwin

package netutil

import (
	"errors"
	"net"
)

var errUnsupported = errors.New("netutil: raw sockets not supported on this platform")

func SetNonblock(fd int, nonblock bool) error { return errUnsupported }

func SetReuseAddr(fd int, enable bool) error { return errUnsupported }

func SetNoDelay(fd int, enable bool) error { return errUnsupported }

func Listen(network, address string, backlog int) (int, error) { return -1, errUnsupported }

func LocalAddr(fd int) (net.Addr, error) { return nil, errUnsupported }

func Accept(lfd int) (int, error) { return -1, errUnsupported }

func Read(fd int, p []byte) (int, error) { return 0, errUnsupported }

func Write(fd int, p []byte) (int, error) { return 0, errUnsupported }

func Close(fd int) error { return errUnsupported }

func IsRetryableAccept(err error) bool { return false }
