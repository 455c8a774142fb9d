//go:build linux || darwin

package netutil

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/sys/unix"
)

func SetNonblock(fd int, nonblock bool) error {
	return unix.SetNonblock(fd, nonblock)
}

func SetReuseAddr(fd int, enable bool) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, boolInt(enable))
}

func SetNoDelay(fd int, enable bool) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolInt(enable))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Listen 创建非阻塞的监听 socket 并返回 fd。
// 仅支持 tcp 与 tcp4/tcp6；"tcp" 按 IPv4 处理。
func Listen(network, address string, backlog int) (int, error) {
	switch network {
	case "", "tcp", "tcp4", "tcp6":
	default:
		return -1, fmt.Errorf("netutil: unsupported network %q", network)
	}
	fam := unix.AF_INET
	resolveNet := "tcp4"
	if strings.HasSuffix(network, "6") {
		fam = unix.AF_INET6
		resolveNet = "tcp6"
	}
	addr, err := net.ResolveTCPAddr(resolveNet, address)
	if err != nil {
		return -1, err
	}
	fd, err := unix.Socket(fam, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("netutil: socket: %w", err)
	}
	unix.CloseOnExec(fd)
	_ = SetReuseAddr(fd, true)
	if err := SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: set nonblock: %w", err)
	}
	var sa unix.Sockaddr
	if fam == unix.AF_INET6 {
		var sa6 unix.SockaddrInet6
		if addr.IP != nil {
			copy(sa6.Addr[:], addr.IP.To16())
		}
		sa6.Port = addr.Port
		sa = &sa6
	} else {
		var sa4 unix.SockaddrInet4
		if addr.IP != nil {
			copy(sa4.Addr[:], addr.IP.To4())
		}
		sa4.Port = addr.Port
		sa = &sa4
	}
	if backlog <= 0 {
		backlog = 1024
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: bind %s: %w", address, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: listen %s: %w", address, err)
	}
	return fd, nil
}

// LocalAddr 返回 fd 绑定的本地地址。
func LocalAddr(fd int) (net.Addr, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, err
	}
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IPv4(v.Addr[0], v.Addr[1], v.Addr[2], v.Addr[3]), Port: v.Port}, nil
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(append([]byte(nil), v.Addr[:]...)), Port: v.Port}, nil
	default:
		return nil, fmt.Errorf("netutil: unsupported sockaddr %T", sa)
	}
}

// Read 对 fd 做一次非阻塞读；EAGAIN 映射为 ErrWouldBlock。
func Read(fd int, p []byte) (int, error) {
	n, err := unix.Read(fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}

// Write 对 fd 做一次非阻塞写；EAGAIN 映射为 ErrWouldBlock。
func Write(fd int, p []byte) (int, error) {
	n, err := unix.Write(fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}

func Close(fd int) error { return unix.Close(fd) }

// IsRetryableAccept 判断 accept 错误是否可以立即重试。
func IsRetryableAccept(err error) bool {
	return err == unix.EINTR || err == unix.ECONNABORTED
}
