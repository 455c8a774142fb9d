//go:build linux

package netutil

import "golang.org/x/sys/unix"

// Accept 非阻塞地接受一个连接，返回的 fd 已设置 O_NONBLOCK 与 CLOEXEC。
func Accept(lfd int) (int, error) {
	fd, _, err := unix.Accept4(lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return -1, ErrWouldBlock
		}
		return -1, err
	}
	return fd, nil
}
