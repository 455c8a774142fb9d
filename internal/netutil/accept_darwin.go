//go:build darwin

package netutil

import "golang.org/x/sys/unix"

// Accept 非阻塞地接受一个连接，返回的 fd 已设置 O_NONBLOCK 与 CLOEXEC。
// darwin 没有 accept4，需要分两步设置。
func Accept(lfd int) (int, error) {
	fd, _, err := unix.Accept(lfd)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return -1, ErrWouldBlock
		}
		return -1, err
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	// 避免对端关闭时写入触发 SIGPIPE
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
	return fd, nil
}
