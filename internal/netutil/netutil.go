// Package netutil 提供非阻塞原始 socket 的辅助函数。
package netutil

import "errors"

// ErrWouldBlock 表示操作当前无法完成（EAGAIN/EWOULDBLOCK）。
// 这是稳态信号而不是错误：调用方应挂起并等待就绪通知。
var ErrWouldBlock = errors.New("netutil: operation would block")

// IsWouldBlock 判断 err 是否为 ErrWouldBlock。
func IsWouldBlock(err error) bool { return errors.Is(err, ErrWouldBlock) }
