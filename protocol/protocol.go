// Package protocol 实现占位协议：请求以字面量 "\r\n\r\n" 结尾，
// 响应为固定字节序列。这里不做 HTTP 解析。
package protocol

import "bytes"

// Terminator 请求结束标记
var Terminator = []byte("\r\n\r\n")

// Body 固定响应体
const Body = "Hello world!"

// Response 固定响应，所有连接共享，不得修改。
var Response = []byte("HTTP/1.1 200 OK\r\n" +
	"Content-Length: 12\r\n" +
	"Connection: close\r\n" +
	"\r\n" +
	Body)

// Complete 判断已填充区域 buf 是否以 Terminator 结尾。
// buf 必须是 buffer[:filled]，而不是整个缓冲区。
func Complete(buf []byte) bool {
	return bytes.HasSuffix(buf, Terminator)
}

// FirstLine 返回请求的第一行（不含 CRLF），用于日志。
func FirstLine(buf []byte) []byte {
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		buf = buf[:i]
	}
	return bytes.TrimSuffix(buf, []byte("\r"))
}
