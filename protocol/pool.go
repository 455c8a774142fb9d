package protocol

import "sync"

// DefaultMaxRequest 单个请求（含结束标记）允许的最大字节数
const DefaultMaxRequest = 1024

var bufferPool = sync.Pool{New: func() any {
	b := make([]byte, DefaultMaxRequest)
	return &b
}}

// GetBuffer 返回长度为 size 的请求缓冲区；默认尺寸的缓冲区来自池。
func GetBuffer(size int) []byte {
	if size <= 0 {
		size = DefaultMaxRequest
	}
	if size != DefaultMaxRequest {
		return make([]byte, size)
	}
	return *(bufferPool.Get().(*[]byte))
}

// PutBuffer 归还 GetBuffer 得到的缓冲区。
func PutBuffer(b []byte) {
	if cap(b) != DefaultMaxRequest {
		return
	}
	b = b[:DefaultMaxRequest]
	bufferPool.Put(&b)
}
