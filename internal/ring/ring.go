// Package ring 提供单 goroutine 使用的环形字节缓冲，用作 socket 的用户态写缓冲。
package ring

// Buffer 为容量为 2 的幂的环形缓冲，不做并发保护。
type Buffer struct {
	buf      []byte
	mask     int
	readPos  int
	writePos int
}

// New 返回容量至少为 capacity 的缓冲，容量向上取整到 2 的幂。
func New(capacity int) *Buffer {
	capPow2 := 1
	for capPow2 < capacity {
		capPow2 <<= 1
	}
	return &Buffer{buf: make([]byte, capPow2), mask: capPow2 - 1}
}

func (b *Buffer) Cap() int { return len(b.buf) }

func (b *Buffer) Len() int { return b.writePos - b.readPos }

func (b *Buffer) Free() int { return b.Cap() - b.Len() }

// Write 写入尽可能多的数据，返回写入字节数；缓冲满时返回 0。
func (b *Buffer) Write(p []byte) int {
	n := len(p)
	if free := b.Free(); n > free {
		n = free
	}
	if n == 0 {
		return 0
	}
	start := b.writePos & b.mask
	l := copy(b.buf[start:], p[:n])
	if l < n {
		copy(b.buf, p[l:n])
	}
	b.writePos += n
	return n
}

// Peek 返回从读指针开始的连续一段数据，不前进读指针。
// 数据跨越缓冲末尾时只返回第一段，Discard 后再次 Peek 得到其余部分。
func (b *Buffer) Peek() []byte {
	ln := b.Len()
	if ln == 0 {
		return nil
	}
	start := b.readPos & b.mask
	end := start + ln
	if end > len(b.buf) {
		end = len(b.buf)
	}
	return b.buf[start:end]
}

// Discard 前进读指针，返回实际丢弃的字节数。
func (b *Buffer) Discard(n int) int {
	if ln := b.Len(); n > ln {
		n = ln
	}
	b.readPos += n
	if b.readPos == b.writePos {
		b.readPos, b.writePos = 0, 0
	}
	return n
}
