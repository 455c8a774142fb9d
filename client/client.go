// Package client 是一个阻塞式的最小客户端：发送一个请求并读取响应直到服务端关闭连接。
package client

import (
	"context"
	"fmt"
	"io"
	"net"
)

// DefaultRequest 默认请求
const DefaultRequest = "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n"

type Client struct {
	conn net.Conn
}

// Dial 建立连接，ctx 的 deadline 同时作用于后续读写。
func Dial(ctx context.Context, network, address string) (*Client, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = nc.SetDeadline(dl)
	}
	return &Client{conn: nc}, nil
}

// Write 发送原始字节，可分多次调用以模拟分段到达。
func (c *Client) Write(p []byte) error {
	_, err := c.conn.Write(p)
	return err
}

// ReadAll 读取直到服务端关闭连接。
func (c *Client) ReadAll() ([]byte, error) {
	return io.ReadAll(c.conn)
}

// Do 发送 req 并返回完整响应。
func (c *Client) Do(req []byte) ([]byte, error) {
	if err := c.Write(req); err != nil {
		return nil, fmt.Errorf("client: write: %w", err)
	}
	resp, err := c.ReadAll()
	if err != nil {
		return resp, fmt.Errorf("client: read: %w", err)
	}
	return resp, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// Fetch 连接 address，发送 DefaultRequest 并返回响应。
func Fetch(ctx context.Context, address string) ([]byte, error) {
	c, err := Dial(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Do([]byte(DefaultRequest))
}
