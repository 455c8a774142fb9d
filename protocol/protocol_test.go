package protocol

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want bool
	}{
		{name: "empty", in: "", want: false},
		{name: "terminator only", in: "\r\n\r\n", want: true},
		{name: "request", in: "GET / \r\n\r\n", want: true},
		{name: "partial terminator", in: "GET / \r\n\r", want: false},
		{name: "terminator in the middle", in: "\r\n\r\nGET", want: false},
		{name: "short", in: "\n", want: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Complete([]byte(tc.in)))
		})
	}
}

func TestComplete_UsesFilledRegionOnly(t *testing.T) {
	buf := make([]byte, 16)
	n := copy(buf, "GET\r\n\r")
	assert.False(t, Complete(buf[:n]))
	n += copy(buf[n:], "\n")
	assert.True(t, Complete(buf[:n]))
}

func TestResponse_IsValidHTTP(t *testing.T) {
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(Response)), nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(12), resp.ContentLength)
	assert.True(t, resp.Close)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, Body, string(body))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "GET / HTTP/1.1", string(FirstLine([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))))
	assert.Equal(t, "", string(FirstLine([]byte("\r\n\r\n"))))
	assert.Equal(t, "abc", string(FirstLine([]byte("abc"))))
}

func TestBufferPool(t *testing.T) {
	b := GetBuffer(0)
	assert.Len(t, b, DefaultMaxRequest)
	PutBuffer(b)

	big := GetBuffer(4096)
	assert.Len(t, big, 4096)
	PutBuffer(big)
}
