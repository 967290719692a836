package probe

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serve accepts one connection, records the request headers and answers with
// reply before closing. A nil reply keeps the connection open until the
// client gives up.
func serve(t *testing.T, reply []byte) (int, <-chan []string) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	got := make(chan []string, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var lines []string
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			line = strings.TrimRight(line, "\r\n")
			if err != nil || line == "" {
				break
			}
			lines = append(lines, line)
		}
		got <- lines

		if reply == nil {
			_, _ = r.ReadByte()
			return
		}
		_, _ = conn.Write(reply)
	}()

	return l.Addr().(*net.TCPAddr).Port, got
}

func TestProbeUp(t *testing.T) {
	port, got := serve(t, []byte("HTTP/1.0 202 Accepted\r\nContent-type: text/x-npds\r\n\r\nnpds-status: SERVER_ALIVE_WELL\r\n"))

	res, err := New(time.Second).Probe(context.Background(), "127.0.0.1", port)
	require.NoError(t, err)
	assert.True(t, res.Up)
	assert.Equal(t, ResultUp, res.Reason)

	req := <-got
	require.Len(t, req, 4)
	assert.Equal(t, "GET /traq/confirm.ns HTTP/1.0", req[0])
	assert.Equal(t, "Host: 127.0.0.1", req[1])
	assert.True(t, strings.HasPrefix(req[2], "User-Agent: Mozilla/5.0 (compatible; NPDS Tracker Server "))
	assert.Equal(t, "Accept: text/x-npds", req[3])
}

func TestProbeEmptyReply(t *testing.T) {
	port, _ := serve(t, []byte{})

	res, err := New(time.Second).Probe(context.Background(), "127.0.0.1", port)
	require.NoError(t, err)
	assert.False(t, res.Up)
	assert.Equal(t, ResultEmpty, res.Reason)
}

func TestProbeBadReply(t *testing.T) {
	port, _ := serve(t, []byte("HTTP/1.0 200 OK\r\nServer: Apache\r\n\r\n<html></html>"))

	res, err := New(time.Second).Probe(context.Background(), "127.0.0.1", port)
	require.NoError(t, err)
	assert.False(t, res.Up)
	assert.Equal(t, ResultBad, res.Reason)
}

func TestProbeConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	res, err := New(time.Second).Probe(context.Background(), "127.0.0.1", port)
	assert.Error(t, err)
	assert.False(t, res.Up)
	assert.Equal(t, ResultError, res.Reason)
}

func TestProbeTimeout(t *testing.T) {
	port, _ := serve(t, nil)

	start := time.Now()
	res, err := New(100*time.Millisecond).Probe(context.Background(), "127.0.0.1", port)
	assert.Error(t, err)
	assert.False(t, res.Up)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		up    bool
		want  string
	}{
		{"empty", "", false, ResultEmpty},
		{"nul", "\x00\x00", false, ResultEmpty},
		{"status line", "HTTP/1.1 202 Accepted\r\n", true, ResultUp},
		{"anywhere", "junk 1202 junk", true, ResultUp},
		{"other", "HTTP/1.1 404 Not Found\r\n", false, ResultBad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Classify([]byte(tt.reply))
			assert.Equal(t, tt.up, res.Up)
			assert.Equal(t, tt.want, res.Reason)
		})
	}
}
