package remote

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ftpmirror/internal/fs"
)

// closedPort 返回一个当前没有监听者的本地端口
func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestDialUnsupportedProtocol(t *testing.T) {
	sess, err := Dial(context.Background(), Params{Protocol: "gopher", Host: "h"})
	assert.Nil(t, sess)

	var ce *fs.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, fs.Protocol("gopher"), ce.Protocol)
}

func TestDialRefused(t *testing.T) {
	for _, p := range []fs.Protocol{fs.ProtocolFTP, fs.ProtocolSFTP} {
		t.Run(string(p), func(t *testing.T) {
			port := closedPort(t)
			dial := NewDialer(Params{
				Protocol:    p,
				Host:        "127.0.0.1",
				Port:        port,
				Credentials: fs.Credentials{User: "u", Password: "p"},
				Timeout:     2 * time.Second,
			})

			sess, err := dial(context.Background())
			assert.Nil(t, sess)

			var ce *fs.ConnectionError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, p, ce.Protocol)
			assert.Equal(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), ce.Addr)
		})
	}
}
