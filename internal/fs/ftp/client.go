package ftp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	ftplib "github.com/jlaffaye/ftp"

	"ftpmirror/internal/fs"
)

// Options FTP 连接参数
type Options struct {
	Host        string
	Port        int
	Credentials fs.Credentials
	Timeout     time.Duration
}

func (o *Options) addr() string {
	port := o.Port
	if port == 0 {
		port = fs.ProtocolFTP.DefaultPort()
	}
	return net.JoinHostPort(o.Host, strconv.Itoa(port))
}

// serverConn 是 *ftplib.ServerConn 中本包用到的部分，方便测试替换
type serverConn interface {
	List(path string) ([]*ftplib.Entry, error)
	Retr(path string) (*ftplib.Response, error)
	FileSize(path string) (int64, error)
	Quit() error
}

// Dial 连接并登录 FTP 服务器
func Dial(ctx context.Context, opts *Options) (*Adapter, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	conn, err := ftplib.Dial(opts.addr(),
		ftplib.DialWithContext(ctx),
		ftplib.DialWithTimeout(opts.Timeout),
	)
	if err != nil {
		return nil, &fs.ConnectionError{Protocol: fs.ProtocolFTP, Addr: opts.addr(), Err: err}
	}

	if err := conn.Login(opts.Credentials.User, opts.Credentials.Password); err != nil {
		_ = conn.Quit()
		return nil, &fs.ConnectionError{
			Protocol: fs.ProtocolFTP,
			Addr:     opts.addr(),
			Err:      fmt.Errorf("login as %q: %w", opts.Credentials.User, err),
		}
	}

	return NewAdapter(conn), nil
}
