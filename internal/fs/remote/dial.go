package remote

import (
	"context"
	"fmt"
	"time"

	"ftpmirror/internal/fs"
	ftpfs "ftpmirror/internal/fs/ftp"
	sftpfs "ftpmirror/internal/fs/sftp"
)

// Params 建立一条远程会话所需的全部参数
type Params struct {
	Protocol       fs.Protocol
	Host           string
	Port           int
	Credentials    fs.Credentials
	Timeout        time.Duration
	KnownHostsFile string // 仅 sftp
	MaxConnections int    // 仅 sftp，内部传输时的单文件并发
}

// Dialer 按协议创建会话
type Dialer func(ctx context.Context) (fs.Session, error)

// Dial 按协议选择适配器并建立会话
func Dial(ctx context.Context, p Params) (fs.Session, error) {
	switch p.Protocol {
	case fs.ProtocolFTP:
		a, err := ftpfs.Dial(ctx, &ftpfs.Options{
			Host:        p.Host,
			Port:        p.Port,
			Credentials: p.Credentials,
			Timeout:     p.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	case fs.ProtocolSFTP:
		a, err := sftpfs.Dial(ctx, &sftpfs.Options{
			Host:           p.Host,
			Port:           p.Port,
			Credentials:    p.Credentials,
			Timeout:        p.Timeout,
			KnownHostsFile: p.KnownHostsFile,
			MaxConnections: p.MaxConnections,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, &fs.ConnectionError{
		Protocol: p.Protocol,
		Addr:     p.Host,
		Err:      fmt.Errorf("unsupported protocol %q", p.Protocol),
	}
}

// NewDialer 绑定参数，返回可重复调用的 Dialer (用于重连和内部传输)
func NewDialer(p Params) Dialer {
	return func(ctx context.Context) (fs.Session, error) {
		return Dial(ctx, p)
	}
}
