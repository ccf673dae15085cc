package sftp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	sftplib "github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"ftpmirror/internal/fs"
)

// requestsPerConnection 内部传输模式下，每个"连接"对应的并发读请求数
const requestsPerConnection = 8

// Options SFTP 连接参数
type Options struct {
	Host        string
	Port        int
	Credentials fs.Credentials
	Timeout     time.Duration

	// KnownHostsFile 为空时接受任何主机密钥
	KnownHostsFile string

	// MaxConnections > 0 时开启单文件并发读
	MaxConnections int
}

func (o *Options) addr() string {
	port := o.Port
	if port == 0 {
		port = fs.ProtocolSFTP.DefaultPort()
	}
	return net.JoinHostPort(o.Host, strconv.Itoa(port))
}

func (o *Options) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if o.KnownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(o.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts %s: %w", o.KnownHostsFile, err)
	}
	return cb, nil
}

// Dial 建立 SSH 连接并在其上打开 SFTP 会话
func Dial(ctx context.Context, opts *Options) (*Adapter, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	addr := opts.addr()
	connErr := func(err error) error {
		return &fs.ConnectionError{Protocol: fs.ProtocolSFTP, Addr: addr, Err: err}
	}

	hostKeyCallback, err := opts.hostKeyCallback()
	if err != nil {
		return nil, connErr(err)
	}

	password := opts.Credentials.Password
	config := &ssh.ClientConfig{
		User: opts.Credentials.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			// 部分服务器只开放 keyboard-interactive，用同一个密码回答所有问题
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.Timeout,
	}

	dialer := net.Dialer{Timeout: opts.Timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, connErr(err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, config)
	if err != nil {
		netConn.Close()
		return nil, connErr(fmt.Errorf("ssh handshake as %q: %w", opts.Credentials.User, err))
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	var clientOpts []sftplib.ClientOption
	if opts.MaxConnections > 0 {
		clientOpts = append(clientOpts,
			sftplib.MaxConcurrentRequestsPerFile(opts.MaxConnections*requestsPerConnection),
			sftplib.UseConcurrentReads(true),
		)
	}

	client, err := sftplib.NewClient(sshClient, clientOpts...)
	if err != nil {
		sshClient.Close()
		return nil, connErr(fmt.Errorf("start sftp subsystem: %w", err))
	}

	return NewAdapter(client, sshClient), nil
}
