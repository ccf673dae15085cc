package transfer

import (
	"net"
	"net/url"
	"path/filepath"
	"strconv"

	"ftpmirror/internal/fs"
)

// SyncTarget 描述一次文件传输。在调度前构造，之后只读
type SyncTarget struct {
	Protocol   fs.Protocol
	Host       string
	Port       int
	RemotePath string // 远程绝对路径，使用 "/" 分隔
	LocalDir   string // 本地目标目录 (系统路径)
	LocalName  string // 本地文件名
	Size       int64  // 远程文件大小

	Credentials    fs.Credentials
	MaxConnections int

	Force           bool
	ExtensionFilter string // 逗号分隔的后缀列表，空表示不过滤
}

// LocalPath 本地完整路径
func (t SyncTarget) LocalPath() string {
	return filepath.Join(t.LocalDir, t.LocalName)
}

// URL 构造不含凭据的远程地址，例如 sftp://host:22/a/b.txt
func (t SyncTarget) URL() string {
	port := t.Port
	if port == 0 {
		port = t.Protocol.DefaultPort()
	}
	u := url.URL{
		Scheme: string(t.Protocol),
		Host:   net.JoinHostPort(t.Host, strconv.Itoa(port)),
		Path:   t.RemotePath,
	}
	return u.String()
}
