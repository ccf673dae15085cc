package fs

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// Protocol 远程协议
type Protocol string

const (
	ProtocolFTP  Protocol = "ftp"
	ProtocolSFTP Protocol = "sftp"
)

// DefaultPort 返回协议的默认端口 (ftp: 21, sftp: 22)
func (p Protocol) DefaultPort() int {
	if p == ProtocolSFTP {
		return 22
	}
	return 21
}

// ParseProtocol 解析命令行/配置中的协议名
func ParseProtocol(s string) (Protocol, bool) {
	switch Protocol(strings.ToLower(strings.TrimSpace(s))) {
	case ProtocolFTP:
		return ProtocolFTP, true
	case ProtocolSFTP:
		return ProtocolSFTP, true
	}
	return "", false
}

// EntryKind 目录项类型
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDirectory
	KindSymlink // 仅在无法解析目标时出现，遍历时忽略
)

func (k EntryKind) String() string {
	switch k {
	case KindDirectory:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "file"
	}
}

// RemoteEntry 远程目录中的一项，每次 List 都重新生成，不做持久化
type RemoteEntry struct {
	Name string
	Kind EntryKind
	Size int64 // 仅对文件有效，单位字节
}

// Credentials 用户名/密码。打印或写日志时密码会被隐藏
type Credentials struct {
	User     string
	Password string
}

func (c Credentials) String() string {
	return c.User + ":******"
}

// LogValue 实现 slog.LogValuer，保证密码不会进入日志
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(slog.String("user", c.User))
}

// Lister 在一条连接上列出单个远程目录
// 实现不需要是并发安全的：同一连接上的列目录调用总是串行的
type Lister interface {
	List(ctx context.Context, remotePath string) ([]RemoteEntry, error)
}

// Resolver 可选能力：返回远程路径的规范形式 (解析符号链接)
// 遍历器用它来识别 SFTP 上的符号链接环
type Resolver interface {
	RealPath(remotePath string) (string, error)
}

// Session 一条活动的协议会话 (FTP 会话 或 SSH 之上的 SFTP 会话)
type Session interface {
	Lister

	// Open 打开远程文件读取流 (内部传输模式使用)
	Open(remotePath string) (io.ReadCloser, error)

	// Close 关闭会话及底层连接
	Close() error
}

// ValidName 过滤掉 "."、".." 以及包含路径分隔符的名字，
// 避免恶意服务器让本地路径逃出镜像根目录
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// LocalFile 本地文件的存在性与大小，用于同步决策
type LocalFile struct {
	Exists bool
	Size   int64
}
