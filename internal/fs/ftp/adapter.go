package ftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/textproto"
	"path"

	ftplib "github.com/jlaffaye/ftp"

	"ftpmirror/internal/fs"
)

// Adapter 基于单条 FTP 控制连接实现 fs.Session
// 不是并发安全的，调用方负责串行使用
type Adapter struct {
	conn serverConn
}

// NewAdapter 包装一条已登录的连接
func NewAdapter(conn serverConn) *Adapter {
	return &Adapter{conn: conn}
}

// List 列出远程目录。服务器支持时使用 MLSD，否则退回 LIST
func (a *Adapter) List(ctx context.Context, remotePath string) ([]fs.RemoteEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, &fs.ListError{Path: remotePath, Err: err}
	}

	entries, err := a.conn.List(remotePath)
	if err != nil {
		return nil, fs.NewListError(remotePath, classify(err))
	}

	result := make([]fs.RemoteEntry, 0, len(entries))
	for _, e := range entries {
		if !fs.ValidName(e.Name) {
			continue
		}
		switch e.Type {
		case ftplib.EntryTypeFolder:
			result = append(result, fs.RemoteEntry{Name: e.Name, Kind: fs.KindDirectory})
		case ftplib.EntryTypeFile:
			result = append(result, fs.RemoteEntry{Name: e.Name, Kind: fs.KindFile, Size: int64(e.Size)})
		case ftplib.EntryTypeLink:
			entry, err := a.resolveLink(remotePath, e)
			if err != nil {
				return nil, fs.NewListError(remotePath, err)
			}
			result = append(result, entry)
		}
	}
	return result, nil
}

// resolveLink 用 SIZE 判断链接目标：成功说明指向普通文件，按文件处理；
// 失败 (多为指向目录) 时保留为符号链接，由遍历器忽略
func (a *Adapter) resolveLink(dir string, e *ftplib.Entry) (fs.RemoteEntry, error) {
	size, err := a.conn.FileSize(path.Join(dir, e.Name))
	if err == nil {
		return fs.RemoteEntry{Name: e.Name, Kind: fs.KindFile, Size: size}, nil
	}
	err = classify(err)
	if errors.Is(err, fs.ErrConnectionLost) {
		return fs.RemoteEntry{}, err
	}
	slog.Debug("跳过符号链接", "path", dir, "name", e.Name, "target", e.Target, "err", err)
	return fs.RemoteEntry{Name: e.Name, Kind: fs.KindSymlink}, nil
}

// Open 以 RETR 打开远程文件。读取完成前该连接不能再做其它操作
func (a *Adapter) Open(remotePath string) (io.ReadCloser, error) {
	resp, err := a.conn.Retr(remotePath)
	if err != nil {
		return nil, fmt.Errorf("retr %s: %w", remotePath, classify(err))
	}
	return resp, nil
}

// Close 发送 QUIT 并关闭连接
func (a *Adapter) Close() error {
	return a.conn.Quit()
}

// classify 把 FTP 应答码映射到 fs 包的哨兵错误
func classify(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch protoErr.Code {
		case ftplib.StatusFileUnavailable, ftplib.StatusFileActionIgnored:
			return fmt.Errorf("%w: %w", fs.ErrNotFound, err)
		case ftplib.StatusNotLoggedIn, 532: // 532: need account
			return fmt.Errorf("%w: %w", fs.ErrPermission, err)
		case ftplib.StatusNotAvailable:
			return fmt.Errorf("%w: %w", fs.ErrConnectionLost, err)
		}
		return err
	}
	if fs.IsConnectionLoss(err) {
		return fmt.Errorf("%w: %w", fs.ErrConnectionLost, err)
	}
	return err
}
