package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"

	sftplib "github.com/pkg/sftp"

	"ftpmirror/internal/fs"
)

// Adapter 基于一条 SFTP 会话实现 fs.Session 和 fs.Resolver
type Adapter struct {
	client *sftplib.Client
	// transport 为底层 SSH 连接，Close 时一并关闭；测试中可以为 nil
	transport io.Closer
}

// NewAdapter 包装已打开的 SFTP 客户端
func NewAdapter(client *sftplib.Client, transport io.Closer) *Adapter {
	return &Adapter{client: client, transport: transport}
}

// List 列出远程目录
// 符号链接会被解析：指向目录的当作目录，指向文件的使用目标文件大小，悬空链接跳过
func (a *Adapter) List(ctx context.Context, remotePath string) ([]fs.RemoteEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, &fs.ListError{Path: remotePath, Err: err}
	}

	infos, err := a.client.ReadDir(remotePath)
	if err != nil {
		return nil, fs.NewListError(remotePath, classify(err))
	}

	result := make([]fs.RemoteEntry, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if !fs.ValidName(name) {
			continue
		}

		mode := info.Mode()
		if mode&os.ModeSymlink != 0 {
			target, err := a.client.Stat(path.Join(remotePath, name))
			if err != nil {
				if fs.IsConnectionLoss(err) {
					return nil, fs.NewListError(remotePath, classify(err))
				}
				slog.Warn("跳过无法解析的符号链接", "path", path.Join(remotePath, name), "err", err)
				continue
			}
			info = target
			mode = target.Mode()
		}

		switch {
		case mode.IsDir():
			result = append(result, fs.RemoteEntry{Name: name, Kind: fs.KindDirectory})
		case mode.IsRegular():
			result = append(result, fs.RemoteEntry{Name: name, Kind: fs.KindFile, Size: info.Size()})
		default:
			slog.Debug("跳过特殊文件", "path", path.Join(remotePath, name), "mode", mode.String())
		}
	}
	return result, nil
}

// RealPath 返回服务器端的规范路径
func (a *Adapter) RealPath(remotePath string) (string, error) {
	return a.client.RealPath(remotePath)
}

// Open 打开远程文件读取流
func (a *Adapter) Open(remotePath string) (io.ReadCloser, error) {
	f, err := a.client.Open(remotePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", remotePath, classify(err))
	}
	return f, nil
}

// Close 关闭 SFTP 会话和底层 SSH 连接
func (a *Adapter) Close() error {
	err := a.client.Close()
	if a.transport != nil {
		if terr := a.transport.Close(); err == nil {
			err = terr
		}
	}
	return err
}

func classify(err error) error {
	var statusErr *sftplib.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.FxCode() {
		case sftplib.ErrSSHFxNoSuchFile:
			return fmt.Errorf("%w: %w", fs.ErrNotFound, err)
		case sftplib.ErrSSHFxPermissionDenied:
			return fmt.Errorf("%w: %w", fs.ErrPermission, err)
		case sftplib.ErrSSHFxConnectionLost, sftplib.ErrSSHFxNoConnection:
			return fmt.Errorf("%w: %w", fs.ErrConnectionLost, err)
		}
		return err
	}

	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %w", fs.ErrNotFound, err)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %w", fs.ErrPermission, err)
	case errors.Is(err, sftplib.ErrSSHFxConnectionLost), fs.IsConnectionLoss(err):
		return fmt.Errorf("%w: %w", fs.ErrConnectionLost, err)
	}
	return err
}
