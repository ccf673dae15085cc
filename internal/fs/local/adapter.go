package local

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	mirrorfs "ftpmirror/internal/fs"
)

// Adapter 本地文件系统适配器，所有相对路径统一使用 "/" 作为分隔符
type Adapter struct {
	rootDir string // 本地绝对路径根目录
}

// NewAdapter 创建一个新的本地适配器
func NewAdapter(rootDir string) *Adapter {
	// 确保 rootDir 是绝对路径
	absDir, err := filepath.Abs(rootDir)
	if err != nil {
		absDir = rootDir
	}
	return &Adapter{rootDir: absDir}
}

// Root 返回根目录
func (a *Adapter) Root() string {
	return a.rootDir
}

// SysPath 将相对路径转换为本地系统绝对路径
// 输入: "docs/file.txt" -> 输出 (Windows): "D:\Data\docs\file.txt"
func (a *Adapter) SysPath(relPath string) string {
	return filepath.Join(a.rootDir, filepath.FromSlash(relPath))
}

// EnsureDir 确保相对路径对应的目录存在 (递归创建)
func (a *Adapter) EnsureDir(relPath string) error {
	dir := a.SysPath(relPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create local dir %s: %w", dir, err)
	}
	return nil
}

// Stat 获取本地文件的存在性与大小
// 路径存在但是目录时返回错误，避免把目录当成待覆盖的文件
func Stat(sysPath string) (mirrorfs.LocalFile, error) {
	info, err := os.Stat(sysPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return mirrorfs.LocalFile{}, nil
		}
		return mirrorfs.LocalFile{}, err
	}
	if info.IsDir() {
		return mirrorfs.LocalFile{}, fmt.Errorf("%s is a directory", sysPath)
	}
	return mirrorfs.LocalFile{Exists: true, Size: info.Size()}, nil
}

// WriteFile 将流写入本地文件 (覆盖)，返回写入的字节数
// 中途失败时保留已写入的部分，下次扫描会因大小不一致重新下载
func WriteFile(sysPath string, stream io.Reader) (int64, error) {
	// 1. 确保父目录存在
	if err := os.MkdirAll(filepath.Dir(sysPath), 0o755); err != nil {
		return 0, fmt.Errorf("create parent dir: %w", err)
	}

	// 2. 创建文件
	f, err := os.Create(sysPath)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	// 3. 写入数据
	n, err := io.Copy(f, stream)
	if err != nil {
		f.Close()
		return n, fmt.Errorf("write data: %w", err)
	}

	// 关闭文件以刷入磁盘
	if err := f.Close(); err != nil {
		return n, err
	}
	return n, nil
}
