package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"ftpmirror/internal/fs"
)

const (
	// DefaultAria2Path 默认从 PATH 中查找
	DefaultAria2Path = "aria2c"

	// aria2c 单服务器连接数上限
	aria2MaxConnections = 16

	stderrTailSize = 4 << 10
)

// Aria2Options 外部下载器配置
type Aria2Options struct {
	Path      string
	ExtraArgs []string
	// Stdout 为 nil 时丢弃 aria2c 的标准输出
	Stdout io.Writer
}

// Aria2Executor 为每个文件启动一个 aria2c 子进程
type Aria2Executor struct {
	opts Aria2Options
}

// NewAria2Executor 创建外部下载器执行器
func NewAria2Executor(opts Aria2Options) *Aria2Executor {
	if opts.Path == "" {
		opts.Path = DefaultAria2Path
	}
	return &Aria2Executor{opts: opts}
}

// Args 构造 aria2c 参数
// 凭据不出现在参数中，而是写入 confPath 指向的配置文件 (见 writeCredentialConf)，
// 避免通过 ps 暴露密码
func (e *Aria2Executor) Args(t SyncTarget, confPath string) []string {
	conns := t.MaxConnections
	if conns < 1 {
		conns = 1
	}
	if conns > aria2MaxConnections {
		conns = aria2MaxConnections
	}

	args := []string{
		"--dir=" + t.LocalDir,
		"--out=" + t.LocalName,
		"--max-connection-per-server=" + strconv.Itoa(conns),
		"--split=" + strconv.Itoa(conns),
		"--allow-overwrite=true",
		"--auto-file-renaming=false",
		"--console-log-level=warn",
		"--summary-interval=0",
	}
	if confPath != "" {
		args = append(args, "--conf-path="+confPath)
	}
	args = append(args, e.opts.ExtraArgs...)
	return append(args, t.URL())
}

// writeCredentialConf 把 --ftp-user/--ftp-passwd (aria2c 的 SFTP 也使用这两个选项)
// 写入权限为 0600 的临时配置文件。没有凭据时返回空路径
func writeCredentialConf(c fs.Credentials) (string, error) {
	if c.User == "" && c.Password == "" {
		return "", nil
	}
	if strings.ContainsAny(c.User+c.Password, "\r\n") {
		return "", errors.New("credentials must not contain line breaks")
	}

	f, err := os.CreateTemp("", "ftpmirror-aria2-*.conf")
	if err != nil {
		return "", fmt.Errorf("create aria2c conf: %w", err)
	}
	var b strings.Builder
	if c.User != "" {
		b.WriteString("ftp-user=" + c.User + "\n")
	}
	if c.Password != "" {
		b.WriteString("ftp-passwd=" + c.Password + "\n")
	}
	_, err = f.WriteString(b.String())
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write aria2c conf: %w", err)
	}
	return f.Name(), nil
}

// Start 启动 aria2c
// 不使用 exec.CommandContext：子进程的终止统一由 Coordinator 负责 (先 SIGTERM 再 SIGKILL)
func (e *Aria2Executor) Start(ctx context.Context, t SyncTarget) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransferError{RemotePath: t.RemotePath, ExitCode: ExitTerminated, Err: err}
	}

	confPath, err := writeCredentialConf(t.Credentials)
	if err != nil {
		return nil, &TransferError{RemotePath: t.RemotePath, ExitCode: -1, Err: err}
	}

	args := e.Args(t, confPath)
	cmd := exec.Command(e.opts.Path, args...)
	stderr := &tailBuffer{max: stderrTailSize}
	cmd.Stderr = stderr
	cmd.Stdout = io.Discard
	if e.opts.Stdout != nil {
		cmd.Stdout = e.opts.Stdout
	}

	slog.Debug("启动 aria2c", "cmd", e.opts.Path, "args", args)

	if err := cmd.Start(); err != nil {
		removeConf(confPath)
		return nil, &TransferError{RemotePath: t.RemotePath, ExitCode: -1, Err: fmt.Errorf("start %s: %w", e.opts.Path, err)}
	}

	h := &processHandle{
		id:       uuid.NewString(),
		target:   t,
		cmd:      cmd,
		stderr:   stderr,
		confPath: confPath,
		done:     make(chan struct{}),
	}
	go h.wait()
	return h, nil
}

func removeConf(p string) {
	if p == "" {
		return
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("删除 aria2c 临时配置失败", "path", p, "err", err)
	}
}

type processHandle struct {
	id       string
	target   SyncTarget
	cmd      *exec.Cmd
	stderr   *tailBuffer
	confPath string

	done     chan struct{}
	exitCode int
	err      error
}

func (h *processHandle) ID() string            { return h.id }
func (h *processHandle) Target() SyncTarget    { return h.target }
func (h *processHandle) Done() <-chan struct{} { return h.done }

func (h *processHandle) wait() {
	err := h.cmd.Wait()
	removeConf(h.confPath)
	code := ExitOK
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr) && exitErr.ExitCode() == -1:
			// 被信号终止
			code = ExitTerminated
			err = fmt.Errorf("%w: %w", ErrTerminated, err)
		case errors.As(err, &exitErr):
			code = exitErr.ExitCode()
		default:
			code = -1
		}
	}
	if code != ExitOK {
		h.err = &TransferError{
			RemotePath: h.target.RemotePath,
			ExitCode:   code,
			Detail:     strings.TrimSpace(h.stderr.String()),
			Err:        err,
		}
	}
	h.exitCode = code
	close(h.done)
}

func (h *processHandle) Wait() (int, error) {
	<-h.done
	return h.exitCode, h.err
}

func (h *processHandle) Terminate() error {
	err := h.cmd.Process.Signal(syscall.SIGTERM)
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		// Windows 不支持 SIGTERM，直接 Kill
		return h.Kill()
	}
	return nil
}

func (h *processHandle) Kill() error {
	err := h.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// tailBuffer 只保留最后 max 字节
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

var _ Executor = (*Aria2Executor)(nil)
