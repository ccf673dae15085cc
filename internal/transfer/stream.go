package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"ftpmirror/internal/fs"
	"ftpmirror/internal/fs/local"
)

// SessionDialer 为每个传输建立独立会话
// 遍历用的会话不是并发安全的，不能给 worker 共用
type SessionDialer func(ctx context.Context) (fs.Session, error)

// StreamExecutor 内部传输客户端：每个文件单独建立一条会话，把远程文件流式写入本地
type StreamExecutor struct {
	dial SessionDialer
}

// NewStreamExecutor 创建内部传输执行器
func NewStreamExecutor(dial SessionDialer) *StreamExecutor {
	return &StreamExecutor{dial: dial}
}

// Start 在后台 goroutine 中开始传输
// 传输上下文与调用方的取消解耦，只能通过 Terminate/Kill 中止
func (e *StreamExecutor) Start(ctx context.Context, t SyncTarget) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransferError{RemotePath: t.RemotePath, ExitCode: ExitTerminated, Err: err}
	}

	tctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &streamHandle{
		id:     uuid.NewString(),
		target: t,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go h.run(tctx, e.dial)
	return h, nil
}

type streamHandle struct {
	id     string
	target SyncTarget
	cancel context.CancelFunc

	done     chan struct{}
	exitCode int
	err      error
}

func (h *streamHandle) ID() string            { return h.id }
func (h *streamHandle) Target() SyncTarget    { return h.target }
func (h *streamHandle) Done() <-chan struct{} { return h.done }

func (h *streamHandle) Wait() (int, error) {
	<-h.done
	return h.exitCode, h.err
}

func (h *streamHandle) Terminate() error {
	h.cancel()
	return nil
}

func (h *streamHandle) Kill() error {
	h.cancel()
	return nil
}

func (h *streamHandle) run(ctx context.Context, dial SessionDialer) {
	defer close(h.done)
	defer h.cancel()

	n, err := h.copy(ctx, dial)
	switch {
	case ctx.Err() != nil:
		h.finish(ExitTerminated, fmt.Errorf("%w: %w", ErrTerminated, ctx.Err()))
	case err != nil:
		h.finish(ExitFailed, err)
	default:
		if n != h.target.Size {
			// 远程文件可能在传输过程中发生了变化，下一轮扫描会再次比较
			slog.Warn("下载大小与列表大小不一致",
				"remote", h.target.RemotePath,
				"listed", humanize.IBytes(uint64(h.target.Size)),
				"written", humanize.IBytes(uint64(n)))
		}
		h.finish(ExitOK, nil)
	}
}

func (h *streamHandle) copy(ctx context.Context, dial SessionDialer) (int64, error) {
	sess, err := dial(ctx)
	if err != nil {
		return 0, err
	}

	// 取消时关闭会话，打断阻塞中的读取
	var closeOnce sync.Once
	closeSession := func() { closeOnce.Do(func() { sess.Close() }) }
	stop := context.AfterFunc(ctx, closeSession)
	defer func() {
		stop()
		closeSession()
	}()

	r, err := sess.Open(h.target.RemotePath)
	if err != nil {
		return 0, err
	}
	n, err := local.WriteFile(h.target.LocalPath(), r)
	if cerr := r.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close remote file: %w", cerr)
	}
	return n, err
}

func (h *streamHandle) finish(code int, err error) {
	h.exitCode = code
	if err != nil {
		h.err = &TransferError{RemotePath: h.target.RemotePath, ExitCode: code, Err: err}
	}
}

var _ Executor = (*StreamExecutor)(nil)
