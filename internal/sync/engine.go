package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ftpmirror/internal/database"
	"ftpmirror/internal/fs"
	"ftpmirror/internal/fs/local"
	"ftpmirror/internal/transfer"
)

// EngineOptions 初始化选项
type EngineOptions struct {
	// Dial 建立遍历用的会话，断线后用于重连
	Dial func(ctx context.Context) (fs.Session, error)

	// Template 每个 SyncTarget 的公共字段 (协议、主机、凭据、连接数、force、过滤器)
	Template transfer.SyncTarget

	RemoteDir      string
	LocalDir       string
	MaxConcurrency int
	MaxDepth       int

	Executor transfer.Executor
	Registry *transfer.Registry
	Journal  Journal // 可为 nil

	Watch         bool
	WatchInterval time.Duration
}

// PassResult 一轮扫描的结果
type PassResult struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Walk       WalkStats
	Downloaded int
	Skipped    int
	Failed     int
	Tasks      []*Task
}

// Engine 驱动遍历、调度与 watch 循环
// 同一时刻只有一条会话用于遍历，且只在调用 Run/RunPass 的 goroutine 中使用
type Engine struct {
	opts    *EngineOptions
	local   *local.Adapter
	session fs.Session
}

// NewEngine 创建同步引擎
func NewEngine(opts *EngineOptions) *Engine {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if opts.RemoteDir == "" {
		opts.RemoteDir = "/"
	}
	if opts.WatchInterval <= 0 {
		opts.WatchInterval = 30 * time.Second
	}
	if opts.Registry == nil {
		opts.Registry = transfer.NewRegistry()
	}
	return &Engine{
		opts:  opts,
		local: local.NewAdapter(opts.LocalDir),
	}
}

// Connect 建立遍历会话 (已连接时什么也不做)
func (e *Engine) Connect(ctx context.Context) error {
	if e.session != nil {
		return nil
	}
	t := e.opts.Template
	slog.Info("正在连接服务器...", "protocol", t.Protocol, "host", t.Host, "port", t.Port, "credentials", t.Credentials)
	sess, err := e.opts.Dial(ctx)
	if err != nil {
		return err
	}
	e.session = sess
	slog.Info("连接成功")
	return nil
}

// Close 关闭遍历会话
func (e *Engine) Close() error {
	if e.session == nil {
		return nil
	}
	err := e.session.Close()
	e.session = nil
	return err
}

// RunPass 执行一轮完整扫描：遍历远程树、调度传输、等待所有任务结束
// 即使遍历出错也会等待已提交的任务完成后再返回
func (e *Engine) RunPass(ctx context.Context) (*PassResult, error) {
	if e.session == nil {
		return nil, fmt.Errorf("run pass: %w", fs.ErrConnectionLost)
	}

	res := &PassResult{ID: uuid.NewString(), StartedAt: time.Now()}
	slog.Info(">>> 开始同步", "pass", res.ID, "remote_dir", e.opts.RemoteDir, "local_dir", e.local.Root())

	pool := NewPool(ctx, &PoolOptions{
		MaxConcurrency: e.opts.MaxConcurrency,
		Executor:       e.opts.Executor,
		Registry:       e.opts.Registry,
		Journal:        e.opts.Journal,
		PassID:         res.ID,
	})
	walker := NewWalker(e.session, e.local, e.opts.Template, pool, e.opts.MaxDepth)

	stats, walkErr := walker.Walk(ctx, e.opts.RemoteDir)
	if walkErr != nil {
		slog.Error("遍历中止，等待已提交的任务结束", "err", walkErr)
	}

	// 屏障：本轮所有任务进入终态
	res.Tasks = pool.Wait()
	res.Walk = stats
	res.FinishedAt = time.Now()
	for _, t := range res.Tasks {
		switch {
		case t.State() == TaskFailed:
			res.Failed++
		case t.Decision().Op == OpDownload:
			res.Downloaded++
		default:
			res.Skipped++
		}
	}

	slog.Info("<<< 同步结束",
		"pass", res.ID,
		"dirs", stats.Dirs,
		"files", stats.Files,
		"downloaded", res.Downloaded,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"list_errors", stats.ListErrors,
		"elapsed", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))

	e.recordPass(res, walkErr)
	return res, walkErr
}

func (e *Engine) recordPass(res *PassResult, walkErr error) {
	if e.opts.Journal == nil {
		return
	}
	rec := database.PassRecord{
		ID:         res.ID,
		RemoteDir:  e.opts.RemoteDir,
		LocalDir:   e.local.Root(),
		StartedAt:  res.StartedAt.UnixNano(),
		FinishedAt: res.FinishedAt.UnixNano(),
		Dirs:       res.Walk.Dirs,
		Files:      res.Walk.Files,
		Downloaded: res.Downloaded,
		Skipped:    res.Skipped,
		Failed:     res.Failed,
		ListErrors: res.Walk.ListErrors,
	}
	if walkErr != nil {
		rec.Error = walkErr.Error()
	}
	if err := e.opts.Journal.RecordPass(rec); err != nil {
		slog.Warn("写入扫描记录失败", "pass", res.ID, "err", err)
	}
}
