package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"ftpmirror/internal/database"
	"ftpmirror/internal/fs/local"
	"ftpmirror/internal/transfer"
)

// Journal 可选的传输记录存储
type Journal interface {
	RecordTransfer(rec database.TransferRecord) error
	RecordPass(rec database.PassRecord) error
}

// PoolOptions 初始化选项
type PoolOptions struct {
	MaxConcurrency int
	Executor       transfer.Executor
	Registry       *transfer.Registry
	Journal        Journal // 可为 nil
	PassID         string
}

// Pool 有界并发的任务池。生命周期为一轮扫描：
// Submit 把任务追加到无界 FIFO 队列，MaxConcurrency 个 worker 依次取出执行，
// Wait 是本轮的屏障，返回时所有已提交任务都处于终态
type Pool struct {
	opts *PoolOptions
	ctx  context.Context

	mu     gosync.Mutex
	cond   *gosync.Cond
	queue  []*Task
	tasks  []*Task
	closed bool

	g        errgroup.Group
	stopWake func() bool
}

// NewPool 创建任务池并启动 worker
func NewPool(ctx context.Context, opts *PoolOptions) *Pool {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if opts.Registry == nil {
		opts.Registry = transfer.NewRegistry()
	}

	p := &Pool{opts: opts, ctx: ctx}
	p.cond = gosync.NewCond(&p.mu)

	// 上下文取消时唤醒所有空闲 worker
	p.stopWake = context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})

	for i := 0; i < opts.MaxConcurrency; i++ {
		id := i
		p.g.Go(func() error {
			p.worker(id)
			return nil
		})
	}
	return p
}

// Submit 提交一个传输任务，不会阻塞
func (p *Pool) Submit(target transfer.SyncTarget) *Task {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := &Task{ID: len(p.tasks) + 1, Target: target}
	p.tasks = append(p.tasks, t)
	if p.closed {
		// Wait 之后的提交不会被执行
		t.finish(-1, fmt.Errorf("submit after pool closed: %s", target.RemotePath))
		return t
	}
	p.queue = append(p.queue, t)
	p.cond.Signal()
	return t
}

// Wait 关闭队列并等待所有任务结束
// 上下文被取消时，尚未开始的任务标记为失败 (ErrInterrupted)
func (p *Pool) Wait() []*Task {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	_ = p.g.Wait()
	p.stopWake()

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.queue {
		p.fail(t, fmt.Errorf("%w: %s not started", ErrInterrupted, t.Target.RemotePath))
	}
	p.queue = nil
	return append([]*Task(nil), p.tasks...)
}

// next 取出下一个任务；队列已关闭且为空，或上下文已取消时返回 false
func (p *Pool) next() (*Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed && p.ctx.Err() == nil {
		p.cond.Wait()
	}
	if len(p.queue) == 0 || p.ctx.Err() != nil {
		return nil, false
	}
	t := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return t, true
}

func (p *Pool) worker(id int) {
	for {
		t, ok := p.next()
		if !ok {
			return
		}
		p.run(id, t)
	}
}

// run 处理单个任务：检查本地文件 -> 决策 -> (下载)
// 本地检查和传输在同一个任务内完成，同一轮中不会有其它任务写同一个本地路径
func (p *Pool) run(workerID int, t *Task) {
	t.start()
	target := t.Target
	localPath := target.LocalPath()

	lf, err := local.Stat(localPath)
	if err != nil {
		p.fail(t, fmt.Errorf("stat local %s: %w", localPath, err))
		return
	}

	d := Decide(target.LocalName, lf, target.Size, target.Force, ParseExtensionFilter(target.ExtensionFilter))
	t.decide(d)

	if d.Op == OpSkip {
		slog.Info("跳过",
			"remote", target.RemotePath,
			"local", localPath,
			"reason", d.Reason,
			"size", humanize.IBytes(uint64(target.Size)))
		p.complete(t, 0)
		return
	}

	attrs := []any{
		"worker", workerID,
		"remote", target.RemotePath,
		"local", localPath,
		"reason", d.Reason,
		"size", humanize.IBytes(uint64(target.Size)),
	}
	if lf.Exists {
		attrs = append(attrs, "local_size", humanize.IBytes(uint64(lf.Size)))
	}
	slog.Info("开始下载", attrs...)

	h, err := p.opts.Executor.Start(p.ctx, target)
	if err != nil {
		p.fail(t, err)
		return
	}

	if !p.opts.Registry.Register(h) {
		// 正在退出，协调器已经遍历过登记表，由这里自行终止
		transfer.Stop(h, transfer.DefaultGrace, transfer.DefaultKillWait)
	}
	code, err := h.Wait()
	p.opts.Registry.Deregister(h)

	if err != nil {
		p.failCode(t, code, err)
		return
	}
	slog.Info("下载完成", "remote", target.RemotePath, "local", localPath)
	p.complete(t, code)
}

func (p *Pool) complete(t *Task, code int) {
	t.finish(code, nil)
	p.record(t)
}

func (p *Pool) fail(t *Task, err error) {
	p.failCode(t, -1, err)
}

func (p *Pool) failCode(t *Task, code int, err error) {
	t.finish(code, err)
	slog.Error("传输失败", "remote", t.Target.RemotePath, "exit_code", code, "err", err)
	p.record(t)
}

func (p *Pool) record(t *Task) {
	if p.opts.Journal == nil {
		return
	}
	d := t.Decision()
	rec := database.TransferRecord{
		RemotePath: t.Target.RemotePath,
		LocalPath:  t.Target.LocalPath(),
		Size:       t.Target.Size,
		Op:         d.Op.String(),
		Reason:     d.Reason,
		State:      t.State().String(),
		ExitCode:   t.ExitCode(),
		PassID:     p.opts.PassID,
	}
	if err := t.Err(); err != nil {
		rec.Error = err.Error()
	}
	if err := p.opts.Journal.RecordTransfer(rec); err != nil {
		slog.Warn("写入传输记录失败", "remote", rec.RemotePath, "err", err)
	}
}
