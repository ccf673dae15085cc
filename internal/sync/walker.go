package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"

	"ftpmirror/internal/fs"
	"ftpmirror/internal/fs/local"
	"ftpmirror/internal/transfer"
)

// DefaultMaxDepth 默认最大递归深度 (根目录为 0)
const DefaultMaxDepth = 64

// Submitter 接收遍历产生的传输目标，由 Pool 实现
type Submitter interface {
	Submit(target transfer.SyncTarget) *Task
}

// WalkStats 单轮遍历统计
type WalkStats struct {
	Dirs         int // 成功列出的目录数
	Files        int // 提交的文件数
	ListErrors   int // 被跳过的子树数 (列目录或创建本地目录失败)
	DepthLimited int // 因超过最大深度而跳过的目录数
	Loops        int // 因符号链接环而跳过的目录数
}

// Walker 在单条连接上深度优先遍历远程目录树
// 使用显式栈而不是递归，深度由 MaxDepth 限制
type Walker struct {
	lister   fs.Lister
	local    *local.Adapter
	template transfer.SyncTarget
	submit   Submitter
	maxDepth int
}

type dirFrame struct {
	remote   string   // 远程绝对路径
	localRel string   // 相对本地根目录的路径
	depth    int
	parents  []string // 祖先目录的规范路径，只读，子帧共享
}

// NewWalker 创建遍历器
// template 提供协议、主机、凭据等公共字段，遍历时为每个文件填充路径与大小
func NewWalker(lister fs.Lister, localFS *local.Adapter, template transfer.SyncTarget, submit Submitter, maxDepth int) *Walker {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Walker{
		lister:   lister,
		local:    localFS,
		template: template,
		submit:   submit,
		maxDepth: maxDepth,
	}
}

// Walk 遍历 remoteRoot，确保本地目录结构存在，并为每个文件提交一个任务
//
// 错误策略：根目录列出失败、连接断开或被中断时返回错误 (本轮失败)；
// 其它子目录错误只记录日志并跳过该子树
func (w *Walker) Walk(ctx context.Context, remoteRoot string) (WalkStats, error) {
	var stats WalkStats
	resolver, _ := w.lister.(fs.Resolver)

	stack := []dirFrame{{remote: path.Clean(remoteRoot), localRel: ".", depth: 0}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("%w: %w", ErrInterrupted, err)
		}

		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// 只有指向自身祖先的链接才构成环，指向兄弟目录的别名照常遍历
		canonical := f.remote
		if resolver != nil {
			if p, err := resolver.RealPath(f.remote); err == nil {
				canonical = p
			}
			if slices.Contains(f.parents, canonical) {
				slog.Warn("检测到目录环，跳过", "remote", f.remote, "canonical", canonical)
				stats.Loops++
				continue
			}
		}

		if f.depth > 0 {
			slog.Info("进入目录", "remote", f.remote)
		}

		entries, err := w.visit(ctx, f)
		if err != nil {
			if ctx.Err() != nil {
				return stats, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
			}
			if f.depth == 0 || errors.Is(err, fs.ErrConnectionLost) {
				return stats, err
			}
			slog.Error("跳过子目录", "remote", f.remote, "err", err)
			stats.ListErrors++
			continue
		}
		stats.Dirs++

		var subdirs []dirFrame
		chain := append(f.parents[:len(f.parents):len(f.parents)], canonical)
		for _, e := range entries {
			remotePath := path.Join(f.remote, e.Name)
			switch e.Kind {
			case fs.KindDirectory:
				if f.depth+1 > w.maxDepth {
					slog.Warn("超过最大目录深度，跳过", "remote", remotePath, "max_depth", w.maxDepth)
					stats.DepthLimited++
					continue
				}
				subdirs = append(subdirs, dirFrame{
					remote:   remotePath,
					localRel: path.Join(f.localRel, e.Name),
					depth:    f.depth + 1,
					parents:  chain,
				})
			case fs.KindFile:
				target := w.template
				target.RemotePath = remotePath
				target.LocalDir = w.local.SysPath(f.localRel)
				target.LocalName = e.Name
				target.Size = e.Size
				w.submit.Submit(target)
				stats.Files++
			default:
				slog.Debug("忽略目录项", "remote", remotePath, "kind", e.Kind.String())
			}
		}

		// 逆序压栈，保证按列表顺序深度优先
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}
	return stats, nil
}

// visit 创建本地目录并列出远程目录
func (w *Walker) visit(ctx context.Context, f dirFrame) ([]fs.RemoteEntry, error) {
	if err := w.local.EnsureDir(f.localRel); err != nil {
		return nil, err
	}
	return w.lister.List(ctx, f.remote)
}
