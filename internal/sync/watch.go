package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ftpmirror/internal/fs"
)

// Run 连接服务器并执行同步
// 非 watch 模式：执行一轮后返回。watch 模式：每轮结束后等待 WatchInterval 再开始下一轮，
// 直到 ctx 被取消 (返回 ErrInterrupted)
//
// 首次连接失败直接返回 (*fs.ConnectionError)；watch 模式下连接中途断开时，
// 下一轮开始前重新连接，重连失败则等到再下一轮
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return interrupted(ctx)
		}
		return err
	}
	defer e.Close()

	for {
		err := e.runOnce(ctx)
		if ctx.Err() != nil {
			return interrupted(ctx)
		}
		if !e.opts.Watch {
			return err
		}
		if err != nil {
			slog.Error("本轮同步失败，等待下一轮", "err", err)
		}

		slog.Info("等待下一轮同步", "interval", e.opts.WatchInterval)
		timer := time.NewTimer(e.opts.WatchInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return interrupted(ctx)
		case <-timer.C:
		}
	}
}

func (e *Engine) runOnce(ctx context.Context) error {
	if e.session == nil {
		if err := e.Connect(ctx); err != nil {
			return fmt.Errorf("reconnect: %w", err)
		}
	}

	_, err := e.RunPass(ctx)
	if errors.Is(err, fs.ErrConnectionLost) {
		slog.Warn("连接已断开，下一轮将重新连接", "err", err)
		if cerr := e.Close(); cerr != nil {
			slog.Debug("关闭断开的会话失败", "err", cerr)
		}
	}
	return err
}

func interrupted(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
}
