package transfer

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultGrace Terminate 之后等待传输自行退出的时间
	DefaultGrace = 5 * time.Second
	// DefaultKillWait Kill 之后最多再等待的时间
	DefaultKillWait = 2 * time.Second
)

// Coordinator 在收到中断信号或发生致命错误时停止所有在途传输
type Coordinator struct {
	registry *Registry
	Grace    time.Duration
	KillWait time.Duration

	once    sync.Once
	stopped int
}

// NewCoordinator 创建退出协调器
func NewCoordinator(registry *Registry) *Coordinator {
	return &Coordinator{
		registry: registry,
		Grace:    DefaultGrace,
		KillWait: DefaultKillWait,
	}
}

// Shutdown 关闭登记表并并发停止所有在途传输，返回被停止的传输数
// 多次调用只执行一次。已下载的部分文件保留在磁盘上
func (c *Coordinator) Shutdown() int {
	c.once.Do(func() {
		handles := c.registry.Close()
		c.stopped = len(handles)
		if len(handles) == 0 {
			return
		}

		slog.Info("正在停止所有传输...", "count", len(handles), "grace", c.Grace)
		var wg sync.WaitGroup
		for _, h := range handles {
			wg.Add(1)
			go func(h Handle) {
				defer wg.Done()
				Stop(h, c.Grace, c.KillWait)
			}(h)
		}
		wg.Wait()
		slog.Info("所有传输已停止")
	})
	return c.stopped
}

// Stop 先请求优雅终止，超过 grace 仍未退出则强制终止
func Stop(h Handle, grace, killWait time.Duration) {
	remote := h.Target().RemotePath
	if err := h.Terminate(); err != nil {
		slog.Debug("发送终止信号失败", "remote", remote, "err", err)
	}

	select {
	case <-h.Done():
		return
	case <-time.After(grace):
	}

	slog.Warn("传输未在宽限期内退出，强制终止", "remote", remote, "id", h.ID())
	if err := h.Kill(); err != nil {
		slog.Error("强制终止失败", "remote", remote, "err", err)
	}

	select {
	case <-h.Done():
	case <-time.After(killWait):
		slog.Error("强制终止后传输仍未退出", "remote", remote, "id", h.ID())
	}
}
