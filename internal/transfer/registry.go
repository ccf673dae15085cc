package transfer

import (
	"sync"
)

// Registry 当前正在运行的传输集合
// 由 worker 在传输开始/结束时增删，由 Coordinator 在退出时遍历
type Registry struct {
	mu      sync.Mutex
	handles map[string]Handle
	closed  bool
}

// NewRegistry 创建空的传输登记表
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]Handle)}
}

// Register 登记一个传输。登记表已关闭 (正在退出) 时返回 false，
// 调用方需要自行终止该传输
func (r *Registry) Register(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.handles[h.ID()] = h
	return true
}

// Deregister 移除一个传输
func (r *Registry) Deregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, h.ID())
}

// Len 当前登记的传输数
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Close 拒绝后续登记，并返回关闭时刻仍在运行的传输
func (r *Registry) Close() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() []Handle {
	out := make([]Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	return out
}
