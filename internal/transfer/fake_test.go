package transfer

import (
	"sync"
	"sync/atomic"
)

// fakeHandle 可控的传输句柄：ignoreTerm 为 true 时只响应 Kill
type fakeHandle struct {
	id         string
	target     SyncTarget
	ignoreTerm bool

	done  chan struct{}
	once  sync.Once
	terms atomic.Int32
	kills atomic.Int32
}

func newFakeHandle(id string, ignoreTerm bool) *fakeHandle {
	return &fakeHandle{
		id:         id,
		target:     SyncTarget{RemotePath: "/" + id},
		ignoreTerm: ignoreTerm,
		done:       make(chan struct{}),
	}
}

func (h *fakeHandle) ID() string            { return h.id }
func (h *fakeHandle) Target() SyncTarget    { return h.target }
func (h *fakeHandle) Done() <-chan struct{} { return h.done }
func (h *fakeHandle) finish()               { h.once.Do(func() { close(h.done) }) }

func (h *fakeHandle) Wait() (int, error) {
	<-h.done
	return ExitTerminated, nil
}

func (h *fakeHandle) Terminate() error {
	h.terms.Add(1)
	if !h.ignoreTerm {
		h.finish()
	}
	return nil
}

func (h *fakeHandle) Kill() error {
	h.kills.Add(1)
	h.finish()
	return nil
}
