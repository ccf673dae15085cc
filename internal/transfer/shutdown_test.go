package transfer

import (
	"fmt"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinatorShutdown(t *testing.T) {
	r := NewRegistry()
	polite := []*fakeHandle{newFakeHandle("a", false), newFakeHandle("b", false), newFakeHandle("c", false)}
	stubborn := newFakeHandle("stubborn", true)
	for _, h := range polite {
		r.Register(h)
	}
	r.Register(stubborn)

	c := NewCoordinator(r)
	c.Grace = 50 * time.Millisecond
	c.KillWait = 50 * time.Millisecond

	start := time.Now()
	assert.Equal(t, 4, c.Shutdown())
	assert.Less(t, time.Since(start), time.Second)

	for _, h := range polite {
		assert.EqualValues(t, 1, h.terms.Load())
		assert.EqualValues(t, 0, h.kills.Load(), h.id)
	}
	assert.EqualValues(t, 1, stubborn.terms.Load())
	assert.EqualValues(t, 1, stubborn.kills.Load())

	// 只执行一次，之后的登记被拒绝
	assert.Equal(t, 4, c.Shutdown())
	assert.EqualValues(t, 1, stubborn.terms.Load())
	assert.False(t, r.Register(newFakeHandle("late", false)))
}

func TestCoordinatorShutdownEmpty(t *testing.T) {
	assert.Equal(t, 0, NewCoordinator(NewRegistry()).Shutdown())
}

func TestCoordinatorStopsRealProcesses(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs unix signals")
	}
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	r := NewRegistry()
	var handles []Handle
	for i := 0; i < 3; i++ {
		cmd := exec.Command("sleep", "30")
		require.NoError(t, cmd.Start())
		h := &processHandle{
			id:     fmt.Sprintf("sleep-%d", i),
			target: SyncTarget{RemotePath: "/slow"},
			cmd:    cmd,
			stderr: &tailBuffer{max: 64},
			done:   make(chan struct{}),
		}
		go h.wait()
		require.True(t, r.Register(h))
		handles = append(handles, h)
	}

	c := NewCoordinator(r)
	c.Grace = 2 * time.Second

	start := time.Now()
	assert.Equal(t, 3, c.Shutdown())
	assert.Less(t, time.Since(start), c.Grace+c.KillWait)

	for _, h := range handles {
		select {
		case <-h.Done():
		default:
			t.Fatalf("process %s still running", h.ID())
		}
		code, err := h.Wait()
		assert.Equal(t, ExitTerminated, code)
		assert.ErrorIs(t, err, ErrTerminated)
	}
}
