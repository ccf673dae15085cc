package sync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	gosync "sync"
	"sync/atomic"

	"ftpmirror/internal/database"
	"ftpmirror/internal/fs"
	"ftpmirror/internal/transfer"
)

// fakeTree 内存中的远程目录树
type fakeTree struct {
	mu        gosync.Mutex
	dirs      map[string][]fs.RemoteEntry
	errs      map[string]error
	realPaths map[string]string // resolvingTree.RealPath 的结果
	listed    []string
	closed    bool
}

func newFakeTree() *fakeTree {
	return &fakeTree{dirs: make(map[string][]fs.RemoteEntry), errs: make(map[string]error)}
}

func (t *fakeTree) dir(p string, entries ...fs.RemoteEntry) *fakeTree {
	t.dirs[p] = entries
	return t
}

func file(name string, size int64) fs.RemoteEntry {
	return fs.RemoteEntry{Name: name, Kind: fs.KindFile, Size: size}
}

func dir(name string) fs.RemoteEntry {
	return fs.RemoteEntry{Name: name, Kind: fs.KindDirectory}
}

func (t *fakeTree) List(ctx context.Context, p string) ([]fs.RemoteEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listed = append(t.listed, p)
	if err, ok := t.errs[p]; ok {
		return nil, fs.NewListError(p, err)
	}
	entries, ok := t.dirs[p]
	if !ok {
		return nil, fs.NewListError(p, fs.ErrNotFound)
	}
	return entries, nil
}

func (t *fakeTree) Open(p string) (io.ReadCloser, error) {
	return nil, fs.ErrNotFound
}

func (t *fakeTree) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *fakeTree) Listed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.listed...)
}

// resolvingTree 额外实现 fs.Resolver
type resolvingTree struct {
	*fakeTree
}

func (t resolvingTree) RealPath(p string) (string, error) {
	if r, ok := t.realPaths[p]; ok {
		return r, nil
	}
	return p, nil
}

// fakeExecutor 成功时把 Size 个字节写到本地路径；gate 非 nil 时等待放行
type fakeExecutor struct {
	gate  chan struct{}
	fail  map[string]bool
	start chan string

	mu      gosync.Mutex
	started []string

	inFlight atomic.Int32
	maxSeen  atomic.Int32
	seq      atomic.Int32
}

func (e *fakeExecutor) Start(ctx context.Context, target transfer.SyncTarget) (transfer.Handle, error) {
	e.mu.Lock()
	e.started = append(e.started, target.RemotePath)
	e.mu.Unlock()

	n := e.inFlight.Add(1)
	for {
		m := e.maxSeen.Load()
		if n <= m || e.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	h := &fakeHandle{
		id:     fmt.Sprintf("fake-%d", e.seq.Add(1)),
		target: target,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		defer e.inFlight.Add(-1)
		if e.gate != nil {
			select {
			case <-e.gate:
			case <-h.stop:
				h.code = transfer.ExitTerminated
				h.err = &transfer.TransferError{RemotePath: target.RemotePath, ExitCode: h.code, Err: transfer.ErrTerminated}
				return
			}
		}
		if e.fail[target.RemotePath] {
			h.code = transfer.ExitFailed
			h.err = &transfer.TransferError{RemotePath: target.RemotePath, ExitCode: h.code}
			return
		}
		if err := os.MkdirAll(target.LocalDir, 0o755); err != nil {
			h.code, h.err = transfer.ExitFailed, err
			return
		}
		if err := os.WriteFile(filepath.Join(target.LocalDir, target.LocalName), make([]byte, target.Size), 0o644); err != nil {
			h.code, h.err = transfer.ExitFailed, err
		}
	}()

	if e.start != nil {
		e.start <- target.RemotePath
	}
	return h, nil
}

func (e *fakeExecutor) Started() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.started...)
}

type fakeHandle struct {
	id     string
	target transfer.SyncTarget
	once   gosync.Once
	stop   chan struct{}
	done   chan struct{}
	code   int
	err    error
}

func (h *fakeHandle) ID() string                  { return h.id }
func (h *fakeHandle) Target() transfer.SyncTarget { return h.target }
func (h *fakeHandle) Done() <-chan struct{}       { return h.done }
func (h *fakeHandle) Kill() error                 { return h.Terminate() }

func (h *fakeHandle) Terminate() error {
	h.once.Do(func() { close(h.stop) })
	return nil
}

func (h *fakeHandle) Wait() (int, error) {
	<-h.done
	return h.code, h.err
}

// memJournal 记录写入的传输和扫描记录
type memJournal struct {
	mu        gosync.Mutex
	transfers []database.TransferRecord
	passes    []database.PassRecord
	passC     chan database.PassRecord
}

func (j *memJournal) RecordTransfer(rec database.TransferRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.transfers = append(j.transfers, rec)
	return nil
}

func (j *memJournal) RecordPass(rec database.PassRecord) error {
	j.mu.Lock()
	j.passes = append(j.passes, rec)
	j.mu.Unlock()
	if j.passC != nil {
		select {
		case j.passC <- rec:
		default:
		}
	}
	return nil
}

func (j *memJournal) Passes() []database.PassRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]database.PassRecord(nil), j.passes...)
}

// recordingSubmitter 只收集遍历产生的目标
type recordingSubmitter struct {
	targets []transfer.SyncTarget
}

func (s *recordingSubmitter) Submit(target transfer.SyncTarget) *Task {
	s.targets = append(s.targets, target)
	return &Task{ID: len(s.targets), Target: target}
}

func (s *recordingSubmitter) paths() []string {
	out := make([]string, 0, len(s.targets))
	for _, t := range s.targets {
		out = append(out, t.RemotePath)
	}
	return out
}
