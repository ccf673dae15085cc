package sync

import (
	"errors"
	gosync "sync"

	"ftpmirror/internal/transfer"
)

// ErrInterrupted 用户中断 (SIGINT/SIGTERM) 导致的退出
var ErrInterrupted = errors.New("interrupted")

// OpType 定义同步操作类型
type OpType int

const (
	OpSkip     OpType = iota // 跳过 (已同步或被过滤)
	OpDownload               // 下载 (远程 -> 本地)
)

func (o OpType) String() string {
	if o == OpDownload {
		return "download"
	}
	return "skip"
}

// 决策原因 (用于日志和传输记录)
const (
	ReasonFiltered     = "filtered"
	ReasonMissing      = "missing"
	ReasonSameSize     = "same-size"
	ReasonSizeMismatch = "size-mismatch"
	ReasonForced       = "forced"
)

// Decision 同步决策结果
type Decision struct {
	Op     OpType
	Reason string
}

// TaskState 任务生命周期: Created -> Running -> Completed | Failed
type TaskState int

const (
	TaskCreated TaskState = iota
	TaskRunning
	TaskCompleted
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return "created"
	}
}

// Terminal 是否为终态
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task 一个已提交给 Pool 的传输任务。失败即终态，不会重试
type Task struct {
	ID     int
	Target transfer.SyncTarget

	mu       gosync.Mutex
	state    TaskState
	decision Decision
	exitCode int
	err      error
}

func (t *Task) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) Decision() Decision {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.decision
}

func (t *Task) ExitCode() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exitCode
}

func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task) start() {
	t.mu.Lock()
	t.state = TaskRunning
	t.mu.Unlock()
}

func (t *Task) decide(d Decision) {
	t.mu.Lock()
	t.decision = d
	t.mu.Unlock()
}

func (t *Task) finish(exitCode int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exitCode = exitCode
	t.err = err
	if err != nil {
		t.state = TaskFailed
	} else {
		t.state = TaskCompleted
	}
}
