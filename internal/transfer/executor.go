package transfer

import (
	"context"
	"errors"
	"fmt"
)

// 传输进程的约定退出码
const (
	ExitOK         = 0
	ExitFailed     = 1
	ExitTerminated = 130
)

// ErrTerminated 传输被 Terminate/Kill 中止
var ErrTerminated = errors.New("transfer terminated")

// Executor 启动一次文件传输，不等待其结束
type Executor interface {
	Start(ctx context.Context, target SyncTarget) (Handle, error)
}

// Handle 一个正在运行的传输 (子进程或内部传输任务)
type Handle interface {
	ID() string
	Target() SyncTarget

	// Wait 阻塞直到传输结束，返回退出码；退出码非 0 时 error 为 *TransferError
	Wait() (int, error)

	// Done 在传输结束后关闭
	Done() <-chan struct{}

	// Terminate 请求优雅终止 (相当于 SIGTERM)
	Terminate() error

	// Kill 强制终止
	Kill() error
}

// TransferError 单个文件传输失败，只影响该文件
type TransferError struct {
	RemotePath string
	ExitCode   int
	Detail     string // 外部程序 stderr 的末尾部分
	Err        error
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("transfer %s failed with exit code %d", e.RemotePath, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *TransferError) Unwrap() error { return e.Err }
