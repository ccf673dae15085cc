package fs

import (
	"errors"
	"fmt"
	"io"
	"net"
)

var (
	ErrNotFound       = errors.New("remote path not found")
	ErrPermission     = errors.New("permission denied")
	ErrConnectionLost = errors.New("connection lost")
)

// ListError 列目录失败。Err 通常包装了上面的某个哨兵错误
type ListError struct {
	Path string
	Err  error
}

func (e *ListError) Error() string {
	return fmt.Sprintf("list %s: %v", e.Path, e.Err)
}

func (e *ListError) Unwrap() error { return e.Err }

// ConnectionError 建立连接或登录失败
type ConnectionError struct {
	Protocol Protocol
	Addr     string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s://%s: %v", e.Protocol, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionLoss 判断一个底层错误是否意味着连接已断开
func IsConnectionLoss(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectionLost) || errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// NewListError 统一包装列目录错误，连接类错误附加 ErrConnectionLost
func NewListError(path string, err error) *ListError {
	if IsConnectionLoss(err) && !errors.Is(err, ErrConnectionLost) {
		err = fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	return &ListError{Path: path, Err: err}
}
