package transfer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ftpmirror/internal/fs"
)

type memSession struct {
	files  map[string]string
	block  bool
	mu     sync.Mutex
	closed bool
	closeC chan struct{}
}

func newMemSession(files map[string]string) *memSession {
	return &memSession{files: files, closeC: make(chan struct{})}
}

func (s *memSession) List(ctx context.Context, p string) ([]fs.RemoteEntry, error) {
	return nil, nil
}

func (s *memSession) Open(p string) (io.ReadCloser, error) {
	if s.block {
		return &blockingReader{closeC: s.closeC}, nil
	}
	data, ok := s.files[p]
	if !ok {
		return nil, fs.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func (s *memSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.closeC)
	}
	return nil
}

// blockingReader 直到会话关闭才返回
type blockingReader struct{ closeC chan struct{} }

func (r *blockingReader) Read(p []byte) (int, error) {
	<-r.closeC
	return 0, io.ErrClosedPipe
}

func (r *blockingReader) Close() error { return nil }

func TestStreamExecutorDownloads(t *testing.T) {
	sess := newMemSession(map[string]string{"/a/file1.txt": "0123456789"})
	e := NewStreamExecutor(func(ctx context.Context) (fs.Session, error) { return sess, nil })

	dir := t.TempDir()
	h, err := e.Start(context.Background(), SyncTarget{RemotePath: "/a/file1.txt", LocalDir: dir, LocalName: "file1.txt", Size: 10})
	require.NoError(t, err)

	code, err := h.Wait()
	require.NoError(t, err)
	assert.Equal(t, ExitOK, code)

	data, err := os.ReadFile(filepath.Join(dir, "file1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
	assert.True(t, sess.closed)
}

func TestStreamExecutorMissingRemote(t *testing.T) {
	sess := newMemSession(nil)
	e := NewStreamExecutor(func(ctx context.Context) (fs.Session, error) { return sess, nil })

	h, err := e.Start(context.Background(), SyncTarget{RemotePath: "/gone", LocalDir: t.TempDir(), LocalName: "gone"})
	require.NoError(t, err)

	code, err := h.Wait()
	assert.Equal(t, ExitFailed, code)
	assert.ErrorIs(t, err, fs.ErrNotFound)
}

func TestStreamExecutorDialFailure(t *testing.T) {
	dialErr := errors.New("connection refused")
	e := NewStreamExecutor(func(ctx context.Context) (fs.Session, error) { return nil, dialErr })

	h, err := e.Start(context.Background(), SyncTarget{RemotePath: "/x", LocalDir: t.TempDir(), LocalName: "x"})
	require.NoError(t, err)

	code, err := h.Wait()
	assert.Equal(t, ExitFailed, code)
	assert.ErrorIs(t, err, dialErr)
}

func TestStreamExecutorTerminate(t *testing.T) {
	sess := newMemSession(nil)
	sess.block = true
	e := NewStreamExecutor(func(ctx context.Context) (fs.Session, error) { return sess, nil })

	h, err := e.Start(context.Background(), SyncTarget{RemotePath: "/big", LocalDir: t.TempDir(), LocalName: "big"})
	require.NoError(t, err)

	require.NoError(t, h.Terminate())
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("transfer did not stop after Terminate")
	}

	code, err := h.Wait()
	assert.Equal(t, ExitTerminated, code)
	assert.ErrorIs(t, err, ErrTerminated)
}
