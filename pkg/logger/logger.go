package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ParseLevel 解析日志等级，无法识别时返回 Info
// levelStr: "debug", "info", "warn", "error"
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New 创建 Logger
// format: "text" (默认) 或 "json"
func New(w io.Writer, levelStr, format string) *slog.Logger {
	level := ParseLevel(levelStr)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // 仅在 Debug 模式下显示文件名和行号
	}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup 初始化全局日志配置
// logPath: 日志文件路径 (如果为空则只输出到标准错误)
// 返回的 Closer 用于在退出时关闭日志文件
func Setup(levelStr, format, logPath string) (io.Closer, error) {
	var writer io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if logPath != "" {
		// 确保日志目录存在
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return nil, err
		}

		// 打开日志文件 (追加模式)
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return nil, err
		}

		// 同时输出到控制台和文件
		writer = io.MultiWriter(os.Stderr, file)
		closer = file
	}

	slog.SetDefault(New(writer, levelStr, format))
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
