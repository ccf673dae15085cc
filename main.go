package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ftpmirror/internal/cli"
)

func main() {
	// SIGINT/SIGTERM 取消上下文，由同步引擎和退出协调器负责停止所有传输
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}
