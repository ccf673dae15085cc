package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"ftpmirror/internal/config"
	"ftpmirror/internal/database"
	"ftpmirror/internal/fs"
	"ftpmirror/internal/fs/remote"
	syncer "ftpmirror/internal/sync"
	"ftpmirror/internal/transfer"
	"ftpmirror/pkg/logger"
)

// Version 通过 -ldflags "-X ftpmirror/internal/cli.Version=..." 注入
var Version = "dev"

// 进程退出码
const (
	ExitOK    = 0
	ExitError = 1
)

// NewRootCommand 创建 ftpmirror 根命令
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ftpmirror",
		Short:         "把 FTP/SFTP 服务器上的目录树镜像到本地",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			closer, err := logger.Setup(cfg.System.LogLevel, cfg.System.LogFormat, cfg.System.LogFile)
			if err != nil {
				return fmt.Errorf("日志初始化失败: %w", err)
			}
			defer closer.Close()

			return runMirror(cmd.Context(), cfg)
		},
	}
	config.BindFlags(cmd.Flags())
	cmd.AddCommand(newHistoryCommand())
	return cmd
}

// Execute 运行命令行并返回进程退出码
func Execute(ctx context.Context, args []string, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	code := ExitCode(err)
	if code != ExitOK {
		fmt.Fprintln(stderr, "错误:", err)
	}
	return code
}

// ExitCode 正常结束或被用户中断返回 0，其它错误返回 1
func ExitCode(err error) int {
	if err == nil || errors.Is(err, syncer.ErrInterrupted) {
		return ExitOK
	}
	return ExitError
}

// loadConfig 读取配置文件 (可选)，合并命令行参数后校验
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString(config.FlagConfig)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyFlags(cmd.Flags(), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效:\n%w", err)
	}
	return cfg, nil
}

// dialParams 建立远程会话的参数
func dialParams(cfg *config.Config) remote.Params {
	return remote.Params{
		Protocol:       cfg.Remote.ProtocolValue,
		Host:           cfg.Remote.Host,
		Port:           cfg.Remote.Port,
		Credentials:    cfg.Remote.Credentials(),
		Timeout:        cfg.Remote.TimeoutDuration,
		KnownHostsFile: cfg.Remote.KnownHosts,
		MaxConnections: cfg.Transfer.MaxConnections,
	}
}

// syncTemplate 所有文件共用的传输参数
func syncTemplate(cfg *config.Config) transfer.SyncTarget {
	return transfer.SyncTarget{
		Protocol:        cfg.Remote.ProtocolValue,
		Host:            cfg.Remote.Host,
		Port:            cfg.Remote.Port,
		Credentials:     cfg.Remote.Credentials(),
		MaxConnections:  cfg.Transfer.MaxConnections,
		Force:           cfg.Sync.Force,
		ExtensionFilter: cfg.Sync.FilterExtension,
	}
}

// newExecutor 按传输方式选择执行器
func newExecutor(cfg *config.Config, dial remote.Dialer) transfer.Executor {
	if cfg.Transfer.Mode == config.ModeInternal {
		return transfer.NewStreamExecutor(transfer.SessionDialer(dial))
	}
	return transfer.NewAria2Executor(transfer.Aria2Options{
		Path:      cfg.Transfer.Aria2cPath,
		ExtraArgs: cfg.Transfer.Aria2cArgs,
	})
}

// runMirror 执行同步；ctx 被取消 (SIGINT/SIGTERM) 时停止所有在途传输
func runMirror(ctx context.Context, cfg *config.Config) error {
	slog.Info("ftpmirror 启动中", "version", Version, "log_level", cfg.System.LogLevel)
	slog.Info("配置已加载",
		"protocol", cfg.Remote.ProtocolValue,
		"host", cfg.Remote.Host,
		"port", cfg.Remote.Port,
		"remote_dir", cfg.Sync.RemoteDir,
		"local_dir", cfg.Sync.LocalDir,
		"max_concurrency", cfg.Sync.MaxConcurrency,
		"max_connections", cfg.Transfer.MaxConnections,
		"transfer_mode", cfg.Transfer.Mode,
		"watch", cfg.Sync.Watch,
	)
	if cfg.Remote.ProtocolValue == fs.ProtocolSFTP && cfg.Remote.KnownHosts == "" {
		slog.Warn("未指定 known_hosts，将接受任意主机密钥")
	}

	var journal syncer.Journal
	if cfg.System.HistoryDB != "" {
		db, err := database.NewBoltDB(cfg.System.HistoryDB)
		if err != nil {
			return err
		}
		defer db.Close()
		journal = db
	}

	dial := remote.NewDialer(dialParams(cfg))
	registry := transfer.NewRegistry()
	coordinator := transfer.NewCoordinator(registry)

	engine := syncer.NewEngine(&syncer.EngineOptions{
		Dial:           dial,
		Template:       syncTemplate(cfg),
		RemoteDir:      cfg.Sync.RemoteDir,
		LocalDir:       cfg.Sync.LocalDir,
		MaxConcurrency: cfg.Sync.MaxConcurrency,
		MaxDepth:       cfg.Sync.MaxDepth,
		Executor:       newExecutor(cfg, dial),
		Registry:       registry,
		Journal:        journal,
		Watch:          cfg.Sync.Watch,
		WatchInterval:  cfg.Sync.WatchIntervalDuration(),
	})

	stop := context.AfterFunc(ctx, func() {
		slog.Info("接收到中断信号，准备退出...")
		coordinator.Shutdown()
	})
	defer stop()

	err := engine.Run(ctx)
	if errors.Is(err, syncer.ErrInterrupted) {
		// 等待协调器停止所有传输
		coordinator.Shutdown()
		slog.Info("所有任务已停止，程序退出")
		return err
	}
	if err != nil {
		slog.Error("同步失败", "err", err)
		coordinator.Shutdown()
		return err
	}
	slog.Info("同步完成")
	return nil
}
