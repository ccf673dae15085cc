package config

import (
	"time"

	"github.com/spf13/pflag"
)

// 命令行参数名
const (
	FlagConfig          = "config"
	FlagProtocol        = "protocol"
	FlagHost            = "host"
	FlagPort            = "port"
	FlagUser            = "user"
	FlagPassword        = "password"
	FlagKnownHosts      = "known-hosts"
	FlagTimeout         = "timeout"
	FlagRemoteDir       = "remote-dir"
	FlagLocalDir        = "local-dir"
	FlagForce           = "force"
	FlagMaxConcurrency  = "max-concurrency"
	FlagMaxConnections  = "max-connections"
	FlagFilterExtension = "filter-extension"
	FlagMaxDepth        = "max-depth"
	FlagWatch           = "watch"
	FlagWatchInterval   = "watch-interval"
	FlagTransferMode    = "transfer-mode"
	FlagAria2cPath      = "aria2c-path"
	FlagHistoryDB       = "history-db"
	FlagLogLevel        = "log-level"
	FlagLogFormat       = "log-format"
	FlagLogFile         = "log-file"
)

// BindFlags 注册所有配置相关的命令行参数，帮助信息中显示默认值
func BindFlags(flags *pflag.FlagSet) {
	d := Default()

	flags.String(FlagConfig, "", "YAML 配置文件路径 (命令行参数优先)")

	flags.String(FlagProtocol, d.Remote.Protocol, "协议: ftp 或 sftp")
	flags.String(FlagHost, d.Remote.Host, "服务器地址")
	flags.Int(FlagPort, d.Remote.Port, "服务器端口 (默认 ftp 21, sftp 22)")
	flags.String(FlagUser, d.Remote.User, "用户名")
	flags.String(FlagPassword, d.Remote.Password, "密码")
	flags.String(FlagKnownHosts, d.Remote.KnownHosts, "SFTP known_hosts 文件，为空时接受任意主机密钥")
	flags.Duration(FlagTimeout, 30*time.Second, "连接超时")

	flags.String(FlagRemoteDir, d.Sync.RemoteDir, "远程根目录")
	flags.String(FlagLocalDir, d.Sync.LocalDir, "本地目标目录")
	flags.Bool(FlagForce, d.Sync.Force, "大小相同也重新下载")
	flags.Int(FlagMaxConcurrency, d.Sync.MaxConcurrency, "同时进行的文件传输数")
	flags.Int(FlagMaxConnections, d.Transfer.MaxConnections, "单个文件的连接数")
	flags.String(FlagFilterExtension, d.Sync.FilterExtension, "只下载这些后缀的文件，逗号分隔，例如 .txt,.csv")
	flags.Int(FlagMaxDepth, d.Sync.MaxDepth, "最大目录深度")
	flags.Bool(FlagWatch, d.Sync.Watch, "持续监视远程目录")
	flags.Int(FlagWatchInterval, d.Sync.WatchInterval, "监视间隔 (秒)")

	flags.String(FlagTransferMode, d.Transfer.Mode, "传输方式: aria2c 或 internal")
	flags.String(FlagAria2cPath, d.Transfer.Aria2cPath, "aria2c 可执行文件路径")

	flags.String(FlagHistoryDB, d.System.HistoryDB, "传输历史数据库路径，为空时不记录")
	flags.String(FlagLogLevel, d.System.LogLevel, "日志等级: debug, info, warn, error")
	flags.String(FlagLogFormat, d.System.LogFormat, "日志格式: text 或 json")
	flags.String(FlagLogFile, d.System.LogFile, "日志文件路径，为空时只输出到控制台")
}

// ApplyFlags 把命令行中显式指定的参数覆盖到配置上，未指定的保留配置文件中的值
func ApplyFlags(flags *pflag.FlagSet, cfg *Config) error {
	str := map[string]*string{
		FlagProtocol:        &cfg.Remote.Protocol,
		FlagHost:            &cfg.Remote.Host,
		FlagUser:            &cfg.Remote.User,
		FlagPassword:        &cfg.Remote.Password,
		FlagKnownHosts:      &cfg.Remote.KnownHosts,
		FlagRemoteDir:       &cfg.Sync.RemoteDir,
		FlagLocalDir:        &cfg.Sync.LocalDir,
		FlagFilterExtension: &cfg.Sync.FilterExtension,
		FlagTransferMode:    &cfg.Transfer.Mode,
		FlagAria2cPath:      &cfg.Transfer.Aria2cPath,
		FlagHistoryDB:       &cfg.System.HistoryDB,
		FlagLogLevel:        &cfg.System.LogLevel,
		FlagLogFormat:       &cfg.System.LogFormat,
		FlagLogFile:         &cfg.System.LogFile,
	}
	for name, dst := range str {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	ints := map[string]*int{
		FlagPort:           &cfg.Remote.Port,
		FlagMaxConcurrency: &cfg.Sync.MaxConcurrency,
		FlagMaxConnections: &cfg.Transfer.MaxConnections,
		FlagMaxDepth:       &cfg.Sync.MaxDepth,
		FlagWatchInterval:  &cfg.Sync.WatchInterval,
	}
	for name, dst := range ints {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	bools := map[string]*bool{
		FlagForce: &cfg.Sync.Force,
		FlagWatch: &cfg.Sync.Watch,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if flags.Changed(FlagTimeout) {
		v, err := flags.GetDuration(FlagTimeout)
		if err != nil {
			return err
		}
		cfg.Remote.Timeout = v.String()
	}
	return nil
}
