package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ftpmirror/internal/fs"
)

// 传输方式
const (
	ModeAria2c   = "aria2c"
	ModeInternal = "internal"
)

// Config 对应 config.yaml 的根结构
type Config struct {
	Remote   RemoteConfig   `yaml:"remote"`
	Sync     SyncConfig     `yaml:"sync"`
	Transfer TransferConfig `yaml:"transfer"`
	System   SystemConfig   `yaml:"system"`
}

// RemoteConfig 远程服务器
type RemoteConfig struct {
	Protocol   string `yaml:"protocol"` // ftp | sftp
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"` // 0 表示协议默认端口
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	KnownHosts string `yaml:"known_hosts"` // 为空时接受任意主机密钥 (仅 sftp)
	Timeout    string `yaml:"timeout"`     // 连接超时，例如 "30s"

	// 解析后的值，不导出到 yaml
	ProtocolValue   fs.Protocol   `yaml:"-"`
	TimeoutDuration time.Duration `yaml:"-"`
}

// SyncConfig 同步相关配置
type SyncConfig struct {
	RemoteDir       string `yaml:"remote_dir"`
	LocalDir        string `yaml:"local_dir"`
	Force           bool   `yaml:"force"`
	MaxConcurrency  int    `yaml:"max_concurrency"`
	FilterExtension string `yaml:"filter_extension"` // 逗号分隔，例如 ".txt,.csv"
	MaxDepth        int    `yaml:"max_depth"`
	Watch           bool   `yaml:"watch"`
	WatchInterval   int    `yaml:"watch_interval"` // 秒
}

// TransferConfig 传输方式
type TransferConfig struct {
	Mode           string   `yaml:"mode"` // aria2c | internal
	Aria2cPath     string   `yaml:"aria2c_path"`
	Aria2cArgs     []string `yaml:"aria2c_args"` // 追加到 aria2c 命令行的额外参数
	MaxConnections int      `yaml:"max_connections"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	HistoryDB string `yaml:"history_db"` // 为空时不记录传输历史
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // text | json
	LogFile   string `yaml:"log_file"`
}

// Default 返回带默认值的配置
func Default() *Config {
	return &Config{
		Remote: RemoteConfig{
			Timeout: "30s",
		},
		Sync: SyncConfig{
			RemoteDir:      "/",
			LocalDir:       "./downloads",
			MaxConcurrency: 4,
			MaxDepth:       64,
			WatchInterval:  30,
		},
		Transfer: TransferConfig{
			Mode:           ModeAria2c,
			Aria2cPath:     "aria2c",
			MaxConnections: 8,
		},
		System: SystemConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
	}
}

// LoadConfig 读取并解析配置文件，未出现的字段保留默认值
// path 为空时返回默认配置。返回的配置尚未校验，合并命令行参数后调用 Validate
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 格式错误: %w", err)
	}
	return cfg, nil
}

// Validate 校验配置并填充解析后的字段
func (c *Config) Validate() error {
	var errs []error

	p, ok := fs.ParseProtocol(c.Remote.Protocol)
	if !ok {
		errs = append(errs, fmt.Errorf("未知的协议 (remote.protocol): %q", c.Remote.Protocol))
	}
	c.Remote.ProtocolValue = p

	if c.Remote.Host == "" {
		errs = append(errs, errors.New("缺少服务器地址 (remote.host)"))
	}
	if c.Remote.User == "" {
		errs = append(errs, errors.New("缺少用户名 (remote.user)"))
	}
	if c.Remote.Password == "" {
		errs = append(errs, errors.New("缺少密码 (remote.password)"))
	}
	if c.Remote.Port < 0 || c.Remote.Port > 65535 {
		errs = append(errs, fmt.Errorf("无效的端口 (remote.port): %d", c.Remote.Port))
	}
	if c.Remote.Port == 0 && ok {
		c.Remote.Port = p.DefaultPort()
	}

	timeout, err := time.ParseDuration(c.Remote.Timeout)
	if err != nil || timeout <= 0 {
		errs = append(errs, fmt.Errorf("无效的超时时间 (remote.timeout): %q", c.Remote.Timeout))
	}
	c.Remote.TimeoutDuration = timeout

	if c.Sync.RemoteDir == "" {
		c.Sync.RemoteDir = "/"
	}
	if !strings.HasPrefix(c.Sync.RemoteDir, "/") {
		errs = append(errs, fmt.Errorf("远程目录必须是绝对路径 (sync.remote_dir): %q", c.Sync.RemoteDir))
	}
	if c.Sync.LocalDir == "" {
		errs = append(errs, errors.New("缺少本地目录 (sync.local_dir)"))
	}
	if c.Sync.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("并发数必须大于 0 (sync.max_concurrency): %d", c.Sync.MaxConcurrency))
	}
	if c.Sync.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("最大深度必须大于 0 (sync.max_depth): %d", c.Sync.MaxDepth))
	}
	if c.Sync.Watch && c.Sync.WatchInterval < 1 {
		errs = append(errs, fmt.Errorf("监视间隔必须大于 0 (sync.watch_interval): %d", c.Sync.WatchInterval))
	}

	switch c.Transfer.Mode {
	case ModeAria2c:
		if c.Transfer.Aria2cPath == "" {
			errs = append(errs, errors.New("缺少 aria2c 路径 (transfer.aria2c_path)"))
		}
	case ModeInternal:
	default:
		errs = append(errs, fmt.Errorf("未知的传输方式 (transfer.mode): %q", c.Transfer.Mode))
	}
	if c.Transfer.MaxConnections < 1 {
		errs = append(errs, fmt.Errorf("连接数必须大于 0 (transfer.max_connections): %d", c.Transfer.MaxConnections))
	}

	switch strings.ToLower(c.System.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("未知的日志格式 (system.log_format): %q", c.System.LogFormat))
	}

	return errors.Join(errs...)
}

// WatchIntervalDuration 监视间隔
func (s SyncConfig) WatchIntervalDuration() time.Duration {
	return time.Duration(s.WatchInterval) * time.Second
}

// Credentials 登录凭据
func (r RemoteConfig) Credentials() fs.Credentials {
	return fs.Credentials{User: r.User, Password: r.Password}
}
