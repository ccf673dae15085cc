package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ftpmirror/internal/fs"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func validConfig() *Config {
	cfg := Default()
	cfg.Remote.Protocol = "sftp"
	cfg.Remote.Host = "example.com"
	cfg.Remote.User = "alice"
	cfg.Remote.Password = "secret"
	return cfg
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	p := writeConfig(t, `
remote:
  protocol: ftp
  host: ftp.example.com
  user: anonymous
  password: guest
sync:
  local_dir: /data/mirror
  filter_extension: ".txt,.csv"
`)

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, fs.ProtocolFTP, cfg.Remote.ProtocolValue)
	assert.Equal(t, 21, cfg.Remote.Port)
	assert.Equal(t, 30*time.Second, cfg.Remote.TimeoutDuration)
	assert.Equal(t, "/", cfg.Sync.RemoteDir)
	assert.Equal(t, "/data/mirror", cfg.Sync.LocalDir)
	assert.Equal(t, 4, cfg.Sync.MaxConcurrency)
	assert.Equal(t, 8, cfg.Transfer.MaxConnections)
	assert.Equal(t, ModeAria2c, cfg.Transfer.Mode)
	assert.Equal(t, 30*time.Second, cfg.Sync.WatchIntervalDuration())
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "remote: [unclosed"))
	assert.Error(t, err)
}

func TestValidateDefaultPorts(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 22, cfg.Remote.Port)
	assert.Equal(t, fs.ProtocolSFTP, cfg.Remote.ProtocolValue)

	cfg = validConfig()
	cfg.Remote.Port = 2222
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2222, cfg.Remote.Port)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"protocol", func(c *Config) { c.Remote.Protocol = "http" }, "remote.protocol"},
		{"host", func(c *Config) { c.Remote.Host = "" }, "remote.host"},
		{"user", func(c *Config) { c.Remote.User = "" }, "remote.user"},
		{"password", func(c *Config) { c.Remote.Password = "" }, "remote.password"},
		{"port", func(c *Config) { c.Remote.Port = 70000 }, "remote.port"},
		{"timeout", func(c *Config) { c.Remote.Timeout = "soon" }, "remote.timeout"},
		{"relative remote dir", func(c *Config) { c.Sync.RemoteDir = "pub" }, "sync.remote_dir"},
		{"concurrency", func(c *Config) { c.Sync.MaxConcurrency = 0 }, "sync.max_concurrency"},
		{"connections", func(c *Config) { c.Transfer.MaxConnections = 0 }, "transfer.max_connections"},
		{"watch interval", func(c *Config) { c.Sync.Watch = true; c.Sync.WatchInterval = 0 }, "sync.watch_interval"},
		{"mode", func(c *Config) { c.Transfer.Mode = "curl" }, "transfer.mode"},
		{"log format", func(c *Config) { c.System.LogFormat = "xml" }, "system.log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyFlagsOverridesOnlyChanged(t *testing.T) {
	p := writeConfig(t, `
remote:
  protocol: ftp
  host: file-host
  user: file-user
  password: file-pass
sync:
  max_concurrency: 2
  local_dir: /from/file
transfer:
  mode: internal
`)
	cfg, err := LoadConfig(p)
	require.NoError(t, err)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	require.NoError(t, flags.Parse([]string{
		"--host", "flag-host",
		"--max-concurrency", "6",
		"--watch",
		"--timeout", "5s",
	}))
	require.NoError(t, ApplyFlags(flags, cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "flag-host", cfg.Remote.Host)
	assert.Equal(t, "file-user", cfg.Remote.User)
	assert.Equal(t, 6, cfg.Sync.MaxConcurrency)
	assert.Equal(t, "/from/file", cfg.Sync.LocalDir)
	assert.Equal(t, ModeInternal, cfg.Transfer.Mode)
	assert.True(t, cfg.Sync.Watch)
	assert.Equal(t, 5*time.Second, cfg.Remote.TimeoutDuration)
}

func TestCredentialsRedacted(t *testing.T) {
	cfg := validConfig()
	creds := cfg.Remote.Credentials()
	assert.Equal(t, "alice", creds.User)
	assert.NotContains(t, creds.String(), "secret")
}
