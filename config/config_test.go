package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"svcpool/codec"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func newCommand(t *testing.T, args ...string) *viper.Viper {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	SetupCommonFlags(cmd)
	SetupHostFlags(cmd)
	SetupClientFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))

	v := NewViper()
	require.NoError(t, v.BindPFlags(cmd.Flags()))
	require.NoError(t, v.BindPFlags(cmd.PersistentFlags()))
	return v
}

func TestLoadDefaults(t *testing.T) {
	conf, err := Load(newCommand(t))
	require.NoError(t, err)

	assert.Equal(t, "info", conf.LogLevel)
	assert.Equal(t, codec.CodecTypeJSON, conf.Codec)
	assert.Equal(t, byte('w'), conf.Key)
	assert.Empty(t, conf.Etcd)
	assert.Equal(t, ModeLocal, conf.Client.Mode)
	assert.Equal(t, 50*time.Millisecond, conf.Client.BackoffInitial)
	assert.Equal(t, 5*time.Second, conf.Client.BackoffMax)
	assert.Equal(t, "127.0.0.1:7070", conf.Host.Listen)
	assert.Equal(t, int64(10), conf.Host.TTL)
}

func TestLoadFlagsAndEnv(t *testing.T) {
	t.Setenv("SVCPOOL_CODEC", "binary")
	t.Setenv("SVCPOOL_RATE_LIMIT", "250")

	conf, err := Load(newCommand(t,
		"--mode", "discovery",
		"--etcd", "10.0.0.1:2379, 10.0.0.2:2379",
		"--heartbeat", "1s",
		"--key", "k",
	))
	require.NoError(t, err)

	assert.Equal(t, codec.CodecTypeBinary, conf.Codec)
	assert.Equal(t, 250.0, conf.Host.RateLimit)
	assert.Equal(t, ModeDiscovery, conf.Client.Mode)
	assert.Equal(t, []string{"10.0.0.1:2379", "10.0.0.2:2379"}, conf.Etcd)
	assert.Equal(t, time.Second, conf.Client.Heartbeat)
	assert.Equal(t, byte('k'), conf.Key)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"codec", []string{"--codec", "xml"}},
		{"key", []string{"--key", "ab"}},
		{"mode", []string{"--mode", "carrier-pigeon"}},
		{"discovery without etcd", []string{"--mode", "discovery"}},
		{"dial without address", []string{"--mode", "dial", "--address", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newCommand(t, tt.args...))
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SVCPOOL_TEST_FROM_ENV_FILE=base\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("SVCPOOL_TEST_FROM_LOCAL_FILE=local\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Cleanup(func() {
		os.Unsetenv("SVCPOOL_TEST_FROM_ENV_FILE")
		os.Unsetenv("SVCPOOL_TEST_FROM_LOCAL_FILE")
	})

	LoadEnvFiles()
	v := NewViper()
	assert.Equal(t, "base", v.GetString("test-from-env-file"))
	assert.Equal(t, "local", v.GetString("test-from-local-file"))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", "json")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger("warn", "")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger("loud", "json")
	assert.Error(t, err)
	_, err = NewLogger("info", "xml")
	assert.Error(t, err)
}

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}
