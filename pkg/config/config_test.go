package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/shardlog/pkg/parallel"
	"github.com/ssargent/shardlog/pkg/store"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "./data", config.DataDir)
	assert.Equal(t, "shard", config.Prefix)
	assert.Equal(t, 2, config.Writer.NumShards)
	assert.Equal(t, int64(10<<30), config.Writer.MaxBytesPerWriter)
	assert.Equal(t, 2000, config.Writer.TaskQueueCapacity)
	assert.True(t, config.Writer.EnableAutoSharding)
	assert.True(t, config.Writer.Append)
	assert.Equal(t, store.CompressionNone, config.Writer.Compression)
	assert.Equal(t, 1, config.Reader.WorkerThreads)
	assert.Equal(t, 8, config.Reader.QueueSizeMB)
	assert.Equal(t, "error", config.Reader.CorruptionStrategy)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, 8080, config.Server.Port)
	assert.NoError(t, config.Validate())
}

func TestLoadConfig(t *testing.T) {
	t.Run("load existing config", func(t *testing.T) {
		tmpDir, err := os.MkdirTemp("", "shardlog_config_test")
		require.NoError(t, err)
		defer os.RemoveAll(tmpDir)

		configPath := filepath.Join(tmpDir, "config.yaml")
		expectedConfig := DefaultConfig()
		expectedConfig.DataDir = "/custom/data"
		expectedConfig.Prefix = "events"
		expectedConfig.Writer.NumShards = 8
		expectedConfig.Writer.EnableAutoSharding = false
		expectedConfig.Writer.Compression = store.CompressionZstd
		expectedConfig.Reader.CorruptionStrategy = "recover"
		expectedConfig.Logging.Level = "debug"
		expectedConfig.Catalog.Enabled = true

		err = SaveConfig(expectedConfig, configPath)
		require.NoError(t, err)

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, expectedConfig, loadedConfig)
	})

	t.Run("missing fields keep defaults", func(t *testing.T) {
		tmpDir, err := os.MkdirTemp("", "shardlog_config_test")
		require.NoError(t, err)
		defer os.RemoveAll(tmpDir)

		configPath := filepath.Join(tmpDir, "partial.yaml")
		err = os.WriteFile(configPath, []byte("data_dir: /srv/shards\nwriter:\n  num_shards: 16\n  compression: zstd\n"), 0600)
		require.NoError(t, err)

		config, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, "/srv/shards", config.DataDir)
		assert.Equal(t, 16, config.Writer.NumShards)
		assert.Equal(t, store.CompressionZstd, config.Writer.Compression)
		assert.Equal(t, 2000, config.Writer.TaskQueueCapacity)
		assert.Equal(t, "shard", config.Prefix)
	})

	t.Run("unsupported compression", func(t *testing.T) {
		tmpDir, err := os.MkdirTemp("", "shardlog_config_test")
		require.NoError(t, err)
		defer os.RemoveAll(tmpDir)

		configPath := filepath.Join(tmpDir, "gzip.yaml")
		err = os.WriteFile(configPath, []byte("writer:\n  compression: gzip\n"), 0600)
		require.NoError(t, err)

		_, err = LoadConfig(configPath)
		assert.ErrorIs(t, err, store.ErrInvalidArgument)
	})

	t.Run("load non-existent config", func(t *testing.T) {
		_, err := LoadConfig("/non/existent/config.yaml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "config file does not exist")
	})

	t.Run("load invalid yaml", func(t *testing.T) {
		tmpDir, err := os.MkdirTemp("", "shardlog_config_test")
		require.NoError(t, err)
		defer os.RemoveAll(tmpDir)

		configPath := filepath.Join(tmpDir, "invalid.yaml")
		err = os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644)
		require.NoError(t, err)

		_, err = LoadConfig(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestSaveConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "shardlog_config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	config := DefaultConfig()

	err = SaveConfig(config, configPath)
	require.NoError(t, err)

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestSaveConfigErrorHandling(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "shardlog_config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	blocker := filepath.Join(tmpDir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	err = SaveConfig(DefaultConfig(), filepath.Join(blocker, "config.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create config directory")
}

func TestBootstrapConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "shardlog_config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	dataDir := "/custom/data/dir"

	config, err := BootstrapConfig(configPath, dataDir)
	require.NoError(t, err)
	assert.Equal(t, dataDir, config.DataDir)
	assert.True(t, ConfigExists(configPath))

	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty data dir", mutate: func(c *Config) { c.DataDir = "" }},
		{name: "zero shards", mutate: func(c *Config) { c.Writer.NumShards = 0 }},
		{name: "negative queue", mutate: func(c *Config) { c.Writer.TaskQueueCapacity = -1 }},
		{name: "unknown compression", mutate: func(c *Config) { c.Writer.Compression = store.Compression(7) }},
		{name: "negative queue size", mutate: func(c *Config) { c.Reader.QueueSizeMB = -1 }},
		{name: "unknown strategy", mutate: func(c *Config) { c.Reader.CorruptionStrategy = "ignore" }},
		{name: "unknown level", mutate: func(c *Config) { c.Logging.Level = "verbose" }},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)
			assert.ErrorIs(t, config.Validate(), store.ErrInvalidArgument)
		})
	}
}

func TestEngineConfigs(t *testing.T) {
	config := DefaultConfig()
	config.DataDir = "/data"
	config.Writer.NumShards = 4
	config.Reader.QueueSizeMB = 3
	config.Reader.CorruptionStrategy = "recover"
	config.Writer.Compression = store.CompressionZstd

	wc := config.WriterConfig()
	assert.Equal(t, store.CompressionZstd, wc.Compression)
	assert.Equal(t, "/data", wc.Dir)
	assert.Equal(t, "shard", wc.Prefix)
	assert.Equal(t, 4, wc.NumShards)
	assert.True(t, wc.Append)

	rc, err := config.ReaderConfig()
	require.NoError(t, err)
	assert.Equal(t, parallel.QueueSizeMB(3), rc.QueueSizeBytes)
	assert.Equal(t, store.CorruptionRecover, rc.CorruptionStrategy)

	assert.Equal(t, filepath.Join("/data", ".catalog"), config.CatalogDir())
	config.Catalog.Dir = "/var/cache/shardlog"
	assert.Equal(t, "/var/cache/shardlog", config.CatalogDir())
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()
	assert.NotEmpty(t, path)
	assert.Contains(t, path, "shardlog")
}

func TestConfigExists(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "shardlog_config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	existingPath := filepath.Join(tmpDir, "exists.yaml")
	require.NoError(t, os.WriteFile(existingPath, []byte("test"), 0644))

	assert.True(t, ConfigExists(existingPath))
	assert.False(t, ConfigExists(filepath.Join(tmpDir, "does-not-exist.yaml")))
}
