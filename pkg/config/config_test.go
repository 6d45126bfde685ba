package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfig(t *testing.T) {
	defer func() { ConfigGlobal = DefaultConfig() }()
	fn := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(fn, []byte("port: \"9000\"\ntrainWorkers: 4\ndbType: postgres\n"), 0644))
	t.Setenv("AUTOML_TRAINWORKERS", "6")

	require.NoError(t, InitConfig(fn))
	assert.Equal(t, "9000", ConfigGlobal.Port)
	assert.Equal(t, "postgres", ConfigGlobal.DbType)
	assert.Equal(t, 6, ConfigGlobal.TrainWorkers)
	assert.Equal(t, 3, ConfigGlobal.TrainMaxAttempts)
	assert.Equal(t, int64(50<<20), ConfigGlobal.MaxUploadBytes)
}

func TestInitConfigCheck(t *testing.T) {
	defer func() { ConfigGlobal = DefaultConfig() }()
	t.Setenv(ACCESS_KEY_ID, "")
	t.Setenv(ACCESS_KEY_SECRET, "")

	t.Setenv("AUTOML_ENABLEAUTH", "true")
	assert.Error(t, InitConfig(""))
	t.Setenv("AUTOML_JWTSECRET", "secret")
	require.NoError(t, InitConfig(""))
	assert.True(t, ConfigGlobal.EnableLogin())

	t.Setenv("AUTOML_OSSMODE", REMOTE)
	assert.Error(t, InitConfig(""))
}

func TestCheckDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrainWorkers = 0
	cfg.TrainQueueSize = -1
	cfg.ListenInterval = 0
	require.NoError(t, cfg.check())
	assert.Equal(t, 1, cfg.TrainWorkers)
	assert.Equal(t, 1, cfg.TrainQueueSize)
	assert.Equal(t, int32(1), cfg.ListenInterval)
}

func TestMasked(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JwtSecret = "secret"
	cfg.LlmApiKey = "key"
	cfg.AccessKeySecret = ""
	masked := cfg.Masked()
	assert.Equal(t, "******", masked.JwtSecret)
	assert.Equal(t, "******", masked.LlmApiKey)
	assert.Empty(t, masked.AccessKeySecret)
	assert.Equal(t, "secret", cfg.JwtSecret)
}
