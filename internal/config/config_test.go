package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(104857600), cfg.Server.MaxUploadSize)
	assert.Equal(t, "./vidsync.db", cfg.Database.Path)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.True(t, cfg.Bitable.AutoSync)
	assert.False(t, cfg.OSS.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/data/app.db")
	t.Setenv("GEMINI_API_KEY", "key123")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("FEISHU_ENABLED", "true")
	t.Setenv("OSS_ENABLED", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "/data/app.db", cfg.Database.Path)
	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.Model)
	assert.True(t, cfg.GeminiValid())
	assert.True(t, cfg.Bitable.Enabled)
	assert.True(t, cfg.OSS.Enabled)
}

func TestLoadRejectsUnknownModel(t *testing.T) {
	t.Setenv("GEMINI_MODEL", "gpt-4")

	_, err := Load()
	assert.Error(t, err)
}

func TestBitableValid(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.BitableValid())

	cfg.Bitable = BitableConfig{
		AppID: "id", AppSecret: "secret", AppToken: "token", TableID: "table",
	}
	assert.True(t, cfg.BitableValid())
}

func TestOSSValid(t *testing.T) {
	cfg := &Config{OSS: OSSConfig{
		Endpoint: "ep", AccessKeyID: "ak", AccessKeySecret: "sk", Bucket: "b",
	}}
	assert.False(t, cfg.OSSValid(), "disabled storage is never valid")

	cfg.OSS.Enabled = true
	assert.True(t, cfg.OSSValid())
}
