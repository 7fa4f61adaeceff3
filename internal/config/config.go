package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is built once in main and handed to constructors. Core packages
// never read the environment themselves.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Gemini   GeminiConfig
	Bitable  BitableConfig
	OSS      OSSConfig
}

type ServerConfig struct {
	Port          string
	UploadDir     string
	MaxUploadSize int64
}

type DatabaseConfig struct {
	Path string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type BitableConfig struct {
	AppID     string
	AppSecret string
	AppToken  string
	TableID   string
	Enabled   bool
	AutoSync  bool
}

type OSSConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Prefix          string
}

// AvailableModels lists the Gemini models the application accepts.
var AvailableModels = map[string]string{
	"gemini-2.5-flash": "Gemini 2.5 Flash",
	"gemini-2.5-pro":   "Gemini 2.5 Pro",
	"gemini-2.0-flash": "Gemini 2.0 Flash",
	"gemini-1.5-flash": "Gemini 1.5 Flash",
	"gemini-1.5-pro":   "Gemini 1.5 Pro",
}

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	maxUpload, err := parseInt64(getEnv("MAX_UPLOAD_SIZE", "104857600"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", "8080"),
			UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
			MaxUploadSize: maxUpload,
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./vidsync.db"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Bitable: BitableConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
			AppToken:  os.Getenv("FEISHU_APP_TOKEN"),
			TableID:   os.Getenv("FEISHU_TABLE_ID"),
			Enabled:   getBool("FEISHU_ENABLED", false),
			AutoSync:  getBool("FEISHU_AUTO_SYNC", true),
		},
		OSS: OSSConfig{
			Enabled:         getBool("OSS_ENABLED", false),
			Endpoint:        os.Getenv("OSS_ENDPOINT"),
			AccessKeyID:     os.Getenv("OSS_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("OSS_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("OSS_BUCKET"),
			Prefix:          getEnv("OSS_PREFIX", "videos"),
		},
	}

	if _, ok := AvailableModels[cfg.Gemini.Model]; !ok {
		return nil, fmt.Errorf("unsupported Gemini model: %s", cfg.Gemini.Model)
	}

	return cfg, nil
}

// GeminiValid reports whether the analysis client can be constructed.
func (c *Config) GeminiValid() bool {
	return strings.TrimSpace(c.Gemini.APIKey) != ""
}

// BitableValid reports whether the remote table gateway can be constructed.
func (c *Config) BitableValid() bool {
	return strings.TrimSpace(c.Bitable.AppID) != "" &&
		strings.TrimSpace(c.Bitable.AppSecret) != "" &&
		strings.TrimSpace(c.Bitable.AppToken) != "" &&
		strings.TrimSpace(c.Bitable.TableID) != ""
}

// OSSValid reports whether the object storage uploader can be constructed.
func (c *Config) OSSValid() bool {
	return c.OSS.Enabled &&
		strings.TrimSpace(c.OSS.Endpoint) != "" &&
		strings.TrimSpace(c.OSS.AccessKeyID) != "" &&
		strings.TrimSpace(c.OSS.AccessKeySecret) != "" &&
		strings.TrimSpace(c.OSS.Bucket) != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return strings.EqualFold(val, "true") || val == "1"
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
