// Package config loads application settings.
// Priority: environment variables > YAML file > defaults.
package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loungechat/internal/logger"
)

// loadEnv reads .env only outside production (in containers/prod the config
// comes from the environment alone).
func loadEnv() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		path := dir + "/.env"
		f, err := os.Open(path)
		if err == nil {
			loadEnvFrom(f)
			f.Close()
			return
		}
		parent := strings.TrimSuffix(dir, "/")
		idx := strings.LastIndex(parent, "/")
		if idx <= 0 {
			return
		}
		dir = parent[:idx]
		if dir == "" {
			dir = "/"
		}
	}
}

func loadEnvFrom(f *os.File) {
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if key == "" {
			continue
		}
		if len(val) >= 2 && (val[0] == '"' && val[len(val)-1] == '"' || val[0] == '\'' && val[len(val)-1] == '\'') {
			val = val[1 : len(val)-1]
		}
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// Config holds settings for the chat client and the development server.
type Config struct {
	// Client
	ServerURL string // websocket endpoint of the chat backend
	UploadURL string // HTTP endpoint accepting media uploads

	// Typing indicator display window.
	TypingWindow time.Duration

	// Devserver
	DevAddr       string
	UploadDir     string
	MaxUploadSize int64

	// CORS (devserver; the browser front-end talks cross-origin)
	CORSAllowedOrigins string

	LogLevel string
}

// yamlConfig is the intermediate shape for parsing the YAML file.
type yamlConfig struct {
	ServerURL          string `yaml:"server_url"`
	UploadURL          string `yaml:"upload_url"`
	TypingWindowMS     int    `yaml:"typing_window_ms"`
	DevAddr            string `yaml:"dev_addr"`
	UploadDir          string `yaml:"upload_dir"`
	MaxUploadSizeMB    int    `yaml:"max_upload_size_mb"`
	CORSAllowedOrigins string `yaml:"cors_allowed_origins"`
	LogLevel           string `yaml:"log_level"`
}

// Load loads the configuration. .env first (if present), then the YAML file
// pointed at by CONFIG_PATH (default config/lounge.yaml), then env overrides.
func Load() *Config {
	loadEnv()
	yc := yamlConfig{
		ServerURL:          "ws://localhost:8090/ws",
		UploadURL:          "http://localhost:8090/upload",
		TypingWindowMS:     1400,
		DevAddr:            ":8090",
		UploadDir:          "./uploads",
		MaxUploadSizeMB:    20,
		CORSAllowedOrigins: "*",
		LogLevel:           "info",
	}

	paths := []string{os.Getenv("CONFIG_PATH"), "config/lounge.yaml"}
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &yc); err != nil {
			logger.Errorf("config: parse %s: %v (using defaults)", path, err)
		} else {
			logger.Infof("config: loaded %s", path)
		}
		break
	}

	typingMS := envInt("TYPING_WINDOW_MS", yc.TypingWindowMS)
	if typingMS <= 0 {
		typingMS = 1400
	}

	return &Config{
		ServerURL:          envStr("SERVER_URL", yc.ServerURL),
		UploadURL:          envStr("UPLOAD_URL", yc.UploadURL),
		TypingWindow:       time.Duration(typingMS) * time.Millisecond,
		DevAddr:            envStr("DEV_ADDR", yc.DevAddr),
		UploadDir:          envStr("UPLOAD_DIR", yc.UploadDir),
		MaxUploadSize:      int64(envInt("MAX_UPLOAD_SIZE_MB", yc.MaxUploadSizeMB)) << 20,
		CORSAllowedOrigins: envStr("CORS_ALLOWED_ORIGINS", yc.CORSAllowedOrigins),
		LogLevel:           envStr("LOG_LEVEL", yc.LogLevel),
	}
}

// envStr returns the environment value or the fallback.
func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt returns the numeric environment value or the fallback.
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
