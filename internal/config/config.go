package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAuthBaseURL = "https://x8ki-letl-twmt.n7.xano.io/api:MJq6ok-f"
	DefaultCoreBaseURL = "https://x8ki-letl-twmt.n7.xano.io/api:Ekf2eplz"
)

// 会话存储后端
const (
	BackendSqlite = "sqlite"
	BackendMemory = "memory"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	API struct {
		AuthBaseURL string        `yaml:"auth_base_url"`
		CoreBaseURL string        `yaml:"core_base_url"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"api"`

	Session struct {
		TokenKey string `yaml:"token_key"`
		CartKey  string `yaml:"cart_key"`
		Backend  string `yaml:"backend"`
	} `yaml:"session"`

	Sqlite struct {
		Dsn    string `yaml:"dsn"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`

	Auth struct {
		LoginPath      string `yaml:"login_path"`
		RestoreRetries int    `yaml:"restore_retries"`
	} `yaml:"auth"`

	// Warnings 加载过程中的提示，由调用方在日志器就绪后输出
	Warnings []string `yaml:"-"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0"}
	c.API.Timeout = 15 * time.Second
	c.Session.TokenKey = "THEHUB_TOKEN"
	c.Session.CartKey = "THEHUB_CART_ID"
	c.Session.Backend = BackendSqlite
	c.Sqlite.Dsn = "data/thehub.sqlite3"
	c.Sqlite.Prefix = "thehub_"
	c.Log.Level = "info"
	c.Log.Writer = []string{"file"}
	c.Log.File = "logs/thehub.log"
	c.Auth.LoginPath = "/login"
	c.Auth.RestoreRetries = 2
	return c
}

// Load 依次应用默认值、YAML 文件、.env 文件与 THEHUB_* 环境变量
//
// path 或 envFile 为空或文件不存在时跳过对应步骤。
func Load(path, envFile string) (*Config, error) {
	c := NewConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(b, c); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("load env %s: %w", envFile, err)
			}
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	c.fillDefaults()
	return c, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"THEHUB_AUTH_BASE":       &c.API.AuthBaseURL,
		"THEHUB_CORE_BASE":       &c.API.CoreBaseURL,
		"THEHUB_TOKEN_KEY":       &c.Session.TokenKey,
		"THEHUB_CART_KEY":        &c.Session.CartKey,
		"THEHUB_SESSION_BACKEND": &c.Session.Backend,
		"THEHUB_SQLITE_DSN":      &c.Sqlite.Dsn,
		"THEHUB_LOG_LEVEL":       &c.Log.Level,
		"THEHUB_LOGIN_PATH":      &c.Auth.LoginPath,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	if v := os.Getenv("THEHUB_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("THEHUB_TIMEOUT: %w", err)
		}
		c.API.Timeout = d
	}
	if v := os.Getenv("THEHUB_RESTORE_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("THEHUB_RESTORE_RETRIES: %w", err)
		}
		c.Auth.RestoreRetries = n
	}
	return nil
}

func (c *Config) fillDefaults() {
	def := NewConfig()
	if c.API.AuthBaseURL == "" {
		c.API.AuthBaseURL = DefaultAuthBaseURL
		c.Warnings = append(c.Warnings, "api.auth_base_url 未配置，使用默认地址 "+DefaultAuthBaseURL)
	}
	if c.API.CoreBaseURL == "" {
		c.API.CoreBaseURL = DefaultCoreBaseURL
		c.Warnings = append(c.Warnings, "api.core_base_url 未配置，使用默认地址 "+DefaultCoreBaseURL)
	}
	if c.Session.TokenKey == "" {
		c.Session.TokenKey = def.Session.TokenKey
	}
	if c.Session.CartKey == "" {
		c.Session.CartKey = def.Session.CartKey
	}
	switch c.Session.Backend {
	case BackendSqlite, BackendMemory:
	default:
		c.Warnings = append(c.Warnings, fmt.Sprintf("未知的 session.backend %q，使用 %s", c.Session.Backend, BackendSqlite))
		c.Session.Backend = BackendSqlite
	}
	if c.Auth.LoginPath == "" {
		c.Auth.LoginPath = def.Auth.LoginPath
	}
	if c.Auth.RestoreRetries < 0 {
		c.Auth.RestoreRetries = 0
	}
}
