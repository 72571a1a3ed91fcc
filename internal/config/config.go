// Package config 加载 YAML 配置文件并叠加环境变量。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"jobboard/internal/alerts"
	"jobboard/internal/identity"
	"jobboard/internal/notifier"
	"jobboard/internal/scheduler"
	"jobboard/internal/subscription"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig 应用配置。
type AppConfig struct {
	Server       ServerConfig         `yaml:"server"`
	Database     DatabaseConfig       `yaml:"database"`
	Redis        RedisConfig          `yaml:"redis"`
	Email        notifier.EmailConfig `yaml:"email"`
	Alerts       AlertsConfig         `yaml:"alerts"`
	Subscription subscription.Config  `yaml:"subscription"`
	RateLimit    RateLimitConfig      `yaml:"rate_limit"`
	Backend      identity.Config      `yaml:"backend"`
	Search       SearchConfig         `yaml:"search"`
	Log          LogConfig            `yaml:"log"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr" env:"SERVER_ADDR"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"DATABASE_DSN"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// AlertsConfig 控制告警运行的时区、链接与调度。
type AlertsConfig struct {
	Timezone string           `yaml:"timezone" env:"ALERTS_TIMEZONE"`
	SiteURL  string           `yaml:"site_url" env:"SITE_URL"`
	From     string           `yaml:"from"`
	Links    alerts.Links     `yaml:"links"`
	Schedule scheduler.Config `yaml:"schedule"`
}

type RateLimitConfig struct {
	Limit         int    `yaml:"limit"`
	Window        string `yaml:"window"`
	ResetRedirect string `yaml:"reset_redirect"`
}

// SearchConfig 追加到默认纠错词表的词。
type SearchConfig struct {
	ExtraTerms []string `yaml:"extra_terms" env:"SEARCH_EXTRA_TERMS"`
}

type LogConfig struct {
	Level       string `yaml:"level" env:"LOG_LEVEL"`
	Development bool   `yaml:"development"`
}

const (
	defaultPath    = "config.yaml"
	defaultAddr    = ":8080"
	defaultDSN     = "data/jobs.db"
	defaultSiteURL = "http://localhost:8080"
)

// Load 读取 CONFIG_FILE（默认 config.yaml），文件不存在时仅使用默认值与环境变量。
func Load() (AppConfig, error) {
	// .env 只用于本地开发
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = defaultPath
	}
	return LoadFile(path)
}

// LoadFile 从指定路径加载配置。
func LoadFile(path string) (AppConfig, error) {
	var cfg AppConfig
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Database.DSN == "" {
		c.Database.DSN = defaultDSN
	}
	if c.Alerts.Timezone == "" {
		c.Alerts.Timezone = "UTC"
	}
	if c.Alerts.SiteURL == "" {
		c.Alerts.SiteURL = defaultSiteURL
	}
	defaults := alerts.DefaultLinks(c.Alerts.SiteURL)
	if c.Alerts.Links.ViewURL == "" {
		c.Alerts.Links.ViewURL = defaults.ViewURL
	}
	if c.Alerts.Links.ApplyURL == "" {
		c.Alerts.Links.ApplyURL = defaults.ApplyURL
	}
	if c.Alerts.From == "" {
		c.Alerts.From = c.Email.From
	}
	if c.RateLimit.ResetRedirect == "" {
		c.RateLimit.ResetRedirect = strings.TrimSuffix(c.Alerts.SiteURL, "/") + "/reset-password"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate 校验时区、邮件服务商与时长字段。
func (c AppConfig) Validate() error {
	if _, err := time.LoadLocation(c.Alerts.Timezone); err != nil {
		return fmt.Errorf("alerts timezone %q: %w", c.Alerts.Timezone, err)
	}
	switch strings.ToLower(strings.TrimSpace(c.Email.Provider)) {
	case "", notifier.ProviderResend, notifier.ProviderSMTP, notifier.ProviderLog:
	default:
		return fmt.Errorf("unknown email provider %q", c.Email.Provider)
	}
	for name, v := range map[string]string{
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"rate_limit.window":       c.RateLimit.Window,
		"alerts.schedule.timeout": c.Alerts.Schedule.Timeout,
	} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("%s: invalid duration %q", name, v)
		}
	}
	if c.RateLimit.Limit < 0 {
		return fmt.Errorf("rate_limit.limit must not be negative")
	}
	return nil
}

// Location 返回告警时区，Validate 之后调用。
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Alerts.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Duration 解析可选时长，空值返回 def。
func Duration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
