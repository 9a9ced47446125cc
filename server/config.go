package server

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

// 默认值
const (
	DefaultPort           = "4334"
	DefaultTickRate       = 60
	DefaultSessionTimeout = 5.0 // 秒（游戏时间）
	DefaultRosterInterval = 5.0
	DefaultSpawnExtent    = 600.0

	// ResendInterval 原本打算用来限制重传频率的间隔；默认不启用，每个 Tick 都重传
	ResendInterval = 1.0
)

// Config 服务端配置：默认值 → YAML 文件 → 环境变量（TAG_*）→ 命令行
type Config struct {
	Host           string  `yaml:"host" env:"HOST"`
	Port           string  `yaml:"port" env:"PORT"`
	TickRate       int     `yaml:"tick_rate" env:"TICK_RATE"`
	SessionTimeout float64 `yaml:"session_timeout" env:"SESSION_TIMEOUT"`
	// ResendEvery 0 表示每个 Tick 都重传所有未确认报文
	ResendEvery    float64 `yaml:"resend_interval" env:"RESEND_INTERVAL"`
	RosterInterval float64 `yaml:"roster_interval" env:"ROSTER_INTERVAL"`
	SpawnExtent    float64 `yaml:"spawn_extent" env:"SPAWN_EXTENT"`
	QueueSize      int     `yaml:"queue_size" env:"QUEUE_SIZE"`

	// ResetOnItTimeout “it” 超时被移除时是否开新一局（向所有人发 Reset）；默认不通知
	ResetOnItTimeout bool `yaml:"reset_on_it_timeout" env:"RESET_ON_IT_TIMEOUT"`

	LogFile   string `yaml:"log_file" env:"LOG_FILE"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	AdminAddr string `yaml:"admin_addr" env:"ADMIN_ADDR"`
}

func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           DefaultPort,
		TickRate:       DefaultTickRate,
		SessionTimeout: DefaultSessionTimeout,
		RosterInterval: DefaultRosterInterval,
		SpawnExtent:    DefaultSpawnExtent,
		QueueSize:      1024,
		LogFile:        "tagserver.log",
		LogLevel:       "info",
		AdminAddr:      ":8080",
	}
}

// LoadConfig 按层加载配置；path 为空时跳过文件
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "TAG_"}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

var errInvalidConfig = errors.New("invalid config")

func (c Config) Validate() error {
	switch {
	case c.Port == "":
		return fmt.Errorf("%w: empty port", errInvalidConfig)
	case c.TickRate <= 0:
		return fmt.Errorf("%w: tick_rate must be > 0, got %d", errInvalidConfig, c.TickRate)
	case c.SessionTimeout <= 0:
		return fmt.Errorf("%w: session_timeout must be > 0, got %v", errInvalidConfig, c.SessionTimeout)
	case c.SpawnExtent <= 0:
		return fmt.Errorf("%w: spawn_extent must be > 0, got %v", errInvalidConfig, c.SpawnExtent)
	case c.ResendEvery < 0 || c.RosterInterval < 0:
		return fmt.Errorf("%w: intervals must be >= 0", errInvalidConfig)
	}
	return nil
}
