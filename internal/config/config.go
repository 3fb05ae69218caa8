// Package config loads the system and policy configuration for the
// doorbell orchestrator, grounded on the teacher's YAML+godotenv+mergo
// loading pipeline (system.yaml → env expansion → parse → defaults merge).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// System groups the Orchestrator's infrastructure settings (spec §4.7, §5).
type System struct {
	MaxConcurrentSessions   int           `yaml:"max_concurrent_sessions"`
	SessionQueueSize        int           `yaml:"session_queue_size"`
	SemaphoreAcquireTimeout time.Duration `yaml:"-"`
	SessionIdleTimeout      time.Duration `yaml:"-"`
	ProviderTimeout         time.Duration `yaml:"-"`
	ActionTimeout           time.Duration `yaml:"-"`
	WorkerPoolSize          int           `yaml:"worker_pool_size"`
	DataDir                 string        `yaml:"data_dir"`
	DBPath                  string        `yaml:"db_path"`
	DisableModels           bool          `yaml:"-"`
	ReplyProviderKey        string        `yaml:"-"`

	SemaphoreAcquireTimeoutRaw string `yaml:"semaphore_acquire_timeout"`
	SessionIdleTimeoutRaw      string `yaml:"session_idle_timeout"`
	ProviderTimeoutSec         int    `yaml:"provider_timeout_sec"`
	ActionTimeoutSec           int    `yaml:"action_timeout_sec"`
}

// SlackConfig holds the owner notification channel settings.
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env"`
	Channel  string `yaml:"channel"`
}

// YAMLConfig mirrors the on-disk doorbell.yaml structure.
type YAMLConfig struct {
	System   *System                `yaml:"system"`
	Slack    *SlackConfig           `yaml:"slack"`
	Policy   map[string]bool        `yaml:"auto_reply_policy"` // device_id -> permitted
}

// Config is the fully resolved, ready-to-use configuration object.
type Config struct {
	System          System
	Slack           SlackConfig
	SlackToken      string
	AutoReplyPolicy map[string]bool
}

// defaultSystem mirrors the teacher's Defaults pattern: system-wide values
// used whenever the YAML omits them.
func defaultSystem() System {
	return System{
		MaxConcurrentSessions:      2,
		SessionQueueSize:           4,
		SemaphoreAcquireTimeoutRaw: "60s",
		SessionIdleTimeoutRaw:      "90s",
		ProviderTimeoutSec:         8,
		ActionTimeoutSec:           10,
		WorkerPoolSize:             2,
		DataDir:                    "./data",
		DBPath:                     "./data/doorbell.sqlite",
	}
}

// Load reads configPath (a YAML file) plus a sibling .env, expands
// environment variables, merges onto defaults, and resolves duration
// fields. Grounded on the teacher's loader.go pipeline.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(filepath.Dir(configPath), ".env"))

	defaults := defaultSystem()
	yc := YAMLConfig{System: &defaults}

	if data, err := os.ReadFile(configPath); err == nil {
		expanded := ExpandEnv(data)
		var parsed YAMLConfig
		if err := yaml.Unmarshal(expanded, &parsed); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
		if parsed.System != nil {
			if err := mergo.Merge(parsed.System, defaults); err != nil {
				return nil, fmt.Errorf("merge system defaults: %w", err)
			}
			yc.System = parsed.System
		}
		yc.Slack = parsed.Slack
		yc.Policy = parsed.Policy
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// spec §6 Environment: these variables override whatever the YAML (or
	// its own built-in defaults) resolved to, the same "env wins" posture
	// the teacher's loader.go applies to its own settings.
	if v := os.Getenv("MAX_CONCURRENT_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			yc.System.MaxConcurrentSessions = n
		}
	}
	if v := os.Getenv("SESSION_IDLE_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			yc.System.SessionIdleTimeoutRaw = fmt.Sprintf("%ds", n)
		}
	}
	if v := os.Getenv("PROVIDER_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			yc.System.ProviderTimeoutSec = n
		}
	}
	if v := os.Getenv("ACTION_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			yc.System.ActionTimeoutSec = n
		}
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		yc.System.DataDir = v
		yc.System.DBPath = filepath.Join(v, "doorbell.sqlite")
	}

	acquireTimeout, err := time.ParseDuration(yc.System.SemaphoreAcquireTimeoutRaw)
	if err != nil {
		return nil, fmt.Errorf("parse semaphore_acquire_timeout: %w", err)
	}
	idleTimeout, err := time.ParseDuration(yc.System.SessionIdleTimeoutRaw)
	if err != nil {
		return nil, fmt.Errorf("parse session_idle_timeout: %w", err)
	}
	yc.System.SemaphoreAcquireTimeout = acquireTimeout
	yc.System.SessionIdleTimeout = idleTimeout
	yc.System.ProviderTimeout = time.Duration(yc.System.ProviderTimeoutSec) * time.Second
	yc.System.ActionTimeout = time.Duration(yc.System.ActionTimeoutSec) * time.Second
	yc.System.DisableModels = os.Getenv("DISABLE_MODELS") == "1"
	yc.System.ReplyProviderKey = os.Getenv("REPLY_PROVIDER_KEY")

	cfg := &Config{
		System:          *yc.System,
		AutoReplyPolicy: yc.Policy,
	}
	if yc.Slack != nil {
		cfg.Slack = *yc.Slack
		if cfg.Slack.Enabled && cfg.Slack.TokenEnv != "" {
			cfg.SlackToken = os.Getenv(cfg.Slack.TokenEnv)
		}
	}
	if cfg.AutoReplyPolicy == nil {
		cfg.AutoReplyPolicy = map[string]bool{}
	}
	return cfg, nil
}
