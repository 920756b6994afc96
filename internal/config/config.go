package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// WebToken описывает bearer-токен HTTP-транспорта.
type WebToken struct {
	ID          string   `yaml:"id"`
	TokenSHA256 string   `yaml:"token_sha256"`
	Subject     string   `yaml:"subject"`
	Roles       []string `yaml:"roles"`
	Enabled     bool     `yaml:"enabled"`
}

// WebAuth задает способы аутентификации HTTP-транспорта.
type WebAuth struct {
	AllowLegacySubjectHeader bool       `yaml:"allow_legacy_subject_header"`
	Tokens                   []WebToken `yaml:"tokens"`
}

// WebCORS задает CORS-политику HTTP-транспорта.
type WebCORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// DurableClient — durable-клиент участника и размеры очередей его CQ.
type DurableClient struct {
	ID  string         `yaml:"id"`
	CQs map[string]int `yaml:"cqs"`
}

// Member описывает участника кластера.
type Member struct {
	Name           string          `yaml:"name"`
	ID             string          `yaml:"id"`
	Groups         []string        `yaml:"groups"`
	DeployDir      string          `yaml:"deploy_dir"`
	Regions        []string        `yaml:"regions"`
	DurableClients []DurableClient `yaml:"durable_clients"`
}

// Config описывает основные параметры gridadmin.
type Config struct {
	Agent struct {
		LogLevel string `yaml:"log_level" env:"GRIDADMIN_LOG_LEVEL"`
	} `yaml:"agent"`
	Security struct {
		// Scopes ограничивает subject ("source/id") набором модулей или команд.
		Scopes        map[string][]string `yaml:"scopes"`
		AuthAllowlist map[string][]string `yaml:"auth_allowlist"`
		RateLimit     int                 `yaml:"rate_limit_per_second"`
	} `yaml:"security"`
	SQLite struct {
		Path          string `yaml:"path" env:"GRIDADMIN_SQLITE_PATH"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"sqlite"`
	Scheduler struct {
		IntervalSeconds int `yaml:"interval_seconds" env:"GRIDADMIN_SCHEDULER_INTERVAL_SECONDS"`
	} `yaml:"scheduler"`
	Web struct {
		Enabled          bool    `yaml:"enabled" env:"GRIDADMIN_WEB_ENABLED"`
		ListenAddr       string  `yaml:"listen_addr" env:"GRIDADMIN_WEB_LISTEN_ADDR"`
		ReadTimeoutMS    int     `yaml:"read_timeout_ms"`
		WriteTimeoutMS   int     `yaml:"write_timeout_ms"`
		RequestTimeoutMS int     `yaml:"request_timeout_ms"`
		ShutdownTimeoutS int     `yaml:"shutdown_timeout_s"`
		MaxBodyBytes     int64   `yaml:"max_body_bytes"`
		Auth             WebAuth `yaml:"auth"`
		CORS             WebCORS `yaml:"cors"`
	} `yaml:"web"`
	Cluster struct {
		ReadPool  int      `yaml:"read_pool"`
		WritePool int      `yaml:"write_pool"`
		Members   []Member `yaml:"members"`
	} `yaml:"cluster"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	var cfg Config
	cfg.Agent.LogLevel = "info"
	cfg.SQLite.Path = "/var/lib/gridadmin/state.db"
	cfg.SQLite.RetentionDays = 30
	cfg.Scheduler.IntervalSeconds = 60
	cfg.Web.Enabled = false
	cfg.Web.ListenAddr = "127.0.0.1:8080"
	cfg.Web.ReadTimeoutMS = 2000
	cfg.Web.WriteTimeoutMS = 5000
	cfg.Web.RequestTimeoutMS = 3000
	cfg.Web.ShutdownTimeoutS = 5
	cfg.Web.MaxBodyBytes = 1 << 20
	cfg.Security.AuthAllowlist = map[string][]string{"cli": {"operator"}, "web": {}}
	cfg.Security.RateLimit = 5
	return cfg
}

// Load читает конфиг из файла YAML поверх значений по умолчанию,
// затем применяет переменные окружения GRIDADMIN_*.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- путь к конфигу задается доверенным оператором/CI.
		if err != nil {
			return cfg, err
		}
		if len(data) == 0 {
			return cfg, errors.New("config file is empty")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	seen := make(map[string]struct{}, len(c.Cluster.Members))
	for i, m := range c.Cluster.Members {
		if m.Name == "" {
			return fmt.Errorf("cluster.members[%d]: name is required", i)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("cluster.members[%d]: duplicate member %q", i, m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}
