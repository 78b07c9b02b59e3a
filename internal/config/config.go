package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Host         string
	Port         int
	AllowOrigins []string
	LogLevel     string
	MaxUploadMB  int
	LogFile      string

	DBDriver string // sqlite3 | mysql | memory
	DBDSN    string

	// пороги сверки с СВС
	CandidateThreshold  float64
	AutoAssignThreshold float64
	AutoSave            bool // сохранять автосопоставления, если в запросе не сказано иное

	RateLimitRPS   float64 // 0 отключает ограничение
	RateLimitBurst int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8082)
	v.SetDefault("allow_origins", "*")
	v.SetDefault("log_level", "info")
	v.SetDefault("max_upload_mb", 64)
	v.SetDefault("log_file", "logs/svs-mapping.log")

	v.SetDefault("db_driver", "sqlite3")
	v.SetDefault("db_dsn", "data/svs-mapping.db")

	v.SetDefault("match_candidate_threshold", 0.2)
	v.SetDefault("match_auto_assign_threshold", 0.6)
	v.SetDefault("match_autosave", false)

	v.SetDefault("rate_limit_rps", 5)
	v.SetDefault("rate_limit_burst", 10)
}

// Load: значения по умолчанию ← config.yaml (если есть) ← переменные окружения (PORT, DB_DSN, ...).
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Host:                v.GetString("host"),
		Port:                v.GetInt("port"),
		AllowOrigins:        splitList(v.GetString("allow_origins")),
		LogLevel:            v.GetString("log_level"),
		MaxUploadMB:         v.GetInt("max_upload_mb"),
		LogFile:             v.GetString("log_file"),
		DBDriver:            strings.ToLower(v.GetString("db_driver")),
		DBDSN:               v.GetString("db_dsn"),
		CandidateThreshold:  v.GetFloat64("match_candidate_threshold"),
		AutoAssignThreshold: v.GetFloat64("match_auto_assign_threshold"),
		AutoSave:            v.GetBool("match_autosave"),
		RateLimitRPS:        v.GetFloat64("rate_limit_rps"),
		RateLimitBurst:      v.GetInt("rate_limit_burst"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	switch c.DBDriver {
	case "sqlite3", "mysql":
	case "memory":
		// без БД: данные живут до перезапуска
	default:
		return fmt.Errorf("db driver must be 'sqlite3', 'mysql' or 'memory', got: %q", c.DBDriver)
	}
	if c.DBDSN == "" && c.DBDriver != "memory" {
		return errors.New("DB_DSN is required")
	}
	if c.CandidateThreshold <= 0 || c.CandidateThreshold >= 1 {
		return fmt.Errorf("candidate threshold must be in (0,1), got %v", c.CandidateThreshold)
	}
	if c.AutoAssignThreshold <= 0 || c.AutoAssignThreshold > 1 {
		return fmt.Errorf("auto-assign threshold must be in (0,1], got %v", c.AutoAssignThreshold)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}

func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
