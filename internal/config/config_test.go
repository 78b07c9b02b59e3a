package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1", cfg.Host)
		assert.Equal(t, 8082, cfg.Port)
		assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
		assert.Equal(t, "sqlite3", cfg.DBDriver)
		assert.InDelta(t, 0.2, cfg.CandidateThreshold, 1e-9)
		assert.InDelta(t, 0.6, cfg.AutoAssignThreshold, 1e-9)
		assert.False(t, cfg.AutoSave)
		assert.Equal(t, "127.0.0.1:8082", cfg.Addr())
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("ALLOW_ORIGINS", "http://a.local, http://b.local")
		t.Setenv("DB_DRIVER", "MySQL")
		t.Setenv("DB_DSN", "svs:secret@tcp(db:3306)/svs")
		t.Setenv("MATCH_AUTO_ASSIGN_THRESHOLD", "0.75")
		t.Setenv("MATCH_AUTOSAVE", "true")
		t.Setenv("RATE_LIMIT_RPS", "0")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Port)
		assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.AllowOrigins)
		assert.Equal(t, "mysql", cfg.DBDriver)
		assert.Equal(t, "svs:secret@tcp(db:3306)/svs", cfg.DBDSN)
		assert.InDelta(t, 0.75, cfg.AutoAssignThreshold, 1e-9)
		assert.True(t, cfg.AutoSave)
		assert.Zero(t, cfg.RateLimitRPS)
	})

	t.Run("unknown driver is rejected", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "postgres")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "postgres")
	})
}

func TestValidate(t *testing.T) {
	base := Config{
		Port: 8082, DBDriver: "sqlite3", DBDSN: ":memory:", MaxUploadMB: 1,
		CandidateThreshold: 0.2, AutoAssignThreshold: 0.6,
	}
	require.NoError(t, base.Validate())

	mem := base
	mem.DBDriver, mem.DBDSN = "memory", ""
	require.NoError(t, mem.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too big", func(c *Config) { c.Port = 70000 }},
		{"empty dsn", func(c *Config) { c.DBDSN = "" }},
		{"candidate threshold above one", func(c *Config) { c.CandidateThreshold = 1.5 }},
		{"negative candidate threshold", func(c *Config) { c.CandidateThreshold = -0.1 }},
		{"auto-assign zero", func(c *Config) { c.AutoAssignThreshold = 0 }},
		{"no upload", func(c *Config) { c.MaxUploadMB = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"*"}, splitList(""))
	assert.Equal(t, []string{"*"}, splitList(" , "))
	assert.Equal(t, []string{"a", "b"}, splitList("a,,b "))
}
