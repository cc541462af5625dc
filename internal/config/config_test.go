package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
server:
  port: "9090"
database:
  host: localhost
  user: quiz
  password: secret
  dbname: quizdb
auth:
  jwt_secret: test-secret
attempt:
  sweep_interval_sec: 30
  max_tab_switches: 5
analytics:
  cache_ttl_sec: 120
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FromFileWithDefaults(t *testing.T) {
	// Arrange
	path := writeConfig(t, testConfigYAML)

	// Act
	cfg, err := Load(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "5432", cfg.Database.Port, "Порт БД берется из значения по умолчанию")
	assert.Equal(t, "file://migrations", cfg.Database.MigrationsPath)
	assert.Equal(t, 30*time.Second, cfg.Attempt.SweepInterval())
	assert.Equal(t, 5, cfg.Attempt.MaxTabSwitches)
	assert.Equal(t, 10, cfg.Attempt.DefaultTopN)
	assert.Equal(t, 2*time.Minute, cfg.Analytics.CacheTTL())
	assert.False(t, cfg.Email.Enabled)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	// Arrange
	path := writeConfig(t, testConfigYAML)
	t.Setenv("AUTH_JWT_SECRET", "from-env")
	t.Setenv("ATTEMPT_MAX_TAB_SWITCHES", "2")

	// Act
	cfg, err := Load(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 2, cfg.Attempt.MaxTabSwitches)
}

func TestLoad_MissingSecret(t *testing.T) {
	// Arrange
	path := writeConfig(t, `
database:
  host: localhost
  user: quiz
  dbname: quizdb
`)

	// Act
	_, err := Load(path)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT secret")
}

func TestValidate_EmailRequiresKey(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Host: "h", DBName: "d", User: "u"},
		Auth:     AuthConfig{JWTSecret: "s"},
		Email:    EmailConfig{Enabled: true},
	}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
}
