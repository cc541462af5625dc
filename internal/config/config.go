package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Attempt   AttemptConfig
	Analytics AnalyticsConfig
	Email     EmailConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"dbname"`
	SSLMode        string `mapstructure:"sslmode"`
	LogLevel       string `mapstructure:"log_level"`       // silent, error, warn, info
	MigrationsPath string `mapstructure:"migrations_path"` // По умолчанию file://migrations
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single'.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // мс
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // мс
}

// AuthConfig содержит настройки проверки токенов, выпущенных внешним сервисом аутентификации
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// AttemptConfig содержит настройки жизненного цикла попыток
type AttemptConfig struct {
	// SweepIntervalSec: период фоновой финализации просроченных попыток. 0 - только ленивая проверка.
	SweepIntervalSec int `mapstructure:"sweep_interval_sec"`
	// SweepBatchSize: сколько попыток финализировать за один проход
	SweepBatchSize int `mapstructure:"sweep_batch_size"`
	// MaxTabSwitches: порог переключений вкладок для автосдачи. 0 - политика выключена.
	MaxTabSwitches int `mapstructure:"max_tab_switches"`
	// DefaultTopN: размер топа в аналитике викторины по умолчанию
	DefaultTopN int `mapstructure:"default_top_n"`
}

// AnalyticsConfig содержит настройки кеша аналитики
type AnalyticsConfig struct {
	CacheTTLSec int `mapstructure:"cache_ttl_sec"`
}

// EmailConfig содержит настройки уведомлений о результатах
type EmailConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	APIKey     string `mapstructure:"api_key"`
	From       string `mapstructure:"from"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// SweepInterval возвращает период фонового прохода
func (a AttemptConfig) SweepInterval() time.Duration {
	return time.Duration(a.SweepIntervalSec) * time.Second
}

// CacheTTL возвращает время жизни кеша аналитики
func (a AnalyticsConfig) CacheTTL() time.Duration {
	return time.Duration(a.CacheTTLSec) * time.Second
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load загружает конфигурацию из файла
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	// 1. Значения по умолчанию
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 15)
	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.log_level", "warn")
	vip.SetDefault("database.migrations_path", "file://migrations")
	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("attempt.sweep_interval_sec", 0)
	vip.SetDefault("attempt.sweep_batch_size", 100)
	vip.SetDefault("attempt.max_tab_switches", 0)
	vip.SetDefault("attempt.default_top_n", 10)
	vip.SetDefault("analytics.cache_ttl_sec", 60)
	vip.SetDefault("email.max_retries", 3)

	// 2. Привязываем переменные окружения ЯВНО
	// Привязка для секции Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")
	vip.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	vip.BindEnv("database.migrations_path", "DATABASE_MIGRATIONS_PATH")

	// Привязка для секции Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS") // Для массива строк
	vip.BindEnv("redis.addr", "REDIS_ADDR")   // Для одиночной строки
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// Привязка для секции Auth
	vip.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET")
	vip.BindEnv("auth.issuer", "AUTH_ISSUER")

	// Привязка для секций Attempt и Analytics
	vip.BindEnv("attempt.sweep_interval_sec", "ATTEMPT_SWEEP_INTERVAL_SEC")
	vip.BindEnv("attempt.max_tab_switches", "ATTEMPT_MAX_TAB_SWITCHES")
	vip.BindEnv("analytics.cache_ttl_sec", "ANALYTICS_CACHE_TTL_SEC")

	// Привязка для секции Email
	vip.BindEnv("email.enabled", "EMAIL_ENABLED")
	vip.BindEnv("email.api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")

	// Привязка для Server
	vip.BindEnv("server.port", "SERVER_PORT")

	// 3. Читаем файл конфигурации (не страшно, если его нет, т.к. есть BindEnv)
	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	// 4. Анмаршалим конфигурацию (Viper объединит значения из файла и привязанных env vars)
	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Логирование конфигурации (только в debug режиме)
	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Port: %s", cfg.Database.Port)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("JWT Secret Set: %t", cfg.Auth.JWTSecret != "")
		log.Printf("Attempt Sweep Interval: %ds", cfg.Attempt.SweepIntervalSec)
		log.Printf("Attempt Max Tab Switches: %d", cfg.Attempt.MaxTabSwitches)
		log.Printf("Email Enabled: %t", cfg.Email.Enabled)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("-----------------------------------------")
	}

	// 6. Проверка обязательных параметров
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required in config (check AUTH_JWT_SECRET env var)")
	}
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if c.Email.Enabled && (c.Email.APIKey == "" || c.Email.From == "") {
		return fmt.Errorf("email is enabled but api_key or from is empty (check RESEND_API_KEY, EMAIL_FROM env vars)")
	}
	if c.Attempt.SweepIntervalSec < 0 || c.Attempt.MaxTabSwitches < 0 {
		return fmt.Errorf("attempt.sweep_interval_sec and attempt.max_tab_switches must not be negative")
	}
	return nil
}
