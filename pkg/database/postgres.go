package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	migrateV4 "github.com/golang-migrate/migrate/v4"
	migratePostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultMigrationsPath - источник миграций относительно рабочего каталога приложения
const DefaultMigrationsPath = "file://migrations"

// ParseLogLevel переводит строковый уровень из конфигурации в уровень логгера gorm
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// NewPostgresDB создает новое подключение к PostgreSQL
func NewPostgresDB(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Настройка пула соединений
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// newMigrator создает экземпляр migrate поверх соединения gorm
func newMigrator(db *gorm.DB, sourceURL string) (*migrateV4.Migrate, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("не удалось получить *sql.DB из *gorm.DB: %w", err)
	}

	// Убедимся, что подключение к БД активно
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("не удалось проверить подключение к БД перед миграцией: %w", err)
	}

	driver, err := migratePostgres.WithInstance(sqlDB, &migratePostgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("не удалось создать драйвер postgres для migrate: %w", err)
	}

	if sourceURL == "" {
		sourceURL = DefaultMigrationsPath
	}
	m, err := migrateV4.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать экземпляр migrate: %w", err)
	}
	return m, nil
}

// MigrateDB применяет SQL-миграции "вверх" из sourceURL
func MigrateDB(db *gorm.DB, sourceURL string) error {
	log.Println("Запуск применения миграций базы данных...")

	m, err := newMigrator(db, sourceURL)
	if err != nil {
		return err
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrateV4.ErrNoChange) {
		log.Printf("Ошибка применения миграций: %v", err)
		return fmt.Errorf("ошибка применения миграций 'up': %w", err)
	} else if errors.Is(err, migrateV4.ErrNoChange) {
		log.Println("Изменений в миграциях не найдено, база данных уже актуальна.")
	} else {
		log.Println("Миграции успешно применены.")
	}
	return nil
}

// MigrationVersion возвращает текущую версию схемы и флаг dirty
func MigrationVersion(db *gorm.DB, sourceURL string) (uint, bool, error) {
	m, err := newMigrator(db, sourceURL)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrateV4.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// ForceMigrationVersion снимает флаг dirty, принудительно выставляя версию схемы
func ForceMigrationVersion(db *gorm.DB, sourceURL string, version int) error {
	m, err := newMigrator(db, sourceURL)
	if err != nil {
		return err
	}
	if err := m.Force(version); err != nil {
		return fmt.Errorf("не удалось принудительно установить версию %d: %w", version, err)
	}
	log.Printf("Версия схемы принудительно установлена: %d", version)
	return nil
}

// GetSQLDB возвращает базовый *sql.DB из *gorm.DB
func GetSQLDB(gormDB *gorm.DB) (*sql.DB, error) {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB, nil
}
