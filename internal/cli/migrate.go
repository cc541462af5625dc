package cli

import (
	"fmt"
	"log"
	"strconv"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/yourusername/quiz-api/internal/config"
	"github.com/yourusername/quiz-api/pkg/database"
)

// NewMigrateCmd применяет миграции и управляет версией схемы
func NewMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции базы данных",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(*configPath, func(cfg *config.Config, db *gorm.DB) error {
				if err := database.MigrateDB(db, cfg.Database.MigrationsPath); err != nil {
					return err
				}
				return printVersion(cmd, cfg, db)
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Показать текущую версию схемы",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(*configPath, func(cfg *config.Config, db *gorm.DB) error {
				return printVersion(cmd, cfg, db)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Принудительно выставить версию схемы и снять флаг dirty",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withDB(*configPath, func(cfg *config.Config, db *gorm.DB) error {
				if err := database.ForceMigrationVersion(db, cfg.Database.MigrationsPath, version); err != nil {
					return err
				}
				return printVersion(cmd, cfg, db)
			})
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, cfg *config.Config, db *gorm.DB) error {
	version, dirty, err := database.MigrationVersion(db, cfg.Database.MigrationsPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d (dirty: %t)\n", version, dirty)
	return nil
}

// withDB загружает конфигурацию, открывает соединение и закрывает его после fn
func withDB(configPath string, fn func(cfg *config.Config, db *gorm.DB) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), database.ParseLogLevel(cfg.Database.LogLevel))
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := database.GetSQLDB(db); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Printf("[quizctl] Ошибка закрытия соединения с БД: %v", err)
			}
		}
	}()

	return fn(cfg, db)
}
