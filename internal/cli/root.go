// Package cli содержит команды сервисной утилиты quizctl.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// Execute запускает CLI
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd собирает корневую команду со всеми подкомандами
func NewRootCmd() *cobra.Command {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:           "quizctl",
		Short:         "Сервисные операции платформы тестирования: миграции, финализация попыток, токены",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", configPath, "путь к YAML-конфигурации")
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewSweepCmd(&configPath))
	cmd.AddCommand(NewTokenCmd())
	return cmd
}
