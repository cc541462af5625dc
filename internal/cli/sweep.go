package cli

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/yourusername/quiz-api/internal/config"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	"github.com/yourusername/quiz-api/internal/repository/memory"
	pgRepo "github.com/yourusername/quiz-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/quiz-api/internal/repository/redis"
	"github.com/yourusername/quiz-api/internal/service"
	"github.com/yourusername/quiz-api/pkg/database"
)

// NewSweepCmd финализирует попытки с истекшим сроком как auto_submitted
func NewSweepCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Финализировать просроченные попытки",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(*configPath, func(cfg *config.Config, db *gorm.DB) error {
				cacheRepo := openCache(cfg)

				attemptService := service.NewAttemptService(
					pgRepo.NewQuizRepo(db), pgRepo.NewQuestionRepo(db), pgRepo.NewAttemptRepo(db),
					pgRepo.NewAssignmentRepo(db), pgRepo.NewUserRepo(db), cacheRepo,
					service.NewLogAuditor(), &service.NoopResultNotifier{}, 0,
				)

				batch := limit
				if batch <= 0 {
					batch = cfg.Attempt.SweepBatchSize
				}
				total := 0
				for {
					finalized, err := attemptService.SweepExpired(cmd.Context(), time.Now(), batch)
					if err != nil {
						return err
					}
					total += finalized
					if finalized < batch {
						break
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "finalized attempts: %d\n", total)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "размер пакета (по умолчанию attempt.sweep_batch_size)")
	return cmd
}

// openCache подключает Redis для сброса кеша аналитики; без Redis кеш не используется
func openCache(cfg *config.Config) repository.CacheRepository {
	client, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("[quizctl] WARNING: Redis недоступен, кеш аналитики не будет сброшен: %v", err)
		return memory.NewCacheRepo()
	}
	cacheRepo, err := redisRepo.NewCacheRepo(client)
	if err != nil {
		log.Printf("[quizctl] WARNING: не удалось создать CacheRepo: %v", err)
		return memory.NewCacheRepo()
	}
	return cacheRepo
}
