package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/quiz-api/internal/config"
	"github.com/yourusername/quiz-api/internal/handler"
	"github.com/yourusername/quiz-api/internal/middleware"
	pgRepo "github.com/yourusername/quiz-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/quiz-api/internal/repository/redis"
	"github.com/yourusername/quiz-api/internal/service"
	"github.com/yourusername/quiz-api/internal/service/validation"
	"github.com/yourusername/quiz-api/pkg/auth"
	"github.com/yourusername/quiz-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), database.ParseLogLevel(cfg.Database.LogLevel))
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db, cfg.Database.MigrationsPath); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis с использованием унифицированной конфигурации
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	userRepo := pgRepo.NewUserRepo(db)
	quizRepo := pgRepo.NewQuizRepo(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	attemptRepo := pgRepo.NewAttemptRepo(db)
	resultRepo := pgRepo.NewResultRepo(db)
	assignmentRepo := pgRepo.NewAssignmentRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Проверка токенов, выпущенных внешним сервисом аутентификации
	jwtService, err := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// Уведомления о результатах
	var notifier service.ResultNotifier = &service.NoopResultNotifier{}
	if cfg.Email.Enabled {
		resendNotifier, err := service.NewResendResultNotifier(cfg.Email.APIKey, cfg.Email.From, cfg.Email.MaxRetries)
		if err != nil {
			log.Printf("Failed to initialize ResendResultNotifier: %v", err)
			os.Exit(1)
		}
		notifier = resendNotifier
		log.Println("E-mail уведомления о результатах включены (Resend)")
	}
	auditor := service.NewLogAuditor()
	validator := validation.New()

	// Инициализируем сервисы
	quizService := service.NewQuizService(quizRepo, questionRepo, attemptRepo, resultRepo, assignmentRepo, cacheRepo, validator, auditor)
	attemptService := service.NewAttemptService(
		quizRepo, questionRepo, attemptRepo, assignmentRepo, userRepo, cacheRepo,
		auditor, notifier, cfg.Attempt.MaxTabSwitches,
	)
	analyticsService := service.NewAnalyticsService(
		quizRepo, attemptRepo, resultRepo, userRepo, cacheRepo,
		cfg.Analytics.CacheTTL(), cfg.Attempt.DefaultTopN,
	)

	// Создаем контекст с отменой для корректного завершения фоновых горутин
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Фоновая финализация просроченных попыток (по умолчанию выключена)
	if interval := cfg.Attempt.SweepInterval(); interval > 0 {
		go runSweeper(ctx, attemptService, interval, cfg.Attempt.SweepBatchSize)
	}

	// Инициализируем middleware и обработчики
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	routes := handler.Routes{
		Auth:        authMiddleware,
		RateLimiter: middleware.NewRateLimiter(redisClient),
		Quiz:        handler.NewQuizHandler(quizService, nil),
		Attempt:     handler.NewAttemptHandler(attemptService, validator, nil),
		Analytics:   handler.NewAnalyticsHandler(analyticsService, nil),
	}

	// Инициализируем роутер Gin
	router := gin.Default()

	// В production не доверяем прокси-заголовкам (защита от IP spoofing)
	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	allowedOrigins := cfg.Server.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Настраиваем маршруты API
	routes.Register(router.Group("/api"))

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Останавливаем фоновые горутины
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}
	if sqlDB, err := database.GetSQLDB(db); err == nil {
		sqlDB.Close()
	}

	log.Println("Server exited properly")
}

// runSweeper периодически финализирует попытки с истекшим сроком
func runSweeper(ctx context.Context, attemptService *service.AttemptService, interval time.Duration, batchSize int) {
	log.Printf("[Sweeper] Запуск: интервал %v, пакет %d", interval, batchSize)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			finalized, err := attemptService.SweepExpired(ctx, time.Now(), batchSize)
			if err != nil {
				log.Printf("[Sweeper] Ошибка финализации просроченных попыток: %v", err)
				continue
			}
			if finalized > 0 {
				log.Printf("[Sweeper] Финализировано просроченных попыток: %d", finalized)
			}
		case <-ctx.Done():
			log.Println("[Sweeper] Завершение работы")
			return
		}
	}
}
