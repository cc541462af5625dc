package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
	"github.com/yourusername/quiz-api/internal/service/analytics"
)

// recentResultsLimit - сколько последних результатов показывать в аналитике студента
const recentResultsLimit = 5

// AnalyticsService собирает аналитику по викторинам, студентам и системе
type AnalyticsService struct {
	quizRepo    repository.QuizRepository
	attemptRepo repository.AttemptRepository
	resultRepo  repository.ResultRepository
	userRepo    repository.UserRepository
	cacheRepo   repository.CacheRepository
	cacheTTL    time.Duration
	defaultTopN int
}

// NewAnalyticsService создает сервис аналитики. cacheTTL == 0 отключает кеш.
func NewAnalyticsService(
	quizRepo repository.QuizRepository,
	attemptRepo repository.AttemptRepository,
	resultRepo repository.ResultRepository,
	userRepo repository.UserRepository,
	cacheRepo repository.CacheRepository,
	cacheTTL time.Duration,
	defaultTopN int,
) *AnalyticsService {
	if defaultTopN <= 0 {
		defaultTopN = 10
	}
	return &AnalyticsService{
		quizRepo:    quizRepo,
		attemptRepo: attemptRepo,
		resultRepo:  resultRepo,
		userRepo:    userRepo,
		cacheRepo:   cacheRepo,
		cacheTTL:    cacheTTL,
		defaultTopN: defaultTopN,
	}
}

// DefaultTopN возвращает размер топа по умолчанию
func (s *AnalyticsService) DefaultTopN() int {
	return s.defaultTopN
}

// GetQuizAnalytics возвращает аналитику викторины.
// В кеше хранится только вариант с размером топа по умолчанию.
func (s *AnalyticsService) GetQuizAnalytics(ctx context.Context, actor Actor, quizID uint, topN int, now time.Time) (*analytics.QuizStats, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := canManageQuiz(actor, quiz); err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = s.defaultTopN
	}

	cacheable := s.cacheRepo != nil && s.cacheTTL > 0 && topN == s.defaultTopN
	if cacheable {
		var cached analytics.QuizStats
		err := s.cacheRepo.GetJSON(quizCacheKey(quizID), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			log.Printf("[AnalyticsService] WARNING: ошибка чтения кеша викторины #%d: %v", quizID, err)
		}
	}

	attempts, err := s.attemptRepo.ListByQuiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("load attempts of quiz #%d failed: %w", quizID, err)
	}
	results, err := s.resultRepo.ListByQuiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("load results of quiz #%d failed: %w", quizID, err)
	}

	stats := analytics.ReduceQuiz(quiz, attempts, results, now, topN)

	if cacheable {
		if err := s.cacheRepo.SetJSON(quizCacheKey(quizID), stats, s.cacheTTL); err != nil {
			log.Printf("[AnalyticsService] WARNING: не удалось сохранить кеш викторины #%d: %v", quizID, err)
		}
	}
	return stats, nil
}

// GetStudentAnalytics возвращает аналитику студента (сам студент или персонал)
func (s *AnalyticsService) GetStudentAnalytics(ctx context.Context, actor Actor, studentID uint, now time.Time) (*analytics.StudentStats, error) {
	if err := canViewStudent(actor, studentID); err != nil {
		return nil, err
	}

	attempts, err := s.attemptRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load attempts of student #%d failed: %w", studentID, err)
	}
	results, err := s.resultRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load results of student #%d failed: %w", studentID, err)
	}

	quizzes := make(map[uint]*entity.Quiz)
	for _, attempt := range attempts {
		if _, seen := quizzes[attempt.QuizID]; seen {
			continue
		}
		quiz, err := s.quizRepo.GetByID(ctx, attempt.QuizID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				quizzes[attempt.QuizID] = nil
				continue
			}
			return nil, err
		}
		quizzes[attempt.QuizID] = quiz
	}

	return analytics.ReduceStudent(studentID, attempts, quizzes, results, now, recentResultsLimit), nil
}

// GetSystemAnalytics параллельно собирает общесистемные счетчики
func (s *AnalyticsService) GetSystemAnalytics(ctx context.Context, actor Actor) (*analytics.SystemStats, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: system analytics is admin-only", apperrors.ErrForbidden)
	}

	stats := &analytics.SystemStats{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.TotalUsers, err = s.userRepo.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalQuizzes, err = s.quizRepo.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalAttempts, err = s.attemptRepo.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalResults, err = s.resultRepo.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.RoleDistribution, err = s.userRepo.CountByRole(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.QuizzesByDepartment, err = s.quizRepo.CountByDepartment(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collect system analytics failed: %w", err)
	}
	if stats.RoleDistribution == nil {
		stats.RoleDistribution = map[string]int64{}
	}
	if stats.QuizzesByDepartment == nil {
		stats.QuizzesByDepartment = map[string]int64{}
	}
	return stats, nil
}
