package repository

import (
	"context"

	"github.com/yourusername/quiz-api/internal/domain/entity"
)

// ResultRepository определяет методы чтения результатов.
// Результаты создаются и удаляются только вместе с попыткой (AttemptRepository.Mutate).
type ResultRepository interface {
	GetByAttempt(ctx context.Context, attemptID uint) (*entity.Result, error)
	// ListByQuiz возвращает все результаты викторины в порядке создания
	ListByQuiz(ctx context.Context, quizID uint) ([]entity.Result, error)
	GetQuizResults(ctx context.Context, quizID uint, limit, offset int) ([]entity.Result, int64, error)
	// ListByStudent возвращает результаты студента, новые первыми
	ListByStudent(ctx context.Context, studentID uint) ([]entity.Result, error)
	Count(ctx context.Context) (int64, error)
}
