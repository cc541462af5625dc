package repository

import (
	"context"

	"github.com/yourusername/quiz-api/internal/domain/entity"
)

// QuestionRepository определяет методы для работы с вопросами.
// Все изменяющие методы атомарно пересчитывают question_count и total_marks викторины.
type QuestionRepository interface {
	GetByID(ctx context.Context, id uint) (*entity.Question, error)
	// ListByQuiz возвращает вопросы в порядке order_index, id
	ListByQuiz(ctx context.Context, quizID uint) ([]entity.Question, error)
	AddToQuiz(ctx context.Context, quizID uint, questions []entity.Question) error
	Update(ctx context.Context, question *entity.Question) error
	Delete(ctx context.Context, id uint) error
}
