package repository

import (
	"context"

	"github.com/yourusername/quiz-api/internal/domain/entity"
)

// AssignmentRepository определяет методы управления допуском студентов к викторинам
type AssignmentRepository interface {
	// Grant выдает допуск, уже существующие пары пропускаются. Возвращает число новых записей.
	Grant(ctx context.Context, quizID, grantedBy uint, studentIDs []uint) (int64, error)
	Revoke(ctx context.Context, quizID uint, studentIDs []uint) (int64, error)
	IsAssigned(ctx context.Context, quizID, studentID uint) (bool, error)
	ListByQuiz(ctx context.Context, quizID uint) ([]entity.QuizAssignment, error)
}
