package repository

import (
	"context"
	"time"

	"github.com/yourusername/quiz-api/internal/domain/entity"
)

// AnswerGuard проверяет попытку под разделяемой блокировкой перед записью ответа.
// Ненулевая ошибка отменяет запись и возвращается вызывающему как есть.
type AnswerGuard func(attempt *entity.Attempt) error

// AttemptChange описывает, что нужно сохранить после мутации попытки.
// Поля самой попытки (статус, баллы, предупреждения) сохраняются всегда.
type AttemptChange struct {
	// SaveAnswers - перезаписать оцененные ответы из attempt.Answers
	SaveAnswers bool
	// Result - создать результат в той же транзакции
	Result *entity.Result
	// DeleteResult - удалить результат попытки
	DeleteResult bool
}

// AttemptMutation получает попытку (с ответами) под эксклюзивной блокировкой.
// Возврат nil без ошибки означает "ничего не менять".
type AttemptMutation func(attempt *entity.Attempt) (*AttemptChange, error)

// AttemptRepository определяет методы для работы с попытками
type AttemptRepository interface {
	// Create вставляет попытку. При нарушении уникальности (quiz, student) возвращает ErrDuplicateAttempt.
	Create(ctx context.Context, attempt *entity.Attempt) error
	// GetByID возвращает попытку вместе с ответами
	GetByID(ctx context.Context, id uint) (*entity.Attempt, error)
	GetByQuizAndStudent(ctx context.Context, quizID, studentID uint) (*entity.Attempt, error)
	ListByQuiz(ctx context.Context, quizID uint) ([]entity.Attempt, error)
	ListByStudent(ctx context.Context, studentID uint) ([]entity.Attempt, error)
	CountByQuiz(ctx context.Context, quizID uint) (int64, error)
	Count(ctx context.Context) (int64, error)
	// ListExpiredInProgress возвращает незавершенные попытки, срок которых истек к моменту now
	ListExpiredInProgress(ctx context.Context, now time.Time, limit int) ([]entity.Attempt, error)
	// SaveAnswer делает upsert ответа по (attempt, question) под блокировкой FOR SHARE
	SaveAnswer(ctx context.Context, attemptID uint, answer *entity.AttemptAnswer, guard AnswerGuard) error
	// Mutate выполняет fn под блокировкой FOR UPDATE и сохраняет изменения в одной транзакции
	Mutate(ctx context.Context, attemptID uint, fn AttemptMutation) (*entity.Attempt, error)
}
