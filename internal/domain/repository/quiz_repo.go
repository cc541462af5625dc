package repository

import (
	"context"

	"github.com/yourusername/quiz-api/internal/domain/entity"
)

// QuizFilters определяет фильтры для поиска викторин
type QuizFilters struct {
	Department    string // Фильтр по кафедре
	Subject       string // Фильтр по предмету
	Semester      string // Фильтр по семестру
	OwnerID       uint   // Только викторины указанного координатора (0 - все)
	Search        string // Поиск по названию/описанию
	Published     *bool  // Фильтр по флагу публикации
	OnlyAvailable bool   // Только активные и опубликованные (для студентов)
}

// QuizRepository определяет методы для работы с викторинами
type QuizRepository interface {
	Create(ctx context.Context, quiz *entity.Quiz) error
	GetByID(ctx context.Context, id uint) (*entity.Quiz, error)
	GetWithQuestions(ctx context.Context, id uint) (*entity.Quiz, error)
	Update(ctx context.Context, quiz *entity.Quiz) error
	SetActive(ctx context.Context, id uint, active bool) error
	SetPublished(ctx context.Context, id uint, published bool) error
	ListWithFilters(ctx context.Context, filters QuizFilters, limit, offset int) ([]entity.Quiz, int64, error) // Возвращает также total count
	// Delete удаляет викторину вместе с вопросами.
	// Возвращает ErrQuizHasAttempts, если на викторину ссылается хотя бы одна попытка.
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
	CountByDepartment(ctx context.Context) (map[string]int64, error)
}
