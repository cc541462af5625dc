package repository

import (
	"context"

	"github.com/yourusername/quiz-api/internal/domain/entity"
)

// UserRepository определяет методы для работы с пользователями
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*entity.User, error)
	Count(ctx context.Context) (int64, error)
	CountByRole(ctx context.Context) (map[string]int64, error)
}
