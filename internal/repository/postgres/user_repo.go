package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

// UserRepo реализует repository.UserRepository
type UserRepo struct {
	db *gorm.DB
}

// NewUserRepo создает новый репозиторий пользователей
func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetByID возвращает пользователя по ID
func (r *UserRepo) GetByID(ctx context.Context, id uint) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Count возвращает общее количество пользователей
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.User{}).Count(&total).Error
	return total, err
}

// CountByRole возвращает распределение пользователей по ролям
func (r *UserRepo) CountByRole(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Role  string
		Total int64
	}
	err := r.db.WithContext(ctx).Model(&entity.User{}).
		Select("role, COUNT(*) AS total").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Total
	}
	return counts, nil
}
