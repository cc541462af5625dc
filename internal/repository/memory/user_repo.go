package memory

import (
	"context"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

// UserRepo реализует repository.UserRepository в памяти
type UserRepo struct {
	s *Store
}

// GetByID возвращает пользователя по ID
func (r *UserRepo) GetByID(_ context.Context, id uint) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &user, nil
}

// Count возвращает количество пользователей
func (r *UserRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.users)), nil
}

// CountByRole возвращает распределение пользователей по ролям
func (r *UserRepo) CountByRole(_ context.Context) (map[string]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, user := range r.s.users {
		counts[user.Role]++
	}
	return counts, nil
}
