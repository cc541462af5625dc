package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

// ResultRepo реализует repository.ResultRepository
type ResultRepo struct {
	db *gorm.DB
}

// NewResultRepo создает новый репозиторий результатов
func NewResultRepo(db *gorm.DB) *ResultRepo {
	return &ResultRepo{db: db}
}

// GetByAttempt возвращает результат попытки
func (r *ResultRepo) GetByAttempt(ctx context.Context, attemptID uint) (*entity.Result, error) {
	var result entity.Result
	err := r.db.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

// ListByQuiz возвращает ВСЕ результаты викторины в порядке вставки.
// Порядок важен для стабильной сортировки топа.
func (r *ResultRepo) ListByQuiz(ctx context.Context, quizID uint) ([]entity.Result, error) {
	var results []entity.Result
	err := r.db.WithContext(ctx).Where("quiz_id = ?", quizID).Order("id ASC").Find(&results).Error
	// Пустой слайс - валидный результат
	return results, err
}

// GetQuizResults возвращает результаты викторины по убыванию баллов с пагинацией и total
func (r *ResultRepo) GetQuizResults(ctx context.Context, quizID uint, limit, offset int) ([]entity.Result, int64, error) {
	var results []entity.Result
	var total int64

	// Используем транзакцию для согласованности чтения данных и общего количества
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.Result{}).Where("quiz_id = ?", quizID).Count(&total).Error; err != nil {
			return err
		}
		return tx.Where("quiz_id = ?", quizID).
			Order("score DESC, id ASC").
			Limit(limit).
			Offset(offset).
			Find(&results).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// ListByStudent возвращает результаты студента, новые первыми
func (r *ResultRepo) ListByStudent(ctx context.Context, studentID uint) ([]entity.Result, error) {
	var results []entity.Result
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("completed_at DESC, id DESC").
		Find(&results).Error
	return results, err
}

// Count возвращает общее количество результатов
func (r *ResultRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.Result{}).Count(&total).Error
	return total, err
}
