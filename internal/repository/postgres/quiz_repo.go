package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

// QuizRepo реализует repository.QuizRepository
type QuizRepo struct {
	db *gorm.DB
}

// NewQuizRepo создает новый репозиторий викторин
func NewQuizRepo(db *gorm.DB) *QuizRepo {
	return &QuizRepo{db: db}
}

// Create создает новую викторину
func (r *QuizRepo) Create(ctx context.Context, quiz *entity.Quiz) error {
	return r.db.WithContext(ctx).Create(quiz).Error
}

// GetByID возвращает викторину по ID
func (r *QuizRepo) GetByID(ctx context.Context, id uint) (*entity.Quiz, error) {
	var quiz entity.Quiz
	err := r.db.WithContext(ctx).First(&quiz, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &quiz, nil
}

// GetWithQuestions возвращает викторину вместе с упорядоченными вопросами
func (r *QuizRepo) GetWithQuestions(ctx context.Context, id uint) (*entity.Quiz, error) {
	var quiz entity.Quiz
	err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC, id ASC")
		}).
		First(&quiz, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &quiz, nil
}

// Update обновляет метаданные викторины.
// Счетчики question_count и total_marks ведет QuestionRepo, здесь они не перезаписываются.
func (r *QuizRepo) Update(ctx context.Context, quiz *entity.Quiz) error {
	result := r.db.WithContext(ctx).Model(&entity.Quiz{}).
		Where("id = ?", quiz.ID).
		Select("title", "description", "start_time", "end_time", "duration_minutes",
			"passing_marks", "department", "semester", "subject", "batch", "updated_at").
		Updates(quiz)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SetActive точечно обновляет флаг is_active
func (r *QuizRepo) SetActive(ctx context.Context, id uint, active bool) error {
	return r.updateFlag(ctx, id, "is_active", active)
}

// SetPublished точечно обновляет флаг is_published
func (r *QuizRepo) SetPublished(ctx context.Context, id uint, published bool) error {
	return r.updateFlag(ctx, id, "is_published", published)
}

func (r *QuizRepo) updateFlag(ctx context.Context, id uint, column string, value bool) error {
	result := r.db.WithContext(ctx).Model(&entity.Quiz{}).
		Where("id = ?", id).
		Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ListWithFilters возвращает список викторин с фильтрами и total count
func (r *QuizRepo) ListWithFilters(ctx context.Context, filters repository.QuizFilters, limit, offset int) ([]entity.Quiz, int64, error) {
	var quizzes []entity.Quiz
	var total int64

	// Строим базовый запрос
	query := r.db.WithContext(ctx).Model(&entity.Quiz{})

	// Применяем фильтры
	if filters.Department != "" {
		query = query.Where("department = ?", filters.Department)
	}
	if filters.Subject != "" {
		query = query.Where("subject = ?", filters.Subject)
	}
	if filters.Semester != "" {
		query = query.Where("semester = ?", filters.Semester)
	}
	if filters.OwnerID != 0 {
		query = query.Where("owner_id = ?", filters.OwnerID)
	}
	if filters.Published != nil {
		query = query.Where("is_published = ?", *filters.Published)
	}
	if filters.OnlyAvailable {
		query = query.Where("is_active = ? AND is_published = ?", true, true)
	}
	if filters.Search != "" {
		search := "%" + filters.Search + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", search, search)
	}

	// Получаем total count
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("start_time DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&quizzes).Error
	if err != nil {
		return nil, 0, err
	}

	return quizzes, total, nil
}

// Delete удаляет викторину. Вопросы удаляются каскадно,
// а внешний ключ attempts.quiz_id (ON DELETE RESTRICT) не дает удалить викторину с попытками.
func (r *QuizRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var attempts int64
		if err := tx.Model(&entity.Attempt{}).Where("quiz_id = ?", id).Count(&attempts).Error; err != nil {
			return err
		}
		if attempts > 0 {
			return fmt.Errorf("%w: quiz #%d has %d attempts", repository.ErrQuizHasAttempts, id, attempts)
		}

		result := tx.Delete(&entity.Quiz{}, id)
		if result.Error != nil {
			if isForeignKeyViolation(result.Error) {
				return fmt.Errorf("%w: quiz #%d", repository.ErrQuizHasAttempts, id)
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
}

// Count возвращает общее количество викторин
func (r *QuizRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.Quiz{}).Count(&total).Error
	return total, err
}

// CountByDepartment возвращает количество викторин по кафедрам
func (r *QuizRepo) CountByDepartment(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Department string
		Total      int64
	}
	err := r.db.WithContext(ctx).Model(&entity.Quiz{}).
		Select("department, COUNT(*) AS total").
		Group("department").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Department] = row.Total
	}
	return counts, nil
}
