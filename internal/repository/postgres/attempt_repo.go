package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

// AttemptRepo реализует repository.AttemptRepository
type AttemptRepo struct {
	db *gorm.DB
}

// NewAttemptRepo создает новый репозиторий попыток
func NewAttemptRepo(db *gorm.DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// Create вставляет попытку одним INSERT.
// Единственность попытки гарантирует уникальный индекс idx_attempt_quiz_student:
// 23505 от любого из драйверов превращается в ErrDuplicateAttempt.
func (r *AttemptRepo) Create(ctx context.Context, attempt *entity.Attempt) error {
	if attempt.Warnings == nil {
		attempt.Warnings = datatypes.JSONSlice[entity.AttemptWarning]{}
	}

	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(attempt).Error
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: quiz #%d student #%d", repository.ErrDuplicateAttempt, attempt.QuizID, attempt.StudentID)
		}
		return fmt.Errorf("create attempt for quiz #%d failed: %w", attempt.QuizID, err)
	}
	return nil
}

// GetByID возвращает попытку вместе с ответами
func (r *AttemptRepo) GetByID(ctx context.Context, id uint) (*entity.Attempt, error) {
	var attempt entity.Attempt
	err := r.db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		First(&attempt, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

// GetByQuizAndStudent возвращает попытку студента по викторине (без ответов)
func (r *AttemptRepo) GetByQuizAndStudent(ctx context.Context, quizID, studentID uint) (*entity.Attempt, error) {
	var attempt entity.Attempt
	err := r.db.WithContext(ctx).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

// ListByQuiz возвращает все попытки по викторине в порядке создания
func (r *AttemptRepo) ListByQuiz(ctx context.Context, quizID uint) ([]entity.Attempt, error) {
	var attempts []entity.Attempt
	err := r.db.WithContext(ctx).Where("quiz_id = ?", quizID).Order("id ASC").Find(&attempts).Error
	return attempts, err
}

// ListByStudent возвращает все попытки студента, новые первыми
func (r *AttemptRepo) ListByStudent(ctx context.Context, studentID uint) ([]entity.Attempt, error) {
	var attempts []entity.Attempt
	err := r.db.WithContext(ctx).Where("student_id = ?", studentID).Order("started_at DESC, id DESC").Find(&attempts).Error
	return attempts, err
}

// CountByQuiz возвращает количество попыток по викторине
func (r *AttemptRepo) CountByQuiz(ctx context.Context, quizID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.Attempt{}).Where("quiz_id = ?", quizID).Count(&total).Error
	return total, err
}

// Count возвращает общее количество попыток
func (r *AttemptRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.Attempt{}).Count(&total).Error
	return total, err
}

// ListExpiredInProgress находит незавершенные попытки с истекшим сроком:
// started_at + duration < now либо окно викторины уже закрыто
func (r *AttemptRepo) ListExpiredInProgress(ctx context.Context, now time.Time, limit int) ([]entity.Attempt, error) {
	var attempts []entity.Attempt
	err := r.db.WithContext(ctx).
		Model(&entity.Attempt{}).
		Select("attempts.*").
		Joins("JOIN quizzes ON quizzes.id = attempts.quiz_id").
		Where("attempts.status = ?", entity.AttemptStatusInProgress).
		Where("attempts.started_at + quizzes.duration_minutes * INTERVAL '1 minute' < ? OR quizzes.end_time < ?", now, now).
		Order("attempts.id ASC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

// SaveAnswer записывает ответ под блокировкой FOR SHARE на строке попытки.
// Параллельные ответы не блокируют друг друга, но ждут завершения Submit/Invalidate (FOR UPDATE).
func (r *AttemptRepo) SaveAnswer(ctx context.Context, attemptID uint, answer *entity.AttemptAnswer, guard repository.AnswerGuard) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var attempt entity.Attempt
		if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).First(&attempt, attemptID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}

		if guard != nil {
			if err := guard(&attempt); err != nil {
				return err
			}
		}

		answer.AttemptID = attemptID
		// Последняя запись побеждает
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"selected_option", "answered_at"}),
		}).Create(answer).Error
	})
}

// Mutate блокирует попытку FOR UPDATE, загружает снимок ответов и применяет fn.
// Все изменения (поля попытки, оцененные ответы, результат) фиксируются одной транзакцией.
func (r *AttemptRepo) Mutate(ctx context.Context, attemptID uint, fn repository.AttemptMutation) (*entity.Attempt, error) {
	var attempt entity.Attempt

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&attempt, attemptID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}
		if err := tx.Where("attempt_id = ?", attemptID).Order("id ASC").Find(&attempt.Answers).Error; err != nil {
			return err
		}

		change, err := fn(&attempt)
		if err != nil {
			return err
		}
		if change == nil {
			return nil
		}

		if err := tx.Model(&entity.Attempt{}).
			Where("id = ?", attempt.ID).
			Updates(map[string]interface{}{
				"status":           attempt.Status,
				"submitted_at":     attempt.SubmittedAt,
				"time_taken_sec":   attempt.TimeTakenSec,
				"total_score":      attempt.TotalScore,
				"percentage":       attempt.Percentage,
				"is_passed":        attempt.IsPassed,
				"tab_switch_count": attempt.TabSwitchCount,
				"warnings":         attempt.Warnings,
			}).Error; err != nil {
			return fmt.Errorf("update attempt #%d failed: %w", attempt.ID, err)
		}

		if change.SaveAnswers {
			if err := saveScoredAnswers(tx, &attempt); err != nil {
				return err
			}
		}

		if change.DeleteResult {
			if err := tx.Where("attempt_id = ?", attempt.ID).Delete(&entity.Result{}).Error; err != nil {
				return fmt.Errorf("delete result of attempt #%d failed: %w", attempt.ID, err)
			}
		}

		if change.Result != nil {
			if err := tx.Create(change.Result).Error; err != nil {
				if isUniqueViolation(err) {
					log.Printf("[AttemptRepo] CRITICAL: повторный результат для попытки #%d", attempt.ID)
				}
				return fmt.Errorf("create result for attempt #%d failed: %w", attempt.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// saveScoredAnswers обновляет оценку существующих ответов и вставляет записи для неотвеченных вопросов
func saveScoredAnswers(tx *gorm.DB, attempt *entity.Attempt) error {
	for i := range attempt.Answers {
		answer := &attempt.Answers[i]
		answer.AttemptID = attempt.ID

		if answer.ID == 0 {
			if err := tx.Create(answer).Error; err != nil {
				return fmt.Errorf("insert answer for question #%d failed: %w", answer.QuestionID, err)
			}
			continue
		}

		if err := tx.Model(&entity.AttemptAnswer{}).
			Where("id = ?", answer.ID).
			Updates(map[string]interface{}{
				"is_correct":    answer.IsCorrect,
				"marks_awarded": answer.MarksAwarded,
			}).Error; err != nil {
			return fmt.Errorf("update answer #%d failed: %w", answer.ID, err)
		}
	}
	return nil
}
