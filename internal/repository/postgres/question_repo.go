package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(ctx context.Context, id uint) (*entity.Question, error) {
	var question entity.Question
	err := r.db.WithContext(ctx).First(&question, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &question, nil
}

// ListByQuiz возвращает все вопросы викторины в порядке следования
func (r *QuestionRepo) ListByQuiz(ctx context.Context, quizID uint) ([]entity.Question, error) {
	var questions []entity.Question
	err := r.db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("order_index ASC, id ASC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// AddToQuiz добавляет пакет вопросов в конец викторины и
// в той же транзакции увеличивает question_count и total_marks
func (r *QuestionRepo) AddToQuiz(ctx context.Context, quizID uint, questions []entity.Question) error {
	if len(questions) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Блокируем викторину, чтобы параллельные вставки не перепутали порядок и счетчики
		var quiz entity.Quiz
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&quiz, quizID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}

		var maxOrder int
		if err := tx.Model(&entity.Question{}).
			Where("quiz_id = ?", quizID).
			Select("COALESCE(MAX(order_index), 0)").
			Scan(&maxOrder).Error; err != nil {
			return err
		}

		marks := 0
		for i := range questions {
			questions[i].QuizID = quizID
			questions[i].OrderIndex = maxOrder + i + 1
			marks += questions[i].Marks
		}

		if err := tx.Create(&questions).Error; err != nil {
			return err
		}

		return tx.Model(&entity.Quiz{}).
			Where("id = ?", quizID).
			Updates(map[string]interface{}{
				"question_count": gorm.Expr("question_count + ?", len(questions)),
				"total_marks":    gorm.Expr("total_marks + ?", marks),
			}).Error
	})
}

// Update изменяет вопрос и корректирует total_marks викторины на разницу баллов
func (r *QuestionRepo) Update(ctx context.Context, question *entity.Question) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current entity.Question
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, question.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}

		if err := tx.Model(&entity.Question{}).
			Where("id = ?", question.ID).
			Select("text", "options", "correct_option", "marks", "updated_at").
			Updates(question).Error; err != nil {
			return err
		}

		if delta := question.Marks - current.Marks; delta != 0 {
			return tx.Model(&entity.Quiz{}).
				Where("id = ?", current.QuizID).
				Update("total_marks", gorm.Expr("total_marks + ?", delta)).Error
		}
		return nil
	})
}

// Delete удаляет вопрос и уменьшает счетчики викторины
func (r *QuestionRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current entity.Question
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}

		if err := tx.Delete(&entity.Question{}, id).Error; err != nil {
			return err
		}

		return tx.Model(&entity.Quiz{}).
			Where("id = ?", current.QuizID).
			Updates(map[string]interface{}{
				"question_count": gorm.Expr("question_count - 1"),
				"total_marks":    gorm.Expr("total_marks - ?", current.Marks),
			}).Error
	})
}
