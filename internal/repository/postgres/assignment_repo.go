package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/quiz-api/internal/domain/entity"
)

// AssignmentRepo реализует repository.AssignmentRepository
type AssignmentRepo struct {
	db *gorm.DB
}

// NewAssignmentRepo создает новый репозиторий допусков
func NewAssignmentRepo(db *gorm.DB) *AssignmentRepo {
	return &AssignmentRepo{db: db}
}

// Grant выдает допуск списку студентов, существующие пары пропускаются
func (r *AssignmentRepo) Grant(ctx context.Context, quizID, grantedBy uint, studentIDs []uint) (int64, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}

	assignments := make([]entity.QuizAssignment, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		assignments = append(assignments, entity.QuizAssignment{
			QuizID:    quizID,
			StudentID: studentID,
			GrantedBy: grantedBy,
		})
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&assignments)
	return result.RowsAffected, result.Error
}

// Revoke отзывает допуск. Уже начатые попытки не затрагиваются.
func (r *AssignmentRepo) Revoke(ctx context.Context, quizID uint, studentIDs []uint) (int64, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("quiz_id = ? AND student_id IN ?", quizID, studentIDs).
		Delete(&entity.QuizAssignment{})
	return result.RowsAffected, result.Error
}

// IsAssigned проверяет наличие допуска
func (r *AssignmentRepo) IsAssigned(ctx context.Context, quizID, studentID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.QuizAssignment{}).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		Count(&count).Error
	return count > 0, err
}

// ListByQuiz возвращает допуски викторины
func (r *AssignmentRepo) ListByQuiz(ctx context.Context, quizID uint) ([]entity.QuizAssignment, error) {
	var assignments []entity.QuizAssignment
	err := r.db.WithContext(ctx).Where("quiz_id = ?", quizID).Order("student_id ASC").Find(&assignments).Error
	return assignments, err
}
