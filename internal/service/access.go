package service

import (
	"fmt"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

// Actor - аутентифицированный пользователь, от имени которого выполняется операция
type Actor struct {
	UserID uint
	Role   string
}

// SystemActor используется фоновыми задачами (финализация просроченных попыток)
var SystemActor = Actor{Role: entity.RoleAdmin}

// IsStaff возвращает true для администратора и координатора
func (a Actor) IsStaff() bool {
	return entity.IsStaffRole(a.Role)
}

// IsAdmin возвращает true для администратора
func (a Actor) IsAdmin() bool {
	return a.Role == entity.RoleAdmin
}

// canManageQuiz: администратор управляет всеми викторинами, координатор только своими
func canManageQuiz(actor Actor, quiz *entity.Quiz) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role == entity.RoleCoordinator && quiz.OwnerID == actor.UserID {
		return nil
	}
	return fmt.Errorf("%w: user #%d cannot manage quiz #%d", apperrors.ErrForbidden, actor.UserID, quiz.ID)
}

// canViewStudent: студент видит только себя, персонал видит всех
func canViewStudent(actor Actor, studentID uint) error {
	if actor.IsStaff() || actor.UserID == studentID {
		return nil
	}
	return fmt.Errorf("%w: user #%d cannot view student #%d", apperrors.ErrForbidden, actor.UserID, studentID)
}

// quizCacheKey - ключ кеша аналитики викторины
func quizCacheKey(quizID uint) string {
	return fmt.Sprintf("analytics:quiz:%d", quizID)
}
