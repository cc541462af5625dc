package memory

import (
	"context"
	"sort"

	"github.com/yourusername/quiz-api/internal/domain/entity"
)

// AssignmentRepo реализует repository.AssignmentRepository в памяти
type AssignmentRepo struct {
	s *Store
}

// Grant выдает допуск, существующие пары пропускаются
func (r *AssignmentRepo) Grant(_ context.Context, quizID, grantedBy uint, studentIDs []uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var created int64
	for _, studentID := range studentIDs {
		key := assignmentKey{quizID: quizID, studentID: studentID}
		if _, exists := r.s.assignments[key]; exists {
			continue
		}
		r.s.assignments[key] = entity.QuizAssignment{
			ID:        r.s.newID("quiz_assignments"),
			QuizID:    quizID,
			StudentID: studentID,
			GrantedBy: grantedBy,
			CreatedAt: r.s.clock(),
		}
		created++
	}
	return created, nil
}

// Revoke отзывает допуск
func (r *AssignmentRepo) Revoke(_ context.Context, quizID uint, studentIDs []uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var removed int64
	for _, studentID := range studentIDs {
		key := assignmentKey{quizID: quizID, studentID: studentID}
		if _, exists := r.s.assignments[key]; exists {
			delete(r.s.assignments, key)
			removed++
		}
	}
	return removed, nil
}

// IsAssigned проверяет наличие допуска
func (r *AssignmentRepo) IsAssigned(_ context.Context, quizID, studentID uint) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.assignments[assignmentKey{quizID: quizID, studentID: studentID}]
	return ok, nil
}

// ListByQuiz возвращает допуски викторины
func (r *AssignmentRepo) ListByQuiz(_ context.Context, quizID uint) ([]entity.QuizAssignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	assignments := make([]entity.QuizAssignment, 0)
	for key, assignment := range r.s.assignments {
		if key.quizID == quizID {
			assignments = append(assignments, assignment)
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].StudentID < assignments[j].StudentID })
	return assignments, nil
}
