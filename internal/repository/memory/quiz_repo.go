package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

// QuizRepo реализует repository.QuizRepository в памяти
type QuizRepo struct {
	s *Store
}

// Create создает новую викторину
func (r *QuizRepo) Create(_ context.Context, quiz *entity.Quiz) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	quiz.ID = r.s.newID("quizzes")
	now := r.s.clock()
	quiz.CreatedAt, quiz.UpdatedAt = now, now
	stored := *quiz
	stored.Questions = nil
	r.s.quizzes[quiz.ID] = stored
	return nil
}

// GetByID возвращает викторину по ID
func (r *QuizRepo) GetByID(_ context.Context, id uint) (*entity.Quiz, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	quiz, ok := r.s.quizzes[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &quiz, nil
}

// GetWithQuestions возвращает викторину вместе с вопросами
func (r *QuizRepo) GetWithQuestions(_ context.Context, id uint) (*entity.Quiz, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	quiz, ok := r.s.quizzes[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	quiz.Questions = r.s.questionsOf(id)
	return &quiz, nil
}

// Update обновляет метаданные викторины, не трогая счетчики и флаги
func (r *QuizRepo) Update(_ context.Context, quiz *entity.Quiz) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.quizzes[quiz.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	stored.Title = quiz.Title
	stored.Description = quiz.Description
	stored.StartTime = quiz.StartTime
	stored.EndTime = quiz.EndTime
	stored.DurationMinutes = quiz.DurationMinutes
	stored.PassingMarks = quiz.PassingMarks
	stored.Department = quiz.Department
	stored.Semester = quiz.Semester
	stored.Subject = quiz.Subject
	stored.Batch = quiz.Batch
	stored.UpdatedAt = r.s.clock()
	r.s.quizzes[quiz.ID] = stored
	return nil
}

// SetActive обновляет флаг is_active
func (r *QuizRepo) SetActive(_ context.Context, id uint, active bool) error {
	return r.update(id, func(q *entity.Quiz) { q.IsActive = active })
}

// SetPublished обновляет флаг is_published
func (r *QuizRepo) SetPublished(_ context.Context, id uint, published bool) error {
	return r.update(id, func(q *entity.Quiz) { q.IsPublished = published })
}

func (r *QuizRepo) update(id uint, fn func(q *entity.Quiz)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	quiz, ok := r.s.quizzes[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	fn(&quiz)
	quiz.UpdatedAt = r.s.clock()
	r.s.quizzes[id] = quiz
	return nil
}

// ListWithFilters возвращает отфильтрованный список и total count
func (r *QuizRepo) ListWithFilters(_ context.Context, filters repository.QuizFilters, limit, offset int) ([]entity.Quiz, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := make([]entity.Quiz, 0)
	for _, quiz := range r.s.quizzes {
		if matchesFilters(quiz, filters) {
			matched = append(matched, quiz)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartTime.Equal(matched[j].StartTime) {
			return matched[i].StartTime.After(matched[j].StartTime)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return []entity.Quiz{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func matchesFilters(quiz entity.Quiz, f repository.QuizFilters) bool {
	if f.Department != "" && quiz.Department != f.Department {
		return false
	}
	if f.Subject != "" && quiz.Subject != f.Subject {
		return false
	}
	if f.Semester != "" && quiz.Semester != f.Semester {
		return false
	}
	if f.OwnerID != 0 && quiz.OwnerID != f.OwnerID {
		return false
	}
	if f.Published != nil && quiz.IsPublished != *f.Published {
		return false
	}
	if f.OnlyAvailable && !quiz.IsAvailable() {
		return false
	}
	if f.Search != "" {
		search := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(quiz.Title), search) &&
			!strings.Contains(strings.ToLower(quiz.Description), search) {
			return false
		}
	}
	return true
}

// Delete удаляет викторину с вопросами, если на нее не ссылаются попытки
func (r *QuizRepo) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.quizzes[id]; !ok {
		return apperrors.ErrNotFound
	}
	for _, attempt := range r.s.attempts {
		if attempt.QuizID == id {
			return fmt.Errorf("%w: quiz #%d", repository.ErrQuizHasAttempts, id)
		}
	}

	for qid, question := range r.s.questions {
		if question.QuizID == id {
			delete(r.s.questions, qid)
		}
	}
	for key := range r.s.assignments {
		if key.quizID == id {
			delete(r.s.assignments, key)
		}
	}
	delete(r.s.quizzes, id)
	return nil
}

// Count возвращает общее количество викторин
func (r *QuizRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.quizzes)), nil
}

// CountByDepartment возвращает количество викторин по кафедрам
func (r *QuizRepo) CountByDepartment(_ context.Context) (map[string]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, quiz := range r.s.quizzes {
		counts[quiz.Department]++
	}
	return counts, nil
}
