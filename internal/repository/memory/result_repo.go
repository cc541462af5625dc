package memory

import (
	"context"
	"sort"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

// ResultRepo реализует repository.ResultRepository в памяти
type ResultRepo struct {
	s *Store
}

// GetByAttempt возвращает результат попытки
func (r *ResultRepo) GetByAttempt(_ context.Context, attemptID uint) (*entity.Result, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, result := range r.s.results {
		if result.AttemptID == attemptID {
			found := result
			return &found, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// ListByQuiz возвращает результаты викторины в порядке вставки
func (r *ResultRepo) ListByQuiz(_ context.Context, quizID uint) ([]entity.Result, error) {
	results := r.filter(func(res entity.Result) bool { return res.QuizID == quizID })
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

// GetQuizResults возвращает страницу результатов по убыванию баллов
func (r *ResultRepo) GetQuizResults(_ context.Context, quizID uint, limit, offset int) ([]entity.Result, int64, error) {
	results := r.filter(func(res entity.Result) bool { return res.QuizID == quizID })
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	total := int64(len(results))
	if offset >= len(results) {
		return []entity.Result{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(results) {
		end = len(results)
	}
	return results[offset:end], total, nil
}

// ListByStudent возвращает результаты студента, новые первыми
func (r *ResultRepo) ListByStudent(_ context.Context, studentID uint) ([]entity.Result, error) {
	results := r.filter(func(res entity.Result) bool { return res.StudentID == studentID })
	sort.Slice(results, func(i, j int) bool {
		if !results[i].CompletedAt.Equal(results[j].CompletedAt) {
			return results[i].CompletedAt.After(results[j].CompletedAt)
		}
		return results[i].ID > results[j].ID
	})
	return results, nil
}

// Count возвращает общее количество результатов
func (r *ResultRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.results)), nil
}

func (r *ResultRepo) filter(match func(res entity.Result) bool) []entity.Result {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	results := make([]entity.Result, 0)
	for _, result := range r.s.results {
		if match(result) {
			results = append(results, result)
		}
	}
	return results
}
