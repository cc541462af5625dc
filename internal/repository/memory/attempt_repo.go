package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

// AttemptRepo реализует repository.AttemptRepository в памяти
type AttemptRepo struct {
	s *Store
}

// Create вставляет попытку, проверяя уникальность пары (quiz, student)
func (r *AttemptRepo) Create(_ context.Context, attempt *entity.Attempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.attempts {
		if existing.QuizID == attempt.QuizID && existing.StudentID == attempt.StudentID {
			return fmt.Errorf("%w: quiz #%d student #%d", repository.ErrDuplicateAttempt, attempt.QuizID, attempt.StudentID)
		}
	}

	if attempt.Warnings == nil {
		attempt.Warnings = datatypes.JSONSlice[entity.AttemptWarning]{}
	}
	attempt.ID = r.s.newID("attempts")
	now := r.s.clock()
	attempt.CreatedAt, attempt.UpdatedAt = now, now
	r.s.attempts[attempt.ID] = copyAttempt(*attempt)
	return nil
}

// GetByID возвращает попытку вместе с ответами
func (r *AttemptRepo) GetByID(_ context.Context, id uint) (*entity.Attempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stored, ok := r.s.attempts[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	attempt := copyAttempt(stored)
	attempt.Answers = r.s.answersOf(id)
	return &attempt, nil
}

// GetByQuizAndStudent возвращает попытку студента по викторине
func (r *AttemptRepo) GetByQuizAndStudent(_ context.Context, quizID, studentID uint) (*entity.Attempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, stored := range r.s.attempts {
		if stored.QuizID == quizID && stored.StudentID == studentID {
			attempt := copyAttempt(stored)
			return &attempt, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// ListByQuiz возвращает попытки викторины в порядке создания
func (r *AttemptRepo) ListByQuiz(_ context.Context, quizID uint) ([]entity.Attempt, error) {
	return r.list(func(a entity.Attempt) bool { return a.QuizID == quizID }, false), nil
}

// ListByStudent возвращает попытки студента, новые первыми
func (r *AttemptRepo) ListByStudent(_ context.Context, studentID uint) ([]entity.Attempt, error) {
	return r.list(func(a entity.Attempt) bool { return a.StudentID == studentID }, true), nil
}

func (r *AttemptRepo) list(match func(a entity.Attempt) bool, newestFirst bool) []entity.Attempt {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	attempts := make([]entity.Attempt, 0)
	for _, stored := range r.s.attempts {
		if match(stored) {
			attempts = append(attempts, copyAttempt(stored))
		}
	}
	sort.Slice(attempts, func(i, j int) bool {
		if newestFirst {
			return attempts[i].ID > attempts[j].ID
		}
		return attempts[i].ID < attempts[j].ID
	})
	return attempts
}

// CountByQuiz возвращает количество попыток по викторине
func (r *AttemptRepo) CountByQuiz(_ context.Context, quizID uint) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var total int64
	for _, stored := range r.s.attempts {
		if stored.QuizID == quizID {
			total++
		}
	}
	return total, nil
}

// Count возвращает общее количество попыток
func (r *AttemptRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.attempts)), nil
}

// ListExpiredInProgress возвращает незавершенные попытки с истекшим сроком
func (r *AttemptRepo) ListExpiredInProgress(_ context.Context, now time.Time, limit int) ([]entity.Attempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	expired := make([]entity.Attempt, 0)
	for _, stored := range r.s.attempts {
		if stored.Status != entity.AttemptStatusInProgress {
			continue
		}
		quiz, ok := r.s.quizzes[stored.QuizID]
		if !ok {
			continue
		}
		if now.After(quiz.AttemptDeadline(stored.StartedAt)) {
			expired = append(expired, copyAttempt(stored))
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

// SaveAnswer делает upsert ответа после проверки guard
func (r *AttemptRepo) SaveAnswer(_ context.Context, attemptID uint, answer *entity.AttemptAnswer, guard repository.AnswerGuard) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.attempts[attemptID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if guard != nil {
		snapshot := copyAttempt(stored)
		if err := guard(&snapshot); err != nil {
			return err
		}
	}

	answer.AttemptID = attemptID
	for id, existing := range r.s.answers {
		if existing.AttemptID == attemptID && existing.QuestionID == answer.QuestionID {
			existing.SelectedOption = answer.SelectedOption
			existing.AnsweredAt = answer.AnsweredAt
			r.s.answers[id] = existing
			answer.ID = id
			return nil
		}
	}
	answer.ID = r.s.newID("attempt_answers")
	r.s.answers[answer.ID] = *answer
	return nil
}

// Mutate применяет fn под эксклюзивной блокировкой хранилища
func (r *AttemptRepo) Mutate(_ context.Context, attemptID uint, fn repository.AttemptMutation) (*entity.Attempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.attempts[attemptID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	attempt := copyAttempt(stored)
	attempt.Answers = r.s.answersOf(attemptID)

	change, err := fn(&attempt)
	if err != nil {
		return nil, err
	}
	if change == nil {
		return &attempt, nil
	}

	var resultID uint
	if change.Result != nil {
		for _, existing := range r.s.results {
			if existing.AttemptID == attemptID && !change.DeleteResult {
				return nil, fmt.Errorf("create result for attempt #%d failed: duplicate attempt_id", attemptID)
			}
		}
		resultID = r.s.newID("results")
	}

	attempt.UpdatedAt = r.s.clock()
	saved := copyAttempt(attempt)
	r.s.attempts[attemptID] = saved

	if change.SaveAnswers {
		for i := range attempt.Answers {
			answer := &attempt.Answers[i]
			answer.AttemptID = attemptID
			if answer.ID == 0 {
				answer.ID = r.s.newID("attempt_answers")
			}
			r.s.answers[answer.ID] = *answer
		}
	}

	if change.DeleteResult {
		for id, existing := range r.s.results {
			if existing.AttemptID == attemptID {
				delete(r.s.results, id)
			}
		}
	}

	if change.Result != nil {
		change.Result.ID = resultID
		change.Result.CreatedAt = r.s.clock()
		r.s.results[resultID] = *change.Result
	}
	return &attempt, nil
}
