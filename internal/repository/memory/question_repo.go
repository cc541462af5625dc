package memory

import (
	"context"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

// QuestionRepo реализует repository.QuestionRepository в памяти
type QuestionRepo struct {
	s *Store
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(_ context.Context, id uint) (*entity.Question, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	question, ok := r.s.questions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	question = copyQuestion(question)
	return &question, nil
}

// ListByQuiz возвращает вопросы викторины в порядке следования
func (r *QuestionRepo) ListByQuiz(_ context.Context, quizID uint) ([]entity.Question, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.questionsOf(quizID), nil
}

// AddToQuiz добавляет вопросы в конец викторины и обновляет счетчики
func (r *QuestionRepo) AddToQuiz(_ context.Context, quizID uint, questions []entity.Question) error {
	if len(questions) == 0 {
		return nil
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	quiz, ok := r.s.quizzes[quizID]
	if !ok {
		return apperrors.ErrNotFound
	}

	maxOrder := 0
	for _, q := range r.s.questions {
		if q.QuizID == quizID && q.OrderIndex > maxOrder {
			maxOrder = q.OrderIndex
		}
	}

	now := r.s.clock()
	for i := range questions {
		questions[i].ID = r.s.newID("questions")
		questions[i].QuizID = quizID
		questions[i].OrderIndex = maxOrder + i + 1
		questions[i].CreatedAt, questions[i].UpdatedAt = now, now
		r.s.questions[questions[i].ID] = copyQuestion(questions[i])

		quiz.QuestionCount++
		quiz.TotalMarks += questions[i].Marks
	}
	r.s.quizzes[quizID] = quiz
	return nil
}

// Update изменяет вопрос и корректирует total_marks викторины
func (r *QuestionRepo) Update(_ context.Context, question *entity.Question) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.questions[question.ID]
	if !ok {
		return apperrors.ErrNotFound
	}

	if quiz, ok := r.s.quizzes[current.QuizID]; ok {
		quiz.TotalMarks += question.Marks - current.Marks
		r.s.quizzes[current.QuizID] = quiz
	}

	current.Text = question.Text
	current.Options = question.Options
	current.CorrectOption = question.CorrectOption
	current.Marks = question.Marks
	current.UpdatedAt = r.s.clock()
	r.s.questions[question.ID] = copyQuestion(current)
	return nil
}

// Delete удаляет вопрос вместе с ответами на него и уменьшает счетчики
func (r *QuestionRepo) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.questions[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if quiz, ok := r.s.quizzes[current.QuizID]; ok {
		quiz.QuestionCount--
		quiz.TotalMarks -= current.Marks
		r.s.quizzes[current.QuizID] = quiz
	}
	for aid, answer := range r.s.answers {
		if answer.QuestionID == id {
			delete(r.s.answers, aid)
		}
	}
	delete(r.s.questions, id)
	return nil
}
