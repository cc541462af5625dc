// Package memory содержит потокобезопасные in-memory реализации репозиториев.
// Используются как тестовые двойники для сервисов и обработчиков.
package memory

import (
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/yourusername/quiz-api/internal/domain/entity"
)

type assignmentKey struct {
	quizID    uint
	studentID uint
}

// Store хранит все таблицы под одним мьютексом.
// Мутации попыток сериализуются полностью, что строже, чем FOR SHARE/FOR UPDATE в PostgreSQL.
type Store struct {
	mu sync.RWMutex

	users       map[uint]entity.User
	quizzes     map[uint]entity.Quiz
	questions   map[uint]entity.Question
	attempts    map[uint]entity.Attempt
	answers     map[uint]entity.AttemptAnswer
	results     map[uint]entity.Result
	assignments map[assignmentKey]entity.QuizAssignment

	nextID map[string]uint
	clock  func() time.Time
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{
		users:       make(map[uint]entity.User),
		quizzes:     make(map[uint]entity.Quiz),
		questions:   make(map[uint]entity.Question),
		attempts:    make(map[uint]entity.Attempt),
		answers:     make(map[uint]entity.AttemptAnswer),
		results:     make(map[uint]entity.Result),
		assignments: make(map[assignmentKey]entity.QuizAssignment),
		nextID:      make(map[string]uint),
		clock:       time.Now,
	}
}

// PutUser добавляет или заменяет пользователя. ID назначается, если он нулевой.
func (s *Store) PutUser(user *entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == 0 {
		user.ID = s.newID("users")
	} else if user.ID >= s.nextID["users"] {
		s.nextID["users"] = user.ID
	}
	s.users[user.ID] = *user
}

// Quizzes возвращает репозиторий викторин поверх хранилища
func (s *Store) Quizzes() *QuizRepo { return &QuizRepo{s: s} }

// Questions возвращает репозиторий вопросов поверх хранилища
func (s *Store) Questions() *QuestionRepo { return &QuestionRepo{s: s} }

// Attempts возвращает репозиторий попыток поверх хранилища
func (s *Store) Attempts() *AttemptRepo { return &AttemptRepo{s: s} }

// Results возвращает репозиторий результатов поверх хранилища
func (s *Store) Results() *ResultRepo { return &ResultRepo{s: s} }

// Assignments возвращает репозиторий допусков поверх хранилища
func (s *Store) Assignments() *AssignmentRepo { return &AssignmentRepo{s: s} }

// Users возвращает репозиторий пользователей поверх хранилища
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// newID вызывается под s.mu.Lock
func (s *Store) newID(table string) uint {
	s.nextID[table]++
	return s.nextID[table]
}

// copyAttempt отвязывает срезы попытки от внутреннего состояния хранилища
func copyAttempt(a entity.Attempt) entity.Attempt {
	warnings := make(datatypes.JSONSlice[entity.AttemptWarning], len(a.Warnings))
	copy(warnings, a.Warnings)
	a.Warnings = warnings
	a.Answers = nil
	if a.SubmittedAt != nil {
		submitted := *a.SubmittedAt
		a.SubmittedAt = &submitted
	}
	return a
}

func copyQuestion(q entity.Question) entity.Question {
	options := make(entity.StringArray, len(q.Options))
	copy(options, q.Options)
	q.Options = options
	return q
}

// answersOf возвращает ответы попытки в порядке id. Вызывается под блокировкой.
func (s *Store) answersOf(attemptID uint) []entity.AttemptAnswer {
	answers := make([]entity.AttemptAnswer, 0)
	for _, answer := range s.answers {
		if answer.AttemptID == attemptID {
			answers = append(answers, answer)
		}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].ID < answers[j].ID })
	return answers
}

// questionsOf возвращает вопросы викторины в порядке order_index, id. Вызывается под блокировкой.
func (s *Store) questionsOf(quizID uint) []entity.Question {
	questions := make([]entity.Question, 0)
	for _, question := range s.questions {
		if question.QuizID == quizID {
			questions = append(questions, copyQuestion(question))
		}
	}
	sort.Slice(questions, func(i, j int) bool {
		if questions[i].OrderIndex != questions[j].OrderIndex {
			return questions[i].OrderIndex < questions[j].OrderIndex
		}
		return questions[i].ID < questions[j].ID
	})
	return questions
}
