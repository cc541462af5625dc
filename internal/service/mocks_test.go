package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/repository/memory"
)

// MockCacheRepository реализует repository.CacheRepository
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) SetJSON(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) GetJSON(key string, dest interface{}) error {
	args := m.Called(key, dest)
	return args.Error(0)
}

func (m *MockCacheRepository) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

// MockAuditor реализует Auditor
type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) Record(ctx context.Context, event AuditEvent) {
	m.Called(event.Action, event.EntityID)
}

// MockResultNotifier реализует ResultNotifier. Вызывается из горутины.
type MockResultNotifier struct {
	mock.Mock
	mu   sync.Mutex
	sent []ResultSummary
}

func (m *MockResultNotifier) NotifyResult(ctx context.Context, toEmail string, summary ResultSummary) error {
	m.mu.Lock()
	m.sent = append(m.sent, summary)
	m.mu.Unlock()
	args := m.Called(toEmail, summary.AttemptID)
	return args.Error(0)
}

func (m *MockResultNotifier) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

const (
	testStudentID     uint = 100
	testOtherStudent  uint = 101
	testCoordinatorID uint = 10
)

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// fixture - викторина на 10 вопросов по 1 баллу, окно 09:00-11:00, длительность 30 минут
type fixture struct {
	store     *memory.Store
	cache     *memory.CacheRepo
	quiz      *entity.Quiz
	questions []entity.Question
}

func newFixture(t *testing.T, passingMarks int) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	store.PutUser(&entity.User{ID: testCoordinatorID, Username: "coord", Email: "coord@uni.test", Role: entity.RoleCoordinator})
	store.PutUser(&entity.User{ID: testStudentID, Username: "student", Email: "student@uni.test", FullName: "Иван Петров", Role: entity.RoleStudent})
	store.PutUser(&entity.User{ID: testOtherStudent, Username: "other", Email: "other@uni.test", Role: entity.RoleStudent})

	quiz := &entity.Quiz{
		OwnerID:         testCoordinatorID,
		Title:           "Базы данных",
		StartTime:       testStart,
		EndTime:         testStart.Add(2 * time.Hour),
		DurationMinutes: 30,
		PassingMarks:    passingMarks,
		IsActive:        true,
		IsPublished:     true,
		Department:      "CS",
	}
	require.NoError(t, store.Quizzes().Create(ctx, quiz))

	questions := make([]entity.Question, 10)
	for i := range questions {
		questions[i] = entity.Question{
			Text:          "Вопрос",
			Options:       entity.StringArray{"a", "b", "c", "d"},
			CorrectOption: entity.OptionLabels[i%4],
			Marks:         1,
		}
	}
	require.NoError(t, store.Questions().AddToQuiz(ctx, quiz.ID, questions))

	_, err := store.Assignments().Grant(ctx, quiz.ID, testCoordinatorID, []uint{testStudentID, testOtherStudent})
	require.NoError(t, err)

	reloaded, err := store.Quizzes().GetByID(ctx, quiz.ID)
	require.NoError(t, err)

	return &fixture{store: store, cache: memory.NewCacheRepo(), quiz: reloaded, questions: questions}
}

func (f *fixture) attemptService(maxTabSwitches int) *AttemptService {
	return NewAttemptService(
		f.store.Quizzes(), f.store.Questions(), f.store.Attempts(),
		f.store.Assignments(), f.store.Users(), f.cache,
		NoopAuditor{}, &NoopResultNotifier{}, maxTabSwitches,
	)
}

func (f *fixture) quizService() *QuizService {
	return NewQuizService(
		f.store.Quizzes(), f.store.Questions(), f.store.Attempts(), f.store.Results(),
		f.store.Assignments(), f.cache, nil, NoopAuditor{},
	)
}

func (f *fixture) analyticsService() *AnalyticsService {
	return NewAnalyticsService(
		f.store.Quizzes(), f.store.Attempts(), f.store.Results(), f.store.Users(),
		f.cache, time.Minute, 10,
	)
}

// wrongOption возвращает заведомо неверный вариант для вопроса i
func (f *fixture) wrongOption(i int) string {
	return entity.OptionLabels[(i+1)%4]
}
