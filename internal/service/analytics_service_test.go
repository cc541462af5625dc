package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

func TestAnalyticsService_EmptyQuizIsZeros(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	svc := f.analyticsService()

	// Act
	stats, err := svc.GetQuizAnalytics(context.Background(), coordinatorActor, f.quiz.ID, 0, testStart)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalAttempts)
	assert.Equal(t, 0.0, stats.CompletionRate)
	assert.Equal(t, 0.0, stats.AverageScore)
	assert.Equal(t, 0, stats.MinScore)
	assert.Equal(t, 0, stats.MaxScore)
	require.Len(t, stats.Histogram, 5)
	for _, b := range stats.Histogram {
		assert.Equal(t, 0, b.Count)
	}
	assert.Empty(t, stats.TopPerformers)
}

func TestAnalyticsService_QuizStatsAndCache(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	attempts := f.attemptService(0)
	svc := f.analyticsService()
	ctx := context.Background()

	a := startAt(t, attempts, f, testStudentID, testStart)
	for i := 0; i < 5; i++ {
		require.NoError(t, attempts.RecordAnswer(ctx, a.AttemptID, testStudentID, f.questions[i].ID, f.questions[i].CorrectOption, testStart.Add(time.Minute)))
	}
	_, err := attempts.Submit(ctx, a.AttemptID, testStudentID, SubmitModeManual, testStart.Add(2*time.Minute))
	require.NoError(t, err)
	startAt(t, attempts, f, testOtherStudent, testStart)

	// Act: вторая попытка просрочена, но еще не финализирована
	stats, err := svc.GetQuizAnalytics(ctx, coordinatorActor, f.quiz.ID, 0, testStart.Add(40*time.Minute))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalAttempts)
	assert.Equal(t, 1, stats.StatusCounts[entity.AttemptStatusSubmitted])
	assert.Equal(t, 1, stats.StatusCounts[entity.AttemptStatusAutoSubmitted], "Просроченная попытка видна как auto_submitted")
	assert.Equal(t, 0, stats.StatusCounts[entity.AttemptStatusInProgress])
	assert.Equal(t, 1, stats.PassedCount)
	assert.Equal(t, 5, stats.MaxScore)
	assert.Equal(t, 1, stats.Histogram[2].Count, "50% попадает в корзину 41-60")
	assert.True(t, f.cache.Has("analytics:quiz:1"), "Результат по умолчанию кешируется")

	// Сдача сбрасывает кеш
	_, err = attempts.Submit(ctx, 2, testOtherStudent, SubmitModeManual, testStart.Add(40*time.Minute))
	require.NoError(t, err)
	assert.False(t, f.cache.Has("analytics:quiz:1"))
}

func TestAnalyticsService_CacheHit(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	cache := new(MockCacheRepository)
	cache.On("GetJSON", "analytics:quiz:1", mock.Anything).Return(nil).Once()
	svc := NewAnalyticsService(f.store.Quizzes(), f.store.Attempts(), f.store.Results(), f.store.Users(), cache, time.Minute, 10)

	// Act
	_, err := svc.GetQuizAnalytics(context.Background(), coordinatorActor, f.quiz.ID, 10, testStart)

	// Assert
	require.NoError(t, err)
	cache.AssertExpectations(t)
	cache.AssertNotCalled(t, "SetJSON", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyticsService_CacheFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t, 4)
	cache := new(MockCacheRepository)
	cache.On("GetJSON", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
	cache.On("SetJSON", mock.Anything, mock.Anything, time.Minute).Return(errors.New("connection refused"))
	svc := NewAnalyticsService(f.store.Quizzes(), f.store.Attempts(), f.store.Results(), f.store.Users(), cache, time.Minute, 10)

	stats, err := svc.GetQuizAnalytics(context.Background(), coordinatorActor, f.quiz.ID, 0, testStart)

	require.NoError(t, err)
	assert.NotNil(t, stats)
}

func TestAnalyticsService_CustomTopNBypassesCache(t *testing.T) {
	f := newFixture(t, 4)
	cache := new(MockCacheRepository)
	svc := NewAnalyticsService(f.store.Quizzes(), f.store.Attempts(), f.store.Results(), f.store.Users(), cache, time.Minute, 10)

	_, err := svc.GetQuizAnalytics(context.Background(), coordinatorActor, f.quiz.ID, 3, testStart)

	require.NoError(t, err)
	cache.AssertNotCalled(t, "GetJSON", mock.Anything, mock.Anything)
}

func TestAnalyticsService_StudentExcludesInvalidated(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	attempts := f.attemptService(0)
	svc := f.analyticsService()
	ctx := context.Background()
	a := startAt(t, attempts, f, testStudentID, testStart)
	require.NoError(t, attempts.RecordAnswer(ctx, a.AttemptID, testStudentID, f.questions[0].ID, f.questions[0].CorrectOption, testStart.Add(time.Minute)))
	_, err := attempts.Submit(ctx, a.AttemptID, testStudentID, SubmitModeManual, testStart.Add(2*time.Minute))
	require.NoError(t, err)

	before, err := svc.GetStudentAnalytics(ctx, studentActor, testStudentID, testStart.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, before.RecentResults, 1)

	// Act
	_, err = attempts.InvalidateAttempt(ctx, coordinatorActor, a.AttemptID, "нарушение", testStart.Add(time.Hour))
	require.NoError(t, err)
	after, err := svc.GetStudentAnalytics(ctx, studentActor, testStudentID, testStart.Add(time.Hour))

	// Assert
	require.NoError(t, err)
	assert.Empty(t, after.RecentResults)
	assert.Equal(t, 0, after.PassedCount+after.FailedCount)
	assert.Equal(t, 0.0, after.AveragePercentage)
	assert.Equal(t, 1, after.StatusCounts[entity.AttemptStatusInvalidated])

	_, err = svc.GetStudentAnalytics(ctx, Actor{UserID: testOtherStudent, Role: entity.RoleStudent}, testStudentID, testStart)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestAnalyticsService_System(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	svc := f.analyticsService()

	// Act
	stats, err := svc.GetSystemAnalytics(context.Background(), adminActor)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.TotalQuizzes)
	assert.Equal(t, int64(0), stats.TotalAttempts)
	assert.Equal(t, int64(2), stats.RoleDistribution[entity.RoleStudent])
	assert.Equal(t, int64(1), stats.QuizzesByDepartment["CS"])

	_, err = svc.GetSystemAnalytics(context.Background(), coordinatorActor)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

var _ repository.CacheRepository = (*MockCacheRepository)(nil)
