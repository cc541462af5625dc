package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

func startAt(t *testing.T, svc *AttemptService, f *fixture, studentID uint, at time.Time) *StartedAttempt {
	t.Helper()
	started, err := svc.StartAttempt(context.Background(), f.quiz.ID, studentID, AttemptMeta{IPAddress: "10.0.0.1", UserAgent: "test"}, at)
	require.NoError(t, err)
	return started
}

func TestAttemptService_StartAttempt_Success(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	now := testStart.Add(10 * time.Minute)

	// Act
	started, err := svc.StartAttempt(context.Background(), f.quiz.ID, testStudentID, AttemptMeta{IPAddress: "10.0.0.1"}, now)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, now, started.StartedAt)
	assert.Equal(t, 30*time.Minute, started.Duration)
	assert.Equal(t, f.quiz.EndTime, started.EndOfWindow)
	assert.Equal(t, now.Add(30*time.Minute), started.Deadline)

	stored, err := f.store.Attempts().GetByID(context.Background(), started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, entity.AttemptStatusInProgress, stored.Status)
	assert.Equal(t, "10.0.0.1", stored.IPAddress)
}

func TestAttemptService_StartAttempt_InvalidatesQuizCache(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	cache := new(MockCacheRepository)
	cache.On("Delete", "analytics:quiz:1").Return(nil).Once()
	svc := NewAttemptService(f.store.Quizzes(), f.store.Questions(), f.store.Attempts(),
		f.store.Assignments(), f.store.Users(), cache, NoopAuditor{}, nil, 0)
	require.Equal(t, uint(1), f.quiz.ID)

	// Act
	startAt(t, svc, f, testStudentID, testStart)

	// Assert
	cache.AssertExpectations(t)
}

func TestAttemptService_StartAttempt_RejectedDoesNotTouchCache(t *testing.T) {
	f := newFixture(t, 4)
	cache := new(MockCacheRepository)
	svc := NewAttemptService(f.store.Quizzes(), f.store.Questions(), f.store.Attempts(),
		f.store.Assignments(), f.store.Users(), cache, NoopAuditor{}, nil, 0)

	_, err := svc.StartAttempt(context.Background(), f.quiz.ID, testStudentID, AttemptMeta{}, f.quiz.EndTime.Add(time.Minute))

	assert.ErrorIs(t, err, ErrOutsideWindow)
	cache.AssertNotCalled(t, "Delete", mock.Anything)
}

func TestAttemptService_StartAttempt_DeadlineCappedByWindow(t *testing.T) {
	f := newFixture(t, 4)
	svc := f.attemptService(0)

	// До конца окна остается 10 минут при длительности 30
	started := startAt(t, svc, f, testStudentID, f.quiz.EndTime.Add(-10*time.Minute))

	assert.Equal(t, f.quiz.EndTime, started.Deadline)
}

func TestAttemptService_StartAttempt_Preconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("not assigned", func(t *testing.T) {
		f := newFixture(t, 4)
		_, err := f.attemptService(0).StartAttempt(ctx, f.quiz.ID, 999, AttemptMeta{}, testStart.Add(time.Minute))
		assert.ErrorIs(t, err, ErrNotAssigned)
	})

	t.Run("before window", func(t *testing.T) {
		f := newFixture(t, 4)
		_, err := f.attemptService(0).StartAttempt(ctx, f.quiz.ID, testStudentID, AttemptMeta{}, testStart.Add(-time.Second))
		assert.ErrorIs(t, err, ErrOutsideWindow)
	})

	t.Run("after window", func(t *testing.T) {
		f := newFixture(t, 4)
		_, err := f.attemptService(0).StartAttempt(ctx, f.quiz.ID, testStudentID, AttemptMeta{}, f.quiz.EndTime.Add(time.Second))
		assert.ErrorIs(t, err, ErrOutsideWindow)
	})

	t.Run("window bounds are inclusive", func(t *testing.T) {
		f := newFixture(t, 4)
		_, err := f.attemptService(0).StartAttempt(ctx, f.quiz.ID, testStudentID, AttemptMeta{}, testStart)
		assert.NoError(t, err)
	})

	t.Run("unpublished quiz is invisible", func(t *testing.T) {
		f := newFixture(t, 4)
		require.NoError(t, f.store.Quizzes().SetPublished(ctx, f.quiz.ID, false))
		_, err := f.attemptService(0).StartAttempt(ctx, f.quiz.ID, testStudentID, AttemptMeta{}, testStart.Add(time.Minute))
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("missing quiz", func(t *testing.T) {
		f := newFixture(t, 4)
		_, err := f.attemptService(0).StartAttempt(ctx, 4242, testStudentID, AttemptMeta{}, testStart.Add(time.Minute))
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("second attempt", func(t *testing.T) {
		f := newFixture(t, 4)
		svc := f.attemptService(0)
		startAt(t, svc, f, testStudentID, testStart.Add(time.Minute))
		_, err := svc.StartAttempt(ctx, f.quiz.ID, testStudentID, AttemptMeta{}, testStart.Add(2*time.Minute))
		assert.ErrorIs(t, err, ErrAlreadyAttempted)
	})
}

func TestAttemptService_StartAttempt_ConcurrentExactlyOne(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	const workers = 20
	var wg sync.WaitGroup
	errs := make([]error, workers)

	// Act
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.StartAttempt(context.Background(), f.quiz.ID, testStudentID, AttemptMeta{}, testStart.Add(time.Minute))
		}(i)
	}
	wg.Wait()

	// Assert
	succeeded, duplicates := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyAttempted):
			duplicates++
		default:
			t.Fatalf("неожиданная ошибка: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded, "Должна пройти ровно одна попытка")
	assert.Equal(t, workers-1, duplicates)

	count, err := f.store.Attempts().CountByQuiz(context.Background(), f.quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAttemptService_RecordAnswer_IdempotentLastWriteWins(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	ctx := context.Background()
	started := startAt(t, svc, f, testStudentID, testStart)
	q := f.questions[0]
	now := testStart.Add(5 * time.Minute)

	// Act
	require.NoError(t, svc.RecordAnswer(ctx, started.AttemptID, testStudentID, q.ID, "b", now))
	require.NoError(t, svc.RecordAnswer(ctx, started.AttemptID, testStudentID, q.ID, "b", now))
	require.NoError(t, svc.RecordAnswer(ctx, started.AttemptID, testStudentID, q.ID, "c", now))

	// Assert
	attempt, err := f.store.Attempts().GetByID(ctx, started.AttemptID)
	require.NoError(t, err)
	require.Len(t, attempt.Answers, 1, "Повторная запись не должна создавать дубликат")
	assert.Equal(t, "C", attempt.Answers[0].SelectedOption)
	assert.False(t, attempt.Answers[0].IsCorrect, "Правильность при записи не вычисляется")
}

func TestAttemptService_RecordAnswer_ClearAnswer(t *testing.T) {
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	ctx := context.Background()
	started := startAt(t, svc, f, testStudentID, testStart)
	q := f.questions[0]

	require.NoError(t, svc.RecordAnswer(ctx, started.AttemptID, testStudentID, q.ID, "A", testStart.Add(time.Minute)))
	require.NoError(t, svc.RecordAnswer(ctx, started.AttemptID, testStudentID, q.ID, "", testStart.Add(2*time.Minute)))

	attempt, err := f.store.Attempts().GetByID(ctx, started.AttemptID)
	require.NoError(t, err)
	require.Len(t, attempt.Answers, 1)
	assert.False(t, attempt.Answers[0].IsAnswered())
}

func TestAttemptService_RecordAnswer_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	started := startAt(t, svc, f, testStudentID, testStart)
	now := testStart.Add(time.Minute)

	// Вопрос другой викторины
	other := &entity.Quiz{OwnerID: testCoordinatorID, Title: "Другая", StartTime: testStart, EndTime: testStart.Add(time.Hour), DurationMinutes: 10}
	require.NoError(t, f.store.Quizzes().Create(ctx, other))
	foreign := []entity.Question{{Text: "?", Options: entity.StringArray{"a", "b", "c", "d"}, CorrectOption: "A", Marks: 1}}
	require.NoError(t, f.store.Questions().AddToQuiz(ctx, other.ID, foreign))

	err := svc.RecordAnswer(ctx, started.AttemptID, testStudentID, foreign[0].ID, "A", now)
	assert.ErrorIs(t, err, ErrQuestionNotInQuiz)

	err = svc.RecordAnswer(ctx, started.AttemptID, testStudentID, 9999, "A", now)
	assert.ErrorIs(t, err, ErrQuestionNotInQuiz)

	// Неизвестная попытка определяется раньше неизвестного вопроса
	err = svc.RecordAnswer(ctx, 9999, testStudentID, 9999, "A", now)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	err = svc.RecordAnswer(ctx, 9999, testStudentID, f.questions[0].ID, "A", now)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = svc.RecordAnswer(ctx, started.AttemptID, testStudentID, f.questions[0].ID, "E", now)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	err = svc.RecordAnswer(ctx, started.AttemptID, testOtherStudent, f.questions[0].ID, "A", now)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.Submit(ctx, started.AttemptID, testStudentID, SubmitModeManual, now)
	require.NoError(t, err)
	err = svc.RecordAnswer(ctx, started.AttemptID, testStudentID, f.questions[0].ID, "A", now)
	assert.ErrorIs(t, err, ErrNotInProgress)
}

func TestAttemptService_RecordAnswer_ExpiredFinalizes(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	ctx := context.Background()
	started := startAt(t, svc, f, testStudentID, testStart)
	require.NoError(t, svc.RecordAnswer(ctx, started.AttemptID, testStudentID, f.questions[0].ID, "A", testStart.Add(time.Minute)))

	// Act
	err := svc.RecordAnswer(ctx, started.AttemptID, testStudentID, f.questions[1].ID, "B", testStart.Add(31*time.Minute))

	// Assert
	assert.ErrorIs(t, err, ErrAttemptExpired)
	attempt, err := f.store.Attempts().GetByID(ctx, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, entity.AttemptStatusAutoSubmitted, attempt.Status)
	assert.Equal(t, 1, attempt.TotalScore, "Просроченный ответ не учитывается")

	result, err := f.store.Results().GetByAttempt(ctx, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)
}

func TestAttemptService_RecordAnswer_RepeatedLateAnswersStayExpired(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	ctx := context.Background()
	started := startAt(t, svc, f, testStudentID, testStart)

	// Act
	first := svc.RecordAnswer(ctx, started.AttemptID, testStudentID, f.questions[0].ID, "A", testStart.Add(31*time.Minute))
	second := svc.RecordAnswer(ctx, started.AttemptID, testStudentID, f.questions[1].ID, "B", testStart.Add(32*time.Minute))

	// Assert
	assert.ErrorIs(t, first, ErrAttemptExpired)
	assert.ErrorIs(t, second, ErrAttemptExpired, "После автосдачи по таймауту опоздание остается опозданием")
	assert.NotErrorIs(t, second, ErrNotInProgress)

	attempt, err := f.store.Attempts().GetByID(ctx, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, entity.AttemptStatusAutoSubmitted, attempt.Status)
	require.NotNil(t, attempt.SubmittedAt)
	assert.Equal(t, testStart.Add(31*time.Minute), *attempt.SubmittedAt, "Повторное опоздание не переписывает момент сдачи")
	assert.Equal(t, 0, attempt.TotalScore)
}

func TestAttemptService_RecordAnswer_SubmittedBeforeDeadlineNotInProgress(t *testing.T) {
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	ctx := context.Background()
	started := startAt(t, svc, f, testStudentID, testStart)

	_, err := svc.Submit(ctx, started.AttemptID, testStudentID, SubmitModeManual, testStart.Add(5*time.Minute))
	require.NoError(t, err)

	// Ответ после дедлайна по попытке, сданной вовремя
	err = svc.RecordAnswer(ctx, started.AttemptID, testStudentID, f.questions[0].ID, "A", testStart.Add(40*time.Minute))
	assert.ErrorIs(t, err, ErrNotInProgress)
	assert.NotErrorIs(t, err, ErrAttemptExpired)
}

func TestAttemptService_Submit_ScoringExample(t *testing.T) {
	cases := []struct {
		name    string
		passing int
		passed  bool
	}{
		{"pass at 4", 4, true},
		{"fail at 5", 5, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange: верно на вопросы 1-4, неверно на 5-8, 9-10 без ответа
			f := newFixture(t, tc.passing)
			svc := f.attemptService(0)
			ctx := context.Background()
			started := startAt(t, svc, f, testStudentID, testStart)
			now := testStart.Add(5 * time.Minute)
			for i := 0; i < 4; i++ {
				require.NoError(t, svc.RecordAnswer(ctx, started.AttemptID, testStudentID, f.questions[i].ID, f.questions[i].CorrectOption, now))
			}
			for i := 4; i < 8; i++ {
				require.NoError(t, svc.RecordAnswer(ctx, started.AttemptID, testStudentID, f.questions[i].ID, f.wrongOption(i), now))
			}

			// Act
			outcome, err := svc.Submit(ctx, started.AttemptID, testStudentID, SubmitModeManual, testStart.Add(20*time.Minute))

			// Assert
			require.NoError(t, err)
			assert.Equal(t, 4, outcome.TotalScore)
			assert.Equal(t, 10, outcome.TotalMarks)
			assert.Equal(t, 40.0, outcome.Percentage)
			assert.Equal(t, tc.passed, outcome.IsPassed)
			assert.Equal(t, entity.AttemptStatusSubmitted, outcome.Status)
			assert.Equal(t, int64(20*60), outcome.TimeTakenSec)
			assert.False(t, outcome.Replayed)

			attempt, err := f.store.Attempts().GetByID(ctx, started.AttemptID)
			require.NoError(t, err)
			require.Len(t, attempt.Answers, 10, "Неотвеченные вопросы получают записи с нулем баллов")
			correct := 0
			for _, a := range attempt.Answers {
				if a.IsCorrect {
					correct++
				}
			}
			assert.Equal(t, 4, correct)

			result, err := f.store.Results().GetByAttempt(ctx, started.AttemptID)
			require.NoError(t, err)
			assert.Equal(t, tc.passed, result.IsPassed)
			assert.Equal(t, 40.0, result.Percentage)
		})
	}
}

func TestAttemptService_Submit_TimeoutCoercion(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	ctx := context.Background()
	started := startAt(t, svc, f, testStudentID, testStart)

	// Act: ручная сдача через 31 минуту при длительности 30
	outcome, err := svc.Submit(ctx, started.AttemptID, testStudentID, SubmitModeManual, testStart.Add(31*time.Minute))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, entity.AttemptStatusAutoSubmitted, outcome.Status)
	assert.Equal(t, int64(31*60), outcome.TimeTakenSec, "Время считается до фактического момента сдачи")
	assert.Equal(t, testStart.Add(31*time.Minute), outcome.SubmittedAt)

	result, err := f.store.Results().GetByAttempt(ctx, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, testStart.Add(31*time.Minute), result.CompletedAt)
}

func TestAttemptService_Submit_AutoModeBeforeDeadline(t *testing.T) {
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	started := startAt(t, svc, f, testStudentID, testStart)

	outcome, err := svc.Submit(context.Background(), started.AttemptID, testStudentID, SubmitModeAuto, testStart.Add(10*time.Minute))

	require.NoError(t, err)
	assert.Equal(t, entity.AttemptStatusAutoSubmitted, outcome.Status)
	assert.Equal(t, int64(600), outcome.TimeTakenSec)
}

func TestAttemptService_Submit_IdempotentRetry(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	ctx := context.Background()
	started := startAt(t, svc, f, testStudentID, testStart)
	require.NoError(t, svc.RecordAnswer(ctx, started.AttemptID, testStudentID, f.questions[0].ID, f.questions[0].CorrectOption, testStart.Add(time.Minute)))
	first, err := svc.Submit(ctx, started.AttemptID, testStudentID, SubmitModeManual, testStart.Add(2*time.Minute))
	require.NoError(t, err)

	// Act
	second, err := svc.Submit(ctx, started.AttemptID, testStudentID, SubmitModeManual, testStart.Add(3*time.Minute))

	// Assert
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.TotalScore, second.TotalScore)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.SubmittedAt, second.SubmittedAt)

	results, err := f.store.Results().ListByQuiz(ctx, f.quiz.ID)
	require.NoError(t, err)
	assert.Len(t, results, 1, "Повторная сдача не создает второй результат")
}

func TestAttemptService_Submit_OtherStudentForbidden(t *testing.T) {
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	started := startAt(t, svc, f, testStudentID, testStart)

	_, err := svc.Submit(context.Background(), started.AttemptID, testOtherStudent, SubmitModeManual, testStart.Add(time.Minute))

	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestAttemptService_Submit_InvalidatesQuizCache(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	cache := new(MockCacheRepository)
	// Старт и сдача сбрасывают кеш по разу
	cache.On("Delete", "analytics:quiz:1").Return(nil).Twice()
	auditor := new(MockAuditor)
	auditor.On("Record", AuditAttemptStarted, mock.Anything).Return().Once()
	auditor.On("Record", AuditAttemptSubmitted, mock.Anything).Return().Once()
	svc := NewAttemptService(f.store.Quizzes(), f.store.Questions(), f.store.Attempts(),
		f.store.Assignments(), f.store.Users(), cache, auditor, nil, 0)
	require.Equal(t, uint(1), f.quiz.ID)
	started := startAt(t, svc, f, testStudentID, testStart)

	// Act
	_, err := svc.Submit(context.Background(), started.AttemptID, testStudentID, SubmitModeManual, testStart.Add(time.Minute))

	// Assert
	require.NoError(t, err)
	cache.AssertExpectations(t)
	auditor.AssertExpectations(t)
}

func TestAttemptService_Submit_NotifiesStudent(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	notifier := new(MockResultNotifier)
	notifier.On("NotifyResult", "student@uni.test", mock.Anything).Return(nil)
	svc := NewAttemptService(f.store.Quizzes(), f.store.Questions(), f.store.Attempts(),
		f.store.Assignments(), f.store.Users(), f.cache, NoopAuditor{}, notifier, 0)
	started := startAt(t, svc, f, testStudentID, testStart)

	// Act
	_, err := svc.Submit(context.Background(), started.AttemptID, testStudentID, SubmitModeManual, testStart.Add(time.Minute))

	// Assert
	require.NoError(t, err)
	require.Eventually(t, func() bool { return notifier.sentCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	notifier.AssertCalled(t, "NotifyResult", "student@uni.test", started.AttemptID)
}

func TestAttemptService_InvalidateAttempt(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	ctx := context.Background()
	started := startAt(t, svc, f, testStudentID, testStart)
	require.NoError(t, svc.RecordAnswer(ctx, started.AttemptID, testStudentID, f.questions[0].ID, f.questions[0].CorrectOption, testStart.Add(time.Minute)))
	_, err := svc.Submit(ctx, started.AttemptID, testStudentID, SubmitModeManual, testStart.Add(2*time.Minute))
	require.NoError(t, err)
	coordinator := Actor{UserID: testCoordinatorID, Role: entity.RoleCoordinator}

	// Act
	attempt, err := svc.InvalidateAttempt(ctx, coordinator, started.AttemptID, "списывание", testStart.Add(time.Hour))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, entity.AttemptStatusInvalidated, attempt.Status)
	assert.Equal(t, 1, attempt.TotalScore, "Баллы попытки сохраняются")
	require.NotEmpty(t, attempt.Warnings)
	last := attempt.Warnings[len(attempt.Warnings)-1]
	assert.Equal(t, entity.WarningInvalidated, last.Kind)
	assert.Equal(t, "списывание", last.Message)

	_, err = f.store.Results().GetByAttempt(ctx, started.AttemptID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "Результат аннулированной попытки удаляется")

	_, err = svc.Submit(ctx, started.AttemptID, testStudentID, SubmitModeManual, testStart.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyTerminal)

	_, err = svc.InvalidateAttempt(ctx, coordinator, started.AttemptID, "еще раз", testStart.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestAttemptService_InvalidateAttempt_InProgressAndForeignCoordinator(t *testing.T) {
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	ctx := context.Background()
	started := startAt(t, svc, f, testStudentID, testStart)

	_, err := svc.InvalidateAttempt(ctx, Actor{UserID: 77, Role: entity.RoleCoordinator}, started.AttemptID, "x", testStart.Add(time.Minute))
	assert.ErrorIs(t, err, apperrors.ErrForbidden, "Чужой координатор не может аннулировать")

	attempt, err := svc.InvalidateAttempt(ctx, Actor{UserID: 1, Role: entity.RoleAdmin}, started.AttemptID, "нарушение", testStart.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, entity.AttemptStatusInvalidated, attempt.Status)

	err = svc.RecordAnswer(ctx, started.AttemptID, testStudentID, f.questions[0].ID, "A", testStart.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrNotInProgress)
}

func TestAttemptService_RecordWarning(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	ctx := context.Background()
	started := startAt(t, svc, f, testStudentID, testStart)
	now := testStart.Add(time.Minute)

	// Act
	_, err := svc.RecordWarning(ctx, started.AttemptID, testStudentID, entity.WarningTabSwitch, "ушел со страницы", now)
	require.NoError(t, err)
	_, err = svc.RecordWarning(ctx, started.AttemptID, testStudentID, entity.WarningWindowBlur, "", now)
	require.NoError(t, err)
	attempt, err := svc.RecordWarning(ctx, started.AttemptID, testStudentID, "copy_paste", "", now)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 2, attempt.TabSwitchCount, "Счетчик растет только при потере фокуса")
	assert.Len(t, attempt.Warnings, 3)
	assert.Equal(t, entity.AttemptStatusInProgress, attempt.Status, "Предупреждение само попытку не сдает")

	_, err = svc.RecordWarning(ctx, started.AttemptID, testStudentID, entity.WarningInvalidated, "", now)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.RecordWarning(ctx, started.AttemptID, testOtherStudent, entity.WarningTabSwitch, "", now)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestAttemptService_RecordWarning_ExpiredFinalizes(t *testing.T) {
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	ctx := context.Background()
	started := startAt(t, svc, f, testStudentID, testStart)

	_, err := svc.RecordWarning(ctx, started.AttemptID, testStudentID, entity.WarningTabSwitch, "", testStart.Add(45*time.Minute))

	assert.ErrorIs(t, err, ErrAttemptExpired)
	attempt, err := f.store.Attempts().GetByID(ctx, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, entity.AttemptStatusAutoSubmitted, attempt.Status)

	_, err = svc.RecordWarning(ctx, started.AttemptID, testStudentID, entity.WarningWindowBlur, "", testStart.Add(46*time.Minute))
	assert.ErrorIs(t, err, ErrAttemptExpired, "Повторное предупреждение после таймаута тоже просрочено")
}

func TestAttemptService_ApplyTabSwitchPolicy(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	svc := f.attemptService(2)
	ctx := context.Background()
	started := startAt(t, svc, f, testStudentID, testStart)
	now := testStart.Add(time.Minute)

	var attempt *entity.Attempt
	var err error
	for i := 0; i < 2; i++ {
		attempt, err = svc.RecordWarning(ctx, started.AttemptID, testStudentID, entity.WarningTabSwitch, "", now)
		require.NoError(t, err)
		outcome, err := svc.ApplyTabSwitchPolicy(ctx, attempt, now)
		require.NoError(t, err)
		assert.Nil(t, outcome, "Порог еще не превышен")
	}

	// Act
	attempt, err = svc.RecordWarning(ctx, started.AttemptID, testStudentID, entity.WarningTabSwitch, "", now)
	require.NoError(t, err)
	outcome, err := svc.ApplyTabSwitchPolicy(ctx, attempt, now)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, entity.AttemptStatusAutoSubmitted, outcome.Status)
}

func TestAttemptService_ApplyTabSwitchPolicy_Disabled(t *testing.T) {
	f := newFixture(t, 4)
	svc := f.attemptService(0)

	outcome, err := svc.ApplyTabSwitchPolicy(context.Background(), &entity.Attempt{ID: 1, Status: entity.AttemptStatusInProgress, TabSwitchCount: 50}, testStart)

	require.NoError(t, err)
	assert.Nil(t, outcome)
}

func TestAttemptService_GetAttempt_EffectiveStatus(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	ctx := context.Background()
	started := startAt(t, svc, f, testStudentID, testStart)
	student := Actor{UserID: testStudentID, Role: entity.RoleStudent}

	// Act
	before, err := svc.GetAttempt(ctx, student, started.AttemptID, testStart.Add(10*time.Minute))
	require.NoError(t, err)
	after, err := svc.GetAttempt(ctx, student, started.AttemptID, testStart.Add(31*time.Minute))
	require.NoError(t, err)

	// Assert
	assert.Equal(t, entity.AttemptStatusInProgress, before.EffectiveStatus)
	assert.Equal(t, entity.AttemptStatusAutoSubmitted, after.EffectiveStatus)
	assert.Equal(t, entity.AttemptStatusInProgress, after.Attempt.Status, "Чтение не меняет хранимый статус")

	_, err = svc.GetAttempt(ctx, Actor{UserID: testOtherStudent, Role: entity.RoleStudent}, started.AttemptID, testStart)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = svc.GetAttempt(ctx, Actor{UserID: testCoordinatorID, Role: entity.RoleCoordinator}, started.AttemptID, testStart)
	assert.NoError(t, err)
}

func TestAttemptService_SweepExpired(t *testing.T) {
	// Arrange
	f := newFixture(t, 4)
	svc := f.attemptService(0)
	ctx := context.Background()
	expired := startAt(t, svc, f, testStudentID, testStart)
	fresh := startAt(t, svc, f, testOtherStudent, testStart.Add(20*time.Minute))
	now := testStart.Add(35 * time.Minute)

	// Act
	finalized, err := svc.SweepExpired(ctx, now, 10)
	require.NoError(t, err)
	again, err := svc.SweepExpired(ctx, now, 10)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 1, finalized)
	assert.Equal(t, 0, again, "Повторный проход ничего не находит")

	a, err := f.store.Attempts().GetByID(ctx, expired.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, entity.AttemptStatusAutoSubmitted, a.Status)
	b, err := f.store.Attempts().GetByID(ctx, fresh.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, entity.AttemptStatusInProgress, b.Status)
	assert.False(t, f.cache.Has("analytics:quiz:1"))
}
