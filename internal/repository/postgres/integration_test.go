package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	"github.com/yourusername/quiz-api/pkg/database"
)

const migrationsURL = "file://../../../migrations"

// startPostgres поднимает PostgreSQL в контейнере и применяет миграции.
// Тест пропускается, если Docker недоступен.
func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}
	ctx := context.Background()

	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}

	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=quiz password=quizpass dbname=quizdb sslmode=disable", host, port.Port())
	db, err := database.NewPostgresDB(dsn, logger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.MigrateDB(db, migrationsURL))
	return db
}

func seedPostgresQuiz(t *testing.T, db *gorm.DB) (*entity.Quiz, []entity.User) {
	t.Helper()
	ctx := context.Background()

	users := []entity.User{
		{Username: "coord", Email: "coord@example.com", Role: entity.RoleCoordinator},
		{Username: "alice", Email: "alice@example.com", Role: entity.RoleStudent},
		{Username: "bob", Email: "bob@example.com", Role: entity.RoleStudent},
	}
	require.NoError(t, db.Create(&users).Error)

	start := time.Now().UTC().Add(-10 * time.Minute).Truncate(time.Second)
	quiz := &entity.Quiz{
		OwnerID:         users[0].ID,
		Title:           "Базы данных",
		StartTime:       start,
		EndTime:         start.Add(2 * time.Hour),
		DurationMinutes: 30,
		PassingMarks:    2,
		IsActive:        true,
		IsPublished:     true,
		Department:      "CS",
	}
	require.NoError(t, NewQuizRepo(db).Create(ctx, quiz))
	require.NoError(t, NewQuestionRepo(db).AddToQuiz(ctx, quiz.ID, []entity.Question{
		{Text: "SELECT?", Options: entity.StringArray{"DDL", "DML", "DCL", "TCL"}, CorrectOption: "B", Marks: 2},
		{Text: "COMMIT?", Options: entity.StringArray{"DDL", "DML", "DCL", "TCL"}, CorrectOption: "D", Marks: 2},
	}))
	return quiz, users
}

func TestPostgres_AttemptUniqueIndex_Concurrent(t *testing.T) {
	db := startPostgres(t)
	quiz, users := seedPostgresQuiz(t, db)
	repo := NewAttemptRepo(db)

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Create(context.Background(), &entity.Attempt{
				QuizID:    quiz.ID,
				StudentID: users[1].ID,
				Status:    entity.AttemptStatusInProgress,
				StartedAt: time.Now().UTC(),
			})
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, repository.ErrDuplicateAttempt), "Ожидалась ErrDuplicateAttempt, получено: %v", err)
	}
	assert.Equal(t, 1, succeeded, "Уникальный индекс должен пропустить ровно одну вставку")
}

func TestPostgres_AnswerUpsertAndMutate(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	quiz, users := seedPostgresQuiz(t, db)
	attempts := NewAttemptRepo(db)
	questions, err := NewQuestionRepo(db).ListByQuiz(ctx, quiz.ID)
	require.NoError(t, err)

	attempt := &entity.Attempt{QuizID: quiz.ID, StudentID: users[2].ID, Status: entity.AttemptStatusInProgress, StartedAt: time.Now().UTC()}
	require.NoError(t, attempts.Create(ctx, attempt))

	now := time.Now().UTC()
	require.NoError(t, attempts.SaveAnswer(ctx, attempt.ID, &entity.AttemptAnswer{QuestionID: questions[0].ID, SelectedOption: "A", AnsweredAt: &now}, nil))
	require.NoError(t, attempts.SaveAnswer(ctx, attempt.ID, &entity.AttemptAnswer{QuestionID: questions[0].ID, SelectedOption: "B", AnsweredAt: &now}, nil))

	loaded, err := attempts.GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Answers, 1)
	assert.Equal(t, "B", loaded.Answers[0].SelectedOption)

	_, err = attempts.Mutate(ctx, attempt.ID, func(a *entity.Attempt) (*repository.AttemptChange, error) {
		a.Status = entity.AttemptStatusSubmitted
		a.SubmittedAt = &now
		a.TotalScore = 2
		a.Answers[0].IsCorrect = true
		a.Answers[0].MarksAwarded = 2
		a.Answers = append(a.Answers, entity.AttemptAnswer{QuestionID: questions[1].ID})
		return &repository.AttemptChange{
			SaveAnswers: true,
			Result:      &entity.Result{AttemptID: a.ID, QuizID: a.QuizID, StudentID: a.StudentID, Score: 2, Percentage: 50, CompletedAt: now},
		}, nil
	})
	require.NoError(t, err)

	loaded, err = attempts.GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AttemptStatusSubmitted, loaded.Status)
	assert.Len(t, loaded.Answers, 2, "Неотвеченный вопрос тоже получает запись")

	result, err := NewResultRepo(db).GetByAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Score)

	err = NewQuizRepo(db).Delete(ctx, quiz.ID)
	assert.ErrorIs(t, err, repository.ErrQuizHasAttempts, "Викторину с попытками удалить нельзя")
}

func TestPostgres_ListExpiredAndAggregates(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	quiz, users := seedPostgresQuiz(t, db)
	attempts := NewAttemptRepo(db)

	attempt := &entity.Attempt{QuizID: quiz.ID, StudentID: users[1].ID, Status: entity.AttemptStatusInProgress, StartedAt: quiz.StartTime}
	require.NoError(t, attempts.Create(ctx, attempt))

	expired, err := attempts.ListExpiredInProgress(ctx, quiz.StartTime.Add(31*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, attempt.ID, expired[0].ID)

	notYet, err := attempts.ListExpiredInProgress(ctx, quiz.StartTime.Add(29*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, notYet)

	roles, err := NewUserRepo(db).CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), roles[entity.RoleStudent])

	departments, err := NewQuizRepo(db).CountByDepartment(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), departments["CS"])
}
