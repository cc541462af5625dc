package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
	"github.com/yourusername/quiz-api/internal/service/validation"
)

// QuizService предоставляет методы для работы с викторинами, вопросами и допусками
type QuizService struct {
	quizRepo       repository.QuizRepository
	questionRepo   repository.QuestionRepository
	attemptRepo    repository.AttemptRepository
	resultRepo     repository.ResultRepository
	assignmentRepo repository.AssignmentRepository
	cacheRepo      repository.CacheRepository
	validator      *validation.Validator
	auditor        Auditor
}

// NewQuizService создает новый сервис викторин
func NewQuizService(
	quizRepo repository.QuizRepository,
	questionRepo repository.QuestionRepository,
	attemptRepo repository.AttemptRepository,
	resultRepo repository.ResultRepository,
	assignmentRepo repository.AssignmentRepository,
	cacheRepo repository.CacheRepository,
	validator *validation.Validator,
	auditor Auditor,
) *QuizService {
	if validator == nil {
		validator = validation.New()
	}
	if auditor == nil {
		auditor = NoopAuditor{}
	}
	return &QuizService{
		quizRepo:       quizRepo,
		questionRepo:   questionRepo,
		attemptRepo:    attemptRepo,
		resultRepo:     resultRepo,
		assignmentRepo: assignmentRepo,
		cacheRepo:      cacheRepo,
		validator:      validator,
		auditor:        auditor,
	}
}

// CreateQuiz создает викторину; владельцем становится вызывающий
func (s *QuizService) CreateQuiz(ctx context.Context, actor Actor, input validation.QuizInput) (*entity.Quiz, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only staff can create quizzes", apperrors.ErrForbidden)
	}
	if err := s.validator.Quiz(&input, 0); err != nil {
		return nil, err
	}

	quiz := &entity.Quiz{OwnerID: actor.UserID, IsActive: true}
	applyQuizInput(quiz, input)

	if err := s.quizRepo.Create(ctx, quiz); err != nil {
		return nil, fmt.Errorf("failed to create quiz: %w", err)
	}

	log.Printf("[QuizService] Викторина #%d '%s' создана пользователем #%d", quiz.ID, quiz.Title, actor.UserID)
	s.auditor.Record(ctx, AuditEvent{Action: AuditQuizCreated, ActorID: actor.UserID, EntityType: "quiz", EntityID: quiz.ID})
	return quiz, nil
}

// GetQuiz возвращает викторину. Студент видит только доступные викторины.
func (s *QuizService) GetQuiz(ctx context.Context, actor Actor, quizID uint) (*entity.Quiz, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := s.checkVisible(actor, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// GetQuizWithQuestions возвращает викторину с вопросами.
// Скрывать правильные ответы от студентов обязан слой представления.
func (s *QuizService) GetQuizWithQuestions(ctx context.Context, actor Actor, quizID uint) (*entity.Quiz, error) {
	quiz, err := s.quizRepo.GetWithQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := s.checkVisible(actor, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) checkVisible(actor Actor, quiz *entity.Quiz) error {
	if actor.IsStaff() {
		return nil
	}
	if !quiz.IsAvailable() {
		return fmt.Errorf("%w: quiz #%d", apperrors.ErrNotFound, quiz.ID)
	}
	return nil
}

// ListQuizzes возвращает страницу викторин с фильтрами и общее количество
func (s *QuizService) ListQuizzes(ctx context.Context, actor Actor, filters repository.QuizFilters, page, pageSize int) ([]entity.Quiz, int64, error) {
	if !actor.IsStaff() {
		filters.OnlyAvailable = true
		filters.OwnerID = 0
	}
	page, pageSize = normalizePage(page, pageSize)
	return s.quizRepo.ListWithFilters(ctx, filters, pageSize, (page-1)*pageSize)
}

// UpdateQuiz обновляет метаданные викторины
func (s *QuizService) UpdateQuiz(ctx context.Context, actor Actor, quizID uint, input validation.QuizInput) (*entity.Quiz, error) {
	quiz, err := s.managedQuiz(ctx, actor, quizID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Quiz(&input, quiz.TotalMarks); err != nil {
		return nil, err
	}

	applyQuizInput(quiz, input)
	quiz.UpdatedAt = time.Now()
	if err := s.quizRepo.Update(ctx, quiz); err != nil {
		return nil, fmt.Errorf("failed to update quiz #%d: %w", quizID, err)
	}

	s.invalidateCache(quizID)
	s.auditor.Record(ctx, AuditEvent{Action: AuditQuizUpdated, ActorID: actor.UserID, EntityType: "quiz", EntityID: quizID})
	return quiz, nil
}

// SetActive включает или выключает викторину
func (s *QuizService) SetActive(ctx context.Context, actor Actor, quizID uint, active bool) error {
	if _, err := s.managedQuiz(ctx, actor, quizID); err != nil {
		return err
	}
	return s.quizRepo.SetActive(ctx, quizID, active)
}

// SetPublished публикует викторину или снимает ее с публикации.
// Публикация требует хотя бы одного вопроса и проходного балла не выше суммы баллов.
func (s *QuizService) SetPublished(ctx context.Context, actor Actor, quizID uint, published bool) error {
	quiz, err := s.managedQuiz(ctx, actor, quizID)
	if err != nil {
		return err
	}
	if published {
		if err := s.validator.Publishable(quiz); err != nil {
			return err
		}
	}
	if err := s.quizRepo.SetPublished(ctx, quizID, published); err != nil {
		return err
	}
	log.Printf("[QuizService] Викторина #%d: is_published=%t", quizID, published)
	return nil
}

// DeleteQuiz удаляет викторину без попыток
func (s *QuizService) DeleteQuiz(ctx context.Context, actor Actor, quizID uint) error {
	if _, err := s.managedQuiz(ctx, actor, quizID); err != nil {
		return err
	}
	if err := s.quizRepo.Delete(ctx, quizID); err != nil {
		if errors.Is(err, repository.ErrQuizHasAttempts) {
			return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
		}
		return err
	}

	s.invalidateCache(quizID)
	s.auditor.Record(ctx, AuditEvent{Action: AuditQuizDeleted, ActorID: actor.UserID, EntityType: "quiz", EntityID: quizID})
	return nil
}

// AddQuestions проверяет строки вопросов и добавляет их в конец викторины
func (s *QuizService) AddQuestions(ctx context.Context, actor Actor, quizID uint, rows []validation.QuestionInput) ([]entity.Question, error) {
	if _, err := s.managedQuiz(ctx, actor, quizID); err != nil {
		return nil, err
	}
	if err := s.validator.Questions(rows); err != nil {
		return nil, err
	}
	if err := s.ensureNotFrozen(ctx, quizID); err != nil {
		return nil, err
	}

	questions := make([]entity.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, questionFromInput(row))
	}
	if err := s.questionRepo.AddToQuiz(ctx, quizID, questions); err != nil {
		return nil, fmt.Errorf("failed to add questions to quiz #%d: %w", quizID, err)
	}

	log.Printf("[QuizService] В викторину #%d добавлено вопросов: %d", quizID, len(questions))
	return questions, nil
}

// UpdateQuestion меняет вопрос, если по викторине еще нет попыток
func (s *QuizService) UpdateQuestion(ctx context.Context, actor Actor, questionID uint, row validation.QuestionInput) (*entity.Question, error) {
	question, err := s.questionRepo.GetByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.managedQuiz(ctx, actor, question.QuizID); err != nil {
		return nil, err
	}
	if err := s.validator.Questions([]validation.QuestionInput{row}); err != nil {
		return nil, err
	}
	if err := s.ensureNotFrozen(ctx, question.QuizID); err != nil {
		return nil, err
	}

	updated := questionFromInput(row)
	updated.ID = question.ID
	updated.QuizID = question.QuizID
	updated.OrderIndex = question.OrderIndex
	updated.CreatedAt = question.CreatedAt
	updated.UpdatedAt = time.Now()
	if err := s.questionRepo.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update question #%d: %w", questionID, err)
	}
	return &updated, nil
}

// DeleteQuestion удаляет вопрос, если по викторине еще нет попыток
func (s *QuizService) DeleteQuestion(ctx context.Context, actor Actor, questionID uint) error {
	question, err := s.questionRepo.GetByID(ctx, questionID)
	if err != nil {
		return err
	}
	if _, err := s.managedQuiz(ctx, actor, question.QuizID); err != nil {
		return err
	}
	if err := s.ensureNotFrozen(ctx, question.QuizID); err != nil {
		return err
	}
	return s.questionRepo.Delete(ctx, questionID)
}

// GrantAssignments допускает студентов к викторине. Возвращает число новых допусков.
func (s *QuizService) GrantAssignments(ctx context.Context, actor Actor, quizID uint, studentIDs []uint) (int64, error) {
	if _, err := s.managedQuiz(ctx, actor, quizID); err != nil {
		return 0, err
	}
	if len(studentIDs) == 0 {
		return 0, fmt.Errorf("%w: student_ids must not be empty", apperrors.ErrValidation)
	}
	return s.assignmentRepo.Grant(ctx, quizID, actor.UserID, studentIDs)
}

// RevokeAssignments отзывает допуск. Уже начатые попытки не затрагиваются.
func (s *QuizService) RevokeAssignments(ctx context.Context, actor Actor, quizID uint, studentIDs []uint) (int64, error) {
	if _, err := s.managedQuiz(ctx, actor, quizID); err != nil {
		return 0, err
	}
	if len(studentIDs) == 0 {
		return 0, fmt.Errorf("%w: student_ids must not be empty", apperrors.ErrValidation)
	}
	return s.assignmentRepo.Revoke(ctx, quizID, studentIDs)
}

// ListAssignments возвращает допуски по викторине
func (s *QuizService) ListAssignments(ctx context.Context, actor Actor, quizID uint) ([]entity.QuizAssignment, error) {
	if _, err := s.managedQuiz(ctx, actor, quizID); err != nil {
		return nil, err
	}
	return s.assignmentRepo.ListByQuiz(ctx, quizID)
}

// GetQuizResults возвращает страницу результатов викторины (по убыванию баллов)
func (s *QuizService) GetQuizResults(ctx context.Context, actor Actor, quizID uint, page, pageSize int) ([]entity.Result, int64, error) {
	if _, err := s.managedQuiz(ctx, actor, quizID); err != nil {
		return nil, 0, err
	}
	page, pageSize = normalizePage(page, pageSize)
	return s.resultRepo.GetQuizResults(ctx, quizID, pageSize, (page-1)*pageSize)
}

// ExportQuizResults возвращает викторину и все ее результаты для выгрузки
func (s *QuizService) ExportQuizResults(ctx context.Context, actor Actor, quizID uint) (*entity.Quiz, []entity.Result, error) {
	quiz, err := s.managedQuiz(ctx, actor, quizID)
	if err != nil {
		return nil, nil, err
	}
	results, err := s.resultRepo.ListByQuiz(ctx, quizID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load results of quiz #%d: %w", quizID, err)
	}
	return quiz, results, nil
}

// GetStudentResults возвращает результаты студента (новые первыми)
func (s *QuizService) GetStudentResults(ctx context.Context, actor Actor, studentID uint) ([]entity.Result, error) {
	if err := canViewStudent(actor, studentID); err != nil {
		return nil, err
	}
	return s.resultRepo.ListByStudent(ctx, studentID)
}

func (s *QuizService) managedQuiz(ctx context.Context, actor Actor, quizID uint) (*entity.Quiz, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := canManageQuiz(actor, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// ensureNotFrozen запрещает менять ключ ответов викторины, по которой уже есть попытки
func (s *QuizService) ensureNotFrozen(ctx context.Context, quizID uint) error {
	attempts, err := s.attemptRepo.CountByQuiz(ctx, quizID)
	if err != nil {
		return fmt.Errorf("count attempts of quiz #%d failed: %w", quizID, err)
	}
	if attempts > 0 {
		return fmt.Errorf("%w: quiz #%d has %d attempts", ErrQuestionsFrozen, quizID, attempts)
	}
	return nil
}

func (s *QuizService) invalidateCache(quizID uint) {
	if s.cacheRepo == nil {
		return
	}
	if err := s.cacheRepo.Delete(quizCacheKey(quizID)); err != nil {
		log.Printf("[QuizService] WARNING: не удалось сбросить кеш викторины #%d: %v", quizID, err)
	}
}

func applyQuizInput(quiz *entity.Quiz, input validation.QuizInput) {
	quiz.Title = input.Title
	quiz.Description = input.Description
	quiz.StartTime = input.StartTime
	quiz.EndTime = input.EndTime
	quiz.DurationMinutes = input.DurationMinutes
	quiz.PassingMarks = input.PassingMarks
	quiz.Department = input.Department
	quiz.Semester = input.Semester
	quiz.Subject = input.Subject
	quiz.Batch = input.Batch
}

func questionFromInput(row validation.QuestionInput) entity.Question {
	return entity.Question{
		Text:          row.Text,
		Options:       entity.StringArray(row.Options),
		CorrectOption: entity.NormalizeOption(row.CorrectOption),
		Marks:         row.Marks,
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
