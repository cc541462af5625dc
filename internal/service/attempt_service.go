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
	"github.com/yourusername/quiz-api/internal/service/scoring"
)

// SubmitMode - способ сдачи попытки
type SubmitMode string

const (
	SubmitModeManual SubmitMode = "manual"
	SubmitModeAuto   SubmitMode = "auto"
)

// AttemptMeta - сведения о клиенте, начавшем попытку
type AttemptMeta struct {
	IPAddress string
	UserAgent string
}

// StartedAttempt - ответ на начало попытки
type StartedAttempt struct {
	AttemptID   uint
	QuizID      uint
	StartedAt   time.Time
	Duration    time.Duration
	EndOfWindow time.Time
	Deadline    time.Time
}

// SubmitOutcome - итог сдачи попытки
type SubmitOutcome struct {
	AttemptID    uint
	Status       string
	TotalScore   int
	TotalMarks   int
	Percentage   float64
	IsPassed     bool
	TimeTakenSec int64
	SubmittedAt  time.Time
	// Replayed - попытка уже была сдана, возвращен сохраненный итог
	Replayed bool
}

// AttemptView - попытка с эффективным статусом на момент чтения
type AttemptView struct {
	Attempt         *entity.Attempt
	EffectiveStatus string
	Deadline        time.Time
}

// AttemptService реализует жизненный цикл попытки
type AttemptService struct {
	quizRepo       repository.QuizRepository
	questionRepo   repository.QuestionRepository
	attemptRepo    repository.AttemptRepository
	assignmentRepo repository.AssignmentRepository
	userRepo       repository.UserRepository
	cacheRepo      repository.CacheRepository
	auditor        Auditor
	notifier       ResultNotifier
	maxTabSwitches int
}

// NewAttemptService создает сервис попыток.
// maxTabSwitches > 0 включает автосдачу при превышении порога переключений вкладок.
func NewAttemptService(
	quizRepo repository.QuizRepository,
	questionRepo repository.QuestionRepository,
	attemptRepo repository.AttemptRepository,
	assignmentRepo repository.AssignmentRepository,
	userRepo repository.UserRepository,
	cacheRepo repository.CacheRepository,
	auditor Auditor,
	notifier ResultNotifier,
	maxTabSwitches int,
) *AttemptService {
	if auditor == nil {
		auditor = NoopAuditor{}
	}
	if notifier == nil {
		notifier = &NoopResultNotifier{}
	}
	return &AttemptService{
		quizRepo:       quizRepo,
		questionRepo:   questionRepo,
		attemptRepo:    attemptRepo,
		assignmentRepo: assignmentRepo,
		userRepo:       userRepo,
		cacheRepo:      cacheRepo,
		auditor:        auditor,
		notifier:       notifier,
		maxTabSwitches: maxTabSwitches,
	}
}

// StartAttempt создает попытку студента.
// Единственность попытки обеспечивает уникальный индекс; предварительной проверки нет.
func (s *AttemptService) StartAttempt(ctx context.Context, quizID, studentID uint, meta AttemptMeta, now time.Time) (*StartedAttempt, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	// Неопубликованная викторина для студента не существует
	if !quiz.IsAvailable() {
		return nil, fmt.Errorf("%w: quiz #%d is not available", apperrors.ErrNotFound, quizID)
	}

	assigned, err := s.assignmentRepo.IsAssigned(ctx, quizID, studentID)
	if err != nil {
		return nil, fmt.Errorf("check assignment failed: %w", err)
	}
	if !assigned {
		return nil, fmt.Errorf("%w: student #%d quiz #%d", ErrNotAssigned, studentID, quizID)
	}

	if !quiz.WindowContains(now) {
		return nil, fmt.Errorf("%w: quiz #%d window %s - %s", ErrOutsideWindow, quizID,
			quiz.StartTime.Format(time.RFC3339), quiz.EndTime.Format(time.RFC3339))
	}

	attempt := &entity.Attempt{
		QuizID:    quizID,
		StudentID: studentID,
		Status:    entity.AttemptStatusInProgress,
		StartedAt: now,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrDuplicateAttempt) {
			return nil, fmt.Errorf("%w: %v", ErrAlreadyAttempted, err)
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}
	s.invalidateQuizCache(quizID)

	log.Printf("[AttemptService] Студент #%d начал попытку #%d по викторине #%d", studentID, attempt.ID, quizID)
	s.auditor.Record(ctx, AuditEvent{
		Action:     AuditAttemptStarted,
		ActorID:    studentID,
		EntityType: "attempt",
		EntityID:   attempt.ID,
		Details:    map[string]interface{}{"quiz_id": quizID, "ip": meta.IPAddress},
		At:         now,
	})

	return &StartedAttempt{
		AttemptID:   attempt.ID,
		QuizID:      quizID,
		StartedAt:   attempt.StartedAt,
		Duration:    quiz.Duration(),
		EndOfWindow: quiz.EndTime,
		Deadline:    quiz.AttemptDeadline(attempt.StartedAt),
	}, nil
}

// RecordAnswer сохраняет ответ (или снимает его при пустом option).
// Правильность здесь не вычисляется. Если срок истек, попытка финализируется
// как auto_submitted и возвращается ErrAttemptExpired.
func (s *AttemptService) RecordAnswer(ctx context.Context, attemptID, studentID, questionID uint, option string, now time.Time) error {
	option = entity.NormalizeOption(option)
	if option != "" && !entity.IsValidOption(option) {
		return fmt.Errorf("%w: option %q is not one of A-D", apperrors.ErrValidation, option)
	}

	current, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return err
	}
	if err := ownAttempt(current, studentID); err != nil {
		return err
	}
	quiz, err := s.quizRepo.GetByID(ctx, current.QuizID)
	if err != nil {
		return err
	}
	question, err := s.questionRepo.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: question #%d", ErrQuestionNotInQuiz, questionID)
		}
		return err
	}
	if question.QuizID != current.QuizID {
		return fmt.Errorf("%w: question #%d attempt #%d", ErrQuestionNotInQuiz, questionID, attemptID)
	}

	// Срок проверяется раньше статуса: повторные опоздания тоже получают ErrAttemptExpired
	needsFinalize := false
	answer := &entity.AttemptAnswer{
		QuestionID:     questionID,
		SelectedOption: option,
		AnsweredAt:     &now,
	}
	err = s.attemptRepo.SaveAnswer(ctx, attemptID, answer, func(attempt *entity.Attempt) error {
		if err := ownAttempt(attempt, studentID); err != nil {
			return err
		}
		if attempt.ExpiredBy(quiz.AttemptDeadline(attempt.StartedAt), now) {
			needsFinalize = attempt.Status == entity.AttemptStatusInProgress
			return fmt.Errorf("%w: attempt #%d", ErrAttemptExpired, attempt.ID)
		}
		if attempt.Status != entity.AttemptStatusInProgress {
			return fmt.Errorf("%w: attempt #%d is %s", ErrNotInProgress, attempt.ID, attempt.Status)
		}
		return nil
	})
	if needsFinalize {
		s.finalizeExpired(ctx, attemptID, now)
	}
	return err
}

// finalizeExpired автосдает попытку, на которой сработал ленивый таймаут.
// Ошибка только логируется: клиент в любом случае получает ErrAttemptExpired.
func (s *AttemptService) finalizeExpired(ctx context.Context, attemptID uint, now time.Time) {
	if _, err := s.finalize(ctx, attemptID, SubmitModeAuto, now); err != nil && !errors.Is(err, ErrAlreadyTerminal) {
		log.Printf("[AttemptService] ERROR: не удалось финализировать просроченную попытку #%d: %v", attemptID, err)
	}
}

// Submit сдает попытку студента.
// Повторная сдача уже сданной попытки возвращает сохраненный итог.
func (s *AttemptService) Submit(ctx context.Context, attemptID, studentID uint, mode SubmitMode, now time.Time) (*SubmitOutcome, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := ownAttempt(attempt, studentID); err != nil {
		return nil, err
	}
	return s.finalize(ctx, attemptID, mode, now)
}

// finalize оценивает попытку под блокировкой FOR UPDATE и материализует результат.
// Ручная сдача после дедлайна превращается в auto_submitted.
func (s *AttemptService) finalize(ctx context.Context, attemptID uint, mode SubmitMode, now time.Time) (*SubmitOutcome, error) {
	current, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	// Ключ ответов заморожен, пока есть попытки, поэтому его можно читать вне блокировки
	quiz, err := s.quizRepo.GetWithQuestions(ctx, current.QuizID)
	if err != nil {
		return nil, fmt.Errorf("load quiz #%d for scoring failed: %w", current.QuizID, err)
	}

	var outcome *SubmitOutcome
	var result *entity.Result
	attempt, err := s.attemptRepo.Mutate(ctx, attemptID, func(a *entity.Attempt) (*repository.AttemptChange, error) {
		if a.IsScoreable() {
			outcome = storedOutcome(a, quiz)
			return nil, nil
		}
		if a.Status == entity.AttemptStatusInvalidated {
			return nil, fmt.Errorf("%w: attempt #%d is invalidated", ErrAlreadyTerminal, a.ID)
		}

		deadline := quiz.AttemptDeadline(a.StartedAt)
		status := entity.AttemptStatusSubmitted
		submittedAt := now
		if now.After(deadline) {
			status = entity.AttemptStatusAutoSubmitted
		} else if mode == SubmitModeAuto {
			status = entity.AttemptStatusAutoSubmitted
		}

		scored, err := scoring.Score(quiz.Questions, a.Answers, quiz.TotalMarks, quiz.PassingMarks)
		if err != nil {
			log.Printf("[AttemptService] CRITICAL: не удалось оценить попытку #%d: %v", a.ID, err)
			return nil, err
		}

		a.Status = status
		a.SubmittedAt = &submittedAt
		a.TimeTakenSec = int64(submittedAt.Sub(a.StartedAt) / time.Second)
		a.TotalScore = scored.TotalScore
		a.Percentage = scored.Percentage
		a.IsPassed = scored.IsPassed
		a.Answers = scored.Answers

		result = &entity.Result{
			AttemptID:   a.ID,
			QuizID:      a.QuizID,
			StudentID:   a.StudentID,
			Score:       scored.TotalScore,
			Percentage:  scored.Percentage,
			IsPassed:    scored.IsPassed,
			CompletedAt: submittedAt,
		}
		return &repository.AttemptChange{SaveAnswers: true, Result: result}, nil
	})
	if err != nil {
		return nil, err
	}

	if outcome != nil {
		outcome.Replayed = true
		return outcome, nil
	}

	outcome = storedOutcome(attempt, quiz)
	log.Printf("[AttemptService] Попытка #%d сдана: статус %s, баллы %d/%d (%.2f%%)",
		attempt.ID, attempt.Status, attempt.TotalScore, quiz.TotalMarks, attempt.Percentage)

	s.invalidateQuizCache(quiz.ID)
	s.auditor.Record(ctx, AuditEvent{
		Action:     AuditAttemptSubmitted,
		ActorID:    attempt.StudentID,
		EntityType: "attempt",
		EntityID:   attempt.ID,
		Details:    map[string]interface{}{"status": attempt.Status, "score": attempt.TotalScore, "mode": string(mode)},
		At:         now,
	})
	s.notifyResult(attempt, quiz)

	return outcome, nil
}

// InvalidateAttempt аннулирует попытку: удаляет результат, баллы попытки сохраняются
func (s *AttemptService) InvalidateAttempt(ctx context.Context, actor Actor, attemptID uint, reason string, now time.Time) (*entity.Attempt, error) {
	current, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.quizRepo.GetByID(ctx, current.QuizID)
	if err != nil {
		return nil, err
	}
	if err := canManageQuiz(actor, quiz); err != nil {
		return nil, err
	}

	attempt, err := s.attemptRepo.Mutate(ctx, attemptID, func(a *entity.Attempt) (*repository.AttemptChange, error) {
		if a.Status == entity.AttemptStatusInvalidated {
			return nil, fmt.Errorf("%w: attempt #%d is already invalidated", ErrAlreadyTerminal, a.ID)
		}
		hadResult := a.IsScoreable()
		a.Status = entity.AttemptStatusInvalidated
		a.AppendWarning(entity.WarningInvalidated, reason, now)
		return &repository.AttemptChange{DeleteResult: hadResult}, nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[AttemptService] Попытка #%d аннулирована пользователем #%d: %s", attemptID, actor.UserID, reason)
	s.invalidateQuizCache(quiz.ID)
	s.auditor.Record(ctx, AuditEvent{
		Action:     AuditAttemptInvalidated,
		ActorID:    actor.UserID,
		EntityType: "attempt",
		EntityID:   attemptID,
		Details:    map[string]interface{}{"reason": reason},
		At:         now,
	})
	return attempt, nil
}

// RecordWarning добавляет предупреждение прокторинга. Сам по себе попытку не сдает.
func (s *AttemptService) RecordWarning(ctx context.Context, attemptID, studentID uint, kind, message string, now time.Time) (*entity.Attempt, error) {
	if kind == "" || kind == entity.WarningInvalidated {
		return nil, fmt.Errorf("%w: warning kind %q is not allowed", apperrors.ErrValidation, kind)
	}

	current, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := ownAttempt(current, studentID); err != nil {
		return nil, err
	}
	quiz, err := s.quizRepo.GetByID(ctx, current.QuizID)
	if err != nil {
		return nil, err
	}

	needsFinalize := false
	attempt, err := s.attemptRepo.Mutate(ctx, attemptID, func(a *entity.Attempt) (*repository.AttemptChange, error) {
		if a.ExpiredBy(quiz.AttemptDeadline(a.StartedAt), now) {
			needsFinalize = a.Status == entity.AttemptStatusInProgress
			return nil, fmt.Errorf("%w: attempt #%d", ErrAttemptExpired, a.ID)
		}
		if a.Status != entity.AttemptStatusInProgress {
			return nil, fmt.Errorf("%w: attempt #%d is %s", ErrNotInProgress, a.ID, a.Status)
		}
		a.AppendWarning(kind, message, now)
		return &repository.AttemptChange{}, nil
	})
	if needsFinalize {
		s.finalizeExpired(ctx, attemptID, now)
	}
	if err != nil {
		return nil, err
	}

	if entity.IsFocusLoss(kind) {
		log.Printf("[AttemptService] Попытка #%d: %s (переключений: %d)", attemptID, kind, attempt.TabSwitchCount)
	}
	return attempt, nil
}

// ApplyTabSwitchPolicy автоматически сдает попытку, если число переключений вкладок превысило порог.
// Возвращает nil, если политика выключена или порог не превышен.
func (s *AttemptService) ApplyTabSwitchPolicy(ctx context.Context, attempt *entity.Attempt, now time.Time) (*SubmitOutcome, error) {
	if s.maxTabSwitches <= 0 || attempt.Status != entity.AttemptStatusInProgress {
		return nil, nil
	}
	if attempt.TabSwitchCount <= s.maxTabSwitches {
		return nil, nil
	}

	log.Printf("[AttemptService] WARNING: попытка #%d превысила порог переключений (%d > %d), автосдача",
		attempt.ID, attempt.TabSwitchCount, s.maxTabSwitches)
	return s.finalize(ctx, attempt.ID, SubmitModeAuto, now)
}

// GetAttempt возвращает попытку владельцу или персоналу.
// Просроченная незавершенная попытка показывается как auto_submitted без записи в БД.
func (s *AttemptService) GetAttempt(ctx context.Context, actor Actor, attemptID uint, now time.Time) (*AttemptView, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.quizRepo.GetByID(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}

	if !actor.IsStaff() {
		if err := ownAttempt(attempt, actor.UserID); err != nil {
			return nil, err
		}
	} else if actor.Role == entity.RoleCoordinator {
		if err := canManageQuiz(actor, quiz); err != nil {
			return nil, err
		}
	}

	deadline := quiz.AttemptDeadline(attempt.StartedAt)
	return &AttemptView{
		Attempt:         attempt,
		EffectiveStatus: attempt.EffectiveStatus(deadline, now),
		Deadline:        deadline,
	}, nil
}

// SweepExpired финализирует незавершенные попытки с истекшим сроком. Возвращает число сданных попыток.
func (s *AttemptService) SweepExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	expired, err := s.attemptRepo.ListExpiredInProgress(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("list expired attempts failed: %w", err)
	}

	finalized := 0
	for _, attempt := range expired {
		if err := ctx.Err(); err != nil {
			return finalized, err
		}
		outcome, err := s.finalize(ctx, attempt.ID, SubmitModeAuto, now)
		if err != nil {
			log.Printf("[AttemptService] ERROR: фоновая финализация попытки #%d: %v", attempt.ID, err)
			continue
		}
		if !outcome.Replayed {
			finalized++
		}
	}

	if finalized > 0 {
		log.Printf("[AttemptService] Финализировано просроченных попыток: %d", finalized)
	}
	return finalized, nil
}

func ownAttempt(attempt *entity.Attempt, studentID uint) error {
	if attempt.StudentID != studentID {
		return fmt.Errorf("%w: attempt #%d does not belong to user #%d", apperrors.ErrForbidden, attempt.ID, studentID)
	}
	return nil
}

func storedOutcome(a *entity.Attempt, quiz *entity.Quiz) *SubmitOutcome {
	outcome := &SubmitOutcome{
		AttemptID:    a.ID,
		Status:       a.Status,
		TotalScore:   a.TotalScore,
		TotalMarks:   quiz.TotalMarks,
		Percentage:   a.Percentage,
		IsPassed:     a.IsPassed,
		TimeTakenSec: a.TimeTakenSec,
	}
	if a.SubmittedAt != nil {
		outcome.SubmittedAt = *a.SubmittedAt
	}
	return outcome
}

// invalidateQuizCache удаляет кеш аналитики; ошибки кеша не ломают запрос
func (s *AttemptService) invalidateQuizCache(quizID uint) {
	if s.cacheRepo == nil {
		return
	}
	if err := s.cacheRepo.Delete(quizCacheKey(quizID)); err != nil {
		log.Printf("[AttemptService] WARNING: не удалось сбросить кеш аналитики викторины #%d: %v", quizID, err)
	}
}

// notifyResult отправляет письмо о результате в фоне
func (s *AttemptService) notifyResult(attempt *entity.Attempt, quiz *entity.Quiz) {
	if s.userRepo == nil {
		return
	}
	summary := ResultSummary{
		AttemptID:  attempt.ID,
		QuizTitle:  quiz.Title,
		Score:      attempt.TotalScore,
		TotalMarks: quiz.TotalMarks,
		Percentage: attempt.Percentage,
		IsPassed:   attempt.IsPassed,
		Status:     attempt.Status,
	}
	studentID := attempt.StudentID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		user, err := s.userRepo.GetByID(ctx, studentID)
		if err != nil {
			log.Printf("[AttemptService] WARNING: студент #%d не найден для уведомления: %v", studentID, err)
			return
		}
		if user.Email == "" {
			return
		}
		summary.StudentName = user.FullName
		if err := s.notifier.NotifyResult(ctx, user.Email, summary); err != nil {
			log.Printf("[AttemptService] WARNING: не удалось отправить результат попытки #%d: %v", summary.AttemptID, err)
		}
	}()
}
