package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/quiz-api/internal/handler/dto"
	"github.com/yourusername/quiz-api/internal/service"
	"github.com/yourusername/quiz-api/internal/service/validation"
)

// AttemptHandler обрабатывает жизненный цикл попытки: старт, ответы, сдачу и прокторинг
type AttemptHandler struct {
	attemptService *service.AttemptService
	validator      *validation.Validator
	now            Clock
}

// NewAttemptHandler создает новый обработчик попыток
func NewAttemptHandler(attemptService *service.AttemptService, validator *validation.Validator, clock Clock) *AttemptHandler {
	if validator == nil {
		validator = validation.New()
	}
	return &AttemptHandler{
		attemptService: attemptService,
		validator:      validator,
		now:            defaultClock(clock),
	}
}

// StartAttempt начинает попытку студента по викторине
// POST /api/quizzes/:id/attempts
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)
	actor := currentActor(c)

	meta := service.AttemptMeta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	started, err := h.attemptService.StartAttempt(c.Request.Context(), quizID, actor.UserID, meta, h.now())
	if err != nil {
		handleError(c, "AttemptHandler", err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewStartAttemptResponse(started))
}

// RecordAnswer сохраняет ответ на вопрос; пустой selected_option снимает ответ
// PUT /api/attempts/:id/answers
func (h *AttemptHandler) RecordAnswer(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)

	var req validation.AnswerInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		handleError(c, "AttemptHandler", err)
		return
	}

	err := h.attemptService.RecordAnswer(c.Request.Context(), attemptID, currentActor(c).UserID, req.QuestionID, req.SelectedOption, h.now())
	if err != nil {
		handleError(c, "AttemptHandler", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempt_id": attemptID, "question_id": req.QuestionID, "recorded": true})
}

// SubmitRequest - тело запроса сдачи; по умолчанию ручная сдача
type SubmitRequest struct {
	Mode string `json:"mode"`
}

// Submit сдает попытку и возвращает итог оценки
// POST /api/attempts/:id/submit
func (h *AttemptHandler) Submit(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		bindError(c, err)
		return
	}

	mode := service.SubmitModeManual
	switch req.Mode {
	case "", string(service.SubmitModeManual):
	case string(service.SubmitModeAuto):
		mode = service.SubmitModeAuto
	default:
		handleError(c, "AttemptHandler", validation.Errors{{Field: "mode", Rule: "oneof", Message: "must be one of: manual auto"}})
		return
	}

	outcome, err := h.attemptService.Submit(c.Request.Context(), attemptID, currentActor(c).UserID, mode, h.now())
	if err != nil {
		handleError(c, "AttemptHandler", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSubmitResponse(outcome))
}

// RecordWarning записывает предупреждение прокторинга и применяет политику переключений вкладок
// POST /api/attempts/:id/warnings
func (h *AttemptHandler) RecordWarning(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)
	now := h.now()

	var req validation.WarningInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		handleError(c, "AttemptHandler", err)
		return
	}

	attempt, err := h.attemptService.RecordWarning(c.Request.Context(), attemptID, currentActor(c).UserID, req.Kind, req.Message, now)
	if err != nil {
		handleError(c, "AttemptHandler", err)
		return
	}

	resp := gin.H{
		"attempt_id":       attempt.ID,
		"tab_switch_count": attempt.TabSwitchCount,
		"warnings":         len(attempt.Warnings),
		"auto_submitted":   false,
	}

	outcome, err := h.attemptService.ApplyTabSwitchPolicy(c.Request.Context(), attempt, now)
	if err != nil {
		// Предупреждение уже записано, автосдачу повторит ленивый таймаут или sweeper
		log.Printf("[AttemptHandler] ERROR: автосдача попытки #%d по переключениям не удалась: %v", attempt.ID, err)
	} else if outcome != nil {
		resp["auto_submitted"] = true
		resp["result"] = dto.NewSubmitResponse(outcome)
	}

	c.JSON(http.StatusOK, resp)
}

// GetAttempt возвращает попытку с эффективным статусом
// GET /api/attempts/:id
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)

	view, err := h.attemptService.GetAttempt(c.Request.Context(), currentActor(c), attemptID, h.now())
	if err != nil {
		handleError(c, "AttemptHandler", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAttemptResponse(view))
}

// InvalidateRequest - причина аннулирования
type InvalidateRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// InvalidateAttempt аннулирует попытку (администратор или владелец викторины)
// POST /api/attempts/:id/invalidate
func (h *AttemptHandler) InvalidateAttempt(c *gin.Context) {
	attemptID := c.MustGet("attemptID").(uint)
	now := h.now()

	var req InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	attempt, err := h.attemptService.InvalidateAttempt(c.Request.Context(), currentActor(c), attemptID, req.Reason, now)
	if err != nil {
		handleError(c, "AttemptHandler", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempt_id": attempt.ID, "status": attempt.Status})
}
