package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/quiz-api/internal/middleware"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
	"github.com/yourusername/quiz-api/internal/service"
	"github.com/yourusername/quiz-api/internal/service/validation"
)

// Clock возвращает текущее время; в тестах подменяется
type Clock func() time.Time

func defaultClock(clock Clock) Clock {
	if clock == nil {
		return time.Now
	}
	return clock
}

// currentActor собирает Actor из данных, положенных AuthMiddleware
func currentActor(c *gin.Context) service.Actor {
	return service.Actor{
		UserID: c.GetUint(middleware.ContextUserID),
		Role:   c.GetString(middleware.ContextRole),
	}
}

// handleError сопоставляет доменные ошибки HTTP-статусам и отправляет ответ
func handleError(c *gin.Context, component string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		body := gin.H{"error": err.Error()}
		if fields := validation.FieldErrors(err); len(fields) > 0 {
			body["fields"] = fields
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.Is(err, service.ErrQuestionNotInQuiz):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrForbidden), errors.Is(err, service.ErrNotAssigned):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAttemptExpired):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrOutsideWindow),
		errors.Is(err, service.ErrAlreadyAttempted),
		errors.Is(err, service.ErrNotInProgress),
		errors.Is(err, service.ErrAlreadyTerminal),
		errors.Is(err, service.ErrQuestionsFrozen),
		errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("ERROR: Internal server error in %s: %v", component, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// bindError отвечает 400 на нераспознанное тело запроса
func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
}
