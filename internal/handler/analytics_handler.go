package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/quiz-api/internal/service"
)

// maxTopN ограничивает размер топа в запросе аналитики
const maxTopN = 100

// AnalyticsHandler отдает агрегаты по викторинам, студентам и системе
type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
	now              Clock
}

// NewAnalyticsHandler создает новый обработчик аналитики
func NewAnalyticsHandler(analyticsService *service.AnalyticsService, clock Clock) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		now:              defaultClock(clock),
	}
}

// GetQuizAnalytics возвращает аналитику викторины
// GET /api/quizzes/:id/analytics?top=N
func (h *AnalyticsHandler) GetQuizAnalytics(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	topN := h.analyticsService.DefaultTopN()
	if raw := c.Query("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxTopN {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid top parameter"})
			return
		}
		topN = n
	}

	stats, err := h.analyticsService.GetQuizAnalytics(c.Request.Context(), currentActor(c), quizID, topN, h.now())
	if err != nil {
		handleError(c, "AnalyticsHandler", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetStudentAnalytics возвращает аналитику студента (сам студент или персонал)
// GET /api/students/:id/analytics
func (h *AnalyticsHandler) GetStudentAnalytics(c *gin.Context) {
	studentID := c.MustGet("studentID").(uint)

	stats, err := h.analyticsService.GetStudentAnalytics(c.Request.Context(), currentActor(c), studentID, h.now())
	if err != nil {
		handleError(c, "AnalyticsHandler", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetSystemAnalytics возвращает общесистемные счетчики
// GET /api/admin/analytics
func (h *AnalyticsHandler) GetSystemAnalytics(c *gin.Context) {
	stats, err := h.analyticsService.GetSystemAnalytics(c.Request.Context(), currentActor(c))
	if err != nil {
		handleError(c, "AnalyticsHandler", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
