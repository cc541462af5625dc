package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/middleware"
)

// Routes - зависимости для регистрации маршрутов API
type Routes struct {
	Auth        *middleware.AuthMiddleware
	RateLimiter *middleware.RateLimiter // nil - без ограничения частоты
	Quiz        *QuizHandler
	Attempt     *AttemptHandler
	Analytics   *AnalyticsHandler
}

// limit возвращает middleware ограничения частоты или пустышку без Redis
func (r Routes) limit(cfg middleware.RateLimitConfig) gin.HandlerFunc {
	if r.RateLimiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return r.RateLimiter.Limit(cfg)
}

// Register регистрирует все маршруты под группой /api
func (r Routes) Register(api *gin.RouterGroup) {
	authed := api.Group("", r.Auth.RequireAuth())
	studentOnly := r.Auth.RequireRoles(entity.RoleStudent)
	staffOnly := r.Auth.StaffOnly()

	// Викторины
	quizzes := authed.Group("/quizzes")
	{
		quizzes.GET("", r.Quiz.ListQuizzes)
		quizzes.POST("", staffOnly, r.Quiz.CreateQuiz)

		quizWithID := quizzes.Group("/:id", middleware.ExtractUintParam("id", "quizID"))
		{
			quizWithID.GET("", r.Quiz.GetQuiz)
			quizWithID.GET("/questions", r.Quiz.GetQuizWithQuestions)
			quizWithID.POST("/attempts", studentOnly, r.Attempt.StartAttempt)

			quizWithID.PUT("", staffOnly, r.Quiz.UpdateQuiz)
			quizWithID.DELETE("", staffOnly, r.Quiz.DeleteQuiz)
			quizWithID.PATCH("/active", staffOnly, r.Quiz.SetActive)
			quizWithID.PATCH("/publish", staffOnly, r.Quiz.SetPublished)
			quizWithID.POST("/questions", staffOnly, r.Quiz.AddQuestions)
			quizWithID.GET("/assignments", staffOnly, r.Quiz.ListAssignments)
			quizWithID.POST("/assignments", staffOnly, r.Quiz.GrantAssignments)
			quizWithID.DELETE("/assignments", staffOnly, r.Quiz.RevokeAssignments)
			quizWithID.GET("/results", staffOnly, r.Quiz.GetQuizResults)
			quizWithID.GET("/results/export", staffOnly, r.Quiz.ExportQuizResults)
			quizWithID.GET("/analytics", staffOnly, r.Analytics.GetQuizAnalytics)
		}
	}

	// Вопросы
	questions := authed.Group("/questions/:id", staffOnly, middleware.ExtractUintParam("id", "questionID"))
	{
		questions.PUT("", r.Quiz.UpdateQuestion)
		questions.DELETE("", r.Quiz.DeleteQuestion)
	}

	// Попытки
	attempts := authed.Group("/attempts/:id", middleware.ExtractUintParam("id", "attemptID"))
	{
		attempts.GET("", r.Attempt.GetAttempt)
		attempts.PUT("/answers", studentOnly, r.limit(middleware.AnswerRateLimitConfig()), r.Attempt.RecordAnswer)
		attempts.POST("/submit", studentOnly, r.Attempt.Submit)
		attempts.POST("/warnings", studentOnly, r.limit(middleware.WarningRateLimitConfig()), r.Attempt.RecordWarning)
		attempts.POST("/invalidate", staffOnly, r.Attempt.InvalidateAttempt)
	}

	// Студенты
	students := authed.Group("/students/:id", middleware.ExtractUintParam("id", "studentID"))
	{
		students.GET("/results", r.Quiz.GetStudentResults)
		students.GET("/analytics", r.Analytics.GetStudentAnalytics)
	}

	// Администрирование
	admin := authed.Group("/admin", r.Auth.AdminOnly())
	{
		admin.GET("/analytics", r.Analytics.GetSystemAnalytics)
	}
}
