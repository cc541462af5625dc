package handler

import (
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	"github.com/yourusername/quiz-api/internal/handler/dto"
	"github.com/yourusername/quiz-api/internal/handler/helper"
	"github.com/yourusername/quiz-api/internal/service"
	"github.com/yourusername/quiz-api/internal/service/validation"
)

// QuizHandler обрабатывает запросы, связанные с викторинами, вопросами и допусками
type QuizHandler struct {
	quizService *service.QuizService
	now         Clock
}

// NewQuizHandler создает новый обработчик викторин
func NewQuizHandler(quizService *service.QuizService, clock Clock) *QuizHandler {
	return &QuizHandler{
		quizService: quizService,
		now:         defaultClock(clock),
	}
}

// CreateQuiz обрабатывает запрос на создание викторины
// POST /api/quizzes
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	var req validation.QuizInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	quiz, err := h.quizService.CreateQuiz(c.Request.Context(), currentActor(c), req)
	if err != nil {
		handleError(c, "QuizHandler", err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewQuizResponse(quiz, false, true))
}

// ListQuizzes возвращает список викторин с фильтрами и пагинацией
// GET /api/quizzes?department=&subject=&semester=&published=&search=&page=&page_size=
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	actor := currentActor(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filters := repository.QuizFilters{
		Department: c.Query("department"),
		Subject:    c.Query("subject"),
		Semester:   c.Query("semester"),
		Search:     c.Query("search"),
	}
	if raw := c.Query("published"); raw != "" {
		published, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid published flag"})
			return
		}
		filters.Published = &published
	}
	if c.Query("mine") == "true" {
		filters.OwnerID = actor.UserID
	}

	quizzes, total, err := h.quizService.ListQuizzes(c.Request.Context(), actor, filters, page, pageSize)
	if err != nil {
		handleError(c, "QuizHandler", err)
		return
	}

	items := make([]*dto.QuizResponse, 0, len(quizzes))
	for i := range quizzes {
		items = append(items, dto.NewQuizResponse(&quizzes[i], false, actor.IsStaff()))
	}
	if page < 1 {
		page = 1
	}
	c.JSON(http.StatusOK, dto.PaginatedQuizResponse{Quizzes: items, Total: total, Page: page, PerPage: len(items)})
}

// GetQuiz возвращает информацию о викторине
// GET /api/quizzes/:id
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	quiz, err := h.quizService.GetQuiz(c.Request.Context(), currentActor(c), quizID)
	if err != nil {
		handleError(c, "QuizHandler", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuizResponse(quiz, false, false))
}

// GetQuizWithQuestions возвращает викторину с вопросами.
// Ключ ответов виден только персоналу.
// GET /api/quizzes/:id/questions
func (h *QuizHandler) GetQuizWithQuestions(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)
	actor := currentActor(c)

	quiz, err := h.quizService.GetQuizWithQuestions(c.Request.Context(), actor, quizID)
	if err != nil {
		handleError(c, "QuizHandler", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuizResponse(quiz, true, actor.IsStaff()))
}

// UpdateQuiz изменяет метаданные викторины
// PUT /api/quizzes/:id
func (h *QuizHandler) UpdateQuiz(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	var req validation.QuizInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	quiz, err := h.quizService.UpdateQuiz(c.Request.Context(), currentActor(c), quizID, req)
	if err != nil {
		handleError(c, "QuizHandler", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuizResponse(quiz, false, true))
}

// ToggleRequest - тело запросов включения/выключения флагов
type ToggleRequest struct {
	Value *bool `json:"value" binding:"required"`
}

// SetActive включает или выключает викторину
// PATCH /api/quizzes/:id/active
func (h *QuizHandler) SetActive(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.quizService.SetActive(c.Request.Context(), currentActor(c), quizID, *req.Value); err != nil {
		handleError(c, "QuizHandler", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quiz_id": quizID, "is_active": *req.Value})
}

// SetPublished публикует или снимает викторину с публикации
// PATCH /api/quizzes/:id/publish
func (h *QuizHandler) SetPublished(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.quizService.SetPublished(c.Request.Context(), currentActor(c), quizID, *req.Value); err != nil {
		handleError(c, "QuizHandler", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quiz_id": quizID, "is_published": *req.Value})
}

// DeleteQuiz удаляет викторину без попыток
// DELETE /api/quizzes/:id
func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	if err := h.quizService.DeleteQuiz(c.Request.Context(), currentActor(c), quizID); err != nil {
		handleError(c, "QuizHandler", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AddQuestionsRequest представляет запрос на добавление вопросов
type AddQuestionsRequest struct {
	Questions []validation.QuestionInput `json:"questions"`
}

// AddQuestions добавляет вопросы в конец викторины
// POST /api/quizzes/:id/questions
func (h *QuizHandler) AddQuestions(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	var req AddQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	questions, err := h.quizService.AddQuestions(c.Request.Context(), currentActor(c), quizID, req.Questions)
	if err != nil {
		handleError(c, "QuizHandler", err)
		return
	}

	resp := make([]dto.QuestionResponse, 0, len(questions))
	for i := range questions {
		resp = append(resp, dto.NewQuestionResponse(&questions[i], true))
	}
	c.JSON(http.StatusCreated, gin.H{"questions": resp, "count": len(resp)})
}

// UpdateQuestion изменяет вопрос, если по викторине еще нет попыток
// PUT /api/questions/:id
func (h *QuizHandler) UpdateQuestion(c *gin.Context) {
	questionID := c.MustGet("questionID").(uint)

	var req validation.QuestionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	question, err := h.quizService.UpdateQuestion(c.Request.Context(), currentActor(c), questionID, req)
	if err != nil {
		handleError(c, "QuizHandler", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuestionResponse(question, true))
}

// DeleteQuestion удаляет вопрос, если по викторине еще нет попыток
// DELETE /api/questions/:id
func (h *QuizHandler) DeleteQuestion(c *gin.Context) {
	questionID := c.MustGet("questionID").(uint)

	if err := h.quizService.DeleteQuestion(c.Request.Context(), currentActor(c), questionID); err != nil {
		handleError(c, "QuizHandler", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AssignmentsRequest - список студентов для выдачи или отзыва допуска
type AssignmentsRequest struct {
	StudentIDs []uint `json:"student_ids"`
}

// GrantAssignments допускает студентов к викторине
// POST /api/quizzes/:id/assignments
func (h *QuizHandler) GrantAssignments(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	var req AssignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	granted, err := h.quizService.GrantAssignments(c.Request.Context(), currentActor(c), quizID, req.StudentIDs)
	if err != nil {
		handleError(c, "QuizHandler", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quiz_id": quizID, "granted": granted})
}

// RevokeAssignments отзывает допуск студентов
// DELETE /api/quizzes/:id/assignments
func (h *QuizHandler) RevokeAssignments(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	var req AssignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	revoked, err := h.quizService.RevokeAssignments(c.Request.Context(), currentActor(c), quizID, req.StudentIDs)
	if err != nil {
		handleError(c, "QuizHandler", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quiz_id": quizID, "revoked": revoked})
}

// ListAssignments возвращает допуски викторины
// GET /api/quizzes/:id/assignments
func (h *QuizHandler) ListAssignments(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)

	assignments, err := h.quizService.ListAssignments(c.Request.Context(), currentActor(c), quizID)
	if err != nil {
		handleError(c, "QuizHandler", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quiz_id": quizID, "assignments": assignments})
}

// GetQuizResults возвращает пагинированные результаты викторины
// GET /api/quizzes/:id/results?page=&page_size=
func (h *QuizHandler) GetQuizResults(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	results, total, err := h.quizService.GetQuizResults(c.Request.Context(), currentActor(c), quizID, page, pageSize)
	if err != nil {
		handleError(c, "QuizHandler", err)
		return
	}

	if page < 1 {
		page = 1
	}
	c.JSON(http.StatusOK, dto.PaginatedResultResponse{
		Results: dto.NewResultList(results),
		Total:   total,
		Page:    page,
		PerPage: len(results),
	})
}

// GetStudentResults возвращает результаты студента
// GET /api/students/:id/results
func (h *QuizHandler) GetStudentResults(c *gin.Context) {
	studentID := c.MustGet("studentID").(uint)

	results, err := h.quizService.GetStudentResults(c.Request.Context(), currentActor(c), studentID)
	if err != nil {
		handleError(c, "QuizHandler", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"student_id": studentID, "results": dto.NewResultList(results)})
}

var exportHeaders = []string{"№", "Викторина", "Студент (ID)", "Попытка (ID)", "Баллы", "Максимум", "Процент", "Сдано", "Завершено"}

// ExportQuizResults экспортирует результаты викторины в CSV или Excel формате
// GET /api/quizzes/:id/results/export?format=csv|xlsx
func (h *QuizHandler) ExportQuizResults(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "xlsx" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported export format"})
		return
	}

	quiz, results, err := h.quizService.ExportQuizResults(c.Request.Context(), currentActor(c), quizID)
	if err != nil {
		handleError(c, "QuizHandler", err)
		return
	}

	filename := fmt.Sprintf("quiz_%d_results_%s", quizID, h.now().Format("2006-01-02"))

	switch format {
	case "xlsx":
		h.exportXLSX(c, results, quiz, filename)
	default:
		h.exportCSV(c, results, quiz, filename)
	}
}

// exportCSV экспортирует результаты в CSV с правильным экранированием спецсимволов
func (h *QuizHandler) exportCSV(c *gin.Context, results []entity.Result, quiz *entity.Quiz, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write(exportHeaders)
	for i, r := range results {
		writer.Write([]string{
			strconv.Itoa(i + 1),
			helper.SanitizeForExcel(quiz.Title),
			strconv.FormatUint(uint64(r.StudentID), 10),
			strconv.FormatUint(uint64(r.AttemptID), 10),
			strconv.Itoa(r.Score),
			strconv.Itoa(quiz.TotalMarks),
			strconv.FormatFloat(r.Percentage, 'f', 2, 64),
			helper.YesNo(r.IsPassed),
			r.CompletedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

// exportXLSX экспортирует результаты в Excel с использованием StreamWriter
func (h *QuizHandler) exportXLSX(c *gin.Context, results []entity.Result, quiz *entity.Quiz, filename string) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Результаты"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[QuizHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := make([]interface{}, len(exportHeaders))
	for i, name := range exportHeaders {
		headers[i] = name
	}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[QuizHandler] Ошибка записи заголовков: %v", err)
	}

	title := helper.SanitizeForExcel(quiz.Title)
	for i, r := range results {
		rowNum := i + 2
		row := []interface{}{
			i + 1, title, r.StudentID, r.AttemptID, r.Score, quiz.TotalMarks,
			r.Percentage, helper.YesNo(r.IsPassed), r.CompletedAt.Format("2006-01-02 15:04:05"),
		}
		if err := sw.SetRow(fmt.Sprintf("A%d", rowNum), row); err != nil {
			log.Printf("[QuizHandler] Ошибка записи строки %d: %v", rowNum, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[QuizHandler] Ошибка при Flush: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[QuizHandler] Ошибка записи Excel в response: %v", err)
	}
}
