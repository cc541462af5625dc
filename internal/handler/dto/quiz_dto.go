package dto

import (
	"time"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/handler/helper"
	"github.com/yourusername/quiz-api/internal/service"
)

// QuestionResponse представляет вопрос в формате для ответа клиенту.
// CorrectOption заполняется только для персонала.
type QuestionResponse struct {
	ID            uint                    `json:"id"`
	QuizID        uint                    `json:"quiz_id"`
	Text          string                  `json:"text"`
	Options       []helper.QuestionOption `json:"options"`
	CorrectOption string                  `json:"correct_option,omitempty"`
	Marks         int                     `json:"marks"`
	OrderIndex    int                     `json:"order_index"`
}

// QuizResponse представляет викторину в формате для ответа клиенту
type QuizResponse struct {
	ID              uint               `json:"id"`
	OwnerID         uint               `json:"owner_id"`
	Title           string             `json:"title"`
	Description     string             `json:"description,omitempty"`
	StartTime       time.Time          `json:"start_time"`
	EndTime         time.Time          `json:"end_time"`
	DurationMinutes int                `json:"duration_minutes"`
	TotalMarks      int                `json:"total_marks"`
	PassingMarks    int                `json:"passing_marks"`
	QuestionCount   int                `json:"question_count"`
	IsActive        bool               `json:"is_active"`
	IsPublished     bool               `json:"is_published"`
	Department      string             `json:"department,omitempty"`
	Semester        string             `json:"semester,omitempty"`
	Subject         string             `json:"subject,omitempty"`
	Batch           string             `json:"batch,omitempty"`
	Questions       []QuestionResponse `json:"questions,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// ResultResponse представляет результат попытки
type ResultResponse struct {
	ID          uint      `json:"id"`
	AttemptID   uint      `json:"attempt_id"`
	QuizID      uint      `json:"quiz_id"`
	StudentID   uint      `json:"student_id"`
	Score       int       `json:"score"`
	Percentage  float64   `json:"percentage"`
	IsPassed    bool      `json:"is_passed"`
	CompletedAt time.Time `json:"completed_at"`
}

// PaginatedResultResponse представляет пагинированный список результатов
type PaginatedResultResponse struct {
	Results []ResultResponse `json:"results"`
	Total   int64            `json:"total"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

// PaginatedQuizResponse представляет пагинированный список викторин
type PaginatedQuizResponse struct {
	Quizzes []*QuizResponse `json:"quizzes"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
}

// NewQuestionResponse создает DTO для вопроса; ключ включается только при withKey
func NewQuestionResponse(q *entity.Question, withKey bool) QuestionResponse {
	resp := QuestionResponse{
		ID:         q.ID,
		QuizID:     q.QuizID,
		Text:       q.Text,
		Options:    helper.ConvertOptionsToObjects(q.Options),
		Marks:      q.Marks,
		OrderIndex: q.OrderIndex,
	}
	if withKey {
		resp.CorrectOption = q.CorrectOption
	}
	return resp
}

// NewQuizResponse создает DTO для викторины
func NewQuizResponse(quiz *entity.Quiz, includeQuestions, withKey bool) *QuizResponse {
	resp := &QuizResponse{
		ID:              quiz.ID,
		OwnerID:         quiz.OwnerID,
		Title:           quiz.Title,
		Description:     quiz.Description,
		StartTime:       quiz.StartTime,
		EndTime:         quiz.EndTime,
		DurationMinutes: quiz.DurationMinutes,
		TotalMarks:      quiz.TotalMarks,
		PassingMarks:    quiz.PassingMarks,
		QuestionCount:   quiz.QuestionCount,
		IsActive:        quiz.IsActive,
		IsPublished:     quiz.IsPublished,
		Department:      quiz.Department,
		Semester:        quiz.Semester,
		Subject:         quiz.Subject,
		Batch:           quiz.Batch,
		CreatedAt:       quiz.CreatedAt,
		UpdatedAt:       quiz.UpdatedAt,
	}

	if includeQuestions && len(quiz.Questions) > 0 {
		resp.Questions = make([]QuestionResponse, 0, len(quiz.Questions))
		for i := range quiz.Questions {
			resp.Questions = append(resp.Questions, NewQuestionResponse(&quiz.Questions[i], withKey))
		}
	}
	return resp
}

// NewResultResponse создает DTO для результата
func NewResultResponse(r *entity.Result) ResultResponse {
	return ResultResponse{
		ID:          r.ID,
		AttemptID:   r.AttemptID,
		QuizID:      r.QuizID,
		StudentID:   r.StudentID,
		Score:       r.Score,
		Percentage:  r.Percentage,
		IsPassed:    r.IsPassed,
		CompletedAt: r.CompletedAt,
	}
}

// NewResultList преобразует список результатов
func NewResultList(results []entity.Result) []ResultResponse {
	list := make([]ResultResponse, 0, len(results))
	for i := range results {
		list = append(list, NewResultResponse(&results[i]))
	}
	return list
}

// StartAttemptResponse - ответ на начало попытки
type StartAttemptResponse struct {
	AttemptID       uint      `json:"attempt_id"`
	QuizID          uint      `json:"quiz_id"`
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds int64     `json:"duration_seconds"`
	EndOfWindow     time.Time `json:"end_of_window"`
	Deadline        time.Time `json:"deadline"`
}

// NewStartAttemptResponse создает DTO начала попытки
func NewStartAttemptResponse(s *service.StartedAttempt) *StartAttemptResponse {
	return &StartAttemptResponse{
		AttemptID:       s.AttemptID,
		QuizID:          s.QuizID,
		StartedAt:       s.StartedAt,
		DurationSeconds: int64(s.Duration / time.Second),
		EndOfWindow:     s.EndOfWindow,
		Deadline:        s.Deadline,
	}
}

// SubmitResponse - итог сдачи попытки
type SubmitResponse struct {
	AttemptID        uint      `json:"attempt_id"`
	Status           string    `json:"status"`
	TotalScore       int       `json:"total_score"`
	TotalMarks       int       `json:"total_marks"`
	Percentage       float64   `json:"percentage"`
	IsPassed         bool      `json:"is_passed"`
	TimeTakenSeconds int64     `json:"time_taken_seconds"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// NewSubmitResponse создает DTO итога сдачи
func NewSubmitResponse(o *service.SubmitOutcome) *SubmitResponse {
	return &SubmitResponse{
		AttemptID:        o.AttemptID,
		Status:           o.Status,
		TotalScore:       o.TotalScore,
		TotalMarks:       o.TotalMarks,
		Percentage:       o.Percentage,
		IsPassed:         o.IsPassed,
		TimeTakenSeconds: o.TimeTakenSec,
		SubmittedAt:      o.SubmittedAt,
	}
}

// AnswerResponse - записанный ответ
type AnswerResponse struct {
	QuestionID     uint       `json:"question_id"`
	SelectedOption *string    `json:"selected_option"`
	IsCorrect      *bool      `json:"is_correct,omitempty"`
	MarksAwarded   *int       `json:"marks_awarded,omitempty"`
	AnsweredAt     *time.Time `json:"answered_at,omitempty"`
}

// AttemptResponse - попытка с эффективным статусом
type AttemptResponse struct {
	ID               uint                    `json:"id"`
	QuizID           uint                    `json:"quiz_id"`
	StudentID        uint                    `json:"student_id"`
	Status           string                  `json:"status"`
	StoredStatus     string                  `json:"stored_status"`
	StartedAt        time.Time               `json:"started_at"`
	Deadline         time.Time               `json:"deadline"`
	SubmittedAt      *time.Time              `json:"submitted_at,omitempty"`
	TimeTakenSeconds int64                   `json:"time_taken_seconds"`
	TotalScore       int                     `json:"total_score"`
	Percentage       float64                 `json:"percentage"`
	IsPassed         bool                    `json:"is_passed"`
	TabSwitchCount   int                     `json:"tab_switch_count"`
	Warnings         []entity.AttemptWarning `json:"warnings"`
	Answers          []AnswerResponse        `json:"answers"`
}

// NewAttemptResponse создает DTO попытки.
// Правильность ответов раскрывается только после оценки.
func NewAttemptResponse(view *service.AttemptView) *AttemptResponse {
	a := view.Attempt
	resp := &AttemptResponse{
		ID:               a.ID,
		QuizID:           a.QuizID,
		StudentID:        a.StudentID,
		Status:           view.EffectiveStatus,
		StoredStatus:     a.Status,
		StartedAt:        a.StartedAt,
		Deadline:         view.Deadline,
		SubmittedAt:      a.SubmittedAt,
		TimeTakenSeconds: a.TimeTakenSec,
		TotalScore:       a.TotalScore,
		Percentage:       a.Percentage,
		IsPassed:         a.IsPassed,
		TabSwitchCount:   a.TabSwitchCount,
		Warnings:         append([]entity.AttemptWarning{}, a.Warnings...),
		Answers:          make([]AnswerResponse, 0, len(a.Answers)),
	}

	scored := a.IsTerminal()
	for i := range a.Answers {
		ans := a.Answers[i]
		item := AnswerResponse{QuestionID: ans.QuestionID, AnsweredAt: ans.AnsweredAt}
		if ans.IsAnswered() {
			option := ans.SelectedOption
			item.SelectedOption = &option
		}
		if scored {
			correct, marks := ans.IsCorrect, ans.MarksAwarded
			item.IsCorrect = &correct
			item.MarksAwarded = &marks
		}
		resp.Answers = append(resp.Answers, item)
	}
	return resp
}
