package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

func validQuiz() *QuizInput {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &QuizInput{
		Title:           "Операционные системы",
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		DurationMinutes: 30,
		PassingMarks:    4,
	}
}

func validQuestion() QuestionInput {
	return QuestionInput{Text: "Что такое мьютекс?", Options: []string{"a", "b", "c", "d"}, CorrectOption: "b", Marks: 1}
}

func TestQuiz_Valid(t *testing.T) {
	v := New()
	assert.NoError(t, v.Quiz(validQuiz(), 0))
	assert.NoError(t, v.Quiz(validQuiz(), 10))
}

func TestQuiz_WindowAndPassingMarks(t *testing.T) {
	// Arrange
	v := New()
	input := validQuiz()
	input.EndTime = input.StartTime
	input.PassingMarks = 12

	// Act
	err := v.Quiz(input, 10)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation), "Ошибка должна сводиться к ErrValidation")
	fields := map[string]string{}
	for _, fe := range FieldErrors(err) {
		fields[fe.Field] = fe.Rule
	}
	assert.Equal(t, "gtfield", fields["end_time"], "Конец окна должен быть строго после начала")
	assert.Equal(t, "lte_total_marks", fields["passing_marks"])
}

func TestQuestions_RowAddressing(t *testing.T) {
	// Arrange
	v := New()
	bad := validQuestion()
	bad.Options = []string{"a", "b", "c"}
	bad.CorrectOption = "E"
	bad.Marks = 0
	rows := []QuestionInput{validQuestion(), bad}

	// Act
	err := v.Questions(rows)

	// Assert
	require.Error(t, err)
	fields := map[string]string{}
	for _, fe := range FieldErrors(err) {
		fields[fe.Field] = fe.Rule
	}
	assert.Equal(t, "len", fields["questions[1].options"])
	assert.Equal(t, "option_label", fields["questions[1].correct_option"])
	assert.Equal(t, "required", fields["questions[1].marks"])
	assert.NotContains(t, fields, "questions[0].text", "Валидная строка не дает ошибок")
}

func TestQuestions_EmptyOptionText(t *testing.T) {
	v := New()
	row := validQuestion()
	row.Options[2] = ""

	err := v.Questions([]QuestionInput{row})

	require.Error(t, err)
	assert.Equal(t, "questions[0].options[2]", FieldErrors(err)[0].Field)
}

func TestQuestions_EmptyBatch(t *testing.T) {
	err := New().Questions(nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAnswerInput_OptionalLabel(t *testing.T) {
	v := New()
	assert.NoError(t, v.Struct(&AnswerInput{QuestionID: 1, SelectedOption: ""}), "Пустой ответ допустим")
	assert.NoError(t, v.Struct(&AnswerInput{QuestionID: 1, SelectedOption: "d"}))
	assert.Error(t, v.Struct(&AnswerInput{QuestionID: 1, SelectedOption: "Z"}))
	assert.Error(t, v.Struct(&AnswerInput{SelectedOption: "A"}), "question_id обязателен")
}

func TestPublishable(t *testing.T) {
	v := New()
	assert.Error(t, v.Publishable(&entity.Quiz{QuestionCount: 0}))
	assert.Error(t, v.Publishable(&entity.Quiz{QuestionCount: 2, TotalMarks: 2, PassingMarks: 3}))
	assert.NoError(t, v.Publishable(&entity.Quiz{QuestionCount: 2, TotalMarks: 2, PassingMarks: 2}))
}

func TestErrors_Message(t *testing.T) {
	err := Errors{{Field: "title", Rule: "required", Message: "is required"}}
	assert.Contains(t, err.Error(), "title: is required")
}
