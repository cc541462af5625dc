// Package validation проверяет входные данные и возвращает структурированный список ошибок по полям.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

// FieldError описывает нарушение одного правила
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Errors - список ошибок валидации. errors.Is(err, apperrors.ErrValidation) == true.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("%s: %s", apperrors.ErrValidation.Error(), strings.Join(parts, "; "))
}

// Is связывает список с общей ошибкой валидации
func (e Errors) Is(target error) bool {
	return target == apperrors.ErrValidation
}

// FieldErrors извлекает список ошибок по полям из цепочки err
func FieldErrors(err error) []FieldError {
	var list Errors
	if errors.As(err, &list) {
		return list
	}
	return nil
}

// QuizInput - метаданные викторины
type QuizInput struct {
	Title           string    `json:"title" validate:"required,max=200"`
	Description     string    `json:"description" validate:"max=1000"`
	StartTime       time.Time `json:"start_time" validate:"required"`
	EndTime         time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,min=1,max=1440"`
	PassingMarks    int       `json:"passing_marks" validate:"min=0"`
	Department      string    `json:"department" validate:"max=100"`
	Semester        string    `json:"semester" validate:"max=20"`
	Subject         string    `json:"subject" validate:"max=100"`
	Batch           string    `json:"batch" validate:"max=20"`
}

// QuestionInput - строка вопроса (например, из разобранной таблицы)
type QuestionInput struct {
	Text          string   `json:"text" validate:"required,max=1000"`
	Options       []string `json:"options" validate:"len=4,dive,required,max=500"`
	CorrectOption string   `json:"correct_option" validate:"required,option_label"`
	Marks         int      `json:"marks" validate:"required,min=1,max=100"`
}

// AnswerInput - запись ответа. Пустая метка означает "снять ответ".
type AnswerInput struct {
	QuestionID     uint   `json:"question_id" validate:"required"`
	SelectedOption string `json:"selected_option" validate:"omitempty,option_label"`
}

// WarningInput - предупреждение прокторинга
type WarningInput struct {
	Kind    string `json:"kind" validate:"required,max=50"`
	Message string `json:"message" validate:"max=500"`
}

// Validator оборачивает go-playground/validator с правилами платформы
type Validator struct {
	validate *validator.Validate
}

// New создает валидатор и регистрирует пользовательские правила
func New() *Validator {
	v := validator.New()

	// Имена полей берем из json-тегов, чтобы клиент видел те же ключи
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("option_label", func(fl validator.FieldLevel) bool {
		return entity.IsValidOption(fl.Field().String())
	})

	return &Validator{validate: v}
}

// Struct проверяет структуру по тегам
func (v *Validator) Struct(s interface{}) error {
	return v.withPrefix("", s)
}

// Quiz проверяет метаданные викторины. totalMarks - текущая сумма баллов вопросов (0, если вопросов нет).
func (v *Validator) Quiz(input *QuizInput, totalMarks int) error {
	var list Errors
	if err := v.Struct(input); err != nil {
		if fe := FieldErrors(err); fe != nil {
			list = append(list, fe...)
		} else {
			return err
		}
	}
	if totalMarks > 0 && input.PassingMarks > totalMarks {
		list = append(list, FieldError{
			Field:   "passing_marks",
			Rule:    "lte_total_marks",
			Message: fmt.Sprintf("must not exceed total marks (%d)", totalMarks),
		})
	}
	if len(list) > 0 {
		return list
	}
	return nil
}

// Questions проверяет пакет строк вопросов; ошибки адресуются как questions[i].field
func (v *Validator) Questions(rows []QuestionInput) error {
	if len(rows) == 0 {
		return Errors{{Field: "questions", Rule: "required", Message: "at least one question is required"}}
	}

	var list Errors
	for i := range rows {
		if err := v.withPrefix(fmt.Sprintf("questions[%d].", i), &rows[i]); err != nil {
			fe := FieldErrors(err)
			if fe == nil {
				return err
			}
			list = append(list, fe...)
		}
	}
	if len(list) > 0 {
		return list
	}
	return nil
}

// Publishable проверяет, что викторину можно опубликовать
func (v *Validator) Publishable(quiz *entity.Quiz) error {
	var list Errors
	if quiz.QuestionCount == 0 {
		list = append(list, FieldError{Field: "questions", Rule: "required", Message: "quiz without questions cannot be published"})
	}
	if quiz.PassingMarks > quiz.TotalMarks {
		list = append(list, FieldError{
			Field:   "passing_marks",
			Rule:    "lte_total_marks",
			Message: fmt.Sprintf("must not exceed total marks (%d)", quiz.TotalMarks),
		})
	}
	if len(list) > 0 {
		return list
	}
	return nil
}

func (v *Validator) withPrefix(prefix string, s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	list := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		list = append(list, FieldError{
			Field:   prefix + fieldPath(fe),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return list
}

// fieldPath отбрасывает имя корневой структуры: "QuestionInput.options[2]" -> "options[2]"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "len":
		return "must have exactly " + fe.Param() + " items"
	case "gtfield":
		return "must be after " + fe.Param()
	case "option_label":
		return "must be one of A, B, C, D"
	default:
		return "failed on rule " + fe.Tag()
	}
}
