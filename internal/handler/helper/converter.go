package helper

import (
	"github.com/yourusername/quiz-api/internal/domain/entity"
)

// QuestionOption представляет вариант ответа для фронтенда
type QuestionOption struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// ConvertOptionsToObjects сопоставляет тексты вариантов меткам A-D
func ConvertOptionsToObjects(options entity.StringArray) []QuestionOption {
	converted := make([]QuestionOption, 0, len(options))
	for i, opt := range options {
		if i >= len(entity.OptionLabels) {
			break
		}
		if opt == "" {
			opt = "(пустой вариант)"
		}
		converted = append(converted, QuestionOption{Label: entity.OptionLabels[i], Text: opt})
	}
	return converted
}

// SanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func SanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

// YesNo переводит флаг в подпись для выгрузки
func YesNo(v bool) string {
	if v {
		return "Да"
	}
	return "Нет"
}
