package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// OptionLabels - метки вариантов ответа в порядке их следования
var OptionLabels = []string{"A", "B", "C", "D"}

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
func (o *StringArray) Scan(value interface{}) error {
	if value == nil {
		*o = StringArray{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal JSONB value: expected []byte or string")
	}

	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для StringArray
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil // Пустой JSON массив вместо null
	}
	return json.Marshal(o)
}

// Question представляет вопрос викторины с четырьмя вариантами ответа
type Question struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	QuizID        uint        `gorm:"not null;index" json:"quiz_id"`
	Text          string      `gorm:"size:1000;not null" json:"text"`
	Options       StringArray `gorm:"type:jsonb;not null" json:"options"`
	CorrectOption string      `gorm:"size:1;not null" json:"-"` // Скрыто от клиента
	Marks         int         `gorm:"not null;default:1" json:"marks"`
	OrderIndex    int         `gorm:"not null;default:0" json:"order_index"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// NormalizeOption приводит метку варианта к каноническому виду ("b " -> "B").
// Пустая строка означает "нет ответа".
func NormalizeOption(option string) string {
	return strings.ToUpper(strings.TrimSpace(option))
}

// IsValidOption проверяет, что метка входит в набор A-D
func IsValidOption(option string) bool {
	normalized := NormalizeOption(option)
	for _, label := range OptionLabels {
		if label == normalized {
			return true
		}
	}
	return false
}

// IsValidOption проверяет, что метка соответствует одному из вариантов вопроса
func (q *Question) IsValidOption(option string) bool {
	normalized := NormalizeOption(option)
	for i, label := range OptionLabels {
		if i >= len(q.Options) {
			break
		}
		if label == normalized {
			return true
		}
	}
	return false
}

// IsCorrect проверяет, совпадает ли выбранный вариант с правильным (без учета регистра)
func (q *Question) IsCorrect(selectedOption string) bool {
	selected := NormalizeOption(selectedOption)
	if selected == "" {
		return false
	}
	return selected == NormalizeOption(q.CorrectOption)
}

// MarksFor возвращает баллы за ответ: полный балл за верный, 0 иначе (без частичного зачета)
func (q *Question) MarksFor(isCorrect bool) int {
	if !isCorrect {
		return 0
	}
	return q.Marks
}
