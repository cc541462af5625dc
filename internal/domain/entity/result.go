package entity

import (
	"time"
)

// Result - материализованная проекция оцененной попытки.
// Существует только для попыток в статусе submitted или auto_submitted.
type Result struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AttemptID   uint      `gorm:"not null;uniqueIndex" json:"attempt_id"`
	QuizID      uint      `gorm:"not null;index:idx_results_quiz_score" json:"quiz_id"`
	StudentID   uint      `gorm:"not null;index" json:"student_id"`
	Score       int       `gorm:"not null;default:0;index:idx_results_quiz_score" json:"score"`
	Percentage  float64   `gorm:"not null;default:0" json:"percentage"`
	IsPassed    bool      `gorm:"not null;default:false" json:"is_passed"`
	CompletedAt time.Time `gorm:"not null" json:"completed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Result) TableName() string {
	return "results"
}
