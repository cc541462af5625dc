package entity

import "time"

// QuizAssignment - допуск студента к викторине
type QuizAssignment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	QuizID    uint      `gorm:"not null;uniqueIndex:idx_assignment_quiz_student" json:"quiz_id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_assignment_quiz_student;index" json:"student_id"`
	GrantedBy uint      `gorm:"not null" json:"granted_by"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (QuizAssignment) TableName() string {
	return "quiz_assignments"
}
