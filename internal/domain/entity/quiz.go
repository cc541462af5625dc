package entity

import (
	"time"
)

// Quiz представляет контрольную работу (тест) с расписанием и проходным баллом
type Quiz struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	OwnerID         uint       `gorm:"not null;index" json:"owner_id"`
	Title           string     `gorm:"size:200;not null" json:"title"`
	Description     string     `gorm:"size:1000;not null;default:''" json:"description"`
	StartTime       time.Time  `gorm:"not null;index" json:"start_time"`
	EndTime         time.Time  `gorm:"not null" json:"end_time"`
	DurationMinutes int        `gorm:"not null" json:"duration_minutes"`
	TotalMarks      int        `gorm:"not null;default:0" json:"total_marks"`
	PassingMarks    int        `gorm:"not null;default:0" json:"passing_marks"`
	QuestionCount   int        `gorm:"not null;default:0" json:"question_count"`
	IsActive        bool       `gorm:"not null;default:true" json:"is_active"`
	IsPublished     bool       `gorm:"not null;default:false;index" json:"is_published"`
	Department      string     `gorm:"size:100;not null;default:'';index" json:"department"`
	Semester        string     `gorm:"size:20;not null;default:''" json:"semester"`
	Subject         string     `gorm:"size:100;not null;default:''" json:"subject"`
	Batch           string     `gorm:"size:20;not null;default:''" json:"batch"`
	Questions       []Question `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Quiz) TableName() string {
	return "quizzes"
}

// Duration возвращает отведённое на одну попытку время
func (q *Quiz) Duration() time.Duration {
	return time.Duration(q.DurationMinutes) * time.Minute
}

// IsAvailable проверяет, может ли студент вообще видеть и проходить викторину
func (q *Quiz) IsAvailable() bool {
	return q.IsActive && q.IsPublished
}

// WindowContains проверяет, что момент now лежит в окне [StartTime, EndTime] включительно
func (q *Quiz) WindowContains(now time.Time) bool {
	return !now.Before(q.StartTime) && !now.After(q.EndTime)
}

// AttemptDeadline вычисляет крайний срок попытки, начатой в startedAt.
// Действует более ранняя из двух границ: startedAt+duration и конец окна викторины.
func (q *Quiz) AttemptDeadline(startedAt time.Time) time.Time {
	deadline := startedAt.Add(q.Duration())
	if q.EndTime.Before(deadline) {
		return q.EndTime
	}
	return deadline
}
