package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Статусы попытки
const (
	AttemptStatusInProgress    = "in_progress"
	AttemptStatusSubmitted     = "submitted"
	AttemptStatusAutoSubmitted = "auto_submitted"
	AttemptStatusInvalidated   = "invalidated"
)

// Виды предупреждений прокторинга, означающие потерю фокуса
const (
	WarningTabSwitch        = "tab_switch"
	WarningWindowBlur       = "window_blur"
	WarningVisibilityHidden = "visibility_hidden"
	WarningInvalidated      = "invalidated"
)

// AttemptWarning - запись журнала предупреждений попытки
type AttemptWarning struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// IsFocusLoss возвращает true для видов, увеличивающих счетчик переключений вкладок
func IsFocusLoss(kind string) bool {
	switch kind {
	case WarningTabSwitch, WarningWindowBlur, WarningVisibilityHidden:
		return true
	}
	return false
}

// Attempt представляет единственную попытку студента по викторине.
// Уникальность пары (quiz_id, student_id) обеспечивается индексом в БД.
type Attempt struct {
	ID             uint                                `gorm:"primaryKey" json:"id"`
	QuizID         uint                                `gorm:"not null;uniqueIndex:idx_attempt_quiz_student" json:"quiz_id"`
	StudentID      uint                                `gorm:"not null;uniqueIndex:idx_attempt_quiz_student;index" json:"student_id"`
	Status         string                              `gorm:"size:20;not null;default:'in_progress';index" json:"status"`
	StartedAt      time.Time                           `gorm:"not null" json:"started_at"`
	SubmittedAt    *time.Time                          `json:"submitted_at,omitempty"`
	TimeTakenSec   int64                               `gorm:"not null;default:0" json:"time_taken_seconds"`
	TotalScore     int                                 `gorm:"not null;default:0" json:"total_score"`
	Percentage     float64                             `gorm:"not null;default:0" json:"percentage"`
	IsPassed       bool                                `gorm:"not null;default:false" json:"is_passed"`
	TabSwitchCount int                                 `gorm:"not null;default:0" json:"tab_switch_count"`
	Warnings       datatypes.JSONSlice[AttemptWarning] `gorm:"type:jsonb;not null;default:'[]'" json:"warnings"`
	IPAddress      string                              `gorm:"size:64;not null;default:''" json:"ip_address"`
	UserAgent      string                              `gorm:"size:512;not null;default:''" json:"user_agent"`
	Answers        []AttemptAnswer                     `gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE" json:"answers,omitempty"`
	CreatedAt      time.Time                           `json:"created_at"`
	UpdatedAt      time.Time                           `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Attempt) TableName() string {
	return "attempts"
}

// IsTerminal возвращает true, если попытка больше не принимает ответы
func (a *Attempt) IsTerminal() bool {
	return a.Status != AttemptStatusInProgress
}

// IsScoreable возвращает true для завершенных попыток, которые учитываются в результатах
func (a *Attempt) IsScoreable() bool {
	return IsScoreableStatus(a.Status)
}

// IsScoreableStatus проверяет статус без загрузки попытки
func IsScoreableStatus(status string) bool {
	return status == AttemptStatusSubmitted || status == AttemptStatusAutoSubmitted
}

// EffectiveStatus возвращает статус с учетом ленивого таймаута:
// незавершенная попытка с истекшим сроком видна как auto_submitted.
// Хранимое значение при этом не меняется.
func (a *Attempt) EffectiveStatus(deadline, now time.Time) string {
	if a.Status == AttemptStatusInProgress && now.After(deadline) {
		return AttemptStatusAutoSubmitted
	}
	return a.Status
}

// ExpiredBy возвращает true, если попытка закрыта истечением срока:
// она еще не завершена к моменту после дедлайна либо уже автосдана после дедлайна.
// Попытка, сданная или аннулированная до дедлайна, просроченной не считается.
func (a *Attempt) ExpiredBy(deadline, now time.Time) bool {
	if !now.After(deadline) {
		return false
	}
	switch a.Status {
	case AttemptStatusInProgress:
		return true
	case AttemptStatusAutoSubmitted:
		return a.SubmittedAt != nil && a.SubmittedAt.After(deadline)
	}
	return false
}

// AppendWarning добавляет предупреждение и при потере фокуса увеличивает счетчик
func (a *Attempt) AppendWarning(kind, message string, now time.Time) {
	a.Warnings = append(a.Warnings, AttemptWarning{Kind: kind, Message: message, Timestamp: now})
	if IsFocusLoss(kind) {
		a.TabSwitchCount++
	}
}

// AttemptAnswer - ответ на один вопрос в рамках попытки
type AttemptAnswer struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	AttemptID      uint       `gorm:"not null;uniqueIndex:idx_attempt_answer_question" json:"attempt_id"`
	QuestionID     uint       `gorm:"not null;uniqueIndex:idx_attempt_answer_question" json:"question_id"`
	SelectedOption string     `gorm:"size:1;not null;default:''" json:"selected_option"` // "" - нет ответа
	IsCorrect      bool       `gorm:"not null;default:false" json:"is_correct"`
	MarksAwarded   int        `gorm:"not null;default:0" json:"marks_awarded"`
	AnsweredAt     *time.Time `json:"answered_at,omitempty"`
}

// TableName определяет имя таблицы для GORM
func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}

// IsAnswered возвращает true, если студент выбрал вариант
func (a *AttemptAnswer) IsAnswered() bool {
	return a.SelectedOption != ""
}
