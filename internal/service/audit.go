package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// Действия, попадающие в журнал аудита
const (
	AuditAttemptStarted     = "attempt.started"
	AuditAttemptSubmitted   = "attempt.submitted"
	AuditAttemptInvalidated = "attempt.invalidated"
	AuditQuizCreated        = "quiz.created"
	AuditQuizUpdated        = "quiz.updated"
	AuditQuizDeleted        = "quiz.deleted"
)

// AuditEvent - запись журнала аудита
type AuditEvent struct {
	ID         string                 `json:"id"`
	Action     string                 `json:"action"`
	ActorID    uint                   `json:"actor_id"`
	EntityType string                 `json:"entity_type"`
	EntityID   uint                   `json:"entity_id"`
	Details    map[string]interface{} `json:"details,omitempty"`
	At         time.Time              `json:"at"`
}

// Auditor принимает события аудита. Запись не должна блокировать и не возвращает ошибку.
type Auditor interface {
	Record(ctx context.Context, event AuditEvent)
}

// LogAuditor пишет события в стандартный лог в отдельной горутине
type LogAuditor struct{}

// NewLogAuditor создает аудитор, пишущий в лог
func NewLogAuditor() *LogAuditor {
	return &LogAuditor{}
}

// Record присваивает событию идентификатор и асинхронно пишет его в лог
func (a *LogAuditor) Record(_ context.Context, event AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}

	go func(ev AuditEvent) {
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Printf("[Audit] WARNING: не удалось сериализовать событие %s: %v", ev.Action, err)
			return
		}
		log.Printf("[Audit] %s", payload)
	}(event)
}

// NoopAuditor игнорирует события
type NoopAuditor struct{}

// Record ничего не делает
func (NoopAuditor) Record(context.Context, AuditEvent) {}
