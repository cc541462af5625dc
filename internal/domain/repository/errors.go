package repository

import "errors"

// Ошибки уровня хранилища, которые сервисы переводят в доменные
var (
	// ErrDuplicateAttempt возвращается при нарушении уникального индекса (quiz_id, student_id)
	ErrDuplicateAttempt = errors.New("attempt already exists for quiz and student")

	// ErrQuizHasAttempts возвращается при удалении викторины, на которую ссылаются попытки
	ErrQuizHasAttempts = errors.New("quiz is referenced by attempts")

	// ErrCacheMiss возвращается кешем, если ключ отсутствует или истек
	ErrCacheMiss = errors.New("cache miss")
)
