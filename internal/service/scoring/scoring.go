// Package scoring реализует чистый движок оценки попытки.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/yourusername/quiz-api/internal/domain/entity"
)

// ErrMalformedAttempt - ответы ссылаются на вопросы, которых нет в ключе
var ErrMalformedAttempt = errors.New("malformed attempt")

// Outcome - результат оценки попытки
type Outcome struct {
	// Answers - по одной записи на каждый вопрос в порядке вопросов
	Answers    []entity.AttemptAnswer
	TotalScore int
	Percentage float64
	IsPassed   bool
	Correct    int
	Answered   int
}

// Score оценивает записанные ответы по текущему ключу.
// Неотвеченный вопрос дает 0 баллов, сравнение меток без учета регистра, частичного зачета нет.
// Процент округляется до двух знаков; при totalMarks == 0 процент равен 0.
func Score(questions []entity.Question, answers []entity.AttemptAnswer, totalMarks, passingMarks int) (*Outcome, error) {
	byQuestion := make(map[uint]entity.AttemptAnswer, len(answers))
	known := make(map[uint]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}
	for _, a := range answers {
		if _, ok := known[a.QuestionID]; !ok {
			return nil, fmt.Errorf("%w: answer #%d references unknown question #%d", ErrMalformedAttempt, a.ID, a.QuestionID)
		}
		byQuestion[a.QuestionID] = a
	}

	outcome := &Outcome{Answers: make([]entity.AttemptAnswer, 0, len(questions))}
	for _, q := range questions {
		record, ok := byQuestion[q.ID]
		if !ok {
			record = entity.AttemptAnswer{QuestionID: q.ID}
		}
		record.SelectedOption = entity.NormalizeOption(record.SelectedOption)
		record.IsCorrect = q.IsCorrect(record.SelectedOption)
		record.MarksAwarded = q.MarksFor(record.IsCorrect)

		if record.IsAnswered() {
			outcome.Answered++
		}
		if record.IsCorrect {
			outcome.Correct++
		}
		outcome.TotalScore += record.MarksAwarded
		outcome.Answers = append(outcome.Answers, record)
	}

	outcome.Percentage = Percentage(outcome.TotalScore, totalMarks)
	outcome.IsPassed = outcome.TotalScore >= passingMarks
	return outcome, nil
}

// Percentage возвращает score/total*100 с округлением до двух знаков
func Percentage(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Round2(float64(score) / float64(total) * 100)
}

// Round2 округляет до двух знаков после запятой
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
