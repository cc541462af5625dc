// Package analytics содержит чистые редьюсеры для агрегатов по попыткам и результатам.
// Все функции терпимы к пустому входу и возвращают нулевые структуры.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/yourusername/quiz-api/internal/domain/entity"
)

// HistogramLabels - границы корзин гистограммы процентов (верхняя граница включительно)
var HistogramLabels = []string{"0-20", "21-40", "41-60", "61-80", "81-100"}

// Bucket - корзина гистограммы
type Bucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// TopEntry - строка топа по баллам
type TopEntry struct {
	AttemptID   uint      `json:"attempt_id"`
	StudentID   uint      `json:"student_id"`
	Score       int       `json:"score"`
	Percentage  float64   `json:"percentage"`
	IsPassed    bool      `json:"is_passed"`
	CompletedAt time.Time `json:"completed_at"`
}

// QuizStats - аналитика по одной викторине
type QuizStats struct {
	QuizID            uint           `json:"quiz_id"`
	TotalAttempts     int            `json:"total_attempts"`
	StatusCounts      map[string]int `json:"status_counts"`
	CompletedAttempts int            `json:"completed_attempts"`
	CompletionRate    float64        `json:"completion_rate"`
	PassedCount       int            `json:"passed_count"`
	FailedCount       int            `json:"failed_count"`
	PassRate          float64        `json:"pass_rate"`
	AverageScore      float64        `json:"average_score"`
	MinScore          int            `json:"min_score"`
	MaxScore          int            `json:"max_score"`
	AveragePercentage float64        `json:"average_percentage"`
	Histogram         []Bucket       `json:"histogram"`
	TopPerformers     []TopEntry     `json:"top_performers"`
}

// StudentStats - аналитика по одному студенту
type StudentStats struct {
	StudentID         uint            `json:"student_id"`
	TotalAttempts     int             `json:"total_attempts"`
	StatusCounts      map[string]int  `json:"status_counts"`
	PassedCount       int             `json:"passed_count"`
	FailedCount       int             `json:"failed_count"`
	AveragePercentage float64         `json:"average_percentage"`
	RecentResults     []entity.Result `json:"recent_results"`
}

// SystemStats - общесистемные счетчики
type SystemStats struct {
	TotalUsers          int64            `json:"total_users"`
	TotalQuizzes        int64            `json:"total_quizzes"`
	TotalAttempts       int64            `json:"total_attempts"`
	TotalResults        int64            `json:"total_results"`
	RoleDistribution    map[string]int64 `json:"role_distribution"`
	QuizzesByDepartment map[string]int64 `json:"quizzes_by_department"`
}

// newStatusCounts возвращает счетчики со всеми статусами, чтобы в JSON всегда были все ключи
func newStatusCounts() map[string]int {
	return map[string]int{
		entity.AttemptStatusInProgress:    0,
		entity.AttemptStatusSubmitted:     0,
		entity.AttemptStatusAutoSubmitted: 0,
		entity.AttemptStatusInvalidated:   0,
	}
}

// BucketIndex возвращает индекс корзины для процента: 20 -> 0, 20.01 -> 1, 80 -> 3, 100 -> 4
func BucketIndex(percentage float64) int {
	switch {
	case percentage <= 20:
		return 0
	case percentage <= 40:
		return 1
	case percentage <= 60:
		return 2
	case percentage <= 80:
		return 3
	default:
		return 4
	}
}

// Histogram раскладывает результаты по пяти корзинам
func Histogram(results []entity.Result) []Bucket {
	buckets := make([]Bucket, len(HistogramLabels))
	for i, label := range HistogramLabels {
		buckets[i].Range = label
	}
	for _, r := range results {
		buckets[BucketIndex(r.Percentage)].Count++
	}
	return buckets
}

// TopN возвращает n лучших результатов по убыванию баллов.
// При равенстве сохраняется исходный порядок (порядок вставки).
func TopN(results []entity.Result, n int) []TopEntry {
	sorted := make([]entity.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	if n < 0 {
		n = 0
	}
	if n > len(sorted) {
		n = len(sorted)
	}
	top := make([]TopEntry, 0, n)
	for _, r := range sorted[:n] {
		top = append(top, TopEntry{
			AttemptID:   r.AttemptID,
			StudentID:   r.StudentID,
			Score:       r.Score,
			Percentage:  r.Percentage,
			IsPassed:    r.IsPassed,
			CompletedAt: r.CompletedAt,
		})
	}
	return top
}

// ReduceQuiz считает аналитику викторины.
// Незавершенные попытки с истекшим сроком считаются как auto_submitted (эффективный статус).
// Статистика баллов строится только по результатам.
func ReduceQuiz(quiz *entity.Quiz, attempts []entity.Attempt, results []entity.Result, now time.Time, topN int) *QuizStats {
	stats := &QuizStats{
		QuizID:        quiz.ID,
		TotalAttempts: len(attempts),
		StatusCounts:  newStatusCounts(),
		Histogram:     Histogram(results),
		TopPerformers: TopN(results, topN),
	}

	for i := range attempts {
		status := attempts[i].EffectiveStatus(quiz.AttemptDeadline(attempts[i].StartedAt), now)
		stats.StatusCounts[status]++
		if entity.IsScoreableStatus(status) {
			stats.CompletedAttempts++
		}
	}
	stats.CompletionRate = ratio(stats.CompletedAttempts, stats.TotalAttempts)

	if len(results) == 0 {
		return stats
	}

	sumScore, sumPercentage := 0, 0.0
	stats.MinScore, stats.MaxScore = results[0].Score, results[0].Score
	for _, r := range results {
		if r.IsPassed {
			stats.PassedCount++
		} else {
			stats.FailedCount++
		}
		sumScore += r.Score
		sumPercentage += r.Percentage
		if r.Score < stats.MinScore {
			stats.MinScore = r.Score
		}
		if r.Score > stats.MaxScore {
			stats.MaxScore = r.Score
		}
	}
	stats.PassRate = ratio(stats.PassedCount, len(results))
	stats.AverageScore = round2(float64(sumScore) / float64(len(results)))
	stats.AveragePercentage = round2(sumPercentage / float64(len(results)))
	return stats
}

// ReduceStudent считает аналитику студента.
// quizzes нужны для эффективного статуса; попытка без викторины учитывается по хранимому статусу.
func ReduceStudent(studentID uint, attempts []entity.Attempt, quizzes map[uint]*entity.Quiz, results []entity.Result, now time.Time, recent int) *StudentStats {
	stats := &StudentStats{
		StudentID:     studentID,
		TotalAttempts: len(attempts),
		StatusCounts:  newStatusCounts(),
		RecentResults: []entity.Result{},
	}

	for i := range attempts {
		status := attempts[i].Status
		if quiz, ok := quizzes[attempts[i].QuizID]; ok && quiz != nil {
			status = attempts[i].EffectiveStatus(quiz.AttemptDeadline(attempts[i].StartedAt), now)
		}
		stats.StatusCounts[status]++
	}

	sumPercentage := 0.0
	for _, r := range results {
		if r.IsPassed {
			stats.PassedCount++
		} else {
			stats.FailedCount++
		}
		sumPercentage += r.Percentage
	}
	if len(results) > 0 {
		stats.AveragePercentage = round2(sumPercentage / float64(len(results)))
	}

	if recent > len(results) {
		recent = len(results)
	}
	if recent > 0 {
		stats.RecentResults = append(stats.RecentResults, results[:recent]...)
	}
	return stats
}

// ratio возвращает part/total с точностью 4 знака, 0 при пустом total
func ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 10000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
