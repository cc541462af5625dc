package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResultSummary - данные для письма о результате
type ResultSummary struct {
	AttemptID   uint
	QuizTitle   string
	StudentName string
	Score       int
	TotalMarks  int
	Percentage  float64
	IsPassed    bool
	Status      string
}

// ResultNotifier сообщает студенту о результате попытки
type ResultNotifier interface {
	NotifyResult(ctx context.Context, toEmail string, summary ResultSummary) error
}

// NoopResultNotifier используется, когда уведомления отключены
type NoopResultNotifier struct{}

// NotifyResult только пишет в лог
func (n *NoopResultNotifier) NotifyResult(_ context.Context, toEmail string, summary ResultSummary) error {
	log.Printf("[ResultNotifier] noop result of attempt #%d to=%s", summary.AttemptID, toEmail)
	return nil
}

// ResendResultNotifier отправляет письма через Resend REST API
type ResendResultNotifier struct {
	from       string
	maxRetries int
	client     *resend.Client
}

// NewResendResultNotifier создает отправителя писем о результатах
func NewResendResultNotifier(apiKey, from string, maxRetries int) (*ResendResultNotifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ResendResultNotifier{
		from:       from,
		maxRetries: maxRetries,
		client:     resend.NewClient(apiKey),
	}, nil
}

// NotifyResult отправляет письмо с ключом идемпотентности по попытке
func (n *ResendResultNotifier) NotifyResult(ctx context.Context, toEmail string, summary ResultSummary) error {
	if toEmail == "" {
		return fmt.Errorf("toEmail is required")
	}

	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{toEmail},
		Subject: fmt.Sprintf("Your result: %s", summary.QuizTitle),
		Text:    resultText(summary),
		Html:    resultHTML(summary),
	}
	options := &resend.SendEmailOptions{
		IdempotencyKey: fmt.Sprintf("attempt-result-%d", summary.AttemptID),
	}

	var lastErr error
	for attempt := 0; attempt < n.maxRetries; attempt++ {
		_, err := n.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func outcomeWord(passed bool) string {
	if passed {
		return "passed"
	}
	return "did not pass"
}

func resultText(s ResultSummary) string {
	return fmt.Sprintf("Hello %s, you scored %d of %d (%.2f%%) in %q and %s.",
		s.StudentName, s.Score, s.TotalMarks, s.Percentage, s.QuizTitle, outcomeWord(s.IsPassed))
}

func resultHTML(s ResultSummary) string {
	return fmt.Sprintf("<p>Hello %s,</p><p>You scored <strong>%d of %d</strong> (%.2f%%) in <em>%s</em> and %s.</p>",
		s.StudentName, s.Score, s.TotalMarks, s.Percentage, s.QuizTitle, outcomeWord(s.IsPassed))
}

// resendRetryDelay решает, стоит ли повторять отправку, и сколько ждать
func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
