package service

import "errors"

// Доменные ошибки жизненного цикла попытки
var (
	// ErrNotAssigned - студент не допущен к викторине
	ErrNotAssigned = errors.New("student is not assigned to the quiz")
	// ErrOutsideWindow - текущее время вне окна [start, end] викторины
	ErrOutsideWindow = errors.New("quiz is outside its availability window")
	// ErrAlreadyAttempted - у студента уже есть попытка по этой викторине
	ErrAlreadyAttempted = errors.New("quiz already attempted")
	// ErrAttemptExpired - срок попытки истек, попытка финализирована автоматически
	ErrAttemptExpired = errors.New("attempt time has expired")
	// ErrNotInProgress - попытка уже не принимает ответы
	ErrNotInProgress = errors.New("attempt is not in progress")
	// ErrAlreadyTerminal - попытка аннулирована и не может быть сдана
	ErrAlreadyTerminal = errors.New("attempt is already in a terminal state")
	// ErrQuestionNotInQuiz - вопрос не принадлежит викторине попытки
	ErrQuestionNotInQuiz = errors.New("question does not belong to the attempt's quiz")
	// ErrQuestionsFrozen - ключ ответов нельзя менять после появления попыток
	ErrQuestionsFrozen = errors.New("questions are frozen: quiz already has attempts")
)
