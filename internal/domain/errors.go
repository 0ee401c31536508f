package domain

import "errors"

var (
	// ErrMalformedPayload is returned when an advisor payload yields no answer, tips or disclaimers.
	ErrMalformedPayload = errors.New("could not process AI response")
	// ErrEmptyQuestion is returned when a blank question is submitted.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrSendInFlight is returned while another question is still being answered.
	ErrSendInFlight = errors.New("a question is already being answered")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuiz is returned when imported quiz content cannot be scored.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrQuestionOutOfRange indicates an answer was recorded for an unknown question index.
	ErrQuestionOutOfRange = errors.New("question index out of range")
	// ErrOptionOutOfRange indicates the selected option index does not exist.
	ErrOptionOutOfRange = errors.New("option index out of range")
	// ErrIncompleteAttempt is returned when submitting before every question is answered.
	ErrIncompleteAttempt = errors.New("every question must be answered before submitting")
	// ErrAttemptSubmitted is returned when an attempt is modified or submitted twice.
	ErrAttemptSubmitted = errors.New("quiz attempt already submitted")
)
