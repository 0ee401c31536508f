package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"advisor-chat/internal/domain"
	"advisor-chat/internal/metrics"
)

// PassThreshold is the minimum score that completes a quiz.
const PassThreshold = 80

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ProgressReporter forwards quiz outcomes to the enrollment-tracking service.
type ProgressReporter interface {
	ReportProgress(ctx context.Context, report domain.ProgressReport) error
}

// QuizWriter persists quiz content to the backing store.
type QuizWriter interface {
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
}

// QuizCache is implemented by QuizRepositories that keep loaded quizzes.
type QuizCache interface {
	Invalidate(ctx context.Context, quizID string) error
}

// QuizService contains the quiz use cases.
type QuizService struct {
	quizzes  QuizRepository
	reporter ProgressReporter
	writer   QuizWriter
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewQuizService wires a service; reporter may be nil when progress is not tracked.
func NewQuizService(quizzes QuizRepository, reporter ProgressReporter, logger *slog.Logger, m *metrics.Metrics) *QuizService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizService{quizzes: quizzes, reporter: reporter, logger: logger, metrics: m}
}

// WithWriter enables Import against w.
func (s *QuizService) WithWriter(w QuizWriter) *QuizService {
	s.writer = w
	return s
}

// Import validates and stores quiz, then drops any cached copy so the next
// attempt sees the new content.
func (s *QuizService) Import(ctx context.Context, quiz domain.Quiz) error {
	if s.writer == nil {
		return fmt.Errorf("import quiz %s: no writable quiz store configured", quiz.ID)
	}
	if err := ValidateQuiz(quiz); err != nil {
		return err
	}
	if err := s.writer.SaveQuiz(ctx, quiz); err != nil {
		return fmt.Errorf("import quiz %s: %w", quiz.ID, err)
	}
	if cache, ok := s.quizzes.(QuizCache); ok {
		if err := cache.Invalidate(ctx, quiz.ID); err != nil {
			return fmt.Errorf("invalidate cached quiz %s: %w", quiz.ID, err)
		}
	}
	s.logger.Info("quiz imported", "quiz_id", quiz.ID, "questions", len(quiz.Questions))
	return nil
}

// ValidateQuiz checks that quiz can be attempted and scored.
func ValidateQuiz(quiz domain.Quiz) error {
	if quiz.ID == "" {
		return fmt.Errorf("%w: missing id", domain.ErrInvalidQuiz)
	}
	if len(quiz.Questions) == 0 {
		return fmt.Errorf("%w: %s has no questions", domain.ErrInvalidQuiz, quiz.ID)
	}
	for i, q := range quiz.Questions {
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: question %d needs at least two options", domain.ErrInvalidQuiz, i+1)
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return fmt.Errorf("%w: question %d has no correct option %d", domain.ErrInvalidQuiz, i+1, q.CorrectIndex)
		}
	}
	return nil
}

// Start loads a quiz and opens a fresh attempt for it.
func (s *QuizService) Start(ctx context.Context, quizID string) (*QuizAttempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return NewQuizAttempt(quiz), nil
}

// Submit scores a complete attempt and reports it for enrollmentID. A failed
// report is logged; the returned result is authoritative regardless.
func (s *QuizService) Submit(ctx context.Context, enrollmentID string, attempt *QuizAttempt) (domain.QuizResult, error) {
	result, err := attempt.submit()
	if err != nil {
		return domain.QuizResult{}, err
	}
	s.metrics.QuizSubmitted(result.Passed)

	if s.reporter == nil || enrollmentID == "" {
		return result, nil
	}

	status := domain.ProgressInProgress
	if result.Passed {
		status = domain.ProgressCompleted
	}
	report := domain.ProgressReport{
		EnrollmentID:     enrollmentID,
		QuizID:           attempt.quiz.ID,
		Status:           status,
		ProgressPercent:  100,
		Score:            result.Score,
		AttemptIncrement: 1,
	}
	if err := s.reporter.ReportProgress(ctx, report); err != nil {
		s.metrics.ProgressReportFailed()
		s.logger.Warn("failed to report quiz progress",
			"enrollment_id", enrollmentID,
			"quiz_id", attempt.quiz.ID,
			"score", result.Score,
			"error", err,
		)
	}
	return result, nil
}

// Score grades answers (question index -> option index) against questions.
// score = round(correct / total * 100); passed when score >= PassThreshold.
func Score(questions []domain.Question, answers map[int]int) domain.QuizResult {
	if len(questions) == 0 {
		return domain.QuizResult{}
	}
	correct := 0
	for i, q := range questions {
		if selected, ok := answers[i]; ok && selected == q.CorrectIndex {
			correct++
		}
	}
	score := int(math.Round(float64(correct) / float64(len(questions)) * 100))
	return domain.QuizResult{Score: score, Passed: score >= PassThreshold}
}

// QuizAttempt collects answers for one run through a quiz.
type QuizAttempt struct {
	quiz domain.Quiz

	mu        sync.Mutex
	answers   map[int]int
	submitted bool
	result    domain.QuizResult
}

func NewQuizAttempt(quiz domain.Quiz) *QuizAttempt {
	return &QuizAttempt{quiz: quiz, answers: make(map[int]int)}
}

// Quiz returns the quiz being attempted.
func (a *QuizAttempt) Quiz() domain.Quiz {
	return a.quiz
}

// Select records option as the answer to question, replacing any earlier choice.
func (a *QuizAttempt) Select(question, option int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.submitted {
		return domain.ErrAttemptSubmitted
	}
	if question < 0 || question >= len(a.quiz.Questions) {
		return domain.ErrQuestionOutOfRange
	}
	if option < 0 || option >= len(a.quiz.Questions[question].Options) {
		return domain.ErrOptionOutOfRange
	}
	a.answers[question] = option
	return nil
}

// Answers returns a copy of the recorded answers.
func (a *QuizAttempt) Answers() map[int]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[int]int, len(a.answers))
	for q, o := range a.answers {
		out[q] = o
	}
	return out
}

// Complete reports whether every question has an answer.
func (a *QuizAttempt) Complete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completeLocked()
}

// Result returns the score once the attempt has been submitted.
func (a *QuizAttempt) Result() (domain.QuizResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result, a.submitted
}

// Reset discards answers and any result so the quiz can be retaken.
func (a *QuizAttempt) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.answers = make(map[int]int)
	a.submitted = false
	a.result = domain.QuizResult{}
}

func (a *QuizAttempt) completeLocked() bool {
	for i := range a.quiz.Questions {
		if _, ok := a.answers[i]; !ok {
			return false
		}
	}
	return true
}

func (a *QuizAttempt) submit() (domain.QuizResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.submitted {
		return domain.QuizResult{}, domain.ErrAttemptSubmitted
	}
	if !a.completeLocked() {
		return domain.QuizResult{}, domain.ErrIncompleteAttempt
	}
	a.result = Score(a.quiz.Questions, a.answers)
	a.submitted = true
	return a.result, nil
}
