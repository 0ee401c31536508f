package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"advisor-chat/internal/app"
	"advisor-chat/internal/domain"
	"github.com/go-chi/chi/v5"
)

// QuizHandler exposes quiz content (without answers) and submissions.
type QuizHandler struct {
	service *app.QuizService
	logger  *slog.Logger
}

func NewQuizHandler(service *app.QuizService, logger *slog.Logger) *QuizHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizHandler{service: service, logger: logger}
}

// Mount registers the quiz routes on r.
func (h *QuizHandler) Mount(r chi.Router) {
	r.Route("/quizzes/{quizID}", func(r chi.Router) {
		r.Get("/", h.getQuiz)
		r.Post("/submissions", h.submit)
	})
}

type questionView struct {
	ID      string          `json:"id"`
	Prompt  string          `json:"prompt"`
	Options []domain.Option `json:"options"`
}

type quizView struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Questions []questionView `json:"questions"`
}

type submissionRequest struct {
	EnrollmentID string `json:"enrollmentId"`
	Answers      []int  `json:"answers"`
}

func (h *QuizHandler) getQuiz(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.service.Start(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	quiz := attempt.Quiz()
	view := quizView{ID: quiz.ID, Title: quiz.Title, Questions: make([]questionView, 0, len(quiz.Questions))}
	for _, q := range quiz.Questions {
		view.Questions = append(view.Questions, questionView{ID: q.ID, Prompt: q.Prompt, Options: q.Options})
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *QuizHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid submission body"})
		return
	}

	attempt, err := h.service.Start(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	for question, option := range req.Answers {
		if err := attempt.Select(question, option); err != nil {
			h.writeError(w, err)
			return
		}
	}

	result, err := h.service.Submit(r.Context(), req.EnrollmentID, attempt)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *QuizHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrQuizNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrIncompleteAttempt),
		errors.Is(err, domain.ErrQuestionOutOfRange),
		errors.Is(err, domain.ErrOptionOutOfRange):
		status = http.StatusUnprocessableEntity
	default:
		h.logger.Error("quiz request failed", "error", err)
	}
	writeJSON(w, status, errorPayload{Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
