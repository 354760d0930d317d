package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/lingo/internal/i18n"
	"github.com/pavelanni/lingo/internal/llm"
	"github.com/pavelanni/lingo/internal/model"
	"github.com/pavelanni/lingo/internal/progress"
	"github.com/pavelanni/lingo/internal/scoring"
	"github.com/pavelanni/lingo/internal/store"
)

const (
	// defaultUserID is used when a request does not name a user.
	defaultUserID int64 = 1

	// fallbackQuizSize is how many random questions a quiz without its own
	// questions is served.
	fallbackQuizSize = 8

	recommendedMaxDifficulty = 2
	defaultRecommendedLimit  = 3
	maxListLimit             = 100
)

// TipsProvider produces study tips for the weak areas of a report.
type TipsProvider interface {
	StudyTips(ctx context.Context, report model.ResultReport, lang string) ([]llm.AreaTips, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	engine *scoring.Engine
	tips   TipsProvider // nil disables tips
	config model.ServerConfig
}

// New creates a new Handler. tips may be nil.
func New(s *store.Store, e *scoring.Engine, tips TipsProvider, cfg model.ServerConfig) *Handler {
	return &Handler{store: s, engine: e, tips: tips, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(api chi.Router) {
		api.Get("/categories", h.handleCategories)
		api.Get("/lessons", h.handleLessons)
		api.Get("/lessons/recommended", h.handleRecommendedLessons)
		api.Get("/lessons/{lessonID}", h.handleGetLesson)
		api.Get("/placement/questions", h.handlePlacementQuestions)
		api.Post("/placement/score", h.handlePlacementScore)
		api.Get("/results/{resultID}", h.handleGetResult)
		api.Get("/quizzes", h.handleQuizzes)
		api.Get("/quizzes/daily", h.handleDailyQuiz)
		api.Get("/quizzes/{quizID}/questions", h.handleQuizQuestions)
		api.Post("/quizzes/{quizID}/score", h.handleQuizScore)
		api.Post("/practice", h.handleAddPractice)
		api.Get("/progress", h.handleProgress)
		api.Get("/progress/history", h.handleProgressHistory)
		api.Get("/progress/mistakes", h.handleMistakePatterns)
		api.Get("/progress/mistakes/recent", h.handleRecentMistakes)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.store.ListCategories()
	if err != nil {
		h.internalError(w, r, "list categories", err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *Handler) handleLessons(w http.ResponseWriter, r *http.Request) {
	var lessons []model.Lesson
	var err error
	if category := r.URL.Query().Get("category"); category != "" {
		lessons, err = h.store.ListLessonsByCategory(category)
	} else {
		lessons, err = h.store.ListLessons()
	}
	if err != nil {
		h.internalError(w, r, "list lessons", err)
		return
	}
	if lessons == nil {
		lessons = []model.Lesson{}
	}
	writeJSON(w, http.StatusOK, lessons)
}

func (h *Handler) handleRecommendedLessons(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r, defaultRecommendedLimit)
	if !ok {
		return
	}
	lessons, err := h.store.RecommendedLessons(recommendedMaxDifficulty, limit)
	if err != nil {
		h.internalError(w, r, "recommended lessons", err)
		return
	}
	if lessons == nil {
		lessons = []model.Lesson{}
	}
	writeJSON(w, http.StatusOK, lessons)
}

func (h *Handler) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "lessonID")
	if !ok {
		return
	}
	lesson, err := h.store.GetLesson(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}
	if err != nil {
		h.internalError(w, r, "get lesson", err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (h *Handler) handleQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.store.ListQuizzes(r.URL.Query().Get("category"))
	if err != nil {
		h.internalError(w, r, "list quizzes", err)
		return
	}
	if quizzes == nil {
		quizzes = []model.Quiz{}
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) handleDailyQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.store.DailyQuiz()
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}
	if err != nil {
		h.internalError(w, r, "daily quiz", err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) handlePlacementQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.store.ListQuestionsByQuiz(0)
	if err != nil {
		h.internalError(w, r, "list questions", err)
		return
	}
	writeJSON(w, http.StatusOK, publicQuestions(questions))
}

func (h *Handler) handleQuizQuestions(w http.ResponseWriter, r *http.Request) {
	quizID, ok := idParam(w, r, "quizID")
	if !ok {
		return
	}
	questions, fallback, ok := h.quizQuestions(w, r, quizID)
	if !ok {
		return
	}
	if fallback {
		questions = slices.Clone(questions)
		rand.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
		if len(questions) > fallbackQuizSize {
			questions = questions[:fallbackQuizSize]
		}
	}
	writeJSON(w, http.StatusOK, publicQuestions(questions))
}

// quizQuestions returns the question set a quiz is graded against. A known
// quiz without questions of its own falls back to the whole catalog. An
// unknown quiz gets a 404.
func (h *Handler) quizQuestions(w http.ResponseWriter, r *http.Request, quizID int64) ([]model.Question, bool, bool) {
	questions, err := h.store.ListQuestionsByQuiz(quizID)
	if err != nil {
		h.internalError(w, r, "list questions", err)
		return nil, false, false
	}
	if len(questions) > 0 {
		return questions, false, true
	}

	_, err = h.store.GetQuiz(quizID)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return nil, false, false
	}
	if err != nil {
		h.internalError(w, r, "get quiz", err)
		return nil, false, false
	}
	all, err := h.store.ListQuestions()
	if err != nil {
		h.internalError(w, r, "list questions", err)
		return nil, false, false
	}
	return all, true, true
}

func publicQuestions(questions []model.Question) []model.PublicQuestion {
	public := make([]model.PublicQuestion, 0, len(questions))
	for _, q := range questions {
		public = append(public, q.Public())
	}
	return public
}

type scoreRequest struct {
	UserID  int64              `json:"user_id"`
	Answers []model.Submission `json:"answers"`
}

type scoreResponse struct {
	ResultID int64 `json:"result_id,omitempty"`
	model.ResultReport
	LevelLabel string         `json:"level_label"`
	Summary    string         `json:"summary"`
	Lessons    []model.Lesson `json:"lessons"`
	Tips       []llm.AreaTips `json:"tips,omitempty"`
}

// decodeScoreRequest reads a score request and grades it against questions,
// the set the route is scoped to.
func decodeScoreRequest(w http.ResponseWriter, r *http.Request, questions []model.Question) (scoreRequest, scoring.Catalog, []model.AnswerRecord, bool) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return req, scoring.Catalog{}, nil, false
	}
	if req.UserID == 0 {
		req.UserID = defaultUserID
	}
	catalog := scoring.NewCatalog(questions)
	return req, catalog, scoring.GradeSubmissions(catalog, req.Answers), true
}

// userMistakes extracts the wrong answers of a graded session for a user.
func userMistakes(userID int64, catalog scoring.Catalog, answers []model.AnswerRecord) []model.Mistake {
	mistakes := scoring.Mistakes(catalog, answers)
	for i := range mistakes {
		mistakes[i].UserID = userID
	}
	return mistakes
}

func (h *Handler) score(w http.ResponseWriter, r *http.Request, catalog scoring.Catalog, answers []model.AnswerRecord) (model.ResultReport, bool) {
	report, err := h.engine.Score(catalog, answers)
	switch {
	case errors.Is(err, scoring.ErrUnknownQuestion):
		slog.Info("rejected answers with unknown questions", "error", err)
		writeError(w, r, http.StatusBadRequest, "ErrUnknownQuestions")
		return report, false
	case errors.Is(err, scoring.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "ErrNoAnswers")
		return report, false
	case err != nil:
		h.internalError(w, r, "score answers", err)
		return report, false
	}
	if len(report.UnknownQuestions) > 0 {
		slog.Warn("answers reference unknown questions; left out of category breakdown",
			"question_ids", report.UnknownQuestions)
	}
	return report, true
}

func (h *Handler) handlePlacementScore(w http.ResponseWriter, r *http.Request) {
	pool, err := h.store.ListQuestionsByQuiz(0)
	if err != nil {
		h.internalError(w, r, "load placement pool", err)
		return
	}
	req, catalog, answers, ok := decodeScoreRequest(w, r, pool)
	if !ok {
		return
	}
	report, ok := h.score(w, r, catalog, answers)
	if !ok {
		return
	}

	mistakes := userMistakes(req.UserID, catalog, answers)
	resultID, err := h.store.SavePlacementResult(req.UserID, report, mistakes...)
	if err != nil {
		h.internalError(w, r, "save placement result", err)
		return
	}
	slog.Info("placement scored",
		"result_id", resultID,
		"user_id", req.UserID,
		"level", report.Level,
		"accuracy", report.Accuracy,
		"weak_areas", len(report.WeakAreas),
	)

	resp, err := h.buildResponse(r, report)
	if err != nil {
		h.internalError(w, r, "load lessons", err)
		return
	}
	resp.ResultID = resultID
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleQuizScore(w http.ResponseWriter, r *http.Request) {
	quizID, ok := idParam(w, r, "quizID")
	if !ok {
		return
	}
	questions, _, ok := h.quizQuestions(w, r, quizID)
	if !ok {
		return
	}
	req, catalog, answers, ok := decodeScoreRequest(w, r, questions)
	if !ok {
		return
	}
	report, ok := h.score(w, r, catalog, answers)
	if !ok {
		return
	}

	// Each category of a finished quiz counts as a practice session.
	sessions := make([]model.PracticeSession, 0, len(report.CategoryPerformance))
	for _, c := range report.CategoryPerformance {
		sessions = append(sessions, model.PracticeSession{
			UserID:            req.UserID,
			Category:          c.Category,
			Accuracy:          c.Accuracy,
			QuestionsAnswered: c.QuestionsAnswered,
		})
	}
	mistakes := userMistakes(req.UserID, catalog, answers)
	if err := h.store.SaveQuizAttempt(sessions, mistakes); err != nil {
		h.internalError(w, r, "record quiz attempt", err)
		return
	}
	slog.Info("quiz scored",
		"quiz_id", quizID,
		"user_id", req.UserID,
		"accuracy", report.Accuracy,
		"mistakes", len(mistakes),
	)

	resp, err := h.buildResponse(r, report)
	if err != nil {
		h.internalError(w, r, "load lessons", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) buildResponse(r *http.Request, report model.ResultReport) (scoreResponse, error) {
	ctx := r.Context()
	lessons, err := h.store.LessonsByIDs(report.RecommendedLessons)
	if err != nil {
		return scoreResponse{}, err
	}
	if lessons == nil {
		lessons = []model.Lesson{}
	}
	resp := scoreResponse{
		ResultReport: report,
		LevelLabel:   appI18n.LevelLabel(ctx, report.Level),
		Summary:      appI18n.Summary(ctx, report),
		Lessons:      lessons,
	}
	if h.tips != nil && h.config.TipsEnabled {
		tips, err := h.tips.StudyTips(ctx, report, appI18n.LangFromContext(ctx))
		if err != nil {
			// Tips are optional; the report stands on its own.
			slog.Warn("study tips unavailable", "error", err)
		} else {
			resp.Tips = tips
		}
	}
	return resp, nil
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "resultID")
	if !ok {
		return
	}
	res, err := h.store.GetPlacementResult(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}
	if err != nil {
		h.internalError(w, r, "get placement result", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleAddPractice(w http.ResponseWriter, r *http.Request) {
	var p model.PracticeSession
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return
	}
	if p.Category == "" || p.QuestionsAnswered <= 0 || p.Accuracy < 0 || p.Accuracy > 100 {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return
	}
	if p.UserID == 0 {
		p.UserID = defaultUserID
	}
	id, err := h.store.AddPracticeSession(p)
	if err != nil {
		h.internalError(w, r, "add practice session", err)
		return
	}
	p.ID = id
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	sessions, err := h.store.ListPracticeSessions(userID)
	if err != nil {
		h.internalError(w, r, "list practice sessions", err)
		return
	}
	overview := progress.Overall(userID, sessions)
	overview.CurrentStreak = progress.Streak(sessions, time.Now())
	writeJSON(w, http.StatusOK, overview)
}

func (h *Handler) handleProgressHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	rng, err := progress.ParseRange(r.URL.Query().Get("range"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return
	}
	sessions, err := h.store.ListPracticeSessions(userID)
	if err != nil {
		h.internalError(w, r, "list practice sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, progress.History(sessions, userID, rng))
}

func (h *Handler) handleMistakePatterns(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	mistakes, err := h.store.ListMistakes(userID)
	if err != nil {
		h.internalError(w, r, "list mistakes", err)
		return
	}
	writeJSON(w, http.StatusOK, progress.MistakePatterns(mistakes))
}

func (h *Handler) handleRecentMistakes(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	limit, ok := limitParam(w, r, progress.DefaultRecentMistakes)
	if !ok {
		return
	}
	mistakes, err := h.store.ListMistakes(userID)
	if err != nil {
		h.internalError(w, r, "list mistakes", err)
		return
	}
	writeJSON(w, http.StatusOK, progress.RecentMistakes(mistakes, limit))
}

// idParam parses a positive integer path parameter.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return 0, false
	}
	return id, true
}

// limitParam parses the optional limit query parameter, 1 to maxListLimit.
func limitParam(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxListLimit {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return 0, false
	}
	return n, true
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		return defaultUserID, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return 0, false
	}
	return id, true
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.Error(op+" failed", "path", r.URL.Path, "error", err)
	writeError(w, r, http.StatusInternalServerError, "ErrInternal")
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, map[string]string{
		"error":   msgID,
		"message": appI18n.T(r.Context(), msgID),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
