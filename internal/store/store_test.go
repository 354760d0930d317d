package store

import (
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/pavelanni/lingo/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestQuestion(t *testing.T, s *Store, id, quizID int64, category string) {
	t.Helper()
	err := s.InsertQuestion(model.Question{
		ID:            id,
		QuizID:        quizID,
		Category:      category,
		Text:          "question about " + category,
		Options:       []string{"a", "b", "c"},
		CorrectAnswer: 1,
	})
	if err != nil {
		t.Fatalf("insertTestQuestion: %v", err)
	}
}

func TestQuestionCRUD(t *testing.T) {
	s := newTestStore(t)

	// Empty DB should return zero count and empty list.
	count, err := s.QuestionCount()
	if err != nil {
		t.Fatalf("QuestionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 questions, got %d", count)
	}

	list, err := s.ListQuestions()
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	insertTestQuestion(t, s, 10, 0, "tenses")
	q, err := s.GetQuestion(10)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.Category != "tenses" || q.CorrectAnswer != 1 {
		t.Errorf("unexpected question %+v", q)
	}
	if !reflect.DeepEqual(q.Options, []string{"a", "b", "c"}) {
		t.Errorf("options = %v, want [a b c]", q.Options)
	}

	// Not found.
	_, err = s.GetQuestion(9999)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows, got %v", err)
	}

	// Re-inserting the same ID replaces it.
	insertTestQuestion(t, s, 10, 0, "articles")
	q, _ = s.GetQuestion(10)
	if q.Category != "articles" {
		t.Errorf("expected replaced category 'articles', got %q", q.Category)
	}

	insertTestQuestion(t, s, 11, 2, "vocabulary")
	count, _ = s.QuestionCount()
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
}

func TestListQuestionsByQuiz(t *testing.T) {
	s := newTestStore(t)
	insertTestQuestion(t, s, 1, 0, "tenses")
	insertTestQuestion(t, s, 2, 0, "articles")
	insertTestQuestion(t, s, 3, 5, "tenses")

	tests := []struct {
		name      string
		quizID    int64
		wantCount int
	}{
		{"placement pool", 0, 2},
		{"quiz 5", 5, 1},
		{"no such quiz", 9, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs, err := s.ListQuestionsByQuiz(tt.quizID)
			if err != nil {
				t.Fatalf("ListQuestionsByQuiz: %v", err)
			}
			if len(qs) != tt.wantCount {
				t.Errorf("expected %d questions, got %d", tt.wantCount, len(qs))
			}
		})
	}
}

func TestLessons(t *testing.T) {
	s := newTestStore(t)
	for _, l := range []model.Lesson{
		{ID: 1, Title: "Present Simple", Category: "tenses", Difficulty: 1, DurationMinutes: 10},
		{ID: 2, Title: "Articles", Category: "articles", Difficulty: 1, DurationMinutes: 8},
		{ID: 6, Title: "Conditionals", Category: "tenses", Difficulty: 3, DurationMinutes: 20},
	} {
		if err := s.InsertLesson(l); err != nil {
			t.Fatalf("InsertLesson: %v", err)
		}
	}

	all, err := s.ListLessons()
	if err != nil {
		t.Fatalf("ListLessons: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 lessons, got %d", len(all))
	}

	got, err := s.LessonsByIDs([]int64{6, 7, 1})
	if err != nil {
		t.Fatalf("LessonsByIDs: %v", err)
	}
	if len(got) != 2 || got[0].ID != 6 || got[1].ID != 1 {
		t.Errorf("LessonsByIDs = %+v, want lessons 6 and 1 in that order", got)
	}

	none, err := s.LessonsByIDs(nil)
	if err != nil || len(none) != 0 {
		t.Errorf("LessonsByIDs(nil) = %v, %v", none, err)
	}
}

func TestPlacementResults(t *testing.T) {
	s := newTestStore(t)

	report := model.ResultReport{
		Level:              model.LevelIntermediate,
		Accuracy:           60,
		CorrectAnswers:     3,
		TotalQuestions:     5,
		RecommendedLessons: []int64{3, 4, 6},
		CategoryPerformance: []model.CategoryStat{
			{Category: "articles", Accuracy: 50, QuestionsAnswered: 2},
			{Category: "tenses", Accuracy: 67, QuestionsAnswered: 3},
		},
		WeakAreas: []model.CategoryStat{{Category: "articles", Accuracy: 50, QuestionsAnswered: 2}},
	}
	id, err := s.SavePlacementResult(7, report)
	if err != nil {
		t.Fatalf("SavePlacementResult: %v", err)
	}

	got, err := s.GetPlacementResult(id)
	if err != nil {
		t.Fatalf("GetPlacementResult: %v", err)
	}
	if got.UserID != 7 {
		t.Errorf("UserID = %d, want 7", got.UserID)
	}
	if !reflect.DeepEqual(got.Report, report) {
		t.Errorf("report round trip:\n got %+v\nwant %+v", got.Report, report)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	_, err = s.GetPlacementResult(id + 100)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows, got %v", err)
	}

	if _, err := s.SavePlacementResult(8, model.ResultReport{Level: model.LevelAdvanced}); err != nil {
		t.Fatalf("SavePlacementResult: %v", err)
	}

	exp, err := s.ExportResults(0)
	if err != nil {
		t.Fatalf("ExportResults: %v", err)
	}
	if exp.Count != 2 || exp.Levels[model.LevelIntermediate] != 1 || exp.Levels[model.LevelAdvanced] != 1 {
		t.Errorf("unexpected export %+v", exp)
	}

	exp, err = s.ExportResults(8)
	if err != nil {
		t.Fatalf("ExportResults(8): %v", err)
	}
	if exp.Count != 1 || exp.Results[0].UserID != 8 {
		t.Errorf("unexpected filtered export %+v", exp)
	}

	exp, _ = s.ExportResults(99)
	if exp.Count != 0 || exp.Results == nil {
		t.Errorf("expected empty non-nil results, got %+v", exp)
	}
}

func TestPracticeSessions(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	// Inserted out of order; listing is chronological.
	for i, day := range []int{3, 1, 2} {
		_, err := s.AddPracticeSession(model.PracticeSession{
			UserID:            1,
			Category:          "grammar",
			Accuracy:          50 + i,
			QuestionsAnswered: 10,
			PracticedAt:       base.AddDate(0, 0, day),
		})
		if err != nil {
			t.Fatalf("AddPracticeSession: %v", err)
		}
	}
	if _, err := s.AddPracticeSession(model.PracticeSession{UserID: 2, Category: "vocabulary", Accuracy: 90, QuestionsAnswered: 5}); err != nil {
		t.Fatalf("AddPracticeSession: %v", err)
	}

	sessions, err := s.ListPracticeSessions(1)
	if err != nil {
		t.Fatalf("ListPracticeSessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	wantAcc := []int{51, 52, 50}
	for i, sess := range sessions {
		if sess.Accuracy != wantAcc[i] {
			t.Errorf("session %d accuracy = %d, want %d", i, sess.Accuracy, wantAcc[i])
		}
	}

	other, _ := s.ListPracticeSessions(2)
	if len(other) != 1 || other[0].PracticedAt.IsZero() {
		t.Errorf("user 2 sessions = %+v, want one with a timestamp", other)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	// Missing file returns empty string.
	hash, err := s.GetImportedFileHash("/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash("/some/path.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, err = s.GetImportedFileHash("/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "abc123" {
		t.Errorf("expected 'abc123', got %q", hash)
	}

	// Update existing.
	if err := s.SetImportedFileHash("/some/path.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/path.json")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}

func TestListCategories(t *testing.T) {
	s := newTestStore(t)

	cats, err := s.ListCategories()
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 0 {
		t.Errorf("expected 0 categories, got %d", len(cats))
	}

	insertTestQuestion(t, s, 1, 0, "tenses")
	insertTestQuestion(t, s, 2, 0, "tenses")
	insertTestQuestion(t, s, 3, 0, "articles")
	insertTestQuestion(t, s, 4, 1, "vocabulary")
	cats, _ = s.ListCategories()
	if !reflect.DeepEqual(cats, []string{"articles", "tenses", "vocabulary"}) {
		t.Errorf("expected [articles tenses vocabulary], got %v", cats)
	}
}

func TestSaveQuizAttemptIsAtomic(t *testing.T) {
	s := newTestStore(t)
	insertTestQuestion(t, s, 1, 2, "tenses")

	err := s.SaveQuizAttempt(
		[]model.PracticeSession{
			{UserID: 1, Category: "tenses", Accuracy: 50, QuestionsAnswered: 2},
			{UserID: 1, Category: "articles", Accuracy: 150, QuestionsAnswered: 2},
		},
		[]model.Mistake{{UserID: 1, QuestionID: 1, Category: "tenses"}},
	)
	if err == nil {
		t.Fatal("expected error for out-of-range accuracy")
	}

	sessions, err := s.ListPracticeSessions(1)
	if err != nil {
		t.Fatalf("ListPracticeSessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions = %+v, want none after failed attempt", sessions)
	}
	mistakes, err := s.ListMistakes(1)
	if err != nil {
		t.Fatalf("ListMistakes: %v", err)
	}
	if len(mistakes) != 0 {
		t.Errorf("mistakes = %+v, want none after failed attempt", mistakes)
	}

	err = s.SaveQuizAttempt(
		[]model.PracticeSession{{UserID: 1, Category: "tenses", Accuracy: 50, QuestionsAnswered: 2}},
		[]model.Mistake{{UserID: 1, QuestionID: 1, Category: "tenses", SelectedAnswer: 0, CorrectAnswer: 1}},
	)
	if err != nil {
		t.Fatalf("SaveQuizAttempt: %v", err)
	}
	sessions, _ = s.ListPracticeSessions(1)
	if len(sessions) != 1 || sessions[0].PracticedAt.IsZero() {
		t.Errorf("sessions = %+v, want one with a timestamp", sessions)
	}
}

func TestMistakes(t *testing.T) {
	s := newTestStore(t)
	insertTestQuestion(t, s, 1, 0, "tenses")

	report := model.ResultReport{Level: model.LevelBeginner, TotalQuestions: 2}
	_, err := s.SavePlacementResult(3, report,
		model.Mistake{UserID: 3, QuestionID: 1, Category: "tenses", SelectedAnswer: 0, CorrectAnswer: 1},
		model.Mistake{UserID: 3, QuestionID: 42, Category: "articles", SelectedAnswer: 2, CorrectAnswer: 0},
	)
	if err != nil {
		t.Fatalf("SavePlacementResult: %v", err)
	}

	got, err := s.ListMistakes(3)
	if err != nil {
		t.Fatalf("ListMistakes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d mistakes, want 2", len(got))
	}
	// Same timestamp, so the later insert comes first.
	if got[0].QuestionID != 42 || got[0].Question != "" {
		t.Errorf("first = %+v, want question 42 without catalog text", got[0])
	}
	if got[1].QuestionID != 1 || got[1].Question != "question about tenses" || got[1].CorrectAnswer != 1 {
		t.Errorf("second = %+v, want question 1 with catalog text", got[1])
	}
	if got[1].CreatedAt.IsZero() {
		t.Error("missing created_at")
	}

	if other, _ := s.ListMistakes(4); len(other) != 0 {
		t.Errorf("user 4 mistakes = %+v, want none", other)
	}
}

func TestLessonLookups(t *testing.T) {
	s := newTestStore(t)
	err := s.InsertLessons([]model.Lesson{
		{ID: 1, Title: "Hard Tenses", Category: "tenses", Difficulty: 3},
		{ID: 2, Title: "Articles", Category: "articles", Difficulty: 2},
		{ID: 3, Title: "Easy Tenses", Category: "tenses", Difficulty: 1},
		{ID: 4, Title: "More Articles", Category: "articles", Difficulty: 1},
	})
	if err != nil {
		t.Fatalf("InsertLessons: %v", err)
	}

	l, err := s.GetLesson(3)
	if err != nil || l.Title != "Easy Tenses" {
		t.Errorf("GetLesson(3) = %+v, %v", l, err)
	}
	if _, err := s.GetLesson(99); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetLesson(99) error = %v, want sql.ErrNoRows", err)
	}

	byCat, err := s.ListLessonsByCategory("tenses")
	if err != nil {
		t.Fatalf("ListLessonsByCategory: %v", err)
	}
	if len(byCat) != 2 || byCat[0].ID != 1 || byCat[1].ID != 3 {
		t.Errorf("tenses = %+v", byCat)
	}

	rec, err := s.RecommendedLessons(2, 3)
	if err != nil {
		t.Fatalf("RecommendedLessons: %v", err)
	}
	var ids []int64
	for _, l := range rec {
		ids = append(ids, l.ID)
	}
	if !reflect.DeepEqual(ids, []int64{3, 4, 2}) {
		t.Errorf("recommended = %v, want [3 4 2]", ids)
	}
}

func TestQuizzes(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.DailyQuiz(); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("DailyQuiz on empty store error = %v, want sql.ErrNoRows", err)
	}

	err := s.InsertQuizzes([]model.Quiz{
		{ID: 1, Title: "Tenses I", Category: "tenses", Difficulty: 1},
		{ID: 2, Title: "Daily", Category: "mixed", IsDaily: true, EstimatedMinutes: 5},
		{ID: 3, Title: "Tenses II", Category: "tenses", Difficulty: 2},
	})
	if err != nil {
		t.Fatalf("InsertQuizzes: %v", err)
	}
	insertTestQuestion(t, s, 10, 1, "tenses")
	insertTestQuestion(t, s, 11, 1, "tenses")

	q, err := s.GetQuiz(1)
	if err != nil {
		t.Fatalf("GetQuiz: %v", err)
	}
	if q.QuestionCount != 2 || q.IsDaily {
		t.Errorf("quiz 1 = %+v, want 2 questions, not daily", q)
	}
	if _, err := s.GetQuiz(9); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetQuiz(9) error = %v, want sql.ErrNoRows", err)
	}

	daily, err := s.DailyQuiz()
	if err != nil || daily.ID != 2 || daily.EstimatedMinutes != 5 {
		t.Errorf("DailyQuiz = %+v, %v", daily, err)
	}

	all, _ := s.ListQuizzes("")
	tenses, _ := s.ListQuizzes("tenses")
	if len(all) != 3 || len(tenses) != 2 || tenses[1].ID != 3 {
		t.Errorf("all = %d, tenses = %+v", len(all), tenses)
	}
}
