package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/pavelanni/lingo/internal/model"
	"github.com/pavelanni/lingo/internal/store"
)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lingo.db")
	s, err := store.New(path)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer s.Close()

	questions := []model.Question{
		{ID: 1, Category: "grammar", Text: "q1", Options: []string{"a", "b"}, CorrectAnswer: 0},
		{ID: 2, Category: "grammar", Text: "q2", Options: []string{"a", "b"}, CorrectAnswer: 1},
		{ID: 3, Category: "vocabulary", Text: "q3", Options: []string{"a", "b"}, CorrectAnswer: 0},
		{ID: 4, Category: "vocabulary", Text: "q4", Options: []string{"a", "b"}, CorrectAnswer: 1},
	}
	for _, q := range questions {
		if err := s.InsertQuestion(q); err != nil {
			t.Fatalf("InsertQuestion: %v", err)
		}
	}
	return path
}

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	wd, wdErr := os.Getwd()
	if wdErr != nil {
		t.Fatalf("Getwd: %v", wdErr)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScoreCommand(t *testing.T) {
	dbPath := seedDB(t)

	// grammar 2/2, vocabulary 0/2
	answers := `[
		{"question_id": 1, "selected_answer": 0},
		{"question_id": 2, "selected_answer": 1},
		{"question_id": 3, "selected_answer": 1},
		{"question_id": 4, "selected_answer": 0}
	]`
	out, err := runCmd(t, answers, "score", "--db", dbPath, "--log-level", "error")
	if err != nil {
		t.Fatalf("score: %v", err)
	}

	var report model.ResultReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if report.Accuracy != 50 {
		t.Errorf("Accuracy = %d, want 50", report.Accuracy)
	}
	if report.Level != model.LevelBeginner {
		t.Errorf("Level = %q, want %q", report.Level, model.LevelBeginner)
	}
	if !slices.Equal(report.RecommendedLessons, []int64{1, 2, 5}) {
		t.Errorf("RecommendedLessons = %v", report.RecommendedLessons)
	}
	if len(report.WeakAreas) != 1 || report.WeakAreas[0].Category != "vocabulary" {
		t.Errorf("WeakAreas = %+v, want [vocabulary]", report.WeakAreas)
	}
}

func TestScoreCommandCustomTiers(t *testing.T) {
	dbPath := seedDB(t)
	answers := `[
		{"question_id": 1, "selected_answer": 0},
		{"question_id": 2, "selected_answer": 1},
		{"question_id": 3, "selected_answer": 1},
		{"question_id": 4, "selected_answer": 0}
	]`
	out, err := runCmd(t, answers, "score", "--db", dbPath, "--log-level", "error",
		"--intermediate-floor", "50", "--intermediate-lessons", "10,11")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	var report model.ResultReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if report.Level != model.LevelIntermediate {
		t.Errorf("Level = %q, want %q", report.Level, model.LevelIntermediate)
	}
	if !slices.Equal(report.RecommendedLessons, []int64{10, 11}) {
		t.Errorf("RecommendedLessons = %v, want [10 11]", report.RecommendedLessons)
	}
}

func TestScoreCommandErrors(t *testing.T) {
	dbPath := seedDB(t)

	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"no answers", `[]`, nil},
		{"bad json", `{`, nil},
		{"strict unknown", `[{"question_id": 99, "selected_answer": 0}]`, []string{"--strict"}},
		{"tier floors out of order", `[{"question_id": 1, "selected_answer": 0}]`, []string{"--intermediate-floor", "90"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"score", "--db", dbPath, "--log-level", "error"}, tt.args...)
			if _, err := runCmd(t, tt.stdin, args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestExportCommand(t *testing.T) {
	dbPath := seedDB(t)
	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	for _, r := range []struct {
		user  int64
		level model.Level
	}{{1, model.LevelAdvanced}, {2, model.LevelBeginner}} {
		if _, err := s.SavePlacementResult(r.user, model.ResultReport{Level: r.level, TotalQuestions: 1}); err != nil {
			t.Fatalf("SavePlacementResult: %v", err)
		}
	}
	s.Close()

	out, err := runCmd(t, "", "export", "--db", dbPath, "--user-id", "2", "--log-level", "error")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var export model.ResultsExport
	if err := json.Unmarshal([]byte(out), &export); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if export.Count != 1 {
		t.Fatalf("Count = %d, want 1", export.Count)
	}
	if export.Levels[model.LevelBeginner] != 1 {
		t.Errorf("Levels = %v", export.Levels)
	}
}

func TestScoreCommandLessonsFromEnv(t *testing.T) {
	dbPath := seedDB(t)
	answers := `[
		{"question_id": 1, "selected_answer": 0},
		{"question_id": 2, "selected_answer": 1}
	]`

	tests := []struct {
		env  string
		want []int64
	}{
		{"6,7", []int64{6, 7}},
		{"8 9 10", []int64{8, 9, 10}},
		{" 11, 12 ", []int64{11, 12}},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("LINGO_ADVANCED_LESSONS", tt.env)
			out, err := runCmd(t, answers, "score", "--db", dbPath, "--log-level", "error")
			if err != nil {
				t.Fatalf("score: %v", err)
			}
			var report model.ResultReport
			if err := json.Unmarshal([]byte(out), &report); err != nil {
				t.Fatalf("decode output: %v", err)
			}
			if report.Level != model.LevelAdvanced {
				t.Fatalf("Level = %q, want Advanced", report.Level)
			}
			if !slices.Equal(report.RecommendedLessons, tt.want) {
				t.Errorf("RecommendedLessons = %v, want %v", report.RecommendedLessons, tt.want)
			}
		})
	}
}

func TestScoreCommandBadLessonsEnv(t *testing.T) {
	dbPath := seedDB(t)
	t.Setenv("LINGO_BEGINNER_LESSONS", "1,two")
	_, err := runCmd(t, `[{"question_id": 1, "selected_answer": 0}]`, "score", "--db", dbPath, "--log-level", "error")
	if err == nil || !strings.Contains(err.Error(), "beginner-lessons") {
		t.Errorf("err = %v, want invalid beginner-lessons", err)
	}
}

func TestImportCommandQuizzes(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "lingo.db")
	quizPath := filepath.Join(dir, "quizzes.json")
	if err := os.WriteFile(quizPath, []byte(`[{"id": 1, "title": "Daily", "category": "mixed", "is_daily": true}]`), 0o644); err != nil {
		t.Fatalf("write quizzes: %v", err)
	}

	if _, err := runCmd(t, "", "import", "--db", dbPath, "--quizzes", quizPath, "--log-level", "error"); err != nil {
		t.Fatalf("import: %v", err)
	}

	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer s.Close()
	daily, err := s.DailyQuiz()
	if err != nil || daily.Title != "Daily" {
		t.Errorf("DailyQuiz = %+v, %v", daily, err)
	}
}
