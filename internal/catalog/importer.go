// Package catalog loads question and lesson files into the store.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/pavelanni/lingo/internal/model"
	"github.com/pavelanni/lingo/internal/store"
)

// Result counts what an import did.
type Result struct {
	Imported int // files imported
	Skipped  int // files unchanged or changed after a previous import
	Records  int // questions, lessons or quizzes inserted
}

// ImportQuestions loads JSON question files into the store. A file is
// validated in full and then stored in one transaction.
func ImportQuestions(db *store.Store, paths []string) (Result, error) {
	return importFiles(db, paths, func(data []byte) (int, error) {
		var items []model.QuestionImport
		if err := json.Unmarshal(data, &items); err != nil {
			return 0, err
		}
		questions := make([]model.Question, 0, len(items))
		for i, qi := range items {
			if err := validateQuestion(qi); err != nil {
				return 0, fmt.Errorf("question %d: %w", i, err)
			}
			questions = append(questions, model.Question{
				ID:            qi.ID,
				QuizID:        qi.QuizID,
				Category:      qi.Category,
				Text:          qi.Text,
				Options:       qi.Options,
				CorrectAnswer: qi.CorrectAnswer,
				Explanation:   qi.Explanation,
			})
		}
		if err := db.InsertQuestions(questions); err != nil {
			return 0, err
		}
		return len(questions), nil
	})
}

// ImportLessons loads JSON lesson files into the store.
func ImportLessons(db *store.Store, paths []string) (Result, error) {
	return importFiles(db, paths, func(data []byte) (int, error) {
		var items []model.LessonImport
		if err := json.Unmarshal(data, &items); err != nil {
			return 0, err
		}
		lessons := make([]model.Lesson, 0, len(items))
		for i, li := range items {
			if li.ID <= 0 || li.Title == "" {
				return 0, fmt.Errorf("lesson %d: id and title are required", i)
			}
			lessons = append(lessons, model.Lesson{
				ID:              li.ID,
				Title:           li.Title,
				Category:        li.Category,
				Difficulty:      li.Difficulty,
				DurationMinutes: li.DurationMinutes,
			})
		}
		if err := db.InsertLessons(lessons); err != nil {
			return 0, err
		}
		return len(lessons), nil
	})
}

// ImportQuizzes loads JSON quiz files into the store.
func ImportQuizzes(db *store.Store, paths []string) (Result, error) {
	return importFiles(db, paths, func(data []byte) (int, error) {
		var items []model.QuizImport
		if err := json.Unmarshal(data, &items); err != nil {
			return 0, err
		}
		quizzes := make([]model.Quiz, 0, len(items))
		for i, qi := range items {
			if qi.ID <= 0 || qi.Title == "" || qi.Category == "" {
				return 0, fmt.Errorf("quiz %d: id, title and category are required", i)
			}
			quizzes = append(quizzes, model.Quiz{
				ID:               qi.ID,
				Title:            qi.Title,
				Description:      qi.Description,
				Category:         qi.Category,
				Difficulty:       qi.Difficulty,
				IsDaily:          qi.IsDaily,
				EstimatedMinutes: qi.EstimatedMinutes,
			})
		}
		if err := db.InsertQuizzes(quizzes); err != nil {
			return 0, err
		}
		return len(quizzes), nil
	})
}

func validateQuestion(qi model.QuestionImport) error {
	if qi.ID <= 0 {
		return fmt.Errorf("id must be positive, got %d", qi.ID)
	}
	if qi.Category == "" {
		return fmt.Errorf("id %d: category is required", qi.ID)
	}
	if len(qi.Options) > 0 && (qi.CorrectAnswer < 0 || qi.CorrectAnswer >= len(qi.Options)) {
		return fmt.Errorf("id %d: correct_answer %d outside %d options", qi.ID, qi.CorrectAnswer, len(qi.Options))
	}
	return nil
}

func importFiles(db *store.Store, paths []string, load func([]byte) (int, error)) (Result, error) {
	var res Result
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return res, fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return res, fmt.Errorf("check import status for %s: %w", path, err)
		}

		if storedHash == hash {
			slog.Info("catalog file unchanged, skipping", "path", path)
			res.Skipped++
			continue
		}
		if storedHash != "" {
			slog.Warn("catalog file changed since last import, skipping to keep stored results consistent",
				"path", path)
			res.Skipped++
			continue
		}

		n, err := load(data)
		if err != nil {
			return res, fmt.Errorf("parse %s: %w", path, err)
		}

		if err := db.SetImportedFileHash(path, hash); err != nil {
			return res, fmt.Errorf("record import for %s: %w", path, err)
		}
		res.Imported++
		res.Records += n
		slog.Info("imported catalog file", "path", path, "count", n)
	}
	return res, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
