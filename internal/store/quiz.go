package store

import (
	"database/sql"
	"fmt"

	"github.com/pavelanni/lingo/internal/model"
)

const quizSelect = `SELECT q.id, q.title, q.description, q.category, q.difficulty, q.is_daily, q.estimated_minutes,
	(SELECT COUNT(*) FROM questions WHERE quiz_id = q.id)
	FROM quizzes q`

func scanQuiz(row rowScanner) (model.Quiz, error) {
	var q model.Quiz
	err := row.Scan(&q.ID, &q.Title, &q.Description, &q.Category, &q.Difficulty, &q.IsDaily, &q.EstimatedMinutes, &q.QuestionCount)
	return q, err
}

// InsertQuiz stores a quiz under its own ID, replacing any previous version.
func (s *Store) InsertQuiz(q model.Quiz) error {
	return insertQuiz(s.db, q)
}

// InsertQuizzes stores all quizzes or none.
func (s *Store) InsertQuizzes(quizzes []model.Quiz) error {
	return s.withTx(func(tx *sql.Tx) error {
		for _, q := range quizzes {
			if err := insertQuiz(tx, q); err != nil {
				return fmt.Errorf("insert quiz %d: %w", q.ID, err)
			}
		}
		return nil
	})
}

func insertQuiz(ex execer, q model.Quiz) error {
	_, err := ex.Exec(
		`INSERT OR REPLACE INTO quizzes (id, title, description, category, difficulty, is_daily, estimated_minutes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Title, q.Description, q.Category, q.Difficulty, q.IsDaily, q.EstimatedMinutes,
	)
	return err
}

// GetQuiz returns a quiz by ID.
func (s *Store) GetQuiz(id int64) (model.Quiz, error) {
	return scanQuiz(s.db.QueryRow(quizSelect+` WHERE q.id = ?`, id))
}

// DailyQuiz returns the lowest-numbered quiz marked as daily.
func (s *Store) DailyQuiz() (model.Quiz, error) {
	return scanQuiz(s.db.QueryRow(quizSelect + ` WHERE q.is_daily = 1 ORDER BY q.id LIMIT 1`))
}

// ListQuizzes returns quizzes ordered by ID, limited to one category when
// category is not empty.
func (s *Store) ListQuizzes(category string) ([]model.Quiz, error) {
	query := quizSelect + ` ORDER BY q.id`
	var args []any
	if category != "" {
		query = quizSelect + ` WHERE q.category = ? ORDER BY q.id`
		args = append(args, category)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var quizzes []model.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}
