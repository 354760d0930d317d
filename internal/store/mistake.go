package store

import (
	"time"

	"github.com/pavelanni/lingo/internal/model"
)

func insertMistakes(ex execer, mistakes []model.Mistake, at time.Time) error {
	for _, m := range mistakes {
		created := m.CreatedAt
		if created.IsZero() {
			created = at
		}
		_, err := ex.Exec(
			`INSERT INTO mistakes (user_id, question_id, category, selected_answer, correct_answer, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.UserID, m.QuestionID, m.Category, m.SelectedAnswer, m.CorrectAnswer, created.UTC(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListMistakes returns a user's mistakes, newest first, with the question
// text and explanation taken from the catalog when the question still exists.
func (s *Store) ListMistakes(userID int64) ([]model.Mistake, error) {
	rows, err := s.db.Query(
		`SELECT m.id, m.user_id, m.question_id, m.category, m.selected_answer, m.correct_answer,
		        COALESCE(q.text, ''), COALESCE(q.explanation, ''), m.created_at
		 FROM mistakes m LEFT JOIN questions q ON q.id = m.question_id
		 WHERE m.user_id = ?
		 ORDER BY m.created_at DESC, m.id DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var mistakes []model.Mistake
	for rows.Next() {
		var m model.Mistake
		err := rows.Scan(&m.ID, &m.UserID, &m.QuestionID, &m.Category, &m.SelectedAnswer, &m.CorrectAnswer,
			&m.Question, &m.Explanation, &m.CreatedAt)
		if err != nil {
			return nil, err
		}
		mistakes = append(mistakes, m)
	}
	return mistakes, rows.Err()
}
