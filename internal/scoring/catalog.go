package scoring

import "github.com/pavelanni/lingo/internal/model"

// Catalog is a read-only index of questions by ID.
type Catalog struct {
	byID map[int64]model.Question
}

// NewCatalog indexes questions. A later question with a duplicate ID replaces
// the earlier one.
func NewCatalog(questions []model.Question) Catalog {
	byID := make(map[int64]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return Catalog{byID: byID}
}

// Lookup returns the question with the given ID.
func (c Catalog) Lookup(id int64) (model.Question, bool) {
	q, ok := c.byID[id]
	return q, ok
}

// Len returns the number of indexed questions.
func (c Catalog) Len() int {
	return len(c.byID)
}
