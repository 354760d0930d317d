package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/lingo/internal/model"
)

// ExportResults builds an export of all placement results, optionally limited to one user.
func (s *Store) ExportResults(userID int64) (model.ResultsExport, error) {
	all, err := s.ListPlacementResults()
	if err != nil {
		return model.ResultsExport{}, fmt.Errorf("list placement results: %w", err)
	}

	results := all
	if userID != 0 {
		results = nil
		for _, r := range all {
			if r.UserID == userID {
				results = append(results, r)
			}
		}
	}

	return model.NewResultsExport(results, time.Now().UTC()), nil
}
