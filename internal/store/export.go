package store

import (
	"fmt"

	"studyhub/internal/model"
)

// ExportHistory builds export-ready quiz histories for every topic.
func (s *Store) ExportHistory() ([]model.TopicHistory, error) {
	subjects, err := s.ListSubjects()
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}

	var histories []model.TopicHistory
	for _, sub := range subjects {
		topics, err := s.ListTopics(sub.ID)
		if err != nil {
			return nil, fmt.Errorf("list topics for subject %d: %w", sub.ID, err)
		}
		for _, topic := range topics {
			results, err := s.ListQuizResults(topic.ID)
			if err != nil {
				return nil, fmt.Errorf("list quiz results for topic %d: %w", topic.ID, err)
			}
			histories = append(histories, model.TopicHistory{
				Subject:     sub.Name,
				Topic:       topic.Title,
				Status:      topic.Status,
				TargetScore: topic.TargetScore,
				Results:     results,
			})
		}
	}

	return histories, nil
}
