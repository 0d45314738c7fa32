package model

// TopicHistory is the export shape for one topic's quiz record.
type TopicHistory struct {
	Subject     string       `json:"subject"`
	Topic       string       `json:"topic"`
	Status      TopicStatus  `json:"status"`
	TargetScore float64      `json:"target_score"`
	Results     []QuizResult `json:"results,omitempty"`
}
