package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"studyhub/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS subjects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS topics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subject_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		target_score REAL NOT NULL DEFAULT 80,
		status TEXT NOT NULL DEFAULT 'in_progress',
		FOREIGN KEY (subject_id) REFERENCES subjects(id)
	);

	CREATE TABLE IF NOT EXISTS attachments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		data BLOB NOT NULL,
		UNIQUE (topic_id, name),
		FOREIGN KEY (topic_id) REFERENCES topics(id)
	);

	CREATE TABLE IF NOT EXISTS quiz_results (
		id TEXT PRIMARY KEY,
		topic_id INTEGER NOT NULL,
		date DATETIME NOT NULL,
		type TEXT NOT NULL,
		score REAL NOT NULL,
		feedback_summary TEXT NOT NULL DEFAULT '',
		quiz_state TEXT NOT NULL,
		FOREIGN KEY (topic_id) REFERENCES topics(id)
	);

	CREATE TABLE IF NOT EXISTS saved_content (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic_id INTEGER NOT NULL,
		task TEXT NOT NULL,
		label TEXT NOT NULL,
		content TEXT NOT NULL,
		FOREIGN KEY (topic_id) REFERENCES topics(id)
	);

	CREATE TABLE IF NOT EXISTS profile (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateSubject stores a subject.
func (s *Store) CreateSubject(name string) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO subjects (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetSubject returns a subject by ID, without its topics.
func (s *Store) GetSubject(id int64) (model.Subject, error) {
	var sub model.Subject
	err := s.db.QueryRow(`SELECT id, name FROM subjects WHERE id = ?`, id).Scan(&sub.ID, &sub.Name)
	return sub, err
}

// ListSubjects returns all subjects, without their topics.
func (s *Store) ListSubjects() ([]model.Subject, error) {
	rows, err := s.db.Query(`SELECT id, name FROM subjects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subjects []model.Subject
	for rows.Next() {
		var sub model.Subject
		if err := rows.Scan(&sub.ID, &sub.Name); err != nil {
			return nil, err
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

// CreateTopic stores a topic. A zero target score gets the default.
func (s *Store) CreateTopic(t model.Topic) (int64, error) {
	if t.TargetScore == 0 {
		t.TargetScore = model.DefaultTargetScore
	}
	if t.Status == "" {
		t.Status = model.TopicInProgress
	}
	res, err := s.db.Exec(
		`INSERT INTO topics (subject_id, title, description, notes, target_score, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.SubjectID, t.Title, t.Description, t.Notes, t.TargetScore, t.Status,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetTopic returns a topic by ID.
func (s *Store) GetTopic(id int64) (model.Topic, error) {
	var t model.Topic
	err := s.db.QueryRow(
		`SELECT id, subject_id, title, description, notes, target_score, status FROM topics WHERE id = ?`, id,
	).Scan(&t.ID, &t.SubjectID, &t.Title, &t.Description, &t.Notes, &t.TargetScore, &t.Status)
	return t, err
}

// ListTopics returns all topics for a subject.
func (s *Store) ListTopics(subjectID int64) ([]model.Topic, error) {
	rows, err := s.db.Query(
		`SELECT id, subject_id, title, description, notes, target_score, status FROM topics WHERE subject_id = ? ORDER BY id`,
		subjectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var topics []model.Topic
	for rows.Next() {
		var t model.Topic
		if err := rows.Scan(&t.ID, &t.SubjectID, &t.Title, &t.Description, &t.Notes, &t.TargetScore, &t.Status); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// UpdateTopicNotes replaces a topic's notes text.
func (s *Store) UpdateTopicNotes(id int64, notes string) error {
	_, err := s.db.Exec(`UPDATE topics SET notes = ? WHERE id = ?`, notes, id)
	return err
}

// UpdateTopicStatus sets a topic's progress status.
func (s *Store) UpdateTopicStatus(id int64, status model.TopicStatus) error {
	_, err := s.db.Exec(`UPDATE topics SET status = ? WHERE id = ?`, status, id)
	return err
}

// UpdateTopicTargetScore sets the mastery threshold for a topic.
func (s *Store) UpdateTopicTargetScore(id int64, targetScore float64) error {
	_, err := s.db.Exec(`UPDATE topics SET target_score = ? WHERE id = ?`, targetScore, id)
	return err
}

// AddAttachment stores a file under a topic, replacing any previous file
// with the same name.
func (s *Store) AddAttachment(topicID int64, a model.Attachment) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO attachments (topic_id, name, mime_type, data)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(topic_id, name) DO UPDATE SET mime_type = excluded.mime_type, data = excluded.data`,
		topicID, a.Name, a.MIMEType, a.Data,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListAttachments returns all files stored under a topic.
func (s *Store) ListAttachments(topicID int64) ([]model.Attachment, error) {
	rows, err := s.db.Query(
		`SELECT name, mime_type, data FROM attachments WHERE topic_id = ? ORDER BY name`, topicID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []model.Attachment
	for rows.Next() {
		var a model.Attachment
		if err := rows.Scan(&a.Name, &a.MIMEType, &a.Data); err != nil {
			return nil, err
		}
		files = append(files, a)
	}
	return files, rows.Err()
}

// DeleteAttachment removes one named file from a topic.
func (s *Store) DeleteAttachment(topicID int64, name string) error {
	_, err := s.db.Exec(`DELETE FROM attachments WHERE topic_id = ? AND name = ?`, topicID, name)
	return err
}

// AddQuizResult stores a graded quiz attempt. The full question state is
// kept as JSON so past attempts can be reviewed question by question.
func (s *Store) AddQuizResult(topicID int64, r model.QuizResult) error {
	state, err := json.Marshal(r.QuizState)
	if err != nil {
		return fmt.Errorf("encode quiz state: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO quiz_results (id, topic_id, date, type, score, feedback_summary, quiz_state)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, topicID, r.Date, r.Type, r.Score, r.FeedbackSummary, string(state),
	)
	return err
}

// ListQuizResults returns a topic's quiz history, newest first.
func (s *Store) ListQuizResults(topicID int64) ([]model.QuizResult, error) {
	rows, err := s.db.Query(
		`SELECT id, date, type, score, feedback_summary, quiz_state
		 FROM quiz_results WHERE topic_id = ? ORDER BY date DESC`, topicID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.QuizResult
	for rows.Next() {
		var r model.QuizResult
		var state string
		if err := rows.Scan(&r.ID, &r.Date, &r.Type, &r.Score, &r.FeedbackSummary, &state); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(state), &r.QuizState); err != nil {
			return nil, fmt.Errorf("decode quiz state for result %s: %w", r.ID, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// AddSavedContent keeps a generated artifact for later review.
func (s *Store) AddSavedContent(c model.SavedContent) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO saved_content (topic_id, task, label, content) VALUES (?, ?, ?, ?)`,
		c.TopicID, c.Task, c.Label, c.Content,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListSavedContent returns all saved artifacts for a topic.
func (s *Store) ListSavedContent(topicID int64) ([]model.SavedContent, error) {
	rows, err := s.db.Query(
		`SELECT id, topic_id, task, label, content FROM saved_content WHERE topic_id = ? ORDER BY id DESC`, topicID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.SavedContent
	for rows.Next() {
		var c model.SavedContent
		if err := rows.Scan(&c.ID, &c.TopicID, &c.Task, &c.Label, &c.Content); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// DeleteSavedContent removes one saved artifact.
func (s *Store) DeleteSavedContent(id int64) error {
	_, err := s.db.Exec(`DELETE FROM saved_content WHERE id = ?`, id)
	return err
}

// SaveProfile stores the learner profile. There is a single profile row.
func (s *Store) SaveProfile(p model.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO profile (id, data) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		string(data),
	)
	return err
}

// GetProfile returns the learner profile, or a zero profile when none has
// been saved yet.
func (s *Store) GetProfile() (model.Profile, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM profile WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return model.Profile{}, nil
	}
	if err != nil {
		return model.Profile{}, err
	}
	var p model.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return model.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return p, nil
}
