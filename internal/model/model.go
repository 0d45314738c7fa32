package model

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// AITask identifies one AI operation a learner can invoke on a topic.
type AITask string

const (
	TaskOverview      AITask = "overview"
	TaskInDepth       AITask = "in_depth"
	TaskKeyTakeaways  AITask = "key_takeaways"
	TaskAnecdotes     AITask = "anecdotes"
	TaskResources     AITask = "resources"
	TaskFlashcards    AITask = "flashcards"
	TaskQuizMCQ       AITask = "quiz_mcq"
	TaskQuizShort     AITask = "quiz_short"
	TaskQuizLong      AITask = "quiz_long"
	TaskUltimateTest  AITask = "ultimate_test"
	TaskFlowchart     AITask = "flowchart"
	TaskDiagram       AITask = "diagram"
	TaskPDFAnalysis   AITask = "pdf_analysis"
	TaskAudioAnalysis AITask = "audio_analysis"
	TaskQuizFeedback  AITask = "quiz_feedback"
)

// IsValidTask checks whether a task name is one of the known operations.
func IsValidTask(t string) bool {
	switch AITask(t) {
	case TaskOverview, TaskInDepth, TaskKeyTakeaways, TaskAnecdotes,
		TaskResources, TaskFlashcards, TaskQuizMCQ, TaskQuizShort,
		TaskQuizLong, TaskUltimateTest, TaskFlowchart, TaskDiagram,
		TaskPDFAnalysis, TaskAudioAnalysis, TaskQuizFeedback:
		return true
	}
	return false
}

// SourceKind selects which content source feeds a generation request.
type SourceKind string

const (
	// SourceNotes uses the topic's free-form notes text.
	SourceNotes SourceKind = "notes"
	// SourceFiles uses the topic's attached files (PDFs, images).
	SourceFiles SourceKind = "files"
	// SourceKnowledge uses no learner material; the model relies on its
	// own knowledge of the subject.
	SourceKnowledge SourceKind = "knowledge"
)

// Source is a tagged union over the three content source modes. Exactly one
// variant is active: Notes for SourceNotes, Files for SourceFiles, neither
// for SourceKnowledge.
type Source struct {
	Kind  SourceKind
	Notes string
	Files []Attachment
}

// NotesSource returns a Source backed by the given notes text.
func NotesSource(notes string) Source {
	return Source{Kind: SourceNotes, Notes: notes}
}

// FileSource returns a Source backed by the given attachments.
func FileSource(files []Attachment) Source {
	return Source{Kind: SourceFiles, Files: files}
}

// KnowledgeSource returns a Source that carries no learner material.
func KnowledgeSource() Source {
	return Source{Kind: SourceKnowledge}
}

// Validate reports whether the active variant actually carries content.
// A knowledge source is always valid.
func (s Source) Validate() error {
	switch s.Kind {
	case SourceNotes:
		if strings.TrimSpace(s.Notes) == "" {
			return fmt.Errorf("notes source is empty")
		}
	case SourceFiles:
		if len(s.Files) == 0 {
			return fmt.Errorf("file source has no attachments")
		}
	case SourceKnowledge:
	default:
		return fmt.Errorf("unknown source kind %q", s.Kind)
	}
	return nil
}

// Attachment is a decoded file payload stored with a topic.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

var dataURLRegex = regexp.MustCompile(`^data:([^;,]+);base64,(.*)$`)

// ParseDataURL decodes a base64 data URL into an Attachment. The name is
// kept for the stored record and for error reporting.
func ParseDataURL(name, url string) (Attachment, error) {
	m := dataURLRegex.FindStringSubmatch(url)
	if m == nil {
		return Attachment{}, fmt.Errorf("invalid data URL format for file %q", name)
	}
	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return Attachment{}, fmt.Errorf("invalid base64 payload for file %q: %w", name, err)
	}
	return Attachment{Name: name, MIMEType: m[1], Data: data}, nil
}

// DataURL re-encodes the attachment as a base64 data URL.
func (a Attachment) DataURL() string {
	return "data:" + a.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// CardStatus is the learner-assigned review state of a flashcard.
type CardStatus string

const (
	CardKnown       CardStatus = "known"
	CardNeedsReview CardStatus = "needs_review"
)

// Flashcard is a single front/back study card. Status is set by the
// reviewing UI, never by generation.
type Flashcard struct {
	Front  string     `json:"front"`
	Back   string     `json:"back"`
	Status CardStatus `json:"status,omitempty"`
}

// Assessment is the categorical grading outcome for a free-text answer.
type Assessment string

const (
	AssessmentCorrect          Assessment = "correct"
	AssessmentPartiallyCorrect Assessment = "partially_correct"
	AssessmentIncorrect        Assessment = "incorrect"
	AssessmentNeedsMoreWork    Assessment = "needs_more_work"
)

// McqQuestion is a four-option multiple choice question. Answer must be one
// of Options.
type McqQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	UserAnswer  string   `json:"userAnswer,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

// Correct reports whether the learner picked the right option.
func (q McqQuestion) Correct() bool {
	return q.UserAnswer != "" && q.UserAnswer == q.Answer
}

// ShortAnswerQuestion expects a free-text answer of up to about 100 words.
// Feedback and Assessment are absent until the answer is graded.
type ShortAnswerQuestion struct {
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	UserAnswer string     `json:"userAnswer,omitempty"`
	Feedback   string     `json:"feedback,omitempty"`
	Assessment Assessment `json:"assessment,omitempty"`
}

// LongAnswerQuestion expects an essay-style answer. PointsToCover lists the
// key points a good answer should include.
type LongAnswerQuestion struct {
	Question      string     `json:"question"`
	PointsToCover []string   `json:"points_to_cover"`
	ModelAnswer   string     `json:"modelAnswer"`
	UserAnswer    string     `json:"userAnswer,omitempty"`
	Feedback      string     `json:"feedback,omitempty"`
	Assessment    Assessment `json:"assessment,omitempty"`
}

// Quiz groups the three question types. A valid quiz has at least one
// non-empty list; an ultimate test populates all three.
type Quiz struct {
	Mcqs         []McqQuestion         `json:"mcqs,omitempty"`
	ShortAnswers []ShortAnswerQuestion `json:"short_answers,omitempty"`
	LongAnswers  []LongAnswerQuestion  `json:"long_answers,omitempty"`
}

// Empty reports whether the quiz contains no questions at all.
func (q Quiz) Empty() bool {
	return len(q.Mcqs) == 0 && len(q.ShortAnswers) == 0 && len(q.LongAnswers) == 0
}

// QuestionCount returns the total number of questions across all three lists.
func (q Quiz) QuestionCount() int {
	return len(q.Mcqs) + len(q.ShortAnswers) + len(q.LongAnswers)
}

// QuizResult is the immutable record of one completed quiz attempt.
type QuizResult struct {
	ID              string    `json:"id"`
	Date            time.Time `json:"date"`
	Type            string    `json:"type"`
	Score           float64   `json:"score"`
	FeedbackSummary string    `json:"feedbackSummary,omitempty"`
	QuizState       Quiz      `json:"quizState"`
}

// GradedQuestionResult is one evaluation returned by batch grading.
// QuestionID is the zero-based index into the combined short+long list as
// submitted (shorts first, then longs).
type GradedQuestionResult struct {
	QuestionID int        `json:"question_id"`
	Feedback   string     `json:"feedback"`
	Assessment Assessment `json:"assessment"`
}

// TypeAnalysis holds the per-question-type sections of a feedback summary.
// Only the types present in the quiz are populated.
type TypeAnalysis struct {
	MCQ   string `json:"mcq,omitempty"`
	Short string `json:"short,omitempty"`
	Long  string `json:"long,omitempty"`
}

// ImprovementArea names a concept the learner struggled with and suggests
// a next action.
type ImprovementArea struct {
	Concept    string `json:"concept"`
	Suggestion string `json:"suggestion"`
}

// QuizFeedback is the aggregate performance summary for a standard quiz.
type QuizFeedback struct {
	OverallSummary         string            `json:"overallSummary"`
	AnalysisByQuestionType TypeAnalysis      `json:"analysisByQuestionType"`
	KeyStrengths           []string          `json:"keyStrengths"`
	AreasForImprovement    []ImprovementArea `json:"areasForImprovement"`
}

// SyllabusTopic is one unit extracted from a syllabus image.
type SyllabusTopic struct {
	Title     string   `json:"title"`
	SubTopics []string `json:"sub_topics"`
}

// AudioAnalysis is the structured study guide produced from a lecture
// transcript.
type AudioAnalysis struct {
	Summary      string `json:"summary"`
	StrongPoints string `json:"strongPoints"`
	WeakPoints   string `json:"weakPoints"`
	Hyperlinks   string `json:"hyperlinks"`
}

// SavedContent is an AI-generated text artifact the learner chose to keep.
type SavedContent struct {
	ID      int64  `json:"id"`
	TopicID int64  `json:"topic_id"`
	Task    AITask `json:"task"`
	Label   string `json:"label"`
	Content string `json:"content"`
}

// TopicStatus tracks the learner's progress on a topic.
type TopicStatus string

const (
	TopicInProgress TopicStatus = "in_progress"
	TopicDone       TopicStatus = "done"
)

// DefaultTargetScore is the mastery threshold assigned to new topics.
const DefaultTargetScore = 80

// Topic is one study unit within a subject.
type Topic struct {
	ID          int64       `json:"id"`
	SubjectID   int64       `json:"subject_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Notes       string      `json:"notes"`
	TargetScore float64     `json:"target_score"`
	Status      TopicStatus `json:"status"`
}

// Subject is a named collection of topics.
type Subject struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Topics []Topic `json:"topics,omitempty"`
}
