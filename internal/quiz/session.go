// Package quiz drives one quiz attempt from first question to graded
// result: a flattened navigation cursor over the question lists, answer
// capture, and a submit step that grades and scores the attempt.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studyhub/internal/grading"
	"studyhub/internal/model"
	"studyhub/internal/prompt"
)

// State is the session's lifecycle phase.
type State string

const (
	// StateAnswering accepts answers and cursor movement.
	StateAnswering State = "answering"
	// StateSubmitting is the transient phase while grading runs.
	StateSubmitting State = "submitting"
	// StateResults is terminal: the quiz is graded and read-only.
	StateResults State = "results"
)

// QuestionKind identifies which list the cursor points into.
type QuestionKind string

const (
	KindMCQ   QuestionKind = "mcq"
	KindShort QuestionKind = "short"
	KindLong  QuestionKind = "long"
)

var (
	ErrEmptyQuiz    = errors.New("quiz has no questions")
	ErrNotAnswering = errors.New("session is no longer accepting answers")
	ErrNoResult     = errors.New("quiz has not been graded yet")
)

// Grader runs the evaluation and summary calls for a submission.
// *grading.Pipeline satisfies it.
type Grader interface {
	EvaluateBatch(ctx context.Context, questions []prompt.EvalQuestion, learnerContext string, strict bool) []model.GradedQuestionResult
	Summarize(ctx context.Context, quiz model.Quiz, learnerContext string) (*model.QuizFeedback, error)
}

// Session is one quiz attempt. Questions are navigated in a fixed order:
// MCQs first, then short answers, then long answers. Not safe for
// concurrent use.
type Session struct {
	quiz           model.Quiz
	quizType       string
	ultimate       bool
	learnerContext string

	state  State
	cursor int

	result   *model.QuizResult
	feedback *model.QuizFeedback
}

// NewSession starts an attempt over the given quiz. quizType is the label
// recorded on the final result ("MCQ Quiz", "Ultimate Test", ...).
func NewSession(q model.Quiz, quizType string, ultimate bool, learnerContext string) (*Session, error) {
	if q.Empty() {
		return nil, ErrEmptyQuiz
	}
	return &Session{
		quiz:           cloneQuiz(q),
		quizType:       quizType,
		ultimate:       ultimate,
		learnerContext: learnerContext,
		state:          StateAnswering,
	}, nil
}

func (s *Session) State() State { return s.state }

// Len returns the total question count.
func (s *Session) Len() int { return s.quiz.QuestionCount() }

// Index returns the cursor's position in the flattened question order.
func (s *Session) Index() int { return s.cursor }

// Current resolves the cursor to a question list and an index within it.
func (s *Session) Current() (QuestionKind, int) {
	i := s.cursor
	if i < len(s.quiz.Mcqs) {
		return KindMCQ, i
	}
	i -= len(s.quiz.Mcqs)
	if i < len(s.quiz.ShortAnswers) {
		return KindShort, i
	}
	return KindLong, i - len(s.quiz.ShortAnswers)
}

// Next advances the cursor. It stops at the last question.
func (s *Session) Next() {
	if s.state == StateAnswering && s.cursor < s.Len()-1 {
		s.cursor++
	}
}

// Prev moves the cursor back. It stops at the first question.
func (s *Session) Prev() {
	if s.state == StateAnswering && s.cursor > 0 {
		s.cursor--
	}
}

// Answer records the learner's answer for the current question.
func (s *Session) Answer(answer string) error {
	if s.state != StateAnswering {
		return ErrNotAnswering
	}
	kind, i := s.Current()
	switch kind {
	case KindMCQ:
		s.quiz.Mcqs[i].UserAnswer = answer
	case KindShort:
		s.quiz.ShortAnswers[i].UserAnswer = answer
	case KindLong:
		s.quiz.LongAnswers[i].UserAnswer = answer
	}
	return nil
}

// Quiz returns a snapshot of the attempt's current question state.
func (s *Session) Quiz() model.Quiz { return cloneQuiz(s.quiz) }

// Submit grades the attempt. Free-text questions go to the grader in one
// batch; MCQs are scored locally. Standard quizzes also get a feedback
// summary; an ultimate test skips it. If the summary call fails the
// session returns to the answering state with all answers intact so the
// learner can retry, and no partial grading is kept.
func (s *Session) Submit(ctx context.Context, grader Grader) (*model.QuizResult, error) {
	if s.state != StateAnswering {
		return nil, ErrNotAnswering
	}
	s.state = StateSubmitting

	graded := cloneQuiz(s.quiz)
	if questions := grading.Questions(graded); len(questions) > 0 {
		results := grader.EvaluateBatch(ctx, questions, s.learnerContext, s.ultimate)
		grading.ApplyEvaluations(&graded, results)
	}

	var feedback *model.QuizFeedback
	if !s.ultimate {
		fb, err := grader.Summarize(ctx, graded, s.learnerContext)
		if err != nil {
			s.state = StateAnswering
			return nil, fmt.Errorf("submit quiz: %w", err)
		}
		feedback = fb
	}

	s.quiz = graded
	s.feedback = feedback
	s.state = StateResults

	result := &model.QuizResult{
		ID:        uuid.NewString(),
		Date:      time.Now().UTC(),
		Type:      s.quizType,
		Score:     grading.Score(graded),
		QuizState: graded,
	}
	if feedback != nil {
		result.FeedbackSummary = grading.FeedbackMarkdown(*feedback)
	}
	s.result = result
	return result, nil
}

// Result returns the graded outcome once the session reaches results.
func (s *Session) Result() (*model.QuizResult, error) {
	if s.state != StateResults {
		return nil, ErrNoResult
	}
	return s.result, nil
}

// Feedback returns the AI performance summary, if one was generated.
func (s *Session) Feedback() *model.QuizFeedback { return s.feedback }

// cloneQuiz copies the question lists so answer and grading writes never
// leak into the caller's quiz.
func cloneQuiz(q model.Quiz) model.Quiz {
	out := model.Quiz{}
	if q.Mcqs != nil {
		out.Mcqs = append([]model.McqQuestion(nil), q.Mcqs...)
	}
	if q.ShortAnswers != nil {
		out.ShortAnswers = append([]model.ShortAnswerQuestion(nil), q.ShortAnswers...)
	}
	if q.LongAnswers != nil {
		out.LongAnswers = append([]model.LongAnswerQuestion(nil), q.LongAnswers...)
	}
	return out
}
