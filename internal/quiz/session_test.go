package quiz

import (
	"context"
	"errors"
	"testing"

	"studyhub/internal/model"
	"studyhub/internal/prompt"
)

type fakeGrader struct {
	evalCalls    int
	summaryCalls int
	results      []model.GradedQuestionResult
	feedback     *model.QuizFeedback
	summaryErr   error
}

func (f *fakeGrader) EvaluateBatch(_ context.Context, questions []prompt.EvalQuestion, _ string, _ bool) []model.GradedQuestionResult {
	f.evalCalls++
	return f.results
}

func (f *fakeGrader) Summarize(_ context.Context, _ model.Quiz, _ string) (*model.QuizFeedback, error) {
	f.summaryCalls++
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	return f.feedback, nil
}

func mixedQuiz() model.Quiz {
	return model.Quiz{
		Mcqs: []model.McqQuestion{
			{Question: "m1", Options: []string{"a", "b", "c", "d"}, Answer: "a"},
		},
		ShortAnswers: []model.ShortAnswerQuestion{
			{Question: "s1", Answer: "model"},
		},
		LongAnswers: []model.LongAnswerQuestion{
			{Question: "l1", PointsToCover: []string{"p"}},
		},
	}
}

func newTestSession(t *testing.T, q model.Quiz, ultimate bool) *Session {
	t.Helper()
	s, err := NewSession(q, "Test Quiz", ultimate, "College student")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func TestNewSessionRejectsEmptyQuiz(t *testing.T) {
	if _, err := NewSession(model.Quiz{}, "Test", false, "ctx"); !errors.Is(err, ErrEmptyQuiz) {
		t.Fatalf("expected ErrEmptyQuiz, got %v", err)
	}
}

func TestNavigationOrder(t *testing.T) {
	s := newTestSession(t, mixedQuiz(), false)

	wantKinds := []QuestionKind{KindMCQ, KindShort, KindLong}
	for i, want := range wantKinds {
		kind, idx := s.Current()
		if kind != want || idx != 0 {
			t.Errorf("position %d: got %s[%d], want %s[0]", i, kind, idx, want)
		}
		s.Next()
	}

	// Next at the last question must not move past the end.
	if s.Index() != 2 {
		t.Errorf("cursor moved past last question: %d", s.Index())
	}

	s.Prev()
	s.Prev()
	s.Prev()
	if s.Index() != 0 {
		t.Errorf("cursor moved before first question: %d", s.Index())
	}
}

func TestAnswerWritesToSessionCopyOnly(t *testing.T) {
	original := mixedQuiz()
	s := newTestSession(t, original, false)

	if err := s.Answer("a"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	s.Next()
	if err := s.Answer("short answer"); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if original.Mcqs[0].UserAnswer != "" || original.ShortAnswers[0].UserAnswer != "" {
		t.Error("answers leaked into the caller's quiz")
	}
	snap := s.Quiz()
	if snap.Mcqs[0].UserAnswer != "a" || snap.ShortAnswers[0].UserAnswer != "short answer" {
		t.Errorf("answers not recorded: %+v", snap)
	}
}

func TestSubmitGradesAndScores(t *testing.T) {
	grader := &fakeGrader{
		results: []model.GradedQuestionResult{
			{QuestionID: 0, Feedback: "good", Assessment: model.AssessmentCorrect},
			{QuestionID: 1, Feedback: "thin", Assessment: model.AssessmentNeedsMoreWork},
		},
		feedback: &model.QuizFeedback{OverallSummary: "keep going"},
	}
	s := newTestSession(t, mixedQuiz(), false)
	s.Answer("a") // correct MCQ

	result, err := s.Submit(context.Background(), grader)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if s.State() != StateResults {
		t.Fatalf("state = %s, want results", s.State())
	}
	if grader.evalCalls != 1 || grader.summaryCalls != 1 {
		t.Errorf("eval/summary calls = %d/%d, want 1/1", grader.evalCalls, grader.summaryCalls)
	}

	// MCQ correct + short correct, long needs more work: 2 of 3.
	if want := 100.0 * 2 / 3; result.Score != want {
		t.Errorf("score = %v, want %v", result.Score, want)
	}
	if result.ID == "" || result.Date.IsZero() || result.Type != "Test Quiz" {
		t.Errorf("result metadata incomplete: %+v", result)
	}
	if result.FeedbackSummary == "" {
		t.Error("standard quiz result must carry a feedback summary")
	}
	if result.QuizState.ShortAnswers[0].Feedback != "good" {
		t.Errorf("graded state not stored: %+v", result.QuizState.ShortAnswers[0])
	}
}

func TestSubmitUltimateSkipsSummary(t *testing.T) {
	grader := &fakeGrader{results: []model.GradedQuestionResult{
		{QuestionID: 0, Assessment: model.AssessmentCorrect, Feedback: "ok"},
		{QuestionID: 1, Assessment: model.AssessmentCorrect, Feedback: "ok"},
	}}
	s := newTestSession(t, mixedQuiz(), true)

	result, err := s.Submit(context.Background(), grader)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if grader.summaryCalls != 0 {
		t.Error("ultimate test must not request a feedback summary")
	}
	if result.FeedbackSummary != "" {
		t.Errorf("unexpected summary: %q", result.FeedbackSummary)
	}
}

func TestSubmitMcqOnlySkipsEvaluation(t *testing.T) {
	grader := &fakeGrader{feedback: &model.QuizFeedback{OverallSummary: "s"}}
	q := model.Quiz{Mcqs: []model.McqQuestion{
		{Question: "m", Options: []string{"a", "b", "c", "d"}, Answer: "a"},
	}}
	s := newTestSession(t, q, false)
	s.Answer("a")

	result, err := s.Submit(context.Background(), grader)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if grader.evalCalls != 0 {
		t.Error("MCQ-only quiz must not call the evaluator")
	}
	if result.Score != 100 {
		t.Errorf("score = %v, want 100", result.Score)
	}
}

func TestSubmitFailureReturnsToAnswering(t *testing.T) {
	grader := &fakeGrader{
		results: []model.GradedQuestionResult{
			{QuestionID: 0, Assessment: model.AssessmentCorrect, Feedback: "kept?"},
		},
		summaryErr: errors.New("backend down"),
	}
	s := newTestSession(t, mixedQuiz(), false)
	s.Next()
	s.Answer("my short answer")

	if _, err := s.Submit(context.Background(), grader); err == nil {
		t.Fatal("expected submit to fail")
	}
	if s.State() != StateAnswering {
		t.Fatalf("state = %s, want answering", s.State())
	}

	snap := s.Quiz()
	if snap.ShortAnswers[0].UserAnswer != "my short answer" {
		t.Error("answers must survive a failed submit")
	}
	if snap.ShortAnswers[0].Assessment != "" || snap.ShortAnswers[0].Feedback != "" {
		t.Errorf("partial grading leaked into the session: %+v", snap.ShortAnswers[0])
	}
	if _, err := s.Result(); !errors.Is(err, ErrNoResult) {
		t.Errorf("expected ErrNoResult, got %v", err)
	}
}

func TestResultsAreReadOnly(t *testing.T) {
	grader := &fakeGrader{
		results: []model.GradedQuestionResult{
			{QuestionID: 0, Assessment: model.AssessmentCorrect, Feedback: "ok"},
			{QuestionID: 1, Assessment: model.AssessmentCorrect, Feedback: "ok"},
		},
		feedback: &model.QuizFeedback{OverallSummary: "s"},
	}
	s := newTestSession(t, mixedQuiz(), false)
	if _, err := s.Submit(context.Background(), grader); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := s.Answer("too late"); !errors.Is(err, ErrNotAnswering) {
		t.Fatalf("expected ErrNotAnswering, got %v", err)
	}
	if _, err := s.Submit(context.Background(), grader); !errors.Is(err, ErrNotAnswering) {
		t.Fatalf("resubmit must be rejected, got %v", err)
	}
	if _, err := s.Result(); err != nil {
		t.Errorf("Result: %v", err)
	}
}
