// Package grading evaluates free-text quiz answers in a single batch call,
// merges the verdicts back into the quiz, and computes the final score.
package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"studyhub/internal/gemini"
	"studyhub/internal/model"
	"studyhub/internal/prompt"
	"studyhub/internal/schema"
)

// Feedback text attached to every question when the evaluation call fails.
const (
	standardFailureFeedback = "Error: The AI evaluation service failed. Please try again."
	ultimateFailureFeedback = "Error: The AI evaluation service failed."
	missingResultFeedback   = "AI evaluation was not available for this question."
)

// Generator dispatches one evaluation request. *gemini.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, req gemini.Request) (*gemini.Response, error)
}

// Pipeline grades submitted quizzes.
type Pipeline struct {
	gen Generator
}

func New(gen Generator) *Pipeline {
	return &Pipeline{gen: gen}
}

// Questions flattens a quiz's gradable questions into evaluation order:
// short answers first, then long answers. MCQs are graded locally and are
// not included.
func Questions(quiz model.Quiz) []prompt.EvalQuestion {
	out := make([]prompt.EvalQuestion, 0, len(quiz.ShortAnswers)+len(quiz.LongAnswers))
	for _, q := range quiz.ShortAnswers {
		out = append(out, prompt.EvalQuestion{
			Question:    q.Question,
			ModelAnswer: q.Answer,
			UserAnswer:  q.UserAnswer,
		})
	}
	for _, q := range quiz.LongAnswers {
		out = append(out, prompt.EvalQuestion{
			Question:   q.Question,
			KeyPoints:  q.PointsToCover,
			UserAnswer: q.UserAnswer,
		})
	}
	return out
}

// EvaluateBatch grades every question in one backend call. Strict mode uses
// the harsher examiner rubric and a lower temperature. The pipeline never
// fails a submission over a backend error: on any failure every question
// gets an explicit error verdict so the caller can still finish the quiz.
func (p *Pipeline) EvaluateBatch(ctx context.Context, questions []prompt.EvalQuestion, learnerContext string, strict bool) []model.GradedQuestionResult {
	if len(questions) == 0 {
		return nil
	}

	evalSchema := schema.BatchEvaluation()
	temperature := float32(0.3)
	if strict {
		evalSchema = schema.UltimateEvaluation()
		temperature = 0.2
	}

	resp, err := p.gen.Generate(ctx, gemini.Request{
		Parts:       []*genai.Part{{Text: prompt.BuildBatchEval(questions, learnerContext, strict)}},
		Schema:      evalSchema,
		Temperature: genai.Ptr(temperature),
	})
	if err != nil {
		slog.Error("batch evaluation failed", "questions", len(questions), "strict", strict, "error", err)
		return failedResults(len(questions), strict)
	}

	var out struct {
		Evaluations []model.GradedQuestionResult `json:"evaluations"`
	}
	if err := json.Unmarshal([]byte(stripFences(resp.Text)), &out); err != nil {
		slog.Error("batch evaluation returned malformed results", "error", err)
		return failedResults(len(questions), strict)
	}
	return out.Evaluations
}

func failedResults(n int, strict bool) []model.GradedQuestionResult {
	feedback := standardFailureFeedback
	if strict {
		feedback = ultimateFailureFeedback
	}
	results := make([]model.GradedQuestionResult, n)
	for i := range results {
		results[i] = model.GradedQuestionResult{
			QuestionID: i,
			Feedback:   feedback,
			Assessment: model.AssessmentIncorrect,
		}
	}
	return results
}

// ApplyEvaluations writes graded verdicts back onto the quiz. Question IDs
// index the combined short+long list: shorts occupy 0..len(shorts)-1 and
// longs follow. A question with no matching verdict is marked incorrect.
func ApplyEvaluations(quiz *model.Quiz, results []model.GradedQuestionResult) {
	byID := make(map[int]model.GradedQuestionResult, len(results))
	for _, r := range results {
		byID[r.QuestionID] = r
	}

	shortCount := len(quiz.ShortAnswers)
	for i := range quiz.ShortAnswers {
		if r, ok := byID[i]; ok {
			quiz.ShortAnswers[i].Feedback = r.Feedback
			quiz.ShortAnswers[i].Assessment = r.Assessment
		} else {
			quiz.ShortAnswers[i].Feedback = missingResultFeedback
			quiz.ShortAnswers[i].Assessment = model.AssessmentIncorrect
		}
	}
	for i := range quiz.LongAnswers {
		if r, ok := byID[i+shortCount]; ok {
			quiz.LongAnswers[i].Feedback = r.Feedback
			quiz.LongAnswers[i].Assessment = r.Assessment
		} else {
			quiz.LongAnswers[i].Feedback = missingResultFeedback
			quiz.LongAnswers[i].Assessment = model.AssessmentIncorrect
		}
	}
}

// Score returns the percentage of questions answered fully correctly.
// Partial credit does not count; an empty quiz scores zero.
func Score(quiz model.Quiz) float64 {
	total := quiz.QuestionCount()
	if total == 0 {
		return 0
	}
	correct := 0
	for _, q := range quiz.Mcqs {
		if q.Correct() {
			correct++
		}
	}
	for _, q := range quiz.ShortAnswers {
		if q.Assessment == model.AssessmentCorrect {
			correct++
		}
	}
	for _, q := range quiz.LongAnswers {
		if q.Assessment == model.AssessmentCorrect {
			correct++
		}
	}
	return float64(correct) / float64(total) * 100
}

// Summarize produces the aggregate performance report for a graded quiz.
// Unlike evaluation, a failure here propagates: the summary is optional
// and the caller decides whether to surface the error.
func (p *Pipeline) Summarize(ctx context.Context, quiz model.Quiz, learnerContext string) (*model.QuizFeedback, error) {
	quizJSON, err := json.Marshal(quiz)
	if err != nil {
		return nil, fmt.Errorf("encode quiz for summary: %w", err)
	}

	resp, err := p.gen.Generate(ctx, gemini.Request{
		Parts:       []*genai.Part{{Text: prompt.BuildFeedbackSummary(string(quizJSON), learnerContext)}},
		Schema:      schema.QuizFeedback(),
		Temperature: genai.Ptr(float32(0.5)),
	})
	if err != nil {
		return nil, fmt.Errorf("generate feedback summary: %w", err)
	}

	var feedback model.QuizFeedback
	if err := json.Unmarshal([]byte(stripFences(resp.Text)), &feedback); err != nil {
		return nil, fmt.Errorf("decode feedback summary: %w", err)
	}
	return &feedback, nil
}

// FeedbackMarkdown renders a feedback summary as markdown for saving.
func FeedbackMarkdown(fb model.QuizFeedback) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### Overall Performance Summary\n%s\n\n", fb.OverallSummary)

	a := fb.AnalysisByQuestionType
	if a.MCQ != "" || a.Short != "" || a.Long != "" {
		b.WriteString("### Analysis by Question Type\n")
		if a.MCQ != "" {
			fmt.Fprintf(&b, "**Multiple Choice:** %s\n", a.MCQ)
		}
		if a.Short != "" {
			fmt.Fprintf(&b, "**Short Answer:** %s\n", a.Short)
		}
		if a.Long != "" {
			fmt.Fprintf(&b, "**Long Answer:** %s\n", a.Long)
		}
		b.WriteString("\n")
	}

	if len(fb.KeyStrengths) > 0 {
		b.WriteString("### Key Strengths\n")
		for _, s := range fb.KeyStrengths {
			fmt.Fprintf(&b, "* %s\n", s)
		}
		b.WriteString("\n")
	}

	if len(fb.AreasForImprovement) > 0 {
		b.WriteString("### Areas for Improvement\n")
		for _, area := range fb.AreasForImprovement {
			fmt.Fprintf(&b, "* **%s:** %s\n", area.Concept, area.Suggestion)
		}
	}
	return b.String()
}

// UltimateResultsMarkdown renders a graded ultimate test as a markdown
// transcript with per-question verdicts.
func UltimateResultsMarkdown(quiz model.Quiz, score float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### Ultimate Test Results\n**Final Score: %.0f%%**\n\n---\n\n", score)

	if len(quiz.Mcqs) > 0 {
		b.WriteString("#### Multiple Choice Questions\n")
		for i, q := range quiz.Mcqs {
			status := "❌ Incorrect"
			if q.Correct() {
				status = "✅ Correct"
			}
			answer := q.UserAnswer
			if answer == "" {
				answer = "Not answered"
			}
			fmt.Fprintf(&b, "**Q%d:** %s\n- **Your Answer:** %s\n- **Correct Answer:** %s\n- **Status:** %s\n\n",
				i+1, q.Question, answer, q.Answer, status)
		}
		b.WriteString("---\n\n")
	}

	number := len(quiz.Mcqs)
	if len(quiz.ShortAnswers) > 0 {
		b.WriteString("#### Short Answer Questions\n")
		for _, q := range quiz.ShortAnswers {
			number++
			writeAnsweredQuestion(&b, number, q.Question, q.UserAnswer, q.Assessment, q.Feedback)
		}
		b.WriteString("---\n\n")
	}

	if len(quiz.LongAnswers) > 0 {
		b.WriteString("#### Long Answer Questions\n")
		for _, q := range quiz.LongAnswers {
			number++
			writeAnsweredQuestion(&b, number, q.Question, q.UserAnswer, q.Assessment, q.Feedback)
		}
	}
	return b.String()
}

func writeAnsweredQuestion(b *strings.Builder, number int, question, userAnswer string, assessment model.Assessment, feedback string) {
	answer := "*Not answered*"
	if userAnswer != "" {
		answer = strings.ReplaceAll(userAnswer, "\n", "\n> ")
	}
	fmt.Fprintf(b, "**Q%d:** %s\n- **Your Answer:**\n> %s\n- **Assessment:** %s\n- **Feedback:** %s\n\n",
		number, question, answer, assessmentLabel(assessment), feedback)
}

func assessmentLabel(a model.Assessment) string {
	if a == "" {
		return "Not Graded"
	}
	words := strings.Split(string(a), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```json"); ok {
		s = after
	} else if after, ok := strings.CutPrefix(s, "```"); ok {
		s = after
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
