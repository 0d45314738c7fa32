package schema

import (
	"testing"

	"google.golang.org/genai"

	"studyhub/internal/model"
)

func TestForStructuredTasks(t *testing.T) {
	structured := []model.AITask{
		model.TaskFlashcards,
		model.TaskQuizMCQ,
		model.TaskQuizShort,
		model.TaskQuizLong,
		model.TaskUltimateTest,
		model.TaskQuizFeedback,
		model.TaskAudioAnalysis,
	}
	for _, task := range structured {
		t.Run(string(task), func(t *testing.T) {
			s, ok := For(task)
			if !ok || s == nil {
				t.Fatalf("expected a schema for %s", task)
			}
		})
	}
}

func TestForFreeTextTasks(t *testing.T) {
	freeText := []model.AITask{
		model.TaskOverview,
		model.TaskInDepth,
		model.TaskKeyTakeaways,
		model.TaskAnecdotes,
		model.TaskResources,
		model.TaskFlowchart,
		model.TaskDiagram,
		model.TaskPDFAnalysis,
	}
	for _, task := range freeText {
		t.Run(string(task), func(t *testing.T) {
			if s, ok := For(task); ok || s != nil {
				t.Fatalf("expected no schema for %s", task)
			}
		})
	}
}

func TestUltimateTestRequiresAllLists(t *testing.T) {
	s := UltimateTest()
	if s.Type != genai.TypeObject {
		t.Fatalf("expected object schema, got %v", s.Type)
	}
	for _, key := range []string{"mcqs", "short_answers", "long_answers"} {
		if _, ok := s.Properties[key]; !ok {
			t.Errorf("missing property %q", key)
		}
	}
	if len(s.Required) != 3 {
		t.Errorf("all three lists must be required, got %v", s.Required)
	}
}

func TestEvaluationSchemasShareShape(t *testing.T) {
	for _, s := range []*genai.Schema{BatchEvaluation(), UltimateEvaluation()} {
		evals, ok := s.Properties["evaluations"]
		if !ok {
			t.Fatal("missing evaluations property")
		}
		item := evals.Items
		for _, key := range []string{"question_id", "feedback", "assessment"} {
			if _, ok := item.Properties[key]; !ok {
				t.Errorf("missing evaluation field %q", key)
			}
		}
	}
}

func TestSchemasAreFreshPerCall(t *testing.T) {
	a, _ := For(model.TaskFlashcards)
	b, _ := For(model.TaskFlashcards)
	if a == b {
		t.Error("For must return a fresh schema value per call")
	}
}
