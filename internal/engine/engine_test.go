package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"studyhub/internal/gemini"
	"studyhub/internal/model"
)

// fakeGenerator records every request and replays canned responses.
type fakeGenerator struct {
	requests  []gemini.Request
	responses []*gemini.Response
	err       error
}

func (f *fakeGenerator) Generate(_ context.Context, req gemini.Request) (*gemini.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func textGen(text string) *fakeGenerator {
	return &fakeGenerator{responses: []*gemini.Response{{Text: text}}}
}

func testRunContext() RunContext {
	return RunContext{
		LearnerContext: "College student studying Biology",
		Subject:        "Biology",
		Topic:          "Cell Division",
	}
}

func TestRunRejectsEmptySourceBeforeDispatch(t *testing.T) {
	tests := []struct {
		name   string
		source model.Source
	}{
		{"blank notes", model.NotesSource("   ")},
		{"no files", model.FileSource(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := textGen("never used")
			e := New(gen)
			_, err := e.Run(context.Background(), model.TaskOverview, tt.source, testRunContext())
			if !errors.Is(err, ErrEmptySource) {
				t.Fatalf("expected ErrEmptySource, got %v", err)
			}
			if len(gen.requests) != 0 {
				t.Errorf("no backend call may happen for an empty source, saw %d", len(gen.requests))
			}
		})
	}
}

func TestRunKnowledgeSourceIsAlwaysValid(t *testing.T) {
	gen := textGen("an overview")
	e := New(gen)
	art, err := e.Run(context.Background(), model.TaskOverview, model.KnowledgeSource(), testRunContext())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if art.Kind != ArtifactText || art.Text != "an overview" {
		t.Errorf("unexpected artifact: %+v", art)
	}
}

func TestRunAttachesSchemaForStructuredTasks(t *testing.T) {
	gen := textGen(`[{"front":"f","back":"b"}]`)
	e := New(gen)
	if _, err := e.Run(context.Background(), model.TaskFlashcards, model.NotesSource("mitosis"), testRunContext()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gen.requests[0].Schema == nil {
		t.Error("flashcards request must carry a response schema")
	}
	if gen.requests[0].UseSearch {
		t.Error("structured tasks must not enable search")
	}
}

func TestRunResourcesUsesSearchAndAppendsCitations(t *testing.T) {
	gen := &fakeGenerator{responses: []*gemini.Response{{
		Text: "Here are some resources.",
		Citations: []gemini.Citation{
			{Title: "Khan Academy", URI: "https://khanacademy.org/cell-division"},
			{Title: "Nature Review", URI: "https://nature.com/articles/123"},
		},
	}}}
	e := New(gen)
	art, err := e.Run(context.Background(), model.TaskResources, model.KnowledgeSource(), testRunContext())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !gen.requests[0].UseSearch {
		t.Error("resource search must enable the search tool")
	}
	if gen.requests[0].Schema != nil {
		t.Error("resource search must not carry a schema")
	}
	if !strings.Contains(art.Text, "### **Suggested Resources**") {
		t.Error("citations section missing")
	}
	if !strings.Contains(art.Text, "* [Khan Academy](https://khanacademy.org/cell-division)") {
		t.Errorf("citation not rendered as markdown link: %s", art.Text)
	}
}

func TestRunResourcesWithoutCitations(t *testing.T) {
	gen := textGen("plain answer")
	e := New(gen)
	art, err := e.Run(context.Background(), model.TaskResources, model.KnowledgeSource(), testRunContext())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if art.Text != "plain answer" {
		t.Errorf("text must be returned untouched when no citations exist: %q", art.Text)
	}
}

func TestRunDecodesFlashcards(t *testing.T) {
	gen := textGen("```json\n[{\"front\":\"Mitosis\",\"back\":\"Cell splitting\"}]\n```")
	e := New(gen)
	art, err := e.Run(context.Background(), model.TaskFlashcards, model.NotesSource("notes"), testRunContext())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if art.Kind != ArtifactFlashcards || len(art.Flashcards) != 1 {
		t.Fatalf("unexpected artifact: %+v", art)
	}
	if art.Flashcards[0].Front != "Mitosis" {
		t.Errorf("unexpected card: %+v", art.Flashcards[0])
	}
}

func TestRunFlashcardsDecodeError(t *testing.T) {
	gen := textGen(`{"cards": "nope"}`)
	e := New(gen)
	_, err := e.Run(context.Background(), model.TaskFlashcards, model.NotesSource("notes"), testRunContext())
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestRunQuizMcqInvariants(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"three options", `{"mcqs":[{"question":"q","options":["a","b","c"],"answer":"a","explanation":"e"}]}`},
		{"answer not in options", `{"mcqs":[{"question":"q","options":["a","b","c","d"],"answer":"z","explanation":"e"}]}`},
		{"empty list", `{"mcqs":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(textGen(tt.body))
			_, err := e.Run(context.Background(), model.TaskQuizMCQ, model.NotesSource("notes"), testRunContext())
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestRunQuizMcqValid(t *testing.T) {
	e := New(textGen(`{"mcqs":[{"question":"q","options":["a","b","c","d"],"answer":"b","explanation":"because"}]}`))
	art, err := e.Run(context.Background(), model.TaskQuizMCQ, model.NotesSource("notes"), testRunContext())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if art.Kind != ArtifactQuiz || len(art.Quiz.Mcqs) != 1 {
		t.Fatalf("unexpected artifact: %+v", art)
	}
}

func TestRunUltimateTestRequiresAllTypes(t *testing.T) {
	body := `{"mcqs":[{"question":"q","options":["a","b","c","d"],"answer":"a","explanation":"e"}],"short_answers":[{"question":"s","answer":"a"}]}`
	e := New(textGen(body))
	_, err := e.Run(context.Background(), model.TaskUltimateTest, model.NotesSource("notes"), testRunContext())
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for missing long answers, got %v", err)
	}
}

func TestRunInvalidAttachment(t *testing.T) {
	gen := textGen("unused")
	e := New(gen)
	source := model.FileSource([]model.Attachment{{Name: "broken.pdf"}})
	_, err := e.Run(context.Background(), model.TaskOverview, source, testRunContext())
	if !errors.Is(err, ErrInvalidAttachment) {
		t.Fatalf("expected ErrInvalidAttachment, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken.pdf") {
		t.Errorf("error should name the offending file: %v", err)
	}
	if len(gen.requests) != 0 {
		t.Error("no backend call may happen for an invalid attachment")
	}
}

func TestRunPropagatesRateLimit(t *testing.T) {
	e := New(&fakeGenerator{err: gemini.ErrRateLimited})
	_, err := e.Run(context.Background(), model.TaskOverview, model.KnowledgeSource(), testRunContext())
	if !errors.Is(err, gemini.ErrRateLimited) {
		t.Fatalf("expected rate limit to propagate, got %v", err)
	}
}

func TestRunRejectsNonGenerationTasks(t *testing.T) {
	for _, task := range []model.AITask{model.TaskQuizFeedback, model.TaskPDFAnalysis, model.TaskAudioAnalysis} {
		e := New(textGen("unused"))
		if _, err := e.Run(context.Background(), task, model.KnowledgeSource(), testRunContext()); err == nil {
			t.Errorf("task %s must be rejected by Run", task)
		}
	}
}

func TestExtractSyllabus(t *testing.T) {
	gen := textGen(`{"topics":[{"title":"Unit 1: Cells","sub_topics":["Mitosis","Meiosis"]}]}`)
	e := New(gen)
	image := model.Attachment{Name: "syllabus.png", MIMEType: "image/png", Data: []byte{1, 2, 3}}
	topics, err := e.ExtractSyllabus(context.Background(), "Biology", image)
	if err != nil {
		t.Fatalf("ExtractSyllabus: %v", err)
	}
	if len(topics) != 1 || topics[0].Title != "Unit 1: Cells" || len(topics[0].SubTopics) != 2 {
		t.Errorf("unexpected topics: %+v", topics)
	}
	if gen.requests[0].Schema == nil {
		t.Error("syllabus extraction must carry a schema")
	}
}

func TestAnalyzeTranscriptMergesCitations(t *testing.T) {
	gen := &fakeGenerator{responses: []*gemini.Response{{
		Text:      `{"summary":"s","strongPoints":"sp","weakPoints":"wp","hyperlinks":"* [a](https://a)"}`,
		Citations: []gemini.Citation{{Title: "Extra", URI: "https://extra.example"}},
	}}}
	e := New(gen)
	analysis, err := e.AnalyzeTranscript(context.Background(), "today we covered mitosis", testRunContext())
	if err != nil {
		t.Fatalf("AnalyzeTranscript: %v", err)
	}
	if !strings.Contains(analysis.Hyperlinks, "**Additional Resources Found:**") {
		t.Error("citations should be appended to hyperlinks")
	}
	if !strings.Contains(analysis.Hyperlinks, "* [Extra](https://extra.example)") {
		t.Errorf("citation missing: %s", analysis.Hyperlinks)
	}
}

func TestAnalyzeTranscriptEmpty(t *testing.T) {
	e := New(textGen("unused"))
	if _, err := e.AnalyzeTranscript(context.Background(), "  ", testRunContext()); !errors.Is(err, ErrEmptySource) {
		t.Fatalf("expected ErrEmptySource, got %v", err)
	}
}

func TestAnalyzePDFsRequiresFiles(t *testing.T) {
	e := New(textGen("unused"))
	if _, err := e.AnalyzePDFs(context.Background(), nil, testRunContext()); !errors.Is(err, ErrEmptySource) {
		t.Fatalf("expected ErrEmptySource, got %v", err)
	}
}
