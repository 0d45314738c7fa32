// Package engine turns AI task invocations into backend requests and decodes
// the responses into typed artifacts. Every call is a fresh generation;
// nothing is cached between invocations.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"studyhub/internal/gemini"
	"studyhub/internal/model"
	"studyhub/internal/prompt"
	"studyhub/internal/schema"
)

var (
	// ErrEmptySource means the selected source carries no content. The
	// request is rejected before any backend call.
	ErrEmptySource = errors.New("selected source has no content")
	// ErrDecode means the backend's structured response did not match the
	// task's schema.
	ErrDecode = errors.New("response did not match the expected structure")
	// ErrInvalidAttachment means a file payload could not be used as an
	// inline request part.
	ErrInvalidAttachment = errors.New("invalid attachment")
)

// Generator dispatches one generation request. *gemini.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, req gemini.Request) (*gemini.Response, error)
}

// RunContext carries the learner and topic framing for one invocation.
type RunContext struct {
	LearnerContext  string
	Subject         string
	Topic           string
	RevisionContext string
}

// ArtifactKind tags the variant held by an Artifact.
type ArtifactKind string

const (
	ArtifactText       ArtifactKind = "text"
	ArtifactFlashcards ArtifactKind = "flashcards"
	ArtifactQuiz       ArtifactKind = "quiz"
)

// Artifact is the typed result of one task run.
type Artifact struct {
	Kind       ArtifactKind      `json:"kind"`
	Text       string            `json:"text,omitempty"`
	Flashcards []model.Flashcard `json:"flashcards,omitempty"`
	Quiz       *model.Quiz       `json:"quiz,omitempty"`
}

// Engine orchestrates task execution. It is stateless per call.
type Engine struct {
	gen Generator
}

// New creates an Engine backed by the given generator.
func New(gen Generator) *Engine {
	return &Engine{gen: gen}
}

// Run executes one generation task and decodes the result. Grading and
// analysis operations have dedicated methods; Run rejects their task IDs.
func (e *Engine) Run(ctx context.Context, task model.AITask, source model.Source, rc RunContext) (*Artifact, error) {
	switch task {
	case model.TaskQuizFeedback, model.TaskPDFAnalysis, model.TaskAudioAnalysis:
		return nil, fmt.Errorf("task %s is not a direct generation task", task)
	}

	if err := source.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptySource, err)
	}

	parts := []*genai.Part{{Text: prompt.Build(prompt.Input{
		Task:            task,
		Source:          source,
		LearnerContext:  rc.LearnerContext,
		Subject:         rc.Subject,
		Topic:           rc.Topic,
		RevisionContext: rc.RevisionContext,
	})}}
	if source.Kind == model.SourceFiles {
		fileParts, err := attachmentParts(source.Files)
		if err != nil {
			return nil, err
		}
		parts = append(parts, fileParts...)
	}

	req := gemini.Request{Parts: parts}
	responseSchema, structured := schema.For(task)
	switch {
	case structured:
		req.Schema = responseSchema
	case task == model.TaskResources:
		req.UseSearch = true
	default:
		req.Temperature = genai.Ptr(float32(0.7))
	}

	resp, err := e.gen.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("run task %s: %w", task, err)
	}
	slog.Debug("task response received", "task", task, "chars", len(resp.Text), "citations", len(resp.Citations))

	switch task {
	case model.TaskFlashcards:
		return decodeFlashcards(resp.Text)
	case model.TaskQuizMCQ, model.TaskQuizShort, model.TaskQuizLong, model.TaskUltimateTest:
		return decodeQuiz(task, resp.Text)
	case model.TaskResources:
		return &Artifact{Kind: ArtifactText, Text: appendResourceLinks(resp.Text, resp.Citations)}, nil
	default:
		return &Artifact{Kind: ArtifactText, Text: resp.Text}, nil
	}
}

// ExtractSyllabus pulls the topic list out of a syllabus image. Title
// deduplication and topic-count ceilings are the caller's policy.
func (e *Engine) ExtractSyllabus(ctx context.Context, subjectName string, image model.Attachment) ([]model.SyllabusTopic, error) {
	parts, err := attachmentParts([]model.Attachment{image})
	if err != nil {
		return nil, err
	}
	parts = append([]*genai.Part{{Text: prompt.BuildSyllabus(subjectName)}}, parts...)

	resp, err := e.gen.Generate(ctx, gemini.Request{Parts: parts, Schema: schema.Syllabus()})
	if err != nil {
		return nil, fmt.Errorf("extract syllabus: %w", err)
	}

	var out struct {
		Topics []model.SyllabusTopic `json:"topics"`
	}
	if err := json.Unmarshal([]byte(stripFences(resp.Text)), &out); err != nil {
		return nil, fmt.Errorf("%w: syllabus topics: %v", ErrDecode, err)
	}
	return out.Topics, nil
}

// Refine rewrites a previous response according to the learner's feedback.
func (e *Engine) Refine(ctx context.Context, originalResponse, userFeedback, learnerContext string) (string, error) {
	resp, err := e.gen.Generate(ctx, gemini.Request{
		Parts:       []*genai.Part{{Text: prompt.BuildRefine(originalResponse, userFeedback, learnerContext)}},
		Temperature: genai.Ptr(float32(0.6)),
	})
	if err != nil {
		return "", fmt.Errorf("refine response: %w", err)
	}
	return resp.Text, nil
}

// AnalyzePDFs produces a topic-relevance summary of the attached PDFs.
func (e *Engine) AnalyzePDFs(ctx context.Context, files []model.Attachment, rc RunContext) (string, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("%w: no PDF files provided for analysis", ErrEmptySource)
	}
	parts, err := attachmentParts(files)
	if err != nil {
		return "", err
	}
	parts = append([]*genai.Part{{Text: prompt.BuildPDFAnalysis(rc.LearnerContext, rc.Subject, rc.Topic)}}, parts...)

	resp, err := e.gen.Generate(ctx, gemini.Request{Parts: parts, Temperature: genai.Ptr(float32(0.5))})
	if err != nil {
		return "", fmt.Errorf("analyze PDFs: %w", err)
	}
	return resp.Text, nil
}

// AnalyzeTranscript turns a lecture transcript into a structured study
// guide. Citations returned by the backend are merged into the hyperlinks
// section.
func (e *Engine) AnalyzeTranscript(ctx context.Context, transcript string, rc RunContext) (*model.AudioAnalysis, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("%w: transcript is empty", ErrEmptySource)
	}

	resp, err := e.gen.Generate(ctx, gemini.Request{
		Parts:       []*genai.Part{{Text: prompt.BuildTranscriptAnalysis(transcript, rc.LearnerContext, rc.Topic)}},
		Schema:      schema.AudioAnalysis(),
		Temperature: genai.Ptr(float32(0.5)),
	})
	if err != nil {
		return nil, fmt.Errorf("analyze transcript: %w", err)
	}

	var analysis model.AudioAnalysis
	if err := json.Unmarshal([]byte(stripFences(resp.Text)), &analysis); err != nil {
		return nil, fmt.Errorf("%w: audio analysis: %v", ErrDecode, err)
	}

	if links := formatCitations(resp.Citations); links != "" {
		if strings.TrimSpace(analysis.Hyperlinks) != "" {
			analysis.Hyperlinks += "\n\n**Additional Resources Found:**\n" + links
		} else {
			analysis.Hyperlinks = "**Additional Resources Found:**\n" + links
		}
	}
	return &analysis, nil
}

func attachmentParts(files []model.Attachment) ([]*genai.Part, error) {
	parts := make([]*genai.Part, 0, len(files))
	for _, f := range files {
		if len(f.Data) == 0 || f.MIMEType == "" {
			return nil, fmt.Errorf("%w: file %q has no decodable payload", ErrInvalidAttachment, f.Name)
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: f.MIMEType, Data: f.Data}})
	}
	return parts, nil
}

func decodeFlashcards(text string) (*Artifact, error) {
	var cards []model.Flashcard
	if err := json.Unmarshal([]byte(stripFences(text)), &cards); err != nil {
		return nil, fmt.Errorf("%w: flashcards: %v", ErrDecode, err)
	}
	for i, c := range cards {
		if c.Front == "" || c.Back == "" {
			return nil, fmt.Errorf("%w: flashcard %d is missing front or back", ErrDecode, i)
		}
	}
	return &Artifact{Kind: ArtifactFlashcards, Flashcards: cards}, nil
}

func decodeQuiz(task model.AITask, text string) (*Artifact, error) {
	var quiz model.Quiz
	if err := json.Unmarshal([]byte(stripFences(text)), &quiz); err != nil {
		return nil, fmt.Errorf("%w: quiz: %v", ErrDecode, err)
	}

	switch task {
	case model.TaskQuizMCQ:
		if len(quiz.Mcqs) == 0 {
			return nil, fmt.Errorf("%w: quiz has no multiple choice questions", ErrDecode)
		}
	case model.TaskQuizShort:
		if len(quiz.ShortAnswers) == 0 {
			return nil, fmt.Errorf("%w: quiz has no short answer questions", ErrDecode)
		}
	case model.TaskQuizLong:
		if len(quiz.LongAnswers) == 0 {
			return nil, fmt.Errorf("%w: quiz has no long answer questions", ErrDecode)
		}
	case model.TaskUltimateTest:
		if len(quiz.Mcqs) == 0 || len(quiz.ShortAnswers) == 0 || len(quiz.LongAnswers) == 0 {
			return nil, fmt.Errorf("%w: ultimate test must contain all three question types", ErrDecode)
		}
	}

	if err := validateMcqs(quiz.Mcqs); err != nil {
		return nil, err
	}
	return &Artifact{Kind: ArtifactQuiz, Quiz: &quiz}, nil
}

// validateMcqs enforces the MCQ invariants: exactly four options and the
// answer present among them. Violations are decode failures, never fixed up.
func validateMcqs(mcqs []model.McqQuestion) error {
	for i, q := range mcqs {
		if len(q.Options) != 4 {
			return fmt.Errorf("%w: question %d has %d options, want 4", ErrDecode, i, len(q.Options))
		}
		found := false
		for _, opt := range q.Options {
			if opt == q.Answer {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: question %d answer is not among its options", ErrDecode, i)
		}
	}
	return nil
}

func appendResourceLinks(text string, citations []gemini.Citation) string {
	links := formatCitations(citations)
	if links == "" {
		return text
	}
	return text + "\n\n### **Suggested Resources**\n" + links
}

func formatCitations(citations []gemini.Citation) string {
	var lines []string
	for _, c := range citations {
		lines = append(lines, fmt.Sprintf("* [%s](%s)", c.Title, c.URI))
	}
	return strings.Join(lines, "\n")
}

// stripFences removes a markdown code fence wrapper if the model added one
// around its JSON output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}
