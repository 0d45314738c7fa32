// Package schema declares the structured output shapes the generation
// backend must produce for each task. Every call builds a fresh schema
// value; nothing here is cached or mutated between calls.
package schema

import (
	"google.golang.org/genai"

	"studyhub/internal/model"
)

// For returns the response schema for a structured task, or false for
// free-text tasks whose raw markdown output is returned unprocessed.
func For(task model.AITask) (*genai.Schema, bool) {
	switch task {
	case model.TaskFlashcards:
		return Flashcards(), true
	case model.TaskQuizMCQ:
		return MCQQuiz(), true
	case model.TaskQuizShort:
		return ShortAnswerQuiz(), true
	case model.TaskQuizLong:
		return LongAnswerQuiz(), true
	case model.TaskUltimateTest:
		return UltimateTest(), true
	case model.TaskQuizFeedback:
		return QuizFeedback(), true
	case model.TaskAudioAnalysis:
		return AudioAnalysis(), true
	default:
		return nil, false
	}
}

// Flashcards is an array of front/back card objects.
func Flashcards() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"front": {Type: genai.TypeString, Description: "The front of the flashcard (question/term)."},
				"back":  {Type: genai.TypeString, Description: "The back of the flashcard (answer/definition)."},
			},
			Required: []string{"front", "back"},
		},
	}
}

func mcqList() *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Description: "Multiple choice questions.",
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"question":    {Type: genai.TypeString},
				"options":     {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				"answer":      {Type: genai.TypeString},
				"explanation": {Type: genai.TypeString, Description: "A brief, clear explanation of why the correct answer is correct."},
			},
			Required: []string{"question", "options", "answer", "explanation"},
		},
	}
}

func shortAnswerList() *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Description: "Short answer questions.",
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"question": {Type: genai.TypeString},
				"answer":   {Type: genai.TypeString, Description: "A concise, correct answer."},
			},
			Required: []string{"question", "answer"},
		},
	}
}

func longAnswerList() *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Description: "Long answer questions that require detailed explanations.",
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"question":        {Type: genai.TypeString},
				"points_to_cover": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}, Description: "A list of key points the user's answer should include."},
				"modelAnswer":     {Type: genai.TypeString, Description: "A concise model answer that covers the key points."},
			},
			Required: []string{"question", "points_to_cover", "modelAnswer"},
		},
	}
}

// MCQQuiz wraps a list of multiple choice questions.
func MCQQuiz() *genai.Schema {
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{"mcqs": mcqList()},
		Required:   []string{"mcqs"},
	}
}

// ShortAnswerQuiz wraps a list of short answer questions.
func ShortAnswerQuiz() *genai.Schema {
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{"short_answers": shortAnswerList()},
		Required:   []string{"short_answers"},
	}
}

// LongAnswerQuiz wraps a list of long answer questions.
func LongAnswerQuiz() *genai.Schema {
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{"long_answers": longAnswerList()},
		Required:   []string{"long_answers"},
	}
}

// UltimateTest combines all three question lists; all are required.
func UltimateTest() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"mcqs":          mcqList(),
			"short_answers": shortAnswerList(),
			"long_answers":  longAnswerList(),
		},
		Required: []string{"mcqs", "short_answers", "long_answers"},
	}
}

// Syllabus describes the topic list extracted from a syllabus image.
func Syllabus() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"topics": {
				Type:        genai.TypeArray,
				Description: "An array of topic objects extracted from the syllabus.",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"title": {Type: genai.TypeString, Description: `The main title of the topic, including the unit number (e.g., "Unit 1: Introduction"). Must be clear, concise, and grammatically correct.`},
						"sub_topics": {
							Type:        genai.TypeArray,
							Description: "A list of key concepts, keywords, or sub-topics listed under the main topic title.",
							Items:       &genai.Schema{Type: genai.TypeString},
						},
					},
					Required: []string{"title", "sub_topics"},
				},
			},
		},
		Required: []string{"topics"},
	}
}

func evaluations(feedbackDesc, assessmentDesc string) *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"evaluations": {
				Type:        genai.TypeArray,
				Description: "An array of evaluation objects for each question.",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"question_id": {Type: genai.TypeNumber, Description: "The original index (0, 1, 2, ...) of the question being evaluated."},
						"feedback":    {Type: genai.TypeString, Description: feedbackDesc},
						"assessment":  {Type: genai.TypeString, Description: assessmentDesc},
					},
					Required: []string{"question_id", "feedback", "assessment"},
				},
			},
		},
		Required: []string{"evaluations"},
	}
}

// BatchEvaluation is the standard grading result shape.
func BatchEvaluation() *genai.Schema {
	return evaluations(
		"Constructive feedback for the student's answer.",
		"A single-word assessment: 'correct', 'partially_correct', or 'incorrect'.",
	)
}

// UltimateEvaluation is the stricter ultimate-test grading result shape.
func UltimateEvaluation() *genai.Schema {
	return evaluations(
		"A very brief, one-sentence justification for the assessment.",
		"A single-word assessment: 'correct', 'incorrect', or 'needs_more_work'.",
	)
}

// QuizFeedback is the aggregate performance summary shape.
func QuizFeedback() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"overallSummary": {Type: genai.TypeString, Description: "A brief, encouraging overview of the user's performance."},
			"analysisByQuestionType": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"mcq":   {Type: genai.TypeString, Description: "Analysis of MCQ performance. Omit if not present."},
					"short": {Type: genai.TypeString, Description: "Analysis of short answer performance. Omit if not present."},
					"long":  {Type: genai.TypeString, Description: "Analysis of long answer performance. Omit if not present."},
				},
			},
			"keyStrengths": {
				Type:        genai.TypeArray,
				Description: "A list of specific concepts the user seems to understand well.",
				Items:       &genai.Schema{Type: genai.TypeString},
			},
			"areasForImprovement": {
				Type:        genai.TypeArray,
				Description: "A list of specific concepts where the user struggled.",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"concept":    {Type: genai.TypeString, Description: "The concept the user needs to work on."},
						"suggestion": {Type: genai.TypeString, Description: "A brief, clear explanation and a suggested action (e.g., 'Generate an In-depth Explanation for...')."},
					},
					Required: []string{"concept", "suggestion"},
				},
			},
		},
		Required: []string{"overallSummary", "analysisByQuestionType", "keyStrengths", "areasForImprovement"},
	}
}

// AudioAnalysis is the transcript study guide shape.
func AudioAnalysis() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary":      {Type: genai.TypeString, Description: "A concise summary of the main topics discussed in the transcript. Use markdown for formatting."},
			"strongPoints": {Type: genai.TypeString, Description: "A list of concepts from the transcript that a student should feel confident about if they understood them. Use markdown bullet points."},
			"weakPoints":   {Type: genai.TypeString, Description: "A list of complex or nuanced concepts from the transcript that a student might need to review. Use markdown bullet points."},
			"hyperlinks":   {Type: genai.TypeString, Description: "A markdown-formatted list of 3-5 high-quality, relevant hyperlinks to external resources (articles, videos, tutorials) that would help a student better understand the weak points mentioned."},
		},
		Required: []string{"summary", "strongPoints", "weakPoints", "hyperlinks"},
	}
}
