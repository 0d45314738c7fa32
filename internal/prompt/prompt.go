// Package prompt maps (task, source, learner context) tuples to the
// instruction strings sent to the generation backend. The numeric ranges
// embedded in the templates (card counts, question counts, word limits) are
// part of the generation contract and must reach the backend unchanged.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"studyhub/internal/model"
)

// noAnswerMarker is inserted when the learner left an answer blank.
const noAnswerMarker = "The student did not provide an answer."

const maxAnswerRunes = 10000

var (
	answerTagRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	instructionTagRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// Input collects everything the task templates interpolate.
type Input struct {
	Task            model.AITask
	Source          model.Source
	LearnerContext  string
	Subject         string
	Topic           string
	RevisionContext string
}

// Build renders the instruction string for a generation task. The revision
// context is honored only by the in-depth explanation task; other tasks
// ignore it.
func Build(in Input) string {
	contextInstruction := fmt.Sprintf("The user is a %s. Tailor the response to be perfectly suitable for their level and context.", in.LearnerContext)
	topicContext := fmt.Sprintf("The user is studying the topic %q within the subject %q.", in.Topic, in.Subject)
	sourceInstruction := sourceInstructionFor(in.Source)

	revisionInstruction := ""
	if in.RevisionContext != "" {
		revisionInstruction = " IMPORTANT: The user has previously struggled with certain concepts. Pay special attention to providing a clear and simple explanation for the topics related to the following: " + in.RevisionContext
	}

	switch in.Task {
	case model.TaskOverview:
		return fmt.Sprintf("%s %s Provide a concise, high-level overview. It should be a summary that captures the main concepts, key terms, and the essence of the topic. %s", contextInstruction, topicContext, sourceInstruction)
	case model.TaskInDepth:
		return fmt.Sprintf("%s %s Provide a comprehensive, in-depth explanation, between 1000 and 4000 words. Structure the explanation with clear headings and paragraphs. Break down complex concepts, elaborate on key points, and explain the underlying principles in detail. Use analogies if helpful. %s%s", contextInstruction, topicContext, sourceInstruction, revisionInstruction)
	case model.TaskKeyTakeaways:
		return fmt.Sprintf("%s %s Create a detailed \"quick revision\" summary. It must include: a list of the most critical key takeaways, a list of important keywords with definitions, and simple ASCII diagrams or flowcharts to visually represent core concepts for effective revision. %s", contextInstruction, topicContext, sourceInstruction)
	case model.TaskAnecdotes:
		return fmt.Sprintf("%s %s Generate clever and memorable learning aids. Include acronyms, simple anecdotes, and learning hacks to help remember key terms and concepts. %s", contextInstruction, topicContext, sourceInstruction)
	case model.TaskResources:
		return fmt.Sprintf("%s %s Find 5-10 relevant, helpful, and high-quality learning resources on the web. Provide direct hyperlinks to specific articles, blogs, research papers, or free online courses, not just homepages. %s", contextInstruction, topicContext, sourceInstruction)
	case model.TaskFlashcards:
		return fmt.Sprintf("%s %s Generate a set of 15-25 high-quality flashcards. Each flashcard should have a clear 'front' (a question or term) and a concise 'back' (the answer or definition). %s", contextInstruction, topicContext, sourceInstruction)
	case model.TaskQuizMCQ:
		return fmt.Sprintf("%s %s Generate a challenging multiple-choice quiz with 10-15 questions. Each question must have 4 options, a single correct answer, and a brief, clear explanation for why the correct answer is correct. %s", contextInstruction, topicContext, sourceInstruction)
	case model.TaskQuizShort:
		return fmt.Sprintf("%s %s Generate a quiz with 5-8 short-answer questions. The expected answer for each question should be up to 100 words. Provide a model correct answer for each question. %s", contextInstruction, topicContext, sourceInstruction)
	case model.TaskQuizLong:
		return fmt.Sprintf("%s %s Generate a quiz with 3-5 long-answer or essay-style questions. The expected answer for each question should be between 300 and 700 words. For each question, provide a list of key points the answer should cover and a concise model answer. %s", contextInstruction, topicContext, sourceInstruction)
	case model.TaskUltimateTest:
		return fmt.Sprintf("%s %s Generate a comprehensive 'Ultimate Test'. It must contain a balanced mix of 10-15 multiple-choice questions (each with an explanation), 5-8 short-answer questions, and 3-5 long-answer questions to thoroughly assess the user's understanding. %s", contextInstruction, topicContext, sourceInstruction)
	case model.TaskFlowchart:
		return fmt.Sprintf("%s %s Generate a detailed and well-structured ASCII flowchart to visually represent the core processes, sequences, or decision points of the topic. Use standard ASCII characters like ->, +, |, etc. %s", contextInstruction, topicContext, sourceInstruction)
	case model.TaskDiagram:
		return fmt.Sprintf("%s %s Generate a helpful ASCII diagram to illustrate the key components, structures, or relationships within the topic. Label the parts clearly. %s", contextInstruction, topicContext, sourceInstruction)
	default:
		// Not a direct generation task; there is no prompt for it.
		return ""
	}
}

// sourceInstructionFor renders the three-way source branch. The knowledge
// variant instructs the model never to disclose that it generated the
// content from its own knowledge.
func sourceInstructionFor(s model.Source) string {
	switch s.Kind {
	case model.SourceFiles:
		return "Base your response on the content of the attached file(s)."
	case model.SourceNotes:
		return fmt.Sprintf("Base your response on the following notes: %q", s.Notes)
	default:
		return "You are a world-class educator with decades of experience. Generate the content based on your own deep knowledge of the subject. Do not mention that you are generating this from your own knowledge; simply provide the content directly."
	}
}

// BuildSyllabus renders the syllabus-image extraction instruction.
func BuildSyllabus(subjectName string) string {
	return fmt.Sprintf("You are an expert academic assistant. Analyze the provided syllabus image for the subject '%s'. Your task is to meticulously identify and extract all distinct units or sections. For each unit, you must extract: 1. The full title, including the unit number (e.g., \"Unit 1: Introduction\"). Correct any spelling mistakes you find. 2. A list of all the sub-topics, keywords, or concepts listed under that main title. Return the data as a clean JSON object that adheres to the provided schema. Ignore page numbers or any other metadata not related to topics or sub-topics.", subjectName)
}

// EvalQuestion is one short or long answer question prepared for batch
// evaluation. ModelAnswer is set for short answers, KeyPoints for long ones.
type EvalQuestion struct {
	Question    string
	ModelAnswer string
	KeyPoints   []string
	UserAnswer  string
}

// BuildBatchEval renders the single-call grading prompt for all short and
// long answers. Question IDs are the zero-based positions in the given
// slice; the evaluator must echo them back. The strict variant uses the
// terser ultimate-test rubric.
func BuildBatchEval(questions []EvalQuestion, learnerContext string, strict bool) string {
	var listing strings.Builder
	for i, q := range questions {
		listing.WriteString(formatEvalQuestion(i, q))
		listing.WriteString("\n")
	}

	if strict {
		return fmt.Sprintf(`You are a strict but fair examiner grading a final, comprehensive 'Ultimate Test'. Your task is to evaluate a student's answers for the following list of questions, each identified by a "Question ID". The user is a %s.

Here are the questions, model answers/key points, and the student's answers:
%s
For each question, perform the following:
1. Compare the student's answer to the model answer/key points.
2. Provide a very brief, one-sentence justification for your assessment.
3. Give a single-word assessment: 'correct', 'incorrect', or 'needs_more_work'. Use 'needs_more_work' for answers that are on the right track but are incomplete or miss key details.

Return the result ONLY as a single JSON object adhering to the provided schema. The 'evaluations' array must contain one evaluation object for each question provided, using the original "Question ID".`, learnerContext, listing.String())
	}

	return fmt.Sprintf(`You are an expert and friendly examiner. Your task is to evaluate a student's answers for the following list of questions, each identified by a "Question ID". The user is a %s.

Here are the questions, model answers/key points, and the student's answers:
%s
Please perform the following for each question:
1. Compare the student's answer to the model answer/key points.
2. Provide concise, constructive, and encouraging feedback in markdown format. If no answer was given, explain what a good answer would contain.
3. Give a one-word assessment of the student's answer: 'correct', 'partially_correct', or 'incorrect'.

Return the result ONLY as a single JSON object adhering to the provided schema. The 'evaluations' array must contain one evaluation object for each question provided, using the original "Question ID".`, learnerContext, listing.String())
}

func formatEvalQuestion(index int, q EvalQuestion) string {
	modelAnswerText := fmt.Sprintf("Model Answer: %q", q.ModelAnswer)
	if len(q.KeyPoints) > 0 {
		modelAnswerText = "Key Points to Cover: " + strings.Join(q.KeyPoints, ", ")
	}
	studentAnswerText := noAnswerMarker
	if answer := SanitizeAnswer(q.UserAnswer); answer != "" {
		studentAnswerText = fmt.Sprintf("Student's Answer: %q", answer)
	}
	return fmt.Sprintf("\n---\nQuestion ID: %d\nQuestion: %q\n%s\n%s\n---", index, q.Question, modelAnswerText, studentAnswerText)
}

// SanitizeAnswer strips tag sequences a learner could use to smuggle
// instructions into the grading prompt and truncates overlong answers.
// Blank answers come back as the empty string.
func SanitizeAnswer(answer string) string {
	answer = answerTagRegex.ReplaceAllString(answer, "")
	answer = instructionTagRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}
	return answer
}

// BuildFeedbackSummary renders the performance-summary prompt from the
// serialized graded quiz state.
func BuildFeedbackSummary(quizJSON, learnerContext string) string {
	return fmt.Sprintf(`You are an expert learning coach. A %s has just completed a quiz. Here is their performance data:
%s

Based on this data, please generate a comprehensive and encouraging feedback summary as a JSON object. The summary MUST be well-structured and adhere to the provided schema. It must include the following sections:
- An overall performance summary.
- A brief analysis for each question type that was present in the quiz (MCQ, Short Answer, Long Answer).
- A bulleted list of key strengths, identifying specific concepts the user understands well.
- A bulleted list of areas for improvement, detailing specific concepts where the user struggled and providing actionable suggestions for review.`, learnerContext, quizJSON)
}

// BuildRefine renders the rewrite-with-feedback prompt.
func BuildRefine(originalResponse, userFeedback, learnerContext string) string {
	return fmt.Sprintf(`You are a helpful AI assistant. A %s was given the following information:
--- ORIGINAL RESPONSE ---
%s
--- END ORIGINAL RESPONSE ---

The user was not fully satisfied and provided this feedback: %q.

Your task is to rewrite the original response, taking the user's feedback into account to better meet their needs. Provide only the new, refined response.`, learnerContext, originalResponse, userFeedback)
}

// BuildPDFAnalysis renders the topic-relevance summary prompt for attached
// PDF files.
func BuildPDFAnalysis(learnerContext, subjectName, topicTitle string) string {
	return fmt.Sprintf(`You are an expert research assistant. A %s is studying the topic %q for the subject %q. Your task is to analyze the content of the attached PDF file(s).

Read through all the provided text and extract ONLY the information that is directly relevant to the topic %q.

Synthesize the extracted information into a coherent and well-structured summary. Use markdown for formatting, including headings, bullet points, and bold text to organize the content effectively. Ignore any irrelevant sections from the PDFs. Provide only the summary.`, learnerContext, topicTitle, subjectName, topicTitle)
}

// BuildTranscriptAnalysis renders the lecture-transcript study guide prompt.
func BuildTranscriptAnalysis(transcript, learnerContext, topicTitle string) string {
	return fmt.Sprintf(`You are an expert academic coach. A %s is studying the topic %q and has provided a transcript from a lecture or audio note.

Your task is to analyze the following transcript and provide a structured learning guide.

Transcript: """
%s
"""

Based on the transcript, please generate:
1. A concise summary of the main topics discussed.
2. A list of "Strong Points": concepts that, if understood, indicate a good grasp of the material.
3. A list of "Areas for Improvement": complex or nuanced concepts that the student might need to review.
4. A list of 3-5 high-quality, relevant hyperlinks to external resources (articles, videos, tutorials) that would help the student better understand the "Areas for Improvement".

Return the result as a JSON object adhering to the provided schema.`, learnerContext, topicTitle, transcript)
}
