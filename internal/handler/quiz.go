package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studyhub/internal/engine"
	"studyhub/internal/model"
	"studyhub/internal/quiz"
)

// quizTypeLabels maps quiz generation tasks to the labels recorded on
// results.
var quizTypeLabels = map[model.AITask]string{
	model.TaskQuizMCQ:      "MCQ Quiz",
	model.TaskQuizShort:    "Short Answer Quiz",
	model.TaskQuizLong:     "Long Answer Quiz",
	model.TaskUltimateTest: "Ultimate Test",
}

type quizStateResponse struct {
	SessionID string            `json:"session_id"`
	State     quiz.State        `json:"state"`
	Index     int               `json:"index"`
	Total     int               `json:"total"`
	Kind      quiz.QuestionKind `json:"kind"`
	Quiz      model.Quiz        `json:"quiz"`
}

// quizState snapshots a session for the response body. Callers must hold
// qs.mu.
func (h *Handler) quizState(id string, qs *quizSession) quizStateResponse {
	kind, _ := qs.session.Current()
	return quizStateResponse{
		SessionID: id,
		State:     qs.session.State(),
		Index:     qs.session.Index(),
		Total:     qs.session.Len(),
		Kind:      kind,
		Quiz:      qs.session.Quiz(),
	}
}

func (h *Handler) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topicFromRequest(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	label, ok := quizTypeLabels[req.Task]
	if !ok {
		writeError(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}

	source, ok := h.resolveSource(w, r, topic, req.Source)
	if !ok {
		return
	}
	subject, err := h.store.GetSubject(topic.SubjectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	artifact, err := h.engine.Run(r.Context(), req.Task, source, engine.RunContext{
		LearnerContext: h.learnerContext(),
		Subject:        subject.Name,
		Topic:          topic.Title,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	if artifact.Quiz == nil {
		writeError(w, r, http.StatusBadGateway, "error.decode")
		return
	}
	ultimate := req.Task == model.TaskUltimateTest
	session, err := quiz.NewSession(*artifact.Quiz, label, ultimate, h.learnerContext())
	if err != nil {
		writeError(w, r, http.StatusBadGateway, "error.decode")
		return
	}

	id := uuid.NewString()
	qs := &quizSession{session: session, topicID: topic.ID, ultimate: ultimate}
	// Snapshot before publishing so the response never races with requests
	// that find the session in the registry.
	state := h.quizState(id, qs)
	h.mu.Lock()
	h.sessions[id] = qs
	h.mu.Unlock()

	writeJSON(w, http.StatusCreated, state)
}

func (h *Handler) sessionFromRequest(w http.ResponseWriter, r *http.Request) (string, *quizSession, bool) {
	id := chi.URLParam(r, "sessionID")
	h.mu.Lock()
	qs, ok := h.sessions[id]
	h.mu.Unlock()
	if !ok {
		writeError(w, r, http.StatusNotFound, "error.session_not_found")
		return "", nil, false
	}
	return id, qs, true
}

func (h *Handler) handleQuizState(w http.ResponseWriter, r *http.Request) {
	id, qs, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	qs.mu.Lock()
	state := h.quizState(id, qs)
	qs.mu.Unlock()
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleQuizAnswer(w http.ResponseWriter, r *http.Request) {
	id, qs, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Answer string `json:"answer"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	qs.mu.Lock()
	err := qs.session.Answer(req.Answer)
	state := h.quizState(id, qs)
	qs.mu.Unlock()
	if err != nil {
		writeError(w, r, http.StatusConflict, "error.quiz_locked")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleQuizNext(w http.ResponseWriter, r *http.Request) {
	id, qs, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	qs.mu.Lock()
	qs.session.Next()
	state := h.quizState(id, qs)
	qs.mu.Unlock()
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleQuizPrev(w http.ResponseWriter, r *http.Request) {
	id, qs, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	qs.mu.Lock()
	qs.session.Prev()
	state := h.quizState(id, qs)
	qs.mu.Unlock()
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleQuizSubmit(w http.ResponseWriter, r *http.Request) {
	id, qs, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	// The lock covers the whole submission so a second submit arriving
	// mid-grading waits and then sees the results state.
	qs.mu.Lock()
	defer qs.mu.Unlock()
	result, err := qs.session.Submit(r.Context(), h.grader)
	if errors.Is(err, quiz.ErrNotAnswering) {
		writeError(w, r, http.StatusConflict, "error.quiz_locked")
		return
	}
	if err != nil {
		slog.Error("quiz submission failed", "session_id", id, "error", err)
		writeError(w, r, http.StatusBadGateway, "error.grading_failed")
		return
	}

	if err := h.store.AddQuizResult(qs.topicID, *result); err != nil {
		slog.Error("store quiz result", "session_id", id, "error", err)
	}
	h.checkMastery(qs.topicID, result.Score)

	writeJSON(w, http.StatusOK, result)
}

// checkMastery marks a topic done once a quiz reaches its target score.
func (h *Handler) checkMastery(topicID int64, score float64) {
	topic, err := h.store.GetTopic(topicID)
	if err != nil {
		slog.Warn("mastery check", "topic_id", topicID, "error", err)
		return
	}
	if topic.Status != model.TopicDone && score >= topic.TargetScore {
		if err := h.store.UpdateTopicStatus(topicID, model.TopicDone); err != nil {
			slog.Warn("mark topic done", "topic_id", topicID, "error", err)
		}
	}
}

func (h *Handler) handleQuizHistory(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topicFromRequest(w, r)
	if !ok {
		return
	}
	results, err := h.store.ListQuizResults(topic.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []model.QuizResult{}
	}
	writeJSON(w, http.StatusOK, results)
}
