package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"studyhub/internal/engine"
	"studyhub/internal/gemini"
	"studyhub/internal/grading"
	"studyhub/internal/i18n"
	"studyhub/internal/model"
	"studyhub/internal/quiz"
	"studyhub/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	engine *engine.Engine
	grader *grading.Pipeline

	mu       sync.Mutex
	sessions map[string]*quizSession
}

// quizSession pairs a session with the topic it grades into. mu serializes
// all access to session, which is not safe for concurrent use on its own.
type quizSession struct {
	mu       sync.Mutex
	session  *quiz.Session
	topicID  int64
	ultimate bool
}

// New creates a new Handler.
func New(s *store.Store, e *engine.Engine, g *grading.Pipeline) *Handler {
	return &Handler{store: s, engine: e, grader: g, sessions: make(map[string]*quizSession)}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/profile", h.handleGetProfile)
	r.Put("/profile", h.handlePutProfile)

	r.Get("/subjects", h.handleListSubjects)
	r.Post("/subjects", h.handleCreateSubject)
	r.Get("/subjects/{subjectID}", h.handleGetSubject)
	r.Post("/subjects/{subjectID}/topics", h.handleCreateTopic)
	r.Post("/subjects/{subjectID}/syllabus", h.handleImportSyllabus)

	r.Get("/topics/{topicID}", h.handleGetTopic)
	r.Put("/topics/{topicID}/notes", h.handleUpdateNotes)
	r.Put("/topics/{topicID}/target-score", h.handleUpdateTargetScore)

	r.Get("/topics/{topicID}/attachments", h.handleListAttachments)
	r.Post("/topics/{topicID}/attachments", h.handleUploadAttachment)
	r.Delete("/topics/{topicID}/attachments/{name}", h.handleDeleteAttachment)

	r.Post("/topics/{topicID}/generate", h.handleGenerate)
	r.Post("/topics/{topicID}/refine", h.handleRefine)
	r.Post("/topics/{topicID}/pdf-analysis", h.handlePDFAnalysis)
	r.Post("/topics/{topicID}/audio-analysis", h.handleAudioAnalysis)

	r.Get("/topics/{topicID}/saved", h.handleListSaved)
	r.Post("/topics/{topicID}/saved", h.handleSaveContent)
	r.Delete("/saved/{contentID}", h.handleDeleteSaved)

	r.Get("/topics/{topicID}/quizzes", h.handleQuizHistory)
	r.Post("/topics/{topicID}/quiz", h.handleStartQuiz)
	r.Get("/quiz/{sessionID}", h.handleQuizState)
	r.Post("/quiz/{sessionID}/answer", h.handleQuizAnswer)
	r.Post("/quiz/{sessionID}/next", h.handleQuizNext)
	r.Post("/quiz/{sessionID}/prev", h.handleQuizPrev)
	r.Post("/quiz/{sessionID}/submit", h.handleQuizSubmit)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, errorResponse{Error: i18n.T(r.Context(), msgID)})
}

// writeEngineError maps generation and grading failures to HTTP responses.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gemini.ErrRateLimited):
		writeError(w, r, http.StatusTooManyRequests, "error.rate_limited")
	case errors.Is(err, engine.ErrEmptySource):
		writeError(w, r, http.StatusBadRequest, "error.empty_source")
	case errors.Is(err, engine.ErrInvalidAttachment):
		writeError(w, r, http.StatusBadRequest, "error.invalid_attachment")
	case errors.Is(err, engine.ErrDecode):
		writeError(w, r, http.StatusBadGateway, "error.decode")
	default:
		slog.Error("generation failed", "error", err)
		writeError(w, r, http.StatusBadGateway, "error.backend")
	}
}

func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "error.invalid_request")
		return false
	}
	return true
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetProfile()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var p model.Profile
	if !decodeBody(w, r, &p) {
		return
	}
	if err := h.store.SaveProfile(p); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.store.ListSubjects()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if subjects == nil {
		subjects = []model.Subject{}
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (h *Handler) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}
	id, err := h.store.CreateSubject(req.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, model.Subject{ID: id, Name: req.Name})
}

func (h *Handler) handleGetSubject(w http.ResponseWriter, r *http.Request) {
	subjectID, err := idParam(r, "subjectID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}
	sub, err := h.store.GetSubject(subjectID)
	if err == sql.ErrNoRows {
		writeError(w, r, http.StatusNotFound, "error.not_found")
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	topics, err := h.store.ListTopics(subjectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sub.Topics = topics
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	subjectID, err := idParam(r, "subjectID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeError(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}
	topic := model.Topic{SubjectID: subjectID, Title: req.Title, Description: req.Description}
	id, err := h.store.CreateTopic(topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	created, err := h.store.GetTopic(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topicFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

func (h *Handler) handleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topicFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.store.UpdateTopicNotes(topic.ID, req.Notes); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	topic.Notes = req.Notes
	writeJSON(w, http.StatusOK, topic)
}

func (h *Handler) handleUpdateTargetScore(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topicFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		TargetScore float64 `json:"target_score"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TargetScore <= 0 || req.TargetScore > 100 {
		writeError(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}
	if err := h.store.UpdateTopicTargetScore(topic.ID, req.TargetScore); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	topic.TargetScore = req.TargetScore
	writeJSON(w, http.StatusOK, topic)
}

// topicFromRequest resolves the topicID route parameter.
func (h *Handler) topicFromRequest(w http.ResponseWriter, r *http.Request) (model.Topic, bool) {
	topicID, err := idParam(r, "topicID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "error.invalid_request")
		return model.Topic{}, false
	}
	topic, err := h.store.GetTopic(topicID)
	if err == sql.ErrNoRows {
		writeError(w, r, http.StatusNotFound, "error.not_found")
		return model.Topic{}, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return model.Topic{}, false
	}
	return topic, true
}

type attachmentInfo struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Size     int    `json:"size"`
}

func (h *Handler) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topicFromRequest(w, r)
	if !ok {
		return
	}
	files, err := h.store.ListAttachments(topic.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	infos := make([]attachmentInfo, 0, len(files))
	for _, f := range files {
		infos = append(infos, attachmentInfo{Name: f.Name, MIMEType: f.MIMEType, Size: len(f.Data)})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (h *Handler) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topicFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Name    string `json:"name"`
		DataURL string `json:"data_url"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := model.ParseDataURL(req.Name, req.DataURL)
	if err != nil {
		slog.Warn("rejected attachment upload", "file", req.Name, "error", err)
		writeError(w, r, http.StatusBadRequest, "error.invalid_attachment")
		return
	}
	if _, err := h.store.AddAttachment(topic.ID, a); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, attachmentInfo{Name: a.Name, MIMEType: a.MIMEType, Size: len(a.Data)})
}

func (h *Handler) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topicFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteAttachment(topic.ID, chi.URLParam(r, "name")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListSaved(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topicFromRequest(w, r)
	if !ok {
		return
	}
	items, err := h.store.ListSavedContent(topic.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []model.SavedContent{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleSaveContent(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topicFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Task    model.AITask `json:"task"`
		Label   string       `json:"label"`
		Content string       `json:"content"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Content == "" {
		writeError(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}
	item := model.SavedContent{TopicID: topic.ID, Task: req.Task, Label: req.Label, Content: req.Content}
	id, err := h.store.AddSavedContent(item)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	item.ID = id
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) handleDeleteSaved(w http.ResponseWriter, r *http.Request) {
	contentID, err := idParam(r, "contentID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}
	if err := h.store.DeleteSavedContent(contentID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// learnerContext derives the prompt descriptor from the stored profile.
func (h *Handler) learnerContext() string {
	p, err := h.store.GetProfile()
	if err != nil {
		slog.Warn("load profile", "error", err)
	}
	return p.LearningContext()
}
