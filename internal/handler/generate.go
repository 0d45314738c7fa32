package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"studyhub/internal/engine"
	"studyhub/internal/i18n"
	"studyhub/internal/model"
)

// maxTopicsPerSubject caps syllabus imports so a bad extraction cannot
// flood a subject.
const maxTopicsPerSubject = 100

type generateRequest struct {
	Task            model.AITask     `json:"task"`
	Source          model.SourceKind `json:"source,omitempty"`
	RevisionContext string           `json:"revision_context,omitempty"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topicFromRequest(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !model.IsValidTask(string(req.Task)) {
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
		LearnerContext:  h.learnerContext(),
		Subject:         subject.Name,
		Topic:           topic.Title,
		RevisionContext: req.RevisionContext,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

// resolveSource turns the requested source kind into loaded content. When
// the kind is omitted it is inferred, but a topic holding both notes and
// files needs an explicit choice.
func (h *Handler) resolveSource(w http.ResponseWriter, r *http.Request, topic model.Topic, kind model.SourceKind) (model.Source, bool) {
	files, err := h.store.ListAttachments(topic.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return model.Source{}, false
	}
	hasNotes := strings.TrimSpace(topic.Notes) != ""

	if kind == "" {
		switch {
		case hasNotes && len(files) > 0:
			writeError(w, r, http.StatusBadRequest, "error.choose_source")
			return model.Source{}, false
		case hasNotes:
			kind = model.SourceNotes
		case len(files) > 0:
			kind = model.SourceFiles
		default:
			kind = model.SourceKnowledge
		}
	}

	switch kind {
	case model.SourceNotes:
		return model.NotesSource(topic.Notes), true
	case model.SourceFiles:
		return model.FileSource(files), true
	case model.SourceKnowledge:
		return model.KnowledgeSource(), true
	default:
		writeError(w, r, http.StatusBadRequest, "error.invalid_request")
		return model.Source{}, false
	}
}

func (h *Handler) handleRefine(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.topicFromRequest(w, r); !ok {
		return
	}
	var req struct {
		Original string `json:"original"`
		Feedback string `json:"feedback"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Original == "" || req.Feedback == "" {
		writeError(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}
	text, err := h.engine.Refine(r.Context(), req.Original, req.Feedback, h.learnerContext())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (h *Handler) handlePDFAnalysis(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topicFromRequest(w, r)
	if !ok {
		return
	}
	files, err := h.store.ListAttachments(topic.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var pdfs []model.Attachment
	for _, f := range files {
		if f.MIMEType == "application/pdf" {
			pdfs = append(pdfs, f)
		}
	}

	subject, err := h.store.GetSubject(topic.SubjectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	text, err := h.engine.AnalyzePDFs(r.Context(), pdfs, engine.RunContext{
		LearnerContext: h.learnerContext(),
		Subject:        subject.Name,
		Topic:          topic.Title,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (h *Handler) handleAudioAnalysis(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topicFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Transcript string `json:"transcript"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	analysis, err := h.engine.AnalyzeTranscript(r.Context(), req.Transcript, engine.RunContext{
		LearnerContext: h.learnerContext(),
		Topic:          topic.Title,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (h *Handler) handleImportSyllabus(w http.ResponseWriter, r *http.Request) {
	subjectID, err := idParam(r, "subjectID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "error.invalid_request")
		return
	}
	subject, err := h.store.GetSubject(subjectID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "error.not_found")
		return
	}

	var req struct {
		Name    string `json:"name"`
		DataURL string `json:"data_url"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	image, err := model.ParseDataURL(req.Name, req.DataURL)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "error.invalid_attachment")
		return
	}

	extracted, err := h.engine.ExtractSyllabus(r.Context(), subject.Name, image)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if len(extracted) == 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "syllabus.no_topics")
		return
	}

	existing, err := h.store.ListTopics(subjectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	created, err := h.importTopics(subjectID, extracted, existing)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, syllabusImportResponse{
		Message: i18n.Td(r.Context(), "syllabus.imported", map[string]any{"Count": len(created)}),
		Topics:  created,
	})
}

type syllabusImportResponse struct {
	Message string        `json:"message"`
	Topics  []model.Topic `json:"topics"`
}

// importTopics flattens extracted syllabus units into topics. Sub-topics
// become indented child entries under their unit. Titles are deduplicated
// case-insensitively against existing topics and within the batch, and the
// subject's topic count never exceeds maxTopicsPerSubject.
func (h *Handler) importTopics(subjectID int64, extracted []model.SyllabusTopic, existing []model.Topic) ([]model.Topic, error) {
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[normalizeTitle(t.Title)] = true
	}
	budget := maxTopicsPerSubject - len(existing)

	var titles []string
	for _, unit := range extracted {
		titles = append(titles, unit.Title)
		for _, sub := range unit.SubTopics {
			titles = append(titles, "  • "+sub)
		}
	}

	var created []model.Topic
	for _, title := range titles {
		if budget <= 0 {
			slog.Warn("syllabus import truncated", "subject_id", subjectID, "limit", maxTopicsPerSubject)
			break
		}
		key := normalizeTitle(title)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		id, err := h.store.CreateTopic(model.Topic{SubjectID: subjectID, Title: title})
		if err != nil {
			return nil, err
		}
		topic, err := h.store.GetTopic(id)
		if err != nil {
			return nil, err
		}
		created = append(created, topic)
		budget--
	}
	return created, nil
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(title), "•")))
}
