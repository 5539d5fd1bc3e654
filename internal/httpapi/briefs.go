package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"intelbrief/backend/internal/mail"
	"intelbrief/backend/internal/research"
	"intelbrief/backend/internal/session"
	"intelbrief/backend/internal/store"
)

type createBriefRequest struct {
	Question string `json:"question"`
}

// CreateBrief runs the research pipeline for one question and streams
// progress over SSE. The final event carries the persisted brief.
func (h Handler) CreateBrief(w http.ResponseWriter, r *http.Request) {
	c, ok := callerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session")
		return
	}

	var req createBriefRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}

	if !c.Admin {
		if c.Session.QuestionsAsked >= h.cfg.MaxQuestions {
			writeError(w, http.StatusTooManyRequests, "quota_exhausted", "question limit reached for this session")
			return
		}
		if _, err := h.sessions.IncrementQuestions(r.Context(), c.Session.ID); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "unauthorized", "session expired or invalid")
				return
			}
			writeError(w, http.StatusInternalServerError, "db_error", "failed to update session")
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "server does not support streaming")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	startedAt := time.Now()
	log.Printf("brief start: session_id=%s admin=%t question_chars=%d", c.Session.ID, c.Admin, len([]rune(question)))

	result, err := h.runner.Run(r.Context(), question, func(progress research.Progress) {
		_ = writeSSEEvent(w, map[string]any{
			"type":          "progress",
			"phase":         progress.Phase,
			"message":       progress.Message,
			"queries":       progress.Queries,
			"failedQueries": progress.FailedQueries,
			"results":       progress.Results,
			"sources":       progress.Sources,
		})
		flusher.Flush()
	})
	if err != nil {
		message := "brief generation failed"
		var stageErr *research.StageError
		if errors.As(err, &stageErr) {
			message = "brief generation failed in " + string(stageErr.Stage) + " stage"
		}
		log.Printf("brief failed: session_id=%s err=%v elapsed_ms=%d", c.Session.ID, err, time.Since(startedAt).Milliseconds())
		_ = writeSSEEvent(w, map[string]any{"type": "error", "message": message})
		_ = writeSSEEvent(w, map[string]any{"type": "done"})
		flusher.Flush()
		return
	}

	stored, err := h.briefs.InsertBrief(r.Context(), c.Session.ID, question, result)
	if err != nil {
		log.Printf("brief persist failed: session_id=%s err=%v", c.Session.ID, err)
		_ = writeSSEEvent(w, map[string]any{"type": "error", "message": "failed to store brief"})
		_ = writeSSEEvent(w, map[string]any{"type": "done"})
		flusher.Flush()
		return
	}

	log.Printf(
		"brief completed: session_id=%s brief_id=%s topic=%q tightened=%t sources=%d failed_queries=%d total_tokens=%d elapsed_ms=%d",
		c.Session.ID,
		stored.ID,
		stored.Topic,
		result.Tightened,
		len(stored.Sources),
		result.FailedQueries,
		result.Usage.TotalTokens,
		time.Since(startedAt).Milliseconds(),
	)

	_ = writeSSEEvent(w, map[string]any{"type": "brief", "brief": stored})
	_ = writeSSEEvent(w, map[string]any{"type": "done"})
	flusher.Flush()
}

func (h Handler) GetBrief(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	brief, err := h.briefs.GetBrief(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "brief not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error", "failed to read brief")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"brief": brief})
}

type emailBriefRequest struct {
	Recipient string `json:"recipient"`
}

// EmailBrief sends a stored brief as HTML email. Delivery outcome is
// recorded either way; a failed send does not affect the brief itself.
func (h Handler) EmailBrief(w http.ResponseWriter, r *http.Request) {
	if h.mailer == nil || !h.mailer.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "email_disabled", "email delivery is not configured")
		return
	}

	var req emailBriefRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	recipient, err := mail.ValidateRecipient(req.Recipient)
	if errors.Is(err, mail.ErrDisposableAddress) {
		writeError(w, http.StatusBadRequest, "disposable_email", "disposable email domains are not supported")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_email", "enter a valid email address")
		return
	}

	id := chi.URLParam(r, "id")
	brief, err := h.briefs.GetBrief(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "brief not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error", "failed to read brief")
		return
	}

	htmlBody, err := mail.RenderHTML(brief.Topic, brief.Markdown)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "render_error", "failed to render email")
		return
	}

	detail, err := h.mailer.Send(r.Context(), mail.Subject(brief.Topic), htmlBody, recipient)
	status := "sent"
	if err != nil {
		status = "failed"
		detail = err.Error()
	}
	if recordErr := h.briefs.RecordDelivery(r.Context(), brief.ID, recipient, status, detail); recordErr != nil {
		log.Printf("delivery log failed: brief_id=%s err=%v", brief.ID, recordErr)
	}

	if err != nil {
		log.Printf("email failed: brief_id=%s recipient_domain=%s err=%v", brief.ID, domainOf(recipient), err)
		writeError(w, http.StatusBadGateway, "email_failed", "email delivery failed")
		return
	}

	log.Printf("email sent: brief_id=%s recipient_domain=%s detail=%s", brief.ID, domainOf(recipient), detail)
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "detail": detail})
}

func domainOf(address string) string {
	at := strings.LastIndex(address, "@")
	if at == -1 {
		return ""
	}
	return strings.ToLower(address[at+1:])
}
