package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"intelbrief/backend/internal/config"
	"intelbrief/backend/internal/research"
	"intelbrief/backend/internal/session"
	"intelbrief/backend/internal/store"
)

// BriefRunner runs one research question end to end. Satisfied by
// *research.Pipeline.
type BriefRunner interface {
	Run(ctx context.Context, question string, report research.ProgressFunc) (research.Result, error)
}

// Mailer delivers brief emails. Satisfied by mail.Sender.
type Mailer interface {
	Enabled() bool
	Send(ctx context.Context, subject, htmlBody, toEmail string) (string, error)
}

type Handler struct {
	cfg      config.Config
	db       *sql.DB
	sessions session.Store
	briefs   store.Store
	runner   BriefRunner
	mailer   Mailer
}

func NewHandler(cfg config.Config, db *sql.DB, sessions session.Store, briefs store.Store, runner BriefRunner, mailer Mailer) Handler {
	return Handler{cfg: cfg, db: db, sessions: sessions, briefs: briefs, runner: runner, mailer: mailer}
}

type contextKey string

const callerContextKey contextKey = "session_caller"

// caller is the resolved identity for a request: either a stored session
// or the admin override token, which skips the question quota.
type caller struct {
	Session session.Session
	Admin   bool
}

func (h Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	token, created, err := h.sessions.Create(r.Context(), h.cfg.SessionTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error", "failed to create session")
		return
	}

	expiresAt, _ := time.Parse(time.RFC3339, created.ExpiresAt)
	h.setSessionCookie(w, token, expiresAt)
	writeJSON(w, http.StatusCreated, map[string]any{
		"session":            created,
		"token":              token,
		"questionsRemaining": h.cfg.MaxQuestions,
	})
}

func (h Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawToken := bearerToken(r)
		if rawToken == "" {
			var err error
			rawToken, err = readSessionCookie(r, h.cfg.SessionCookieName)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid session")
				return
			}
		}

		if h.cfg.AdminSessionToken != "" && rawToken == h.cfg.AdminSessionToken {
			ctx := context.WithValue(r.Context(), callerContextKey, caller{Admin: true})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		resolved, err := h.sessions.Resolve(r.Context(), rawToken)
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "session expired or invalid")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error", "failed to resolve session")
			return
		}

		ctx := context.WithValue(r.Context(), callerContextKey, caller{Session: resolved})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerFromContext(ctx context.Context) (caller, bool) {
	value := ctx.Value(callerContextKey)
	if value == nil {
		return caller{}, false
	}
	c, ok := value.(caller)
	return c, ok
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (h Handler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
	})
}

func readSessionCookie(r *http.Request, name string) (string, error) {
	cookie, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cookie.Value) == "" {
		return "", errors.New("empty session cookie")
	}
	return cookie.Value, nil
}
