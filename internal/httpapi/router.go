package httpapi

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"intelbrief/backend/internal/brave"
	"intelbrief/backend/internal/config"
	"intelbrief/backend/internal/groq"
	"intelbrief/backend/internal/mail"
	"intelbrief/backend/internal/research"
	"intelbrief/backend/internal/session"
	"intelbrief/backend/internal/store"
)

func NewRouter(cfg config.Config, db *sql.DB) http.Handler {
	sessions := session.NewStore(db)
	briefs := store.NewStore(db)
	pipeline := research.NewPipeline(
		groq.NewClient(cfg, nil),
		brave.NewClient(cfg, nil),
		research.ConfigFrom(cfg),
	)
	mailer := mail.NewSender(cfg)
	h := NewHandler(cfg, db, sessions, briefs, pipeline, mailer)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Healthz)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/sessions", h.CreateSession)

		v1.Group(func(p chi.Router) {
			p.Use(h.RequireSession)
			p.Post("/briefs", h.CreateBrief)
			p.Get("/briefs/{id}", h.GetBrief)
			p.Post("/briefs/{id}/email", h.EmailBrief)
		})
	})

	return r
}
