package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/videos/analyze", app.AnalyzeHandler)

		r.Route("/records", func(r chi.Router) {
			r.Get("/", app.ListRecordsHandler)
			r.Get("/{sequenceID}", app.GetRecordHandler)
			r.Delete("/{sequenceID}", app.DeleteRecordHandler)
			r.Post("/{sequenceID}/sync", app.SyncRecordHandler)
		})

		r.Post("/sync", app.SyncAllHandler)
		r.Get("/sync/status", app.SyncStatusHandler)

		r.Route("/prompts", func(r chi.Router) {
			r.Get("/", app.ListPromptsHandler)
			r.Post("/", app.AddPromptHandler)
			r.Put("/{id}", app.UpdatePromptHandler)
			r.Delete("/{id}", app.DeletePromptHandler)
		})
	})

	return r
}
