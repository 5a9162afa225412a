package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phrazzld/dispatchq/internal/api"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	queueHandler := api.NewQueueHandler(app.scheduler, app.registry, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/tasks", queueHandler.SubmitTask)
		r.Get("/tasks/{id}", queueHandler.GetTask)
		r.Get("/tasks/{id}/result", queueHandler.GetTaskResult)
		r.Delete("/tasks/{id}", queueHandler.CancelTask)
		r.Get("/queue/stats", queueHandler.GetQueueStats)
	})

	// Operational endpoints
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
