package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/tasktrack-api/internal/api"
	apiMiddleware "github.com/phrazzld/tasktrack-api/internal/api/middleware"
	"github.com/phrazzld/tasktrack-api/internal/api/shared"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.Trace(app.logger))

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)
	taskHandler := api.NewTaskHandler(app.taskService, app.logger)
	schedulerHandler := api.NewSchedulerHandler(app.engine, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/tasks", taskHandler.CreateTask)
		r.Get("/tasks", taskHandler.ListTasks)
		r.Get("/tasks/{id}", taskHandler.GetTask)
		r.Post("/tasks/{id}/submit", taskHandler.SubmitTask)
		r.Post("/tasks/{id}/score", taskHandler.ScoreTask)
		r.Delete("/tasks/{id}", taskHandler.DeleteTask)
		r.Get("/users/{id}/stats", taskHandler.UserStats)

		r.Route("/admin/scheduler", func(r chi.Router) {
			r.Use(apiMiddleware.RequireAdmin)
			r.Get("/", schedulerHandler.Status)
			r.Post("/reminders/run", schedulerHandler.RunReminders)
			r.Post("/overdue/run", schedulerHandler.RunOverdue)
			r.Post("/stop", schedulerHandler.Stop)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, api.HealthResponse{Status: "ok"})
	})

	return r
}
