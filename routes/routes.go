package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kentoooo/mellowq/app"
	"github.com/kentoooo/mellowq/httpx"
	"github.com/kentoooo/mellowq/routes/middlewares"
)

const maxBodyBytes = 1 << 20

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	if app.TrustProxy {
		root.Use(middleware.RealIP)
	}
	root.Use(
		middleware.RequestID,
		middlewares.RequestLogger(),
		middleware.Recoverer,
		middlewares.SecurityHeaders,
		middlewares.Metrics,
	)
	if len(app.CORSOrigins) > 0 {
		root.Use(cors.Handler(cors.Options{
			AllowedOrigins: app.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	root.Mount("/api", apiRouter(app))
	root.Handle("/metrics", promhttp.Handler())

	root.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, r, http.StatusNotFound, "NOT_FOUND", "not found")
	})
	root.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()
	api.Use(
		middleware.RequestSize(maxBodyBytes),
		middleware.Timeout(time.Minute),
	)
	if app.GlobalRateLimit > 0 {
		api.Use(middlewares.GlobalRateLimit(app.GlobalRateLimit, clientKey(app)))
	}

	api.Get("/health", Health(app))
	api.Get("/push/vapid-public-key", VAPIDPublicKey(app))

	api.Post("/surveys", CreateSurvey(app))
	api.Get("/surveys/{surveyId}", GetPublicSurvey(app))
	api.Post("/surveys/{surveyId}/responses", SubmitResponse(app))

	api.Route("/admin/{adminToken}", func(r chi.Router) {
		r.Use(middleware.NoCache)

		r.Get("/responses", GetAdminView(app))
		r.Post("/followup", CreateFollowup(app))
		r.Post("/reminder", SendReminder(app))
	})

	api.Route("/followup/{responseToken}", func(r chi.Router) {
		r.Use(middleware.NoCache)

		r.Get("/", GetFollowupThread(app))
		r.Post("/", AnswerFollowup(app))
		r.Post("/subscription", SubscribePush(app))
	})

	return api
}
