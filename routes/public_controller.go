package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/kentoooo/mellowq/app"
	"github.com/kentoooo/mellowq/httpx"
	"github.com/kentoooo/mellowq/log"
	"github.com/kentoooo/mellowq/service"
	"github.com/kentoooo/mellowq/validate"
)

func CreateSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := validate.SurveyInput{}
		if !decodeBody(w, r, &in, service.ValidationError) {
			return
		}

		created, err := app.Service.CreateSurvey(r.Context(), source(app, r), in)
		if err != nil {
			serviceError(w, r, "survey.create", err)
			return
		}
		render.JSON(w, r, created)
	}
}

func GetPublicSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		survey, err := app.PublicSurvey(r.Context(), chi.URLParam(r, "surveyId"))
		if err != nil {
			serviceError(w, r, "survey.get", err)
			return
		}
		render.JSON(w, r, survey)
	}
}

func SubmitResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := service.ResponseInput{}
		if !decodeBody(w, r, &in, service.ValidationError) {
			return
		}

		submitted, err := app.Service.SubmitResponse(r.Context(), source(app, r), chi.URLParam(r, "surveyId"), in)
		if err != nil {
			serviceError(w, r, "response.submit", err)
			return
		}
		render.JSON(w, r, submitted)
	}
}

func Health(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := app.Health(r.Context()); err != nil {
			log.Errorf("health: %s", err)
			httpx.JSON(w, r, http.StatusInternalServerError, map[string]any{"status": "unhealthy"})
			return
		}
		render.JSON(w, r, map[string]any{"status": "healthy"})
	}
}

func VAPIDPublicKey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if app.Push == nil || !app.Push.Enabled() {
			httpx.LogStatusMsg(w, r, http.StatusInternalServerError, log.WarnLevel, "push.vapid_public_key",
				string(service.ConfigError), "push notifications are not configured")
			return
		}
		render.JSON(w, r, map[string]any{"publicKey": app.Push.PublicKey()})
	}
}
