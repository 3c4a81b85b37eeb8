package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/kentoooo/mellowq/app"
	"github.com/kentoooo/mellowq/service"
)

func GetAdminView(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := app.AdminView(r.Context(), chi.URLParam(r, "adminToken"))
		if err != nil {
			serviceError(w, r, "admin.view", err)
			return
		}
		render.JSON(w, r, view)
	}
}

func CreateFollowup(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := service.FollowupInput{}
		if !decodeBody(w, r, &in, service.InvalidInput) {
			return
		}

		created, err := app.Service.CreateFollowup(r.Context(), source(app, r), chi.URLParam(r, "adminToken"), in)
		if err != nil {
			serviceError(w, r, "admin.create_followup", err)
			return
		}
		render.JSON(w, r, created)
	}
}

func SendReminder(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := service.ReminderInput{}
		if !decodeBody(w, r, &in, service.InvalidInput) {
			return
		}

		err := app.Service.SendReminder(r.Context(), source(app, r), chi.URLParam(r, "adminToken"), in)
		if err != nil {
			serviceError(w, r, "admin.send_reminder", err)
			return
		}
		render.JSON(w, r, map[string]any{
			"success": true,
			"message": "reminder sent",
		})
	}
}
