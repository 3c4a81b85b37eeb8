package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/kentoooo/mellowq/app"
	"github.com/kentoooo/mellowq/model"
	"github.com/kentoooo/mellowq/service"
)

// An answered follow-up is no longer there to be answered.
var answerStatuses = map[service.Code]int{
	service.AlreadyAnswered: http.StatusNotFound,
}

func GetFollowupThread(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		thread, err := app.Thread(r.Context(), chi.URLParam(r, "responseToken"))
		if err != nil {
			serviceError(w, r, "followup.thread", err)
			return
		}
		render.JSON(w, r, thread)
	}
}

func AnswerFollowup(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := service.FollowupAnswerInput{}
		if !decodeBody(w, r, &in, service.InvalidInput) {
			return
		}

		err := app.Service.AnswerFollowup(r.Context(), chi.URLParam(r, "responseToken"), in)
		if err != nil {
			serviceErrorAs(w, r, "followup.answer", err, answerStatuses)
			return
		}
		render.JSON(w, r, map[string]any{"success": true})
	}
}

func SubscribePush(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := model.PushSubscription{}
		if !decodeBody(w, r, &sub, service.ValidationError) {
			return
		}

		err := app.Subscribe(r.Context(), chi.URLParam(r, "responseToken"), sub)
		if err != nil {
			serviceError(w, r, "followup.subscribe", err)
			return
		}
		render.JSON(w, r, map[string]any{"success": true})
	}
}
