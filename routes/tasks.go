package routes

import (
	"net/http"

	"github.com/GabeYou/Hack-The-Valley-2025/controllers/tasks"

	"github.com/gorilla/mux"
)

// TaskRoutes registers the task lifecycle endpoints.
func TaskRoutes(r *mux.Router, rs *routeSet) {
	tc := tasks.NewTaskController(rs.deps.Tasks, rs.deps.Logger, rs.deps.Config.MaxUploadBytes)
	lim := rs.general.Middleware

	r.Handle("/task", lim(rs.auth(http.HandlerFunc(tc.Post)))).Methods(http.MethodPost)
	r.Handle("/task", lim(http.HandlerFunc(tc.List))).Methods(http.MethodGet)

	// literal paths first so {id} does not swallow them
	r.Handle("/task/accept", lim(rs.auth(http.HandlerFunc(tc.Accept)))).Methods(http.MethodPost)
	r.Handle("/task/submit", lim(rs.auth(http.HandlerFunc(tc.Submit)))).Methods(http.MethodPost)
	r.Handle("/task/verify/{id}", lim(http.HandlerFunc(tc.Proof))).Methods(http.MethodGet)
	r.Handle("/task/verify/{id}", lim(rs.optional(http.HandlerFunc(tc.Verify)))).Methods(http.MethodPost)

	r.Handle("/task/{id}", lim(http.HandlerFunc(tc.Get))).Methods(http.MethodGet)
}
