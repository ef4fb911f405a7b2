package routes

import (
	"net/http"

	"github.com/GabeYou/Hack-The-Valley-2025/controllers/auth"
	"github.com/GabeYou/Hack-The-Valley-2025/controllers/users"

	"github.com/gorilla/mux"
)

// UsersRoutes registers account, wallet and stats endpoints.
func UsersRoutes(r *mux.Router, rs *routeSet) {
	d := rs.deps
	ac := auth.NewAuthController(d.Users, d.Codec, d.LoginGuard, d.Config, d.Logger)
	uc := users.NewUserController(d.Users, d.Logger)
	lim := rs.general.Middleware

	// Register & Login
	r.Handle("/auth/register", rs.strict.Middleware(http.HandlerFunc(ac.Register))).Methods(http.MethodPost)
	r.Handle("/auth/login", rs.strict.Middleware(http.HandlerFunc(ac.Login))).Methods(http.MethodPost)
	r.Handle("/auth/logout", lim(rs.auth(http.HandlerFunc(ac.Logout)))).Methods(http.MethodPost)
	r.Handle("/auth/me", lim(rs.auth(http.HandlerFunc(ac.Me)))).Methods(http.MethodGet)

	r.Handle("/wallet", lim(rs.auth(http.HandlerFunc(uc.Wallet)))).Methods(http.MethodGet)
	r.Handle("/completedBounties", lim(rs.auth(http.HandlerFunc(uc.CompletedBounties)))).Methods(http.MethodGet)
	r.Handle("/completedVolunteeredTasks", lim(rs.auth(http.HandlerFunc(uc.CompletedVolunteeredTasks)))).Methods(http.MethodGet)

	// Public stats
	r.Handle("/leaderboard", lim(http.HandlerFunc(uc.Leaderboard))).Methods(http.MethodGet)
	r.Handle("/leaderboard/rank", lim(rs.optional(http.HandlerFunc(uc.Rank)))).Methods(http.MethodGet)
	r.Handle("/bounties", lim(http.HandlerFunc(uc.OpenBounties))).Methods(http.MethodGet)
	r.Handle("/users/count", lim(http.HandlerFunc(uc.CountUsers))).Methods(http.MethodGet)
}
