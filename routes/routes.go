package routes

import (
	"net/http"
	"time"

	"github.com/GabeYou/Hack-The-Valley-2025/config"
	"github.com/GabeYou/Hack-The-Valley-2025/middleware"
	"github.com/GabeYou/Hack-The-Valley-2025/services"
	"github.com/GabeYou/Hack-The-Valley-2025/utils"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	Config     config.Config
	Logger     *zap.Logger
	Tasks      *services.TaskService
	Users      *services.UserService
	Codec      *utils.TokenCodec
	LoginGuard *middleware.LoginGuard
}

type routeSet struct {
	deps     Deps
	auth     func(http.Handler) http.Handler
	optional func(http.Handler) http.Handler
	general  *middleware.IPRateLimiter
	strict   *middleware.IPRateLimiter
}

func optionsHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func InitRouter(deps Deps) *mux.Router {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.LoginGuard == nil {
		deps.LoginGuard = middleware.NewLoginGuard(nil)
	}
	cfg := deps.Config

	r := mux.NewRouter()
	r.Use(middleware.Metrics)
	r.Use(handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSAllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With", "X-Request-ID"}),
		handlers.AllowCredentials(),
	))

	r.Handle("/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"service":   cfg.ServiceName,
		})
	})).Methods(http.MethodGet)

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	r.PathPrefix("/").HandlerFunc(optionsHandler).Methods(http.MethodOptions)

	rs := &routeSet{
		deps:     deps,
		auth:     middleware.Auth(deps.Codec),
		optional: middleware.OptionalAuth(deps.Codec),
		general:  middleware.NewIPRateLimiter(cfg.RateLimitRPM, cfg.TrustedProxies),
		strict:   middleware.NewIPRateLimiter(cfg.AuthRateLimitRPM, cfg.TrustedProxies),
	}

	TaskRoutes(r, rs)
	UsersRoutes(r, rs)

	return r
}
