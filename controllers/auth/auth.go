package auth

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/GabeYou/Hack-The-Valley-2025/config"
	"github.com/GabeYou/Hack-The-Valley-2025/controllers"
	"github.com/GabeYou/Hack-The-Valley-2025/middleware"
	"github.com/GabeYou/Hack-The-Valley-2025/services"
	"github.com/GabeYou/Hack-The-Valley-2025/utils"

	"go.uber.org/zap"
)

type AuthController struct {
	users *services.UserService
	codec *utils.TokenCodec
	guard *middleware.LoginGuard
	cfg   config.Config
	log   *zap.Logger
}

func NewAuthController(users *services.UserService, codec *utils.TokenCodec, guard *middleware.LoginGuard, cfg config.Config, log *zap.Logger) *AuthController {
	return &AuthController{users: users, codec: codec, guard: guard, cfg: cfg, log: log}
}

type RegisterRequest struct {
	Name        string `json:"name" validate:"notblank,max=100"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	Address     string `json:"address" validate:"max=255"`
	PhoneNumber string `json:"phoneNumber" validate:"required,phone"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register handles POST /auth/register
func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	user, err := c.users.Register(r.Context(), services.RegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Address:     req.Address,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		controllers.Fail(w, r, c.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, user)
}

// Login handles POST /auth/login and sets the session cookie.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	account := strings.ToLower(strings.TrimSpace(req.Email))

	if locked, left := c.guard.Locked(r.Context(), account); locked {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(left.Seconds()))))
		utils.WriteJSON(w, http.StatusTooManyRequests, utils.ErrorResponse{Error: "Too many failed login attempts. Try again later."})
		return
	}

	user, err := c.users.Authenticate(r.Context(), account, req.Password)
	if err != nil {
		if utils.KindOf(err) == utils.KindUnauthorized {
			c.guard.RecordFailure(r.Context(), account)
			c.log.Warn("login failed", zap.String("email", account))
		}
		controllers.Fail(w, r, c.log, err)
		return
	}
	c.guard.Reset(r.Context(), account)

	token, _, err := c.codec.Issue(user.ID)
	if err != nil {
		controllers.Fail(w, r, c.log, utils.ErrInternal("Failed to issue token", err))
		return
	}
	http.SetCookie(w, c.cookie(token, int(c.codec.TTL().Seconds())))

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":          user.ID,
		"email":       user.Email,
		"name":        user.Name,
		"phoneNumber": user.PhoneNumber,
		"token":       token,
	})
}

// Logout handles POST /auth/logout: the token stops validating immediately.
func (c *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, ok := utils.GetClaims(r); ok {
		if err := c.codec.Revoke(r.Context(), claims); err != nil {
			controllers.Fail(w, r, c.log, utils.ErrInternal("Failed to log out", err))
			return
		}
	}
	http.SetCookie(w, c.cookie("", -1))
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Logged out"})
}

// Me handles GET /auth/me
func (c *AuthController) Me(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	profile, err := c.users.Profile(r.Context(), uid)
	if err != nil {
		controllers.Fail(w, r, c.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, profile)
}

func (c *AuthController) cookie(value string, maxAge int) *http.Cookie {
	ck := &http.Cookie{
		Name:     utils.TokenCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	}
	if maxAge < 0 {
		ck.Expires = time.Unix(0, 0)
	}
	return ck
}
