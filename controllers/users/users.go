package users

import (
	"net/http"

	"github.com/GabeYou/Hack-The-Valley-2025/controllers"
	"github.com/GabeYou/Hack-The-Valley-2025/services"
	"github.com/GabeYou/Hack-The-Valley-2025/utils"

	"go.uber.org/zap"
)

type UserController struct {
	users *services.UserService
	log   *zap.Logger
}

func NewUserController(users *services.UserService, log *zap.Logger) *UserController {
	return &UserController{users: users, log: log}
}

// Wallet handles GET /wallet
func (c *UserController) Wallet(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	view, err := c.users.Wallet(r.Context(), uid)
	if err != nil {
		controllers.Fail(w, r, c.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

// CompletedBounties handles GET /completedBounties
func (c *UserController) CompletedBounties(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	n, err := c.users.CompletedBounties(r.Context(), uid)
	if err != nil {
		controllers.Fail(w, r, c.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]int64{"completedBounties": n})
}

// CompletedVolunteeredTasks handles GET /completedVolunteeredTasks
func (c *UserController) CompletedVolunteeredTasks(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	total, err := c.users.TotalEarned(r.Context(), uid)
	if err != nil {
		controllers.Fail(w, r, c.log, utils.ErrInternal("Failed to fetch earnings", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]int64{"totalEarned": total})
}

// Leaderboard handles GET /leaderboard
func (c *UserController) Leaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := c.users.Leaderboard(r.Context())
	if err != nil {
		controllers.Fail(w, r, c.log, utils.ErrInternal("Failed to fetch leaderboard", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, board)
}

// Rank handles GET /leaderboard/rank. Anonymous or unranked callers get "N/A".
func (c *UserController) Rank(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	rank, err := c.users.Rank(r.Context(), uid)
	if err != nil {
		controllers.Fail(w, r, c.log, utils.ErrInternal("Failed to fetch rank", err))
		return
	}
	var body interface{} = rank
	if rank == 0 {
		body = "N/A"
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"rank": body})
}

// OpenBounties handles GET /bounties
func (c *UserController) OpenBounties(w http.ResponseWriter, r *http.Request) {
	n, err := c.users.OpenBounties(r.Context())
	if err != nil {
		controllers.Fail(w, r, c.log, utils.ErrInternal("Failed to count bounties", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]int64{"openBounties": n})
}

// CountUsers handles GET /users/count
func (c *UserController) CountUsers(w http.ResponseWriter, r *http.Request) {
	n, err := c.users.CountUsers(r.Context())
	if err != nil {
		controllers.Fail(w, r, c.log, utils.ErrInternal("Failed to count users", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]int64{"count": n})
}
