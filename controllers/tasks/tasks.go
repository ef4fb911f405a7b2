package tasks

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/GabeYou/Hack-The-Valley-2025/controllers"
	"github.com/GabeYou/Hack-The-Valley-2025/services"
	"github.com/GabeYou/Hack-The-Valley-2025/utils"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxSafeCredits keeps credit amounts exactly representable as JSON numbers.
const maxSafeCredits = 1<<53 - 1

type TaskController struct {
	tasks     *services.TaskService
	log       *zap.Logger
	maxUpload int64
}

func NewTaskController(tasks *services.TaskService, log *zap.Logger, maxUpload int64) *TaskController {
	return &TaskController{tasks: tasks, log: log, maxUpload: maxUpload}
}

// taskRequest is the body of POST /task. A taskId makes it a contribution,
// otherwise it creates a task. Numbers may arrive as JSON numbers or numeric
// strings.
type taskRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Lat         json.Number `json:"lat"`
	Lon         json.Number `json:"lon"`
	BountyTotal json.Number `json:"bountyTotal"`
	Links       []string    `json:"links"`

	TaskID string      `json:"taskId"`
	Amount json.Number `json:"amount"`
}

// Post handles POST /task
func (c *TaskController) Post(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok {
		utils.WriteError(w, utils.ErrUnauthorized("Missing or invalid token"))
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteJSON(w, http.StatusRequestEntityTooLarge, utils.ErrorResponse{Error: "Request body too large"})
			return
		}
		utils.WriteError(w, utils.ErrValidation("Invalid request"))
		return
	}

	if strings.TrimSpace(req.TaskID) != "" {
		c.contribute(w, r, uid, req)
		return
	}
	c.create(w, r, uid, req)
}

func (c *TaskController) create(w http.ResponseWriter, r *http.Request, uid string, req taskRequest) {
	lat, err := parseFinite(req.Lat, "lat")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	lon, err := parseFinite(req.Lon, "lon")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	bounty, err := parseCredits(req.BountyTotal, "bountyTotal")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	task, err := c.tasks.CreateTask(r.Context(), uid, services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Lat:         lat,
		Lon:         lon,
		BountyTotal: bounty,
		Links:       req.Links,
	})
	if err != nil {
		controllers.Fail(w, r, c.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]interface{}{"task": task})
}

func (c *TaskController) contribute(w http.ResponseWriter, r *http.Request, uid string, req taskRequest) {
	amount, err := parseCredits(req.Amount, "amount")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	contribution, all, err := c.tasks.Contribute(r.Context(), uid, strings.TrimSpace(req.TaskID), amount)
	if err != nil {
		controllers.Fail(w, r, c.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"contribution":  contribution,
		"contributions": all,
	})
}

// List handles GET /task
func (c *TaskController) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := c.tasks.ListTasks(r.Context())
	if err != nil {
		controllers.Fail(w, r, c.log, utils.ErrInternal("Failed to fetch tasks", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, tasks)
}

// Get handles GET /task/{id}
func (c *TaskController) Get(w http.ResponseWriter, r *http.Request) {
	task, err := c.tasks.GetTask(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		controllers.Fail(w, r, c.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, task)
}

type acceptRequest struct {
	TaskID string `json:"taskId"`
}

// Accept handles POST /task/accept
func (c *TaskController) Accept(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok {
		utils.WriteError(w, utils.ErrUnauthorized("Missing or invalid token"))
		return
	}
	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, utils.ErrValidation("Invalid request"))
		return
	}
	volunteer, task, err := c.tasks.AcceptTask(r.Context(), uid, strings.TrimSpace(req.TaskID))
	if err != nil {
		controllers.Fail(w, r, c.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]interface{}{"volunteer": volunteer, "task": task})
}

// Submit handles POST /task/submit (multipart: taskId, file)
func (c *TaskController) Submit(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok {
		utils.WriteError(w, utils.ErrUnauthorized("Missing or invalid token"))
		return
	}
	if err := r.ParseMultipartForm(c.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteJSON(w, http.StatusRequestEntityTooLarge, utils.ErrorResponse{Error: "File too large"})
			return
		}
		utils.WriteError(w, utils.ErrValidation("Invalid form data"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	taskID := strings.TrimSpace(r.FormValue("taskId"))
	if taskID == "" {
		utils.WriteError(w, utils.ErrValidation("taskId is required"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		utils.WriteError(w, utils.ErrValidation("file is required"))
		return
	}
	defer file.Close()

	proof, err := io.ReadAll(io.LimitReader(file, c.maxUpload+1))
	if err != nil {
		controllers.Fail(w, r, c.log, utils.ErrInternal("Failed to read file", err))
		return
	}
	if int64(len(proof)) > c.maxUpload {
		utils.WriteJSON(w, http.StatusRequestEntityTooLarge, utils.ErrorResponse{Error: "File too large"})
		return
	}

	volunteer, task, err := c.tasks.SubmitProof(r.Context(), uid, taskID, proof)
	if err != nil {
		controllers.Fail(w, r, c.log, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]interface{}{"volunteer": volunteer, "task": task})
}

// Proof handles GET /task/verify/{id}: the raw proof image.
func (c *TaskController) Proof(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := c.tasks.GetProof(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		controllers.Fail(w, r, c.log, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Verify handles POST /task/verify/{id}: completes the task and pays out.
func (c *TaskController) Verify(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	if err := c.tasks.VerifyTask(r.Context(), uid, mux.Vars(r)["id"]); err != nil {
		status := utils.KindOf(err).Status()
		if utils.KindOf(err) == utils.KindConflict {
			status = http.StatusBadRequest
		}
		controllers.FailStatus(w, r, c.log, status, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Task verified"})
}

func parseFinite(n json.Number, field string) (float64, error) {
	if strings.TrimSpace(n.String()) == "" {
		return 0, utils.ErrValidation(field + " is required")
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, utils.ErrValidation(field + " must be a finite number")
	}
	return f, nil
}

// parseCredits accepts only non-negative whole numbers.
func parseCredits(n json.Number, field string) (int64, error) {
	if strings.TrimSpace(n.String()) == "" {
		return 0, utils.ErrValidation(field + " is required")
	}
	if v, err := n.Int64(); err == nil {
		if v < 0 || v > maxSafeCredits {
			return 0, utils.ErrValidation(field + " must be a non-negative integer")
		}
		return v, nil
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < 0 || f > maxSafeCredits {
		return 0, utils.ErrValidation(field + " must be a non-negative integer")
	}
	return int64(f), nil
}
