package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/GabeYou/Hack-The-Valley-2025/config"
	"github.com/GabeYou/Hack-The-Valley-2025/metrics"
	"github.com/GabeYou/Hack-The-Valley-2025/models"
	"github.com/GabeYou/Hack-The-Valley-2025/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProofArchiver mirrors proof images to object storage.
type ProofArchiver interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

type TaskService struct {
	db           *gorm.DB
	wallet       *Wallet
	archive      ProofArchiver
	log          *zap.Logger
	tracer       trace.Tracer
	verifyPolicy string
}

type TaskServiceOptions struct {
	Wallet       *Wallet
	Archive      ProofArchiver
	Logger       *zap.Logger
	Tracer       trace.Tracer
	VerifyPolicy string
}

func NewTaskService(db *gorm.DB, opts TaskServiceOptions) *TaskService {
	policy := opts.VerifyPolicy
	if policy == "" {
		policy = config.VerifyPolicyPoster
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/GabeYou/Hack-The-Valley-2025/services")
	}
	return &TaskService{
		db:           db,
		wallet:       opts.Wallet,
		archive:      opts.Archive,
		log:          log,
		tracer:       tracer,
		verifyPolicy: policy,
	}
}

// VerifyRequiresAuth reports whether completing a task needs a caller identity.
func (s *TaskService) VerifyRequiresAuth() bool {
	return s.verifyPolicy == config.VerifyPolicyPoster
}

type CreateTaskInput struct {
	Title       string
	Description string
	Lat         float64
	Lon         float64
	BountyTotal int64
	Links       []string
}

// CreateTask posts a new open task funded from the creator's wallet.
func (s *TaskService) CreateTask(ctx context.Context, userID string, in CreateTaskInput) (task *models.Task, err error) {
	ctx, span := s.tracer.Start(ctx, "tasks.Create", trace.WithAttributes(attribute.Int64("bounty_total", in.BountyTotal)))
	defer func() { s.finish(span, "create", err) }()

	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		return nil, utils.ErrValidation("Title and description are required")
	}
	if math.IsNaN(in.Lat) || math.IsInf(in.Lat, 0) || math.IsNaN(in.Lon) || math.IsInf(in.Lon, 0) {
		return nil, utils.ErrValidation("Latitude and longitude must be finite numbers")
	}
	if in.BountyTotal < 0 {
		return nil, utils.ErrValidation("bountyTotal must be a non-negative integer")
	}

	created := models.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Location:    formatLocation(in.Lat, in.Lon),
		BountyTotal: in.BountyTotal,
		Status:      models.TaskStatusOpen,
		EffortLevel: models.EffortSolo,
		PostedByID:  userID,
	}

	var ledger *models.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ledger, err = s.wallet.Debit(tx, LedgerEntry{
			UserID:  userID,
			TaskID:  created.ID,
			Amount:  in.BountyTotal,
			Type:    models.TxTypeBountyPost,
			Message: "Bounty posted: " + title,
		})
		if err != nil {
			return err
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.TaskContribution{
			ID:     uuid.NewString(),
			TaskID: created.ID,
			UserID: userID,
			Amount: in.BountyTotal,
		}).Error; err != nil {
			return err
		}
		if links := normalizeLinks(created.ID, in.Links); len(links) > 0 {
			if err := tx.Create(&links).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	recordSettled(ledger)
	metrics.TaskTransitions.WithLabelValues(models.TaskStatusOpen).Inc()

	task, err = s.loadTask(ctx, created.ID, false)
	if err != nil {
		return nil, err
	}
	s.log.Info("task created", zap.String("task_id", task.ID), zap.String("user_id", userID), zap.Int64("bounty_total", task.BountyTotal))
	return task, nil
}

// Contribute adds amount to a task's pool from the caller's wallet. The caller
// keeps a single contribution row per task. A completed task has already paid
// out and takes no further contributions.
func (s *TaskService) Contribute(ctx context.Context, userID, taskID string, amount int64) (contribution *models.TaskContribution, all []models.TaskContribution, err error) {
	ctx, span := s.tracer.Start(ctx, "tasks.Contribute", trace.WithAttributes(
		attribute.String("task_id", taskID),
		attribute.Int64("amount", amount),
	))
	defer func() { s.finish(span, "contribute", err) }()

	if strings.TrimSpace(taskID) == "" {
		return nil, nil, utils.ErrValidation("taskId is required")
	}
	if amount < 0 {
		return nil, nil, utils.ErrValidation("amount must be a non-negative integer")
	}

	var ledger *models.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := lockTask(tx, taskID)
		if err != nil {
			return err
		}
		if task.Status == models.TaskStatusCompleted {
			return utils.ErrConflict("Task already completed")
		}
		ledger, err = s.wallet.Debit(tx, LedgerEntry{
			UserID:  userID,
			TaskID:  task.ID,
			Amount:  amount,
			Type:    models.TxTypeContribution,
			Message: "Contribution to: " + task.Title,
		})
		if err != nil {
			return err
		}

		var existing models.TaskContribution
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("task_id = ? AND user_id = ?", task.ID, userID).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			existing = models.TaskContribution{
				ID:     uuid.NewString(),
				TaskID: task.ID,
				UserID: userID,
				Amount: amount,
			}
			if err := tx.Create(&existing).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&models.TaskContribution{}).
				Where("id = ?", existing.ID).
				Update("amount", gorm.Expr("amount + ?", amount)).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Task{}).
			Where("id = ?", task.ID).
			Update("bounty_total", gorm.Expr("bounty_total + ?", amount)).Error; err != nil {
			return err
		}

		if err := tx.Where("task_id = ?", task.ID).Order("timestamp DESC").Find(&all).Error; err != nil {
			return err
		}
		for i := range all {
			if all[i].ID == existing.ID {
				c := all[i]
				contribution = &c
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	recordSettled(ledger)
	s.log.Info("task contribution", zap.String("task_id", taskID), zap.String("user_id", userID), zap.Int64("amount", amount))
	return contribution, all, nil
}

// AcceptTask makes the caller the task's single volunteer.
func (s *TaskService) AcceptTask(ctx context.Context, userID, taskID string) (volunteer *models.TaskVolunteer, task *models.Task, err error) {
	ctx, span := s.tracer.Start(ctx, "tasks.Accept", trace.WithAttributes(attribute.String("task_id", taskID)))
	defer func() { s.finish(span, "accept", err) }()

	if strings.TrimSpace(taskID) == "" {
		return nil, nil, utils.ErrValidation("taskId is required")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockTask(tx, taskID)
		if err != nil {
			return err
		}
		var volunteers int64
		if err := tx.Model(&models.TaskVolunteer{}).Where("task_id = ?", locked.ID).Count(&volunteers).Error; err != nil {
			return err
		}
		if volunteers > 0 {
			return utils.ErrConflict("Task already has a volunteer")
		}
		if locked.Status != models.TaskStatusOpen {
			return utils.ErrConflict("Task is not open for acceptance")
		}

		volunteer = &models.TaskVolunteer{
			ID:     uuid.NewString(),
			TaskID: locked.ID,
			UserID: userID,
		}
		if err := tx.Create(volunteer).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return utils.ErrConflict("Task already has a volunteer")
			}
			return err
		}
		if err := tx.Model(&models.Task{}).Where("id = ?", locked.ID).Update("status", models.TaskStatusInProgress).Error; err != nil {
			return err
		}
		locked.Status = models.TaskStatusInProgress
		task = locked
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	metrics.TaskTransitions.WithLabelValues(models.TaskStatusInProgress).Inc()
	s.log.Info("task accepted", zap.String("task_id", taskID), zap.String("user_id", userID))
	return volunteer, task, nil
}

// SubmitProof stores the assigned volunteer's proof image and moves the task to
// review. Re-submitting while in review replaces the stored proof.
func (s *TaskService) SubmitProof(ctx context.Context, userID, taskID string, proof []byte) (volunteer *models.TaskVolunteer, task *models.Task, err error) {
	ctx, span := s.tracer.Start(ctx, "tasks.SubmitProof", trace.WithAttributes(
		attribute.String("task_id", taskID),
		attribute.Int("proof_bytes", len(proof)),
	))
	defer func() { s.finish(span, "submit", err) }()

	if strings.TrimSpace(taskID) == "" {
		return nil, nil, utils.ErrValidation("taskId is required")
	}
	if len(proof) == 0 {
		return nil, nil, utils.ErrValidation("file is required")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockTask(tx, taskID)
		if err != nil {
			return err
		}
		var v models.TaskVolunteer
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("task_id = ?", locked.ID).First(&v).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && v.UserID != userID) {
			return utils.ErrForbidden("Only the assigned volunteer may submit proof")
		}
		if err != nil {
			return err
		}
		if locked.Status != models.TaskStatusInProgress && locked.Status != models.TaskStatusInReview {
			return utils.ErrConflict("Task is not in progress and cannot be submitted")
		}

		if err := tx.Model(&models.TaskVolunteer{}).Where("id = ?", v.ID).Update("proof_url", proof).Error; err != nil {
			return err
		}
		if locked.Status != models.TaskStatusInReview {
			if err := tx.Model(&models.Task{}).Where("id = ?", locked.ID).Update("status", models.TaskStatusInReview).Error; err != nil {
				return err
			}
			locked.Status = models.TaskStatusInReview
		}
		v.ProofURL = proof
		volunteer = &v
		task = locked
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	metrics.TaskTransitions.WithLabelValues(models.TaskStatusInReview).Inc()

	if s.archive != nil {
		s.archiveProof(ctx, volunteer)
	}
	s.log.Info("task proof submitted", zap.String("task_id", taskID), zap.String("user_id", userID), zap.Int("bytes", len(proof)))
	return volunteer, task, nil
}

// archiveProof mirrors the proof to object storage. The database copy stays
// authoritative, so failures are logged and counted only.
func (s *TaskService) archiveProof(ctx context.Context, v *models.TaskVolunteer) {
	contentType := utils.SniffImageType(v.ProofURL)
	key := fmt.Sprintf("proofs/%s/%s%s", v.TaskID, uuid.NewString(), utils.ImageExtension(contentType))
	if err := s.archive.Put(ctx, key, v.ProofURL, contentType); err != nil {
		metrics.ProofArchiveFailures.Inc()
		s.log.Warn("proof archive failed", zap.String("task_id", v.TaskID), zap.Error(err))
		return
	}
	if err := s.db.WithContext(ctx).Model(&models.TaskVolunteer{}).Where("id = ?", v.ID).Update("proof_key", key).Error; err != nil {
		s.log.Warn("proof key update failed", zap.String("task_id", v.TaskID), zap.Error(err))
		return
	}
	if old := v.ProofKey; old != nil && *old != "" && *old != key {
		if err := s.archive.Delete(ctx, *old); err != nil {
			s.log.Warn("stale proof delete failed", zap.String("key", *old), zap.Error(err))
		}
	}
	v.ProofKey = &key
}

// VerifyTask completes a task and pays its bounty to the volunteer. The three
// writes commit together or not at all.
func (s *TaskService) VerifyTask(ctx context.Context, callerID, taskID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "tasks.Verify", trace.WithAttributes(attribute.String("task_id", taskID)))
	defer func() { s.finish(span, "verify", err) }()

	if s.VerifyRequiresAuth() && callerID == "" {
		return utils.ErrUnauthorized("Missing or invalid token")
	}

	var ledger *models.Transaction
	var volunteerID string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := lockTask(tx, taskID)
		if err != nil {
			return err
		}
		if s.VerifyRequiresAuth() && task.PostedByID != callerID {
			return utils.ErrForbidden("Only the task poster may verify completion")
		}
		if task.Status == models.TaskStatusCompleted {
			return utils.ErrConflict("Task already completed")
		}

		var v models.TaskVolunteer
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("task_id = ?", task.ID).First(&v).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrValidation("Task has no volunteer")
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&models.Task{}).Where("id = ?", task.ID).Update("status", models.TaskStatusCompleted).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.TaskVolunteer{}).Where("id = ?", v.ID).Update("completed", true).Error; err != nil {
			return err
		}
		ledger, err = s.wallet.Credit(tx, LedgerEntry{
			UserID:  v.UserID,
			TaskID:  task.ID,
			Amount:  task.BountyTotal,
			Type:    models.TxTypeBountyPayout,
			Message: "Bounty completed: " + task.Title,
		})
		volunteerID = v.UserID
		return err
	})
	if err != nil {
		return err
	}
	recordSettled(ledger)
	metrics.TaskTransitions.WithLabelValues(models.TaskStatusCompleted).Inc()
	s.log.Info("task completed", zap.String("task_id", taskID), zap.String("volunteer_id", volunteerID))
	return nil
}

// GetProof returns the stored proof bytes and their sniffed content type.
func (s *TaskService) GetProof(ctx context.Context, taskID string) ([]byte, string, error) {
	var v models.TaskVolunteer
	err := s.db.WithContext(ctx).Where("task_id = ?", taskID).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !v.HasProof()) {
		return nil, "", utils.ErrNotFound("Proof not found")
	}
	if err != nil {
		return nil, "", err
	}
	return v.ProofURL, utils.SniffImageType(v.ProofURL), nil
}

// ListTasks returns every task, newest first, with contributions (newest first)
// and links.
func (s *TaskService) ListTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Preload("Contributions", func(db *gorm.DB) *gorm.DB { return db.Order("timestamp DESC") }).
		Preload("Links", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Order("created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	if err := attachUsers(s.db.WithContext(ctx), tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask returns one task with its poster, contributions, volunteers and links.
func (s *TaskService) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, utils.ErrValidation("Task id is required")
	}
	return s.loadTask(ctx, taskID, true)
}

func (s *TaskService) loadTask(ctx context.Context, taskID string, withVolunteers bool) (*models.Task, error) {
	q := s.db.WithContext(ctx).
		Preload("Contributions", func(db *gorm.DB) *gorm.DB { return db.Order("timestamp DESC") }).
		Preload("Links", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") })
	if withVolunteers {
		q = q.Preload("Volunteers")
	}
	var task models.Task
	if err := q.First(&task, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrNotFound("Task not found")
		}
		return nil, err
	}
	tasks := []models.Task{task}
	if err := attachUsers(s.db.WithContext(ctx), tasks); err != nil {
		return nil, err
	}
	return &tasks[0], nil
}

func (s *TaskService) finish(span trace.Span, op string, err error) {
	if err != nil {
		kind := utils.KindOf(err)
		metrics.TaskOperationFailures.WithLabelValues(op, kind.String()).Inc()
		if kind == utils.KindInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("error.kind", kind.String()))
		}
	}
	span.End()
}

func lockTask(tx *gorm.DB, taskID string) (*models.Task, error) {
	var task models.Task
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&task, "id = ?", taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound("Task not found")
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// attachUsers fills the public user views on tasks, contributions and volunteers.
func attachUsers(db *gorm.DB, tasks []models.Task) error {
	ids := map[string]struct{}{}
	for _, t := range tasks {
		ids[t.PostedByID] = struct{}{}
		for _, c := range t.Contributions {
			ids[c.UserID] = struct{}{}
		}
		for _, v := range t.Volunteers {
			ids[v.UserID] = struct{}{}
		}
	}
	users, err := loadUserSummaries(db, ids)
	if err != nil {
		return err
	}
	for i := range tasks {
		tasks[i].PostedBy = users[tasks[i].PostedByID]
		for j := range tasks[i].Contributions {
			tasks[i].Contributions[j].User = users[tasks[i].Contributions[j].UserID]
		}
		for j := range tasks[i].Volunteers {
			tasks[i].Volunteers[j].User = users[tasks[i].Volunteers[j].UserID]
		}
	}
	return nil
}

func loadUserSummaries(db *gorm.DB, ids map[string]struct{}) (map[string]*models.UserSummary, error) {
	out := make(map[string]*models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	var rows []models.UserSummary
	if err := db.Where("id IN ?", list).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

func normalizeLinks(taskID string, raw []string) []models.TaskLink {
	var links []models.TaskLink
	for _, l := range raw {
		if len(links) == models.MaxTaskLinks {
			break
		}
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		links = append(links, models.TaskLink{ID: uuid.NewString(), TaskID: taskID, URL: l})
	}
	return links
}

func formatLocation(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}
