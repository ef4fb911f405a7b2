package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/GabeYou/Hack-The-Valley-2025/models"
	"github.com/GabeYou/Hack-The-Valley-2025/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	leaderboardSize   = 20
	walletHistorySize = 50
)

type UserService struct {
	db            *gorm.DB
	wallet        *Wallet
	log           *zap.Logger
	signupCredits int64
}

func NewUserService(db *gorm.DB, wallet *Wallet, log *zap.Logger, signupCredits int64) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{db: db, wallet: wallet, log: log, signupCredits: signupCredits}
}

type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	Address     string
	PhoneNumber string
}

// Register creates an account, granting any configured signup credits through
// the ledger.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.PhoneNumber)
	if email == "" || name == "" || in.Password == "" || phone == "" {
		return nil, utils.ErrValidation("Missing required fields")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, utils.ErrInternal("Failed to process password", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hashed),
		Name:         name,
		PhoneNumber:  phone,
	}
	if addr := strings.TrimSpace(in.Address); addr != "" {
		user.Address = &addr
	}

	var ledger *models.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return utils.ErrConflict("Email already registered")
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return utils.ErrConflict("Email already registered")
			}
			return err
		}
		var err error
		ledger, err = s.wallet.Credit(tx, LedgerEntry{
			UserID:  user.ID,
			Amount:  s.signupCredits,
			Type:    models.TxTypeSignupBonus,
			Message: "Welcome credits",
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	recordSettled(ledger)
	user.WalletBalance = s.signupCredits
	s.log.Info("user registered", zap.String("user_id", user.ID))
	return &user, nil
}

// Authenticate checks an email/password pair.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, utils.ErrValidation("Email and password are required")
	}
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrUnauthorized("Invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, utils.ErrUnauthorized("Invalid credentials")
	}
	return &user, nil
}

// Profile is a user with the tasks they volunteered on and their contributions.
type Profile struct {
	models.User
	VolunteeredTasks []models.TaskVolunteer    `json:"volunteeredTasks"`
	Contributions    []models.TaskContribution `json:"contributions"`
}

func (s *UserService) Profile(ctx context.Context, userID string) (*Profile, error) {
	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrNotFound("User not found")
		}
		return nil, err
	}

	p := &Profile{User: user, VolunteeredTasks: []models.TaskVolunteer{}, Contributions: []models.TaskContribution{}}
	if err := db.Where("user_id = ?", userID).Order("joined_at DESC").Find(&p.VolunteeredTasks).Error; err != nil {
		return nil, err
	}
	if err := db.Where("user_id = ?", userID).Order("timestamp DESC").Find(&p.Contributions).Error; err != nil {
		return nil, err
	}

	taskIDs := map[string]struct{}{}
	for _, v := range p.VolunteeredTasks {
		taskIDs[v.TaskID] = struct{}{}
	}
	for _, c := range p.Contributions {
		taskIDs[c.TaskID] = struct{}{}
	}
	tasks, err := s.tasksByID(db, taskIDs)
	if err != nil {
		return nil, err
	}
	for i := range p.VolunteeredTasks {
		p.VolunteeredTasks[i].Task = tasks[p.VolunteeredTasks[i].TaskID]
	}
	for i := range p.Contributions {
		p.Contributions[i].Task = tasks[p.Contributions[i].TaskID]
	}
	return p, nil
}

func (s *UserService) tasksByID(db *gorm.DB, ids map[string]struct{}) (map[string]*models.Task, error) {
	out := make(map[string]*models.Task, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	var tasks []models.Task
	if err := db.Where("id IN ?", list).Find(&tasks).Error; err != nil {
		return nil, err
	}
	if err := attachUsers(db, tasks); err != nil {
		return nil, err
	}
	for i := range tasks {
		out[tasks[i].ID] = &tasks[i]
	}
	return out, nil
}

type WalletView struct {
	WalletBalance int64                `json:"walletBalance"`
	Transactions  []models.Transaction `json:"transactions"`
}

// Wallet returns the balance and the most recent ledger rows.
func (s *UserService) Wallet(ctx context.Context, userID string) (*WalletView, error) {
	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.Select("id", "wallet_balance").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrNotFound("User not found")
		}
		return nil, err
	}
	view := &WalletView{WalletBalance: user.WalletBalance, Transactions: []models.Transaction{}}
	if err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(walletHistorySize).
		Find(&view.Transactions).Error; err != nil {
		return nil, err
	}
	return view, nil
}

// CompletedBounties counts the completed tasks the user volunteered on.
func (s *UserService) CompletedBounties(ctx context.Context, userID string) (int64, error) {
	db := s.db.WithContext(ctx)
	var exists int64
	if err := db.Model(&models.User{}).Where("id = ?", userID).Count(&exists).Error; err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, utils.ErrNotFound("User not found")
	}
	var n int64
	err := db.Model(&models.TaskVolunteer{}).Where("user_id = ? AND completed = ?", userID, true).Count(&n).Error
	return n, err
}

// TotalEarned sums the bounty payouts credited to the user.
func (s *UserService) TotalEarned(ctx context.Context, userID string) (int64, error) {
	earned, err := s.earnings(ctx)
	if err != nil {
		return 0, err
	}
	return earned[userID], nil
}

type CompletedEntry struct {
	User           models.UserSummary `json:"user"`
	CompletedCount int64              `json:"completedCount"`
}

type EarnedEntry struct {
	User        models.UserSummary `json:"user"`
	TotalEarned int64              `json:"totalEarned"`
}

type Leaderboard struct {
	TopCompleted []CompletedEntry `json:"topCompleted"`
	TopEarned    []EarnedEntry    `json:"topEarned"`
}

type userCount struct {
	UserID string
	Count  int64
}

func (s *UserService) completedCounts(ctx context.Context) ([]userCount, error) {
	var rows []userCount
	err := s.db.WithContext(ctx).Model(&models.TaskVolunteer{}).
		Select("user_id, COUNT(*) AS count").
		Where("completed = ?", true).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].UserID < rows[j].UserID
	})
	return rows, nil
}

// earnings totals bounty payouts per user from the wallet ledger.
func (s *UserService) earnings(ctx context.Context) (map[string]int64, error) {
	var rows []models.Transaction
	err := s.db.WithContext(ctx).
		Select("user_id", "amount").
		Where("transaction_type = ? AND transaction_flow = ?", models.TxTypeBountyPayout, models.FlowCredit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64)
	for _, r := range rows {
		out[r.UserID] += r.Amount
	}
	return out, nil
}

// Leaderboard ranks the top volunteers by completed tasks and by credits earned.
func (s *UserService) Leaderboard(ctx context.Context) (*Leaderboard, error) {
	counts, err := s.completedCounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(counts) > leaderboardSize {
		counts = counts[:leaderboardSize]
	}

	earned, err := s.earnings(ctx)
	if err != nil {
		return nil, err
	}
	type pair struct {
		userID string
		total  int64
	}
	pairs := make([]pair, 0, len(earned))
	for id, total := range earned {
		pairs = append(pairs, pair{id, total})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].total != pairs[j].total {
			return pairs[i].total > pairs[j].total
		}
		return pairs[i].userID < pairs[j].userID
	})
	if len(pairs) > leaderboardSize {
		pairs = pairs[:leaderboardSize]
	}

	ids := map[string]struct{}{}
	for _, c := range counts {
		ids[c.UserID] = struct{}{}
	}
	for _, p := range pairs {
		ids[p.userID] = struct{}{}
	}
	users, err := loadUserSummaries(s.db.WithContext(ctx), ids)
	if err != nil {
		return nil, err
	}
	summary := func(id string) models.UserSummary {
		if u, ok := users[id]; ok {
			return *u
		}
		return models.UserSummary{ID: id}
	}

	board := &Leaderboard{TopCompleted: []CompletedEntry{}, TopEarned: []EarnedEntry{}}
	for _, c := range counts {
		board.TopCompleted = append(board.TopCompleted, CompletedEntry{User: summary(c.UserID), CompletedCount: c.Count})
	}
	for _, p := range pairs {
		board.TopEarned = append(board.TopEarned, EarnedEntry{User: summary(p.userID), TotalEarned: p.total})
	}
	return board, nil
}

// Rank is the user's 1-based position by completed tasks, or 0 when unranked.
func (s *UserService) Rank(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	counts, err := s.completedCounts(ctx)
	if err != nil {
		return 0, err
	}
	for i, c := range counts {
		if c.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (s *UserService) OpenBounties(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Task{}).Where("status = ?", models.TaskStatusOpen).Count(&n).Error
	return n, err
}

func (s *UserService) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}
