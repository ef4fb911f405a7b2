package services

import (
	"context"
	"testing"

	"github.com/GabeYou/Hack-The-Valley-2025/config"
	"github.com/GabeYou/Hack-The-Valley-2025/database"
	"github.com/GabeYou/Hack-The-Valley-2025/models"
	"github.com/GabeYou/Hack-The-Valley-2025/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var pngProof = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x01}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestWallet(t *testing.T) *Wallet {
	t.Helper()
	ids, err := utils.NewOrderIDGenerator(1)
	require.NoError(t, err)
	return NewWallet(ids)
}

type fixture struct {
	db     *gorm.DB
	wallet *Wallet
	tasks  *TaskService
	users  *UserService
}

func newFixture(t *testing.T, opts TaskServiceOptions) *fixture {
	t.Helper()
	db := newTestDB(t)
	wallet := newTestWallet(t)
	opts.Wallet = wallet
	return &fixture{
		db:     db,
		wallet: wallet,
		tasks:  NewTaskService(db, opts),
		users:  NewUserService(db, wallet, nil, 0),
	}
}

func (f *fixture) seedUser(t *testing.T, name string, balance int64) *models.User {
	t.Helper()
	u := &models.User{
		ID:            uuid.NewString(),
		Email:         name + "@example.com",
		PasswordHash:  "x",
		Name:          name,
		PhoneNumber:   "+15555550100",
		WalletBalance: balance,
	}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func (f *fixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	var u models.User
	require.NoError(t, f.db.First(&u, "id = ?", userID).Error)
	return u.WalletBalance
}

func (f *fixture) task(t *testing.T, taskID string) models.Task {
	t.Helper()
	var task models.Task
	require.NoError(t, f.db.First(&task, "id = ?", taskID).Error)
	return task
}

func (f *fixture) createTask(t *testing.T, posterID string, bounty int64) *models.Task {
	t.Helper()
	task, err := f.tasks.CreateTask(context.Background(), posterID, CreateTaskInput{
		Title:       "Clean the park",
		Description: "Pick up litter by the pond",
		Lat:         43.65,
		Lon:         -79.38,
		BountyTotal: bounty,
	})
	require.NoError(t, err)
	return task
}

// requirePoolBalanced checks bountyTotal equals the sum of contributions.
func (f *fixture) requirePoolBalanced(t *testing.T, taskID string) {
	t.Helper()
	var sum int64
	require.NoError(t, f.db.Model(&models.TaskContribution{}).
		Where("task_id = ?", taskID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error)
	require.Equal(t, f.task(t, taskID).BountyTotal, sum)
}

func requireKind(t *testing.T, err error, kind utils.Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, utils.KindOf(err), err.Error())
	if msg != "" {
		require.Equal(t, msg, utils.PublicMessage(err))
	}
}

var posterPolicy = TaskServiceOptions{VerifyPolicy: config.VerifyPolicyPoster}
