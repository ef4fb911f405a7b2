package services

import (
	"context"
	"errors"
	"testing"

	"github.com/GabeYou/Hack-The-Valley-2025/models"
	"github.com/GabeYou/Hack-The-Valley-2025/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestWalletDebitCredit(t *testing.T) {
	f := newFixture(t, posterPolicy)
	u := f.seedUser(t, "alice", 30)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		row, err := f.wallet.Debit(tx, LedgerEntry{UserID: u.ID, Amount: 30, Type: models.TxTypeContribution})
		require.NoError(t, err)
		assert.Equal(t, models.FlowDebit, row.TransactionFlow)
		assert.Nil(t, row.TaskID)

		_, err = f.wallet.Debit(tx, LedgerEntry{UserID: u.ID, Amount: 1, Type: models.TxTypeContribution})
		requireKind(t, err, utils.KindInsufficientFunds, "Insufficient funds")

		row, err = f.wallet.Credit(tx, LedgerEntry{UserID: u.ID, TaskID: "task-1", Amount: 5, Type: models.TxTypeBountyPayout})
		require.NoError(t, err)
		require.NotNil(t, row.TaskID)
		assert.Equal(t, "task-1", *row.TaskID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.balance(t, u.ID))
}

func TestWalletRejectsNegativeAndZero(t *testing.T) {
	f := newFixture(t, posterPolicy)
	u := f.seedUser(t, "alice", 30)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.wallet.Debit(tx, LedgerEntry{UserID: u.ID, Amount: -1})
		requireKind(t, err, utils.KindValidation, "")
		_, err = f.wallet.Credit(tx, LedgerEntry{UserID: u.ID, Amount: -1})
		requireKind(t, err, utils.KindValidation, "")

		row, err := f.wallet.Debit(tx, LedgerEntry{UserID: u.ID, Amount: 0})
		require.NoError(t, err)
		assert.Nil(t, row)

		_, err = f.wallet.Credit(tx, LedgerEntry{UserID: "missing", Amount: 0})
		requireKind(t, err, utils.KindNotFound, "User not found")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(30), f.balance(t, u.ID))
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := gorm.Open(gormmysql.New(gormmysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestCreateTaskRollsBackWhenInsertFails(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewTaskService(db, TaskServiceOptions{Wallet: newTestWallet(t)})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "wallet_balance"}).AddRow("u1", 500))
	mock.ExpectExec("UPDATE `users` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `transactions`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `tasks`").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := svc.CreateTask(context.Background(), "u1", CreateTaskInput{Title: "t", Description: "d", BountyTotal: 100})
	require.Error(t, err)
	assert.Equal(t, utils.KindInternal, utils.KindOf(err))
	assert.Equal(t, "Internal server error", utils.PublicMessage(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
