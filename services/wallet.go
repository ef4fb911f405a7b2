package services

import (
	"errors"

	"github.com/GabeYou/Hack-The-Valley-2025/metrics"
	"github.com/GabeYou/Hack-The-Valley-2025/models"
	"github.com/GabeYou/Hack-The-Valley-2025/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerEntry describes one balance change and the ledger row recording it.
type LedgerEntry struct {
	UserID  string
	TaskID  string
	Amount  int64
	Type    string
	Message string
}

// Wallet applies balance changes inside a caller's transaction. Every change
// locks the user row, moves the balance and writes a transactions row, so it
// commits or rolls back with the rest of the caller's writes.
type Wallet struct {
	orderIDs *utils.OrderIDGenerator
}

func NewWallet(orderIDs *utils.OrderIDGenerator) *Wallet {
	return &Wallet{orderIDs: orderIDs}
}

// Debit removes Amount credits. A zero amount only checks the user exists.
func (w *Wallet) Debit(tx *gorm.DB, e LedgerEntry) (*models.Transaction, error) {
	user, err := lockUser(tx, e.UserID)
	if err != nil {
		return nil, err
	}
	if e.Amount < 0 {
		return nil, utils.ErrValidation("Amount must not be negative")
	}
	if e.Amount == 0 {
		return nil, nil
	}
	if user.WalletBalance < e.Amount {
		return nil, utils.ErrInsufficientFunds("Insufficient funds")
	}

	res := tx.Model(&models.User{}).
		Where("id = ? AND wallet_balance >= ?", e.UserID, e.Amount).
		Update("wallet_balance", gorm.Expr("wallet_balance - ?", e.Amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrInsufficientFunds("Insufficient funds")
	}
	return w.record(tx, e, models.FlowDebit)
}

// Credit adds Amount credits. A zero amount only checks the user exists.
func (w *Wallet) Credit(tx *gorm.DB, e LedgerEntry) (*models.Transaction, error) {
	if _, err := lockUser(tx, e.UserID); err != nil {
		return nil, err
	}
	if e.Amount < 0 {
		return nil, utils.ErrValidation("Amount must not be negative")
	}
	if e.Amount == 0 {
		return nil, nil
	}

	if err := tx.Model(&models.User{}).
		Where("id = ?", e.UserID).
		Update("wallet_balance", gorm.Expr("wallet_balance + ?", e.Amount)).Error; err != nil {
		return nil, err
	}
	return w.record(tx, e, models.FlowCredit)
}

func (w *Wallet) record(tx *gorm.DB, e LedgerEntry, flow string) (*models.Transaction, error) {
	row := models.Transaction{
		ID:              uuid.NewString(),
		UserID:          e.UserID,
		Amount:          e.Amount,
		OrderID:         w.orderIDs.Next(),
		TransactionFlow: flow,
		TransactionType: e.Type,
		Status:          models.TxStatusSuccess,
	}
	if e.TaskID != "" {
		taskID := e.TaskID
		row.TaskID = &taskID
	}
	if e.Message != "" {
		msg := e.Message
		row.Message = &msg
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func lockUser(tx *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "wallet_balance").
		First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound("User not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// recordSettled publishes committed ledger rows to metrics.
func recordSettled(rows ...*models.Transaction) {
	for _, row := range rows {
		if row == nil {
			continue
		}
		metrics.WalletCredits.WithLabelValues(row.TransactionFlow, row.TransactionType).Add(float64(row.Amount))
	}
}
