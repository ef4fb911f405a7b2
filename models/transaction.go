package models

import "time"

const (
	FlowCredit = "credit"
	FlowDebit  = "debit"

	TxTypeBountyPost   = "bounty_post"
	TxTypeContribution = "contribution"
	TxTypeBountyPayout = "bounty_payout"
	TxTypeSignupBonus  = "signup_bonus"

	TxStatusSuccess = "Success"
)

// Transaction is a wallet ledger entry written alongside every balance change.
type Transaction struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	UserID          string    `gorm:"size:36;not null;index" json:"userId"`
	TaskID          *string   `gorm:"size:36;index" json:"taskId,omitempty"`
	Amount          int64     `gorm:"not null" json:"amount"`
	OrderID         string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"orderId"`
	TransactionFlow string    `gorm:"size:10;not null" json:"transactionFlow"`
	TransactionType string    `gorm:"size:50;not null" json:"transactionType"`
	Message         *string   `gorm:"type:text" json:"message,omitempty"`
	Status          string    `gorm:"size:20;not null;default:'Success'" json:"status"`
	CreatedAt       time.Time `gorm:"index" json:"createdAt"`
}

func (Transaction) TableName() string {
	return "transactions"
}
