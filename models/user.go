package models

import "time"

type User struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	Email         string    `gorm:"size:191;uniqueIndex;not null" json:"email"`
	PasswordHash  string    `gorm:"size:255;not null" json:"-"`
	Name          string    `gorm:"size:100;not null" json:"name"`
	Address       *string   `gorm:"size:255" json:"address,omitempty"`
	PhoneNumber   string    `gorm:"size:32;not null" json:"phoneNumber"`
	WalletBalance int64     `gorm:"not null;default:0" json:"walletBalance"`
	Reputation    int       `gorm:"not null;default:0" json:"reputation"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserSummary is the public view of a user attached to tasks and contributions.
type UserSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Reputation int    `json:"reputation"`
}

func (UserSummary) TableName() string {
	return "users"
}
