package models

import "time"

// RevokedToken holds logged-out token ids when no Redis is configured.
type RevokedToken struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	RevokedAt time.Time `json:"revokedAt"`
	ExpiresAt time.Time `gorm:"index" json:"expiresAt"`
}

func (RevokedToken) TableName() string {
	return "revoked_tokens"
}

// All lists every model managed by migrations, parents first.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Task{},
		&TaskContribution{},
		&TaskVolunteer{},
		&TaskLink{},
		&Transaction{},
		&RevokedToken{},
	}
}
