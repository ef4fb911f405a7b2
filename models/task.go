package models

import "time"

const (
	TaskStatusOpen       = "open"
	TaskStatusInProgress = "in_progress"
	TaskStatusInReview   = "in_review"
	TaskStatusCompleted  = "completed"

	EffortSolo = "solo"

	MaxTaskLinks = 20
)

type Task struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Location    string    `gorm:"size:64;not null" json:"location"`
	BountyTotal int64     `gorm:"not null;default:0" json:"bountyTotal"`
	Status      string    `gorm:"size:20;not null;default:'open';index" json:"status"`
	EffortLevel string    `gorm:"size:20;not null;default:'solo'" json:"effortLevel"`
	PostedByID  string    `gorm:"size:36;not null;index" json:"postedById"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time `json:"-"`

	PostedBy      *UserSummary       `gorm:"-" json:"postedBy,omitempty"`
	Contributions []TaskContribution `gorm:"constraint:OnDelete:CASCADE" json:"contributions,omitempty"`
	Volunteers    []TaskVolunteer    `gorm:"constraint:OnDelete:CASCADE" json:"volunteers,omitempty"`
	Links         []TaskLink         `gorm:"constraint:OnDelete:CASCADE" json:"links,omitempty"`
}

func (Task) TableName() string {
	return "tasks"
}

// TaskContribution is one user's share of a task's bounty pool. A user holds at
// most one row per task; repeat contributions increment Amount.
type TaskContribution struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TaskID    string    `gorm:"size:36;not null;uniqueIndex:idx_task_contributions_task_user" json:"taskId"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_task_contributions_task_user" json:"userId"`
	Amount    int64     `gorm:"not null" json:"amount"`
	Timestamp time.Time `gorm:"autoCreateTime;index" json:"timestamp"`

	User *UserSummary `gorm:"-" json:"user,omitempty"`
	Task *Task        `gorm:"-" json:"task,omitempty"`
}

func (TaskContribution) TableName() string {
	return "task_contributions"
}

// TaskVolunteer is the single accepted worker of a task. ProofURL keeps the raw
// proof image bytes under its historical column name.
type TaskVolunteer struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TaskID    string    `gorm:"size:36;not null;uniqueIndex" json:"taskId"`
	UserID    string    `gorm:"size:36;not null;index" json:"userId"`
	JoinedAt  time.Time `gorm:"autoCreateTime" json:"joinedAt"`
	Completed bool      `gorm:"not null;default:false" json:"completed"`
	ProofURL  []byte    `gorm:"column:proof_url" json:"-"`
	ProofKey  *string   `gorm:"size:255" json:"proofKey,omitempty"`

	User *UserSummary `gorm:"-" json:"user,omitempty"`
	Task *Task        `gorm:"-" json:"task,omitempty"`
}

func (TaskVolunteer) TableName() string {
	return "task_volunteers"
}

func (v TaskVolunteer) HasProof() bool {
	return len(v.ProofURL) > 0
}

type TaskLink struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TaskID    string    `gorm:"size:36;not null;index" json:"taskId"`
	URL       string    `gorm:"size:2048;not null" json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

func (TaskLink) TableName() string {
	return "task_links"
}
