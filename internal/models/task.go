package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы задачи. Задача создаётся как draft и становится open
// только после подтверждения депозита.
const (
	TaskStatusDraft      = "draft"
	TaskStatusOpen       = "open"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

// Статусы отклика.
const (
	BidStatusPending   = "pending"
	BidStatusAccepted  = "accepted"
	BidStatusRejected  = "rejected"
	BidStatusCancelled = "cancelled"
)

// Task описывает задачу, размещённую клиентом.
type Task struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ClientID      uuid.UUID  `db:"client_id" json:"client_id"`
	Title         string     `db:"title" json:"title"`
	Description   string     `db:"description" json:"description"`
	Budget        float64    `db:"budget" json:"budget"`
	Deadline      *time.Time `db:"deadline" json:"deadline,omitempty"`
	Status        string     `db:"status" json:"status"`
	AcceptedBidID *uuid.UUID `db:"accepted_bid_id" json:"accepted_bid_id,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	BidsCount     *int       `db:"bids_count" json:"bids_count,omitempty"`
}

// Bid представляет отклик фрилансера на задачу.
type Bid struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TaskID       uuid.UUID `db:"task_id" json:"task_id"`
	FreelancerID uuid.UUID `db:"freelancer_id" json:"freelancer_id"`
	Amount       float64   `db:"amount" json:"amount"`
	Proposal     string    `db:"proposal" json:"proposal"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
