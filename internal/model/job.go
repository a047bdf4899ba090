package model

import (
	"time"

	"gorm.io/gorm"
)

type BackupStatus string

const (
	StatusSuccess   BackupStatus = "SUCCESS"
	StatusFailed    BackupStatus = "FAILED"
	StatusCancelled BackupStatus = "CANCELLED"
)

type BackupRecord struct {
	gorm.Model
	JobID       string       `gorm:"not null;index" json:"job_id"`
	Kind        string       `gorm:"not null" json:"kind"`
	Source      string       `json:"source"`
	Destination string       `json:"destination"`
	Files       int          `json:"files"`
	Bytes       int64        `json:"bytes"`
	Encrypted   bool         `json:"encrypted"`
	Target      string       `json:"target"`
	RemoteID    string       `json:"remote_id"`
	Status      BackupStatus `gorm:"not null" json:"status"`
	ErrMsg      string       `json:"error,omitempty"`
	StartedAt   time.Time    `gorm:"not null" json:"started_at"`
	FinishedAt  time.Time    `gorm:"not null" json:"finished_at"`
}
