package model

import (
	"time"

	"github.com/google/uuid"
)

type TransferSummary struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BatteryId       string    `gorm:"type:varchar(100);not null;index"`
	TestId          string    `gorm:"type:varchar(100);not null;index"`
	StateOfCharge   string    `gorm:"type:varchar(20);not null"`
	SourceFileName  string    `gorm:"type:varchar(255)"`
	ExpectedSamples int       `gorm:"not null"`
	TotalSamples    int       `gorm:"not null"`
	ValidSamples    int       `gorm:"not null"`
	RejectedSamples int       `gorm:"not null"`
	IsSuccessful    bool      `gorm:"not null"`
	StartedAt       time.Time `gorm:"not null"`
	EndedAt         time.Time `gorm:"not null;index"`
	DurationMs      int64     `gorm:"not null"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

func (TransferSummary) TableName() string {
	return "transfer_summaries"
}
