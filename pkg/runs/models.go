package runs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	TriggerCLI   = "cli"
	TriggerHTTP  = "http"
	TriggerKafka = "kafka"
)

type RunModel struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	Status       string            `gorm:"column:status;index"`
	Trigger      string            `gorm:"column:trigger"`
	Source       string            `gorm:"column:source"`
	Params       datatypes.JSONMap `gorm:"column:params"`
	Summary      datatypes.JSONMap `gorm:"column:summary"`
	ErrorMessage string            `gorm:"column:error_message"`
	CreatedAt    time.Time         `gorm:"column:created_at"`
	UpdatedAt    time.Time         `gorm:"column:updated_at"`
	StartedAt    *time.Time        `gorm:"column:started_at"`
	CompletedAt  *time.Time        `gorm:"column:completed_at"`
}

func (RunModel) TableName() string {
	return "pipeline_runs"
}

type TriggerInput struct {
	Trigger string
	// Source overrides the configured snapshot location: a directory path or
	// an http(s) export URL.
	Source string
	Params map[string]interface{}
}
