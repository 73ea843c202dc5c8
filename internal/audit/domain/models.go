// Package domain contains persistence models for the action log.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ActionLog records one workflow intent: who did what to which record.
// Transitions are logged as discrete intents, never inferred from
// before/after diffs.
type ActionLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	TargetType string            `gorm:"type:text;not null;index:ix_action_logs_target,priority:1" json:"target_type"`
	TargetID   string            `gorm:"type:text;not null;index:ix_action_logs_target,priority:2" json:"target_id"`
	ActorType  string            `gorm:"type:text;not null" json:"actor_type"`
	ActorID    string            `gorm:"type:text" json:"actor_id"`
	What       string            `gorm:"type:text;not null" json:"what"`
	Detail     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"detail"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ActionLog) TableName() string { return "action_logs" }
