package entities

import (
	"time"

	"interview-transcriber/constant"
)

type Session struct {
	SessionID            string                 `json:"session_id" gorm:"type:varchar(255);primary_key"`
	Status               constant.SessionStatus `json:"status" gorm:"type:varchar(20);not null;default:'open';index:idx_sessions_status"`
	TotalChunksExpected  *int                   `json:"total_chunks_expected" gorm:"type:integer"`
	TotalDurationSeconds float64                `json:"total_duration_seconds" gorm:"type:double precision;not null;default:0"`
	CreatedAt            time.Time              `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time              `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	CompletedAt          *time.Time             `json:"completed_at" gorm:"type:timestamptz"`
}

func (Session) TableName() string {
	return "sessions"
}
