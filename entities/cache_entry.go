package entities

import (
	"time"
)

type CacheEntry struct {
	Key             string    `json:"key" gorm:"type:varchar(64);primary_key"`
	Kind            string    `json:"kind" gorm:"type:varchar(50);not null;index:idx_cache_entries_kind"`
	PayloadPath     string    `json:"payload_path" gorm:"type:varchar(500);not null"`
	ContentType     string    `json:"content_type" gorm:"type:varchar(100);not null"`
	SizeBytes       int64     `json:"size_bytes" gorm:"type:bigint;not null"`
	DurationSeconds *float64  `json:"duration_seconds" gorm:"type:double precision"`
	HitCount        int64     `json:"hit_count" gorm:"type:bigint;not null;default:0"`
	CreatedAt       time.Time `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (CacheEntry) TableName() string {
	return "cache_entries"
}
