package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"interview-transcriber/constant"
)

// Segment is one timed span of a chunk's transcript. Timing is relative to
// the start of the chunk, not the session.
type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type SegmentList []Segment

func (s SegmentList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *SegmentList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("unsupported segment column type %T", value)
		}
		b = []byte(str)
	}
	return json.Unmarshal(b, s)
}

type Chunk struct {
	ID                  uuid.UUID                    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionID           string                       `json:"session_id" gorm:"type:varchar(255);not null;uniqueIndex:uq_chunks_session_sequence"`
	SequenceIndex       int                          `json:"sequence_index" gorm:"not null;uniqueIndex:uq_chunks_session_sequence"`
	ObjectName          string                       `json:"object_name" gorm:"type:varchar(500);not null"`
	FileSizeBytes       int64                        `json:"file_size_bytes" gorm:"type:bigint;not null"`
	OverlapSeconds      float64                      `json:"overlap_seconds" gorm:"type:double precision;not null;default:2.0"`
	QuestionID          *string                      `json:"question_id" gorm:"type:varchar(255)"`
	UploadStatus        constant.UploadStatus        `json:"upload_status" gorm:"type:varchar(20);not null"`
	TranscriptionStatus constant.TranscriptionStatus `json:"transcription_status" gorm:"type:varchar(20);not null;default:'pending';index:idx_chunks_transcription_status"`
	TranscriptText      *string                      `json:"transcript_text" gorm:"type:text"`
	Segments            SegmentList                  `json:"segments" gorm:"type:jsonb"`
	ConfidenceScore     *float64                     `json:"confidence_score" gorm:"type:double precision"`
	DurationSeconds     *float64                     `json:"duration_seconds" gorm:"type:double precision"`
	AttemptCount        int                          `json:"attempt_count" gorm:"type:integer;not null;default:0"`
	LastError           *string                      `json:"last_error" gorm:"type:text"`
	CreatedAt           time.Time                    `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time                    `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Chunk) TableName() string {
	return "chunks"
}
