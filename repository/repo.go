package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"interview-transcriber/constant"
	"interview-transcriber/entities"
)

type Repository interface {
	GetDB() *gorm.DB

	GetSession(ctx context.Context, sessionID string) (*entities.Session, error)
	UpsertSessionOnUpload(ctx context.Context, sessionID string, totalChunksExpected *int) (*entities.Session, error)
	SetSessionStatus(ctx context.Context, sessionID string, status constant.SessionStatus) error
	CompleteSession(ctx context.Context, sessionID string, completedAt time.Time) (bool, error)
	RecomputeSessionDuration(ctx context.Context, sessionID string) error

	GetChunk(ctx context.Context, sessionID string, sequenceIndex int) (*entities.Chunk, error)
	GetChunkByID(ctx context.Context, id uuid.UUID) (*entities.Chunk, error)
	UpsertChunk(ctx context.Context, chunk *entities.Chunk) error
	ListChunks(ctx context.Context, sessionID string) ([]*entities.Chunk, error)
	ListChunkIndices(ctx context.Context, sessionID string) ([]int, error)
	MarkChunkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	CompleteChunkTranscription(ctx context.Context, id uuid.UUID, text string, segments entities.SegmentList, confidence float64, duration float64, attempts int) error
	FailChunkTranscription(ctx context.Context, id uuid.UUID, lastError string, attempts int) error

	GetCacheEntry(ctx context.Context, key string) (*entities.CacheEntry, error)
	InsertCacheEntry(ctx context.Context, entry *entities.CacheEntry) error
	IncrementCacheHit(ctx context.Context, key string) error
	ListCacheEntriesOlderThan(ctx context.Context, cutoff time.Time) ([]*entities.CacheEntry, error)
	DeleteCacheEntry(ctx context.Context, key string) error
	TotalCacheSize(ctx context.Context) (int64, error)
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) Repository {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	return &repo{
		db: gormDB,
	}
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) GetSession(ctx context.Context, sessionID string) (*entities.Session, error) {
	session := &entities.Session{}
	err := r.GetDB().WithContext(ctx).First(session, "session_id = ?", sessionID).Error
	if err != nil {
		return nil, err
	}
	return session, nil
}

// UpsertSessionOnUpload creates the session on first sight of a session_id
// and moves it to receiving. total_chunks_expected may arrive with any
// chunk, so it is recorded whenever supplied. Terminal statuses are never
// downgraded by a late upload.
func (r *repo) UpsertSessionOnUpload(ctx context.Context, sessionID string, totalChunksExpected *int) (*entities.Session, error) {
	db := r.GetDB().WithContext(ctx)

	session := &entities.Session{
		SessionID: sessionID,
		Status:    constant.SessionStatusReceiving,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoNothing: true,
	}).Create(session).Error
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if totalChunksExpected != nil {
		updates["total_chunks_expected"] = *totalChunksExpected
	}
	if err := db.Model(&entities.Session{}).Where("session_id = ?", sessionID).Updates(updates).Error; err != nil {
		return nil, err
	}

	// The status bump is guarded in the WHERE clause, not by a prior read: a
	// worker may complete the session concurrently with an upload, and a
	// read-then-write would flip it back to receiving.
	err = db.Model(&entities.Session{}).
		Where("session_id = ? AND status NOT IN ?", sessionID,
			[]constant.SessionStatus{constant.SessionStatusCompleted, constant.SessionStatusFailed}).
		Update("status", constant.SessionStatusReceiving).Error
	if err != nil {
		return nil, err
	}

	if err := db.First(session, "session_id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *repo) SetSessionStatus(ctx context.Context, sessionID string, status constant.SessionStatus) error {
	return r.GetDB().WithContext(ctx).Model(&entities.Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()}).Error
}

// CompleteSession sets completed_at exactly once. Returns false when
// another writer already completed the session.
func (r *repo) CompleteSession(ctx context.Context, sessionID string, completedAt time.Time) (bool, error) {
	result := r.GetDB().WithContext(ctx).Model(&entities.Session{}).
		Where("session_id = ? AND completed_at IS NULL AND status <> ?", sessionID, constant.SessionStatusFailed).
		Updates(map[string]interface{}{
			"status":       constant.SessionStatusCompleted,
			"completed_at": completedAt,
			"updated_at":   completedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) RecomputeSessionDuration(ctx context.Context, sessionID string) error {
	return r.GetDB().WithContext(ctx).Exec(
		`UPDATE sessions
		 SET total_duration_seconds = (
		     SELECT COALESCE(SUM(duration_seconds), 0) FROM chunks WHERE session_id = ?
		 ), updated_at = ?
		 WHERE session_id = ?`,
		sessionID, time.Now().UTC(), sessionID,
	).Error
}

func (r *repo) GetChunk(ctx context.Context, sessionID string, sequenceIndex int) (*entities.Chunk, error) {
	chunk := &entities.Chunk{}
	err := r.GetDB().WithContext(ctx).
		First(chunk, "session_id = ? AND sequence_index = ?", sessionID, sequenceIndex).Error
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

func (r *repo) GetChunkByID(ctx context.Context, id uuid.UUID) (*entities.Chunk, error) {
	chunk := &entities.Chunk{}
	err := r.GetDB().WithContext(ctx).First(chunk, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// UpsertChunk is last-writer-wins on (session_id, sequence_index). An
// overwrite resets the transcription fields so the chunk is picked up
// again by the worker pool.
func (r *repo) UpsertChunk(ctx context.Context, chunk *entities.Chunk) error {
	return r.GetDB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}, {Name: "sequence_index"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"object_name",
			"file_size_bytes",
			"overlap_seconds",
			"question_id",
			"upload_status",
			"transcription_status",
			"transcript_text",
			"segments",
			"confidence_score",
			"duration_seconds",
			"attempt_count",
			"last_error",
			"updated_at",
		}),
	}).Create(chunk).Error
}

func (r *repo) ListChunks(ctx context.Context, sessionID string) ([]*entities.Chunk, error) {
	var chunks []*entities.Chunk
	err := r.GetDB().WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("sequence_index ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

func (r *repo) ListChunkIndices(ctx context.Context, sessionID string) ([]int, error) {
	var indices []int
	err := r.GetDB().WithContext(ctx).Model(&entities.Chunk{}).
		Where("session_id = ?", sessionID).
		Order("sequence_index ASC").
		Pluck("sequence_index", &indices).Error
	if err != nil {
		return nil, err
	}
	return indices, nil
}

// MarkChunkProcessing claims a pending chunk. Returns false when the chunk
// was already claimed or is no longer pending (redelivered message).
func (r *repo) MarkChunkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.GetDB().WithContext(ctx).Model(&entities.Chunk{}).
		Where("id = ? AND transcription_status = ?", id, constant.TranscriptionStatusPending).
		Updates(map[string]interface{}{
			"transcription_status": constant.TranscriptionStatusProcessing,
			"updated_at":           time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) CompleteChunkTranscription(ctx context.Context, id uuid.UUID, text string, segments entities.SegmentList, confidence float64, duration float64, attempts int) error {
	return r.GetDB().WithContext(ctx).Model(&entities.Chunk{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"transcription_status": constant.TranscriptionStatusCompleted,
			"transcript_text":      text,
			"segments":             segments,
			"confidence_score":     confidence,
			"duration_seconds":     duration,
			"attempt_count":        attempts,
			"last_error":           nil,
			"updated_at":           time.Now().UTC(),
		}).Error
}

func (r *repo) FailChunkTranscription(ctx context.Context, id uuid.UUID, lastError string, attempts int) error {
	return r.GetDB().WithContext(ctx).Model(&entities.Chunk{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"transcription_status": constant.TranscriptionStatusFailed,
			"attempt_count":        attempts,
			"last_error":           lastError,
			"updated_at":           time.Now().UTC(),
		}).Error
}

func (r *repo) GetCacheEntry(ctx context.Context, key string) (*entities.CacheEntry, error) {
	entry := &entities.CacheEntry{}
	err := r.GetDB().WithContext(ctx).First(entry, "key = ?", key).Error
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *repo) InsertCacheEntry(ctx context.Context, entry *entities.CacheEntry) error {
	return r.GetDB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(entry).Error
}

func (r *repo) IncrementCacheHit(ctx context.Context, key string) error {
	return r.GetDB().WithContext(ctx).Model(&entities.CacheEntry{}).
		Where("key = ?", key).
		UpdateColumn("hit_count", gorm.Expr("hit_count + 1")).Error
}

func (r *repo) ListCacheEntriesOlderThan(ctx context.Context, cutoff time.Time) ([]*entities.CacheEntry, error) {
	var entries []*entities.CacheEntry
	err := r.GetDB().WithContext(ctx).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) DeleteCacheEntry(ctx context.Context, key string) error {
	return r.GetDB().WithContext(ctx).Delete(&entities.CacheEntry{}, "key = ?", key).Error
}

func (r *repo) TotalCacheSize(ctx context.Context) (int64, error) {
	var total int64
	err := r.GetDB().WithContext(ctx).Model(&entities.CacheEntry{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
