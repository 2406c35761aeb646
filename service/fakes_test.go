package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"interview-transcriber/constant"
	"interview-transcriber/dto"
	"interview-transcriber/entities"
	"interview-transcriber/pkg/stt"
	"interview-transcriber/pkg/tts"
)

// memRepo is an in-memory repository.Repository used across the service
// tests.
type memRepo struct {
	mu       sync.Mutex
	sessions map[string]*entities.Session
	chunks   map[string]*entities.Chunk
	cache    map[string]*entities.CacheEntry
}

func newMemRepo() *memRepo {
	return &memRepo{
		sessions: make(map[string]*entities.Session),
		chunks:   make(map[string]*entities.Chunk),
		cache:    make(map[string]*entities.CacheEntry),
	}
}

func chunkKey(sessionID string, sequenceIndex int) string {
	return fmt.Sprintf("%s|%d", sessionID, sequenceIndex)
}

func (r *memRepo) GetDB() *gorm.DB { return nil }

func (r *memRepo) GetSession(ctx context.Context, sessionID string) (*entities.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *memRepo) UpsertSessionOnUpload(ctx context.Context, sessionID string, totalChunksExpected *int) (*entities.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		session = &entities.Session{
			SessionID: sessionID,
			Status:    constant.SessionStatusReceiving,
			CreatedAt: time.Now().UTC(),
		}
		r.sessions[sessionID] = session
	}
	if !session.Status.Terminal() {
		session.Status = constant.SessionStatusReceiving
	}
	if totalChunksExpected != nil {
		expected := *totalChunksExpected
		session.TotalChunksExpected = &expected
	}
	session.UpdatedAt = time.Now().UTC()
	copied := *session
	return &copied, nil
}

func (r *memRepo) SetSessionStatus(ctx context.Context, sessionID string, status constant.SessionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[sessionID]; ok {
		session.Status = status
		session.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *memRepo) CompleteSession(ctx context.Context, sessionID string, completedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok || session.CompletedAt != nil || session.Status == constant.SessionStatusFailed {
		return false, nil
	}
	session.Status = constant.SessionStatusCompleted
	session.CompletedAt = &completedAt
	session.UpdatedAt = completedAt
	return true, nil
}

func (r *memRepo) RecomputeSessionDuration(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	var total float64
	for _, chunk := range r.chunks {
		if chunk.SessionID == sessionID && chunk.DurationSeconds != nil {
			total += *chunk.DurationSeconds
		}
	}
	session.TotalDurationSeconds = total
	return nil
}

func (r *memRepo) GetChunk(ctx context.Context, sessionID string, sequenceIndex int) (*entities.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chunk, ok := r.chunks[chunkKey(sessionID, sequenceIndex)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *chunk
	return &copied, nil
}

func (r *memRepo) GetChunkByID(ctx context.Context, id uuid.UUID) (*entities.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, chunk := range r.chunks {
		if chunk.ID == id {
			copied := *chunk
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) UpsertChunk(ctx context.Context, chunk *entities.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := chunkKey(chunk.SessionID, chunk.SequenceIndex)
	if existing, ok := r.chunks[key]; ok {
		// Conflict path keeps the existing row id.
		chunk.ID = existing.ID
	}
	copied := *chunk
	r.chunks[key] = &copied
	return nil
}

func (r *memRepo) ListChunks(ctx context.Context, sessionID string) ([]*entities.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var chunks []*entities.Chunk
	for _, chunk := range r.chunks {
		if chunk.SessionID == sessionID {
			copied := *chunk
			chunks = append(chunks, &copied)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].SequenceIndex < chunks[j].SequenceIndex })
	return chunks, nil
}

func (r *memRepo) ListChunkIndices(ctx context.Context, sessionID string) ([]int, error) {
	chunks, _ := r.ListChunks(ctx, sessionID)
	indices := make([]int, 0, len(chunks))
	for _, chunk := range chunks {
		indices = append(indices, chunk.SequenceIndex)
	}
	return indices, nil
}

func (r *memRepo) MarkChunkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, chunk := range r.chunks {
		if chunk.ID == id {
			if chunk.TranscriptionStatus != constant.TranscriptionStatusPending {
				return false, nil
			}
			chunk.TranscriptionStatus = constant.TranscriptionStatusProcessing
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) CompleteChunkTranscription(ctx context.Context, id uuid.UUID, text string, segments entities.SegmentList, confidence float64, duration float64, attempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, chunk := range r.chunks {
		if chunk.ID == id {
			chunk.TranscriptionStatus = constant.TranscriptionStatusCompleted
			chunk.TranscriptText = &text
			chunk.Segments = segments
			chunk.ConfidenceScore = &confidence
			chunk.DurationSeconds = &duration
			chunk.AttemptCount = attempts
			chunk.LastError = nil
		}
	}
	return nil
}

func (r *memRepo) FailChunkTranscription(ctx context.Context, id uuid.UUID, lastError string, attempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, chunk := range r.chunks {
		if chunk.ID == id {
			chunk.TranscriptionStatus = constant.TranscriptionStatusFailed
			chunk.AttemptCount = attempts
			chunk.LastError = &lastError
		}
	}
	return nil
}

func (r *memRepo) GetCacheEntry(ctx context.Context, key string) (*entities.CacheEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *entry
	return &copied, nil
}

func (r *memRepo) InsertCacheEntry(ctx context.Context, entry *entities.CacheEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cache[entry.Key]; ok {
		return nil
	}
	copied := *entry
	r.cache[entry.Key] = &copied
	return nil
}

func (r *memRepo) IncrementCacheHit(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.cache[key]; ok {
		entry.HitCount++
	}
	return nil
}

func (r *memRepo) ListCacheEntriesOlderThan(ctx context.Context, cutoff time.Time) ([]*entities.CacheEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var entries []*entities.CacheEntry
	for _, entry := range r.cache {
		if entry.CreatedAt.Before(cutoff) {
			copied := *entry
			entries = append(entries, &copied)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries, nil
}

func (r *memRepo) DeleteCacheEntry(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, key)
	return nil
}

func (r *memRepo) TotalCacheSize(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, entry := range r.cache {
		total += entry.SizeBytes
	}
	return total, nil
}

// memBlobStore is an in-memory blob.Store.
type memBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: make(map[string][]byte)}
}

func (s *memBlobStore) Put(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectName] = data
	return nil
}

func (s *memBlobStore) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objectName]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectName)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memBlobStore) Remove(ctx context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectName)
	return nil
}

func (s *memBlobStore) object(objectName string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objectName]
	return data, ok
}

// capturingQueue records every published message.
type capturingQueue struct {
	mu       sync.Mutex
	messages []capturedMessage
}

type capturedMessage struct {
	routingKey string
	payload    any
}

func (q *capturingQueue) Publish(ctx context.Context, routingKey string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, capturedMessage{routingKey: routingKey, payload: payload})
	return nil
}

func (q *capturingQueue) jobs() []dto.TranscriptionJobMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	var jobs []dto.TranscriptionJobMessage
	for _, msg := range q.messages {
		if job, ok := msg.payload.(dto.TranscriptionJobMessage); ok {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// recordingNotifier counts delivered events.
type recordingNotifier struct {
	mu        sync.Mutex
	uploaded  []dto.ChunkUploadedEvent
	completed []dto.SessionCompletedEvent
}

func (n *recordingNotifier) ChunkUploaded(ctx context.Context, event dto.ChunkUploadedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.uploaded = append(n.uploaded, event)
}

func (n *recordingNotifier) SessionCompleted(ctx context.Context, event dto.SessionCompletedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, event)
}

func (n *recordingNotifier) completedEvents() []dto.SessionCompletedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]dto.SessionCompletedEvent, len(n.completed))
	copy(out, n.completed)
	return out
}

// scriptedProvider returns canned transcription results keyed by filename,
// or an error for every call.
type scriptedProvider struct {
	mu      sync.Mutex
	results map[string]*stt.Result
	err     error
	calls   int
}

func (p *scriptedProvider) Transcribe(ctx context.Context, audio io.Reader, filename string) (*stt.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	result, ok := p.results[filename]
	if !ok {
		return nil, &stt.ProviderError{StatusCode: 400, Message: "no scripted result for " + filename, Transient: false}
	}
	return result, nil
}

// countingSynthesizer counts Synthesize calls.
type countingSynthesizer struct {
	mu    sync.Mutex
	calls int
	audio []byte
}

func (s *countingSynthesizer) Synthesize(ctx context.Context, req tts.Request) (*tts.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return &tts.Result{Audio: s.audio, ContentType: tts.ContentTypeForFormat(req.Format)}, nil
}
