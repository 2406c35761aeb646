package constant

type SessionStatus string

const (
	SessionStatusOpen      SessionStatus = "open"
	SessionStatusReceiving SessionStatus = "receiving"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

type UploadStatus string

const (
	UploadStatusUploaded UploadStatus = "uploaded"
	UploadStatusFailed   UploadStatus = "failed"
)

type TranscriptionStatus string

const (
	TranscriptionStatusPending    TranscriptionStatus = "pending"
	TranscriptionStatusProcessing TranscriptionStatus = "processing"
	TranscriptionStatusCompleted  TranscriptionStatus = "completed"
	TranscriptionStatusFailed     TranscriptionStatus = "failed"
)

func (s TranscriptionStatus) Terminal() bool {
	return s == TranscriptionStatusCompleted || s == TranscriptionStatusFailed
}

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

const (
	TranscriptionExchange   = "transcription_exchange"
	TranscriptionQueue      = "transcription_queue"
	TranscriptionRoutingKey = "transcription.request"

	EventsExchange            = "interview_events"
	RoutingKeyChunkUploaded   = "interview.chunk.uploaded"
	RoutingKeySessionComplete = "interview.session.completed"
)
