package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"interview-transcriber/dto"
	"interview-transcriber/service"
)

type HTTPHandler struct {
	deps ServiceDependencies
}

func NewHTTPHandler(deps ServiceDependencies) *HTTPHandler {
	return &HTTPHandler{deps: deps}
}

func (h *HTTPHandler) Register(r *gin.Engine) {
	api := r.Group("/api/v1")
	api.POST("/sessions/:session_id/chunks", h.uploadChunk)
	api.GET("/sessions/:session_id", h.getSession)
	api.GET("/sessions/:session_id/transcript", h.getTranscript)
	api.GET("/sessions/:session_id/gaps", h.getGaps)
	api.POST("/speech", h.synthesizeSpeech)
	api.GET("/artifacts/:key", h.getArtifact)
}

func (h *HTTPHandler) uploadChunk(c *gin.Context) {
	sessionID := c.Param("session_id")

	sequenceIndex, err := strconv.Atoi(c.PostForm("sequence_index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sequence_index must be an integer"})
		return
	}

	input := service.UpsertChunkInput{
		SessionID:     sessionID,
		SequenceIndex: sequenceIndex,
	}

	if raw := c.PostForm("overlap_seconds"); raw != "" {
		overlap, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "overlap_seconds must be a number"})
			return
		}
		input.OverlapSeconds = &overlap
	}
	if raw := c.PostForm("total_chunks_expected"); raw != "" {
		total, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "total_chunks_expected must be an integer"})
			return
		}
		input.TotalChunksExpected = &total
	}
	if raw := c.PostForm("duration_seconds"); raw != "" {
		duration, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration_seconds must be a number"})
			return
		}
		input.DurationSeconds = &duration
	}
	if questionID := c.PostForm("question_id"); questionID != "" {
		input.QuestionID = &questionID
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file"})
		return
	}
	defer file.Close()

	input.FileName = fileHeader.Filename
	input.Blob = file
	input.SizeBytes = fileHeader.Size

	resp, err := h.deps.ChunkStore.UpsertChunk(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) getSession(c *gin.Context) {
	resp, err := h.deps.SessionLifecycle.GetSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) getTranscript(c *gin.Context) {
	resp, err := h.deps.Aggregator.Aggregate(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) getGaps(c *gin.Context) {
	sessionID := c.Param("session_id")
	missing, err := h.deps.GapDetector.FindGaps(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.GapsResponse{
		SessionID:      sessionID,
		MissingIndices: missing,
	})
}

func (h *HTTPHandler) synthesizeSpeech(c *gin.Context) {
	var req dto.SpeechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := h.deps.SpeechService.Synthesize(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) getArtifact(c *gin.Context) {
	entry, err := h.deps.SpeechService.Artifact(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Type", entry.ContentType)
	c.File(entry.PayloadPath)
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
