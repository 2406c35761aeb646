package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"interview-transcriber/config"
	"interview-transcriber/constant"
	jobHandler "interview-transcriber/handler"
	"interview-transcriber/pkg/blob"
	"interview-transcriber/pkg/rabbitmq"
	"interview-transcriber/pkg/stt"
	"interview-transcriber/pkg/tts"
	"interview-transcriber/repository"
	"interview-transcriber/service"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("NewRabbitMQConn")
	}

	jobs, err := rabbitmq.NewPublisher(conn, constant.TranscriptionExchange, cfg.Queue.Kind, true)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("failed to create job publisher")
	}
	events, err := rabbitmq.NewPublisher(conn, constant.EventsExchange, "topic", false)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("failed to create event publisher")
	}

	repo := repository.NewRepo(cfg.DB)
	blobs := blob.NewMinioStore(cfg.Storage, cfg.MinIOBucket)
	sttProvider := stt.NewOpenAIProvider(cfg.STT)
	ttsProvider := tts.NewOpenAISynthesizer(cfg.TTS)

	notifier := service.NewEventNotifier(events)
	cache := service.NewArtifactCache(repo, cfg.Cache)
	aggregator := service.NewAggregator(repo)
	lifecycle := service.NewSessionLifecycle(repo, aggregator, notifier, cache)
	chunkStore := service.NewChunkStore(repo, blobs, jobs, notifier, cfg.Upload)
	transcription := service.NewTranscriptionService(repo, blobs, sttProvider, lifecycle, cfg.STT.MaxAttempts)
	gaps := service.NewGapDetector(repo)
	speech := service.NewSpeechService(cache, ttsProvider, cfg.TTS)

	serviceDeps := jobHandler.ServiceDependencies{
		ChunkStore:           chunkStore,
		TranscriptionService: transcription,
		Aggregator:           aggregator,
		GapDetector:          gaps,
		SessionLifecycle:     lifecycle,
		SpeechService:        speech,
	}

	transcriptionConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, rabbitmq.Topology{
		Exchange:   constant.TranscriptionExchange,
		Queue:      constant.TranscriptionQueue,
		RoutingKey: constant.TranscriptionRoutingKey,
	}, cfg.Server.Workers, jobHandler.TranscriptionJobHandler)
	go func() {
		if err := transcriptionConsumer.Consume(ctx, serviceDeps); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Transcription consumer error")
		}
	}()

	go runCacheCleanup(ctx, cache, cfg.Cache.CleanupInterval)

	r := gin.Default()
	addHealth(r)
	jobHandler.NewHTTPHandler(serviceDeps).Register(r)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	if err := handler.Shutdown(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func runCacheCleanup(ctx context.Context, cache service.ArtifactCache, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := cache.Cleanup(ctx); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("scheduled cache cleanup failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
