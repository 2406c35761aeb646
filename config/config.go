package config

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	MinIOBucket string        `yaml:"minio_bucket"`
	App         App           `yaml:"app"`
	DB          *sql.DB       `yaml:"db"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Storage     *minio.Client `yaml:"storage"`
	Server      Server        `yaml:"server"`
	Upload      Upload        `yaml:"upload"`
	STT         STT           `yaml:"stt"`
	TTS         TTS           `yaml:"tts"`
	Cache       Cache         `yaml:"cache"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

type RabbitMQ struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	User string `json:"user"`
	Pass string `json:"pass"`
	Kind string `json:"kind"`
}

type Upload struct {
	MaxBytes              int64    `yaml:"max_bytes"`
	AllowedExtensions     []string `yaml:"allowed_extensions"`
	DefaultOverlapSeconds float64  `yaml:"default_overlap_seconds"`
}

type STT struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type TTS struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Voice   string        `yaml:"voice"`
	Format  string        `yaml:"format"`
	Timeout time.Duration `yaml:"timeout"`
}

type Cache struct {
	Dir              string        `yaml:"dir"`
	MaxAge           time.Duration `yaml:"max_age"`
	AggressiveMaxAge time.Duration `yaml:"aggressive_max_age"`
	MaxTotalBytes    int64         `yaml:"max_total_bytes"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("upload.max_bytes", 25<<20)
	viper.SetDefault("upload.allowed_extensions", []string{".webm", ".wav", ".mp3", ".m4a", ".ogg", ".flac"})
	viper.SetDefault("upload.default_overlap_seconds", 2.0)
	viper.SetDefault("stt.model", "whisper-1")
	viper.SetDefault("stt.timeout", "60s")
	viper.SetDefault("stt.max_attempts", 3)
	viper.SetDefault("tts.model", "tts-1")
	viper.SetDefault("tts.voice", "alloy")
	viper.SetDefault("tts.format", "mp3")
	viper.SetDefault("tts.timeout", "60s")
	viper.SetDefault("cache.dir", "cache")
	viper.SetDefault("cache.max_age", "168h")
	viper.SetDefault("cache.aggressive_max_age", "1h")
	viper.SetDefault("cache.max_total_bytes", 1<<30)
	viper.SetDefault("cache.cleanup_interval", "15m")
	viper.SetDefault("server.workers", 4)

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host: viper.GetString("rabbitmq_host"),
		Port: viper.GetInt("rabbitmq_port"),
		User: viper.GetString("rabbitmq_user"),
		Pass: viper.GetString("rabbitmq_pass"),
		Kind: viper.GetString("rabbitmq_kind"),
	}

	minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	return &Config{
		MinIOBucket: viper.GetString("minio.bucket"),
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		Upload: Upload{
			MaxBytes:              viper.GetInt64("upload.max_bytes"),
			AllowedExtensions:     viper.GetStringSlice("upload.allowed_extensions"),
			DefaultOverlapSeconds: viper.GetFloat64("upload.default_overlap_seconds"),
		},
		STT: STT{
			BaseURL:     viper.GetString("stt.base_url"),
			APIKey:      viper.GetString("stt.api_key"),
			Model:       viper.GetString("stt.model"),
			Timeout:     viper.GetDuration("stt.timeout"),
			MaxAttempts: viper.GetInt("stt.max_attempts"),
		},
		TTS: TTS{
			BaseURL: viper.GetString("tts.base_url"),
			APIKey:  viper.GetString("tts.api_key"),
			Model:   viper.GetString("tts.model"),
			Voice:   viper.GetString("tts.voice"),
			Format:  viper.GetString("tts.format"),
			Timeout: viper.GetDuration("tts.timeout"),
		},
		Cache: Cache{
			Dir:              viper.GetString("cache.dir"),
			MaxAge:           viper.GetDuration("cache.max_age"),
			AggressiveMaxAge: viper.GetDuration("cache.aggressive_max_age"),
			MaxTotalBytes:    viper.GetInt64("cache.max_total_bytes"),
			CleanupInterval:  viper.GetDuration("cache.cleanup_interval"),
		},
		DB:      db,
		Queue:   rabbitmq,
		Storage: minioClient,
	}, nil
}
