package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/watermarker/internal/model"
)

// Config holds the main configuration for the application.
type Config struct {
	Log       Log       `mapstructure:"log"`
	Watermark Watermark `mapstructure:"watermark"`
	Batch     Batch     `mapstructure:"batch"`
	Storage   Storage   `mapstructure:"storage"`
	Kafka     Kafka     `mapstructure:"kafka"`
	Retry     Retry     `mapstructure:"retry"`
}

// Log holds logging configuration.
type Log struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// Watermark holds the default watermark parameters.
type Watermark struct {
	Text     string  `mapstructure:"text"`
	Color    string  `mapstructure:"color"`     // hex RGB
	Opacity  float64 `mapstructure:"opacity"`   // 0..1
	FontSize int     `mapstructure:"font_size"` // 0 = auto
	Position string  `mapstructure:"position"`  // tile, center, top-left, bottom-right
	Rotation float64 `mapstructure:"rotation"`  // degrees, -90..90
	FontPath string  `mapstructure:"font_path"` // optional TTF file
	Shadow   bool    `mapstructure:"shadow"`
}

// Model converts the configured defaults into a watermark snapshot.
func (w Watermark) Model() (model.WatermarkConfig, error) {
	pos, err := model.ParsePosition(w.Position)
	if err != nil {
		return model.WatermarkConfig{}, err
	}

	return model.WatermarkConfig{
		Text:     w.Text,
		Color:    w.Color,
		Opacity:  w.Opacity,
		FontSize: w.FontSize,
		Position: pos,
		Rotation: w.Rotation,
		FontPath: w.FontPath,
		Shadow:   w.Shadow,
	}, nil
}

// Batch holds batch run configuration.
type Batch struct {
	Workers          int    `mapstructure:"workers"`           // 0 = derived from CPU count
	Policy           string `mapstructure:"policy"`            // best-effort or fail-fast
	ArchiveRoot      string `mapstructure:"archive_root"`      // directory prefix inside the archive
	CompressionLevel int    `mapstructure:"compression_level"` // deflate level 1..9
	OutputDir        string `mapstructure:"output_dir"`        // where the CLI writes archives
	IncludeHidden    bool   `mapstructure:"include_hidden"`    // keep dot-files found in directories
	NoRecurse        bool   `mapstructure:"no_recurse"`        // skip subdirectories of directory inputs
}

// Storage holds configuration for the optional MinIO bucket.
type Storage struct {
	Enabled    bool   `mapstructure:"enabled"`
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Kafka holds configuration for the optional progress topic.
type Kafka struct {
	Topic   string   `mapstructure:"topic"`   // Kafka topic name
	Brokers []string `mapstructure:"brokers"` // List of Kafka broker addresses
}

// Enabled reports whether progress events should be published.
func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("watermark.text", "watermark")
	v.SetDefault("watermark.color", "#ffffff")
	v.SetDefault("watermark.opacity", 0.3)
	v.SetDefault("watermark.font_size", 0)
	v.SetDefault("watermark.position", "tile")
	v.SetDefault("watermark.rotation", -30)

	v.SetDefault("batch.workers", 0)
	v.SetDefault("batch.policy", "best-effort")
	v.SetDefault("batch.archive_root", "watermarked")
	v.SetDefault("batch.compression_level", 6)
	v.SetDefault("batch.output_dir", ".")
	v.SetDefault("batch.include_hidden", false)
	v.SetDefault("batch.no_recurse", false)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("kafka.topic", "watermark-progress")

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", time.Second)
	v.SetDefault("retry.backoff", 2.0)
}

// bindEnv binds environment variables that do not follow the
// automatic SECTION_KEY naming.
func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"storage.endpoint":    "MINIO_ENDPOINT",
		"storage.access_key":  "MINIO_ACCESS_KEY",
		"storage.secret_key":  "MINIO_SECRET_KEY",
		"storage.bucket_name": "MINIO_BUCKET",
		"kafka.brokers":       "KAFKA_BROKERS",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	return nil
}

// Load reads the configuration from the YAML file at path. A missing
// file is not an error: defaults and environment variables still apply.
// Every key can be overridden by an environment variable named after it,
// e.g. WATERMARK_TEXT or BATCH_WORKERS.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration file cannot be loaded or unmarshaled.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}
