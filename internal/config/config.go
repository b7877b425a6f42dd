package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrMissingAPIKey    = errors.New("API_KEY is not set")
	ErrInvalidTransport = errors.New("invalid batch transport")
	ErrInvalidMediaMode = errors.New("invalid media mode")
)

const (
	TransportSDK       = "sdk"
	TransportHTTP      = "http"
	TransportLangchain = "langchain"
	TransportGemini    = "gemini"
)

const (
	MediaInline    = "inline"
	MediaReference = "reference"
)

// Config is loaded once at startup and passed by value to the components that
// need it. Nothing mutates it after Load returns.
type Config struct {
	APIKey      string  `env:"API_KEY"`
	Model       string  `env:"MODEL" envDefault:"gpt-4o"`
	Temperature float64 `env:"TEMPERATURE" envDefault:"0.1"`

	Transport   string `env:"BATCH_TRANSPORT" envDefault:"sdk"`
	BaseURL     string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	GeminiModel string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`

	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"10s"`
	TaskPause    time.Duration `env:"TASK_PAUSE" envDefault:"1s"`

	ImageDir    string `env:"IMAGE_DIR" envDefault:"jj_images"`
	TasksFile   string `env:"TASKS_FILE" envDefault:"tasks.jsonl"`
	ResultsFile string `env:"RESULTS_FILE" envDefault:"results.jsonl"`
	CSVFile     string `env:"CSV_FILE" envDefault:"evaluation_results.csv"`

	SheetEnabled    bool   `env:"SHEET_ENABLED" envDefault:"true"`
	SheetName       string `env:"SHEET_NAME" envDefault:"Self-Awareness Evaluation"`
	CredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE" envDefault:"service_account.json"`

	MediaMode   string        `env:"MEDIA_MODE" envDefault:"inline"`
	MediaBucket string        `env:"MEDIA_BUCKET"`
	MediaURLTTL time.Duration `env:"MEDIA_URL_TTL" envDefault:"24h"`

	// ObjectStoreDir keeps objects on local disk instead of S3.
	ObjectStoreDir string `env:"OBJECT_STORE_DIR"`

	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`

	ArchiveBucket string `env:"ARCHIVE_BUCKET"`
	ArchiveDSN    string `env:"ARCHIVE_DSN"`
}

// Load reads an optional .env file from the working directory and then parses
// the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, continuing with environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Parse builds a Config from an explicit environment instead of os.Environ.
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}

	switch c.Transport {
	case TransportSDK, TransportHTTP, TransportLangchain, TransportGemini:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTransport, c.Transport)
	}

	switch c.MediaMode {
	case MediaInline:
	case MediaReference:
		if c.MediaBucket == "" {
			return fmt.Errorf("%w: MEDIA_BUCKET is required when MEDIA_MODE=%s", ErrInvalidMediaMode, MediaReference)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMediaMode, c.MediaMode)
	}

	if c.MediaMode == MediaReference && c.ObjectStoreDir != "" && c.Transport != TransportGemini {
		return fmt.Errorf("%w: file urls from OBJECT_STORE_DIR are only readable by the %s transport", ErrInvalidMediaMode, TransportGemini)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}

	if c.S3EndpointURL != "" && (c.S3AccessKeyID == "" || c.S3SecretAccessKey == "") {
		log.Println("Warning: S3_ENDPOINT_URL is set, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing.")
	}

	return nil
}

// UsesObjectStore reports whether any configured component needs S3.
func (c Config) UsesObjectStore() bool {
	return c.MediaMode == MediaReference || c.ArchiveBucket != ""
}
