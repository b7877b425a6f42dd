package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"eval-batcher/internal/batch"
	"eval-batcher/internal/batch/direct"
	"eval-batcher/internal/batch/openaisdk"
	"eval-batcher/internal/batch/rest"
	"eval-batcher/internal/config"
	"eval-batcher/internal/core/rubric"
	"eval-batcher/internal/core/tasks"
	"eval-batcher/internal/database"
	"eval-batcher/internal/llm"
	"eval-batcher/internal/sink"
	"eval-batcher/internal/storage"

	"github.com/joho/godotenv"
)

func LoadEnvFile(configPath string) {
	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	if err := godotenv.Load(configPath); err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// NewObjectStore returns the store used for reference media and artifact
// archives, or nil when no component needs one. OBJECT_STORE_DIR selects a
// local directory, otherwise S3 is used.
func NewObjectStore(ctx context.Context, cfg config.Config) (storage.ObjectStore, error) {
	if !cfg.UsesObjectStore() {
		return nil, nil
	}

	var store storage.ObjectStore
	if cfg.ObjectStoreDir != "" {
		local, err := storage.NewLocalObjectStore(cfg.ObjectStoreDir)
		if err != nil {
			return nil, err
		}
		store = local
	} else {
		s3Store, err := storage.NewS3ObjectStore(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3EndpointURL,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		store = s3Store
	}

	for _, bucket := range []string{cfg.MediaBucket, cfg.ArchiveBucket} {
		if bucket == "" {
			continue
		}
		if err := store.CreateBucket(ctx, bucket); err != nil {
			return nil, err
		}
	}

	return store, nil
}

func NewMediaResolver(cfg config.Config, store storage.ObjectStore, runPrefix string) tasks.MediaResolver {
	if cfg.MediaMode == config.MediaReference {
		return tasks.NewObjectStoreMedia(store, cfg.MediaBucket, runPrefix, cfg.MediaURLTTL)
	}
	return tasks.InlineMedia{}
}

// NewBatchService builds the transport selected by BATCH_TRANSPORT. The
// returned close func releases clients held by the transport.
func NewBatchService(ctx context.Context, cfg config.Config) (batch.Service, func(), error) {
	noop := func() {}

	switch cfg.Transport {
	case config.TransportSDK:
		return openaisdk.New(cfg.APIKey, cfg.BaseURL), noop, nil

	case config.TransportHTTP:
		return rest.New(cfg.APIKey, cfg.BaseURL), noop, nil

	case config.TransportLangchain:
		eval, err := llm.NewLangchainEvaluator(cfg.APIKey, cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, nil, err
		}
		return direct.New(eval, cfg.TaskPause), noop, nil

	case config.TransportGemini:
		eval, err := llm.NewGeminiEvaluator(ctx, cfg.APIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := eval.Close(); err != nil {
				slog.Warn("error closing gemini client", "error", err)
			}
		}
		return direct.New(eval, cfg.TaskPause), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidTransport, cfg.Transport)
	}
}

// NewPublisher wires the CSV sink with the optional spreadsheet and archives.
// A spreadsheet client that cannot be created is logged and skipped so the CSV
// is still produced.
func NewPublisher(ctx context.Context, cfg config.Config, r *rubric.Rubric, store storage.ObjectStore) (*sink.Publisher, error) {
	var sheet sink.SheetPublisher
	if cfg.SheetEnabled {
		drive, err := sink.NewDriveSheet(ctx, cfg.CredentialsFile)
		if err != nil {
			slog.Error("spreadsheet upload disabled", "credentials", cfg.CredentialsFile, "error", err)
		} else {
			sheet = drive
		}
	}

	var archives []sink.Archive
	if cfg.ArchiveBucket != "" && store != nil {
		archives = append(archives, sink.NewObjectArchive(store, cfg.ArchiveBucket))
	}
	if cfg.ArchiveDSN != "" {
		db, err := database.Open(cfg.ArchiveDSN)
		if err != nil {
			return nil, fmt.Errorf("error opening archive database: %w", err)
		}
		archives = append(archives, database.NewRunArchive(db))
	}

	return sink.NewPublisher(r.Columns(), cfg.CSVFile, cfg.SheetName, sheet, archives...), nil
}
