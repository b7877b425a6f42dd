package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"eval-batcher/cmd"
	"eval-batcher/internal/batch"
	"eval-batcher/internal/config"
	"eval-batcher/internal/core/results"
	"eval-batcher/internal/core/rubric"
	"eval-batcher/internal/core/tasks"
	"eval-batcher/internal/pipeline"
	"eval-batcher/internal/sink"
)

func main() {
	var (
		envFile   string
		imageDir  string
		tasksFile string
		batchID   string
		logFile   string
	)
	flag.StringVar(&envFile, "env", "", "path to load env from")
	flag.StringVar(&imageDir, "images", "", "folder of images to evaluate (overrides IMAGE_DIR)")
	flag.StringVar(&tasksFile, "tasks", "", "submit this existing task file instead of encoding the image folder")
	flag.StringVar(&batchID, "batch-id", "", "resume polling an already submitted batch")
	flag.StringVar(&logFile, "log", "", "also append logs to this file")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatalf("error opening log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(io.MultiWriter(f, os.Stderr))
	}

	cmd.LoadEnvFile(envFile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	if imageDir != "" {
		cfg.ImageDir = imageDir
	}
	if tasksFile != "" {
		cfg.TasksFile = tasksFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := rubric.Load()
	if err != nil {
		log.Fatalf("error loading rubric: %v", err)
	}

	store, err := cmd.NewObjectStore(ctx, cfg)
	if err != nil {
		log.Fatalf("error creating object store: %v", err)
	}

	svc, closeSvc, err := cmd.NewBatchService(ctx, cfg)
	if err != nil {
		log.Fatalf("error creating batch transport: %v", err)
	}
	defer closeSvc()

	publisher, err := cmd.NewPublisher(ctx, cfg, r, store)
	if err != nil {
		log.Fatalf("error creating publisher: %v", err)
	}

	validator, err := results.NewValidator(r)
	if err != nil {
		log.Fatalf("error creating validator: %v", err)
	}

	p := &pipeline.Pipeline{
		Service:   svc,
		Encoder:   tasks.NewEncoder(r, cmd.NewMediaResolver(cfg, store, "images"), cfg.Model, cfg.Temperature),
		Poller:    batch.NewPoller(svc, cfg.PollInterval),
		Validator: validator,
		Publisher: publisher,
		Model:     cfg.Model,
		Rubric:    r.Version,
		Files: pipeline.Files{
			ImageDir:    cfg.ImageDir,
			TasksFile:   cfg.TasksFile,
			ResultsFile: cfg.ResultsFile,
		},
	}

	slog.Info("starting evaluation", "transport", svc.Name(), "model", cfg.Model, "images", cfg.ImageDir, "media", cfg.MediaMode)

	summary, err := p.Run(ctx, pipeline.Options{BatchID: batchID, ReuseTasks: tasksFile != ""})
	if summary != nil {
		slog.Info("run finished",
			"run_id", summary.RunID,
			"batch_id", summary.BatchID,
			"tasks", summary.Tasks,
			"accepted", summary.Accepted,
			"rejected", len(summary.Rejected),
			"csv", summary.Report.CSVPath,
			"sheet", summary.Report.SheetURL,
		)
	}
	if err != nil {
		if errors.Is(err, sink.ErrSheetPublish) {
			log.Fatalf("results saved to %s but spreadsheet upload failed: %v", cfg.CSVFile, err)
		}
		if errors.Is(err, batch.ErrUnknownBatch) {
			log.Fatalf("cannot resume batch %s with the %s transport: %v", batchID, svc.Name(), err)
		}
		log.Fatalf("evaluation failed: %v", err)
	}
}
