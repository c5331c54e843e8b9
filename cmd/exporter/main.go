package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/resume-screener/internal/bootstrap"
	"github.com/kirillkom/resume-screener/internal/config"
	"github.com/kirillkom/resume-screener/internal/observability/logging"
)

func main() {
	output := flag.String("o", "", "output path, defaults to shortlisted_candidates_<date>.xlsx")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger("resume-screener-exporter", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	payload, err := app.Export.ExportShortlistXLSX(ctx)
	if err != nil {
		log.Fatalf("export error: %v", err)
	}

	path := *output
	if path == "" {
		path = fmt.Sprintf("shortlisted_candidates_%s.xlsx", time.Now().Format("2006-01-02"))
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		log.Fatalf("write workbook: %v", err)
	}
	logger.Info("shortlist_exported", "path", path, "bytes", len(payload))
}
