package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"debtster_installments/internal/adapters/backend"
	"debtster_installments/internal/adapters/objectstore"
	"debtster_installments/internal/adapters/opener"
	"debtster_installments/internal/config"
	"debtster_installments/internal/handlers"
	"debtster_installments/internal/metrics"
	"debtster_installments/internal/ports"
	"debtster_installments/internal/repository"
	"debtster_installments/internal/repository/database"
	"debtster_installments/internal/repository/submissions"
	"debtster_installments/internal/server"
	"debtster_installments/internal/services/ledger"
	"debtster_installments/internal/services/schedule"
	"debtster_installments/internal/services/submission"
	"debtster_installments/internal/transport/auth"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := config.Init(setupCtx)
	defer cfg.Close(context.Background())
	fmt.Println("✅ All connections successfully established!")

	if err := cfg.CheckConnections(setupCtx); err != nil {
		log.Fatalf("❌ Connection check failed: %v", err)
	}
	fmt.Println("🟢 All connections OK")

	logger := log.Default()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, err := debtStore(cfg, logger)
	if err != nil {
		log.Fatalf("❌ Debt store: %v", err)
	}
	logger.Printf("[MAIN] debt store=%s atomic=%t max_rows=%d", cfg.DebtStore, cfg.Installments.Atomic, cfg.Installments.MaxRows)

	audit := submissions.NewRepo(cfg.Mongo)
	orchestrator := submission.New(store, audit, m, logger, submission.Options{
		Concurrency:    cfg.Installments.SubmitConcurrency,
		Atomic:         cfg.Installments.Atomic,
		RequestTimeout: cfg.Installments.RequestTimeout,
	})

	fileOpener := opener.New(&http.Client{Timeout: 2 * time.Minute}, cfg.S3.Client, cfg.S3.Bucket, cfg.ImportHosts, logger)

	h := handlers.New(handlers.Deps{
		Contracts:   store,
		Submitter:   orchestrator,
		Ledger:      ledger.NewService(store, store, m, logger),
		Importer:    schedule.NewImporter(fileOpener, logger),
		Objects:     objectstore.NewS3(cfg.S3.Client, cfg.S3.Bucket),
		Submissions: audit,
		Check:       cfg.CheckConnections,
		MaxRows:     cfg.Installments.MaxRows,
		PresignTTL:  cfg.PresignTTL,
		Logger:      logger,
	})

	tokens := repository.NewPersonalAccessTokenRepository(cfg.Postgres, logger)
	srv := server.NewServer(cfg.Port, server.Routes(h, auth.SanctumMiddleware(tokens, logger), reg))

	if err := srv.Run(runCtx); err != nil {
		log.Fatal(err)
	}
}

func debtStore(cfg *config.Config, logger *log.Logger) (ports.DebtStore, error) {
	if cfg.DebtStore == config.StorePostgres {
		return database.NewStore(cfg.Postgres), nil
	}
	return backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Token:   cfg.Backend.Token,
		Timeout: cfg.Backend.Timeout,
	}, &http.Client{}, logger)
}
