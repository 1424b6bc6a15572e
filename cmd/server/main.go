package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"main/internal/advisory"
	"main/internal/audit"
	"main/internal/engine"
	"main/internal/ingest"
	"main/internal/notify"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/store"
	"main/internal/tradelog"
	"main/internal/webhook"
	"main/pkg/conn"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/joho/godotenv"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

type emptyLogger struct{}

func (emptyLogger) Infof(format string, args ...any)  {}
func (emptyLogger) Debugf(format string, args ...any) {}
func (emptyLogger) Errorf(format string, args ...any) { logs.Errorf(format, args...) }

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	flag.Parse()

	_ = godotenv.Load()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		logs.Fatalf("load config, err: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if loaded.Profiling.Enable {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "alert-pipeline",
			ServerAddress:   loaded.Profiling.ServerAddress,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logs.Fatalf("pyroscope start, err: %v", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

	client, err := conn.New(loaded.Database)
	if err != nil {
		logs.Fatalf("connect database, err: %v", err)
	}
	defer func() { _ = client.Close() }()
	if err := client.Ping(ctx); err != nil {
		logs.Fatalf("ping database, err: %v", err)
	}

	stores, err := store.NewPostgres(client)
	if err != nil {
		logs.Fatalf("migrate schema, err: %v", err)
	}

	metrics := obs.NewMetrics()
	notifier := notify.NewNotifier(loaded.Notify.QueueSize)
	defer notifier.Close()

	hub := notify.NewHub()
	notifier.Register(ctx, hub)

	var auditW *audit.Writer
	if loaded.Audit.Dir != "" {
		auditW, err = audit.NewWriter(audit.Config{
			Dir:       loaded.Audit.Dir,
			QueueSize: loaded.Audit.QueueSize,
		})
		if err != nil {
			logs.Fatalf("open audit stream, err: %v", err)
		}
		if err := auditW.Start(ctx); err != nil {
			logs.Fatalf("start audit stream, err: %v", err)
		}
		defer func() { _ = auditW.Close() }()
	}

	var advisor *advisory.Client
	if loaded.Advisory.Command != "" {
		advisor = advisory.NewClient(advisory.Config{
			Command:  loaded.Advisory.Command,
			Args:     loaded.Advisory.Args,
			Deadline: loaded.Advisory.Deadline,
		})
	}

	tradeLog := tradelog.NewWriter(stores.TradeLogs, notifier, metrics)
	eng := engine.New(engine.Config{
		Positions:           stores.Positions,
		TradeLog:            tradeLog,
		Advisor:             advisor,
		Notifier:            notifier,
		Metrics:             metrics,
		PendingEntryTimeout: loaded.Engine.PendingEntryTimeout,
	})
	if err := eng.Recover(ctx); err != nil {
		logs.Fatalf("recover open positions, err: %v", err)
	}

	ingestor := ingest.NewIngestor(loaded.Secret, stores.Alerts, notifier, metrics, auditW)

	go runPendingSweeper(ctx, eng, loaded.Engine)

	server := webhook.NewServer(webhook.Config{
		Ingestor: ingestor,
		Engine:   eng,
		Hub:      hub,
		Metrics:  metrics,
		Audit:    auditW,
	})

	httpServer := &http.Server{
		Addr:              loaded.Server.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logs.Infof("listening on %s", loaded.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Fatalf("http server, err: %v", err)
		}
	}()

	<-ctx.Done()
	logs.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logs.Errorf("http shutdown, err: %v", err)
	}
}

// runPendingSweeper cancels entries that rested longer than the
// configured timeout.
func runPendingSweeper(ctx context.Context, eng *engine.Engine, spec ops.EngineSpec) {
	ticker := time.NewTicker(spec.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sys.Shutdown():
			return
		case <-ticker.C:
			expired, err := eng.ExpirePending(ctx, spec.PendingEntryTimeout)
			if err != nil {
				logs.Errorf("expire pending entries, err: %v", err)
				continue
			}
			if expired > 0 {
				logs.Infof("expired %d pending entries", expired)
			}
		}
	}
}
