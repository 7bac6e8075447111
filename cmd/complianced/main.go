// complianced runs the compliance engine as a standalone process, exposing
// its prometheus metrics. Most deployments embed the engine directly; this
// binary exists for corridor operations teams that want it isolated.
package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kwachalink/corridor_compliance/internal/config"
	"github.com/kwachalink/corridor_compliance/internal/currency"
	"github.com/kwachalink/corridor_compliance/internal/engine"
	"github.com/kwachalink/corridor_compliance/internal/store"
	"github.com/kwachalink/corridor_compliance/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("ENGINE_CONFIG"), nil)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	st, err := openStore(zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to open store", zap.Error(err))
	}

	// the host refreshes rates; standalone mode starts with an empty table
	// and reports estimated values until rates arrive
	rates, err := currency.NewSnapshot(nil)
	if err != nil {
		zapLogger.Fatal("Failed to build rate table", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	eng := engine.New(*cfg, st, rates,
		engine.WithLogger(zapLogger),
		engine.WithMetrics(engine.NewMetrics(registry)),
	)

	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		addr = ":9108"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		// a cheap read through the engine proves the store is reachable
		if _, err := eng.ExportAudit(r.Context(), time.Now().Add(-time.Hour), time.Now()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		zapLogger.Info("metrics listener started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Metrics listener failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("shutting down")
	_ = srv.Close()
}

// openStore picks sqlite persistence when ENGINE_DB is set, in-memory
// otherwise.
func openStore(zapLogger *zap.Logger) (store.Store, error) {
	dsn := os.Getenv("ENGINE_DB")
	if dsn == "" {
		zapLogger.Warn("ENGINE_DB not set, using in-memory store")
		return store.NewMemory(), nil
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	return store.NewGorm(db)
}
