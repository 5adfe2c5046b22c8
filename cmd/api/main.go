package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"cdr-enrichment/internal/app"
	"cdr-enrichment/internal/config"
	"cdr-enrichment/internal/ingest"
	"cdr-enrichment/pkg/logger"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.New("production").Error("config load failed", zap.Error(err))
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	zap.ReplaceGlobals(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	components, err := app.Build(rootCtx, cfg, log, reg)
	if err != nil {
		log.Error("pipeline init failed", zap.Error(err))
		os.Exit(1)
	}
	defer components.Close()

	batches := ingest.NewHandler(components.Processor, log)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, components, batches, reg)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
	// Accepted batches keep enriching after the listener closes.
	if err := batches.Drain(shutdownCtx); err != nil {
		log.Warn("enrichment drain incomplete", zap.Error(err))
	}

	_ = logger.ShutdownFlush(context.Background(), log, 2*time.Second)
}
