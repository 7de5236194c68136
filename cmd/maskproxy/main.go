// Package main provides the standalone maskproxy server binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Tributary-ai-services/maskproxy/pkg/alert"
	"github.com/Tributary-ai-services/maskproxy/pkg/audit"
	"github.com/Tributary-ai-services/maskproxy/pkg/auditsign"
	"github.com/Tributary-ai-services/maskproxy/pkg/config"
	"github.com/Tributary-ai-services/maskproxy/pkg/control"
	"github.com/Tributary-ai-services/maskproxy/pkg/detect"
	"github.com/Tributary-ai-services/maskproxy/pkg/extract"
	"github.com/Tributary-ai-services/maskproxy/pkg/mask"
	"github.com/Tributary-ai-services/maskproxy/pkg/orchestrate"
	"github.com/Tributary-ai-services/maskproxy/pkg/proxy"
	"github.com/Tributary-ai-services/maskproxy/pkg/secret"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/maskproxy.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("maskproxy v%s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "maskproxy: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithField("signal", sig.String()).Info("shutdown signal received")
		cancel()
	}()

	publisher, err := newAuditPublisher(cfg.Audit, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize audit publisher")
	}
	defer publisher.Close()

	alertEngine := alert.NewEngine(alert.NewSlackAlerter(os.Getenv("MASKPROXY_SLACK_WEBHOOK_URL")))
	alertEngine.LoadRules(defaultAlertRules())

	whitelist := mask.NewAtomicWhitelist(cfg.PIIDetection.Whitelist)

	opts := []orchestrate.Option{
		orchestrate.WithWhitelist(whitelist),
		orchestrate.WithMode(orchestrate.Mode(cfg.Mode)),
		orchestrate.WithAuditPublisher(publisher),
		orchestrate.WithAlertHook(alertEngine.Evaluate),
	}
	if cfg.PIIDetection.Enabled {
		opts = append(opts, orchestrate.WithDetector(newDetectorClient(cfg.PIIDetection)))
	}
	if signingKey := os.Getenv("MASKPROXY_AUDIT_SIGNING_KEY"); signingKey != "" {
		opts = append(opts, orchestrate.WithAuditSigner(auditsign.New([]byte(signingKey))))
	}

	registry := extract.NewRegistry()
	orchestrator := orchestrate.New(registry, secret.New(), opts...)

	providers := make(map[string]proxy.Provider, len(cfg.Providers))
	for name, p := range cfg.Providers {
		providers[name] = proxy.Provider{BaseURL: p.BaseURL, APIKey: p.APIKey}
	}

	handler := proxy.New(orchestrator, registry, providers, log)
	if cfg.Masking.ShowMarkers {
		handler = handler.WithAnnotate(cfg.Masking.MarkerText)
	}

	healthServer := control.NewHealthServer("maskproxy")
	adminHandler := control.NewAdminHandler(orchestrator, whitelist)

	httpMux := http.NewServeMux()
	httpMux.Handle("/v1/proxy/", handler)
	httpMux.Handle("/admin/", adminHandler.Mux())

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: httpMux,
	}

	go func() {
		log.WithField("addr", cfg.Server.HTTPAddr).Info("data-plane HTTP server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server stopped unexpectedly")
			cancel()
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			log.WithError(err).Error("failed to bind gRPC control listener")
			cancel()
			return
		}
		healthServer.Ready()
		log.WithField("addr", cfg.Server.GRPCAddr).Info("control-plane gRPC server starting")
		if err := healthServer.Serve(lis); err != nil {
			log.WithError(err).Warn("gRPC health server stopped")
		}
	}()

	log.WithFields(logrus.Fields{"version": Version, "build": BuildTime, "mode": cfg.Mode}).Info("maskproxy started")

	<-ctx.Done()

	healthServer.NotServing()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	healthServer.Stop()

	log.Info("maskproxy stopped")
}

func newLogger(cfg config.LoggingConfig) *logrus.Entry {
	logger := logrus.New()
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	return logrus.NewEntry(logger)
}

func newDetectorClient(cfg config.PIIDetectionConfig) *detect.Client {
	detectCfg := detect.DefaultConfig()
	detectCfg.BaseURL = cfg.PresidioURL
	detectCfg.Entities = cfg.Entities
	if cfg.ScoreThreshold > 0 {
		detectCfg.ScoreThreshold = cfg.ScoreThreshold
	}
	if len(cfg.Languages) > 0 {
		detectCfg.Language = cfg.Languages[0]
	}
	if cfg.Breaker.ErrorThreshold > 0 {
		detectCfg.BreakerErrorThreshold = cfg.Breaker.ErrorThreshold
	}
	if cfg.Breaker.SuccessThreshold > 0 {
		detectCfg.BreakerSuccessThreshold = cfg.Breaker.SuccessThreshold
	}
	if cfg.Breaker.Timeout > 0 {
		detectCfg.BreakerTimeout = cfg.Breaker.Timeout
	}
	return detect.New(detectCfg)
}

func newAuditPublisher(cfg config.AuditConfig, log *logrus.Entry) (audit.Publisher, error) {
	topics := audit.DefaultTopics()
	if cfg.Kafka.Topic != "" {
		topics.Events = cfg.Kafka.Topic
	}
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("no Kafka brokers configured; using in-memory audit publisher")
		return audit.NewLocalPublisher(topics), nil
	}

	return audit.NewKafkaPublisher(audit.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topics:       topics,
		RequiredAcks: "leader",
		Compression:  "snappy",
	}, log)
}

func defaultAlertRules() []alert.Rule {
	return []alert.Rule{
		{ID: "secrets-any", Category: "API_KEY", MinCount: 1, Cooldown: 5 * time.Minute},
		{ID: "pii-burst", Category: "PERSON", MinCount: 10, Cooldown: 15 * time.Minute},
	}
}
