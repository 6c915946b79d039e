package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/medintake/intake-ai-platform/cmd/mainconfig"
	"github.com/medintake/intake-ai-platform/internal/api/router"
	"github.com/medintake/intake-ai-platform/internal/appointments"
	"github.com/medintake/intake-ai-platform/internal/audit"
	"github.com/medintake/intake-ai-platform/internal/bots"
	"github.com/medintake/intake-ai-platform/internal/calllifecycle"
	"github.com/medintake/intake-ai-platform/internal/calls"
	appconfig "github.com/medintake/intake-ai-platform/internal/config"
	"github.com/medintake/intake-ai-platform/internal/observability/metrics"
	"github.com/medintake/intake-ai-platform/internal/openmic"
	"github.com/medintake/intake-ai-platform/internal/patients"
	"github.com/medintake/intake-ai-platform/internal/reconcile"
	"github.com/medintake/intake-ai-platform/pkg/logging"
)

func main() {
	// Local development convenience; production reads real env vars.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting intake-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repositories
	var (
		patientRepo patients.Repository
		apptRepo    appointments.Repository
		botRepo     bots.Repository
		callRepo    calls.Repository
	)
	var awsAvailable bool
	var dynamoClient *dynamodb.Client
	var sqsClient *sqs.Client
	var s3Client *s3.Client

	if cfg.UseMemoryStore {
		logger.Info("using in-memory repositories")
		patientRepo = patients.NewInMemoryRepository()
		apptRepo = appointments.NewInMemoryRepository()
		botRepo = bots.NewInMemoryRepository()
		callRepo = calls.NewInMemoryRepository()
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		awsAvailable = true
		dynamoClient = dynamodb.NewFromConfig(awsCfg)
		sqsClient = sqs.NewFromConfig(awsCfg)
		s3Client = s3.NewFromConfig(awsCfg)

		patientRepo = patients.NewDynamoRepository(dynamoClient, cfg.PatientsTable, logger)
		apptRepo = appointments.NewDynamoRepository(dynamoClient, cfg.AppointmentsTable, logger)
		botRepo = bots.NewDynamoRepository(dynamoClient, cfg.BotsTable, logger)
		callRepo = calls.NewDynamoRepository(dynamoClient, cfg.CallsTable, logger)
	}

	// OpenMic provider client; optional so the dashboard works offline.
	var openmicClient *openmic.Client
	if cfg.OpenMicAPIKey != "" {
		client, err := openmic.New(openmic.Config{
			BaseURL:       cfg.OpenMicBaseURL,
			APIKey:        cfg.OpenMicAPIKey,
			WebhookSecret: cfg.OpenMicWebhookSecret,
			Timeout:       cfg.OpenMicTimeout,
			MaxRetries:    cfg.OpenMicMaxRetries,
			Logger:        logger.Logger,
		})
		if err != nil {
			logger.Error("failed to initialize OpenMic client", "error", err)
			os.Exit(1)
		}
		openmicClient = client
	} else {
		logger.Warn("OPENMIC_API_KEY not set; bot provisioning and outbound calls disabled")
	}

	// Bot mirror cache
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
	}
	botCache := bots.NewCache(redisClient, cfg.BotCacheTTL)

	// Mirror reconciliation queue
	var reconcileQueue reconcile.Queue
	switch {
	case cfg.UseMemoryQueue:
		reconcileQueue = reconcile.NewMemoryQueue(64)
	case cfg.ReconcileQueueURL != "" && awsAvailable:
		reconcileQueue = reconcile.NewSQSQueue(sqsClient, cfg.ReconcileQueueURL)
	default:
		logger.Warn("mirror reconciliation queue not configured; mirror repairs will only be logged")
	}

	// Bots service and reconcile worker
	var botsService *bots.Service
	if openmicClient != nil {
		botsService = bots.NewService(botRepo, botCache, openmicClient, reconcileQueue, cfg.PublicBaseURL, logger)
		if reconcileQueue != nil {
			worker := reconcile.NewWorker(reconcileQueue, botsService, logger)
			go func() {
				if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
					logger.Error("reconcile worker stopped", "error", err)
				}
			}()
		}
	}

	// Call audit archive
	var archiver *audit.Archiver
	if cfg.AuditBucket != "" && s3Client != nil {
		archiver = audit.NewArchiver(s3Client, cfg.AuditBucket, logger)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	// New patients get an intake slot on the next business day.
	scheduleIntake := func(r *http.Request, patientID, medicalID string) error {
		slot := nextBusinessDay(time.Now().UTC())
		_, err := apptRepo.Create(r.Context(), &appointments.CreateAppointmentRequest{
			PatientID: patientID,
			MedicalID: medicalID,
			Date:      slot.Format("2006-01-02"),
			Time:      "09:00",
			Note:      "Initial intake appointment",
		})
		return err
	}

	// Webhook state machine and handlers
	machine := calllifecycle.NewMachine(callRepo, patientRepo, apptRepo, logger)

	routerCfg := &router.Config{
		Logger:              logger,
		PatientsHandler:     patients.NewHandler(patientRepo, scheduleIntake, logger),
		AppointmentsHandler: appointments.NewHandler(apptRepo, logger),
		CallsHandler:        calls.NewHandler(callRepo, dialerFor(openmicClient), logger),
		WebhookHandler:      calllifecycle.NewHandler(machine, webhookMetrics, archiver, logger),
		WebhookSecret:       cfg.OpenMicWebhookSecret,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	}
	if botsService != nil {
		routerCfg.BotsHandler = bots.NewHandler(botsService, logger)
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}

// dialerFor avoids handing the calls handler a typed-nil interface.
func dialerFor(client *openmic.Client) calls.Dialer {
	if client == nil {
		return nil
	}
	return client
}

// nextBusinessDay returns the next weekday after t.
func nextBusinessDay(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
