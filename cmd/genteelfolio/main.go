// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/schildwaechter/genteelfolio/internal/config"
	"github.com/schildwaechter/genteelfolio/internal/handlers"
	"github.com/schildwaechter/genteelfolio/internal/herald"
	"github.com/schildwaechter/genteelfolio/internal/ledger"
	"github.com/schildwaechter/genteelfolio/internal/o11y"
	"github.com/schildwaechter/genteelfolio/internal/services"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	slogfiber "github.com/samber/slog-fiber"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// to be overwritten on build
var buildVersion string = "0.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Version == "0.0.0" {
		cfg.Version = buildVersion
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// common attributes for all OTEL data
	commonAttribs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(strings.ToLower(strings.ReplaceAll(cfg.AppName, " ", ""))),
		semconv.ServiceVersionKey.String(cfg.Version),
		semconv.ServiceInstanceIDKey.String(uuid.New().String()),
		attribute.String("hostname", cfg.NodeName),
		attribute.String("genteelrole", cfg.Role),
	}

	// if OTEL is not configured, everything just remains silent
	shutdownOTel, err := o11y.SetupOTel(ctx, commonAttribs)
	if err != nil {
		log.Fatal("Can't send OTEL data: ", err)
	}
	defer func() {
		_ = shutdownOTel(context.Background())
	}()

	// set up the logging with fanout to both stdout and (optionally) OTEL
	o11y.CreateLogger(cfg.AppName, cfg.Role, cfg.JSONLogging)

	flags, err := config.NewFlags(cfg)
	if err != nil {
		o11y.Logger.Error("Can't reach flagd, using static flags", slog.Any("error", err))
		flags = config.StaticFlags(cfg.RateLimitPerMinute)
	}

	app := handlers.NewApp(cfg.AppName, cfg.TrustedProxies)
	appInt := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(requestid.New())

	var store ledger.Ledger
	if cfg.ServesArchive() {
		store, err = openLedger(ctx, cfg)
		if err != nil {
			log.Fatal("Can't open the ledger: ", err)
		}
		defer store.Close()
	}

	// healthcheck before any tracing/logging/metrics and on internal port
	if store != nil {
		handlers.RegisterProbes(appInt, handlers.LedgerReady(store))
	} else {
		handlers.RegisterProbes(appInt, nil)
	}

	var submitter *services.BookingSubmitter
	courier := services.NewNimbleCourier(cfg.AppName, cfg.RequestTimeout)
	if cfg.ServesSite() {
		submitter = services.NewBookingSubmitter(courier, cfg.BookingURL(), flags)
	}
	inFlight := func() int64 {
		if submitter == nil {
			return 0
		}
		return submitter.InFlight()
	}

	// we use both prometheus and OTEL
	if err := o11y.InitFolioInstruments(cfg.AppName, commonAttribs, inFlight); err != nil {
		o11y.Logger.Error("Can't create instruments", slog.Any("error", err))
	}
	prometheus := fiberprometheus.NewWithDefaultRegistry(cfg.AppName)
	prometheus.RegisterAt(appInt, "/metrics")
	app.Use(prometheus.Middleware)
	app.Use(otelfiber.Middleware())

	// always log traceID, spanID and requestID
	loggerConfig := slogfiber.Config{
		WithSpanID:         true,
		WithTraceID:        true,
		WithRequestID:      true,
		WithRequestHeader:  true,
		WithResponseHeader: true,
	}
	app.Use(slogfiber.NewWithConfig(o11y.Logger, loggerConfig))
	app.Use(recover.New())

	if cfg.ServesArchive() {
		announcer := openHerald(cfg)
		defer func() {
			_ = announcer.Close()
		}()
		archivist := services.NewArchivist(store, services.ArchivistOptions{
			AppName:    cfg.AppName,
			PublicURL:  cfg.PublicURL,
			FileKey:    cfg.ResumeKey,
			FilePath:   cfg.ResumeFile,
			SigningKey: cfg.LinkSigningKey,
			TTL:        cfg.LinkTTL,
		})
		clerk := services.NewDiligentClerk(cfg.AppName, store, announcer)
		handlers.NewArchive(cfg.AppName, cfg.ResumeKey, cfg.RateLimitPerMinute, archivist, clerk).RegisterRoutes(app)
		o11y.Logger.Info("Archive open for " + cfg.PublicURL)
	}

	if cfg.ServesSite() {
		resumes := services.NewResumeFetcher(courier, cfg.ResumeURL())
		handlers.NewSite(cfg.AppName, cfg.Owner, flags, resumes, submitter).RegisterRoutes(app)
		o11y.Logger.Info("Site talking to " + cfg.APIBaseURL)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := appInt.Listen(cfg.IntAddr + ":" + cfg.IntPort); err != nil {
			o11y.Logger.Error("Internal listener stopped", slog.Any("error", err))
			stop()
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.Listen(cfg.AppAddr + ":" + cfg.AppPort); err != nil {
			o11y.Logger.Error("Listener stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	o11y.Logger.Info("Closing up shop")
	_ = app.ShutdownWithTimeout(10 * time.Second)
	_ = appInt.ShutdownWithTimeout(10 * time.Second)
	wg.Wait()
}

func openLedger(ctx context.Context, cfg config.Config) (ledger.Ledger, error) {
	if cfg.DatabaseURL == "" {
		o11y.Logger.Warn("No DATABASE_URL, keeping the ledger in memory")
		return ledger.NewMemory(), nil
	}
	return ledger.OpenPostgres(ctx, cfg.DatabaseURL)
}

func openHerald(cfg config.Config) herald.Herald {
	if cfg.AMQPURL == "" {
		return herald.QuietHerald{}
	}
	h, err := herald.NewRabbitHerald(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		o11y.Logger.Error("Can't reach the broker, confirmations only go to the log", slog.Any("error", err))
		return herald.QuietHerald{}
	}
	return h
}
