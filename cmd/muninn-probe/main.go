// Package main is a command line probe for exercising a Muninn backend.
//
// It builds a real SDK client, tracks a handful of events, flushes them,
// then resolves flags and experiment assignments from the fetched
// configuration and prints the results.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	muninn "github.com/muninn-io/muninn-go"
	"github.com/muninn-io/muninn-go/internal/config"
	"github.com/muninn-io/muninn-go/internal/logger"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	// -------------------------------------------------------------------------
	// 1. Configuration
	// -------------------------------------------------------------------------

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Flags override the environment.
	var (
		serverURL  = pflag.String("server", cfg.SDK.BaseURL, "backend base URL")
		appID      = pflag.String("app-id", cfg.SDK.AppID, "application id")
		apiKey     = pflag.String("api-key", cfg.SDK.APIKey, "API key")
		userID     = pflag.String("user", "", "user id to identify as")
		eventCount = pflag.Int("events", 3, "number of probe events to track")
		experiment = pflag.String("experiment", "exp_paywall_v3", "experiment id to resolve")
		flagName   = pflag.String("flag", "dark_mode", "feature flag to check")
		timeout    = pflag.Duration("timeout", 15*time.Second, "overall probe timeout")
	)
	pflag.Parse()

	if *appID == "" {
		*appID = "app_dev"
	}

	appLogger := logger.New(&cfg.App)

	// -------------------------------------------------------------------------
	// 2. Client Setup
	// -------------------------------------------------------------------------

	client, err := muninn.New(muninn.Config{
		BaseURL:          *serverURL,
		AppID:            *appID,
		APIKey:           *apiKey,
		Platform:         cfg.SDK.Platform,
		AppVersion:       cfg.App.Version,
		BatchSize:        cfg.SDK.BatchSize,
		FlushInterval:    cfg.SDK.FlushInterval,
		MaxRetries:       cfg.SDK.MaxRetries,
		MaxPendingEvents: cfg.SDK.MaxPendingEvents,
		ConfigTTL:        cfg.SDK.ConfigTTL,
		EventLogPath:     cfg.SDK.EventLogPath,
		ConfigStorePath:  cfg.SDK.ConfigBlobPath,
		HTTPTimeout:      cfg.SDK.HTTPTimeout,
		Logger:           appLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to build client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	defer func() {
		if err := client.Close(ctx); err != nil {
			appLogger.Warn("client close did not finish cleanly", "error", err)
		}
	}()

	// -------------------------------------------------------------------------
	// 3. Wait For Configuration
	// -------------------------------------------------------------------------

	fetched := make(chan struct{}, 1)
	cancelObs := client.OnConfigFetched(func() {
		select {
		case fetched <- struct{}{}:
		default:
		}
	})
	defer cancelObs()

	select {
	case <-fetched:
		fmt.Println("configuration fetched")
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for configuration: %w", ctx.Err())
	}

	// -------------------------------------------------------------------------
	// 4. Probe
	// -------------------------------------------------------------------------

	if *userID != "" {
		client.Identify(*userID)
		fmt.Printf("identified as %s\n", *userID)
	}

	fmt.Printf("flag %q enabled: %v\n", *flagName, client.IsFeatureEnabled(*flagName))

	if variant, ok := client.ExperimentVariant(*experiment); ok {
		fmt.Printf("experiment %q variant: %s\n", *experiment, variant)
		if cta, ok := client.ExperimentConfig(*experiment, "cta"); ok {
			fmt.Printf("experiment %q cta payload: %v\n", *experiment, cta)
		}
	} else {
		fmt.Printf("experiment %q: not eligible or unknown\n", *experiment)
	}

	for i := 0; i < *eventCount; i++ {
		client.Track("probe_event", map[string]any{
			"sequence": i,
			"source":   "muninn-probe",
		})
	}
	client.Flush()
	fmt.Printf("tracked and flushed %d events\n", *eventCount)

	messages := client.ActiveMessages()
	fmt.Printf("active messages: %d\n", len(messages))
	for _, m := range messages {
		fmt.Printf("  %s\n", m.ID)
	}

	return nil
}
