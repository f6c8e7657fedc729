package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/querypilot/querypilot/internal/cli/querypilotctl"
	"github.com/querypilot/querypilot/internal/conn"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	options := querypilotctl.Options{
		BaseURL: envOr("QUERYPILOT_API_URL", "http://localhost:8000"),
		Timeout: parseDurationWithDefault(strings.TrimSpace(os.Getenv("QUERYPILOT_CLI_TIMEOUT")), 60*time.Second),
		Connection: conn.Details{
			Username: os.Getenv("QUERYPILOT_DB_USERNAME"),
			Password: os.Getenv("QUERYPILOT_DB_PASSWORD"),
			Hostname: os.Getenv("QUERYPILOT_DB_HOSTNAME"),
			Database: os.Getenv("QUERYPILOT_DB_DATABASE"),
			Dialect:  conn.Dialect(strings.TrimSpace(os.Getenv("QUERYPILOT_DB_DIALECT"))),
		},
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	code := querypilotctl.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid QUERYPILOT_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
