package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

// This binary runs on an EventBridge schedule and triggers one reconciliation
// sweep on the API server. It holds no reconciliation logic itself; it only
// posts to /jobs/sweep and surfaces the report in the function logs.

type config struct {
	upstreamBaseURL string
	sweepSecret     string
	upstreamTimeout time.Duration
}

func loadConfig() (config, error) {
	baseURL := strings.TrimSpace(os.Getenv("UPSTREAM_BASE_URL"))
	if baseURL == "" {
		return config{}, errors.New("UPSTREAM_BASE_URL is required")
	}

	secret := strings.TrimSpace(os.Getenv("SWEEP_SECRET"))
	if secret == "" {
		return config{}, errors.New("SWEEP_SECRET is required")
	}

	// A sweep walks every active event in the window, so it gets a far longer
	// budget than an ordinary proxy call.
	timeout := 5 * time.Minute
	if raw := strings.TrimSpace(os.Getenv("UPSTREAM_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return config{}, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
		}
		timeout = parsed
	}

	return config{
		upstreamBaseURL: strings.TrimRight(baseURL, "/"),
		sweepSecret:     secret,
		upstreamTimeout: timeout,
	}, nil
}

type sweepResponse struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error"`
	Report json.RawMessage `json:"report"`
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	client := &http.Client{Timeout: cfg.upstreamTimeout}
	lambda.Start(func(ctx context.Context, evt events.CloudWatchEvent) error {
		return handle(ctx, cfg, client)
	})
}

func handle(ctx context.Context, cfg config, client *http.Client) error {
	reqCtx, cancel := context.WithTimeout(ctx, cfg.upstreamTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, cfg.upstreamBaseURL+"/jobs/sweep", nil)
	if err != nil {
		return fmt.Errorf("build sweep request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.sweepSecret)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("trigger sweep: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var parsed sweepResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("sweep returned status %d with unreadable body: %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || !parsed.OK {
		log.Printf("sweep failed: status=%d error=%s report=%s", resp.StatusCode, parsed.Error, parsed.Report)
		return fmt.Errorf("sweep failed with status %d: %s", resp.StatusCode, parsed.Error)
	}

	log.Printf("sweep completed: %s", parsed.Report)
	return nil
}
