// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// PhishGuard — Historical Backfill Command
//
// Standalone CLI tool that scores historical mailbox messages within a
// configurable lookback window, or imports a single .eml file and scores
// it. Intended for seeding verdicts on new deployments and for scoring
// captured samples.
//
// Usage:
//
//	go run ./cmd/backfill/ [--since 720h]
//	go run ./cmd/backfill/ --eml sample.eml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/phishguard/scoring/internal/backfill"
	"github.com/phishguard/scoring/internal/config"
	"github.com/phishguard/scoring/internal/dedup"
	"github.com/phishguard/scoring/internal/evaluator"
	"github.com/phishguard/scoring/internal/gmail"
	"github.com/phishguard/scoring/internal/headers"
	"github.com/phishguard/scoring/internal/models"
	"github.com/phishguard/scoring/internal/pipeline"
	"github.com/phishguard/scoring/internal/publish"
	"github.com/phishguard/scoring/internal/store"
	"github.com/phishguard/scoring/internal/threatfeed"
	"github.com/phishguard/scoring/internal/wordlist"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	sinceFlag := flag.String("since", "720h", "Lookback duration (e.g. 168h for 1 week, 720h for 30 days)")
	emlFlag := flag.String("eml", "", "Path to a .eml file to import and score instead of a backfill run")
	flag.Parse()

	sinceDuration, err := time.ParseDuration(*sinceFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid --since duration %q: %v\n", *sinceFlag, err)
		os.Exit(1)
	}

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Load Threat Lists ---
	keywords, err := wordlist.Load(cfg.Lists.Keywords)
	if err != nil {
		slog.Error("failed to load keyword list", "error", err)
		os.Exit(1)
	}
	extensions, err := wordlist.Load(cfg.Lists.Extensions)
	if err != nil {
		slog.Error("failed to load extension blacklist", "error", err)
		os.Exit(1)
	}
	knownURLs, err := wordlist.Load(cfg.Lists.KnownURLs)
	if err != nil {
		slog.Error("failed to load known URL list", "error", err)
		os.Exit(1)
	}

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	verdicts, err := store.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise verdict store", "error", err)
		os.Exit(1)
	}

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	filter := dedup.NewFilter(rdb)

	// --- Mail Provider Client ---
	httpClient, err := oauthClient(ctx, cfg.CredentialsFile, cfg.TokenFile)
	if err != nil {
		slog.Error("failed to build provider OAuth client", "error", err)
		os.Exit(1)
	}
	mail := gmail.NewClient(httpClient, "")
	labels := gmail.NewLabelResolver(mail)

	feed := threatfeed.NewClient(threatfeed.ClientConfig{
		BaseURL:   cfg.Feed.URL,
		APIKey:    cfg.FeedAPIKey,
		Timeout:   cfg.FeedTimeout,
		KnownURLs: knownURLs,
	})

	publisher := publish.NewPublisher(rdb, cfg.VerdictsQueue, labels, verdicts, map[models.Tier]string{
		models.TierLow:    cfg.Labels.Low,
		models.TierMedium: cfg.Labels.Medium,
		models.TierHigh:   cfg.Labels.High,
	})
	if err := publisher.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	aggregator := evaluator.NewAggregator(
		evaluator.NewKeyword(keywords),
		evaluator.SPF{},
		evaluator.DKIM{},
		evaluator.DMARC{},
		evaluator.NewReputation(feed),
		evaluator.NewAttachmentExt(extensions),
		evaluator.NewLinkHeuristics(cfg.Heuristics.Shorteners, cfg.Heuristics.SuspiciousTLDs),
		evaluator.NewImpersonation(cfg.Heuristics.InternalDomains, cfg.Heuristics.ImportantNames),
	)

	// Redirect tracing stays off for bulk runs; a headless browser per
	// shortened URL would stretch a 30-day backfill into hours.
	normalizer := headers.New(cfg.AuthSource)
	pipe := pipeline.New(normalizer, aggregator, publisher, nil, cfg.Heuristics.Shorteners)

	// --- Single-file Import Mode ---
	if *emlFlag != "" {
		id, err := mail.ImportEML(ctx, *emlFlag)
		if err != nil {
			slog.Error("eml import failed", "path", *emlFlag, "error", err)
			os.Exit(1)
		}
		raw, err := mail.GetMessage(ctx, id)
		if err != nil || raw == nil {
			slog.Error("imported message fetch failed", "provider_id", id, "error", err)
			os.Exit(1)
		}
		rec, err := pipe.Process(ctx, raw)
		if err != nil {
			slog.Error("imported message scoring failed", "provider_id", id, "error", err)
			os.Exit(1)
		}
		slog.Info("imported message scored",
			"provider_id", rec.ProviderID,
			"score", rec.Score,
			"tier", rec.Tier,
		)
		return
	}

	// --- Run Backfill ---
	slog.Info("starting historical backfill", "since", sinceDuration)

	runner := backfill.NewRunner(backfill.RunnerConfig{
		Source:   mail,
		Filter:   filter,
		Pipeline: pipe,
	})

	result, err := runner.Run(ctx, backfill.Request{Since: sinceDuration})
	if err != nil {
		slog.Error("backfill failed", "error", err)
		os.Exit(1)
	}

	// --- Summary ---
	slog.Info("backfill complete",
		"scored", result.Scored,
		"skipped", result.Skipped,
		"errors", result.Errors,
		"elapsed", result.Elapsed,
	)
}

// oauthClient builds an HTTP client carrying the mailbox owner's OAuth2
// token, refreshed automatically from the stored token file.
func oauthClient(ctx context.Context, credentialsFile, tokenFile string) (*http.Client, error) {
	credJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	oauthCfg, err := google.ConfigFromJSON(credJSON, "https://www.googleapis.com/auth/gmail.modify")
	if err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}

	tokJSON, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}

	return oauthCfg.Client(ctx, &tok), nil
}
