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

// PhishGuard — Scoring Service
//
// Entry point for the threat scoring service. It:
//  1. Loads configuration and the flat threat lists
//  2. Connects to PostgreSQL and Redis
//  3. Builds the mail-provider client from OAuth2 credentials
//  4. Refreshes the known-URL list from the threat feed
//  5. Polls the inbox and scores every unseen message
//  6. Serves a health endpoint and handles graceful shutdown
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/phishguard/scoring/internal/config"
	"github.com/phishguard/scoring/internal/dedup"
	"github.com/phishguard/scoring/internal/evaluator"
	"github.com/phishguard/scoring/internal/gmail"
	"github.com/phishguard/scoring/internal/headers"
	"github.com/phishguard/scoring/internal/models"
	"github.com/phishguard/scoring/internal/pipeline"
	"github.com/phishguard/scoring/internal/publish"
	"github.com/phishguard/scoring/internal/redirect"
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

	slog.Info("starting PhishGuard scoring service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"poll_interval", cfg.PollInterval,
		"poll_lookback", cfg.PollLookback,
		"auth_source", cfg.AuthSource,
	)

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
	slog.Info("threat lists loaded",
		"keywords", len(keywords),
		"extensions", len(extensions),
		"known_urls", len(knownURLs),
	)

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

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

	filter := dedup.NewFilter(rdb)

	// --- Mail Provider Client ---
	httpClient, err := oauthClient(ctx, cfg.CredentialsFile, cfg.TokenFile)
	if err != nil {
		slog.Error("failed to build provider OAuth client", "error", err)
		os.Exit(1)
	}
	mail := gmail.NewClient(httpClient, "")
	labels := gmail.NewLabelResolver(mail)

	// --- Threat Feed ---
	// Refresh the local known-URL list before the first poll so new feed
	// entries count from the start of this run.
	if cfg.Feed.RefreshURL != "" && cfg.Feed.HashFile != "" {
		refresher := threatfeed.NewRefresher(nil, cfg.Feed.RefreshURL, cfg.Lists.KnownURLs, cfg.Feed.HashFile)
		updated, err := refresher.Refresh(ctx)
		if err != nil {
			slog.Warn("known-URL refresh failed, continuing with local list", "error", err)
		} else if updated {
			knownURLs, err = wordlist.Load(cfg.Lists.KnownURLs)
			if err != nil {
				slog.Error("failed to reload known URL list", "error", err)
				os.Exit(1)
			}
		}
	}

	feed := threatfeed.NewClient(threatfeed.ClientConfig{
		BaseURL:   cfg.Feed.URL,
		APIKey:    cfg.FeedAPIKey,
		Timeout:   cfg.FeedTimeout,
		KnownURLs: knownURLs,
	})

	// --- Publisher ---
	publisher := publish.NewPublisher(rdb, cfg.VerdictsQueue, labels, verdicts, map[models.Tier]string{
		models.TierLow:    cfg.Labels.Low,
		models.TierMedium: cfg.Labels.Medium,
		models.TierHigh:   cfg.Labels.High,
	})
	if err := publisher.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Pipeline ---
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

	var tracer redirect.Tracer
	if cfg.Redirect.Enabled {
		tracer = redirect.NewBrowserTracer(
			cfg.Redirect.PollInterval,
			cfg.Redirect.StabilityWindow,
			cfg.Redirect.MaxWait,
		)
		slog.Info("redirect tracing enabled", "max_wait", cfg.Redirect.MaxWait)
	}

	normalizer := headers.New(cfg.AuthSource)
	pipe := pipeline.New(normalizer, aggregator, publisher, tracer, cfg.Heuristics.Shorteners)

	// --- Inbox Poller ---
	poller := pipeline.NewPoller(mail, filter, pipe, cfg.PollInterval, cfg.PollLookback)
	go poller.Run(ctx)

	// --- Health Check Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		// Check Redis
		if err := publisher.Ping(r.Context()); err != nil {
			http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
			return
		}
		// Check Postgres
		if err := pgPool.Ping(r.Context()); err != nil {
			http.Error(w, "postgres unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// --- Graceful Shutdown ---
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh

		slog.Info("received shutdown signal", "signal", sig)
		cancel() // Stop the poller

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		rdb.Close()
		pgPool.Close()
	}()

	slog.Info("scoring service listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("scoring service stopped")
}

// oauthClient builds an HTTP client carrying the mailbox owner's OAuth2
// token. The token file comes from a one-time interactive consent flow;
// the client library refreshes it from there.
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
