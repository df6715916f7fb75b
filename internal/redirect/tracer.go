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

// Package redirect resolves obfuscated and shortened links to their final
// destination by driving a headless browser and polling the current
// location until it stops changing. Optional: the pipeline runs without a
// tracer and simply scores the original URLs.
package redirect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// Tracer follows a URL through its redirect chain.
type Tracer interface {
	// Trace returns the visited URL chain in order and the HTML source of
	// the final page. The chain is empty when the initial navigation
	// failed.
	Trace(ctx context.Context, startURL string) (chain []string, finalHTML string, err error)
}

// BrowserTracer traces redirects with a headless Chrome instance. Client-
// side redirects (meta refresh, JavaScript) are observed the same way as
// HTTP ones: by watching the address bar.
type BrowserTracer struct {
	pollInterval    time.Duration
	stabilityWindow time.Duration
	maxWait         time.Duration
}

// NewBrowserTracer creates a tracer. pollInterval is how often the current
// URL is sampled, stabilityWindow is how long it must remain unchanged to
// count as final, and maxWait bounds the whole trace.
func NewBrowserTracer(pollInterval, stabilityWindow, maxWait time.Duration) *BrowserTracer {
	if pollInterval <= 0 {
		pollInterval = 200 * time.Millisecond
	}
	if stabilityWindow <= 0 {
		stabilityWindow = 2 * time.Second
	}
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	return &BrowserTracer{
		pollInterval:    pollInterval,
		stabilityWindow: stabilityWindow,
		maxWait:         maxWait,
	}
}

// Trace implements Tracer.
func (t *BrowserTracer) Trace(ctx context.Context, startURL string) ([]string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.maxWait)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(startURL)); err != nil {
		return nil, "", fmt.Errorf("navigate %s: %w", startURL, err)
	}

	var chain []string
	last := ""
	lastChange := time.Now()

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

poll:
	for {
		select {
		case <-browserCtx.Done():
			slog.Debug("redirect trace timed out", "start_url", startURL, "hops", len(chain))
			break poll
		case <-ticker.C:
		}

		var current string
		if err := chromedp.Run(browserCtx, chromedp.Location(&current)); err != nil {
			slog.Warn("failed to read current location, stopping trace",
				"start_url", startURL,
				"error", err,
			)
			break poll
		}
		if current == "" || current == "about:blank" {
			continue
		}

		if current != last {
			chain = append(chain, current)
			last = current
			lastChange = time.Now()
			continue
		}
		if time.Since(lastChange) > t.stabilityWindow {
			break poll
		}
	}

	var finalHTML string
	if len(chain) > 0 {
		if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &finalHTML)); err != nil {
			slog.Warn("failed to read final page source", "error", err)
		}
	}

	return chain, finalHTML, nil
}
