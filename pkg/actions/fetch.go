// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package actions

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	"github.com/MagicOwO/pipo-agent/pkg/errors"
	"github.com/MagicOwO/pipo-agent/pkg/resilience"
)

const (
	defaultFetchTimeout = 30 * time.Second
	maxContentLen       = 50000
)

// ContentFetcher downloads a page and extracts its readable text.
type ContentFetcher struct {
	HTTP      *http.Client
	UserAgent string
	Sanitizer *bluemonday.Policy
}

// NewContentFetcher returns a fetcher with sane HTTP defaults.
func NewContentFetcher() *ContentFetcher {
	return &ContentFetcher{
		HTTP:      &http.Client{Timeout: defaultFetchTimeout},
		UserAgent: "pipo-agent/1.0",
		Sanitizer: bluemonday.StrictPolicy(),
	}
}

// Fetch downloads target and returns its title and readable text.
func (f *ContentFetcher) Fetch(ctx context.Context, target string) (string, error) {
	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.New(errors.CodeInvalidInput, "fetch_content requires an absolute URL", err).
			WithContext("url", target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", errors.New(errors.CodeInternal, "build fetch request", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.HTTP.Do(req)
	if err != nil {
		return "", errors.New(errors.CodeExecution, "fetch failed", err).WithRecoverable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.New(errors.CodeExecution, fmt.Sprintf("fetch returned status %d", resp.StatusCode), nil).
			WithContext("url", target).
			WithRecoverable(resp.StatusCode >= 500)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", errors.New(errors.CodeExecution, "extract readable content", err).
			WithContext("url", target)
	}

	content := f.Sanitizer.Sanitize(article.TextContent)
	if len(content) > maxContentLen {
		content = content[:maxContentLen] + "\n... (content truncated) ..."
	}
	if article.Title != "" {
		return fmt.Sprintf("TITLE: %s\n\n%s", article.Title, content), nil
	}
	return content, nil
}

// FetchContent fetches a URL and returns its main text content.
type FetchContent struct {
	fetcher *ContentFetcher
	timeout resilience.TimeoutConfig
}

// NewFetchContent wraps fetcher with the per-call timeout boundary.
func NewFetchContent(fetcher *ContentFetcher) *FetchContent {
	return &FetchContent{
		fetcher: fetcher,
		timeout: resilience.TimeoutConfig{Duration: defaultFetchTimeout},
	}
}

func (a *FetchContent) Spec() action.Spec {
	return action.Spec{
		Name:        "fetch_content",
		Description: "Fetches a web page and extracts its readable text content.",
		Params: []action.ParamSpec{
			{Name: "url", Type: action.ParamString, Description: "URL to fetch content from", Required: true},
		},
	}
}

func (a *FetchContent) Execute(ctx context.Context, params action.Params) (any, error) {
	target, ok := params.String("url")
	if !ok || target == "" {
		return nil, errors.New(errors.CodeInvalidInput, "fetch_content requires a url", nil)
	}
	return resilience.WithTimeoutResult(ctx, a.timeout, func(ctx context.Context) (any, error) {
		return a.fetcher.Fetch(ctx, target)
	})
}
