// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	"github.com/MagicOwO/pipo-agent/pkg/errors"
	"github.com/MagicOwO/pipo-agent/pkg/resilience"
)

// SearchResult is one hit returned by a search backend.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchClient abstracts the search backend behind web_search.
type SearchClient interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// SearxClient queries a SearxNG instance's JSON API.
type SearxClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewSearxClient builds a client for the SearxNG instance at baseURL.
func NewSearxClient(baseURL string) *SearxClient {
	return &SearxClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *SearxClient) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	endpoint, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "invalid search base URL", err)
	}
	endpoint = endpoint.JoinPath("search")
	q := endpoint.Query()
	q.Set("q", query)
	q.Set("format", "json")
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "build search request", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errors.New(errors.CodeExecution, "search request failed", err).
			WithRecoverable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.New(errors.CodeRateLimit, "search backend throttled", nil).
			WithContext("status", strconv.Itoa(resp.StatusCode)).
			WithRecoverable(true)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.CodeExecution, fmt.Sprintf("search backend returned status %d", resp.StatusCode), nil).
			WithRecoverable(resp.StatusCode >= 500)
	}

	var payload struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.New(errors.CodeExecution, "decode search response", err)
	}

	results := make([]SearchResult, 0, limit)
	for _, r := range payload.Results {
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// WebSearch performs a web search and returns structured results.
type WebSearch struct {
	client SearchClient
	retry  resilience.RetryConfig
}

// NewWebSearch wraps client with the default retry policy.
func NewWebSearch(client SearchClient) *WebSearch {
	return &WebSearch{client: client, retry: DefaultSearchRetry()}
}

// DefaultSearchRetry is the retry policy applied to search calls.
func DefaultSearchRetry() resilience.RetryConfig {
	return resilience.DefaultRetryConfig().WithMaxAttempts(3)
}

func (a *WebSearch) Spec() action.Spec {
	return action.Spec{
		Name:        "web_search",
		Description: "Performs a web search and returns a list of results with title, url and snippet.",
		Params: []action.ParamSpec{
			{Name: "query", Type: action.ParamString, Description: "Search query", Required: true},
			{Name: "num_results", Type: action.ParamInt, Description: "Number of results to return", Default: 5},
		},
	}
}

func (a *WebSearch) Execute(ctx context.Context, params action.Params) (any, error) {
	query, ok := params.String("query")
	if !ok || query == "" {
		return nil, errors.New(errors.CodeInvalidInput, "web_search requires a query", nil)
	}
	limit, ok := params.Int("num_results")
	if !ok || limit < 1 {
		limit = 5
	}

	value, err := a.retry.DoWithResult(ctx, func() (any, error) {
		return a.client.Search(ctx, query, limit)
	})
	if err != nil {
		return nil, err
	}

	results := value.([]SearchResult)
	// Maps keep the output consumable by downstream LLM actions.
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]any{
			"title":   r.Title,
			"url":     r.URL,
			"snippet": r.Snippet,
		})
	}
	return out, nil
}
