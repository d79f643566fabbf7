// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package discovery finds MCP servers and registers their tools as actions.
// Providers list server endpoints; the resolver aggregates and dedupes them;
// RegisterAll connects to every endpoint and installs its tools into the
// action registry. A server that fails to connect is logged and skipped so
// one bad endpoint cannot take the whole catalog down.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	"github.com/MagicOwO/pipo-agent/pkg/mcp"
)

// ServerEndpoint describes one MCP server to pull tools from.
type ServerEndpoint struct {
	Name      string
	Transport string // stdio or http
	Command   string
	Args      []string
	URL       string
}

// Provider lists MCP server endpoints.
type Provider interface {
	List(ctx context.Context) ([]ServerEndpoint, error)
}

// Resolver aggregates providers in priority order.
type Resolver struct {
	providers []Provider
}

// NewResolver creates a resolver. Nil providers are skipped; at least one
// real provider is required.
func NewResolver(providers ...Provider) (*Resolver, error) {
	filtered := make([]Provider, 0, len(providers))
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		filtered = append(filtered, provider)
	}
	if len(filtered) == 0 {
		return nil, errors.New("no discovery providers configured")
	}
	return &Resolver{providers: filtered}, nil
}

// Resolve returns endpoints in provider order, deduped by name.
func (r *Resolver) Resolve(ctx context.Context) ([]ServerEndpoint, error) {
	if r == nil {
		return nil, errors.New("resolver is nil")
	}
	out := make([]ServerEndpoint, 0)
	seen := map[string]struct{}{}
	for _, provider := range r.providers {
		entries, err := provider.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			key := normalizeKey(entry)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, entry)
		}
	}
	return out, nil
}

// Dedupe by name when set, otherwise by the connection target.
func normalizeKey(e ServerEndpoint) string {
	if name := strings.TrimSpace(strings.ToLower(e.Name)); name != "" {
		return "name:" + name
	}
	if url := strings.TrimSpace(strings.ToLower(e.URL)); url != "" {
		return url
	}
	if cmd := strings.TrimSpace(e.Command); cmd != "" {
		return "cmd:" + cmd + " " + strings.Join(e.Args, " ")
	}
	return ""
}

// SortByName sorts endpoints by name, then URL.
func SortByName(endpoints []ServerEndpoint) {
	sort.Slice(endpoints, func(i, j int) bool {
		left := strings.ToLower(strings.TrimSpace(endpoints[i].Name))
		right := strings.ToLower(strings.TrimSpace(endpoints[j].Name))
		if left == right {
			return strings.ToLower(endpoints[i].URL) < strings.ToLower(endpoints[j].URL)
		}
		return left < right
	})
}

// Connect opens a client for the endpoint's transport.
func Connect(endpoint ServerEndpoint) (*mcp.Client, error) {
	switch strings.ToLower(strings.TrimSpace(endpoint.Transport)) {
	case "", "stdio":
		if endpoint.Command == "" {
			return nil, fmt.Errorf("mcp server %q: stdio transport needs a command", endpoint.Name)
		}
		return mcp.NewClientWithStdio(endpoint.Command, endpoint.Args)
	case "http":
		if endpoint.URL == "" {
			return nil, fmt.Errorf("mcp server %q: http transport needs a url", endpoint.Name)
		}
		return mcp.NewClientWithStreamableHTTP(endpoint.URL)
	default:
		return nil, fmt.Errorf("mcp server %q: unknown transport %q", endpoint.Name, endpoint.Transport)
	}
}

// RegisterAll resolves endpoints, connects to each, and registers its tools
// as actions. It returns the connected clients so the caller can close them
// on shutdown. Endpoints that fail to connect or register are skipped with
// a warning.
func RegisterAll(ctx context.Context, reg *action.Registry, resolver *Resolver) ([]*mcp.Client, error) {
	endpoints, err := resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	var clients []*mcp.Client
	for _, endpoint := range endpoints {
		client, err := Connect(endpoint)
		if err != nil {
			slog.WarnContext(ctx, "discovery.mcp.connect.failed",
				slog.String("server", endpoint.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := mcp.RegisterTools(ctx, reg, client); err != nil {
			slog.WarnContext(ctx, "discovery.mcp.register.failed",
				slog.String("server", endpoint.Name),
				slog.String("error", err.Error()),
			)
			client.Close()
			continue
		}
		slog.InfoContext(ctx, "discovery.mcp.registered",
			slog.String("server", endpoint.Name),
		)
		clients = append(clients, client)
	}
	return clients, nil
}
