// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"testing"

	"github.com/MagicOwO/pipo-agent/pkg/config"
)

type staticProvider struct {
	entries []ServerEndpoint
	fail    error
}

func (p staticProvider) List(_ context.Context) ([]ServerEndpoint, error) {
	if p.fail != nil {
		return nil, p.fail
	}
	return p.entries, nil
}

func TestResolverResolveOrderAndDedupe(t *testing.T) {
	providers := []Provider{
		staticProvider{entries: []ServerEndpoint{{Name: "alpha", URL: "http://a"}}},
		staticProvider{entries: []ServerEndpoint{
			{Name: "alpha", URL: "http://other"},
			{Name: "beta", URL: "http://b"},
		}},
	}
	resolver, err := NewResolver(providers...)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	entries, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// First provider wins on name collision.
	if entries[0].URL != "http://a" || entries[1].URL != "http://b" {
		t.Fatalf("unexpected order: %+v", entries)
	}
}

func TestResolverRequiresProviders(t *testing.T) {
	if _, err := NewResolver(nil, nil); err == nil {
		t.Fatal("expected error with no providers")
	}
}

func TestConfigProvider(t *testing.T) {
	cfg := &config.Config{
		MCP: []config.MCPServerConfig{
			{Name: "files", Transport: "stdio", Command: "mcp-files", Args: []string{"--root", "/tmp"}},
			{Name: "remote", Transport: "http", URL: "http://localhost:9000/mcp"},
		},
	}
	provider := NewConfigProvider(cfg)

	entries, err := provider.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(entries))
	}
	if entries[0].Command != "mcp-files" || len(entries[0].Args) != 2 {
		t.Fatalf("unexpected stdio endpoint: %+v", entries[0])
	}
	if entries[1].URL != "http://localhost:9000/mcp" {
		t.Fatalf("unexpected http endpoint: %+v", entries[1])
	}
}

func TestConnectValidation(t *testing.T) {
	if _, err := Connect(ServerEndpoint{Name: "x", Transport: "stdio"}); err == nil {
		t.Error("expected error for stdio endpoint without command")
	}
	if _, err := Connect(ServerEndpoint{Name: "x", Transport: "http"}); err == nil {
		t.Error("expected error for http endpoint without url")
	}
	if _, err := Connect(ServerEndpoint{Name: "x", Transport: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown transport")
	}
}

func TestSortByName(t *testing.T) {
	endpoints := []ServerEndpoint{
		{Name: "zeta"},
		{Name: "alpha", URL: "http://b"},
		{Name: "alpha", URL: "http://a"},
	}
	SortByName(endpoints)
	if endpoints[0].URL != "http://a" || endpoints[1].URL != "http://b" || endpoints[2].Name != "zeta" {
		t.Fatalf("unexpected order: %+v", endpoints)
	}
}
