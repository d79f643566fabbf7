// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"strings"

	"github.com/MagicOwO/pipo-agent/pkg/config"
)

// ConfigProvider lists MCP servers from configuration.
type ConfigProvider struct {
	Entries []ServerEndpoint
}

// NewConfigProvider builds a provider from the mcp config section.
func NewConfigProvider(cfg *config.Config) *ConfigProvider {
	provider := &ConfigProvider{}
	if cfg == nil {
		return provider
	}
	for _, server := range cfg.MCP {
		provider.Entries = append(provider.Entries, ServerEndpoint{
			Name:      strings.TrimSpace(server.Name),
			Transport: strings.TrimSpace(server.Transport),
			Command:   strings.TrimSpace(server.Command),
			Args:      append([]string(nil), server.Args...),
			URL:       strings.TrimSpace(server.URL),
		})
	}
	return provider
}

// List returns configured endpoints.
func (p *ConfigProvider) List(_ context.Context) ([]ServerEndpoint, error) {
	if p == nil {
		return nil, nil
	}
	return append([]ServerEndpoint(nil), p.Entries...), nil
}
