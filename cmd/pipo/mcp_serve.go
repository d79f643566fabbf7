// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/MagicOwO/pipo-agent/pkg/config"
	"github.com/MagicOwO/pipo-agent/pkg/mcp"
	"github.com/MagicOwO/pipo-agent/pkg/runtime"
)

// runMCPServe exposes the registered actions as MCP tools over stdio, so
// other MCP clients can call them.
func runMCPServe(ctx context.Context, flags globalFlags, args []string) {
	cmd := flag.NewFlagSet("mcp", flag.ExitOnError)
	name := cmd.String("name", "pipo-agent", "Server name advertised to MCP clients")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		NewConfigError(err, flags.ConfigPath).PrintError(flags.JSON)
		os.Exit(1)
	}
	// Stdio carries the protocol; keep stdout clean.
	cfg.Telemetry.Exporter = "none"

	rt, err := runtime.Build(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	defer func() {
		if err := rt.Close(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	server := mcp.NewServer(*name, runtime.Version)
	server.RegisterRegistry(rt.Registry)

	if err := server.ServeStdio(); err != nil {
		fatal(err)
	}
}
