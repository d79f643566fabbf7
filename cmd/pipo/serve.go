// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MagicOwO/pipo-agent/pkg/config"
	"github.com/MagicOwO/pipo-agent/pkg/runtime"
)

const defaultServeAddr = ":8080"

type apiServer struct {
	rt *runtime.Runtime
}

type requestPayload struct {
	Text string `json:"text"`
}

// runServe exposes the agent over an HTTP JSON API:
//
//	POST /v1/requests  {"text": "..."}  -> executor.Result
//	GET  /v1/actions                    -> registered action specs
//	GET  /healthz                       -> 200 ok
func runServe(ctx context.Context, flags globalFlags, args []string) {
	cmd := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := cmd.String("addr", defaultServeAddr, "Listen address")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		NewConfigError(err, flags.ConfigPath).PrintError(flags.JSON)
		os.Exit(1)
	}

	rt, err := runtime.Build(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	defer func() {
		if err := rt.Close(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	server := &apiServer{rt: rt}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/requests", server.handleRequests)
	mux.HandleFunc("/v1/actions", server.handleActions)
	mux.HandleFunc("/healthz", server.handleHealth)

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	displayAddr := *addr
	if strings.HasPrefix(displayAddr, ":") {
		displayAddr = "localhost" + displayAddr
	}
	fmt.Printf("PIPO agent listening on http://%s\n", displayAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fatal(err)
	}
}

func (s *apiServer) handleRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "use POST")
		return
	}

	var payload requestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		writeJSONError(w, http.StatusBadRequest, "text is required")
		return
	}

	result := s.rt.ProcessRequest(r.Context(), payload.Text)
	status := http.StatusOK
	if !result.Success() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (s *apiServer) handleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "use GET")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": s.rt.Registry.List()})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": runtime.Version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "write response: %v\n", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
