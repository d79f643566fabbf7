// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls a configuration file and reloads it when its content
// changes. Polling keeps the watcher working on filesystems where rename
// tricks (editors, configmap mounts) defeat inotify-style watching.
type Watcher struct {
	mu          sync.RWMutex
	path        string
	interval    time.Duration
	fingerprint [sha256.Size]byte
	config      *Config
	listeners   []func(*Config)
	stopCh      chan struct{}
	doneCh      chan struct{}
	logger      *slog.Logger
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithWatchInterval sets the polling interval for file changes.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatchLogger sets the logger for the watcher.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher creates a watcher for path and loads the initial config.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:      path,
		interval:  1 * time.Second,
		listeners: make([]func(*Config), 0),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(w)
	}

	if data, err := os.ReadFile(path); err == nil {
		w.fingerprint = sha256.Sum256(data)
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	w.config = cfg

	return w, nil
}

// OnChange registers a callback invoked after every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Config returns the current configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Start begins watching for configuration changes.
func (w *Watcher) Start(ctx context.Context) {
	go w.watch(ctx)
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.contentChanged() {
				w.reload()
			}
		}
	}
}

// contentChanged hashes the file so a touch or an atomic rewrite with the
// same bytes does not trigger a reload.
func (w *Watcher) contentChanged() bool {
	data, err := os.ReadFile(w.path)
	if err != nil {
		// Missing file during an editor save cycle; keep the last config.
		return false
	}
	sum := sha256.Sum256(data)

	w.mu.Lock()
	defer w.mu.Unlock()
	if sum == w.fingerprint {
		return false
	}
	w.fingerprint = sum
	return true
}

func (w *Watcher) reload() {
	w.logger.Info("config file changed, reloading", "path", w.path)

	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("failed to reload config", "error", err)
		return
	}

	w.mu.Lock()
	w.config = cfg
	listeners := make([]func(*Config), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()

	w.logger.Info("config reloaded")

	for _, fn := range listeners {
		fn(cfg)
	}
}

// WatchConfig creates a watcher for configPath, starts it, and returns the
// watcher together with the initial config.
func WatchConfig(ctx context.Context, configPath string, opts ...WatcherOption) (*Watcher, *Config, error) {
	watcher, err := NewWatcher(configPath, opts...)
	if err != nil {
		return nil, nil, err
	}
	watcher.Start(ctx)
	return watcher, watcher.Config(), nil
}

// ReloadableConfig is a thread-safe holder for a Config that a watcher
// callback can swap atomically while readers keep using section accessors.
type ReloadableConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewReloadableConfig creates a new reloadable config wrapper.
func NewReloadableConfig(cfg *Config) *ReloadableConfig {
	return &ReloadableConfig{config: cfg}
}

// Get returns the current configuration.
func (r *ReloadableConfig) Get() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// Update atomically replaces the configuration.
func (r *ReloadableConfig) Update(cfg *Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = cfg
}

// LLM returns the LLM configuration.
func (r *ReloadableConfig) LLM() LLMConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.LLM
}

// Executor returns the executor configuration.
func (r *ReloadableConfig) Executor() ExecutorConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Executor
}

// Guardrails returns the guardrails configuration.
func (r *ReloadableConfig) Guardrails() GuardrailsConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Guardrails
}

// Policy returns the policy configuration.
func (r *ReloadableConfig) Policy() PolicyConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Policy
}
