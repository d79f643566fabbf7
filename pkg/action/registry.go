// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package action

import (
	"sort"
	"strings"
	"sync"

	"github.com/MagicOwO/pipo-agent/pkg/errors"
)

// Registry maps action names to implementations. It is populated once at
// process start and treated as read-only thereafter; the lock only guards
// against racy registration during startup.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register adds an action under its spec name. Registering a duplicate name
// is an error at registration time, not at lookup time.
func (r *Registry) Register(a Action) error {
	if a == nil {
		return errors.New(errors.CodeRegistration, "action is nil", nil)
	}
	name := strings.TrimSpace(a.Spec().Name)
	if name == "" {
		return errors.New(errors.CodeRegistration, "action name is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actions[name]; exists {
		return errors.New(errors.CodeRegistration, "action already registered", nil).
			WithContext("action", name)
	}
	r.actions[name] = a
	return nil
}

// MustRegister registers an action and panics on error. Intended for
// startup wiring where a duplicate name is a programming defect.
func (r *Registry) MustRegister(a Action) {
	if err := r.Register(a); err != nil {
		panic(err)
	}
}

// Lookup returns the action registered under name.
func (r *Registry) Lookup(name string) (Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	if !ok {
		return nil, errors.New(errors.CodeUnknownAction, "action not registered", nil).
			WithContext("action", name)
	}
	return a, nil
}

// List returns the specs of all registered actions, sorted by name.
func (r *Registry) List() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]Spec, 0, len(r.actions))
	for _, a := range r.actions {
		specs = append(specs, a.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Describe renders the full action catalog for the plan proposer.
func (r *Registry) Describe() string {
	specs := r.List()
	parts := make([]string, 0, len(specs))
	for _, s := range specs {
		parts = append(parts, s.Describe())
	}
	return strings.Join(parts, "\n\n")
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}
