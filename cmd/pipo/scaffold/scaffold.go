// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package scaffold generates starter project files for the pipo agent.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// Options configures project generation.
type Options struct {
	ProjectName      string
	LLMProvider      string // ollama, openai
	EnableMCP        bool
	EnablePolicy     bool
	EnableGuardrails bool
}

// Generate creates a starter project at the given directory.
func Generate(dir string, opts Options) error {
	for _, d := range []string{"config", "plans"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	files := map[string]string{
		"config/config.yaml": configYAMLTemplate,
		"plans/example.yaml": examplePlanTemplate,
		"README.md":          readmeTemplate,
		".gitignore":         gitignoreTemplate,
	}

	for name, tmpl := range files {
		if err := renderFile(filepath.Join(dir, name), name, tmpl, opts); err != nil {
			return err
		}
	}
	return nil
}

func renderFile(path, name, tmpl string, opts Options) error {
	t, err := template.New(name).Parse(tmpl)
	if err != nil {
		return fmt.Errorf("parsing template %s: %w", name, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := t.Execute(f, opts); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	return nil
}
