// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package scaffold

const configYAMLTemplate = `# {{.ProjectName}} configuration

log:
  level: "info"
  format: "text"

llm:
  provider: "{{.LLMProvider}}"
{{- if eq .LLMProvider "openai"}}
  model: "gpt-4o-mini"
  api_key: ""  # or set PIPO_LLM_API_KEY
{{- else}}
  model: "qwen2.5:7b-instruct"
  base_url: "http://localhost:11434"
{{- end}}

search:
  enabled: false
  base_url: "http://localhost:8888"

judge:
  enabled: false

summary:
  enabled: true

audit:
  enabled: false
  store: "memory"
  dsn: "pipo_audit.db"

telemetry:
  exporter: "stdout"
{{- if .EnablePolicy}}

policy:
  deny:
    - "delete_*"
  rules:
    - id: "read-only-web"
      effect: "allow"
      pattern: "web_*"
      reason: "web lookups are safe"
{{- end}}
{{- if .EnableGuardrails}}

guardrails:
  injection_screen: true
  pii_scrub: "mask"
  denied_topics:
    - "malware"
{{- end}}
{{- if .EnableMCP}}

mcp:
  - name: "filesystem"
    transport: "stdio"
    command: "npx"
    args: ["-y", "@modelcontextprotocol/server-filesystem", "."]
{{- end}}
`

const examplePlanTemplate = `# Example plan: search the web and summarize what was found.
goal: "Summarize recent articles about Go generics"
steps:
  - action: web_search
    description: "Find recent articles"
    args:
      query: "Go generics best practices"
    output_key: results

  - action: ask_llm
    description: "Summarize the findings"
    args:
      prompt: "Summarize the key points from these search results."
    input_mapping:
      context: results
`

const readmeTemplate = `# {{.ProjectName}}

A pipo agent project. The agent turns natural language requests into
validated action plans and executes them.

## Getting started

` + "```sh" + `
pipo validate --config config/config.yaml
pipo run --config config/config.yaml --prompt "hello"
` + "```" + `

## Plans

Inspect or dry-check a plan file without running it:

` + "```sh" + `
pipo plan validate --path plans/example.yaml
pipo plan graph --path plans/example.yaml --output mermaid
` + "```" + `
`

const gitignoreTemplate = `*.db
*.log
.env
`
