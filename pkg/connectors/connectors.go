// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package connectors turns external API surfaces into registry actions. A
// connector introspects a schema (OpenAPI spec, GraphQL endpoint, gRPC
// reflection, SQL database) and generates one action per operation, so plans
// can call the external system like any built-in action.
package connectors

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	"github.com/MagicOwO/pipo-agent/pkg/errors"
)

// Connector generates action specs from an external schema and executes
// them by name.
type Connector interface {
	Specs() []action.Spec
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

type connectorAction struct {
	spec action.Spec
	conn Connector
}

func (a *connectorAction) Spec() action.Spec {
	return a.spec
}

func (a *connectorAction) Execute(ctx context.Context, params action.Params) (any, error) {
	args := make(map[string]any, len(params))
	for k, v := range params {
		args[k] = v
	}
	out, err := a.conn.Execute(ctx, a.spec.Name, args)
	if err != nil {
		return nil, errors.AsPipoError(err)
	}
	return out, nil
}

// Actions wraps every spec the connector generates as a registry action.
func Actions(c Connector) []action.Action {
	specs := c.Specs()
	actions := make([]action.Action, 0, len(specs))
	for _, spec := range specs {
		if strings.TrimSpace(spec.Name) == "" {
			continue
		}
		actions = append(actions, &connectorAction{spec: spec, conn: c})
	}
	return actions
}

// RegisterActions registers all of the connector's actions. Name collisions
// fail registration.
func RegisterActions(reg *action.Registry, c Connector) error {
	for _, a := range Actions(c) {
		if err := reg.Register(a); err != nil {
			return err
		}
	}
	return nil
}

// paramTypeFromSchema maps a JSON Schema type name to a parameter type.
func paramTypeFromSchema(t string) action.ParamType {
	switch t {
	case "integer":
		return action.ParamInt
	case "number":
		return action.ParamFloat
	case "boolean":
		return action.ParamBool
	case "array":
		return action.ParamList
	case "object":
		return action.ParamObject
	default:
		return action.ParamString
	}
}

func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] != '_' {
				result.WriteRune('_')
			}
			result.WriteRune(r + 32)
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case float64:
		return uint64(n), true
	case json.Number:
		i, err := n.Int64()
		return uint64(i), err == nil
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
