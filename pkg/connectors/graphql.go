// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	"github.com/MagicOwO/pipo-agent/pkg/errors"
)

// GraphQLConnector generates actions from a GraphQL schema discovered via
// introspection. Each top-level query and mutation field becomes one action.
type GraphQLConnector struct {
	endpoint     string
	client       *http.Client
	schema       *GraphQLSchema
	headers      map[string]string
	actionPrefix string
}

// GraphQLSchema is the introspected schema.
type GraphQLSchema struct {
	QueryType    *GraphQLType  `json:"queryType"`
	MutationType *GraphQLType  `json:"mutationType"`
	Types        []GraphQLType `json:"types"`
}

// GraphQLType is a named type in the schema.
type GraphQLType struct {
	Kind        string         `json:"kind"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Fields      []GraphQLField `json:"fields"`
}

// GraphQLField is a field on a type.
type GraphQLField struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Args        []GraphQLArg   `json:"args"`
	Type        GraphQLTypeRef `json:"type"`
}

// GraphQLArg is an argument to a field.
type GraphQLArg struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Type         GraphQLTypeRef `json:"type"`
	DefaultValue any            `json:"defaultValue"`
}

// GraphQLTypeRef references a type, possibly wrapped in NON_NULL or LIST.
type GraphQLTypeRef struct {
	Kind   string          `json:"kind"`
	Name   string          `json:"name"`
	OfType *GraphQLTypeRef `json:"ofType"`
}

// GraphQLOption configures the connector.
type GraphQLOption func(*GraphQLConnector)

// WithGraphQLHeader adds a custom header to every request.
func WithGraphQLHeader(key, value string) GraphQLOption {
	return func(c *GraphQLConnector) {
		c.headers[key] = value
	}
}

// WithGraphQLBearerToken adds Bearer token authentication.
func WithGraphQLBearerToken(token string) GraphQLOption {
	return func(c *GraphQLConnector) {
		c.headers["Authorization"] = "Bearer " + token
	}
}

// WithGraphQLHTTPClient sets a custom HTTP client.
func WithGraphQLHTTPClient(client *http.Client) GraphQLOption {
	return func(c *GraphQLConnector) {
		c.client = client
	}
}

// WithGraphQLActionPrefix prefixes generated action names.
func WithGraphQLActionPrefix(prefix string) GraphQLOption {
	return func(c *GraphQLConnector) {
		c.actionPrefix = prefix
	}
}

// NewGraphQLConnector introspects the endpoint and builds a connector.
func NewGraphQLConnector(ctx context.Context, endpoint string, opts ...GraphQLOption) (*GraphQLConnector, error) {
	c := &GraphQLConnector{
		endpoint: endpoint,
		client:   http.DefaultClient,
		headers:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.introspect(ctx); err != nil {
		return nil, errors.New(errors.CodeExecution, "graphql introspection failed", err)
	}
	return c, nil
}

// NewGraphQLConnectorFromSchema builds a connector from a known schema,
// skipping introspection.
func NewGraphQLConnectorFromSchema(endpoint string, schema *GraphQLSchema, opts ...GraphQLOption) *GraphQLConnector {
	c := &GraphQLConnector{
		endpoint: endpoint,
		client:   http.DefaultClient,
		headers:  make(map[string]string),
		schema:   schema,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const introspectionQuery = `
query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    types {
      kind
      name
      description
      fields(includeDeprecated: false) {
        name
        description
        args {
          name
          description
          type {
            kind
            name
            ofType { kind name ofType { kind name ofType { kind name } } }
          }
          defaultValue
        }
        type {
          kind
          name
          ofType { kind name ofType { kind name ofType { kind name } } }
        }
      }
    }
  }
}
`

func (c *GraphQLConnector) introspect(ctx context.Context) error {
	body, err := json.Marshal(map[string]any{"query": introspectionQuery})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("introspection returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data struct {
			Schema GraphQLSchema `json:"__schema"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("introspection error: %s", result.Errors[0].Message)
	}

	c.schema = &result.Data.Schema
	return nil
}

// Specs generates one action spec per query and mutation field.
func (c *GraphQLConnector) Specs() []action.Spec {
	if c.schema == nil {
		return nil
	}

	var specs []action.Spec
	for _, field := range c.rootFields(c.schema.QueryType) {
		if spec, ok := c.fieldToSpec(field, "query"); ok {
			specs = append(specs, spec)
		}
	}
	for _, field := range c.rootFields(c.schema.MutationType) {
		if spec, ok := c.fieldToSpec(field, "mutation"); ok {
			specs = append(specs, spec)
		}
	}

	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

func (c *GraphQLConnector) rootFields(root *GraphQLType) []GraphQLField {
	if root == nil {
		return nil
	}
	for i := range c.schema.Types {
		if c.schema.Types[i].Name == root.Name {
			return c.schema.Types[i].Fields
		}
	}
	return nil
}

func (c *GraphQLConnector) fieldToSpec(field GraphQLField, opType string) (action.Spec, bool) {
	if strings.HasPrefix(field.Name, "__") {
		return action.Spec{}, false
	}

	name := field.Name
	if c.actionPrefix != "" {
		name = c.actionPrefix + "_" + name
	}

	description := field.Description
	if description == "" {
		description = fmt.Sprintf("GraphQL %s: %s", opType, field.Name)
	}

	var params []action.ParamSpec
	for _, arg := range field.Args {
		params = append(params, action.ParamSpec{
			Name:        arg.Name,
			Type:        typeRefToParamType(arg.Type),
			Description: arg.Description,
			Required:    arg.Type.Kind == "NON_NULL" && arg.DefaultValue == nil,
			Default:     arg.DefaultValue,
		})
	}

	return action.Spec{
		Name:        name,
		Description: description,
		Params:      params,
	}, true
}

func typeRefToParamType(ref GraphQLTypeRef) action.ParamType {
	switch ref.Kind {
	case "NON_NULL":
		if ref.OfType != nil {
			return typeRefToParamType(*ref.OfType)
		}
		return action.ParamString
	case "LIST":
		return action.ParamList
	case "SCALAR":
		switch ref.Name {
		case "Int":
			return action.ParamInt
		case "Float":
			return action.ParamFloat
		case "Boolean":
			return action.ParamBool
		default:
			return action.ParamString
		}
	case "INPUT_OBJECT":
		return action.ParamObject
	default:
		return action.ParamString
	}
}

// Execute runs the query or mutation behind the named action.
func (c *GraphQLConnector) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	fieldName := name
	if c.actionPrefix != "" && strings.HasPrefix(name, c.actionPrefix+"_") {
		fieldName = strings.TrimPrefix(name, c.actionPrefix+"_")
	}

	opType := c.operationType(fieldName)
	if opType == "" {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("unknown operation %q", name), nil)
	}

	return c.executeQuery(ctx, c.buildQuery(fieldName, args, opType))
}

func (c *GraphQLConnector) operationType(fieldName string) string {
	for _, field := range c.rootFields(c.schema.QueryType) {
		if field.Name == fieldName {
			return "query"
		}
	}
	for _, field := range c.rootFields(c.schema.MutationType) {
		if field.Name == fieldName {
			return "mutation"
		}
	}
	return ""
}

// buildQuery inlines arguments into the query text. Selection is limited to
// __typename since the result shape is unknown at generation time.
func (c *GraphQLConnector) buildQuery(fieldName string, args map[string]any, opType string) string {
	var argStr string
	if len(args) > 0 {
		names := make([]string, 0, len(args))
		for k := range args {
			names = append(names, k)
		}
		sort.Strings(names)

		parts := make([]string, 0, len(names))
		for _, k := range names {
			parts = append(parts, fmt.Sprintf("%s: %s", k, formatGraphQLValue(args[k])))
		}
		argStr = "(" + strings.Join(parts, ", ") + ")"
	}
	return fmt.Sprintf(`%s { %s%s { __typename } }`, opType, fieldName, argStr)
}

func formatGraphQLValue(v any) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf(`"%s"`, strings.ReplaceAll(val, `"`, `\"`))
	case bool:
		return fmt.Sprintf("%t", val)
	case int, int32, int64, float32, float64:
		return fmt.Sprintf("%v", val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, formatGraphQLValue(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		names := make([]string, 0, len(val))
		for k := range val {
			names = append(names, k)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, k := range names {
			parts = append(parts, fmt.Sprintf("%s: %s", k, formatGraphQLValue(val[k])))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func (c *GraphQLConnector) executeQuery(ctx context.Context, query string) (any, error) {
	body, err := json.Marshal(map[string]any{"query": query})
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "cannot marshal query", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.CodeExecution, "cannot build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.New(errors.CodeExecution, "request failed", err).WithRecoverable(true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(errors.CodeExecution, "cannot read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		perr := errors.New(errors.CodeExecution,
			fmt.Sprintf("graphql request failed (status %d): %s", resp.StatusCode, string(respBody)), nil)
		if resp.StatusCode >= 500 {
			perr = perr.WithRecoverable(true)
		}
		return nil, perr
	}

	var result struct {
		Data   any `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, errors.New(errors.CodeExecution, "cannot parse response", err)
	}
	if len(result.Errors) > 0 {
		return nil, errors.New(errors.CodeExecution, fmt.Sprintf("graphql error: %s", result.Errors[0].Message), nil)
	}
	return result.Data, nil
}

// Schema returns the introspected schema.
func (c *GraphQLConnector) Schema() *GraphQLSchema {
	return c.schema
}

// Endpoint returns the GraphQL endpoint URL.
func (c *GraphQLConnector) Endpoint() string {
	return c.endpoint
}
