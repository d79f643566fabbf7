// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	"github.com/MagicOwO/pipo-agent/pkg/errors"
)

// OpenAPISpec is a parsed OpenAPI 3.x document, reduced to the parts needed
// for action generation.
type OpenAPISpec struct {
	OpenAPI string              `json:"openapi" yaml:"openapi"`
	Info    OpenAPIInfo         `json:"info" yaml:"info"`
	Servers []OpenAPIServer     `json:"servers" yaml:"servers"`
	Paths   map[string]PathItem `json:"paths" yaml:"paths"`
}

// OpenAPIInfo contains API metadata.
type OpenAPIInfo struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Version     string `json:"version" yaml:"version"`
}

// OpenAPIServer is a server entry.
type OpenAPIServer struct {
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description" yaml:"description"`
}

// PathItem holds the operations on one path.
type PathItem struct {
	Get    *Operation `json:"get" yaml:"get"`
	Post   *Operation `json:"post" yaml:"post"`
	Put    *Operation `json:"put" yaml:"put"`
	Delete *Operation `json:"delete" yaml:"delete"`
	Patch  *Operation `json:"patch" yaml:"patch"`
}

// Operation is one API operation.
type Operation struct {
	OperationID string       `json:"operationId" yaml:"operationId"`
	Summary     string       `json:"summary" yaml:"summary"`
	Description string       `json:"description" yaml:"description"`
	Parameters  []Parameter  `json:"parameters" yaml:"parameters"`
	RequestBody *RequestBody `json:"requestBody" yaml:"requestBody"`
}

// Parameter is an operation parameter.
type Parameter struct {
	Name        string  `json:"name" yaml:"name"`
	In          string  `json:"in" yaml:"in"` // query, path, header, cookie
	Description string  `json:"description" yaml:"description"`
	Required    bool    `json:"required" yaml:"required"`
	Schema      *Schema `json:"schema" yaml:"schema"`
}

// RequestBody describes a request body.
type RequestBody struct {
	Description string               `json:"description" yaml:"description"`
	Required    bool                 `json:"required" yaml:"required"`
	Content     map[string]MediaType `json:"content" yaml:"content"`
}

// MediaType holds content type details.
type MediaType struct {
	Schema *Schema `json:"schema" yaml:"schema"`
}

// Schema is a JSON Schema fragment.
type Schema struct {
	Type        string             `json:"type" yaml:"type"`
	Description string             `json:"description" yaml:"description"`
	Properties  map[string]*Schema `json:"properties" yaml:"properties"`
	Items       *Schema            `json:"items" yaml:"items"`
	Required    []string           `json:"required" yaml:"required"`
	Default     any                `json:"default" yaml:"default"`
	Format      string             `json:"format" yaml:"format"`
}

// OpenAPIConnector generates one action per spec operation and executes
// them over HTTP.
type OpenAPIConnector struct {
	spec       *OpenAPISpec
	baseURL    string
	auth       AuthConfig
	httpClient *http.Client
	specs      []action.Spec
	handlers   map[string]operationHandler
}

// AuthConfig defines how requests authenticate.
type AuthConfig struct {
	Type   AuthType
	APIKey string
	Header string
	Token  string
	User   string
	Pass   string
}

// AuthType enumerates authentication schemes.
type AuthType int

const (
	AuthNone AuthType = iota
	AuthAPIKey
	AuthBearer
	AuthBasic
)

type operationHandler func(ctx context.Context, args map[string]any) (string, error)

// Option configures the OpenAPIConnector.
type Option func(*OpenAPIConnector)

// WithBaseURL overrides the base URL from the spec.
func WithBaseURL(url string) Option {
	return func(c *OpenAPIConnector) {
		c.baseURL = url
	}
}

// WithAPIKey sets API key authentication on the given header.
func WithAPIKey(key, header string) Option {
	return func(c *OpenAPIConnector) {
		c.auth = AuthConfig{Type: AuthAPIKey, APIKey: key, Header: header}
	}
}

// WithBearerToken sets Bearer token authentication.
func WithBearerToken(token string) Option {
	return func(c *OpenAPIConnector) {
		c.auth = AuthConfig{Type: AuthBearer, Token: token}
	}
}

// WithBasicAuth sets Basic authentication.
func WithBasicAuth(user, pass string) Option {
	return func(c *OpenAPIConnector) {
		c.auth = AuthConfig{Type: AuthBasic, User: user, Pass: pass}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *OpenAPIConnector) {
		c.httpClient = client
	}
}

// NewFromFile builds a connector from a spec file.
func NewFromFile(path string, opts ...Option) (*OpenAPIConnector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "cannot read spec file", err)
	}
	return NewFromBytes(data, opts...)
}

// NewFromURL builds a connector by fetching a spec document.
func NewFromURL(specURL string, opts ...Option) (*OpenAPIConnector, error) {
	resp, err := http.Get(specURL)
	if err != nil {
		return nil, errors.New(errors.CodeExecution, "cannot fetch spec", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(errors.CodeExecution, "cannot read spec response", err)
	}
	return NewFromBytes(data, opts...)
}

// NewFromBytes builds a connector from raw spec bytes, accepting JSON or
// YAML.
func NewFromBytes(data []byte, opts ...Option) (*OpenAPIConnector, error) {
	var spec OpenAPISpec
	if err := json.Unmarshal(data, &spec); err != nil {
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return nil, errors.New(errors.CodeInvalidInput, "spec is neither valid JSON nor YAML", err)
		}
	}

	c := &OpenAPIConnector{
		spec:       &spec,
		httpClient: http.DefaultClient,
		handlers:   make(map[string]operationHandler),
	}
	if len(spec.Servers) > 0 {
		c.baseURL = spec.Servers[0].URL
	}
	for _, opt := range opts {
		opt(c)
	}

	c.generateActions()
	return c, nil
}

// Specs returns the generated action specs.
func (c *OpenAPIConnector) Specs() []action.Spec {
	return c.specs
}

// Execute runs the operation registered under name.
func (c *OpenAPIConnector) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	handler, ok := c.handlers[name]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("unknown operation %q", name), nil)
	}
	out, err := handler(ctx, args)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OpenAPIConnector) generateActions() {
	// Deterministic action order regardless of map iteration.
	paths := make([]string, 0, len(c.spec.Paths))
	for path := range c.spec.Paths {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		item := c.spec.Paths[path]
		c.addOperation(path, http.MethodGet, item.Get)
		c.addOperation(path, http.MethodPost, item.Post)
		c.addOperation(path, http.MethodPut, item.Put)
		c.addOperation(path, http.MethodDelete, item.Delete)
		c.addOperation(path, http.MethodPatch, item.Patch)
	}
}

func (c *OpenAPIConnector) addOperation(path, method string, op *Operation) {
	if op == nil {
		return
	}

	name := op.OperationID
	if name == "" {
		name = strings.Trim(fmt.Sprintf("%s_%s", strings.ToLower(method), strings.ReplaceAll(path, "/", "_")), "_")
	}

	desc := op.Summary
	if desc == "" {
		desc = op.Description
	}
	if desc == "" {
		desc = fmt.Sprintf("%s %s", method, path)
	}

	var params []action.ParamSpec
	for _, param := range op.Parameters {
		p := action.ParamSpec{
			Name:        param.Name,
			Type:        action.ParamString,
			Description: param.Description,
			Required:    param.Required,
		}
		if param.Schema != nil {
			if param.Schema.Type != "" {
				p.Type = paramTypeFromSchema(param.Schema.Type)
			}
			p.Default = param.Schema.Default
		}
		params = append(params, p)
	}

	if op.RequestBody != nil {
		if content, ok := op.RequestBody.Content["application/json"]; ok && content.Schema != nil {
			if content.Schema.Properties != nil {
				required := make(map[string]bool, len(content.Schema.Required))
				for _, r := range content.Schema.Required {
					required[r] = true
				}
				names := make([]string, 0, len(content.Schema.Properties))
				for propName := range content.Schema.Properties {
					names = append(names, propName)
				}
				sort.Strings(names)
				for _, propName := range names {
					prop := content.Schema.Properties[propName]
					params = append(params, action.ParamSpec{
						Name:        propName,
						Type:        paramTypeFromSchema(prop.Type),
						Description: prop.Description,
						Required:    required[propName],
						Default:     prop.Default,
					})
				}
			} else {
				params = append(params, action.ParamSpec{
					Name:        "body",
					Type:        paramTypeFromSchema(content.Schema.Type),
					Description: op.RequestBody.Description,
					Required:    op.RequestBody.Required,
				})
			}
		}
	}

	c.specs = append(c.specs, action.Spec{
		Name:        name,
		Description: desc,
		Params:      params,
	})
	c.handlers[name] = c.operationHandlerFor(path, method, op)
}

func (c *OpenAPIConnector) operationHandlerFor(path, method string, op *Operation) operationHandler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		finalPath := path
		queryParams := url.Values{}
		headers := http.Header{}
		var bodyData []byte

		for _, param := range op.Parameters {
			value, ok := args[param.Name]
			if !ok {
				continue
			}
			strValue := fmt.Sprintf("%v", value)

			switch param.In {
			case "path":
				finalPath = strings.ReplaceAll(finalPath, "{"+param.Name+"}", strValue)
			case "query":
				queryParams.Set(param.Name, strValue)
			case "header":
				headers.Set(param.Name, strValue)
			}
		}

		if op.RequestBody != nil {
			if body, ok := args["body"]; ok {
				bodyData, _ = json.Marshal(body)
			} else {
				// Everything that is not a declared parameter goes into the
				// JSON body.
				bodyArgs := make(map[string]any)
				for key, value := range args {
					isParam := false
					for _, param := range op.Parameters {
						if param.Name == key {
							isParam = true
							break
						}
					}
					if !isParam {
						bodyArgs[key] = value
					}
				}
				if len(bodyArgs) > 0 {
					bodyData, _ = json.Marshal(bodyArgs)
				}
			}
		}

		finalURL := c.baseURL + finalPath
		if len(queryParams) > 0 {
			finalURL += "?" + queryParams.Encode()
		}

		var bodyReader io.Reader
		if bodyData != nil {
			bodyReader = strings.NewReader(string(bodyData))
		}
		req, err := http.NewRequestWithContext(ctx, method, finalURL, bodyReader)
		if err != nil {
			return "", errors.New(errors.CodeExecution, "cannot build request", err)
		}

		for key, values := range headers {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}
		if bodyData != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.applyAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", errors.New(errors.CodeExecution, "request failed", err).WithRecoverable(true)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", errors.New(errors.CodeExecution, "cannot read response", err)
		}
		if resp.StatusCode >= 400 {
			perr := errors.New(errors.CodeExecution,
				fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(respBody)), nil)
			if resp.StatusCode == http.StatusTooManyRequests {
				perr = errors.New(errors.CodeRateLimit, "API rate limited", nil).WithRecoverable(true)
			} else if resp.StatusCode >= 500 {
				perr = perr.WithRecoverable(true)
			}
			return "", perr
		}
		return string(respBody), nil
	}
}

func (c *OpenAPIConnector) applyAuth(req *http.Request) {
	switch c.auth.Type {
	case AuthAPIKey:
		header := c.auth.Header
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, c.auth.APIKey)
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+c.auth.Token)
	case AuthBasic:
		req.SetBasicAuth(c.auth.User, c.auth.Pass)
	}
}
