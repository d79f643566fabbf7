// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MagicOwO/pipo-agent/pkg/action"
)

const testOpenAPISpec = `
openapi: "3.0.0"
info:
  title: Test API
  version: "1.0.0"
servers:
  - url: https://api.example.com
paths:
  /users:
    get:
      operationId: listUsers
      summary: List all users
      parameters:
        - name: limit
          in: query
          description: Maximum number of users to return
          required: false
          schema:
            type: integer
            default: 10
    post:
      operationId: createUser
      summary: Create a new user
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              properties:
                name:
                  type: string
                  description: User's name
                email:
                  type: string
                  description: User's email
              required:
                - name
                - email
  /users/{id}:
    get:
      operationId: getUser
      summary: Get a user by ID
      parameters:
        - name: id
          in: path
          description: User ID
          required: true
          schema:
            type: string
    delete:
      operationId: deleteUser
      summary: Delete a user
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: string
`

func TestNewFromBytes(t *testing.T) {
	connector, err := NewFromBytes([]byte(testOpenAPISpec))
	if err != nil {
		t.Fatalf("failed to create connector: %v", err)
	}

	if connector.spec.Info.Title != "Test API" {
		t.Errorf("expected title 'Test API', got %s", connector.spec.Info.Title)
	}

	if specs := connector.Specs(); len(specs) != 4 {
		t.Errorf("expected 4 actions, got %d", len(specs))
	}
}

func TestOpenAPIActionGeneration(t *testing.T) {
	connector, err := NewFromBytes([]byte(testOpenAPISpec))
	if err != nil {
		t.Fatalf("failed to create connector: %v", err)
	}

	names := make(map[string]bool)
	for _, spec := range connector.Specs() {
		names[spec.Name] = true
	}

	for _, name := range []string{"listUsers", "createUser", "getUser", "deleteUser"} {
		if !names[name] {
			t.Errorf("expected action %s not found", name)
		}
	}
}

func TestOpenAPIActionParams(t *testing.T) {
	connector, err := NewFromBytes([]byte(testOpenAPISpec))
	if err != nil {
		t.Fatalf("failed to create connector: %v", err)
	}

	var getUser *action.Spec
	for _, spec := range connector.Specs() {
		if spec.Name == "getUser" {
			s := spec
			getUser = &s
			break
		}
	}
	if getUser == nil {
		t.Fatal("getUser action not found")
	}

	idParam, ok := getUser.Param("id")
	if !ok {
		t.Fatal("expected id param on getUser")
	}
	if !idParam.Required {
		t.Error("expected id to be required")
	}
	if idParam.Type != action.ParamString {
		t.Errorf("expected string id param, got %s", idParam.Type)
	}

	var listUsers *action.Spec
	for _, spec := range connector.Specs() {
		if spec.Name == "listUsers" {
			s := spec
			listUsers = &s
			break
		}
	}
	if listUsers == nil {
		t.Fatal("listUsers action not found")
	}
	limitParam, ok := listUsers.Param("limit")
	if !ok {
		t.Fatal("expected limit param on listUsers")
	}
	if limitParam.Required {
		t.Error("expected limit to be optional")
	}
	if limitParam.Type != action.ParamInt {
		t.Errorf("expected integer limit param, got %s", limitParam.Type)
	}

	var createUser *action.Spec
	for _, spec := range connector.Specs() {
		if spec.Name == "createUser" {
			s := spec
			createUser = &s
			break
		}
	}
	if createUser == nil {
		t.Fatal("createUser action not found")
	}
	nameParam, ok := createUser.Param("name")
	if !ok {
		t.Fatal("expected name param from request body")
	}
	if !nameParam.Required {
		t.Error("expected name to be required")
	}
}

func TestExecuteWithMockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/users" && r.Method == "GET":
			json.NewEncoder(w).Encode([]map[string]string{
				{"id": "1", "name": "Alice"},
				{"id": "2", "name": "Bob"},
			})
		case r.URL.Path == "/users/1" && r.Method == "GET":
			json.NewEncoder(w).Encode(map[string]string{"id": "1", "name": "Alice"})
		case r.URL.Path == "/users" && r.Method == "POST":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": "3", "name": "Charlie"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	connector, err := NewFromBytes([]byte(testOpenAPISpec), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("failed to create connector: %v", err)
	}

	ctx := context.Background()

	result, err := connector.Execute(ctx, "listUsers", map[string]any{"limit": 10})
	if err != nil {
		t.Fatalf("listUsers failed: %v", err)
	}
	if resStr, ok := result.(string); !ok || resStr == "" {
		t.Error("expected non-empty result from listUsers")
	}

	result, err = connector.Execute(ctx, "getUser", map[string]any{"id": "1"})
	if err != nil {
		t.Fatalf("getUser failed: %v", err)
	}
	if resStr, ok := result.(string); !ok || resStr == "" {
		t.Error("expected non-empty result from getUser")
	}

	result, err = connector.Execute(ctx, "createUser", map[string]any{
		"name":  "Charlie",
		"email": "charlie@example.com",
	})
	if err != nil {
		t.Fatalf("createUser failed: %v", err)
	}
	if resStr, ok := result.(string); !ok || resStr == "" {
		t.Error("expected non-empty result from createUser")
	}
}

func TestAuthenticationOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") == "test-key" {
			w.Write([]byte(`{"status": "authenticated"}`))
			return
		}
		if r.Header.Get("Authorization") == "Bearer test-token" {
			w.Write([]byte(`{"status": "authenticated"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	t.Run("APIKey", func(t *testing.T) {
		connector, _ := NewFromBytes([]byte(testOpenAPISpec),
			WithBaseURL(server.URL),
			WithAPIKey("test-key", "X-API-Key"),
		)

		result, err := connector.Execute(context.Background(), "listUsers", nil)
		if err != nil {
			t.Fatalf("request with API key failed: %v", err)
		}
		if resStr, ok := result.(string); !ok || resStr == "" {
			t.Error("expected non-empty result")
		}
	})

	t.Run("Bearer", func(t *testing.T) {
		connector, _ := NewFromBytes([]byte(testOpenAPISpec),
			WithBaseURL(server.URL),
			WithBearerToken("test-token"),
		)

		result, err := connector.Execute(context.Background(), "listUsers", nil)
		if err != nil {
			t.Fatalf("request with Bearer token failed: %v", err)
		}
		if resStr, ok := result.(string); !ok || resStr == "" {
			t.Error("expected non-empty result")
		}
	})
}

func TestOpenAPIRegisterActions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "1", "name": "Alice"})
	}))
	defer server.Close()

	connector, err := NewFromBytes([]byte(testOpenAPISpec), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("failed to create connector: %v", err)
	}

	reg := action.NewRegistry()
	if err := RegisterActions(reg, connector); err != nil {
		t.Fatalf("RegisterActions failed: %v", err)
	}
	if reg.Len() != 4 {
		t.Fatalf("expected 4 registered actions, got %d", reg.Len())
	}

	act, err := reg.Lookup("getUser")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	out, err := act.Execute(context.Background(), action.Params{"id": "1"})
	if err != nil {
		t.Fatalf("action execute failed: %v", err)
	}
	if s, ok := out.(string); !ok || s == "" {
		t.Error("expected non-empty string result")
	}
}

func TestJSONSpec(t *testing.T) {
	jsonSpec := `{
		"openapi": "3.0.0",
		"info": {"title": "JSON API", "version": "1.0.0"},
		"paths": {
			"/ping": {
				"get": {
					"operationId": "ping",
					"summary": "Health check"
				}
			}
		}
	}`

	connector, err := NewFromBytes([]byte(jsonSpec))
	if err != nil {
		t.Fatalf("failed to parse JSON spec: %v", err)
	}

	if connector.spec.Info.Title != "JSON API" {
		t.Errorf("expected title 'JSON API', got %s", connector.spec.Info.Title)
	}
}
