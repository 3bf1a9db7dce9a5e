// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"k8s.io/klog/v2"

	"github.com/gemini-shop/shop-agent/pkg/catalog"
	"github.com/gemini-shop/shop-agent/pkg/tools"
)

// shopMCPServer exposes the store tools to MCP clients over stdio.
type shopMCPServer struct {
	server *server.MCPServer
	tools  tools.Tools
	store  *catalog.Store
}

func newShopMCPServer(shopTools tools.Tools, store *catalog.Store) (*shopMCPServer, error) {
	s := &shopMCPServer{
		server: server.NewMCPServer(
			"shop-agent",
			version,
			server.WithToolCapabilities(true),
		),
		tools: shopTools,
		store: store,
	}
	// declarations are taken once; policy topics added later are still served by getStorePolicy
	snapshot := store.Snapshot()
	for _, tool := range s.tools.AllTools() {
		toolDefn := tool.FunctionDefinition(snapshot)
		toolInputSchema, err := toolDefn.Parameters.ToRawSchema()
		if err != nil {
			return nil, fmt.Errorf("converting tool schema to json.RawMessage: %w", err)
		}
		s.server.AddTool(mcp.NewToolWithRawSchema(
			toolDefn.Name,
			toolDefn.Description,
			toolInputSchema,
		), s.handleToolCall)
	}
	return s, nil
}

func (s *shopMCPServer) Serve(ctx context.Context) error {
	return server.ServeStdio(s.server)
}

func (s *shopMCPServer) handleToolCall(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log := klog.FromContext(ctx)

	name := request.Params.Name
	args, err := argumentsMap(request.Params.Arguments)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	log.Info("Received tool call", "tool", name, "args", args)

	output, err := s.tools.Execute(ctx, name, args, s.store.Snapshot())
	if err != nil {
		if errors.Is(err, tools.ErrUnknownTool) {
			return mcp.NewToolResultError(fmt.Sprintf("Error: Tool %s not found", name)), nil
		}
		log.Error(err, "Error running tool call")
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}

	log.V(2).Info("Tool call output", "tool", name, "result", output)
	return mcp.NewToolResultText(output), nil
}

// argumentsMap normalises the call arguments, which arrive as decoded JSON.
func argumentsMap(raw any) (map[string]any, error) {
	if raw == nil {
		return map[string]any{}, nil
	}
	if m, ok := raw.(map[string]any); ok {
		return m, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tools.ErrInvalidArguments, err)
	}
	args := map[string]any{}
	if err := json.Unmarshal(b, &args); err != nil {
		return nil, fmt.Errorf("%w: arguments must be an object", tools.ErrInvalidArguments)
	}
	return args, nil
}

func startMCPServer(ctx context.Context, store *catalog.Store) error {
	mcpServer, err := newShopMCPServer(tools.Default(), store)
	if err != nil {
		return fmt.Errorf("creating mcp server: %w", err)
	}
	return mcpServer.Serve(ctx)
}
