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
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gemini-shop/shop-agent/gollm"
	"github.com/gemini-shop/shop-agent/pkg/api"
	"github.com/gemini-shop/shop-agent/pkg/catalog"
	"github.com/gemini-shop/shop-agent/pkg/journal"
)

var (
	// ErrUnknownTool is returned when the model asks for a tool that is not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments is returned when a required argument is missing or has the wrong type.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// DefaultStatusLabel is shown for tools without a label of their own.
const DefaultStatusLabel = "正在处理请求"

var allTools = New(&SearchProducts{}, &GetOrderStatus{}, &GetStorePolicy{})

// Default returns the registry holding the store tools.
func Default() Tools {
	return allTools
}

func Lookup(name string) Tool {
	return allTools.Lookup(name)
}

// Tools is a registry of tools. Declarations are returned in registration order.
type Tools struct {
	tools map[string]Tool
	order []string
}

// New returns a registry holding the given tools.
func New(tools ...Tool) Tools {
	t := Tools{tools: make(map[string]Tool)}
	for _, tool := range tools {
		t.RegisterTool(tool)
	}
	return t
}

func (t *Tools) Lookup(name string) Tool {
	return t.tools[name]
}

func (t *Tools) AllTools() []Tool {
	all := make([]Tool, 0, len(t.order))
	for _, name := range t.order {
		all = append(all, t.tools[name])
	}
	return all
}

func (t *Tools) Names() []string {
	return append([]string(nil), t.order...)
}

func (t *Tools) RegisterTool(tool Tool) {
	if t.tools == nil {
		t.tools = make(map[string]Tool)
	}
	if _, exists := t.tools[tool.Name()]; exists {
		panic("tool already registered: " + tool.Name())
	}
	t.tools[tool.Name()] = tool
	t.order = append(t.order, tool.Name())
}

// FunctionDefinitions declares every registered tool against the given snapshot.
func (t *Tools) FunctionDefinitions(snapshot catalog.Snapshot) []*gollm.FunctionDefinition {
	defs := make([]*gollm.FunctionDefinition, 0, len(t.order))
	for _, tool := range t.AllTools() {
		defs = append(defs, tool.FunctionDefinition(snapshot))
	}
	return defs
}

// StatusLabel returns the progress label for the named tool.
func (t *Tools) StatusLabel(name string) string {
	if tool := t.Lookup(name); tool != nil && tool.StatusLabel() != "" {
		return tool.StatusLabel()
	}
	return DefaultStatusLabel
}

// Execute runs the named tool against the snapshot.
func (t *Tools) Execute(ctx context.Context, name string, args map[string]any, snapshot catalog.Snapshot) (string, error) {
	tool := t.Lookup(name)
	if tool == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return tool.Run(ctx, args, snapshot)
}

type InvokeToolOptions struct {
	// Delay simulates back-end processing time before the tool runs.
	Delay time.Duration
}

type ToolRequestEvent struct {
	CallID    string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type ToolResponseEvent struct {
	CallID   string `json:"id,omitempty"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// InvokeTool runs one tool call, journaling the request and the response.
// Malformed arguments are treated as an empty argument set.
// The returned error is either ctx's error or the tool's own failure.
func (t *Tools) InvokeTool(ctx context.Context, call api.ToolCall, snapshot catalog.Snapshot, opt InvokeToolOptions) (string, error) {
	recorder := journal.RecorderFromContext(ctx)

	callID := call.ID
	if callID == "" {
		callID = uuid.NewString()
	}
	arguments := call.Arguments()

	recorder.Write(ctx, journal.NewEvent(ctx, journal.ActionToolRequest, ToolRequestEvent{
		CallID:    callID,
		Name:      call.Name,
		Arguments: arguments,
	}))

	if opt.Delay > 0 {
		timer := time.NewTimer(opt.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	response, err := t.Execute(ctx, call.Name, arguments, snapshot)

	{
		ev := ToolResponseEvent{
			CallID:   callID,
			Response: response,
		}
		if err != nil {
			ev.Error = err.Error()
		}
		recorder.Write(ctx, journal.NewEvent(ctx, journal.ActionToolResponse, ev))
	}

	return response, err
}

// stringArg returns a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: missing %q", ErrInvalidArguments, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string, got %T", ErrInvalidArguments, key, v)
	}
	return s, nil
}

// marshalResult serializes a tool result as JSON, leaving non-ASCII text readable.
func marshalResult(v any) (string, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(bytes.TrimRight(b.Bytes(), "\n")), nil
}
