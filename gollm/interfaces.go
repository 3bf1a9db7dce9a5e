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

package gollm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gemini-shop/shop-agent/pkg/api"
)

// Provider is a language model backend speaking one wire protocol.
// A Provider holds no conversation state; every Dispatch carries the full history.
type Provider interface {
	// Name is the registry id of the provider, e.g. "deepseek" or "gemini".
	Name() string

	// Model is the model id requests are sent to.
	Model() string

	// Dispatch sends the conversation to the model and returns either the tool calls
	// it requested or its final text.
	Dispatch(ctx context.Context, req *DispatchRequest) (*DispatchResponse, error)

	// ResultMatching reports how the protocol pairs tool results with tool calls.
	ResultMatching() ResultMatching
}

// ResultMatching describes how a protocol pairs tool results with the calls that produced them.
type ResultMatching int

const (
	// MatchByID protocols echo the provider-assigned call id in each result.
	MatchByID ResultMatching = iota
	// MatchByPosition protocols send all results of a batch together, in call order.
	MatchByPosition
)

func (m ResultMatching) String() string {
	switch m {
	case MatchByID:
		return "by-id"
	case MatchByPosition:
		return "by-position"
	default:
		return fmt.Sprintf("ResultMatching(%d)", int(m))
	}
}

// DispatchRequest is one round trip to the model.
type DispatchRequest struct {
	// SystemInstruction is the fixed instruction the history was seeded with.
	SystemInstruction string
	// History is the complete conversation so far.
	History []*api.Turn
	// Functions are the tools the model may call on this round trip.
	Functions []*FunctionDefinition
}

// DispatchResponse is the generic outcome of a dispatch.
// A non-empty ToolCalls means the model wants tools run; otherwise Text is the final answer.
type DispatchResponse struct {
	Text      string
	ToolCalls []api.ToolCall
	Usage     *Usage
	// Raw is the provider's own response object, kept for the journal.
	Raw any
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	PromptTokens     int64 `json:"promptTokens"`
	CompletionTokens int64 `json:"completionTokens"`
	TotalTokens      int64 `json:"totalTokens"`
}

// FunctionDefinition is a user-defined function that can be called by the LLM.
// If the LLM determines the function should be called, it will reply with a tool call;
// we will invoke the function and send the result back.
type FunctionDefinition struct {
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// Schema is a schema for a function definition.
type Schema struct {
	Type        SchemaType         `json:"type,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Description string             `json:"description,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// ToRawSchema converts a Schema to a json.RawMessage.
func (s *Schema) ToRawSchema() (json.RawMessage, error) {
	jsonSchema, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("converting tool schema to json: %w", err)
	}
	return json.RawMessage(jsonSchema), nil
}

// SchemaType is the type of a field in a Schema.
type SchemaType string

const (
	TypeObject SchemaType = "object"
	TypeArray  SchemaType = "array"

	TypeString  SchemaType = "string"
	TypeBoolean SchemaType = "boolean"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
)
