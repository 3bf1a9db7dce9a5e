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

package api

import (
	"encoding/json"
	"time"
)

type AgentState string

const (
	AgentStateAwaitingUser AgentState = "awaiting-user"
	AgentStateDispatching  AgentState = "dispatching"
	AgentStateToolPending  AgentState = "tool-pending"
	AgentStateDone         AgentState = "done"
	AgentStateAborted      AgentState = "aborted"
)

type TurnKind string

const (
	TurnKindUser       TurnKind = "user"
	TurnKindModel      TurnKind = "model"
	TurnKindToolResult TurnKind = "tool-result"
)

// Turn is one entry of a conversation history.
// Which fields are populated depends on Kind:
//   - user: Text
//   - model: Text (optional) and ToolCalls
//   - tool-result: ToolCallID, ToolName and Text (the result text)
type Turn struct {
	Kind       TurnKind   `json:"kind"`
	Text       string     `json:"text,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
	ToolName   string     `json:"toolName,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

func NewUserTurn(text string) *Turn {
	return &Turn{Kind: TurnKindUser, Text: text, Timestamp: time.Now()}
}

func NewModelTurn(text string, calls []ToolCall) *Turn {
	return &Turn{Kind: TurnKindModel, Text: text, ToolCalls: calls, Timestamp: time.Now()}
}

func NewToolResultTurn(call ToolCall, result string) *Turn {
	return &Turn{
		Kind:       TurnKindToolResult,
		Text:       result,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Timestamp:  time.Now(),
	}
}

// ToolCall is a request from the model to invoke a local tool.
// ID is assigned by the provider and may be empty for protocols that match
// results to calls by position.
type ToolCall struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	// RawArguments is the serialized argument object exactly as the provider sent it.
	RawArguments string `json:"rawArguments,omitempty"`
	// Signature is an opaque token some providers attach to a call and expect back
	// unchanged when the call is resent as part of the history.
	Signature []byte `json:"signature,omitempty"`
}

// Arguments decodes RawArguments. Anything that is not a JSON object yields an empty map.
func (c ToolCall) Arguments() map[string]any {
	args := map[string]any{}
	if c.RawArguments == "" {
		return args
	}
	if err := json.Unmarshal([]byte(c.RawArguments), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Stock       int     `json:"stock"`
}

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusReturned   OrderStatus = "Returned"
)

type Order struct {
	ID                string      `json:"id"`
	CustomerName      string      `json:"customerName"`
	Items             []string    `json:"items"`
	Status            OrderStatus `json:"status"`
	EstimatedDelivery string      `json:"estimatedDelivery,omitempty"`
}

// Policy is a knowledge-base entry the getStorePolicy tool answers from.
type Policy struct {
	Topic   string `json:"topic"`
	Content string `json:"content"`
}
