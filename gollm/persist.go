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

import "github.com/gemini-shop/shop-agent/pkg/api"

// We define some standard structs to allow for persistence of dispatches in the journal.
// This lets us store the history of the conversation for later analysis.

type RecordDispatchRequest struct {
	Provider  string   `json:"provider"`
	Model     string   `json:"model"`
	Round     int      `json:"round"`
	Turns     int      `json:"turns"`
	Functions []string `json:"functions,omitempty"`
	// PolicyTopics are the topics embedded in this round's tool declarations.
	PolicyTopics []string `json:"policyTopics,omitempty"`
}

type RecordDispatchResponse struct {
	Round     int            `json:"round"`
	Text      string         `json:"text,omitempty"`
	ToolCalls []api.ToolCall `json:"toolCalls,omitempty"`
	Usage     *Usage         `json:"usage,omitempty"`
	Error     string         `json:"error,omitempty"`
}
