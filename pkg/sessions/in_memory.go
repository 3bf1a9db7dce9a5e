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

package sessions

import (
	"fmt"
	"sync"

	"github.com/gemini-shop/shop-agent/pkg/api"
)

// ConversationHistory is the append-only, in-memory record of one agent's conversation.
// It lives exactly as long as the agent that owns it.
type ConversationHistory struct {
	mu                sync.RWMutex
	systemInstruction string
	turns             []*api.Turn
}

// NewConversationHistory creates an empty history seeded with the given system instruction.
func NewConversationHistory(systemInstruction string) *ConversationHistory {
	return &ConversationHistory{
		systemInstruction: systemInstruction,
		turns:             make([]*api.Turn, 0),
	}
}

func (h *ConversationHistory) SystemInstruction() string {
	return h.systemInstruction
}

// Append adds turns to the end of the history.
func (h *ConversationHistory) Append(turns ...*api.Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turns...)
}

// Turns returns a copy of the history.
func (h *ConversationHistory) Turns() []*api.Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	turns := make([]*api.Turn, len(h.turns))
	copy(turns, h.turns)
	return turns
}

func (h *ConversationHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Validate checks that every model turn requesting tools is followed by exactly
// one result per call, in call order, before the next model turn.
// A trailing model turn whose results have not been appended yet is reported as well.
func (h *ConversationHistory) Validate() error {
	turns := h.Turns()
	for i := 0; i < len(turns); i++ {
		turn := turns[i]
		if turn.Kind != api.TurnKindModel || len(turn.ToolCalls) == 0 {
			continue
		}
		for j, call := range turn.ToolCalls {
			k := i + 1 + j
			if k >= len(turns) {
				return fmt.Errorf("turn %d: missing result for tool call %d (%s)", i, j, call.Name)
			}
			result := turns[k]
			if result.Kind != api.TurnKindToolResult {
				return fmt.Errorf("turn %d: expected result for tool call %d (%s), got %s turn", i, j, call.Name, result.Kind)
			}
			if result.ToolCallID != call.ID || result.ToolName != call.Name {
				return fmt.Errorf("turn %d: result %d is for %s/%q, want %s/%q", i, j, result.ToolName, result.ToolCallID, call.Name, call.ID)
			}
		}
		i += len(turn.ToolCalls)
	}
	return nil
}
